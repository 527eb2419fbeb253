package versions

import (
	"github.com/Matgc04/dssd-2025/project_planning/schema"
	"gorm.io/gorm"
)

// Observations were first stored as a single text column on the project. This
// moves them into their own table so they can be completed individually.
func Migration_2_observations(txn *gorm.DB) error {
	if err := txn.AutoMigrate(&schema.Observation{}); err != nil {
		return err
	}

	var projects []schema.Project
	if err := txn.Where("observation IS NOT NULL AND observation <> ''").Find(&projects).Error; err != nil {
		return err
	}

	for _, project := range projects {
		obs := schema.Observation{
			Id:        "legacy-" + project.Id,
			ProjectId: project.Id,
			Content:   *project.Observation,
		}
		if err := txn.Create(&obs).Error; err != nil {
			return err
		}
	}

	return nil
}

func Rollback_2_observations(txn *gorm.DB) error {
	return dropTables(txn, &schema.Observation{})
}
