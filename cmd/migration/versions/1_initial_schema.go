package versions

import (
	"github.com/Matgc04/dssd-2025/project_planning/schema"
	"gorm.io/gorm"
)

func Migration_1_initial_schema(txn *gorm.DB) error {
	return txn.AutoMigrate(
		&schema.User{}, &schema.Project{}, &schema.Stage{}, &schema.Request{}, &schema.Collaboration{},
	)
}

func Rollback_1_initial_schema(txn *gorm.DB) error {
	return dropTables(txn, &schema.Collaboration{}, &schema.Request{}, &schema.Stage{}, &schema.Project{}, &schema.User{})
}

func dropTables(txn *gorm.DB, tables ...interface{}) error {
	for _, table := range tables {
		if err := txn.Migrator().DropTable(table); err != nil {
			return err
		}
	}
	return nil
}
