package versions

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func Migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			// Placeholder for databases created before migrations were tracked.
			ID:      "0",
			Migrate: func(*gorm.DB) error { return nil },
		},
		{
			ID:       "1",
			Migrate:  Migration_1_initial_schema,
			Rollback: Rollback_1_initial_schema,
		},
		{
			ID:       "2",
			Migrate:  Migration_2_observations,
			Rollback: Rollback_2_observations,
		},
	}
}
