package versions_test

import (
	"testing"

	"github.com/Matgc04/dssd-2025/cmd/migration/versions"
	"github.com/Matgc04/dssd-2025/project_planning/lifecycle"
	"github.com/Matgc04/dssd-2025/project_planning/schema"
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservationsMovedToTable(t *testing.T) {
	db, err := schema.OpenDb("file::memory:")
	require.NoError(t, err)

	migration := gormigrate.New(db, gormigrate.DefaultOptions, versions.Migrations())
	require.NoError(t, migration.MigrateTo("1"))

	assert.False(t, db.Migrator().HasTable(&schema.Observation{}))

	note := "budget needs review"
	require.NoError(t, db.Create(&schema.Project{Id: "p1", OrgId: "org-1", Status: lifecycle.Pending, Observation: &note}).Error)
	require.NoError(t, db.Create(&schema.Project{Id: "p2", OrgId: "org-1", Status: lifecycle.Pending}).Error)

	require.NoError(t, migration.Migrate())

	var observations []schema.Observation
	require.NoError(t, db.Find(&observations).Error)
	require.Len(t, observations, 1)
	assert.Equal(t, "legacy-p1", observations[0].Id)
	assert.Equal(t, "p1", observations[0].ProjectId)
	assert.Equal(t, note, observations[0].Content)
	assert.False(t, observations[0].IsCompleted)

	require.NoError(t, migration.RollbackTo("1"))
	assert.False(t, db.Migrator().HasTable(&schema.Observation{}))
}
