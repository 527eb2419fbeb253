package main

import (
	"flag"
	"log"

	"github.com/Matgc04/dssd-2025/cmd/migration/versions"
	"github.com/Matgc04/dssd-2025/project_planning/schema"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func main() {
	dbUri := flag.String("db_uri", "", "Database URI, either a postgres:// url or a sqlite file path")
	rollback := flag.String("rollback_to", "", "If specified rolls back to the given migration id instead of migrating")
	flag.Parse()

	if *dbUri == "" {
		log.Fatalf("Missing --db_uri arg")
	}

	db, err := schema.OpenDb(*dbUri)
	if err != nil {
		log.Fatal(err)
	}

	migration := gormigrate.New(db, gormigrate.DefaultOptions, versions.Migrations())

	migration.InitSchema(func(txn *gorm.DB) error {
		log.Println("clean database detected, running full schema initialization")

		return txn.AutoMigrate(schema.AllTables()...)
	})

	if *rollback != "" {
		if err := migration.RollbackTo(*rollback); err != nil {
			log.Fatalf("rollback failed: %v", err)
		}
		log.Printf("rolled back to migration %v", *rollback)
		return
	}

	if err := migration.Migrate(); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	log.Println("migration completed successfully")
}
