package schema

import (
	"fmt"
	"net/url"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func IsPostgresUri(uri string) bool {
	return strings.HasPrefix(uri, "postgres://") || strings.HasPrefix(uri, "postgresql://")
}

func PostgresDsn(uri string) (string, error) {
	parts, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("error parsing db uri: %w", err)
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	dsn := fmt.Sprintf("host=%v user=%v password=%v dbname=%v", parts.Hostname(), parts.User.Username(), pwd, dbname)
	if port := parts.Port(); port != "" {
		dsn += fmt.Sprintf(" port=%v", port)
	}
	if sslmode := parts.Query().Get("sslmode"); sslmode != "" {
		dsn += fmt.Sprintf(" sslmode=%v", sslmode)
	}
	return dsn, nil
}

// OpenDb connects to postgres for postgres:// uris, otherwise the uri is
// treated as a sqlite file path.
func OpenDb(uri string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if IsPostgresUri(uri) {
		dsn, err := PostgresDsn(uri)
		if err != nil {
			return nil, err
		}
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(uri)
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("error opening database connection: %w", err)
	}

	if !IsPostgresUri(uri) {
		// sqlite only allows a single writer.
		sqlDb, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("error getting sql db: %w", err)
		}
		sqlDb.SetMaxOpenConns(1)
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllTables()...); err != nil {
		return fmt.Errorf("error migrating db schema: %w", err)
	}
	return nil
}

// Reset drops every table and recreates the schema.
func Reset(db *gorm.DB) error {
	tables := AllTables()
	for i := len(tables) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(tables[i]); err != nil {
			return fmt.Errorf("error dropping table: %w", err)
		}
	}
	return Migrate(db)
}
