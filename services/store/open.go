package store

import (
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open creates the Store selected by storeType.
// dsn is a directory for badger and a connection string for the SQL backends.
func Open(storeType string, dsn string) (Store, error) {
	var dialector gorm.Dialector

	switch strings.ToLower(storeType) {
	case "memory":
		return NewMemoryStore(), nil
	case "badger":
		return OpenBadgerStore(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown store type '%s'", storeType)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewGormStore(db)
}
