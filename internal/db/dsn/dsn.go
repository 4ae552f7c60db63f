// Package dsn provides Data Source Name construction utilities for database connections.
package dsn

import (
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/config"
)

const (
	// EngineMySQL selects the MySQL / MariaDB driver, used when no engine is configured.
	EngineMySQL = "mysql"
	// EnginePostgres selects the PostgreSQL driver.
	EnginePostgres = "postgres"
	// EngineSQLite selects the pure Go SQLite driver. DB.Name is the file path.
	EngineSQLite = "sqlite"
)

// ErrUnknownEngine is returned for an unsupported GormEngine value.
var ErrUnknownEngine = errors.New("unknown gorm engine")

// Create builds the MySQL Data Source Name from the configuration.
func Create(dbCfg *config.Config) string {
	out := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		dbCfg.DB.User,
		dbCfg.DB.Password,
		dbCfg.DB.Host,
		dbCfg.DB.Port,
		dbCfg.DB.Name,
		dbCfg.DB.Extras,
	)

	return out
}

// CreatePostgres builds a key=value PostgreSQL DSN. Extras are appended as is,
// for example "sslmode=disable TimeZone=UTC".
func CreatePostgres(dbCfg *config.Config) string {
	out := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		dbCfg.DB.Host,
		dbCfg.DB.Port,
		dbCfg.DB.User,
		dbCfg.DB.Password,
		dbCfg.DB.Name,
	)

	if dbCfg.DB.Extras != "" {
		out += " " + dbCfg.DB.Extras
	}

	return out
}

// Dialector returns the gorm dialector of the configured engine.
func Dialector(dbCfg *config.Config) (gorm.Dialector, error) {
	switch strings.ToLower(dbCfg.DB.GormEngine) {
	case "", EngineMySQL:
		return mysql.Open(Create(dbCfg)), nil
	case EnginePostgres:
		return postgres.Open(CreatePostgres(dbCfg)), nil
	case EngineSQLite:
		return sqlite.Open(dbCfg.DB.Name), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEngine, dbCfg.DB.GormEngine)
	}
}
