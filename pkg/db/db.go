package db

import (
	"github.com/lithium-ci/lithium/internal/models"
	"github.com/lithium-ci/lithium/pkg/env"
	"github.com/lithium-ci/lithium/pkg/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var conn *gorm.DB

// Connection returns the shared database handle, opening it on first use.
// The backing database is selected via LITHIUM_DATABASE_TYPE.
func Connection() *gorm.DB {
	if conn != nil {
		return conn
	}

	var err error

	switch env.Variables().DatabaseType {
	case "postgres":
		conn, err = gorm.Open(
			postgres.Open(env.Variables().DatabaseDSN),
			&gorm.Config{},
		)
	case "sqlite":
		fallthrough
	default:
		conn, err = gorm.Open(
			sqlite.Open(env.Variables().DatabaseDSN),
			&gorm.Config{},
		)
	}

	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}

	return conn
}

// Migrate applies the schema for all registered models.
func Migrate() error {
	return Connection().AutoMigrate(models.All...)
}
