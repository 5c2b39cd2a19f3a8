// Package migrations holds the goose migrations of the linklearn schema.
// Each migration opens gorm over the migration transaction.
package migrations

import (
	"database/sql"
	"embed"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// FS exposes the migration sources so goose can match registered Go
// migrations to their files.
//
//go:embed 0*.go
var FS embed.FS

func openTx(tx *sql.Tx) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}
