// Package migrations embeds the radar schema (users, filter terms, favorites,
// saved locations, announcement history, geofences) as goose SQL migrations.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// FS holds the embedded migration files.
//
//go:embed *.sql
var FS embed.FS

// Run brings the database up to the latest schema version.
func Run(db *sql.DB) error {
	goose.SetBaseFS(FS)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
