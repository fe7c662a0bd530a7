package airportdb

import (
	"embed"

	"github.com/airportmatch/nearestairport/internal/common/database"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the schema migrations of the nearest airport database in the order they must be applied.
func Migrations() ([]database.Migration, error) {
	return database.ReadMigrations(migrationFiles, "migrations")
}
