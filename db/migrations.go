// Package db embeds the SQL migrations so the binary can build its own
// schema without a migrations directory on disk.
package db

import "embed"

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var Migrations embed.FS

// MigrationsDir returns the embedded directory holding a dialect's files.
func MigrationsDir(driver string) string {
	if driver == "postgres" {
		return "migrations/postgres"
	}
	return "migrations/sqlite"
}
