// Package db embeds the SQL migrations for the postgres brain.
package db

import "embed"

// MigrationsFS contains the brain migrations under migrations/.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
