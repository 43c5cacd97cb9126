// Package migrations embeds the shared-store schema into the binary.
//
// Any node can bootstrap a fresh store: the fixed tables (SystemStatus,
// SystemTick, EventLog) are created here, while the per-site Control and
// Readings tables are created by the store package from the site registry.
package migrations

import (
	"embed"

	"github.com/riverwatch/rivercore/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	// Register embedded migrations with the database package.
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "." // Files are at root of embedded FS
}
