// Package migrations embeds the session-vault schema into the binary so
// the daemon can migrate its store without SQL files on disk.
package migrations

import (
	"embed"

	"github.com/halcyonhq/authshell/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
