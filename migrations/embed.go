// Package migrations embeds SQL migration files into the binary.
//
// Importing it registers the files with the database package, so the proxy
// can migrate its node inventory without the SQL files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/sensor-net-proxy/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.Register(migrationsFS, ".")
}
