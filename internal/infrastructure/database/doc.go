// Package database opens the SQLite file that holds the node inventory and
// applies its schema migrations.
//
// The connection uses github.com/mattn/go-sqlite3 with foreign keys on and,
// by default, WAL journaling so the status API can read while the event loop
// writes. The pool is capped at one connection.
//
// Migrations are YYYYMMDD_HHMMSS_description.{up,down}.sql files registered
// with Register, normally by importing the top-level migrations package:
//
//	import _ "github.com/nerrad567/sensor-net-proxy/migrations"
//
//	db, err := database.Open(database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Each migration runs in its own transaction and is recorded in
// schema_migrations. The file is created with 0600 permissions.
package database
