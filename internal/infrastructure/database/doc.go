// Package database provides the SQLite connection used by the Insteon service.
//
// This package manages:
//   - Opening the database file in WAL mode with a busy timeout
//   - Versioned schema migrations embedded in the binary
//   - Health checks and planner maintenance after bulk deletes
//
// The only tables today are the light event log (see internal/history)
// and schema_migrations.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql, and live in the top-level migrations package.
package database
