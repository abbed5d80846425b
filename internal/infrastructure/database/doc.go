// Package database provides SQLite connectivity for the AM43 service.
//
// The database holds the dispatch log written by the audit package. It is
// optional: with database.enabled=false the service runs without history.
//
// This package manages:
//   - Opening the database file with busy timeout and WAL pragmas
//   - A single-connection pool (SQLite has one writer)
//   - Schema migrations loaded from an fs.FS (the embedded migrations package)
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx, migrations.FS, "."); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns must be NULLABLE or have DEFAULT
// values, and each .up.sql file may have a matching .down.sql file.
package database
