// Package database provides SQLite storage for the smart controller
// service.
//
// The only tables are the schema_migrations bookkeeping table and the
// controller transition log owned by package history. The database is
// opened with WAL mode and a busy timeout so the history writer and the
// CLI "history" command can share the file.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are embedded by package migrations and registered through
// MigrationsFS. Each migration has a .up.sql and a .down.sql file named
// YYYYMMDD_HHMMSS_description.
package database
