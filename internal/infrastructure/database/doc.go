// Package database provides the SQLite connection behind the config store
// and the command audit log.
//
// It manages WAL mode, busy timeout, a single-writer connection pool and
// versioned migrations read from an fs.FS (normally the embedded
// migrations package):
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// All queries use parameterised statements. The database file is created
// with 0600 permissions.
package database
