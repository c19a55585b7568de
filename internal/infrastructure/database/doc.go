// Package database provides SQLite connection management and schema
// migrations for VoltGuard Core.
//
// The database holds only the automation schedule store. In-memory device
// state is deliberately not persisted across restarts.
//
// # Features
//
//   - WAL mode for concurrent reads during writes
//   - Embedded, versioned SQL migrations applied at startup
//   - Restricted file permissions (0600)
//
// # Usage
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
