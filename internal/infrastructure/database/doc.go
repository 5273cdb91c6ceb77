// Package database opens the bridge's SQLite store and applies its schema
// migrations.
//
// The store holds the device identity table. Migrations live in an fs.FS
// (normally the embedded migrations package) so tests can substitute their own.
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// All statements are parameterised and the file is created with 0600.
package database
