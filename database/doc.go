// Package database connects the metadata index behind edgeshelf.LocalStore.
//
// Two backends are supported:
//
//   - PostgreSQL, using a pgx connection pool
//   - SQLite, using modernc.org/sqlite, for single-node deployments
//
// # Usage
//
//	db, err := database.Connect(ctx, database.Config{
//	    Type:        "sqlite",
//	    DSN:         "edgeshelf.db",
//	    Tables:      edgeshelf.Tables{MetaData: "edgeshelf_metadata"},
//	    AutoMigrate: true,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	repo := db.GetRepo()
//
// Connect validates the table names, optionally runs migrations and then
// checks the schema of the existing tables.
package database
