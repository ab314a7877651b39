// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each concrete backend, which register
// their factories with the storage package. After importing it the following
// kinds are available:
//
//   - "mysql"    (logreduce/internal/storage/mysql)
//   - "postgres" (logreduce/internal/storage/postgres)
//   - "sqlite"   (logreduce/internal/storage/sqlite)
//   - "mssql"    (logreduce/internal/storage/mssql)
//   - "duckdb"   (logreduce/internal/storage/duckdb)
//
// Typical usage (in internal/app or a similar wiring layer):
//
//	import _ "logreduce/internal/storage/all"
//
//	err := storage.WithStore(ctx, storage.Config{Kind: "mysql", DSN: dsn}, func(s storage.Store) error {
//	    // backend-agnostic work
//	})
//
// A binary that supports only a subset of backends can define an alternative
// wiring package importing just those backends.
package all

import (
	_ "logreduce/internal/storage/duckdb"
	_ "logreduce/internal/storage/mssql"
	_ "logreduce/internal/storage/mysql"
	_ "logreduce/internal/storage/postgres"
	_ "logreduce/internal/storage/sqlite"
)
