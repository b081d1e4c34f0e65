// Copyright (c) 2026 Michael D Henderson. All rights reserved.

// Package ardilla maps Go structs onto SQLite tables and provides create,
// read, update and delete operations built from parameterized statements.
//
// A model is a struct. Each exported field is a column named by its db tag
// (or the lower-cased field name); the pk option marks the primary key.
// Embedding Model lets instances capture SQLite's rowid, which is used to
// update and delete rows when the model declares no primary key.
//
//	type User struct {
//	    ardilla.Model
//	    ID    int    `db:"id,pk"`
//	    Name  string `db:"name"`
//	    Email string `db:"email,unique"`
//	}
//
// # Basic Usage
//
//	engine, err := ardilla.Open(ctx, ardilla.Config{Path: ":memory:"}, User{})
//	if err != nil {
//	    return err
//	}
//	defer engine.Close()
//
//	users, err := ardilla.CrudFor[User](ctx, engine)
//	u, err := users.Insert(ctx, ardilla.Values{"id": 1, "name": "alice"})
//	u, err = users.GetOrNone(ctx, ardilla.Values{"id": 1})
//	top, err := users.GetMany(ctx, ardilla.Query{OrderBy: []ardilla.Order{ardilla.Desc("id")}, Limit: 2})
//
// Column names in Values, Query and Order are checked against the model before
// any SQL is built; values are always bound as parameters.
//
// # Identity
//
// Rows are located by the declared primary key, else by the captured rowid.
// SaveOne and SaveMany insert or replace by primary key; a model without one
// updates the row of its captured rowid. DeleteOne falls back to matching
// every field whose name contains "id". DeleteMany requires a rowid on every
// object or a primary key.
//
// # Columns
//
// Non-pointer fields are NOT NULL, so Insert must supply them unless the tag
// declares a default:
//
//	Qty int `db:"qty,default=1"`
//
// A default is a number, a single-quoted string, NULL, TRUE, FALSE or one of
// CURRENT_TIMESTAMP, CURRENT_DATE and CURRENT_TIME.
//
// # Driver Support
//
// This package supports two SQLite drivers via build tags:
//   - modernc.org/sqlite (default, pure Go, no CGO)
//   - github.com/mattn/go-sqlite3 (CGO, use -tags mattn)
//
// With -tags mattn, the application imports the driver:
//
//	import _ "github.com/mattn/go-sqlite3"
//
// # Configuration
//
// Key Config fields:
//   - Path: ":memory:" for a private in-memory database, or an absolute path with .db extension
//   - Migrations: fs.FS of YYYYMMDDHHMMSS_comment.sql scripts applied after the model tables
//   - SkipSetup: open without creating tables or running migrations
//   - ProductionEnvVar: env var to check for production mode (default: "ENV")
//
// LoadConfig reads the same settings from a YAML file.
package ardilla
