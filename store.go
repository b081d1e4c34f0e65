// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package ardilla

import (
	"context"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Store is the capability the Engine needs from the underlying database.
type Store interface {
	// Connect acquires a connection with an open transaction.
	Connect(ctx context.Context) (Conn, error)
	// Close releases the store.
	Close() error
}

// Conn is an acquired connection. Work done through it is visible to other
// connections only after Commit. Close releases the connection and discards
// uncommitted work; it is safe to call after Commit.
type Conn interface {
	Execute(ctx context.Context, stmt Statement) (Cursor, error)
	// ExecuteBatch executes query once per argument set and returns the
	// rowid of the row each execution inserted, zero when none was reported.
	ExecuteBatch(ctx context.Context, query string, args [][]any) ([]int64, error)
	Commit() error
	Close() error
}

// Cursor is the handle returned by Execute.
type Cursor interface {
	// FetchOne returns the next row, or nil when there are none.
	FetchOne(ctx context.Context) (Row, error)
	// FetchAll returns the remaining rows.
	FetchAll(ctx context.Context) ([]Row, error)
	// LastInsertID returns the rowid of the last inserted row, if the
	// statement reported one.
	LastInsertID() (int64, bool)
	Close() error
}
