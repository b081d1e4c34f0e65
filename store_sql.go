// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package ardilla

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/jmoiron/sqlx"
)

// sqlStore implements Store on a database/sql handle.
type sqlStore struct {
	db *sqlx.DB
}

func newSQLStore(db *sql.DB) *sqlStore {
	return &sqlStore{db: sqlx.NewDb(db, driverName)}
}

// Connect reserves a pooled connection and begins a transaction on it.
// The transaction is bound to ctx and is rolled back if ctx is cancelled.
func (s *sqlStore) Connect(ctx context.Context) (Conn, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, multierror.Append(fmt.Errorf("begin: %w", err), conn.Close())
	}
	return &sqlConn{conn: conn, tx: tx}, nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

type sqlConn struct {
	conn      *sqlx.Conn
	tx        *sqlx.Tx
	committed bool
	closed    bool
}

func (c *sqlConn) Execute(ctx context.Context, stmt Statement) (Cursor, error) {
	if stmt.Rows {
		rows, err := c.tx.QueryxContext(ctx, stmt.Query, stmt.Args...)
		if err != nil {
			return nil, err
		}
		return &sqlCursor{rows: rows}, nil
	}

	res, err := c.tx.ExecContext(ctx, stmt.Query, stmt.Args...)
	if err != nil {
		return nil, err
	}
	cur := &sqlCursor{}
	if id, err := res.LastInsertId(); err == nil {
		cur.lastID, cur.hasLastID = id, true
	}
	return cur, nil
}

// ExecuteBatch prepares query once and executes it for every argument set.
func (c *sqlConn) ExecuteBatch(ctx context.Context, query string, args [][]any) ([]int64, error) {
	stmt, err := c.tx.PreparexContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error preparing batch statement: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, len(args))
	for i, a := range args {
		res, err := stmt.ExecContext(ctx, a...)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		if id, err := res.LastInsertId(); err == nil {
			ids[i] = id
		}
	}
	return ids, nil
}

func (c *sqlConn) Commit() error {
	if err := c.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	c.committed = true
	return nil
}

// Close rolls back uncommitted work and returns the connection to the pool.
func (c *sqlConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	var result *multierror.Error
	if !c.committed {
		if err := c.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			result = multierror.Append(result, fmt.Errorf("rollback: %w", err))
		}
	}
	if err := c.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		result = multierror.Append(result, fmt.Errorf("release: %w", err))
	}
	return result.ErrorOrNil()
}

type sqlCursor struct {
	rows      *sqlx.Rows // nil for statements without a result set
	lastID    int64
	hasLastID bool
}

func (c *sqlCursor) FetchOne(ctx context.Context) (Row, error) {
	if c.rows == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.rows.Next() {
		return nil, c.rows.Err()
	}
	row := make(map[string]any)
	if err := c.rows.MapScan(row); err != nil {
		return nil, err
	}
	return row, nil
}

func (c *sqlCursor) FetchAll(ctx context.Context) ([]Row, error) {
	var rows []Row
	for {
		row, err := c.FetchOne(ctx)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return rows, nil
		}
		rows = append(rows, row)
	}
}

func (c *sqlCursor) LastInsertID() (int64, bool) {
	return c.lastID, c.hasLastID
}

func (c *sqlCursor) Close() error {
	if c.rows == nil {
		return nil
	}
	return c.rows.Close()
}
