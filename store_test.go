// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package ardilla_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdhender/ardilla"
)

// fakeStore records every statement and acquisition it sees.
type fakeStore struct {
	statements []ardilla.Statement
	batches    []string
	connects   int
	releases   int
	commits    int
	cursors    int
	closed     int
	rows       []ardilla.Row
	execErr    error
	lastID     int64
}

func (s *fakeStore) Connect(ctx context.Context) (ardilla.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.connects++
	return &fakeConn{store: s}, nil
}

func (s *fakeStore) Close() error { return nil }

type fakeConn struct {
	store    *fakeStore
	released bool
}

func (c *fakeConn) Execute(ctx context.Context, stmt ardilla.Statement) (ardilla.Cursor, error) {
	c.store.statements = append(c.store.statements, stmt)
	if c.store.execErr != nil {
		return nil, c.store.execErr
	}
	c.store.cursors++
	return &fakeCursor{store: c.store, rows: c.store.rows}, nil
}

func (c *fakeConn) ExecuteBatch(ctx context.Context, query string, args [][]any) ([]int64, error) {
	c.store.batches = append(c.store.batches, query)
	if c.store.execErr != nil {
		return nil, c.store.execErr
	}
	ids := make([]int64, len(args))
	for i := range args {
		c.store.lastID++
		ids[i] = c.store.lastID
	}
	return ids, nil
}

func (c *fakeConn) Commit() error {
	c.store.commits++
	return nil
}

func (c *fakeConn) Close() error {
	if !c.released {
		c.released = true
		c.store.releases++
	}
	return nil
}

type fakeCursor struct {
	store  *fakeStore
	rows   []ardilla.Row
	closed bool
}

func (c *fakeCursor) FetchOne(ctx context.Context) (ardilla.Row, error) {
	if len(c.rows) == 0 {
		return nil, nil
	}
	row := c.rows[0]
	c.rows = c.rows[1:]
	return row, nil
}

func (c *fakeCursor) FetchAll(ctx context.Context) ([]ardilla.Row, error) {
	rows := c.rows
	c.rows = nil
	return rows, nil
}

func (c *fakeCursor) LastInsertID() (int64, bool) { return 0, false }

func (c *fakeCursor) Close() error {
	if !c.closed {
		c.closed = true
		c.store.closed++
	}
	return nil
}

type account struct {
	ardilla.Model
	ID    int    `db:"id,pk"`
	Owner string `db:"owner"`
}

func newFakeEngine(t *testing.T) (*ardilla.Engine, *fakeStore) {
	t.Helper()
	store := &fakeStore{}
	e := ardilla.NewEngine(store, ardilla.Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	return e, store
}

func TestCrud_UnknownFieldNeverReachesStore(t *testing.T) {
	ctx := context.Background()
	e, store := newFakeEngine(t)

	accounts, err := ardilla.CrudFor[account](ctx, e)
	require.NoError(t, err)
	before := len(store.statements)

	_, err = accounts.GetOrNone(ctx, ardilla.Values{"nonexistent": 1})
	require.ErrorIs(t, err, ardilla.ErrUnknownField)
	require.ErrorIs(t, err, ardilla.ErrBadQuery)

	_, err = accounts.GetMany(ctx, ardilla.Query{OrderBy: []ardilla.Order{ardilla.Desc("nonexistent")}})
	require.ErrorIs(t, err, ardilla.ErrUnknownField)

	_, err = accounts.Insert(ctx, ardilla.Values{"id": 1, "owner; DROP TABLE account": "x"})
	require.ErrorIs(t, err, ardilla.ErrUnknownField)

	assert.Len(t, store.statements, before, "no statement may reach the store")
}

func TestCrud_CreatesTableOnce(t *testing.T) {
	ctx := context.Background()
	e, store := newFakeEngine(t)

	a, err := ardilla.CrudFor[account](ctx, e)
	require.NoError(t, err)
	b, err := ardilla.CrudFor[account](ctx, e)
	require.NoError(t, err)
	assert.Same(t, a, b)

	require.NoError(t, e.Register(account{}))
	require.NoError(t, e.Setup(ctx))

	require.Len(t, store.statements, 1)
	assert.Contains(t, store.statements[0].Query, `CREATE TABLE IF NOT EXISTS "account"`)
}

func TestCrud_ReleasesOnEveryPath(t *testing.T) {
	ctx := context.Background()
	e, store := newFakeEngine(t)

	accounts, err := ardilla.CrudFor[account](ctx, e)
	require.NoError(t, err)

	store.rows = []ardilla.Row{{"__rowid__": int64(1), "id": int64(1), "owner": "ann"}}
	got, err := accounts.GetOrNone(ctx, ardilla.Values{"id": 1})
	require.NoError(t, err)
	assert.Equal(t, "ann", got.Owner)

	store.execErr = errors.New("disk I/O error")
	_, err = accounts.GetOrNone(ctx, ardilla.Values{"id": 1})
	require.ErrorIs(t, err, store.execErr)
	err = accounts.SaveMany(ctx, &account{ID: 2})
	require.ErrorIs(t, err, store.execErr)

	assert.Equal(t, store.connects, store.releases, "every connection is released")
	assert.Equal(t, store.cursors, store.closed, "every cursor is closed")
	assert.Equal(t, 2, store.commits, "failed operations are not committed")
}

func TestCrud_StoreErrorsPropagateUnchanged(t *testing.T) {
	ctx := context.Background()
	e, store := newFakeEngine(t)
	accounts, err := ardilla.CrudFor[account](ctx, e)
	require.NoError(t, err)

	store.execErr = errors.New("database is locked")
	_, err = accounts.Insert(ctx, ardilla.Values{"id": 1})
	require.ErrorIs(t, err, store.execErr)
	assert.NotErrorIs(t, err, ardilla.ErrQueryExecution)
}

func TestCrud_CancelledContext(t *testing.T) {
	e, store := newFakeEngine(t)
	accounts, err := ardilla.CrudFor[account](context.Background(), e)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = accounts.GetAll(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, store.connects, store.releases)
}

func TestCrud_MissingEngine(t *testing.T) {
	ctx := context.Background()

	var zero ardilla.Crud[account]
	_, err := zero.GetAll(ctx)
	require.ErrorIs(t, err, ardilla.ErrMissingEngine)
	require.ErrorIs(t, zero.SaveOne(ctx, &account{}), ardilla.ErrMissingEngine)
	require.ErrorIs(t, zero.DeleteMany(ctx, &account{}), ardilla.ErrMissingEngine)

	_, err = ardilla.CrudFor[account](ctx, nil)
	require.ErrorIs(t, err, ardilla.ErrMissingEngine)

	e, _ := newFakeEngine(t)
	accounts, err := ardilla.CrudFor[account](ctx, e)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	_, err = accounts.GetAll(ctx)
	require.ErrorIs(t, err, ardilla.ErrMissingEngine)
	_, err = ardilla.CrudFor[account](ctx, e)
	require.ErrorIs(t, err, ardilla.ErrMissingEngine)
}
