// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package ardilla

import (
	"context"
	"fmt"
	"reflect"
)

// Values maps column names to values. It is used as the predicate of lookups
// and as the column set of inserts. Every key must be a column of the model.
type Values map[string]any

// Query selects rows for GetMany.
type Query struct {
	Where   Values
	OrderBy []Order
	Limit   int // zero means no limit
}

// Crud runs create, read, update and delete operations for one model type.
// Get one from CrudFor; each Engine keeps a single Crud per model.
//
// Every method is its own transaction, committed before it returns.
type Crud[M any] struct {
	engine *Engine
	schema *Schema
}

// CrudFor returns the Engine's Crud for M, creating the model's table on
// first use.
func CrudFor[M any](ctx context.Context, e *Engine) (*Crud[M], error) {
	if e == nil {
		return nil, ErrMissingEngine
	}
	t := reflect.TypeFor[M]()

	e.mu.Lock()
	closed := e.closed
	cached, ok := e.cruds[t]
	e.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("%w: engine is closed", ErrMissingEngine)
	}
	if ok {
		return cached.(*Crud[M]), nil
	}

	s, err := e.schemaFor(t)
	if err != nil {
		return nil, err
	}
	if err := e.ensureTable(ctx, s); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if cached, ok := e.cruds[t]; ok {
		return cached.(*Crud[M]), nil
	}
	c := &Crud[M]{engine: e, schema: s}
	e.cruds[t] = c
	return c, nil
}

// Schema returns the schema of the model.
func (c *Crud[M]) Schema() *Schema {
	return c.schema
}

func (c *Crud[M]) ready() error {
	if c == nil || c.engine == nil || c.schema == nil {
		return ErrMissingEngine
	}
	return nil
}

// columns validates the keys of vals against the model and returns them with
// their values in declaration order. No statement is built on failure.
func (c *Crud[M]) columns(vals Values) ([]string, []any, error) {
	for key := range vals {
		if !c.schema.HasColumn(key) {
			return nil, nil, fmt.Errorf("%w: %q is not a field of %q and cannot be used in queries", ErrUnknownField, key, c.schema.Table)
		}
	}
	cols := make([]string, 0, len(vals))
	args := make([]any, 0, len(vals))
	for _, col := range c.schema.Columns {
		if v, ok := vals[col.Name]; ok {
			cols = append(cols, col.Name)
			args = append(args, v)
		}
	}
	return cols, args, nil
}

// run executes stmt in its own transaction and hands the cursor to fn.
func (c *Crud[M]) run(ctx context.Context, stmt Statement, fn func(Cursor) error) error {
	return c.engine.withConn(ctx, func(conn Conn) error {
		return c.engine.withCursor(ctx, conn, stmt, fn)
	})
}

// GetOrNone returns the first row matching every value in where,
// or nil if there is none.
//
//	user, err := users.GetOrNone(ctx, ardilla.Values{"id": 42})
func (c *Crud[M]) GetOrNone(ctx context.Context, where Values) (*M, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	cols, args, err := c.columns(where)
	if err != nil {
		return nil, err
	}

	var obj *M
	err = c.run(ctx, pointLookupStmt(c.schema.Table, cols, args), func(cur Cursor) error {
		row, err := cur.FetchOne(ctx)
		if err != nil || row == nil {
			return err
		}
		obj, err = toModel[M](c.schema, row, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// GetMany returns the rows matching q.Where, ordered by q.OrderBy and
// limited to q.Limit rows. Directions are ASC or DESC in any case.
func (c *Crud[M]) GetMany(ctx context.Context, q Query) ([]*M, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	cols, args, err := c.columns(q.Where)
	if err != nil {
		return nil, err
	}
	for _, o := range q.OrderBy {
		if !c.schema.HasColumn(o.Column) {
			return nil, fmt.Errorf("%w: %q is not a field of %q and cannot be used for ordering", ErrUnknownField, o.Column, c.schema.Table)
		}
	}
	stmt, err := filteredLookupStmt(c.schema.Table, cols, args, q.OrderBy, q.Limit)
	if err != nil {
		return nil, err
	}

	var objs []*M
	err = c.run(ctx, stmt, func(cur Cursor) error {
		rows, err := cur.FetchAll(ctx)
		if err != nil {
			return err
		}
		objs = make([]*M, 0, len(rows))
		for _, row := range rows {
			obj, err := toModel[M](c.schema, row, nil)
			if err != nil {
				return err
			}
			objs = append(objs, obj)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return objs, nil
}

// GetAll returns every row of the table.
func (c *Crud[M]) GetAll(ctx context.Context) ([]*M, error) {
	return c.GetMany(ctx, Query{})
}

// Insert inserts a row and returns it with its row identity captured.
// A uniqueness or other constraint violation returns ErrQueryExecution.
func (c *Crud[M]) Insert(ctx context.Context, vals Values) (*M, error) {
	obj, err := c.insert(ctx, vals, false)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: insert into %s returned no row", ErrQueryExecution, c.schema.Table)
	}
	return obj, nil
}

// InsertOrIgnore inserts a row, or does nothing if it conflicts with an
// existing one. It returns nil when the insert was ignored.
func (c *Crud[M]) InsertOrIgnore(ctx context.Context, vals Values) (*M, error) {
	return c.insert(ctx, vals, true)
}

func (c *Crud[M]) insert(ctx context.Context, vals Values, ignore bool) (*M, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	cols, args, err := c.columns(vals)
	if err != nil {
		return nil, err
	}

	// constraint failures surface at execute or at the first fetch
	translate := func(err error) error {
		if !ignore && isConstraintViolation(err) {
			return fmt.Errorf("%w: %s: %w", ErrQueryExecution, c.schema.Table, err)
		}
		return err
	}

	var obj *M
	err = c.engine.withConn(ctx, func(conn Conn) error {
		stmt := insertStmt(c.schema.Table, cols, args, ignore, true)
		c.engine.logQuery(stmt)
		cur, err := conn.Execute(ctx, stmt)
		if err != nil {
			return translate(err)
		}
		defer cur.Close()

		row, err := cur.FetchOne(ctx)
		if err != nil {
			return translate(err)
		}
		if row == nil {
			return cur.Close()
		}
		var lastID *int64
		if id, ok := cur.LastInsertID(); ok {
			lastID = &id
		}
		if obj, err = toModel[M](c.schema, row, lastID); err != nil {
			return err
		}
		return cur.Close()
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// GetOrCreate returns the row matching vals, inserting it if there is none.
// created is true when the insert path was taken. The lookup and the insert
// are separate transactions: a concurrent writer can make created true for a
// row that already existed, in which case obj is nil.
func (c *Crud[M]) GetOrCreate(ctx context.Context, vals Values) (obj *M, created bool, err error) {
	obj, err = c.GetOrNone(ctx, vals)
	if err != nil || obj != nil {
		return obj, false, err
	}
	obj, err = c.InsertOrIgnore(ctx, vals)
	if err != nil {
		return nil, false, err
	}
	return obj, true, nil
}

// SaveOne writes obj. A model with a primary key is inserted, replacing any
// row with the same key. A model without one updates the row of its captured
// identity, or is inserted when it has none. Inserts capture the identity of
// the new row.
func (c *Crud[M]) SaveOne(ctx context.Context, obj *M) error {
	if err := c.ready(); err != nil {
		return err
	}
	if obj == nil {
		return fmt.Errorf("save %s: %w", c.schema.Table, ErrNoOperands)
	}
	cols := c.schema.ColumnNames()
	args := toValues(c.schema, obj)

	if c.schema.PrimaryKey == "" {
		if id, ok := rowIDOf(obj); ok {
			return c.run(ctx, updateStmt(c.schema.Table, cols, args, id), nil)
		}
	}
	return c.run(ctx, upsertStmt(c.schema.Table, cols, args), func(cur Cursor) error {
		if id, ok := cur.LastInsertID(); ok {
			setRowIDOf(obj, id)
		}
		return nil
	})
}

// SaveMany writes every object with one batched insert-or-replace in a single
// transaction, leaving the same rows as calling SaveOne on each in turn.
// Models without a primary key keep their rows by captured row identity;
// objects without one are inserted. Every object captures the identity of
// its row.
func (c *Crud[M]) SaveMany(ctx context.Context, objs ...*M) error {
	if err := c.ready(); err != nil {
		return err
	}
	if len(objs) == 0 {
		return fmt.Errorf("save %s: %w", c.schema.Table, ErrNoOperands)
	}

	cols := c.schema.ColumnNames()
	withRowID := c.schema.PrimaryKey == ""
	if withRowID {
		cols = append([]string{"rowid"}, cols...)
	}

	batch := make([][]any, 0, len(objs))
	for _, obj := range objs {
		if obj == nil {
			return fmt.Errorf("save %s: nil object: %w", c.schema.Table, ErrNoOperands)
		}
		args := toValues(c.schema, obj)
		if withRowID {
			var rowid any
			if id, ok := rowIDOf(obj); ok {
				rowid = id
			}
			args = append([]any{rowid}, args...)
		}
		batch = append(batch, args)
	}

	stmt := upsertStmt(c.schema.Table, cols, nil)
	var ids []int64
	err := c.engine.withConn(ctx, func(conn Conn) error {
		c.engine.logQuery(stmt)
		var err error
		ids, err = conn.ExecuteBatch(ctx, stmt.Query, batch)
		return err
	})
	if err != nil {
		return err
	}
	for i, id := range ids {
		if i < len(objs) && id != 0 {
			setRowIDOf(objs[i], id)
		}
	}
	return nil
}

// DeleteOne deletes the row of obj, located by primary key, else by captured
// row identity, else by every field whose name contains "id".
func (c *Crud[M]) DeleteOne(ctx context.Context, obj *M) error {
	if err := c.ready(); err != nil {
		return err
	}
	id, err := resolveOne(c.schema, obj)
	if err != nil {
		return err
	}
	if id.heuristic {
		c.engine.logger.Warn("deleting by id-like fields", "table", c.schema.Table, "fields", id.columns)
	}

	var stmt Statement
	if len(id.columns) == 1 {
		if stmt, err = deleteByIdentityStmt(c.schema.Table, id.columns[0], id.values); err != nil {
			return err
		}
	} else {
		stmt = matchDeleteStmt(c.schema.Table, id.columns, id.values)
	}
	return c.run(ctx, stmt, nil)
}

// DeleteMany deletes the rows of every object in one statement. All objects
// must carry a captured row identity, or the model must declare a primary key.
func (c *Crud[M]) DeleteMany(ctx context.Context, objs ...*M) error {
	if err := c.ready(); err != nil {
		return err
	}
	column, values, err := resolveMany(c.schema, objs)
	if err != nil {
		return err
	}
	stmt, err := deleteByIdentityStmt(c.schema.Table, column, values)
	if err != nil {
		return err
	}
	return c.run(ctx, stmt, nil)
}
