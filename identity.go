// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package ardilla

import (
	"fmt"
	"strings"
)

// identity locates rows: every listed column must equal its value.
type identity struct {
	columns   []string
	values    []any
	heuristic bool // columns were picked by name, not declared
}

// resolveOne picks the identity used to update or delete a single object:
// the primary key, else the captured rowid, else every column whose name
// contains "id".
func resolveOne[M any](s *Schema, obj *M) (identity, error) {
	if obj == nil {
		return identity{}, fmt.Errorf("%s: %w", s.Table, ErrNoOperands)
	}
	if s.PrimaryKey != "" {
		return identity{
			columns: []string{s.PrimaryKey},
			values:  []any{toMapping(s, obj)[s.PrimaryKey]},
		}, nil
	}
	if id, ok := rowIDOf(obj); ok {
		return identity{columns: []string{"rowid"}, values: []any{id}}, nil
	}

	// TODO: replace the name match with a declared fallback key once models can tag one.
	id := identity{heuristic: true}
	vals := toValues(s, obj)
	for i, col := range s.Columns {
		if strings.Contains(col.Name, "id") {
			id.columns = append(id.columns, col.Name)
			id.values = append(id.values, vals[i])
		}
	}
	if len(id.columns) == 0 {
		return identity{}, fmt.Errorf("%w: %s has no primary key, captured identity, or id field to locate the object", ErrBadQuery, s.Table)
	}
	return id, nil
}

// resolveMany picks a single identity column for a set of objects:
// rowid when every object captured one, else the primary key.
func resolveMany[M any](s *Schema, objs []*M) (column string, values []any, err error) {
	if len(objs) == 0 {
		return "", nil, fmt.Errorf("%s: %w", s.Table, ErrNoOperands)
	}
	for _, obj := range objs {
		if obj == nil {
			return "", nil, fmt.Errorf("%s: nil object: %w", s.Table, ErrNoOperands)
		}
	}

	values = make([]any, 0, len(objs))
	for _, obj := range objs {
		id, ok := rowIDOf(obj)
		if !ok {
			values = values[:0]
			break
		}
		values = append(values, id)
	}
	if len(values) == len(objs) {
		return "rowid", values, nil
	}

	if s.PrimaryKey != "" {
		for _, obj := range objs {
			values = append(values, toMapping(s, obj)[s.PrimaryKey])
		}
		return s.PrimaryKey, values, nil
	}
	return "", nil, fmt.Errorf("%w: %s: objects require either a primary key or a captured identity for mass deletion", ErrBadQuery, s.Table)
}
