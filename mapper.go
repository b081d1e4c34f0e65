// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package ardilla

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx/reflectx"
)

// Model is embedded in structs that want to capture SQLite's implicit row
// identity. Instances returned by reads and inserts carry the rowid of the
// row they came from; instances built in memory carry none.
//
//	type User struct {
//	    ardilla.Model
//	    ID   int    `db:"id,pk"`
//	    Name string `db:"name"`
//	}
type Model struct {
	rowid    int64
	hasRowID bool
}

// RowID returns the captured row identity, if any.
func (m *Model) RowID() (int64, bool) {
	return m.rowid, m.hasRowID
}

func (m *Model) setRowID(id int64) {
	m.rowid, m.hasRowID = id, true
}

func (m *Model) rowIdentity() *Model { return m }

// identityCarrier is satisfied by pointers to structs embedding Model.
type identityCarrier interface {
	rowIdentity() *Model
}

// rowIDOf returns the captured identity of obj.
func rowIDOf(obj any) (int64, bool) {
	if c, ok := obj.(identityCarrier); ok {
		return c.rowIdentity().RowID()
	}
	return 0, false
}

// setRowIDOf attaches an identity to obj; models not embedding Model ignore it.
func setRowIDOf(obj any, id int64) {
	if c, ok := obj.(identityCarrier); ok {
		c.rowIdentity().setRowID(id)
	}
}

// toModel maps a row onto a new instance of M by column name.
// The row identity comes from the rowid column when the statement selected it,
// else from lastID when the store reported one.
func toModel[M any](s *Schema, row Row, lastID *int64) (*M, error) {
	obj := new(M)
	v := reflect.ValueOf(obj).Elem()
	for name, val := range row {
		if name == rowidColumn {
			continue
		}
		col, ok := s.Column(name)
		if !ok {
			// columns added by hand-written migrations are not part of the model
			continue
		}
		if err := assign(reflectx.FieldByIndexes(v, col.index), val); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", s.Table, name, err)
		}
	}

	if val, ok := row[rowidColumn]; ok && val != nil {
		id, err := toInt64(val)
		if err != nil {
			return nil, fmt.Errorf("%s.rowid: %w", s.Table, err)
		}
		setRowIDOf(obj, id)
	} else if lastID != nil {
		setRowIDOf(obj, *lastID)
	}
	return obj, nil
}

// toValues returns the field values of obj in column order.
// Nil pointers become nil; other pointers are dereferenced.
func toValues[M any](s *Schema, obj *M) []any {
	v := reflect.ValueOf(obj).Elem()
	vals := make([]any, len(s.Columns))
	for i, col := range s.Columns {
		f := reflectx.FieldByIndexesReadOnly(v, col.index)
		if f.Kind() == reflect.Pointer {
			if f.IsNil() {
				vals[i] = nil
				continue
			}
			f = f.Elem()
		}
		vals[i] = f.Interface()
	}
	return vals
}

// toMapping returns the field values of obj keyed by column name.
func toMapping[M any](s *Schema, obj *M) map[string]any {
	vals := toValues(s, obj)
	m := make(map[string]any, len(vals))
	for i, col := range s.Columns {
		m[col.Name] = vals[i]
	}
	return m
}

// assign converts a driver value into the field.
func assign(f reflect.Value, val any) error {
	if val == nil {
		f.SetZero()
		return nil
	}
	if f.Kind() == reflect.Pointer {
		p := reflect.New(f.Type().Elem())
		if err := assign(p.Elem(), val); err != nil {
			return err
		}
		f.Set(p)
		return nil
	}

	switch f.Type() {
	case timeType:
		t, err := toTime(val)
		if err != nil {
			return err
		}
		f.Set(reflect.ValueOf(t))
		return nil
	case bytesType:
		switch x := val.(type) {
		case []byte:
			f.SetBytes(append([]byte(nil), x...))
		case string:
			f.SetBytes([]byte(x))
		default:
			return fmt.Errorf("cannot assign %T to []byte", val)
		}
		return nil
	}

	switch f.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt64(val)
		if err != nil {
			return err
		}
		if f.OverflowInt(n) {
			return fmt.Errorf("value %d overflows %s", n, f.Type())
		}
		f.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		n, err := toInt64(val)
		if err != nil {
			return err
		}
		if n < 0 || f.OverflowUint(uint64(n)) {
			return fmt.Errorf("value %d overflows %s", n, f.Type())
		}
		f.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		switch x := val.(type) {
		case float64:
			f.SetFloat(x)
		case int64:
			f.SetFloat(float64(x))
		case string:
			n, err := strconv.ParseFloat(x, 64)
			if err != nil {
				return err
			}
			f.SetFloat(n)
		default:
			return fmt.Errorf("cannot assign %T to %s", val, f.Type())
		}
	case reflect.String:
		switch x := val.(type) {
		case string:
			f.SetString(x)
		case []byte:
			f.SetString(string(x))
		default:
			f.SetString(fmt.Sprint(x))
		}
	case reflect.Bool:
		switch x := val.(type) {
		case bool:
			f.SetBool(x)
		case int64:
			f.SetBool(x != 0)
		case float64:
			f.SetBool(x != 0)
		default:
			return fmt.Errorf("cannot assign %T to bool", val)
		}
	default:
		return fmt.Errorf("unsupported field type %s", f.Type())
	}
	return nil
}

func toInt64(val any) (int64, error) {
	switch x := val.(type) {
	case int64:
		return x, nil
	case float64:
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	}
	return 0, fmt.Errorf("cannot convert %T to integer", val)
}

// timeLayouts are the formats SQLite drivers use when storing time.Time as text.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func toTime(val any) (time.Time, error) {
	switch x := val.(type) {
	case time.Time:
		return x, nil
	case int64:
		return time.Unix(x, 0).UTC(), nil
	case []byte:
		return toTime(string(x))
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, x); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse %q as time", x)
	}
	return time.Time{}, fmt.Errorf("cannot convert %T to time", val)
}
