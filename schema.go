// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package ardilla

import (
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/reflectx"
)

// FieldType is the semantic type of a model field.
type FieldType int

const (
	Integer FieldType = iota
	Real
	Text
	Boolean
	Blob
	Datetime
)

// SQL returns the column type used in the table definition.
func (ft FieldType) SQL() string {
	switch ft {
	case Integer:
		return "INTEGER"
	case Real:
		return "REAL"
	case Text:
		return "TEXT"
	case Boolean:
		return "BOOLEAN"
	case Blob:
		return "BLOB"
	case Datetime:
		return "DATETIME"
	}
	return fmt.Sprintf("FieldType(%d)", int(ft))
}

func (ft FieldType) String() string {
	return ft.SQL()
}

// Column describes one field of a model.
type Column struct {
	Name     string
	Type     FieldType
	Primary  bool
	Unique   bool
	Nullable bool
	Default  string // SQL literal from the default= tag option

	index []int // field index in the struct, for reflect.Value.FieldByIndex
}

// Schema is the table mapping derived from a model type.
// It is immutable once derived.
type Schema struct {
	Table      string
	Columns    []Column
	PrimaryKey string // empty when the model declares no primary key
	DDL        string

	byName map[string]int
}

// Column returns the named column.
func (s *Schema) Column(name string) (Column, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Column{}, false
	}
	return s.Columns[i], true
}

// HasColumn reports whether the model declares the column.
func (s *Schema) HasColumn(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// ColumnNames returns the column names in declaration order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Tabler is implemented by models that override the default table name.
type Tabler interface {
	TableName() string
}

// reIdentifier matches the names we are willing to interpolate into SQL.
var reIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reDefault matches the literals accepted by the default= tag option.
var reDefault = regexp.MustCompile(`(?i)^(-?[0-9]+(\.[0-9]+)?|'[^']*'|NULL|TRUE|FALSE|CURRENT_TIMESTAMP|CURRENT_DATE|CURRENT_TIME)$`)

// reserved column names alias the row identity.
var reserved = map[string]bool{"rowid": true, "_rowid_": true, "oid": true, rowidColumn: true}

var (
	timeType  = reflect.TypeOf(time.Time{})
	bytesType = reflect.TypeOf([]byte(nil))
)

// fieldMapper reads db tags; untagged fields map to their lower-cased name.
var fieldMapper = reflectx.NewMapperFunc("db", strings.ToLower)

// DeriveSchema derives the schema for the model type M.
func DeriveSchema[M any]() (*Schema, error) {
	return deriveSchema(reflect.TypeFor[M]())
}

// deriveSchema builds the table mapping for a struct type.
// It has no side effects; callers cache the result.
func deriveSchema(t reflect.Type) (*Schema, error) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %v is not a struct", ErrSchemaDefinition, t)
	}

	s := &Schema{
		Table:  tableName(t),
		byName: make(map[string]int),
	}
	if !reIdentifier.MatchString(s.Table) {
		return nil, fmt.Errorf("%w: %s: invalid table name %q", ErrSchemaDefinition, t.Name(), s.Table)
	}

	for _, fi := range mappedFields(fieldMapper.TypeMap(t)) {
		name := fi.Name
		if !reIdentifier.MatchString(name) {
			return nil, fmt.Errorf("%w: %s.%s: invalid column name %q", ErrSchemaDefinition, t.Name(), fi.Field.Name, name)
		}
		if reserved[strings.ToLower(name)] {
			return nil, fmt.Errorf("%w: %s.%s: column name %q is reserved", ErrSchemaDefinition, t.Name(), fi.Field.Name, name)
		}
		if _, ok := s.byName[name]; ok {
			return nil, fmt.Errorf("%w: %s: duplicate column %q", ErrSchemaDefinition, t.Name(), name)
		}

		ft, nullable, ok := fieldType(fi.Field.Type)
		if !ok {
			return nil, fmt.Errorf("%w: field %q of model %q is of unsupported type %q", ErrSchemaDefinition, fi.Field.Name, t.Name(), fi.Field.Type)
		}

		col := Column{
			Name:     name,
			Type:     ft,
			Nullable: nullable,
			index:    fi.Index,
		}
		opts := make([]string, 0, len(fi.Options))
		for opt := range fi.Options {
			opts = append(opts, opt)
		}
		slices.Sort(opts)
		for _, opt := range opts {
			switch strings.ToLower(strings.TrimSpace(opt)) {
			case "pk", "primary", "primary_key":
				if s.PrimaryKey != "" {
					return nil, fmt.Errorf("%w: %s: more than one field defined as primary (%q, %q)", ErrSchemaDefinition, t.Name(), s.PrimaryKey, name)
				}
				col.Primary = true
				s.PrimaryKey = name
			case "unique":
				col.Unique = true
			case "default":
				def := strings.TrimSpace(fi.Options[opt])
				if !reDefault.MatchString(def) {
					return nil, fmt.Errorf("%w: %s.%s: invalid default %q", ErrSchemaDefinition, t.Name(), fi.Field.Name, def)
				}
				col.Default = def
			case "":
			default:
				return nil, fmt.Errorf("%w: %s.%s: unknown tag option %q", ErrSchemaDefinition, t.Name(), fi.Field.Name, opt)
			}
		}

		s.byName[name] = len(s.Columns)
		s.Columns = append(s.Columns, col)
	}

	if len(s.Columns) == 0 {
		return nil, fmt.Errorf("%w: %s has no columns", ErrSchemaDefinition, t.Name())
	}

	s.DDL = createTableStmt(s)
	return s, nil
}

// tableName returns the override from TableName, or the lower-cased type name.
func tableName(t reflect.Type) string {
	if tb, ok := reflect.New(t).Interface().(Tabler); ok {
		return tb.TableName()
	}
	return strings.ToLower(t.Name())
}

// mappedFields returns the fields that become columns, in declaration order:
// fields of the struct and fields promoted from embedded structs. Embedded
// pointers may be nil and are not followed; neither are the insides of
// struct-typed fields such as time.Time.
func mappedFields(sm *reflectx.StructMap) []*reflectx.FieldInfo {
	var fields []*reflectx.FieldInfo
	for _, fi := range sm.Index {
		if fi.Embedded || !promoted(sm, fi) {
			continue
		}
		fields = append(fields, fi)
	}
	slices.SortFunc(fields, func(a, b *reflectx.FieldInfo) int {
		return slices.Compare(a.Index, b.Index)
	})
	return fields
}

func promoted(sm *reflectx.StructMap, fi *reflectx.FieldInfo) bool {
	for p := fi.Parent; p != nil && p != sm.Tree; p = p.Parent {
		if !p.Embedded || p.Field.Type.Kind() == reflect.Pointer {
			return false
		}
	}
	return true
}

// fieldType maps a Go type onto the supported type table.
func fieldType(t reflect.Type) (ft FieldType, nullable, ok bool) {
	if t.Kind() == reflect.Pointer {
		nullable = true
		t = t.Elem()
	}
	switch {
	case t == timeType:
		return Datetime, nullable, true
	case t == bytesType:
		return Blob, nullable, true
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return Integer, nullable, true
	case reflect.Float32, reflect.Float64:
		return Real, nullable, true
	case reflect.String:
		return Text, nullable, true
	case reflect.Bool:
		return Boolean, nullable, true
	}
	return 0, false, false
}
