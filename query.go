// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package ardilla

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// rowidColumn is the result column that carries the store-native row identity.
// Aliasing it keeps SQLite from renaming it after an INTEGER PRIMARY KEY column.
const rowidColumn = "__rowid__"

// selectPrefix reads the row identity along with every declared column.
const selectPrefix = "SELECT rowid AS " + rowidColumn + ", * FROM "

// Statement is a rendered SQL statement with its positional parameters.
type Statement struct {
	Query string
	Args  []any
	Rows  bool // the statement yields a result set
}

// Order is one ORDER BY term. Direction is ASC or DESC in any case;
// empty means ASC.
type Order struct {
	Column    string
	Direction string
}

// Asc orders by column, ascending.
func Asc(column string) Order { return Order{Column: column, Direction: "ASC"} }

// Desc orders by column, descending.
func Desc(column string) Order { return Order{Column: column, Direction: "DESC"} }

// quote renders a validated identifier. rowid is left bare.
func quote(name string) string {
	if name == "rowid" {
		return name
	}
	return `"` + name + `"`
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quote(n)
	}
	return strings.Join(quoted, ", ")
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// where renders `WHERE ("a" = ? AND "b" = ?)`, or nothing for no columns.
func where(cols []string) string {
	if len(cols) == 0 {
		return ""
	}
	terms := make([]string, len(cols))
	for i, c := range cols {
		terms[i] = quote(c) + " = ?"
	}
	return " WHERE (" + strings.Join(terms, " AND ") + ")"
}

// createTableStmt renders the table definition for a schema.
func createTableStmt(s *Schema) string {
	defs := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		def := quote(c.Name) + " " + c.Type.SQL()
		if c.Primary {
			def += " PRIMARY KEY"
		} else if !c.Nullable {
			def += " NOT NULL"
		}
		if c.Default != "" {
			def += " DEFAULT " + c.Default
		}
		if c.Unique && !c.Primary {
			def += " UNIQUE"
		}
		defs[i] = def
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s);", quote(s.Table), strings.Join(defs, ", "))
}

// insertStmt renders an insert of the given columns.
// With ignore set, conflicts are suppressed; with returning set, the new row
// (and its rowid) is read back.
func insertStmt(table string, cols []string, args []any, ignore, returning bool) Statement {
	var sb strings.Builder
	sb.WriteString("INSERT ")
	if ignore {
		sb.WriteString("OR IGNORE ")
	}
	sb.WriteString("INTO ")
	sb.WriteString(quote(table))
	if len(cols) == 0 {
		sb.WriteString(" DEFAULT VALUES")
	} else {
		fmt.Fprintf(&sb, " (%s) VALUES (%s)", quoteAll(cols), placeholders(len(cols)))
	}
	if returning {
		sb.WriteString(" RETURNING rowid AS " + rowidColumn + ", *")
	}
	sb.WriteString(";")
	return Statement{Query: sb.String(), Args: args, Rows: returning}
}

// pointLookupStmt renders a select for at most one row matching every column.
func pointLookupStmt(table string, cols []string, args []any) Statement {
	q := selectPrefix + quote(table) + where(cols) + " LIMIT 1;"
	return Statement{Query: q, Args: args, Rows: true}
}

// filteredLookupStmt renders a select of every row matching the columns,
// ordered and limited. A limit of zero or less means no limit.
func filteredLookupStmt(table string, cols []string, args []any, orderBy []Order, limit int) (Statement, error) {
	var sb strings.Builder
	sb.WriteString(selectPrefix)
	sb.WriteString(quote(table))
	sb.WriteString(where(cols))

	if len(orderBy) != 0 {
		terms := make([]string, len(orderBy))
		for i, o := range orderBy {
			dir := strings.ToUpper(strings.TrimSpace(o.Direction))
			switch dir {
			case "":
				dir = "ASC"
			case "ASC", "DESC":
			default:
				return Statement{}, fmt.Errorf("%w: order direction %q for %q must be ASC or DESC", ErrBadQuery, o.Direction, o.Column)
			}
			terms[i] = quote(o.Column) + " " + dir
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(terms, ", "))
	}

	params := args
	if limit > 0 {
		sb.WriteString(" LIMIT ?")
		params = append(append([]any(nil), args...), limit)
	}
	sb.WriteString(";")
	return Statement{Query: sb.String(), Args: params, Rows: true}, nil
}

// upsertStmt renders an insert that replaces any conflicting row.
func upsertStmt(table string, cols []string, args []any) Statement {
	q := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s);", quote(table), quoteAll(cols), placeholders(len(cols)))
	return Statement{Query: q, Args: args}
}

// updateStmt renders an update of every column for the row with the given rowid.
func updateStmt(table string, cols []string, args []any, rowid int64) Statement {
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = quote(c) + " = ?"
	}
	q := fmt.Sprintf("UPDATE %s SET %s WHERE rowid = ?;", quote(table), strings.Join(sets, ", "))
	return Statement{Query: q, Args: append(append([]any(nil), args...), rowid)}
}

// matchDeleteStmt renders a delete of every row matching all the columns.
func matchDeleteStmt(table string, cols []string, args []any) Statement {
	return Statement{Query: "DELETE FROM " + quote(table) + where(cols) + ";", Args: args}
}

// deleteByIdentityStmt renders a delete keyed on one identity column:
// equality for a single value, membership for several.
func deleteByIdentityStmt(table, column string, values []any) (Statement, error) {
	ident := quote(column)
	switch len(values) {
	case 0:
		return Statement{}, fmt.Errorf("delete from %s: %w", table, ErrNoOperands)
	case 1:
		q := fmt.Sprintf("DELETE FROM %s WHERE %s = ?;", quote(table), ident)
		return Statement{Query: q, Args: values}, nil
	}
	q, args, err := sqlx.In(fmt.Sprintf("DELETE FROM %s WHERE %s IN (?);", quote(table), ident), values)
	if err != nil {
		return Statement{}, fmt.Errorf("delete from %s: %w", table, err)
	}
	return Statement{Query: q, Args: args}, nil
}
