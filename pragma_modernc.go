// Copyright (c) 2026 Michael D Henderson. All rights reserved.

//go:build !mattn

package ardilla

import (
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// driverName is the database/sql driver registered by modernc.org/sqlite.
const driverName = "sqlite"

// pragma represents a SQLite pragma setting.
type pragma struct {
	name  string
	value string
}

// memoryPragmas are used for in-memory databases.
func memoryPragmas(foreignKeys bool) []pragma {
	return []pragma{
		{name: "foreign_keys", value: onOff(foreignKeys)},
		{name: "busy_timeout", value: "5000"},
		{name: "journal_mode", value: "MEMORY"},
		{name: "synchronous", value: "OFF"},
		{name: "temp_store", value: "MEMORY"},
	}
}

// persistentPragmas are used for durable databases on disk.
func persistentPragmas(foreignKeys bool) []pragma {
	return []pragma{
		{name: "foreign_keys", value: onOff(foreignKeys)},
		{name: "busy_timeout", value: "5000"},
		{name: "journal_mode", value: "WAL"},
		{name: "synchronous", value: "NORMAL"},
		{name: "temp_store", value: "FILE"},
	}
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

// buildDSN constructs a DSN for modernc.org/sqlite:
// file:path?_pragma=name(value)&_pragma=name2(value2)
// An empty memName means path is a file; otherwise the database is a named
// in-memory database private to the engine.
func buildDSN(path, memName string, pragmas []pragma) string {
	var sb strings.Builder

	sep := "?"
	if memName != "" {
		fmt.Fprintf(&sb, "file:%s?mode=memory&cache=shared", memName)
		sep = "&"
	} else {
		sb.WriteString("file:")
		sb.WriteString(path)
	}

	for _, p := range pragmas {
		sb.WriteString(sep)
		fmt.Fprintf(&sb, "_pragma=%s(%s)", p.name, p.value)
		sep = "&"
	}

	return sb.String()
}

// isConstraintViolation reports whether err is a SQLite constraint failure.
func isConstraintViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}
