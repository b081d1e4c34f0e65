// Copyright (c) 2026 Michael D Henderson. All rights reserved.

//go:build mattn

package ardilla

import (
	"fmt"
	"strings"
)

// driverName is the database/sql driver registered by github.com/mattn/go-sqlite3.
// The application imports the driver.
const driverName = "sqlite3"

// pragma represents a SQLite pragma setting.
type pragma struct {
	name  string
	value string
}

// memoryPragmas are used for in-memory databases.
func memoryPragmas(foreignKeys bool) []pragma {
	return []pragma{
		{name: "_foreign_keys", value: zeroOne(foreignKeys)},
		{name: "_busy_timeout", value: "5000"},
		{name: "_journal_mode", value: "MEMORY"},
		{name: "_synchronous", value: "OFF"},
	}
}

// persistentPragmas are used for durable databases on disk.
func persistentPragmas(foreignKeys bool) []pragma {
	return []pragma{
		{name: "_foreign_keys", value: zeroOne(foreignKeys)},
		{name: "_busy_timeout", value: "5000"},
		{name: "_journal_mode", value: "WAL"},
		{name: "_synchronous", value: "NORMAL"},
	}
}

func zeroOne(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// buildDSN constructs a DSN for github.com/mattn/go-sqlite3:
// file:path?_foreign_keys=1&_journal_mode=WAL
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
		fmt.Fprintf(&sb, "%s=%s", p.name, p.value)
		sep = "&"
	}

	return sb.String()
}

// isConstraintViolation reports whether err is a SQLite constraint failure.
// Matched on the message so this build does not link the driver.
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "constraint failed")
}
