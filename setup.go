// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package ardilla

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// AppliedMigration records a migration script applied by Setup.
type AppliedMigration struct {
	ID        int64     `db:"id,pk"`
	Comment   string    `db:"comment"`
	Path      string    `db:"path,unique"`
	AppliedAt time.Time `db:"applied_at"`
}

// migrationsTable records applied migration scripts.
const migrationsTable = "ardilla_migrations"

func (AppliedMigration) TableName() string { return migrationsTable }

// DatabaseStatus describes the current state of a database.
type DatabaseStatus struct {
	Tables        []string
	Applied       []AppliedMigration
	Pending       []string
	IsInitialized bool
}

// migrationScript represents a single migration file.
type migrationScript struct {
	ID      int64
	Comment string
	Path    string
}

// reMigrationFile matches YYYYMMDDHHMMSS_comment.sql
var reMigrationFile = regexp.MustCompile(`^(\d{14})_(.+)\.sql$`)

// Register derives the schemas of the given models so that Setup creates
// their tables. Models are struct values or pointers to structs.
func (e *Engine) Register(models ...any) error {
	for _, m := range models {
		if _, err := e.schemaFor(reflect.TypeOf(m)); err != nil {
			return err
		}
	}
	return nil
}

// schemaFor returns the cached schema for t, deriving it on first use.
func (e *Engine) schemaFor(t reflect.Type) (*Schema, error) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.schemas[t]; ok {
		return s, nil
	}
	s, err := deriveSchema(t)
	if err != nil {
		return nil, err
	}
	e.schemas[t] = s
	e.known = append(e.known, s)
	return s, nil
}

// Setup creates the tables of every registered model that have not been
// created by this Engine yet, then applies pending migration scripts.
// It is safe to call more than once.
func (e *Engine) Setup(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.setupTimeout)
	defer cancel()

	e.mu.Lock()
	var pending []*Schema
	for _, s := range e.known {
		if !e.applied[s.DDL] {
			pending = append(pending, s)
		}
	}
	e.mu.Unlock()

	if len(pending) != 0 {
		err := e.withConn(ctx, func(conn Conn) error {
			for _, s := range pending {
				if err := e.withCursor(ctx, conn, Statement{Query: s.DDL}, nil); err != nil {
					return fmt.Errorf("create %s: %w", s.Table, err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		e.markApplied(pending...)
	}

	if e.migrations == nil {
		return nil
	}
	return e.migrate(ctx)
}

// ensureTable creates the table for s unless this Engine already did.
func (e *Engine) ensureTable(ctx context.Context, s *Schema) error {
	e.mu.Lock()
	done := e.applied[s.DDL]
	e.mu.Unlock()
	if done {
		return nil
	}
	if err := e.exec(ctx, Statement{Query: s.DDL}); err != nil {
		return fmt.Errorf("create %s: %w", s.Table, err)
	}
	e.markApplied(s)
	return nil
}

func (e *Engine) markApplied(schemas ...*Schema) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range schemas {
		if !e.applied[s.DDL] {
			e.applied[s.DDL] = true
			e.logger.Info("table ready", "table", s.Table)
		}
	}
}

// migrate applies the migration scripts that are not recorded yet.
func (e *Engine) migrate(ctx context.Context) error {
	e.logger.Debug("starting migration")

	scripts, err := listMigrationFiles(e.migrations, e.logger)
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	if len(scripts) == 0 {
		e.logger.Debug("no migrations to apply")
		return nil
	}

	history, err := CrudFor[AppliedMigration](ctx, e)
	if err != nil {
		return err
	}
	applied, err := history.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("fetch applied: %w", err)
	}
	appliedPaths := make(map[string]bool, len(applied))
	for _, a := range applied {
		appliedPaths[a.Path] = true
	}

	now := time.Now().UTC()
	for _, s := range scripts {
		if appliedPaths[s.Path] {
			continue
		}
		e.logger.Info("applying migration", "path", s.Path)
		if err := e.applyMigration(ctx, history.schema, s, now); err != nil {
			return fmt.Errorf("apply %s: %w", s.Path, err)
		}
	}
	return nil
}

// applyMigration runs one script and records it in the same transaction.
func (e *Engine) applyMigration(ctx context.Context, logSchema *Schema, s migrationScript, now time.Time) error {
	sqlBytes, err := fs.ReadFile(e.migrations, s.Path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	record := &AppliedMigration{ID: s.ID, Comment: s.Comment, Path: s.Path, AppliedAt: now}
	insert := insertStmt(logSchema.Table, logSchema.ColumnNames(), toValues(logSchema, record), false, false)

	return e.withConn(ctx, func(conn Conn) error {
		if err := e.withCursor(ctx, conn, Statement{Query: string(sqlBytes)}, nil); err != nil {
			return fmt.Errorf("exec: %w", err)
		}
		if err := e.withCursor(ctx, conn, insert, nil); err != nil {
			return fmt.Errorf("record: %w", err)
		}
		return nil
	})
}

// status reports the tables and migrations of the database.
func (e *Engine) status(ctx context.Context) (*DatabaseStatus, error) {
	status := &DatabaseStatus{}

	err := e.withConn(ctx, func(conn Conn) error {
		stmt := Statement{
			Query: `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name;`,
			Rows:  true,
		}
		return e.withCursor(ctx, conn, stmt, func(cur Cursor) error {
			rows, err := cur.FetchAll(ctx)
			if err != nil {
				return err
			}
			for _, row := range rows {
				if name, ok := row["name"].(string); ok {
					status.Tables = append(status.Tables, name)
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	status.IsInitialized = len(status.Tables) != 0

	var hasLog bool
	for _, name := range status.Tables {
		hasLog = hasLog || name == migrationsTable
	}
	if hasLog {
		history, err := CrudFor[AppliedMigration](ctx, e)
		if err != nil {
			return nil, err
		}
		applied, err := history.GetMany(ctx, Query{OrderBy: []Order{Asc("path")}})
		if err != nil {
			return nil, err
		}
		for _, a := range applied {
			status.Applied = append(status.Applied, *a)
		}
	}

	if e.migrations != nil {
		scripts, err := listMigrationFiles(e.migrations, e.logger)
		if err != nil {
			return nil, err
		}
		appliedPaths := make(map[string]bool)
		for _, a := range status.Applied {
			appliedPaths[a.Path] = true
		}
		for _, s := range scripts {
			if !appliedPaths[s.Path] {
				status.Pending = append(status.Pending, s.Path)
			}
		}
	}

	return status, nil
}

// listMigrationFiles reads migration scripts from the filesystem.
// Returns scripts sorted in lexicographic order by path.
func listMigrationFiles(migrationsFS fs.FS, logger *slog.Logger) ([]migrationScript, error) {
	entries, err := fs.ReadDir(migrationsFS, ".")
	if err != nil {
		return nil, err
	}

	var scripts []migrationScript
	seenIDs := make(map[int64]string)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		matches := reMigrationFile.FindStringSubmatch(name)
		if matches == nil {
			logger.Debug("skipping non-migration file", "name", name)
			continue
		}

		id, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid migration id in %q: %w", name, err)
		}
		if existing, ok := seenIDs[id]; ok {
			return nil, fmt.Errorf("duplicate migration ID %d: %q and %q", id, existing, name)
		}
		seenIDs[id] = name

		scripts = append(scripts, migrationScript{ID: id, Comment: matches[2], Path: name})
	}

	sort.Slice(scripts, func(i, j int) bool {
		return scripts[i].Path < scripts[j].Path
	})

	return scripts, nil
}
