// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package ardilla

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// Engine owns the store and the per-model caches: derived schemas, the set of
// table definitions already applied, and one Crud per model type.
type Engine struct {
	store        Store
	logger       *slog.Logger
	migrations   fs.FS
	setupTimeout time.Duration

	mu      sync.Mutex
	closed  bool
	schemas map[reflect.Type]*Schema
	known   []*Schema       // in registration order, applied by Setup
	applied map[string]bool // DDL already executed against the store
	cruds   map[reflect.Type]any
}

// NewEngine returns an Engine over an arbitrary store.
// Open is the usual way to get one backed by SQLite.
func NewEngine(store Store, cfg Config) *Engine {
	cfg = cfg.defaults()
	return &Engine{
		store:        store,
		logger:       cfg.Logger,
		migrations:   cfg.Migrations,
		setupTimeout: cfg.SetupTimeout,
		schemas:      make(map[reflect.Type]*Schema),
		applied:      make(map[string]bool),
		cruds:        make(map[reflect.Type]any),
	}
}

// Open opens a database, registers the models and runs Setup.
// For in-memory databases, it creates a new database private to the Engine.
// For persistent databases, it opens an existing file (use Create for new files).
func Open(ctx context.Context, cfg Config, models ...any) (*Engine, error) {
	cfg = cfg.defaults()

	if cfg.isMemory() {
		return openMemory(ctx, cfg, models)
	}
	return openPersistent(ctx, cfg, models)
}

// Create creates a new persistent database file, creates the model tables and
// applies migrations. Returns an error if the file already exists.
func Create(ctx context.Context, cfg Config, models ...any) error {
	cfg = cfg.defaults()

	if cfg.isMemory() {
		return fmt.Errorf("Create requires a persistent path, not :memory:")
	}

	if err := validatePersistentPath(cfg.Path); err != nil {
		return err
	}

	if fileExists(cfg.Path) {
		return fmt.Errorf("%s: file already exists", cfg.Path)
	}

	cfg.Logger.Info("creating database", "path", cfg.Path)

	cfg.SkipSetup = false
	e, err := openAndSetup(ctx, cfg, persistentPragmas(!cfg.DisableForeignKeys), "", models)
	if err != nil {
		return err
	}
	return e.Close()
}

// Delete removes a database file and its WAL sidecar files.
// Returns nil if the file does not exist.
func Delete(ctx context.Context, path string) error {
	if isMemoryPath(path) {
		return fmt.Errorf("cannot delete in-memory database")
	}

	if err := validatePersistentPath(path); err != nil {
		return err
	}

	if !fileExists(path) {
		return nil
	}

	var result *multierror.Error
	for _, suffix := range []string{"", "-shm", "-wal"} {
		name := path + suffix
		if !fileExists(name) {
			continue
		}
		if !isRegularFile(name) {
			result = multierror.Append(result, fmt.Errorf("%s: not a regular file", name))
			continue
		}
		if err := os.Remove(name); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}

	if fileExists(path) {
		return fmt.Errorf("%s: still exists after delete", path)
	}

	return nil
}

// Status describes the tables and migrations of a persistent database
// without modifying it.
func Status(ctx context.Context, cfg Config) (*DatabaseStatus, error) {
	cfg = cfg.defaults()
	cfg.SkipSetup = true

	if cfg.isMemory() {
		return nil, fmt.Errorf("cannot check status of in-memory database")
	}

	if !fileExists(cfg.Path) {
		return &DatabaseStatus{IsInitialized: false}, nil
	}

	e, err := openPersistent(ctx, cfg, nil)
	if err != nil {
		return nil, err
	}
	defer e.Close()

	return e.status(ctx)
}

// openMemory opens an in-memory database with a unique name, so that two
// Engines in the same process never share tables.
func openMemory(ctx context.Context, cfg Config, models []any) (*Engine, error) {
	if cfg.isProduction() && !cfg.AllowMemoryInProduction {
		return nil, fmt.Errorf("in-memory database not allowed in production (%s=production)", cfg.ProductionEnvVar)
	}

	name := "ardilla-" + uuid.NewString()
	cfg.Logger.Info("DB mode: in-memory", "name", name)
	return openAndSetup(ctx, cfg, memoryPragmas(!cfg.DisableForeignKeys), name, models)
}

// openPersistent opens an existing persistent database.
func openPersistent(ctx context.Context, cfg Config, models []any) (*Engine, error) {
	if err := validatePersistentPath(cfg.Path); err != nil {
		return nil, err
	}

	if !fileExists(cfg.Path) {
		return nil, fmt.Errorf("%s: database file not found (use Create to make a new database)", cfg.Path)
	}

	cfg.Logger.Info("DB mode: persistent", "path", cfg.Path)
	return openAndSetup(ctx, cfg, persistentPragmas(!cfg.DisableForeignKeys), "", models)
}

// openAndSetup opens a database with the given pragmas, registers the models
// and runs Setup unless it is disabled.
func openAndSetup(ctx context.Context, cfg Config, pragmas []pragma, memName string, models []any) (*Engine, error) {
	dsn := buildDSN(cfg.Path, memName, pragmas)
	cfg.Logger.Debug("opening database", "dsn", dsn)

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	// Ensure cleanup on error
	success := false
	defer func() {
		if !success {
			db.Close()
		}
	}()

	// SQLite works best with limited connections; the in-memory database
	// also lives only as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}

	e := NewEngine(newSQLStore(db), cfg)
	if err := e.Register(models...); err != nil {
		return nil, err
	}

	if !cfg.SkipSetup {
		if err := e.Setup(ctx); err != nil {
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	success = true
	return e, nil
}

// Close releases the store. Cruds bound to the Engine fail with
// ErrMissingEngine afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.cruds = make(map[reflect.Type]any)
	e.logger.Debug("closing engine")
	return e.store.Close()
}

// connect acquires a connection from the store.
func (e *Engine) connect(ctx context.Context) (Conn, error) {
	if e == nil || e.store == nil {
		return nil, ErrMissingEngine
	}
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("%w: engine is closed", ErrMissingEngine)
	}
	return e.store.Connect(ctx)
}

// withConn runs fn on an acquired connection and commits if fn succeeds.
// The connection is released on every path; release errors are merged into
// the returned error.
func (e *Engine) withConn(ctx context.Context, fn func(Conn) error) (err error) {
	conn, err := e.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			if err == nil {
				err = cerr
			} else {
				err = multierror.Append(err, cerr)
			}
		}
	}()

	if err := fn(conn); err != nil {
		return err
	}
	return conn.Commit()
}

// withCursor executes stmt on conn and runs fn on the resulting cursor,
// closing the cursor before returning.
func (e *Engine) withCursor(ctx context.Context, conn Conn, stmt Statement, fn func(Cursor) error) (err error) {
	e.logQuery(stmt)
	cur, err := conn.Execute(ctx, stmt)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cur.Close(); cerr != nil {
			if err == nil {
				err = cerr
			} else {
				err = multierror.Append(err, cerr)
			}
		}
	}()
	if fn == nil {
		return nil
	}
	return fn(cur)
}

// exec runs a statement that returns no rows in its own transaction.
func (e *Engine) exec(ctx context.Context, stmt Statement) error {
	return e.withConn(ctx, func(conn Conn) error {
		return e.withCursor(ctx, conn, stmt, nil)
	})
}

func (e *Engine) logQuery(stmt Statement) {
	e.logger.Debug("query", "sql", strings.TrimSpace(stmt.Query), "args", len(stmt.Args))
}

// validatePersistentPath checks that a path is valid for a persistent database.
func validatePersistentPath(path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("%s: persistent database path must be absolute", path)
	}
	if filepath.Ext(path) != ".db" {
		return fmt.Errorf("%s: expected .db extension", path)
	}
	if isDirectory(path) {
		return fmt.Errorf("%s: path is a directory", path)
	}
	dir := filepath.Dir(path)
	if !isDirectory(dir) {
		return fmt.Errorf("%s: parent directory does not exist", dir)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() || info.IsDir()
}

func isDirectory(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
