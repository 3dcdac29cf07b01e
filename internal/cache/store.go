// Package cache implements the kiosk's durable resource cache: one opaque
// payload per resource kind in an embedded SQLite database. The sync engine
// overwrites entries wholesale; the UI layer reads them concurrently. Cache
// contents survive engine restarts.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

// ErrNotCached is returned by Get for a resource that has never been synced.
var ErrNotCached = errors.New("cache: resource not cached")

// walJournalSizeLimit caps the WAL file at 64 MiB.
const walJournalSizeLimit = 67108864

// Entry describes one cached resource for freshness reporting.
type Entry struct {
	Key     string
	SavedAt time.Time
	Size    int64
}

// Store is the SQLite-backed resource cache. Writes are whole-value upserts
// keyed by resource kind; last writer wins by design, so no locking beyond
// the driver's is needed.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	// nowFunc is injectable for freshness tests.
	nowFunc func() time.Time

	stmts struct {
		save, get, entries, clear, clearAll *sql.Stmt
	}
}

// Open creates a Store at dbPath, applying migrations and preparing the
// repeated statements. Use ":memory:" for tests.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("opening resource cache", slog.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cache: open sqlite: %w", err)
	}

	if err := setPragmas(context.Background(), db); err != nil {
		db.Close()

		return nil, err
	}

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()

		return nil, err
	}

	s := &Store{db: db, logger: logger, nowFunc: time.Now}

	if err := s.prepareStatements(context.Background()); err != nil {
		db.Close()

		return nil, fmt.Errorf("cache: prepare statements: %w", err)
	}

	return s, nil
}

// setPragmas configures SQLite for WAL mode and safety.
func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit),
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("cache: set pragma %q: %w", p, err)
		}
	}

	return nil
}

func (s *Store) prepareStatements(ctx context.Context) error {
	var err error

	if s.stmts.save, err = s.db.PrepareContext(ctx,
		`INSERT INTO resources (key, payload, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`); err != nil {
		return err
	}

	if s.stmts.get, err = s.db.PrepareContext(ctx,
		`SELECT payload FROM resources WHERE key = ?`); err != nil {
		return err
	}

	if s.stmts.entries, err = s.db.PrepareContext(ctx,
		`SELECT key, saved_at, length(payload) FROM resources ORDER BY key`); err != nil {
		return err
	}

	if s.stmts.clear, err = s.db.PrepareContext(ctx,
		`DELETE FROM resources WHERE key = ?`); err != nil {
		return err
	}

	if s.stmts.clearAll, err = s.db.PrepareContext(ctx,
		`DELETE FROM resources`); err != nil {
		return err
	}

	return nil
}

// Save upserts the payload for a resource kind, stamping saved_at.
func (s *Store) Save(ctx context.Context, key string, payload []byte) error {
	if _, err := s.stmts.save.ExecContext(ctx, key, payload, s.nowFunc().UnixNano()); err != nil {
		return fmt.Errorf("cache: saving %s: %w", key, err)
	}

	return nil
}

// Get returns the cached payload for a resource kind, or ErrNotCached.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte

	err := s.stmts.get.QueryRowContext(ctx, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cache: %s: %w", key, ErrNotCached)
	}

	if err != nil {
		return nil, fmt.Errorf("cache: reading %s: %w", key, err)
	}

	return payload, nil
}

// Entries returns freshness bookkeeping for every cached resource.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := s.stmts.entries.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("cache: listing entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry

	for rows.Next() {
		var (
			e       Entry
			savedAt int64
		)

		if err := rows.Scan(&e.Key, &savedAt, &e.Size); err != nil {
			return nil, fmt.Errorf("cache: scanning entry: %w", err)
		}

		e.SavedAt = time.Unix(0, savedAt)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cache: iterating entries: %w", err)
	}

	return entries, nil
}

// Clear removes one resource kind from the cache.
func (s *Store) Clear(ctx context.Context, key string) error {
	if _, err := s.stmts.clear.ExecContext(ctx, key); err != nil {
		return fmt.Errorf("cache: clearing %s: %w", key, err)
	}

	return nil
}

// ClearAll empties the cache.
func (s *Store) ClearAll(ctx context.Context) error {
	if _, err := s.stmts.clearAll.ExecContext(ctx); err != nil {
		return fmt.Errorf("cache: clearing all: %w", err)
	}

	return nil
}

// Close releases prepared statements and the database handle.
func (s *Store) Close() error {
	for _, stmt := range []*sql.Stmt{s.stmts.save, s.stmts.get, s.stmts.entries, s.stmts.clear, s.stmts.clearAll} {
		if stmt != nil {
			stmt.Close()
		}
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("cache: closing database: %w", err)
	}

	return nil
}
