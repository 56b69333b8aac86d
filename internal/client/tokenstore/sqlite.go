package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/songbook/songbook-session/internal/client/migrations"
	"github.com/songbook/songbook-session/internal/common"
	"github.com/songbook/songbook-session/internal/dbx"
	"github.com/songbook/songbook-session/internal/logging"

	_ "modernc.org/sqlite"
)

// RunMigrations applies the embedded token store migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.FS)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("migrate token store: %w", err)
	}
	return nil
}

// SQLiteStore keeps the token in a local SQLite database. Every write bumps
// a version counter; a poll watcher compares it against the last version
// seen and reports foreign writes to subscribers.
type SQLiteStore struct {
	db     *sql.DB
	ownsDB bool
	key    string
	origin string
	log    logging.Logger
	subs   subscribers

	mu          sync.Mutex
	lastVersion int64

	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// OpenSQLite opens (or creates) the database at dsn, applies migrations and
// starts the change watcher with the given poll interval.
func OpenSQLite(ctx context.Context, dsn, key string, poll time.Duration, log logging.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s, err := NewSQLiteStore(ctx, db, key, poll, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// NewSQLiteStore wraps an already migrated database.
func NewSQLiteStore(ctx context.Context, db *sql.DB, key string, poll time.Duration, log logging.Logger) (*SQLiteStore, error) {
	if poll <= 0 {
		return nil, errors.New("poll interval must be positive")
	}
	s := &SQLiteStore{
		db:     db,
		key:    key,
		origin: newOrigin(),
		done:   make(chan struct{}),
	}
	s.log = log.With("store", "sqlite", "origin", s.origin)

	row, err := s.readRow(ctx, db)
	if err != nil {
		return nil, err
	}
	s.lastVersion = row.version

	watchCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.watch(watchCtx, poll)

	return s, nil
}

func (s *SQLiteStore) Origin() string { return s.origin }

type tokenRow struct {
	value   sql.NullString
	origin  string
	version int64
}

func (s *SQLiteStore) readRow(ctx context.Context, q dbx.DBTX) (tokenRow, error) {
	var r tokenRow
	err := q.QueryRowContext(ctx,
		`SELECT value, origin, version FROM token_store WHERE key = ?`, s.key,
	).Scan(&r.value, &r.origin, &r.version)
	if errors.Is(err, sql.ErrNoRows) {
		return tokenRow{}, nil
	}
	if err != nil {
		return tokenRow{}, fmt.Errorf("failed to read token_store[%s]: %w", s.key, err)
	}
	return r, nil
}

func (s *SQLiteStore) Get(ctx context.Context) (string, bool, error) {
	r, err := s.readRow(ctx, s.db)
	if err != nil {
		return "", false, err
	}
	if !r.value.Valid {
		return "", false, nil
	}
	return r.value.String, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, token string) error {
	if token == "" {
		return common.ErrEmptyToken
	}
	err := s.write(ctx, `
		INSERT INTO token_store (key, value, origin, version, updated_at) VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			origin = excluded.origin,
			version = token_store.version + 1,
			updated_at = excluded.updated_at
		WHERE token_store.value IS NOT excluded.value
	`, s.key, token, s.origin, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set token_store[%s]: %w", s.key, err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	err := s.write(ctx, `
		UPDATE token_store
		SET value = NULL, origin = ?, version = version + 1, updated_at = ?
		WHERE key = ? AND value IS NOT NULL
	`, s.origin, time.Now().UTC(), s.key)
	if err != nil {
		return fmt.Errorf("failed to clear token_store[%s]: %w", s.key, err)
	}
	return nil
}

// write runs a mutation and reads back the resulting version in the same
// transaction, so the watcher does not mistake our own write for news.
func (s *SQLiteStore) write(ctx context.Context, query string, args ...any) error {
	var version int64
	err := dbx.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
		r, err := s.readRow(ctx, tx)
		if err != nil {
			return err
		}
		version = r.version
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if version > s.lastVersion {
		s.lastVersion = version
	}
	s.mu.Unlock()
	return nil
}

func (s *SQLiteStore) Subscribe(fn func(Change)) func() {
	return s.subs.add(fn)
}

// watch polls the version counter until ctx is done.
func (s *SQLiteStore) watch(ctx context.Context, interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.poll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// poll reports at most one change per tick; several foreign writes between
// ticks coalesce into the latest state.
func (s *SQLiteStore) poll(ctx context.Context) {
	r, err := s.readRow(ctx, s.db)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn(ctx, "token store poll failed", "error", err)
		}
		return
	}

	s.mu.Lock()
	if r.version <= s.lastVersion {
		s.mu.Unlock()
		return
	}
	s.lastVersion = r.version
	s.mu.Unlock()

	if r.origin == s.origin {
		return
	}

	c := Change{Present: r.value.Valid, Origin: r.origin}
	s.log.Debug(ctx, "foreign token change observed", "present", c.Present, "version", r.version)
	s.subs.notify(c)
}

// Close stops the watcher and, when the store opened the database itself,
// closes it.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	<-s.done

	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}
