// Package store is the normalized metadata store shared by every repository
// source, the crawl coordinator and the exporters.
//
// Writes are autocommitted statement by statement on both backends. A
// record write is best effort across its child tables: a failing child
// operation is logged and skipped, and readers must tolerate a record whose
// children are only partially replaced.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/mkoziy/harvester/internal/config"
	"github.com/mkoziy/harvester/internal/database"
	"github.com/mkoziy/harvester/internal/migrations"
)

var (
	// ErrNotFound is returned by lookups that match no row.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRecord rejects a record without a local identifier.
	ErrInvalidRecord = errors.New("record has no identifier")
)

type Store struct {
	db      *bun.DB
	backend string
	log     *zap.Logger
	now     func() time.Time
	dir     string
}

type Option func(*Store)

// WithClock replaces time.Now for modified and crawl timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMigrationsDir reads migration scripts from dir instead of the
// embedded set.
func WithMigrationsDir(dir string) Option {
	return func(s *Store) { s.dir = dir }
}

// New wraps an already opened database. It does not migrate.
func New(db *bun.DB, backend string, log *zap.Logger, opts ...Option) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{db: db, backend: backend, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to the configured backend and brings its schema up to date.
// Any migration failure closes the connection and is returned; callers must
// treat it as fatal before harvesting starts.
func Open(ctx context.Context, cfg config.DB, log *zap.Logger, opts ...Option) (*Store, error) {
	db, err := database.NewDB(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.MigrationsDir != "" {
		opts = append([]Option{WithMigrationsDir(cfg.MigrationsDir)}, opts...)
	}
	s := New(db, cfg.Type, log, opts...)
	if _, err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies pending migration scripts and returns the schema version.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	m, err := migrations.New(s.db, s.backend, s.dir, s.log)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", migrations.ErrMigrationFailed, err)
	}
	return m.Migrate(ctx)
}

func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	m, err := migrations.New(s.db, s.backend, s.dir, s.log)
	if err != nil {
		return 0, err
	}
	return m.Version(ctx)
}

func (s *Store) Backend() string { return s.backend }

func (s *Store) Close() error {
	return s.db.Close()
}

// isUniqueViolation matches duplicate key errors from either backend.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
