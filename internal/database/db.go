package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/mkoziy/harvester/internal/config"
)

// Backend types accepted in the db.type setting.
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// ErrUnsupportedBackend is returned for any db.type other than sqlite or postgres.
var ErrUnsupportedBackend = errors.New("database type must be sqlite or postgres")

const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 2
	defaultConnMaxLifetime = 5 * time.Minute
	defaultSSLMode         = "disable"
	defaultConnectTimeout  = 10 * time.Second
)

// NewDB opens the configured backend with sane defaults and optional debug logging.
func NewDB(cfg config.DB) (*bun.DB, error) {
	var (
		db  *bun.DB
		err error
	)
	switch cfg.Type {
	case TypeSQLite:
		db, err = newSQLite(cfg)
	case TypePostgres:
		db, err = newPostgres(cfg)
	default:
		return nil, fmt.Errorf("%w (got %q)", ErrUnsupportedBackend, cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db, nil
}

func newSQLite(cfg config.DB) (*bun.DB, error) {
	if cfg.DBName == "" {
		return nil, errors.New("sqlite requires db.dbname")
	}
	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Every writer shares one connection.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	// Apply recommended pragmas for write-ahead logging and performance.
	if _, err := db.Exec(`
        PRAGMA journal_mode = WAL;
        PRAGMA synchronous = NORMAL;
        PRAGMA foreign_keys = ON;
        PRAGMA busy_timeout = 5000;
        PRAGMA cache_size = -64000;
    `); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite pragmas: %w", err)
	}

	if runtime.GOOS != "windows" && cfg.DBName != ":memory:" {
		_ = os.Chmod(cfg.DBName, 0o664)
	}
	return db, nil
}

func newPostgres(cfg config.DB) (*bun.DB, error) {
	if cfg.Host == "" || cfg.DBName == "" || cfg.User == "" {
		return nil, errors.New("postgres requires db.host, db.dbname and db.user")
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = defaultSSLMode
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		cfg.Host, port, cfg.User, cfg.Password, cfg.DBName, sslMode,
		int(defaultConnectTimeout.Seconds()),
	)
	sqldb, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	open := maxOpenConns(cfg)
	sqldb.SetMaxOpenConns(open)
	sqldb.SetMaxIdleConns(min(open, defaultMaxIdleConns))
	sqldb.SetConnMaxLifetime(defaultConnMaxLifetime)

	if err := sqldb.Ping(); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func maxOpenConns(cfg config.DB) int {
	if cfg.MaxOpenConns > 0 {
		return cfg.MaxOpenConns
	}
	return defaultMaxOpenConns
}
