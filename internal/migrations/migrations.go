// Package migrations applies the numbered SQL scripts of one backend and
// records the applied schema version in the settings table.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/mkoziy/harvester/internal/models"
)

// VersionSetting is the settings row holding the applied schema version.
const VersionSetting = "dbversion"

//go:embed sql
var embedded embed.FS

// ErrMigrationFailed wraps any failure of a script or its version update.
var ErrMigrationFailed = errors.New("migration failed")

// Script is one numbered migration file.
type Script struct {
	Version int
	Name    string
	path    string
}

type Migrator struct {
	db   *bun.DB
	fsys fs.FS
	log  *zap.Logger
}

// New returns a migrator for backend ("sqlite" or "postgres"). When dir is
// set, scripts are read from dir on disk instead of the embedded set.
func New(db *bun.DB, backend, dir string, log *zap.Logger) (*Migrator, error) {
	var fsys fs.FS
	if dir != "" {
		fsys = os.DirFS(dir)
	} else {
		sub, err := fs.Sub(embedded, path.Join("sql", backend))
		if err != nil {
			return nil, err
		}
		fsys = sub
	}
	if _, err := fs.Stat(fsys, "."); err != nil {
		return nil, fmt.Errorf("migrations for %q: %w", backend, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Migrator{db: db, fsys: fsys, log: log}, nil
}

// Scripts lists every script in ascending version order.
func (m *Migrator) Scripts() ([]Script, error) {
	entries, err := fs.ReadDir(m.fsys, ".")
	if err != nil {
		return nil, err
	}
	var scripts []Script
	seen := make(map[int]string)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		version, err := parseVersion(e.Name())
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s", version, prev, e.Name())
		}
		seen[version] = e.Name()
		scripts = append(scripts, Script{Version: version, Name: e.Name(), path: e.Name()})
	}
	sort.Slice(scripts, func(i, j int) bool { return scripts[i].Version < scripts[j].Version })
	return scripts, nil
}

func parseVersion(name string) (int, error) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		prefix = strings.TrimSuffix(name, ".sql")
	}
	v, err := strconv.Atoi(prefix)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("migration %s: name must start with a positive number", name)
	}
	return v, nil
}

// EnsureSettings creates the settings table when it does not exist yet.
func (m *Migrator) EnsureSettings(ctx context.Context) error {
	_, err := m.db.NewCreateTable().Model((*models.Setting)(nil)).IfNotExists().Exec(ctx)
	return err
}

// Version returns the applied schema version, 0 on a fresh database.
func (m *Migrator) Version(ctx context.Context) (int, error) {
	var value string
	err := m.db.NewSelect().
		Model((*models.Setting)(nil)).
		Column("setting_value").
		Where("setting_name = ?", VersionSetting).
		Scan(ctx, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("settings %s: %w", VersionSetting, err)
	}
	return v, nil
}

// Migrate applies every script newer than the stored version. Each script
// runs in its own transaction together with the version update, so a
// failure leaves the version at the last script that succeeded.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	if err := m.EnsureSettings(ctx); err != nil {
		return 0, fmt.Errorf("%w: create settings table: %w", ErrMigrationFailed, err)
	}
	current, err := m.Version(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: read schema version: %w", ErrMigrationFailed, err)
	}
	scripts, err := m.Scripts()
	if err != nil {
		return current, fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	for _, s := range scripts {
		if s.Version <= current {
			continue
		}
		if err := m.apply(ctx, s, current); err != nil {
			return current, fmt.Errorf("%w: %s: %w", ErrMigrationFailed, s.Name, err)
		}
		m.log.Info("applied migration", zap.String("script", s.Name), zap.Int("version", s.Version))
		current = s.Version
	}
	return current, nil
}

func (m *Migrator) apply(ctx context.Context, s Script, current int) error {
	body, err := fs.ReadFile(m.fsys, s.path)
	if err != nil {
		return err
	}
	return m.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, stmt := range splitStatements(string(body)) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return setVersion(ctx, tx, current, s.Version)
	})
}

func setVersion(ctx context.Context, tx bun.Tx, from, to int) error {
	value := strconv.Itoa(to)
	if from == 0 {
		_, err := tx.NewInsert().
			Model(&models.Setting{Name: VersionSetting, Value: value}).
			Exec(ctx)
		return err
	}
	_, err := tx.NewUpdate().
		Model((*models.Setting)(nil)).
		Set("setting_value = ?", value).
		Where("setting_name = ?", VersionSetting).
		Exec(ctx)
	return err
}

// splitStatements breaks a script on semicolons that end a line, dropping
// "--" comment lines. Scripts must not put semicolons at line ends inside
// string literals.
func splitStatements(script string) []string {
	var (
		stmts []string
		cur   strings.Builder
	)
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			stmts = append(stmts, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		stmts = append(stmts, rest)
	}
	return stmts
}
