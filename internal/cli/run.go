package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/mkoziy/harvester/internal/config"
	"github.com/mkoziy/harvester/internal/coordinator"
	"github.com/mkoziy/harvester/internal/database"
	"github.com/mkoziy/harvester/internal/export"
	"github.com/mkoziy/harvester/internal/lock"
	"github.com/mkoziy/harvester/internal/logging"
	"github.com/mkoziy/harvester/internal/metrics"
	"github.com/mkoziy/harvester/internal/sources"
	"github.com/mkoziy/harvester/internal/store"
)

type Runner struct {
	opts Options
	now  func() time.Time
}

func NewRunner(opts Options) *Runner {
	return &Runner{opts: opts, now: time.Now}
}

// Run executes one harvest and export cycle. The instance lock is taken
// before anything else touches disk and is released on every return path.
func (r *Runner) Run(ctx context.Context) error {
	start := r.now()
	cfg, err := r.config()
	if err != nil {
		return err
	}

	lk, err := lock.Acquire(cfg.Lock.Path)
	if errors.Is(err, lock.ErrLocked) {
		return &ExitError{Code: ExitLocked, Err: fmt.Errorf("another harvester is running (%s)", cfg.Lock.Path)}
	}
	if err != nil {
		return fatal("acquire lock: %w", err)
	}
	defer lk.Release()

	alerts := logging.NewAlerts(logging.NewNotifier(cfg.Logging.Mail), cfg.Logging.Mail.Subject)
	log, closeLog, err := logging.New(cfg.Logging, alerts)
	if err != nil {
		return fatal("set up logging: %w", err)
	}
	defer closeLog()
	log.Info("starting", zap.Int("pid", os.Getpid()), zap.Int("repositories", len(cfg.Repositories)))

	m := metrics.New()
	defer func() {
		if ferr := alerts.Flush(context.WithoutCancel(ctx)); ferr != nil {
			log.Warn("unable to send alert mail", zap.Error(ferr))
		}
		if werr := m.WriteTextfile(cfg.Metrics.Textfile, r.now()); werr != nil {
			log.Warn("unable to write metrics textfile", zap.Error(werr))
		}
	}()

	if cfg.DB.Type == database.TypeSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.DB.DBName), 0o755); err != nil {
			return fatal("create database dir: %w", err)
		}
	}
	st, err := store.Open(ctx, storeConfig(cfg), log)
	if err != nil {
		log.Error("unable to prepare the database", zap.Error(err))
		return fatal("open database: %w", err)
	}
	defer st.Close()

	if !r.opts.OnlyExport {
		factory := sources.NewFactory(st, cfg.RateLimits, cfg.Harvest.HTTPTimeout, log)
		coord := coordinator.New(factory, st, log,
			coordinator.WithAlerts(alerts),
			coordinator.WithMetrics(m),
			coordinator.WithConcurrency(cfg.Harvest.Concurrency))
		report, err := coord.Run(ctx, cfg.Repositories)
		if report != nil {
			for _, rep := range report.Repositories {
				log.Info(rep.Describe())
			}
		}
		if err != nil {
			return fatal("harvest interrupted: %w", err)
		}
	}
	if r.opts.OnlyHarvest {
		log.Info("done", zap.Duration("elapsed", r.now().Sub(start).Round(time.Second)))
		return nil
	}

	exp := export.New(st, log)
	sum, err := exp.Export(ctx, export.Options{
		Format:         cfg.Export.Format,
		Filepath:       cfg.Export.Filepath,
		TempFilepath:   cfg.Harvest.TempFilepath,
		FileLimitMB:    cfg.Export.FileLimitMB,
		OnlyNewRecords: r.opts.OnlyNewRecords,
	})
	if err != nil {
		log.Error("export failed", zap.Error(err))
		return fatal("export: %w", err)
	}

	if err := r.markRun(ctx, st, cfg.Harvest.LastRunFile, start); err != nil {
		log.Error("unable to record the run time", zap.Error(err))
		return fatal("record run time: %w", err)
	}
	log.Info("done",
		zap.Duration("elapsed", r.now().Sub(start).Round(time.Second)),
		zap.String("exported", humanize.Comma(int64(sum.Records))),
		zap.String("size", humanize.IBytes(uint64(sum.Bytes))))
	return nil
}

// storeConfig shrinks the postgres pool to a single connection when
// repositories are crawled concurrently, so their writes stay serialized.
func storeConfig(cfg *config.Config) config.DB {
	db := cfg.DB
	if cfg.Harvest.Concurrency > 1 {
		db.MaxOpenConns = 1
	}
	return db
}

func (r *Runner) config() (*config.Config, error) {
	cfg, err := config.Load(r.opts.ConfigPath, r.opts.ReposPath)
	if err != nil {
		return nil, fatal("load config: %w", err)
	}
	if r.opts.ExportFilepath != "" {
		cfg.Export.Filepath = r.opts.ExportFilepath
	}
	if r.opts.ExportFormat != "" {
		cfg.Export.Format = r.opts.ExportFormat
	}
	if r.opts.Debug {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// markRun stores the run start time in the last-run file and setting so the
// next --only-new-records export picks up everything modified since.
func (r *Runner) markRun(ctx context.Context, st *store.Store, path string, start time.Time) error {
	value := strconv.FormatInt(start.Unix(), 10)
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
			return err
		}
	}
	return st.SetSetting(ctx, export.LastRunSetting, value)
}
