package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mkoziy/harvester/internal/models"
)

// StartRun records the start of one repository crawl.
func (s *Store) StartRun(ctx context.Context, runID string, repoID int64) (*models.CrawlRun, error) {
	run := &models.CrawlRun{
		RunID:        runID,
		RepositoryID: repoID,
		StartTime:    s.now().UTC(),
		Status:       models.RunStatusRunning,
	}
	if _, err := s.db.NewInsert().Model(run).Returning("crawl_run_id").Exec(ctx); err != nil {
		return nil, fmt.Errorf("start crawl run: %w", err)
	}
	return run, nil
}

// FinishRun stores the final status and counters of run. Errors are kept in
// error_log, one per line.
func (s *Store) FinishRun(ctx context.Context, run *models.CrawlRun, status string, errs []string) error {
	end := s.now().UTC()
	run.EndTime = &end
	run.Status = status
	if len(errs) > 0 {
		log := strings.Join(errs, "\n")
		run.ErrorLog = &log
	}
	_, err := s.db.NewUpdate().
		Model(run).
		Column("end_time", "status", "records_written", "records_deleted", "records_touched", "errors_count", "error_log").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("finish crawl run %d: %w", run.ID, err)
	}
	return nil
}

// LatestRun returns the most recent crawl run of a repository.
func (s *Store) LatestRun(ctx context.Context, repoID int64) (*models.CrawlRun, error) {
	run := new(models.CrawlRun)
	err := s.db.NewSelect().
		Model(run).
		Where("repository_id = ?", repoID).
		OrderExpr("start_time DESC, crawl_run_id DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// Setting reads one settings row; ok is false when it is absent.
func (s *Store) Setting(ctx context.Context, name string) (value string, ok bool, err error) {
	err = s.db.NewSelect().
		Model((*models.Setting)(nil)).
		Column("setting_value").
		Where("setting_name = ?", name).
		Scan(ctx, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	return value, err == nil, err
}

func (s *Store) SetSetting(ctx context.Context, name, value string) error {
	_, err := s.db.NewInsert().
		Model(&models.Setting{Name: name, Value: value}).
		On("CONFLICT (setting_name) DO UPDATE").
		Set("setting_value = EXCLUDED.setting_value").
		Returning("NULL").
		Exec(ctx)
	return err
}
