package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mkoziy/harvester/internal/models"
)

// RepositoryParams is the caller-built request for UpsertRepository.
type RepositoryParams struct {
	URL            string
	Set            string
	Name           string
	Type           models.RepositoryType
	Thumbnail      string
	ItemURLPattern string
	Enabled        bool

	AbortAfterNumErrors     int
	MaxRecordsUpdatedPerRun int
	UpdateLogAfterNumItems  int
	RecordRefreshDays       int
	RepoRefreshDays         int
}

func (p RepositoryParams) model() *models.Repository {
	return &models.Repository{
		URL:                     p.URL,
		Set:                     p.Set,
		Name:                    p.Name,
		Type:                    p.Type,
		Thumbnail:               p.Thumbnail,
		ItemURLPattern:          p.ItemURLPattern,
		Enabled:                 p.Enabled,
		AbortAfterNumErrors:     p.AbortAfterNumErrors,
		MaxRecordsUpdatedPerRun: p.MaxRecordsUpdatedPerRun,
		UpdateLogAfterNumItems:  p.UpdateLogAfterNumItems,
		RecordRefreshDays:       p.RecordRefreshDays,
		RepoRefreshDays:         p.RepoRefreshDays,
	}
}

// repositoryColumns are rewritten on every upsert; last_crawl_timestamp is not.
var repositoryColumns = []string{
	"repository_name",
	"repository_type",
	"repository_thumbnail",
	"item_url_pattern",
	"enabled",
	"abort_after_numerrors",
	"max_records_updated_per_run",
	"update_log_after_numitems",
	"record_refresh_days",
	"repo_refresh_days",
}

// UpsertRepository resolves the repository by (url, set), inserting it when
// absent and otherwise refreshing its mutable fields. Repeated calls with the
// same natural key always return the same id.
func (s *Store) UpsertRepository(ctx context.Context, p RepositoryParams) (int64, error) {
	repo := p.model()
	if err := repo.Validate(); err != nil {
		return 0, err
	}

	id, err := s.RepositoryID(ctx, p.URL, p.Set)
	switch {
	case err == nil:
		repo.ID = id
		if _, err := s.db.NewUpdate().Model(repo).Column(repositoryColumns...).WherePK().Exec(ctx); err != nil {
			return 0, fmt.Errorf("update repository %d: %w", id, err)
		}
		return id, nil
	case !errors.Is(err, ErrNotFound):
		return 0, err
	}

	if _, err := s.db.NewInsert().Model(repo).Returning("repository_id").Exec(ctx); err != nil {
		if !isUniqueViolation(err) {
			return 0, fmt.Errorf("insert repository %s: %w", p.URL, err)
		}
		s.log.Warn("repository inserted concurrently, using existing row",
			zap.String("url", p.URL), zap.String("set", p.Set), zap.Error(err))
		return s.RepositoryID(ctx, p.URL, p.Set)
	}
	return repo.ID, nil
}

// RepositoryID looks up a repository by its natural key.
func (s *Store) RepositoryID(ctx context.Context, url, set string) (int64, error) {
	var id int64
	err := s.db.NewSelect().
		Model((*models.Repository)(nil)).
		Column("repository_id").
		Where("repository_url = ?", url).
		Where("repository_set = ?", set).
		Scan(ctx, &id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return id, err
}

func (s *Store) Repository(ctx context.Context, id int64) (*models.Repository, error) {
	repo := new(models.Repository)
	err := s.db.NewSelect().Model(repo).Where("repository_id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return repo, err
}

func (s *Store) Repositories(ctx context.Context) ([]models.Repository, error) {
	var repos []models.Repository
	err := s.db.NewSelect().Model(&repos).OrderExpr("repository_id").Scan(ctx)
	return repos, err
}

// LastCrawl returns the zero time for a repository never crawled.
func (s *Store) LastCrawl(ctx context.Context, id int64) (time.Time, error) {
	var ts int64
	err := s.db.NewSelect().
		Model((*models.Repository)(nil)).
		Column("last_crawl_timestamp").
		Where("repository_id = ?", id).
		Scan(ctx, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil || ts <= 0 {
		return time.Time{}, err
	}
	return time.Unix(ts, 0), nil
}

// UpdateLastCrawl stamps the repository as fully crawled at t, or now when t
// is zero.
func (s *Store) UpdateLastCrawl(ctx context.Context, id int64, t time.Time) error {
	if t.IsZero() {
		t = s.now()
	}
	res, err := s.db.NewUpdate().
		Model((*models.Repository)(nil)).
		Set("last_crawl_timestamp = ?", t.Unix()).
		Where("repository_id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update last crawl for repository %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
