package models

import (
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// Repository is one harvested endpoint, keyed by (url, set).
type Repository struct {
	bun.BaseModel `bun:"table:repositories,alias:repo"`

	ID                      int64          `bun:"repository_id,pk,autoincrement" json:"repository_id"`
	URL                     string         `bun:"repository_url,notnull" json:"repository_url"`
	Set                     string         `bun:"repository_set,notnull" json:"repository_set"`
	Name                    string         `bun:"repository_name" json:"repository_name"`
	Type                    RepositoryType `bun:"repository_type" json:"repository_type"`
	Thumbnail               string         `bun:"repository_thumbnail" json:"repository_thumbnail"`
	ItemURLPattern          string         `bun:"item_url_pattern" json:"item_url_pattern"`
	Enabled                 bool           `bun:"enabled" json:"enabled"`
	LastCrawlTimestamp      int64          `bun:"last_crawl_timestamp" json:"last_crawl_timestamp"`
	AbortAfterNumErrors     int            `bun:"abort_after_numerrors" json:"abort_after_numerrors"`
	MaxRecordsUpdatedPerRun int            `bun:"max_records_updated_per_run" json:"max_records_updated_per_run"`
	UpdateLogAfterNumItems  int            `bun:"update_log_after_numitems" json:"update_log_after_numitems"`
	RecordRefreshDays       int            `bun:"record_refresh_days" json:"record_refresh_days"`
	RepoRefreshDays         int            `bun:"repo_refresh_days" json:"repo_refresh_days"`
}

// LastCrawl returns the last successful crawl time, zero if never crawled.
func (r *Repository) LastCrawl() time.Time {
	if r.LastCrawlTimestamp <= 0 {
		return time.Time{}
	}
	return time.Unix(r.LastCrawlTimestamp, 0)
}

// Validate checks the natural key and type.
func (r *Repository) Validate() error {
	if r.URL == "" {
		return errors.New("repository url is required")
	}
	if !r.Type.Valid() {
		return errors.New("unsupported repository type: " + string(r.Type))
	}
	return nil
}
