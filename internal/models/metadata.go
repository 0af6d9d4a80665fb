package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Setting is a row of the singleton key/value settings table.
type Setting struct {
	bun.BaseModel `bun:"table:settings,alias:st"`

	ID    int64  `bun:"setting_id,pk,autoincrement" json:"setting_id"`
	Name  string `bun:"setting_name,unique,notnull" json:"setting_name"`
	Value string `bun:"setting_value" json:"setting_value"`
}

// Crawl run statuses.
const (
	RunStatusRunning  = "running"
	RunStatusComplete = "complete"
	RunStatusSkipped  = "skipped"
	RunStatusFailed   = "failed"
	RunStatusAborted  = "aborted"
)

// CrawlRun tracks one repository crawl and its outcome.
type CrawlRun struct {
	bun.BaseModel `bun:"table:crawl_runs,alias:cw"`

	ID             int64      `bun:"crawl_run_id,pk,autoincrement" json:"crawl_run_id"`
	RunID          string     `bun:"run_id,notnull" json:"run_id"`
	RepositoryID   int64      `bun:"repository_id,notnull" json:"repository_id"`
	StartTime      time.Time  `bun:"start_time,notnull" json:"start_time"`
	EndTime        *time.Time `bun:"end_time" json:"end_time,omitempty"`
	Status         string     `bun:"status,notnull" json:"status"`
	RecordsWritten int        `bun:"records_written,notnull,default:0" json:"records_written"`
	RecordsDeleted int        `bun:"records_deleted,notnull,default:0" json:"records_deleted"`
	RecordsTouched int        `bun:"records_touched,notnull,default:0" json:"records_touched"`
	ErrorsCount    int        `bun:"errors_count,notnull,default:0" json:"errors_count"`
	ErrorLog       *string    `bun:"error_log" json:"error_log,omitempty"`
}

// Finished reports whether the run reached a terminal status.
func (r *CrawlRun) Finished() bool {
	return r.Status != RunStatusRunning && r.EndTime != nil
}
