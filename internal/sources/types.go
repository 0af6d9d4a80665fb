// Package sources turns repository configurations into crawlable sources.
//
// A Harvester drives one wire protocol (oai, ckan, marklogic, csw) against
// the shared store: it pages through the source, writes each record as it
// arrives and keeps a per-repository error budget.
package sources

import (
	"context"
	"errors"
	"time"

	"github.com/mkoziy/harvester/internal/config"
	"github.com/mkoziy/harvester/internal/harvest"
	"github.com/mkoziy/harvester/internal/models"
	"github.com/mkoziy/harvester/internal/store"
)

//go:generate mockgen -destination=mocks/mock_sources.go -package=mocks -source=types.go

var (
	// ErrUnsupportedType is returned for a repository type outside the closed set.
	ErrUnsupportedType = errors.New("unsupported repository type")
	// ErrErrorBudgetExceeded stops a repository whose record errors passed
	// abort_after_numerrors.
	ErrErrorBudgetExceeded = errors.New("error budget exceeded")
)

// Protocol is the wire side of one repository type.
type Protocol interface {
	// Harvest lists records changed since the given time (all when zero),
	// page by page, handing each to emit before the next page is read.
	Harvest(ctx context.Context, since time.Time, emit harvest.EmitFunc) error
	// Fetch resolves one identifier. A record the source no longer has is
	// reported with an error wrapping harvest.ErrRemoved.
	Fetch(ctx context.Context, identifier string) (harvest.Item, error)
}

// RecordStore is the part of the metadata store a source writes through.
type RecordStore interface {
	UpsertRepository(ctx context.Context, p store.RepositoryParams) (int64, error)
	LastCrawl(ctx context.Context, id int64) (time.Time, error)
	WriteRecord(ctx context.Context, rec harvest.Record, repoID int64, domain harvest.DomainMetadata) error
	WriteHeader(ctx context.Context, identifier string, repoID int64) (bool, error)
	GetRecord(ctx context.Context, repoID int64, identifier string) (*models.Record, error)
	TouchRecord(ctx context.Context, rec *models.Record) error
	DeleteRecord(ctx context.Context, rec *models.Record) bool
	StaleRecords(ctx context.Context, cutoff time.Time, repoID int64, limit int) ([]models.Record, error)
}

var _ RecordStore = (*store.Store)(nil)

// Source is one configured repository, ready to crawl.
type Source interface {
	Name() string
	Config() config.Repository
	// Register upserts the repository row and returns its id.
	Register(ctx context.Context) (int64, error)
	// Crawl harvests everything changed since the last successful crawl.
	Crawl(ctx context.Context) (Result, error)
	// UpdateStaleRecords revalidates records not confirmed recently.
	UpdateStaleRecords(ctx context.Context) (Result, error)
}

// Factory builds the Source for a repository entry.
type Factory interface {
	New(repo config.Repository) (Source, error)
}

// Result counts what one crawl or reconciliation pass did.
type Result struct {
	Written int
	Headers int
	Deleted int
	Touched int
	Errors  []string
	// Skipped is set when repo_refresh_days says the repository is not due.
	Skipped bool
}

// Add merges other into r.
func (r *Result) Add(other Result) {
	r.Written += other.Written
	r.Headers += other.Headers
	r.Deleted += other.Deleted
	r.Touched += other.Touched
	r.Errors = append(r.Errors, other.Errors...)
}
