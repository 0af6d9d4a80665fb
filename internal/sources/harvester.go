package sources

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mkoziy/harvester/internal/config"
	"github.com/mkoziy/harvester/internal/harvest"
	"github.com/mkoziy/harvester/internal/models"
	"github.com/mkoziy/harvester/internal/store"
)

const day = 24 * time.Hour

// Harvester is the protocol independent Source implementation.
type Harvester struct {
	repo   config.Repository
	proto  Protocol
	store  RecordStore
	log    *zap.Logger
	now    func() time.Time
	budget *ErrorBudget
	repoID int64
}

var _ Source = (*Harvester)(nil)

type HarvesterOption func(*Harvester)

func WithClock(now func() time.Time) HarvesterOption {
	return func(h *Harvester) { h.now = now }
}

// NewHarvester binds a protocol to a repository entry and the store. The
// error budget lives as long as the Harvester, so one instance covers one
// run of one repository.
func NewHarvester(repo config.Repository, proto Protocol, st RecordStore, log *zap.Logger, opts ...HarvesterOption) *Harvester {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Harvester{
		repo:   repo,
		proto:  proto,
		store:  st,
		log:    log.With(zap.String("repository", repo.Name)),
		now:    time.Now,
		budget: NewErrorBudget(repo.AbortAfterNumErrors),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Harvester) Name() string              { return h.repo.Name }
func (h *Harvester) Config() config.Repository { return h.repo }

func (h *Harvester) Register(ctx context.Context) (int64, error) {
	id, err := h.store.UpsertRepository(ctx, store.RepositoryParams{
		URL:                     h.repo.URL,
		Set:                     h.repo.Set,
		Name:                    h.repo.Name,
		Type:                    models.RepositoryType(h.repo.Type),
		Thumbnail:               h.repo.Thumbnail,
		ItemURLPattern:          h.repo.ItemURLPattern,
		Enabled:                 h.repo.IsEnabled(),
		AbortAfterNumErrors:     h.repo.AbortAfterNumErrors,
		MaxRecordsUpdatedPerRun: h.repo.MaxRecordsUpdatedPerRun,
		UpdateLogAfterNumItems:  h.repo.UpdateLogAfterNumItems,
		RecordRefreshDays:       h.repo.RecordRefreshDays,
		RepoRefreshDays:         h.repo.RepoRefreshDays,
	})
	if err != nil {
		return 0, fmt.Errorf("register repository %s: %w", h.repo.Name, err)
	}
	h.repoID = id
	return id, nil
}

func (h *Harvester) ensureRegistered(ctx context.Context) error {
	if h.repoID != 0 {
		return nil
	}
	_, err := h.Register(ctx)
	return err
}

// Crawl harvests records changed since the last successful crawl. It is
// skipped when that crawl is younger than repo_refresh_days. Records are
// written as they arrive, so an error part way leaves earlier pages stored.
func (h *Harvester) Crawl(ctx context.Context) (Result, error) {
	var res Result
	if err := h.ensureRegistered(ctx); err != nil {
		return res, err
	}
	last, err := h.store.LastCrawl(ctx, h.repoID)
	if err != nil {
		return res, fmt.Errorf("crawl %s: %w", h.repo.Name, err)
	}
	if !last.IsZero() && h.repo.RepoRefreshDays > 0 &&
		h.now().Sub(last) < time.Duration(h.repo.RepoRefreshDays)*day {
		h.log.Info("repository crawled recently, skipping", zap.Time("last_crawl", last))
		res.Skipped = true
		return res, nil
	}

	h.log.Info("crawl started", zap.String("type", h.repo.Type), zap.Time("since", last))
	start := h.budget.Count()
	processed := 0
	err = h.proto.Harvest(ctx, last, func(item harvest.Item) error {
		processed++
		if n := h.repo.UpdateLogAfterNumItems; n > 0 && processed%n == 0 {
			h.log.Info("crawl progress", zap.Int("processed", processed),
				zap.Int("written", res.Written), zap.Int("errors", h.budget.Count()))
		}
		return h.apply(ctx, item, &res)
	})
	res.Errors = h.budget.Errors()[start:]
	if err != nil {
		return res, fmt.Errorf("crawl %s: %w", h.repo.Name, err)
	}
	h.log.Info("crawl finished", zap.Int("processed", processed), zap.Int("written", res.Written),
		zap.Int("headers", res.Headers), zap.Int("deleted", res.Deleted), zap.Int("errors", len(res.Errors)))
	return res, nil
}

func (h *Harvester) apply(ctx context.Context, item harvest.Item, res *Result) error {
	id := item.Record.Identifier
	log := h.log.With(zap.String("identifier", id))
	switch {
	case item.Err != nil:
		log.Error("unable to read record", zap.Error(item.Err))
		return h.budget.Fail(id, item.Err)
	case item.Deleted:
		return h.remove(ctx, id, res)
	case item.HeaderOnly:
		added, err := h.store.WriteHeader(ctx, id, h.repoID)
		if err != nil {
			log.Error("unable to write header", zap.Error(err))
			return h.budget.Fail(id, err)
		}
		if added {
			res.Headers++
		}
		return nil
	}
	return h.write(ctx, item, res)
}

func (h *Harvester) write(ctx context.Context, item harvest.Item, res *Result) error {
	rec := item.Record
	if len(rec.Source) == 0 && h.repo.ItemURLPattern != "" {
		rec.Source = []string{strings.ReplaceAll(h.repo.ItemURLPattern, "%id%", rec.Identifier)}
	}
	if err := h.store.WriteRecord(ctx, rec, h.repoID, item.Domain); err != nil {
		h.log.Error("unable to write record", zap.String("identifier", rec.Identifier), zap.Error(err))
		return h.budget.Fail(rec.Identifier, err)
	}
	res.Written++
	return nil
}

// remove soft-deletes a record announced as deleted. Unknown or already
// deleted identifiers are ignored.
func (h *Harvester) remove(ctx context.Context, identifier string, res *Result) error {
	rec, err := h.store.GetRecord(ctx, h.repoID, identifier)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		h.log.Error("unable to look up deleted record", zap.String("identifier", identifier), zap.Error(err))
		return h.budget.Fail(identifier, err)
	}
	return h.softDelete(ctx, rec, res)
}

func (h *Harvester) softDelete(ctx context.Context, rec *models.Record, res *Result) error {
	if rec.Deleted {
		return nil
	}
	if !h.store.DeleteRecord(ctx, rec) {
		h.log.Error("unable to soft-delete record", zap.String("identifier", rec.LocalIdentifier))
		return h.budget.Fail(rec.LocalIdentifier, errors.New("soft delete failed"))
	}
	res.Deleted++
	return nil
}

// UpdateStaleRecords revisits up to max_records_updated_per_run records not
// confirmed within record_refresh_days, oldest first. Each is re-fetched and
// rewritten, touched when the source reports no change since it was stored,
// or soft-deleted when the source no longer has it.
func (h *Harvester) UpdateStaleRecords(ctx context.Context) (Result, error) {
	var res Result
	if err := h.ensureRegistered(ctx); err != nil {
		return res, err
	}
	cutoff := h.now().Add(-time.Duration(h.repo.RecordRefreshDays) * day)
	stale, err := h.store.StaleRecords(ctx, cutoff, h.repoID, h.repo.MaxRecordsUpdatedPerRun)
	if err != nil {
		return res, fmt.Errorf("stale records %s: %w", h.repo.Name, err)
	}
	if len(stale) == 0 {
		return res, nil
	}
	h.log.Info("updating stale records", zap.Int("count", len(stale)), zap.Time("cutoff", cutoff))

	start := h.budget.Count()
	for i := range stale {
		err := ctx.Err()
		if err == nil {
			err = h.refresh(ctx, &stale[i], &res)
		}
		if err != nil {
			res.Errors = h.budget.Errors()[start:]
			return res, fmt.Errorf("update stale records %s: %w", h.repo.Name, err)
		}
	}
	res.Errors = h.budget.Errors()[start:]
	h.log.Info("stale records updated", zap.Int("written", res.Written),
		zap.Int("touched", res.Touched), zap.Int("deleted", res.Deleted))
	return res, nil
}

func (h *Harvester) refresh(ctx context.Context, rec *models.Record, res *Result) error {
	item, err := h.proto.Fetch(ctx, rec.LocalIdentifier)
	switch {
	case errors.Is(err, harvest.ErrRemoved):
		return h.softDelete(ctx, rec, res)
	case err != nil:
		h.log.Error("unable to fetch record", zap.String("identifier", rec.LocalIdentifier), zap.Error(err))
		return h.budget.Fail(rec.LocalIdentifier, err)
	case !rec.IsHeader() && !item.Datestamp.IsZero() && !item.Datestamp.After(rec.Modified()):
		if err := h.store.TouchRecord(ctx, rec); err != nil {
			h.log.Error("unable to touch record", zap.String("identifier", rec.LocalIdentifier), zap.Error(err))
			return h.budget.Fail(rec.LocalIdentifier, err)
		}
		res.Touched++
		return nil
	}
	if item.Record.Identifier == "" {
		item.Record.Identifier = rec.LocalIdentifier
	}
	return h.write(ctx, item, res)
}
