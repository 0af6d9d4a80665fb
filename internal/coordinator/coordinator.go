// Package coordinator drives one harvest run across every configured
// repository: crawl, stamp the last crawl time, then reconcile stale records.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mkoziy/harvester/internal/config"
	"github.com/mkoziy/harvester/internal/logging"
	"github.com/mkoziy/harvester/internal/metrics"
	"github.com/mkoziy/harvester/internal/models"
	"github.com/mkoziy/harvester/internal/sources"
)

// Phase names a step of the per-repository state machine.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseFetching       Phase = "fetching"
	PhaseStaleReconcile Phase = "stale_reconcile"
	PhaseDone           Phase = "done"
	// PhaseErrorBudgetExceeded ends one repository; the run goes on.
	PhaseErrorBudgetExceeded Phase = "error_budget_exceeded"
)

// RunStore records run bookkeeping.
type RunStore interface {
	StartRun(ctx context.Context, runID string, repoID int64) (*models.CrawlRun, error)
	FinishRun(ctx context.Context, run *models.CrawlRun, status string, errs []string) error
	UpdateLastCrawl(ctx context.Context, id int64, t time.Time) error
}

type Coordinator struct {
	factory     sources.Factory
	store       RunStore
	log         *zap.Logger
	alerts      *logging.Alerts
	metrics     *metrics.CrawlMetrics
	concurrency int
	now         func() time.Time
	newRunID    func() string
}

type Option func(*Coordinator)

// WithAlerts enables per-repository alert suppression for repositories with
// copyerrorstoemail set to false.
func WithAlerts(a *logging.Alerts) Option {
	return func(c *Coordinator) { c.alerts = a }
}

func WithMetrics(m *metrics.CrawlMetrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithConcurrency crawls up to n repositories at once. The default is 1.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func New(factory sources.Factory, st RunStore, log *zap.Logger, opts ...Option) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Coordinator{
		factory:     factory,
		store:       st,
		log:         log,
		concurrency: 1,
		now:         time.Now,
		newRunID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run crawls every enabled repository and reports per-repository outcomes.
// Repository failures never end the run; only context cancellation is
// returned as an error.
func (c *Coordinator) Run(ctx context.Context, repos []config.Repository) (*Report, error) {
	report := &Report{RunID: c.newRunID(), Repositories: make([]RepositoryReport, len(repos))}
	c.log.Info("harvest run started", zap.String("run_id", report.RunID),
		zap.Int("repositories", len(repos)), zap.Int("concurrency", c.concurrency))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, repo := range repos {
		if !repo.IsEnabled() {
			report.Repositories[i] = RepositoryReport{Name: repo.Name, Status: StatusDisabled, Phase: PhaseIdle}
			c.log.Info("repository disabled, skipping", zap.String("repository", repo.Name))
			continue
		}
		g.Go(func() error {
			report.Repositories[i] = c.crawlRepository(gctx, report.RunID, repo)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range report.Aborted() {
		c.log.Error("repository aborted after exceeding its error budget",
			zap.String("repository", r.Name), zap.Int("errors", r.ErrorCount()))
	}
	c.log.Info("harvest run finished", zap.String("run_id", report.RunID),
		zap.Int("complete", report.Count(models.RunStatusComplete)),
		zap.Int("skipped", report.Count(models.RunStatusSkipped)),
		zap.Int("failed", report.Count(models.RunStatusFailed)),
		zap.Int("aborted", report.Count(models.RunStatusAborted)))
	return report, ctx.Err()
}

func (c *Coordinator) crawlRepository(ctx context.Context, runID string, repo config.Repository) (rep RepositoryReport) {
	log := c.log.With(zap.String("repository", repo.Name))
	rep = RepositoryReport{Name: repo.Name, Phase: PhaseIdle}
	start := c.now()

	if c.alerts != nil && !repo.AlertsEnabled() {
		defer c.alerts.Suppress(repo.Name)()
	}

	src, err := c.factory.New(repo)
	if err != nil {
		log.Error("unable to set up repository", zap.Error(err))
		return rep.fail(models.RunStatusFailed, err)
	}
	id, err := src.Register(ctx)
	if err != nil {
		log.Error("unable to register repository", zap.Error(err))
		return rep.fail(models.RunStatusFailed, err)
	}
	rep.RepositoryID = id

	run, err := c.store.StartRun(ctx, runID, id)
	if err != nil {
		log.Warn("unable to record crawl run", zap.Error(err))
	}
	defer func() {
		rep.Duration = c.now().Sub(start)
		c.finish(ctx, log, run, &rep)
	}()

	rep.Phase = PhaseFetching
	rep.Crawl, err = src.Crawl(ctx)
	switch {
	case errors.Is(err, sources.ErrErrorBudgetExceeded):
		rep.Phase = PhaseErrorBudgetExceeded
		return rep.fail(models.RunStatusAborted, err)
	case err != nil:
		log.Error("crawl failed, last crawl time left unchanged", zap.Error(err))
		return rep.fail(models.RunStatusFailed, err)
	case rep.Crawl.Skipped:
		rep.Status = models.RunStatusSkipped
	default:
		if err := c.store.UpdateLastCrawl(ctx, id, start); err != nil {
			log.Error("unable to update last crawl time", zap.Error(err))
			return rep.fail(models.RunStatusFailed, err)
		}
		rep.Status = models.RunStatusComplete
	}

	rep.Phase = PhaseStaleReconcile
	rep.Stale, err = src.UpdateStaleRecords(ctx)
	switch {
	case errors.Is(err, sources.ErrErrorBudgetExceeded):
		rep.Phase = PhaseErrorBudgetExceeded
		return rep.fail(models.RunStatusAborted, err)
	case err != nil:
		log.Error("stale record update failed", zap.Error(err))
		return rep.fail(models.RunStatusFailed, err)
	}
	rep.Phase = PhaseDone
	return rep
}

// finish stores the run outcome even when ctx was cancelled.
func (c *Coordinator) finish(ctx context.Context, log *zap.Logger, run *models.CrawlRun, rep *RepositoryReport) {
	c.metrics.RecordOutcome(rep.Name, "written", rep.Crawl.Written+rep.Stale.Written)
	c.metrics.RecordOutcome(rep.Name, "header", rep.Crawl.Headers)
	c.metrics.RecordOutcome(rep.Name, "deleted", rep.Crawl.Deleted+rep.Stale.Deleted)
	c.metrics.RecordOutcome(rep.Name, "touched", rep.Stale.Touched)
	c.metrics.RecordErrors(rep.Name, rep.ErrorCount())
	c.metrics.RecordCrawl(rep.Name, rep.Status, rep.Duration, c.now())

	if run == nil {
		return
	}
	run.RecordsWritten = rep.Crawl.Written + rep.Crawl.Headers + rep.Stale.Written
	run.RecordsDeleted = rep.Crawl.Deleted + rep.Stale.Deleted
	run.RecordsTouched = rep.Stale.Touched
	errs := rep.Errors()
	run.ErrorsCount = len(errs)
	if err := c.store.FinishRun(context.WithoutCancel(ctx), run, rep.Status, errs); err != nil {
		log.Warn("unable to finish crawl run", zap.Error(err))
	}
	log.Info("repository finished", zap.String("status", rep.Status), zap.String("phase", string(rep.Phase)),
		zap.Duration("duration", rep.Duration), zap.Int("errors", len(errs)))
}

// Describe renders a one-line summary for the operator.
func (r RepositoryReport) Describe() string {
	s := fmt.Sprintf("%s: %s (written %d, headers %d, deleted %d, touched %d, errors %d)",
		r.Name, r.Status, r.Crawl.Written+r.Stale.Written, r.Crawl.Headers,
		r.Crawl.Deleted+r.Stale.Deleted, r.Stale.Touched, r.ErrorCount())
	if r.Err != nil {
		s += ": " + r.Err.Error()
	}
	return s
}
