package coordinator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/mkoziy/harvester/internal/config"
	"github.com/mkoziy/harvester/internal/logging"
	"github.com/mkoziy/harvester/internal/metrics"
	"github.com/mkoziy/harvester/internal/models"
	"github.com/mkoziy/harvester/internal/ratelimit"
	"github.com/mkoziy/harvester/internal/sources"
	"github.com/mkoziy/harvester/internal/sources/mocks"
	"github.com/mkoziy/harvester/internal/store"
)

var now = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return now }

func openStore(t *testing.T, path string) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), config.DB{Type: "sqlite", DBName: path}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newStore(t *testing.T) *store.Store {
	return openStore(t, filepath.Join(t.TempDir(), "meta.db"))
}

func register(t *testing.T, st *store.Store, url string) int64 {
	t.Helper()
	id, err := st.UpsertRepository(context.Background(), store.RepositoryParams{URL: url, Name: url, Type: models.TypeOAI, Enabled: true})
	require.NoError(t, err)
	return id
}

func mockSource(ctrl *gomock.Controller, id int64, crawl sources.Result, crawlErr error) *mocks.MockSource {
	src := mocks.NewMockSource(ctrl)
	src.EXPECT().Register(gomock.Any()).Return(id, nil)
	src.EXPECT().Crawl(gomock.Any()).Return(crawl, crawlErr)
	return src
}

func TestRunCompletesAndStampsLastCrawl(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	st := newStore(t)
	id := register(t, st, "https://a.example.org")

	repo := config.Repository{Name: "A", URL: "https://a.example.org", Type: "oai"}
	src := mockSource(ctrl, id, sources.Result{Written: 3, Headers: 1}, nil)
	src.EXPECT().UpdateStaleRecords(gomock.Any()).Return(sources.Result{Touched: 2, Errors: []string{"x: timeout"}}, nil)
	factory := mocks.NewMockFactory(ctrl)
	factory.EXPECT().New(repo).Return(src, nil)

	m := metrics.New()
	c := New(factory, st, zaptest.NewLogger(t), WithClock(fixedClock), WithMetrics(m))
	report, err := c.Run(ctx, []config.Repository{repo})
	require.NoError(t, err)
	require.Len(t, report.Repositories, 1)

	r := report.Repositories[0]
	assert.Equal(t, models.RunStatusComplete, r.Status)
	assert.Equal(t, PhaseDone, r.Phase)
	assert.Equal(t, 1, r.ErrorCount())

	last, err := st.LastCrawl(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, now.Unix(), last.Unix())

	run, err := st.LatestRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, report.RunID, run.RunID)
	assert.Equal(t, models.RunStatusComplete, run.Status)
	assert.Equal(t, 4, run.RecordsWritten)
	assert.Equal(t, 2, run.RecordsTouched)
	assert.Equal(t, 1, run.ErrorsCount)
}

func TestRunFailedCrawlKeepsLastCrawlAndSkipsReconcile(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	st := newStore(t)
	id := register(t, st, "https://a.example.org")
	prior := time.Unix(1600000000, 0)
	require.NoError(t, st.UpdateLastCrawl(ctx, id, prior))

	repo := config.Repository{Name: "A", URL: "https://a.example.org", Type: "oai"}
	src := mockSource(ctrl, id, sources.Result{Written: 1}, errors.New("connection refused"))
	factory := mocks.NewMockFactory(ctrl)
	factory.EXPECT().New(repo).Return(src, nil)

	report, err := New(factory, st, nil, WithClock(fixedClock)).Run(ctx, []config.Repository{repo})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, report.Repositories[0].Status)
	assert.Equal(t, PhaseFetching, report.Repositories[0].Phase)

	last, err := st.LastCrawl(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, prior.Unix(), last.Unix())
}

func TestRunErrorBudgetAbortsOnlyThatRepository(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	st := newStore(t)
	idA := register(t, st, "https://a.example.org")
	idB := register(t, st, "https://b.example.org")

	repoA := config.Repository{Name: "A", URL: "https://a.example.org", Type: "oai"}
	repoB := config.Repository{Name: "B", URL: "https://b.example.org", Type: "oai"}
	off := false
	repoC := config.Repository{Name: "C", URL: "https://c.example.org", Type: "oai", Enabled: &off}

	budgetErr := fmt.Errorf("crawl A: %w", sources.ErrErrorBudgetExceeded)
	srcA := mockSource(ctrl, idA, sources.Result{Errors: []string{"1", "2", "3"}}, budgetErr)
	srcB := mockSource(ctrl, idB, sources.Result{Written: 1}, nil)
	srcB.EXPECT().UpdateStaleRecords(gomock.Any()).Return(sources.Result{}, nil)

	factory := mocks.NewMockFactory(ctrl)
	gomock.InOrder(
		factory.EXPECT().New(repoA).Return(srcA, nil),
		factory.EXPECT().New(repoB).Return(srcB, nil),
	)

	report, err := New(factory, st, nil, WithClock(fixedClock)).Run(ctx, []config.Repository{repoA, repoB, repoC})
	require.NoError(t, err)
	require.Len(t, report.Repositories, 3)
	assert.Equal(t, models.RunStatusAborted, report.Repositories[0].Status)
	assert.Equal(t, models.RunStatusComplete, report.Repositories[1].Status)
	assert.Equal(t, StatusDisabled, report.Repositories[2].Status)

	aborted := report.Aborted()
	require.Len(t, aborted, 1)
	assert.Equal(t, "A", aborted[0].Name)
	assert.Contains(t, aborted[0].Describe(), "error budget exceeded")

	last, err := st.LastCrawl(ctx, idA)
	require.NoError(t, err)
	assert.True(t, last.IsZero())
}

func TestRunSkippedRepositoryStillReconciles(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := newStore(t)
	id := register(t, st, "https://a.example.org")

	repo := config.Repository{Name: "A", URL: "https://a.example.org", Type: "oai"}
	src := mockSource(ctrl, id, sources.Result{Skipped: true}, nil)
	src.EXPECT().UpdateStaleRecords(gomock.Any()).Return(sources.Result{Written: 2}, nil)
	factory := mocks.NewMockFactory(ctrl)
	factory.EXPECT().New(repo).Return(src, nil)

	report, err := New(factory, st, nil, WithClock(fixedClock)).Run(context.Background(), []config.Repository{repo})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSkipped, report.Repositories[0].Status)

	last, err := st.LastCrawl(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, last.IsZero(), "a skipped crawl does not move the last crawl time")
}

func TestRunFactoryFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	factory := mocks.NewMockFactory(ctrl)
	repo := config.Repository{Name: "X", Type: "sru"}
	factory.EXPECT().New(repo).Return(nil, sources.ErrUnsupportedType)

	report, err := New(factory, newStore(t), nil).Run(context.Background(), []config.Repository{repo})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, report.Repositories[0].Status)
	assert.ErrorIs(t, report.Repositories[0].Err, sources.ErrUnsupportedType)
}

func TestAlertSuppressionIsRestored(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := newStore(t)
	id := register(t, st, "https://quiet.example.org")
	alerts := logging.NewAlerts(nil, "")
	log := zap.New(alerts.Core())

	off := false
	repo := config.Repository{Name: "Quiet", URL: "https://quiet.example.org", Type: "oai", CopyErrorsToEmail: &off}
	src := mocks.NewMockSource(ctrl)
	src.EXPECT().Register(gomock.Any()).Return(id, nil)
	src.EXPECT().Crawl(gomock.Any()).DoAndReturn(func(context.Context) (sources.Result, error) {
		assert.True(t, alerts.Suppressed("Quiet"))
		log.Error("record failed", zap.String(logging.RepositoryKey, "Quiet"))
		return sources.Result{}, errors.New("boom")
	})
	factory := mocks.NewMockFactory(ctrl)
	factory.EXPECT().New(repo).Return(src, nil)

	_, err := New(factory, st, nil, WithAlerts(alerts)).Run(context.Background(), []config.Repository{repo})
	require.NoError(t, err)
	assert.False(t, alerts.Suppressed("Quiet"))
	assert.Zero(t, alerts.Len())
}

func TestRunConcurrent(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := newStore(t)
	factory := mocks.NewMockFactory(ctrl)
	var repos []config.Repository
	for i := range 4 {
		url := fmt.Sprintf("https://%d.example.org", i)
		id := register(t, st, url)
		repo := config.Repository{Name: url, URL: url, Type: "oai"}
		src := mockSource(ctrl, id, sources.Result{Written: 1}, nil)
		src.EXPECT().UpdateStaleRecords(gomock.Any()).Return(sources.Result{}, nil)
		factory.EXPECT().New(repo).Return(src, nil)
		repos = append(repos, repo)
	}

	report, err := New(factory, st, nil, WithConcurrency(3)).Run(context.Background(), repos)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Count(models.RunStatusComplete))
}

const oaiPage = `<OAI-PMH><ListRecords>
<record><header><identifier>oai:x:1</identifier><datestamp>2024-01-01</datestamp></header>
<metadata><dc><title>One</title><subject>a</subject></dc></metadata></record>
<record><header><identifier>oai:x:2</identifier><datestamp>2024-01-01</datestamp></header>
<metadata><dc><title>Two</title></dc></metadata></record>
</ListRecords></OAI-PMH>`

// An unreachable source on the second run leaves the last crawl time and
// the stored records as they were.
func TestEndToEndUnreachableSource(t *testing.T) {
	ctx := context.Background()
	var down atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(oaiPage))
	}))
	defer srv.Close()

	st := newStore(t)
	limits := ratelimit.SourceConfigs{RateLimits: map[string]ratelimit.Config{
		"oai": {Strategy: ratelimit.StrategyTokenBucket, RequestsPerSec: 1000, Burst: 100, MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	}}
	repo := config.Repository{
		Name: "E2E", URL: srv.URL, Type: "oai",
		AbortAfterNumErrors: 5, RecordRefreshDays: 30, MaxRecordsUpdatedPerRun: 10,
	}
	clock := now
	tick := func() time.Time { return clock }
	factory := sources.NewFactory(st, limits, time.Second, zaptest.NewLogger(t), sources.WithClock(tick))
	c := New(factory, st, zaptest.NewLogger(t), WithClock(tick))

	report, err := c.Run(ctx, []config.Repository{repo})
	require.NoError(t, err)
	require.Equal(t, models.RunStatusComplete, report.Repositories[0].Status, report.Repositories[0].Describe())
	id := report.Repositories[0].RepositoryID
	first, err := st.LastCrawl(ctx, id)
	require.NoError(t, err)
	require.Equal(t, now.Unix(), first.Unix())
	rec, err := st.GetRecord(ctx, id, "oai:x:1")
	require.NoError(t, err)

	down.Store(true)
	clock = now.Add(48 * time.Hour)
	report, err = c.Run(ctx, []config.Repository{repo})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, report.Repositories[0].Status)

	last, err := st.LastCrawl(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, first.Unix(), last.Unix())
	after, err := st.GetRecord(ctx, id, "oai:x:1")
	require.NoError(t, err)
	assert.Equal(t, rec, after)
	children, err := st.RecordChildren(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, children.Subjects, 1)
}
