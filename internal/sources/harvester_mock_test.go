package sources_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mkoziy/harvester/internal/config"
	"github.com/mkoziy/harvester/internal/harvest"
	"github.com/mkoziy/harvester/internal/logging"
	"github.com/mkoziy/harvester/internal/models"
	"github.com/mkoziy/harvester/internal/sources"
	"github.com/mkoziy/harvester/internal/sources/mocks"
)

const repoID = int64(7)

func mockRepo() config.Repository {
	return config.Repository{
		Name:                    "Mocked",
		URL:                     "https://mocked.example.org",
		Type:                    "oai",
		AbortAfterNumErrors:     3,
		RecordRefreshDays:       30,
		MaxRecordsUpdatedPerRun: 10,
	}
}

func expectRegister(st *mocks.MockRecordStore) {
	st.EXPECT().UpsertRepository(gomock.Any(), gomock.Any()).Return(repoID, nil)
}

func TestCrawlReportsFailedSoftDelete(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := mocks.NewMockRecordStore(ctrl)
	proto := mocks.NewMockProtocol(ctrl)

	expectRegister(st)
	st.EXPECT().LastCrawl(gomock.Any(), repoID).Return(time.Time{}, nil)
	proto.EXPECT().Harvest(gomock.Any(), time.Time{}, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ time.Time, emit harvest.EmitFunc) error {
			return emit(harvest.Item{Record: harvest.Record{Identifier: "gone"}, Deleted: true})
		})
	rec := &models.Record{ID: 3, RepositoryID: repoID, LocalIdentifier: "gone"}
	st.EXPECT().GetRecord(gomock.Any(), repoID, "gone").Return(rec, nil)
	st.EXPECT().DeleteRecord(gomock.Any(), rec).Return(false)

	core, logs := observer.New(zapcore.ErrorLevel)
	res, err := sources.NewHarvester(mockRepo(), proto, st, zap.New(core)).Crawl(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Deleted)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "gone")

	entries := logs.FilterMessage("unable to soft-delete record").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "Mocked", fields[logging.RepositoryKey])
	assert.Equal(t, "gone", fields["identifier"])
}

func TestUpdateStaleRecordsOutcomes(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := mocks.NewMockRecordStore(ctrl)
	proto := mocks.NewMockProtocol(ctrl)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	stored := now.Add(-40 * 24 * time.Hour)

	stale := []models.Record{
		{ID: 1, RepositoryID: repoID, LocalIdentifier: "same", Title: "Same", ModifiedTimestamp: models.Epoch(stored)},
		{ID: 2, RepositoryID: repoID, LocalIdentifier: "changed", Title: "Old", ModifiedTimestamp: models.Epoch(stored)},
		{ID: 3, RepositoryID: repoID, LocalIdentifier: "removed", Title: "Gone", ModifiedTimestamp: models.Epoch(stored)},
		{ID: 4, RepositoryID: repoID, LocalIdentifier: "flaky", Title: "Flaky", ModifiedTimestamp: models.Epoch(stored)},
	}
	expectRegister(st)
	st.EXPECT().StaleRecords(gomock.Any(), now.Add(-30*24*time.Hour), repoID, 10).Return(stale, nil)

	proto.EXPECT().Fetch(gomock.Any(), "same").
		Return(harvest.Item{Record: harvest.Record{Identifier: "same"}, Datestamp: stored.Add(-time.Hour)}, nil)
	st.EXPECT().TouchRecord(gomock.Any(), gomock.Any()).Return(nil)

	proto.EXPECT().Fetch(gomock.Any(), "changed").
		Return(harvest.Item{Record: harvest.Record{Title: "New"}, Datestamp: stored.Add(time.Hour)}, nil)
	st.EXPECT().WriteRecord(gomock.Any(), harvest.Record{Identifier: "changed", Title: "New"}, repoID, gomock.Nil()).Return(nil)

	proto.EXPECT().Fetch(gomock.Any(), "removed").Return(harvest.Item{}, harvest.ErrRemoved)
	st.EXPECT().DeleteRecord(gomock.Any(), gomock.Any()).Return(true)

	proto.EXPECT().Fetch(gomock.Any(), "flaky").Return(harvest.Item{}, errors.New("timeout"))

	h := sources.NewHarvester(mockRepo(), proto, st, nil, sources.WithClock(func() time.Time { return now }))
	res, err := h.UpdateStaleRecords(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Touched)
	assert.Equal(t, 1, res.Written)
	assert.Equal(t, 1, res.Deleted)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "flaky")
}
