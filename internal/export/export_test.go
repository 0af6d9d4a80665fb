package export

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap/zaptest"

	"github.com/mkoziy/harvester/internal/config"
	"github.com/mkoziy/harvester/internal/harvest"
	"github.com/mkoziy/harvester/internal/models"
	"github.com/mkoziy/harvester/internal/store"
)

type fixture struct {
	st    *store.Store
	repo  int64
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{clock: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	st, err := store.Open(ctx, config.DB{Type: "sqlite", DBName: filepath.Join(t.TempDir(), "meta.db")},
		zaptest.NewLogger(t), store.WithClock(func() time.Time { return f.clock }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	f.st = st

	f.repo, err = st.UpsertRepository(ctx, store.RepositoryParams{
		URL: "https://data.example.org/oai", Name: "Example Data", Type: models.TypeOAI,
		Thumbnail: "https://data.example.org/logo.png", Enabled: true,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) write(t *testing.T, rec harvest.Record, domain harvest.DomainMetadata) {
	t.Helper()
	require.NoError(t, f.st.WriteRecord(context.Background(), rec, f.repo, domain))
}

func (f *fixture) options(t *testing.T, format string) Options {
	dir := t.TempDir()
	return Options{
		Format:       format,
		Filepath:     filepath.Join(dir, "data"),
		TempFilepath: filepath.Join(dir, "temp"),
		FileLimitMB:  10,
	}
}

func sampleRecord() harvest.Record {
	return harvest.Record{
		Identifier:     "oai:data:1",
		Title:          "Ocean temperatures",
		PubDate:        "2020-05-17",
		Series:         "Climate",
		Source:         []string{"https://doi.org/10.5072/ABC"},
		Creators:       []string{"Doe, Jane"},
		Contributors:   []string{"Lab"},
		Subjects:       []string{"Oceanography"},
		Rights:         []string{"CC0"},
		Access:         []string{"Public"},
		Descriptions:   []string{"Temperatures at depth."},
		DescriptionsFr: []string{"Températures en profondeur."},
		Tags:           []string{"ocean"},
		Geospatial:     harvest.BoundingBox(40, -70, 50, -60),
	}
}

// datatype reads the "@datatype" key, which gjson paths treat as a modifier.
func datatype(t *testing.T, v gjson.Result) string {
	t.Helper()
	var head struct {
		DataType string `json:"@datatype"`
	}
	require.NoError(t, json.Unmarshal([]byte(v.Raw), &head))
	return head.DataType
}

func TestExportGmeta(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.write(t, sampleRecord(), harvest.DomainMetadata{"oai#language": {"English"}})
	f.write(t, harvest.Record{Identifier: "oai:data:2", Title: "Gone"}, nil)
	gone, err := f.st.GetRecord(ctx, f.repo, "oai:data:2")
	require.NoError(t, err)
	require.True(t, f.st.DeleteRecord(ctx, gone))

	opts := f.options(t, FormatGmeta)
	sum, err := New(f.st, zaptest.NewLogger(t)).Export(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Records)
	assert.Equal(t, 1, sum.Deleted)
	require.Len(t, sum.Files, 1)
	assert.Equal(t, filepath.Join(opts.Filepath, "gmeta_1.json"), sum.Files[0])

	body, err := os.ReadFile(sum.Files[0])
	require.NoError(t, err)
	require.True(t, gjson.ValidBytes(body), string(body))
	doc := gjson.ParseBytes(body)
	assert.Equal(t, "GIngest", datatype(t, doc))

	entries := doc.Get("ingest_data.gmeta").Array()
	require.Len(t, entries, 2)
	live := entries[0]
	assert.Equal(t, "GMetaEntry", datatype(t, live))
	assert.Equal(t, "https://doi.org/10.5072/ABC", live.Get("subject").String())
	content := live.Get("content")
	assert.Equal(t, "Ocean temperatures", content.Get("dc_title").String())
	assert.Equal(t, "Example Data", content.Get("frdr_origin_id").String())
	assert.Equal(t, "Doe, Jane", content.Get("dc_contributor_author.0").String())
	assert.Equal(t, "Lab", content.Get("dc_contributor.0").String())
	assert.Equal(t, "Températures en profondeur.", content.Get("dc_description_fr.0").String())
	assert.Equal(t, int64(5), content.Get("frdr_geospatial.points.#").Int())
	assert.Equal(t, "English", content.Get(`oai\#language.0`).String())

	deleted := entries[1]
	assert.Equal(t, "GDeleteSubject", datatype(t, deleted))
	assert.Equal(t, "https://data.example.org/oai#oai:data:2", deleted.Get("subject").String())
	assert.False(t, deleted.Get("content").Exists())

	_, err = os.Stat(opts.TempFilepath)
	require.NoError(t, err)
	staged, err := os.ReadDir(opts.TempFilepath)
	require.NoError(t, err)
	assert.Empty(t, staged, "staging directory is removed")
}

func TestExportRIFCSSkipsDeleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.write(t, sampleRecord(), nil)
	f.write(t, harvest.Record{Identifier: "oai:data:2", Title: "Gone"}, nil)
	gone, err := f.st.GetRecord(ctx, f.repo, "oai:data:2")
	require.NoError(t, err)
	require.True(t, f.st.DeleteRecord(ctx, gone))

	sum, err := New(f.st, nil).Export(ctx, f.options(t, FormatRIFCS))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Records)
	assert.Equal(t, 1, sum.Skipped)
	require.Len(t, sum.Files, 1)
	assert.True(t, strings.HasSuffix(sum.Files[0], "rifcs_1.xml"))

	body, err := os.ReadFile(sum.Files[0])
	require.NoError(t, err)
	var parsed struct {
		Objects []struct {
			Group string `xml:"group,attr"`
			Key   string `xml:"key"`
			Name  string `xml:"collection>name>namePart"`
			Cover string `xml:"collection>coverage>spatial"`
		} `xml:"registryObject"`
	}
	require.NoError(t, xml.Unmarshal(body, &parsed))
	require.Len(t, parsed.Objects, 1)
	obj := parsed.Objects[0]
	assert.Equal(t, "Example Data", obj.Group)
	assert.Equal(t, "https://doi.org/10.5072/ABC", obj.Key)
	assert.Equal(t, "Ocean temperatures", obj.Name)
	assert.Equal(t, "-70,40 -70,50 -60,50 -60,40 -70,40", obj.Cover)
}

func TestExportOnlyNewRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.write(t, harvest.Record{Identifier: "old", Title: "Old"}, nil)
	marker := f.clock.Add(time.Hour)
	require.NoError(t, f.st.SetSetting(ctx, LastRunSetting, strconv.FormatInt(marker.Unix(), 10)))
	f.clock = f.clock.Add(2 * time.Hour)
	f.write(t, harvest.Record{Identifier: "new", Title: "New"}, nil)

	opts := f.options(t, FormatGmeta)
	opts.OnlyNewRecords = true
	sum, err := New(f.st, nil).Export(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Records)
	assert.Equal(t, marker.Unix(), sum.Since.Unix())

	body, err := os.ReadFile(sum.Files[0])
	require.NoError(t, err)
	titles := gjson.GetBytes(body, "ingest_data.gmeta.#.content.dc_title").Array()
	require.Len(t, titles, 1)
	assert.Equal(t, "New", titles[0].String())
}

func TestExportOnlyNewRecordsWithoutMarker(t *testing.T) {
	f := newFixture(t)
	f.write(t, harvest.Record{Identifier: "a", Title: "A"}, nil)
	opts := f.options(t, FormatGmeta)
	opts.OnlyNewRecords = true
	sum, err := New(f.st, nil).Export(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, sum.Since.IsZero())
	assert.Equal(t, 1, sum.Records)
}

func TestExportReplacesPreviousFiles(t *testing.T) {
	f := newFixture(t)
	opts := f.options(t, FormatGmeta)
	require.NoError(t, os.MkdirAll(opts.Filepath, 0o755))
	for _, name := range []string{"gmeta_1.json", "gmeta_7.json", "rifcs_1.xml"} {
		require.NoError(t, os.WriteFile(filepath.Join(opts.Filepath, name), []byte("stale"), 0o644))
	}

	sum, err := New(f.st, nil).Export(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, sum.Files, 1)

	entries, err := os.ReadDir(opts.Filepath)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"gmeta_1.json", "rifcs_1.xml"}, names)

	body, err := os.ReadFile(sum.Files[0])
	require.NoError(t, err)
	assert.Equal(t, int64(0), gjson.GetBytes(body, "ingest_data.gmeta.#").Int())
}

func TestExportUnknownFormat(t *testing.T) {
	f := newFixture(t)
	_, err := New(f.st, nil).Export(context.Background(), f.options(t, "csv"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestSplitWriter(t *testing.T) {
	dir := t.TempDir()
	f := gmeta{}
	overhead := len(f.header()) + len(f.footer())
	entry := []byte(`{"n":1}`)
	limit := int64(overhead + 2*len(entry) + len(f.separator()))

	w := newSplitWriter(f, dir, limit, zaptest.NewLogger(t))
	for range 5 {
		require.NoError(t, w.add(entry))
	}
	require.NoError(t, w.close())
	require.Len(t, w.files, 3)

	var total int64
	for i, p := range w.files {
		assert.Equal(t, filepath.Join(dir, "gmeta_"+strconv.Itoa(i+1)+".json"), p)
		body, err := os.ReadFile(p)
		require.NoError(t, err)
		require.True(t, gjson.ValidBytes(body))
		assert.LessOrEqual(t, int64(len(body)), limit)
		total += int64(len(body))
	}
	assert.Equal(t, total, w.total)
	counts := []int64{}
	for _, p := range w.files {
		body, _ := os.ReadFile(p)
		counts = append(counts, gjson.GetBytes(body, "ingest_data.gmeta.#").Int())
	}
	assert.Equal(t, []int64{2, 2, 1}, counts)
}

func TestSplitWriterOversizedEntry(t *testing.T) {
	w := newSplitWriter(gmeta{}, t.TempDir(), 10, zaptest.NewLogger(t))
	require.NoError(t, w.add([]byte(`{"big":"`+strings.Repeat("x", 50)+`"}`)))
	require.NoError(t, w.add([]byte(`{"n":2}`)))
	require.NoError(t, w.close())
	assert.Len(t, w.files, 2)
}
