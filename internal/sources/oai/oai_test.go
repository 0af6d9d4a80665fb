package oai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkoziy/harvester/internal/harvest"
	"github.com/mkoziy/harvester/internal/httpclient"
)

type noWait struct{}

func (noWait) Wait(ctx context.Context) error { return ctx.Err() }
func (noWait) Allow() bool                    { return true }
func (noWait) Reserve() time.Duration         { return 0 }
func (noWait) RetryAfter(int) time.Duration   { return 0 }

const pageOne = `<?xml version="1.0" encoding="UTF-8"?>
<OAI-PMH xmlns="http://www.openarchives.org/OAI/2.0/">
  <responseDate>2024-01-01T00:00:00Z</responseDate>
  <ListRecords>
    <record>
      <header>
        <identifier>oai:example.org:1</identifier>
        <datestamp>2023-11-02T10:00:00Z</datestamp>
        <setSpec>dataverse</setSpec>
      </header>
      <metadata>
        <oai_dc:dc xmlns:oai_dc="http://www.openarchives.org/OAI/2.0/oai_dc/" xmlns:dc="http://purl.org/dc/elements/1.1/">
          <dc:title>Ocean temperatures</dc:title>
          <dc:title>Températures océaniques</dc:title>
          <dc:creator>Doe, Jane</dc:creator>
          <dc:creator>Roe, Rick</dc:creator>
          <dc:subject>Earth and Environmental Sciences</dc:subject>
          <dc:description>Temperatures at depth.</dc:description>
          <dc:publisher>Example Dataverse</dc:publisher>
          <dc:contributor>Lab</dc:contributor>
          <dc:date>2020-05-17</dc:date>
          <dc:type>Dataset</dc:type>
          <dc:identifier>doi:10.5072/FK2/ABC</dc:identifier>
          <dc:language>English</dc:language>
          <dc:relation>isPartOf: Climate Collection</dc:relation>
          <dc:rights>CC0</dc:rights>
        </oai_dc:dc>
      </metadata>
    </record>
    <record>
      <header status="deleted">
        <identifier>oai:example.org:2</identifier>
        <datestamp>2023-11-03</datestamp>
      </header>
    </record>
    <resumptionToken completeListSize="3" cursor="0">page2</resumptionToken>
  </ListRecords>
</OAI-PMH>`

const pageTwo = `<OAI-PMH xmlns="http://www.openarchives.org/OAI/2.0/">
  <ListRecords>
    <record>
      <header><identifier>oai:example.org:3</identifier><datestamp>2023-11-04</datestamp></header>
      <metadata>
        <oai_dc:dc xmlns:oai_dc="http://www.openarchives.org/OAI/2.0/oai_dc/" xmlns:dc="http://purl.org/dc/elements/1.1/">
          <dc:title>Third</dc:title>
          <dc:source>https://example.org/3</dc:source>
        </oai_dc:dc>
      </metadata>
    </record>
    <resumptionToken completeListSize="3" cursor="2"/>
  </ListRecords>
</OAI-PMH>`

func newSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	hc := httpclient.New(noWait{}, 0, time.Second)
	return NewSource(NewClient(hc, srv.URL), Config{Set: "dataverse"}, nil)
}

func TestHarvestFollowsResumptionTokens(t *testing.T) {
	since := time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC)
	var requests []string
	src := newSource(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		requests = append(requests, r.URL.RawQuery)
		assert.Equal(t, "ListRecords", q.Get("verb"))
		if q.Get("resumptionToken") == "page2" {
			assert.Empty(t, q.Get("metadataPrefix"), "token requests carry no other arguments")
			_, _ = w.Write([]byte(pageTwo))
			return
		}
		assert.Equal(t, "oai_dc", q.Get("metadataPrefix"))
		assert.Equal(t, "dataverse", q.Get("set"))
		assert.Equal(t, "2023-10-01", q.Get("from"))
		_, _ = w.Write([]byte(pageOne))
	})

	var items []harvest.Item
	err := src.Harvest(context.Background(), since, func(it harvest.Item) error {
		items = append(items, it)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, requests, 2)
	require.Len(t, items, 3)

	first := items[0]
	require.NoError(t, first.Err)
	assert.Equal(t, "oai:example.org:1", first.Record.Identifier)
	assert.Equal(t, "Ocean temperatures", first.Record.Title)
	assert.Equal(t, "2020-05-17", first.Record.PubDate)
	assert.Equal(t, []string{"Doe, Jane", "Roe, Rick"}, first.Record.Creators)
	assert.Equal(t, []string{"Lab"}, first.Record.Contributors)
	assert.Equal(t, "https://doi.org/10.5072/FK2/ABC", first.Record.SourceURL())
	assert.Equal(t, "Climate Collection", first.Record.Series)
	assert.Equal(t, []string{"Dataset"}, first.Domain["dc#type"])
	assert.Equal(t, []string{"Températures océaniques"}, first.Domain["dc#alternative"])
	assert.Equal(t, time.Date(2023, 11, 2, 10, 0, 0, 0, time.UTC), first.Datestamp)

	assert.True(t, items[1].Deleted)
	assert.Equal(t, "oai:example.org:2", items[1].Record.Identifier)

	assert.Equal(t, "https://example.org/3", items[2].Record.SourceURL())
	assert.Nil(t, items[2].Record.Creators, "absent elements stay nil")
}

func TestHarvestNoRecordsMatch(t *testing.T) {
	src := newSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<OAI-PMH><error code="noRecordsMatch">nothing new</error></OAI-PMH>`))
	})
	called := false
	err := src.Harvest(context.Background(), time.Time{}, func(harvest.Item) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestHarvestStopsOnEmitError(t *testing.T) {
	src := newSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(pageOne))
	})
	stop := errors.New("budget exceeded")
	err := src.Harvest(context.Background(), time.Time{}, func(harvest.Item) error { return stop })
	require.ErrorIs(t, err, stop)
}

func TestHarvestRejectsStuckToken(t *testing.T) {
	src := newSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<OAI-PMH><ListRecords><resumptionToken>same</resumptionToken></ListRecords></OAI-PMH>`))
	})
	err := src.Harvest(context.Background(), time.Time{}, func(harvest.Item) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not advance")
}

func TestHarvestSurfacesProtocolErrors(t *testing.T) {
	src := newSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<OAI-PMH><error code="badArgument">bad set</error></OAI-PMH>`))
	})
	err := src.Harvest(context.Background(), time.Time{}, func(harvest.Item) error { return nil })
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "badArgument", perr.Code)
}

func TestFetch(t *testing.T) {
	src := newSource(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "GetRecord", q.Get("verb"))
		switch q.Get("identifier") {
		case "gone":
			_, _ = w.Write([]byte(`<OAI-PMH><error code="idDoesNotExist">unknown</error></OAI-PMH>`))
		case "deleted":
			_, _ = w.Write([]byte(`<OAI-PMH><GetRecord><record><header status="deleted"><identifier>deleted</identifier></header></record></GetRecord></OAI-PMH>`))
		default:
			_, _ = w.Write([]byte(`<OAI-PMH><GetRecord><record><header><identifier>ok</identifier><datestamp>2024-01-01</datestamp></header>
				<metadata><dc><title>Fine</title></dc></metadata></record></GetRecord></OAI-PMH>`))
		}
	})
	ctx := context.Background()

	item, err := src.Fetch(ctx, "ok")
	require.NoError(t, err)
	assert.Equal(t, "Fine", item.Record.Title)

	_, err = src.Fetch(ctx, "gone")
	require.ErrorIs(t, err, harvest.ErrRemoved)

	_, err = src.Fetch(ctx, "deleted")
	require.ErrorIs(t, err, harvest.ErrRemoved)
}

func TestMapRecordWithoutMetadata(t *testing.T) {
	item := MapRecord(RecordXML{Header: Header{Identifier: "x"}})
	require.Error(t, item.Err)
	assert.Equal(t, "x", item.Record.Identifier)
}
