package csw

import (
	"context"
	"fmt"
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

const recordXML = `<csw:Record xmlns:csw="http://www.opengis.net/cat/csw/2.0.2" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dct="http://purl.org/dc/terms/" xmlns:ows="http://www.opengis.net/ows">
  <dc:identifier>%s</dc:identifier>
  <dc:title>Sea ice extent</dc:title>
  <dc:creator>Canadian Ice Service</dc:creator>
  <dc:subject>ice</dc:subject>
  <dc:subject>arctic</dc:subject>
  <dc:type>dataset</dc:type>
  <dc:format>NetCDF</dc:format>
  <dct:abstract>Daily sea ice extent.</dct:abstract>
  <dct:modified>2024-05-06</dct:modified>
  <dct:references scheme="WWW:LINK">https://catalogue.example.org/%s</dct:references>
  <dc:rights>Open</dc:rights>
  <ows:BoundingBox crs="urn:ogc:def:crs:EPSG:6.11:4326">
    <ows:LowerCorner>50.0 -141.0</ows:LowerCorner>
    <ows:UpperCorner>83.0 -52.0</ows:UpperCorner>
  </ows:BoundingBox>
</csw:Record>`

func page(matched, next int, ids ...string) string {
	body := fmt.Sprintf(`<csw:GetRecordsResponse xmlns:csw="http://www.opengis.net/cat/csw/2.0.2">
<csw:SearchResults numberOfRecordsMatched="%d" numberOfRecordsReturned="%d" nextRecord="%d">`, matched, len(ids), next)
	for _, id := range ids {
		body += fmt.Sprintf(recordXML, id, id)
	}
	return body + `</csw:SearchResults></csw:GetRecordsResponse>`
}

func newSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	hc := httpclient.New(noWait{}, 0, time.Second)
	return NewSource(NewClient(hc, srv.URL+"/csw"), Config{PageSize: 2}, nil)
}

func TestHarvestFollowsNextRecord(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	src := newSource(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "GetRecords", q.Get("request"))
		assert.Equal(t, "full", q.Get("elementSetName"))
		assert.Equal(t, "dct:modified >= '2024-01-01T00:00:00Z'", q.Get("constraint"))
		switch q.Get("startPosition") {
		case "1":
			_, _ = w.Write([]byte(page(3, 3, "r1", "r2")))
		case "3":
			_, _ = w.Write([]byte(page(3, 0, "r3")))
		default:
			t.Errorf("unexpected startPosition %s", q.Get("startPosition"))
		}
	})

	var ids []string
	require.NoError(t, src.Harvest(context.Background(), since, func(it harvest.Item) error {
		require.NoError(t, it.Err)
		ids = append(ids, it.Record.Identifier)
		return nil
	}))
	assert.Equal(t, []string{"r1", "r2", "r3"}, ids)
}

func TestHarvestStuckNextRecord(t *testing.T) {
	src := newSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page(10, 1, "r1")))
	})
	err := src.Harvest(context.Background(), time.Time{}, func(harvest.Item) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not advance")
}

func TestHarvestExceptionReport(t *testing.T) {
	src := newSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<ows:ExceptionReport xmlns:ows="http://www.opengis.net/ows" version="1.2.0">
  <ows:Exception exceptionCode="InvalidParameterValue" locator="constraint">
    <ows:ExceptionText>Invalid CQL</ows:ExceptionText>
  </ows:Exception>
</ows:ExceptionReport>`))
	})
	err := src.Harvest(context.Background(), time.Time{}, func(harvest.Item) error { return nil })
	var exc *ExceptionError
	require.ErrorAs(t, err, &exc)
	assert.Equal(t, "InvalidParameterValue", exc.Code)
	assert.Equal(t, "Invalid CQL", exc.Text)
}

func TestFetchMapsRecord(t *testing.T) {
	src := newSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GetRecordById", r.URL.Query().Get("request"))
		if r.URL.Query().Get("id") == "gone" {
			_, _ = w.Write([]byte(`<csw:GetRecordByIdResponse xmlns:csw="http://www.opengis.net/cat/csw/2.0.2"/>`))
			return
		}
		_, _ = fmt.Fprintf(w, `<csw:GetRecordByIdResponse xmlns:csw="http://www.opengis.net/cat/csw/2.0.2">`+recordXML+`</csw:GetRecordByIdResponse>`, "ice", "ice")
	})

	item, err := src.Fetch(context.Background(), "ice")
	require.NoError(t, err)
	rec := item.Record
	assert.Equal(t, "ice", rec.Identifier)
	assert.Equal(t, "Sea ice extent", rec.Title)
	assert.Equal(t, "2024-05-06", rec.PubDate)
	assert.Equal(t, "https://catalogue.example.org/ice", rec.SourceURL())
	assert.Equal(t, []string{"Canadian Ice Service"}, rec.Creators)
	assert.Equal(t, []string{"ice", "arctic"}, rec.Subjects)
	assert.Equal(t, []string{"Daily sea ice extent."}, rec.Descriptions)
	assert.Equal(t, []string{"Open"}, rec.Rights)
	assert.Equal(t, harvest.BoundingBox(50, -141, 83, -52), rec.Geospatial)
	assert.Equal(t, []string{"dataset"}, item.Domain["csw#type"])
	assert.Equal(t, []string{"NetCDF"}, item.Domain["csw#format"])

	_, err = src.Fetch(context.Background(), "gone")
	assert.ErrorIs(t, err, harvest.ErrRemoved)
}

func TestBoundingBoxAxisOrder(t *testing.T) {
	lonLat := bboxGeometry(BoundingBox{CRS: "urn:ogc:def:crs:OGC:1.3:CRS84", LowerCorner: "-141 50", UpperCorner: "-52 83"})
	assert.Equal(t, harvest.BoundingBox(50, -141, 83, -52), lonLat)
	assert.Nil(t, bboxGeometry(BoundingBox{LowerCorner: "1", UpperCorner: "2 3"}))
}
