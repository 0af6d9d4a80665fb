package csw

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mkoziy/harvester/internal/httpclient"
)

const (
	Version      = "2.0.2"
	OutputSchema = "http://www.opengis.net/cat/csw/2.0.2"
)

// ExceptionError is an ows:ExceptionReport answer.
type ExceptionError struct {
	Code string
	Text string
}

func (e *ExceptionError) Error() string {
	return fmt.Sprintf("csw exception %s: %s", e.Code, e.Text)
}

// Client issues CSW 2.0.2 KVP requests.
type Client struct {
	http    *httpclient.Client
	baseURL string
}

func NewClient(http *httpclient.Client, baseURL string) *Client {
	return &Client{http: http, baseURL: baseURL}
}

// GetRecords returns one page of full Dublin Core records. startPosition is
// 1-based. A non-zero since adds a dct:modified constraint.
func (c *Client) GetRecords(ctx context.Context, since time.Time, startPosition, maxRecords int) (*SearchResults, error) {
	q := c.query("GetRecords")
	q.Set("typeNames", "csw:Record")
	q.Set("resultType", "results")
	q.Set("startPosition", strconv.Itoa(startPosition))
	q.Set("maxRecords", strconv.Itoa(maxRecords))
	if !since.IsZero() {
		q.Set("constraintLanguage", "CQL_TEXT")
		q.Set("constraint_language_version", "1.1.0")
		q.Set("constraint", fmt.Sprintf("dct:modified >= '%s'", since.UTC().Format("2006-01-02T15:04:05Z")))
	}
	resp, err := c.get(ctx, q)
	if err != nil {
		return nil, err
	}
	if resp.SearchResults == nil {
		return nil, fmt.Errorf("GetRecords: response %s has no SearchResults", resp.XMLName.Local)
	}
	return resp.SearchResults, nil
}

// GetRecordByID returns the record, or nil when the catalogue has none.
func (c *Client) GetRecordByID(ctx context.Context, id string) (*Record, error) {
	q := c.query("GetRecordById")
	q.Set("id", id)
	resp, err := c.get(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(resp.Records) == 0 {
		return nil, nil
	}
	return &resp.Records[0], nil
}

func (c *Client) query(request string) url.Values {
	return url.Values{
		"service":        {"CSW"},
		"version":        {Version},
		"request":        {request},
		"elementSetName": {"full"},
		"outputSchema":   {OutputSchema},
	}
}

func (c *Client) get(ctx context.Context, q url.Values) (*Response, error) {
	body, err := c.http.Get(ctx, c.baseURL, q)
	if err != nil {
		return nil, err
	}
	var resp Response
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode XML: %w", err)
	}
	if resp.XMLName.Local == "ExceptionReport" {
		if len(resp.Exceptions) == 0 {
			return nil, &ExceptionError{Code: "Unknown"}
		}
		e := resp.Exceptions[0]
		return nil, &ExceptionError{Code: e.Code, Text: strings.TrimSpace(strings.Join(e.Text, " "))}
	}
	return &resp, nil
}
