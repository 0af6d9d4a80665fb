package oai

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mkoziy/harvester/internal/httpclient"
)

// Protocol error codes with special handling.
const (
	ErrCodeNoRecordsMatch = "noRecordsMatch"
	ErrCodeIDDoesNotExist = "idDoesNotExist"
)

// ProtocolError is an <error> element of an OAI-PMH response.
type ProtocolError struct {
	Code    string
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("oai-pmh %s: %s", e.Code, strings.TrimSpace(e.Message))
}

// Client issues OAI-PMH verbs against one endpoint.
type Client struct {
	http    *httpclient.Client
	baseURL string
}

func NewClient(http *httpclient.Client, baseURL string) *Client {
	return &Client{http: http, baseURL: baseURL}
}

// ListParams selects the first page of a ListRecords listing.
type ListParams struct {
	MetadataPrefix string
	Set            string
	From           time.Time
}

// ListRecords fetches one page. An empty token starts a new listing; a
// noRecordsMatch error is returned as an empty page.
func (c *Client) ListRecords(ctx context.Context, p ListParams, token string) (*ListRecords, error) {
	q := url.Values{"verb": {"ListRecords"}}
	if token != "" {
		q.Set("resumptionToken", token)
	} else {
		q.Set("metadataPrefix", p.MetadataPrefix)
		if p.Set != "" {
			q.Set("set", p.Set)
		}
		if !p.From.IsZero() {
			q.Set("from", p.From.UTC().Format("2006-01-02"))
		}
	}

	env, err := c.get(ctx, q)
	if err != nil {
		var perr *ProtocolError
		if errors.As(err, &perr) && perr.Code == ErrCodeNoRecordsMatch {
			return &ListRecords{}, nil
		}
		return nil, err
	}
	if env.ListRecords == nil {
		return &ListRecords{}, nil
	}
	return env.ListRecords, nil
}

// GetRecord fetches a single record by identifier.
func (c *Client) GetRecord(ctx context.Context, identifier, metadataPrefix string) (*RecordXML, error) {
	q := url.Values{
		"verb":           {"GetRecord"},
		"identifier":     {identifier},
		"metadataPrefix": {metadataPrefix},
	}
	env, err := c.get(ctx, q)
	if err != nil {
		return nil, err
	}
	if env.GetRecord == nil {
		return nil, fmt.Errorf("GetRecord %s: empty response", identifier)
	}
	return &env.GetRecord.Record, nil
}

func (c *Client) get(ctx context.Context, q url.Values) (*Envelope, error) {
	body, err := c.http.Get(ctx, c.baseURL, q)
	if err != nil {
		return nil, err
	}
	var env Envelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode XML: %w", err)
	}
	if len(env.Errors) > 0 {
		e := env.Errors[0]
		return nil, &ProtocolError{Code: e.Code, Message: e.Message}
	}
	return &env, nil
}
