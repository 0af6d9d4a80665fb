package marklogic

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/mkoziy/harvester/internal/httpclient"
)

// Client talks to the MarkLogic REST API (/v1/search, /v1/documents).
type Client struct {
	http    *httpclient.Client
	baseURL string
}

func NewClient(http *httpclient.Client, baseURL string) *Client {
	return &Client{http: http, baseURL: strings.TrimRight(baseURL, "/")}
}

// SearchParams narrows a search; empty fields are omitted.
type SearchParams struct {
	Query      string
	Collection string
}

// SearchPage is one page of search results.
type SearchPage struct {
	Total int
	URIs  []string
}

// Search returns one page of matching document URIs. start is 1-based.
func (c *Client) Search(ctx context.Context, p SearchParams, start, pageLength int) (*SearchPage, error) {
	q := url.Values{
		"format":     {"json"},
		"start":      {strconv.Itoa(start)},
		"pageLength": {strconv.Itoa(pageLength)},
	}
	if p.Query != "" {
		q.Set("q", p.Query)
	}
	if p.Collection != "" {
		q.Set("collection", p.Collection)
	}
	doc, err := c.getJSON(ctx, c.baseURL+"/v1/search", q)
	if err != nil {
		return nil, err
	}
	page := &SearchPage{Total: int(doc.Get("total").Int())}
	for _, uri := range doc.Get("results.#.uri").Array() {
		page.URIs = append(page.URIs, uri.String())
	}
	return page, nil
}

// Document returns the JSON content stored at uri.
func (c *Client) Document(ctx context.Context, uri string) (gjson.Result, error) {
	return c.getJSON(ctx, c.baseURL+"/v1/documents", url.Values{"uri": {uri}, "format": {"json"}})
}

func (c *Client) getJSON(ctx context.Context, u string, q url.Values) (gjson.Result, error) {
	body, err := c.http.Get(ctx, u, q)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%s: invalid JSON response", u)
	}
	return gjson.ParseBytes(body), nil
}
