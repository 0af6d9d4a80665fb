package ckan

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/mkoziy/harvester/internal/httpclient"
)

// ErrNotFound is a CKAN "Not Found Error" answer.
var ErrNotFound = errors.New("ckan: not found")

// ActionError is an unsuccessful action API response.
type ActionError struct {
	Action  string
	Type    string
	Message string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("ckan %s: %s: %s", e.Action, e.Type, e.Message)
}

func (e *ActionError) Unwrap() error {
	if e.Type == "Not Found Error" {
		return ErrNotFound
	}
	return nil
}

// Client calls the CKAN action API (/api/3/action/...).
type Client struct {
	http    *httpclient.Client
	baseURL string
}

func NewClient(http *httpclient.Client, baseURL string) *Client {
	return &Client{http: http, baseURL: strings.TrimRight(baseURL, "/")}
}

// SiteURL is the portal root that dataset pages live under.
func (c *Client) SiteURL() string { return c.baseURL }

// PackageList returns one page of dataset names.
func (c *Client) PackageList(ctx context.Context, offset, limit int) ([]string, error) {
	result, err := c.action(ctx, "package_list", url.Values{
		"offset": {strconv.Itoa(offset)},
		"limit":  {strconv.Itoa(limit)},
	})
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(result.Array()))
	for _, n := range result.Array() {
		names = append(names, n.String())
	}
	return names, nil
}

// SearchPage is one package_search result page.
type SearchPage struct {
	Count   int
	Results []gjson.Result
}

// PackagesModifiedSince pages through package_search ordered by modification
// time, restricted to datasets modified at or after since.
func (c *Client) PackagesModifiedSince(ctx context.Context, since time.Time, start, rows int) (*SearchPage, error) {
	result, err := c.action(ctx, "package_search", url.Values{
		"fq":    {fmt.Sprintf("metadata_modified:[%s TO *]", since.UTC().Format("2006-01-02T15:04:05Z"))},
		"sort":  {"metadata_modified asc"},
		"start": {strconv.Itoa(start)},
		"rows":  {strconv.Itoa(rows)},
	})
	if err != nil {
		return nil, err
	}
	return &SearchPage{
		Count:   int(result.Get("count").Int()),
		Results: result.Get("results").Array(),
	}, nil
}

// PackageShow returns the full dataset object.
func (c *Client) PackageShow(ctx context.Context, id string) (gjson.Result, error) {
	return c.action(ctx, "package_show", url.Values{"id": {id}})
}

func (c *Client) action(ctx context.Context, name string, q url.Values) (gjson.Result, error) {
	body, err := c.http.Get(ctx, c.baseURL+"/api/3/action/"+name, q)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("ckan %s: invalid JSON response", name)
	}
	doc := gjson.ParseBytes(body)
	if aerr := actionError(name, doc); aerr != nil {
		return gjson.Result{}, aerr
	}
	return doc.Get("result"), nil
}

func actionError(name string, doc gjson.Result) *ActionError {
	if doc.Get("success").Bool() {
		return nil
	}
	if !doc.Get("success").Exists() && !doc.Get("error").Exists() {
		return nil
	}
	return &ActionError{
		Action:  name,
		Type:    doc.Get("error.__type").String(),
		Message: doc.Get("error.message").String(),
	}
}
