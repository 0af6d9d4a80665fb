package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noWait is a limiter that never blocks and retries immediately.
type noWait struct{}

func (noWait) Wait(ctx context.Context) error { return ctx.Err() }
func (noWait) Allow() bool                    { return true }
func (noWait) Reserve() time.Duration         { return 0 }
func (noWait) RetryAfter(int) time.Duration   { return time.Millisecond }

func TestGetMergesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ListRecords", r.URL.Query().Get("verb"))
		assert.Equal(t, "keep", r.URL.Query().Get("existing"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(noWait{}, 0, time.Second, WithHeader("Authorization", "secret"), WithHeader("X-Empty", ""))
	body, err := c.Get(context.Background(), srv.URL+"/oai?existing=keep", url.Values{"verb": {"ListRecords"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestGetRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("finally"))
	}))
	defer srv.Close()

	c := New(noWait{}, 3, time.Second)
	body, err := c.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "finally", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(noWait{}, 2, time.Second)
	_, err := c.Get(context.Background(), srv.URL, nil)
	require.Error(t, err)

	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusBadGateway, herr.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetDoesNotRetryRemoved(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusGone} {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "no such package", status)
		}))

		c := New(noWait{}, 5, time.Second)
		_, err := c.Get(context.Background(), srv.URL, nil)
		srv.Close()

		require.Error(t, err)
		assert.True(t, IsRemoved(err), "status %d", status)
		assert.Equal(t, int32(1), calls.Load())
		assert.Contains(t, err.Error(), "no such package")
	}
	assert.False(t, IsRemoved(&HTTPError{StatusCode: http.StatusInternalServerError}))
	assert.False(t, IsRemoved(context.Canceled))
}

func TestGetBodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer srv.Close()

	c := New(noWait{}, 3, time.Second, WithMaxBody(1024))
	_, err := c.Get(context.Background(), srv.URL, nil)
	require.ErrorIs(t, err, ErrBodyTooLarge)
	assert.Contains(t, err.Error(), "1.0 KiB")
}

func TestGetHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(noWait{}, 3, time.Second)
	_, err := c.Get(ctx, srv.URL, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestHTTPErrorTemporary(t *testing.T) {
	assert.True(t, (&HTTPError{StatusCode: 429}).Temporary())
	assert.True(t, (&HTTPError{StatusCode: 500}).Temporary())
	assert.False(t, (&HTTPError{StatusCode: 400}).Temporary())
	assert.Contains(t, (&HTTPError{StatusCode: 400, URL: "u"}).Error(), "unexpected status 400")
}
