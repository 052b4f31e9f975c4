package sources

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bioleads/internal/resilience"
)

func fastRetry() resilience.Policy {
	return resilience.Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}
}

func newTestClient(service, baseURL string) *Client {
	return NewClient(ClientOptions{
		Service:   service,
		BaseURL:   baseURL,
		UserAgent: "bioleads-test",
		Timeout:   5 * time.Second,
		RateLimit: 1000,
		Burst:     10,
		Retry:     fastRetry(),
	})
}

func TestClientGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/items", r.URL.Path)
		assert.Equal(t, "organoid", r.URL.Query().Get("q"))
		assert.Equal(t, "bioleads-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"name":"ok"}`))
	}))
	defer srv.Close()

	c := newTestClient("test", srv.URL+"/")
	var out struct {
		Name string `json:"name"`
	}
	err := c.GetJSON(context.Background(), "/items", url.Values{"q": {"organoid"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Name)
}

func TestClientGetXMLTranscodesCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/xml", r.Header.Get("Accept"))
		// "Müller" in ISO-8859-1.
		_, _ = w.Write([]byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><a><name>M\xfcller</name></a>"))
	}))
	defer srv.Close()

	c := newTestClient("test", srv.URL)
	var out struct {
		Name string `xml:"name"`
	}
	require.NoError(t, c.GetXML(context.Background(), "/", nil, &out))
	assert.Equal(t, "Müller", out.Name)
}

func TestClientPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]int
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(map[string]int{"doubled": body["n"] * 2})
	}))
	defer srv.Close()

	c := newTestClient("test", srv.URL)
	var out map[string]int
	require.NoError(t, c.PostJSON(context.Background(), "/calc", map[string]int{"n": 21}, &out))
	assert.Equal(t, 42, out["doubled"])
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient("test", srv.URL)
	require.NoError(t, c.GetJSON(context.Background(), "/", nil, &struct{}{}))
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "no such resource", http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient("test", srv.URL)
	err := c.GetJSON(context.Background(), "/missing", nil, &struct{}{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var se *resilience.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, "no such resource", se.Body)
	assert.False(t, resilience.IsTransient(err))
}

func TestClientSlowsDownOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient("test", srv.URL)
	require.NoError(t, c.GetJSON(context.Background(), "/", nil, &struct{}{}))

	// Halved after the 429, then raised 20% by the success.
	assert.InDelta(t, 600, float64(c.Limiter().Limit()), 0.001)
}

func TestClientDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := newTestClient("test", srv.URL)
	err := c.GetJSON(context.Background(), "/", nil, &struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClientBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{
		Service:   "test",
		BaseURL:   srv.URL,
		RateLimit: 1000,
		Retry:     fastRetry(),
		Breaker:   resilience.NewBreaker(1, time.Hour),
	})

	err := c.GetJSON(context.Background(), "/", nil, nil)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())

	err = c.GetJSON(context.Background(), "/", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, resilience.ErrBreakerOpen))
	assert.Equal(t, int32(3), calls.Load())
}

func TestAdaptiveLimiterBounds(t *testing.T) {
	l := NewAdaptiveLimiter("test", 10, 0)

	for range 10 {
		l.OnSuccess()
	}
	assert.InDelta(t, 20, float64(l.Limit()), 0.001)

	for range 10 {
		l.OnRateLimit()
	}
	assert.InDelta(t, 2.5, float64(l.Limit()), 0.001)
}
