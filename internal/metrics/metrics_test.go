package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/leads/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/leads/"+id, http.NoBody))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	}

	got := testutil.ToFloat64(apiRequestsTotal.WithLabelValues("GET", "/leads/{id}", "404"))
	assert.GreaterOrEqual(t, got, 2.0)
	assert.Positive(t, testutil.CollectAndCount(apiRequestDuration))
}

func TestMiddleware_ImplicitOK(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Post("/score", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/score", http.NoBody))

	got := testutil.ToFloat64(apiRequestsTotal.WithLabelValues("POST", "/score", "200"))
	assert.GreaterOrEqual(t, got, 1.0)
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "unmatched", routeLabel(""))
	assert.Equal(t, "/health", routeLabel("/health"))
}

func TestPipelineInstruments(t *testing.T) {
	ObserveSourceRequest("test-source", "200", 150*time.Millisecond)
	AddSourceLeads("test-source", 7)
	IncSourceFailure("test-source")
	ObserveStage("linkage", time.Second, 42)
	SetTierCounts(map[string]int{"hot": 3, "warm": 5})
	IncEnrichCache(true)
	IncEnrichCache(false)

	assert.GreaterOrEqual(t, testutil.ToFloat64(sourceRequestsTotal.WithLabelValues("test-source", "200")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(sourceLeadsTotal.WithLabelValues("test-source")), 7.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(sourceFailuresTotal.WithLabelValues("test-source")), 1.0)
	assert.Equal(t, 42.0, testutil.ToFloat64(stageLeads.WithLabelValues("linkage")))
	assert.Equal(t, 3.0, testutil.ToFloat64(leadsByTier.WithLabelValues("hot")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(enrichCacheTotal.WithLabelValues("hit")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(enrichCacheTotal.WithLabelValues("miss")), 1.0)
}

func TestHandlerExposesNamespace(t *testing.T) {
	ObserveStage("scoring", time.Millisecond, 1)

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "bioleads_pipeline_leads")
}
