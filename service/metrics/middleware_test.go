package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetricsMiddlewareRecordsPerRoute(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/wallets", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /api/v1/wallets/{id}/balances", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	handler := HTTPMetricsMiddleware(m, mux)

	for _, path := range []string{"/api/v1/wallets", "/api/v1/wallets", "/api/v1/wallets/w1/balances"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	count := func(method, path, status string) float64 {
		return testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues(method, path, status))
	}

	assert.Equal(t, 2.0, count("GET", "/api/v1/wallets", "200"))
	// The path label is the route pattern, not the raw URL
	assert.Equal(t, 1.0, count("GET", "/api/v1/wallets/{id}/balances", "502"))
}

func TestHTTPMetricsMiddlewareLabelsUnmatchedRoutes(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	handler := HTTPMetricsMiddleware(m, http.NewServeMux())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 1.0,
		testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}
