package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentUsesRoutePattern(t *testing.T) {
	reg := New()

	r := chi.NewRouter()
	r.Use(reg.Instrument)
	r.Get("/cases/{case_id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/cases/"+id, nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(reg.httpRequestsTotal.WithLabelValues("GET", "/cases/{case_id}", "403")))
	assert.Equal(t, 0.0, testutil.ToFloat64(reg.httpInFlight))
}

func TestObserveAuthAndHandler(t *testing.T) {
	reg := New()
	reg.ObserveAuth("login", "success")
	reg.ObserveAuth("login", "success")
	reg.ObserveAuth("refresh", "invalid_token")

	assert.Equal(t, 2.0, testutil.ToFloat64(reg.authEventsTotal.WithLabelValues("login", "success")))

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `auth_events_total{operation="refresh",outcome="invalid_token"} 1`))
}
