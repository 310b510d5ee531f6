package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCredentialFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", CredentialFromRequest(req))

	req.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", CredentialFromRequest(req))

	req.Header.Set("Authorization", "bearer lower")
	assert.Equal(t, "lower", CredentialFromRequest(req))

	// X-Auth-Token wins over Authorization.
	req.Header.Set("X-Auth-Token", "xyz")
	assert.Equal(t, "xyz", CredentialFromRequest(req))

	bad := httptest.NewRequest(http.MethodGet, "/", nil)
	bad.Header.Set("Authorization", "Basic dXNlcg==")
	assert.Equal(t, "", CredentialFromRequest(bad))
}

func TestRateLimiterThrottlesPerCredential(t *testing.T) {
	rl := NewRateLimiter(1, 2, nil)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := rl.Handler(next)

	send := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/webhook", nil)
		req.Header.Set("X-Auth-Token", token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("a"))
	assert.Equal(t, http.StatusOK, send("a"))
	assert.Equal(t, http.StatusTooManyRequests, send("a"))

	// A different caller has its own bucket.
	assert.Equal(t, http.StatusOK, send("b"))
}

func TestMetricsCountsRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/channels", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	h.ServeHTTP(httptest.NewRecorder(), req)

	count := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/api/channels", "404"))
	assert.Equal(t, float64(2), count)
}
