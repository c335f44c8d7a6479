package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/authz"
)

func testConfig() *Config {
	return &Config{
		AppEnv:            "test",
		RateLimit:         1000,
		RateLimitWindow:   time.Minute,
		AppRequestTimeout: 5 * time.Second,
	}
}

func TestHealthz(t *testing.T) {
	r := NewRouter(RouterDeps{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: testConfig(),
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestBusinessRoutesRequireCaller(t *testing.T) {
	r := NewRouter(RouterDeps{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: testConfig(),
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "non-numeric", header: "abc", want: http.StatusUnauthorized},
		{name: "zero", header: "0", want: http.StatusUnauthorized},
		{name: "negative", header: "-4", want: http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/businesses/1/documents", nil)
			if tc.header != "" {
				req.Header.Set("X-Caller-ID", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tc.want, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestRequireCallerStoresIdentity(t *testing.T) {
	var got int64
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = authz.CallerFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := RequireCaller(slog.New(slog.NewTextHandler(io.Discard, nil)))(inner)

	req := httptest.NewRequest(http.MethodGet, "/businesses/1/documents", nil)
	req.Header.Set("X-Caller-ID", "77")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(77), got)
}
