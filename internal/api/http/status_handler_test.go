package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemt-admin/internal/domain"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeStats struct {
	stats *domain.AdminStats
	err   error
}

func (f fakeStats) Stats(context.Context) (*domain.AdminStats, error) { return f.stats, f.err }

func serve(h *StatusHandler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(NewStatusHandler(fakePinger{}, fakeStats{}), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = serve(NewStatusHandler(fakePinger{err: errors.New("down")}, fakeStats{}), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStats(t *testing.T) {
	h := NewStatusHandler(fakePinger{}, fakeStats{stats: &domain.AdminStats{Total: 5, Pending: 2, Approved: 3}})
	rec := serve(h, http.MethodGet, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got domain.AdminStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(5), got.Total)
	assert.Equal(t, int64(2), got.Pending)

	rec = serve(NewStatusHandler(fakePinger{}, fakeStats{err: errors.New("boom")}), http.MethodGet, "/stats")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = serve(h, http.MethodPost, "/stats")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
