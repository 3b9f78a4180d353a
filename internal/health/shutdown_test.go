package health_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/health"
)

type okStorage struct{}

func (okStorage) Ping(context.Context) error { return nil }

func TestDrainingFailsReadinessButNotLiveness(t *testing.T) {
	t.Cleanup(func() { health.SetReady(true) })
	handler := health.Handler{Storage: okStorage{}, Backend: "memory", Timeout: time.Second}

	health.SetReady(false)

	ready := httptest.NewRecorder()
	handler.Ready(ready, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, ready.Code)
	require.Contains(t, ready.Body.String(), `"storage":"draining"`)

	live := httptest.NewRecorder()
	handler.Live(live, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, live.Code)

	health.SetReady(true)
	again := httptest.NewRecorder()
	handler.Ready(again, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, again.Code)
}
