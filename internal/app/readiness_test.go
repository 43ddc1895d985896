package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisCheck(t *testing.T) Check {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return Check{Name: "redis", Ping: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
}

func TestReadinessAllUp(t *testing.T) {
	ready := NewReadiness(nil, time.Second,
		redisCheck(t),
		Check{Name: "postgres", Ping: func(ctx context.Context) error { return nil }},
		Check{Name: "ignored"},
	)

	rr := httptest.NewRecorder()
	ready.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"redis":"up","postgres":"up"}}`, rr.Body.String())
}

func TestReadinessReportsFailure(t *testing.T) {
	ready := NewReadiness(nil, time.Second,
		redisCheck(t),
		Check{Name: "postgres", Ping: func(ctx context.Context) error { return errors.New("connection refused") }},
	)

	status, err := ready.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
	assert.Equal(t, map[string]string{"redis": "up", "postgres": "down"}, status)

	rr := httptest.NewRecorder()
	ready.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"unavailable"`)
}
