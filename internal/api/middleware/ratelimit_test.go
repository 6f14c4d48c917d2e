package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countAllowed(rl *InMemoryRateLimiter, clientID string, attempts int) int {
	allowed := 0

	for i := 0; i < attempts; i++ {
		if rl.Allow(clientID) {
			allowed++
		}
	}

	return allowed
}

func TestRateLimiter_GlobalLimitEnforced(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{GlobalRPS: 10, GlobalBurst: 10, ClientRPS: 50})
	defer rl.Close()

	assert.Equal(t, 10, countAllowed(rl, "10.0.0.1", 11))
}

func TestRateLimiter_ClientLimitEnforced(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{GlobalRPS: 100, ClientRPS: 5, ClientBurst: 5})
	defer rl.Close()

	assert.Equal(t, 5, countAllowed(rl, "10.0.0.1", 6))
}

func TestRateLimiter_ClientIsolation(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{GlobalRPS: 100, ClientRPS: 5, ClientBurst: 5})
	defer rl.Close()

	require.Equal(t, 5, countAllowed(rl, "10.0.0.1", 6))
	assert.Equal(t, 5, countAllowed(rl, "10.0.0.2", 5))
}

func TestComputeBurstCapacity(t *testing.T) {
	assert.Equal(t, 200, computeBurstCapacity(100, 0))
	assert.Equal(t, 500, computeBurstCapacity(100, 500))
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{GlobalRPS: 100, ClientRPS: 50})
	defer rl.Close()

	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)

		go func(clientID string) {
			defer wg.Done()

			for j := 0; j < 10; j++ {
				_ = rl.Allow(clientID)
			}
		}(fmt.Sprintf("10.0.0.%d", i))
	}

	wg.Wait()
}

func TestRateLimiter_MemoryCleanup(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{
		GlobalRPS:       100,
		ClientRPS:       50,
		CleanupInterval: 20 * time.Millisecond,
		IdleTimeout:     50 * time.Millisecond,
	})
	defer rl.Close()

	require.True(t, rl.Allow("10.0.0.9"))

	assert.Eventually(t, func() bool {
		rl.mu.RLock()
		defer rl.mu.RUnlock()

		_, exists := rl.perClient["10.0.0.9"]

		return !exists
	}, time.Second, 10*time.Millisecond)
}

func TestRateLimiter_CloseIsIdempotent(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{GlobalRPS: 1, ClientRPS: 1})

	require.NoError(t, rl.Close())
	require.NoError(t, rl.Close())
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{GlobalRPS: 100, ClientRPS: 1, ClientBurst: 1})
	defer rl.Close()

	handler := Apply(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
		WithCorrelationID(),
		WithRateLimit(rl, slog.New(slog.DiscardHandler)),
	)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/turnos", nil)
		req.RemoteAddr = "192.0.2.1:40000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		return rec
	}

	assert.Equal(t, http.StatusOK, send().Code)

	rec := send()
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	var problem map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	assert.Equal(t, "Too Many Requests", problem["title"])
	assert.Equal(t, rec.Header().Get(CorrelationIDHeader), problem["correlationId"])
}

func TestWithRateLimit_NilLimiterIsNoop(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })

	WithRateLimit(nil, slog.New(slog.DiscardHandler))(next).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, called)
}

func TestClientID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", clientID(req))

	req.RemoteAddr = "[2001:db8::1]:1234"
	assert.Equal(t, "2001:db8::1", clientID(req))

	req.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", clientID(req))
}
