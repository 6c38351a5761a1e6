package server

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_Transitions(t *testing.T) {
	now := time.Date(2024, 3, 9, 7, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("index", 2, 30*time.Second, NewLogger(io.Discard, LogLevelDebug, false))
	cb.now = func() time.Time { return now }

	boom := errors.New("boom")
	calls := 0
	failing := func() error { calls++; return boom }
	ok := func() error { calls++; return nil }

	assert.ErrorIs(t, cb.Execute(failing), boom)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(failing), boom)
	assert.Equal(t, StateOpen, cb.State())

	assert.ErrorIs(t, cb.Execute(ok), ErrCircuitOpen)
	assert.Equal(t, 2, calls, "open circuit must not call through")

	now = now.Add(31 * time.Second)
	assert.ErrorIs(t, cb.Execute(failing), boom)
	assert.Equal(t, StateOpen, cb.State(), "failed trial reopens")

	now = now.Add(31 * time.Second)
	require.NoError(t, cb.Execute(ok))
	assert.Equal(t, StateClosed, cb.State())

	stats := cb.Stats()
	assert.Equal(t, "index", stats.Name)
	assert.Equal(t, uint64(5), stats.TotalRequests)
	assert.Equal(t, uint64(1), stats.RejectedRequests)
	assert.Equal(t, uint64(3), stats.FailedRequests)
	assert.Equal(t, uint32(0), stats.Failures)
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("mirror", 2, time.Minute, nil)
	boom := errors.New("boom")

	_ = cb.Execute(func() error { return boom })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return boom })
	assert.Equal(t, StateClosed, cb.State())
}

func TestSinks_OpenCircuitSkipsSink(t *testing.T) {
	boom := errors.New("connection refused")
	idx := &fakeIndex{err: boom}
	env := newTestEnv(t, func(c *Config) {
		c.Index = idx
		c.BreakerFailures = 2
		c.BreakerCooldown = time.Hour
	})

	for i := 0; i < 3; i++ {
		rr := env.post(t, dataPart(validData), videoFile("clip.mp4", "v"))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}

	assert.Equal(t, StateOpen, env.srv.breakers[sinkIndex].State())
	assert.Equal(t, uint64(1), env.srv.breakers[sinkIndex].Stats().RejectedRequests)
	assert.Equal(t, int64(3), env.srv.Metrics().Snapshot().SinkFailuresTotal)
	assert.Contains(t, env.logs.String(), "circuit_breaker_opened")
	assert.Contains(t, env.logs.String(), ErrCircuitOpen.Error())

	rr := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, `lvs_sink_circuit_state{sink="index"} 1`), body)
	assert.True(t, strings.Contains(body, `lvs_sink_rejected_total{sink="index"} 1`), body)
}

func TestSinks_NoBreakersWithoutSinks(t *testing.T) {
	env := newTestEnv(t)
	assert.Empty(t, env.srv.breakers)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.NotContains(t, rr.Body.String(), "lvs_sink_circuit_state")
}
