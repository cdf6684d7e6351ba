package rpcpool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type mockClient struct {
	url    string
	mu     sync.Mutex
	closed bool
	pingFn func(ctx context.Context) error
}

func (m *mockClient) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func (m *mockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockClient) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func TestNewEndpoint(t *testing.T) {
	ep := NewEndpoint("http://localhost:8899")
	assert.Equal(t, "http://localhost:8899", ep.URL)
	assert.Equal(t, StateHealthy, ep.State())
	assert.Equal(t, 100.0, ep.Metrics.HealthScore())
	assert.Nil(t, ep.Client())
	assert.True(t, ep.IsUsable())
}

func TestEndpoint_StateManagement(t *testing.T) {
	ep := NewEndpoint("http://localhost:8899")

	ep.SetState(StateDegraded)
	assert.True(t, ep.IsUsable())

	ep.SetState(StateUnhealthy)
	assert.False(t, ep.IsUsable())

	ep.SetState(StateExcluded)
	assert.False(t, ep.IsUsable())
	excludedAt := ep.ExcludedAt()
	assert.False(t, excludedAt.IsZero())

	// re-entering the excluded state keeps the first exclusion time
	ep.SetState(StateExcluded)
	assert.Equal(t, excludedAt, ep.ExcludedAt())

	ep.reinstate()
	assert.Equal(t, StateDegraded, ep.State())
	assert.Equal(t, 70.0, ep.Metrics.HealthScore())
}

func TestEndpointState_String(t *testing.T) {
	assert.Equal(t, "healthy", StateHealthy.String())
	assert.Equal(t, "degraded", StateDegraded.String())
	assert.Equal(t, "unhealthy", StateUnhealthy.String())
	assert.Equal(t, "excluded", StateExcluded.String())
	assert.Equal(t, "unknown", EndpointState(42).String())
}

func TestEndpointMetrics_HealthScore(t *testing.T) {
	testCases := []struct {
		name     string
		record   func(m *EndpointMetrics)
		expected float64
	}{
		{
			name:     "all successes",
			record:   func(m *EndpointMetrics) { m.RecordSuccess(100 * time.Millisecond) },
			expected: 100.0,
		},
		{
			name: "one failure after one success",
			record: func(m *EndpointMetrics) {
				m.RecordSuccess(100 * time.Millisecond)
				m.RecordFailure(errors.New("boom"), 100*time.Millisecond)
			},
			// 50% success rate minus 10 for the failure streak
			expected: 40.0,
		},
		{
			name: "slow endpoint",
			record: func(m *EndpointMetrics) {
				m.RecordSuccess(3 * time.Second)
			},
			// two seconds above baseline at 5 points each
			expected: 90.0,
		},
		{
			name: "failure streak floors at zero",
			record: func(m *EndpointMetrics) {
				for i := 0; i < 10; i++ {
					m.RecordFailure(errors.New("down"), 0)
				}
			},
			expected: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := newEndpointMetrics(initialHealthScore)
			tc.record(m)
			assert.InDelta(t, tc.expected, m.HealthScore(), 0.001)
		})
	}
}

func TestEndpointMetrics_ConsecutiveFailures(t *testing.T) {
	m := newEndpointMetrics(initialHealthScore)
	m.RecordFailure(errors.New("a"), 0)
	m.RecordFailure(errors.New("b"), 0)
	assert.Equal(t, 2, m.ConsecutiveFailures())
	assert.EqualError(t, m.LastError(), "b")

	m.RecordSuccess(time.Millisecond)
	assert.Equal(t, 0, m.ConsecutiveFailures())
	assert.InDelta(t, 1.0/3.0, m.SuccessRate(), 0.001)
}

func TestEndpointMetrics_ThreadSafety(t *testing.T) {
	m := newEndpointMetrics(initialHealthScore)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.RecordSuccess(time.Millisecond)
		}()
		go func() {
			defer wg.Done()
			m.RecordFailure(errors.New("x"), time.Millisecond)
			_ = m.HealthScore()
		}()
	}
	wg.Wait()

	total, failed := m.counts()
	assert.Equal(t, uint64(100), total)
	assert.Equal(t, uint64(50), failed)
}
