package rpcpool

import (
	"sync"
	"time"
)

// EndpointState is the lifecycle state of an endpoint
type EndpointState int

const (
	StateHealthy EndpointState = iota
	StateDegraded
	StateUnhealthy
	StateExcluded
)

func (s EndpointState) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateUnhealthy:
		return "unhealthy"
	case StateExcluded:
		return "excluded"
	default:
		return "unknown"
	}
}

const (
	initialHealthScore   = 100.0
	recoveredHealthScore = 70.0
)

// EndpointMetrics tracks request outcomes of one endpoint
type EndpointMetrics struct {
	mu                  sync.RWMutex
	totalRequests       uint64
	successfulRequests  uint64
	failedRequests      uint64
	averageLatency      time.Duration
	consecutiveFailures int
	lastSuccessTime     time.Time
	lastErrorTime       time.Time
	lastError           error
	healthScore         float64 // 0-100
}

func newEndpointMetrics(score float64) *EndpointMetrics {
	return &EndpointMetrics{healthScore: score}
}

// RecordSuccess records a request the endpoint served
func (m *EndpointMetrics) RecordSuccess(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalRequests++
	m.successfulRequests++
	m.consecutiveFailures = 0
	m.lastSuccessTime = time.Now()

	if m.averageLatency == 0 {
		m.averageLatency = latency
	} else {
		// EMA, alpha = 0.1
		m.averageLatency = time.Duration(float64(m.averageLatency)*0.9 + float64(latency)*0.1)
	}

	m.calculateHealthScore()
}

// RecordFailure records a request the endpoint could not serve
func (m *EndpointMetrics) RecordFailure(err error, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalRequests++
	m.failedRequests++
	m.consecutiveFailures++
	m.lastErrorTime = time.Now()
	m.lastError = err

	if latency > 0 && m.averageLatency > 0 {
		m.averageLatency = time.Duration(float64(m.averageLatency)*0.9 + float64(latency)*0.1)
	}

	m.calculateHealthScore()
}

// calculateHealthScore combines success rate with latency and failure-streak penalties
func (m *EndpointMetrics) calculateHealthScore() {
	if m.totalRequests == 0 {
		m.healthScore = initialHealthScore
		return
	}

	score := float64(m.successfulRequests) / float64(m.totalRequests) * 100.0

	// 5 points per second above one second, capped at 20
	if m.averageLatency > time.Second {
		penalty := (m.averageLatency.Seconds() - 1.0) * 5.0
		if penalty > 20.0 {
			penalty = 20.0
		}
		score -= penalty
	}

	// 10 points per consecutive failure, capped at 50
	streak := float64(m.consecutiveFailures) * 10.0
	if streak > 50.0 {
		streak = 50.0
	}
	score -= streak

	if score < 0 {
		score = 0
	}
	m.healthScore = score
}

// reset clears all counters and starts over from score
func (m *EndpointMetrics) reset(score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalRequests = 0
	m.successfulRequests = 0
	m.failedRequests = 0
	m.averageLatency = 0
	m.consecutiveFailures = 0
	m.lastError = nil
	m.healthScore = score
}

func (m *EndpointMetrics) HealthScore() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthScore
}

// SuccessRate is 1 for an endpoint that has served nothing yet
func (m *EndpointMetrics) SuccessRate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.totalRequests == 0 {
		return 1.0
	}
	return float64(m.successfulRequests) / float64(m.totalRequests)
}

func (m *EndpointMetrics) ConsecutiveFailures() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.consecutiveFailures
}

func (m *EndpointMetrics) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

func (m *EndpointMetrics) AverageLatency() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.averageLatency
}

func (m *EndpointMetrics) counts() (total, failed uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalRequests, m.failedRequests
}

// Endpoint is one RPC URL of the pool with its client and metrics
type Endpoint struct {
	URL     string
	Metrics *EndpointMetrics

	mu         sync.RWMutex
	client     Client
	state      EndpointState
	lastUsed   time.Time
	excludedAt time.Time
}

// NewEndpoint creates a healthy endpoint without a client
func NewEndpoint(url string) *Endpoint {
	return &Endpoint{
		URL:     url,
		state:   StateHealthy,
		Metrics: newEndpointMetrics(initialHealthScore),
	}
}

func (e *Endpoint) SetClient(client Client) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.client = client
}

func (e *Endpoint) Client() Client {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.client
}

// SetState moves the endpoint to state, stamping the exclusion time on entry to StateExcluded
func (e *Endpoint) SetState(state EndpointState) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if state == StateExcluded && e.state != StateExcluded {
		e.excludedAt = time.Now()
	}
	e.state = state
}

func (e *Endpoint) State() EndpointState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// IsUsable reports whether the endpoint may serve requests
func (e *Endpoint) IsUsable() bool {
	state := e.State()
	return state == StateHealthy || state == StateDegraded
}

func (e *Endpoint) markUsed() {
	e.mu.Lock()
	e.lastUsed = time.Now()
	e.mu.Unlock()
}

func (e *Endpoint) LastUsed() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastUsed
}

func (e *Endpoint) ExcludedAt() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.excludedAt
}

func (e *Endpoint) extendExclusion() {
	e.mu.Lock()
	e.excludedAt = time.Now()
	e.mu.Unlock()
}

// reinstate resets metrics and puts an excluded endpoint back on probation
func (e *Endpoint) reinstate() {
	e.Metrics.reset(recoveredHealthScore)
	e.SetState(StateDegraded)
}
