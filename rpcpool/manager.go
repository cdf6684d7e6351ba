package rpcpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pushchain/svm-txkit/config"
	txerrors "github.com/pushchain/svm-txkit/errors"
)

// Manager owns a pool of ledger RPC endpoints: selection, failover and
// health bookkeeping.
type Manager struct {
	cluster       string
	endpoints     []*Endpoint
	selector      *EndpointSelector
	config        config.RPCPoolConfig
	logger        zerolog.Logger
	HealthMonitor *HealthMonitor
	clientFactory ClientFactory

	mu      sync.RWMutex
	wg      sync.WaitGroup
	started bool
}

// NewManager creates a pool over urls. Clients are opened by Start.
func NewManager(
	cluster string,
	urls []string,
	poolConfig config.RPCPoolConfig,
	clientFactory ClientFactory,
	logger zerolog.Logger,
) (*Manager, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("no RPC URLs provided for pool")
	}
	if clientFactory == nil {
		return nil, fmt.Errorf("client factory is required")
	}

	endpoints := make([]*Endpoint, len(urls))
	for i, url := range urls {
		endpoints[i] = NewEndpoint(url)
	}

	m := &Manager{
		cluster:       cluster,
		endpoints:     endpoints,
		selector:      NewEndpointSelector(LoadBalancingStrategy(poolConfig.LoadBalancingStrategy)),
		config:        poolConfig,
		logger:        logger.With().Str("component", "rpc_pool").Str("cluster", cluster).Logger(),
		clientFactory: clientFactory,
	}
	m.HealthMonitor = NewHealthMonitor(m, poolConfig, logger)
	return m, nil
}

// Start opens a client per endpoint and, when a health checker is set,
// launches the health monitor.
func (m *Manager) Start(ctx context.Context) error {
	m.logger.Info().
		Int("endpoint_count", len(m.endpoints)).
		Str("strategy", string(m.selector.Strategy())).
		Msg("starting RPC pool")

	for _, ep := range m.endpoints {
		client, err := m.clientFactory(ep.URL)
		if err != nil {
			m.logger.Warn().Str("url", ep.URL).Err(err).Msg("failed to initialize endpoint")
			ep.SetState(StateUnhealthy)
			continue
		}
		ep.SetClient(client)
		ep.SetState(StateHealthy)
	}

	usable := m.UsableEndpointCount()
	if usable < m.config.MinHealthyEndpoints {
		return fmt.Errorf("insufficient healthy endpoints: %d/%d (minimum: %d)",
			usable, len(m.endpoints), m.config.MinHealthyEndpoints)
	}

	if m.HealthMonitor.hasChecker() {
		m.mu.Lock()
		m.started = true
		m.mu.Unlock()
		m.wg.Add(1)
		go m.HealthMonitor.Run(ctx, &m.wg)
	}

	m.logger.Info().
		Int("usable_endpoints", usable).
		Int("total_endpoints", len(m.endpoints)).
		Msg("RPC pool started")
	return nil
}

// Stop halts the health monitor and closes every client.
func (m *Manager) Stop() {
	m.mu.Lock()
	started := m.started
	m.started = false
	m.mu.Unlock()

	if started {
		m.HealthMonitor.Stop()
		m.wg.Wait()
	}

	for _, ep := range m.endpoints {
		if client := ep.Client(); client != nil {
			if err := client.Close(); err != nil {
				m.logger.Warn().Str("url", ep.URL).Err(err).Msg("failed to close client connection")
			}
		}
	}
	m.logger.Info().Msg("RPC pool stopped")
}

// Execute runs fn against endpoints until one succeeds. Only transient
// failures move on to the next endpoint; a ledger answer of any other class
// is returned at once since another node would give the same answer.
func (m *Manager) Execute(ctx context.Context, operation string, fn func(ctx context.Context, client Client) error) error {
	order := m.selector.Order(m.usableEndpoints())
	if len(order) == 0 {
		return txerrors.NewTransientError(operation, "no healthy endpoints available", nil)
	}

	var lastErr error
	for attempt, ep := range order {
		if err := ctx.Err(); err != nil {
			return txerrors.NewTransientError(operation, "context done", err)
		}

		client := ep.Client()
		if client == nil {
			continue
		}
		ep.markUsed()

		start := time.Now()
		err := fn(ctx, client)
		latency := time.Since(start)

		if err == nil {
			m.RecordOutcome(ep, latency, nil)
			return nil
		}

		if txerrors.Classify(err) != txerrors.ErrCodeTransient {
			// the node answered; it is healthy even if the answer is a rejection
			m.RecordOutcome(ep, latency, nil)
			return err
		}

		m.RecordOutcome(ep, latency, err)
		lastErr = err
		m.logger.Warn().
			Str("operation", operation).
			Str("url", ep.URL).
			Int("attempt", attempt+1).
			Err(err).
			Msg("operation failed, trying next endpoint")
	}

	if lastErr == nil {
		return txerrors.NewTransientError(operation, "no endpoint had a client", nil)
	}
	return lastErr
}

// RecordOutcome updates endpoint metrics and state after a request. A nil
// err counts as success.
func (m *Manager) RecordOutcome(ep *Endpoint, latency time.Duration, err error) {
	if err == nil {
		ep.Metrics.RecordSuccess(latency)
		if ep.State() == StateDegraded && ep.Metrics.SuccessRate() > 0.8 {
			ep.SetState(StateHealthy)
			m.logger.Info().
				Str("url", ep.URL).
				Float64("success_rate", ep.Metrics.SuccessRate()).
				Msg("endpoint promoted to healthy")
		}
		return
	}

	ep.Metrics.RecordFailure(err, latency)
	failures := ep.Metrics.ConsecutiveFailures()

	switch {
	case failures >= m.config.UnhealthyThreshold:
		if ep.State() != StateExcluded {
			ep.SetState(StateExcluded)
			m.logger.Warn().
				Str("url", ep.URL).
				Int("consecutive_failures", failures).
				Err(err).
				Msg("endpoint excluded due to consecutive failures")
		}
	case ep.Metrics.SuccessRate() < 0.5 && ep.State() == StateHealthy:
		ep.SetState(StateDegraded)
		m.logger.Warn().
			Str("url", ep.URL).
			Float64("success_rate", ep.Metrics.SuccessRate()).
			Msg("endpoint downgraded to degraded")
	}
}

func (m *Manager) usableEndpoints() []*Endpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Endpoint, 0, len(m.endpoints))
	for _, ep := range m.endpoints {
		if ep.IsUsable() {
			out = append(out, ep)
		}
	}
	return out
}

func (m *Manager) UsableEndpointCount() int {
	return len(m.usableEndpoints())
}

// Endpoints returns a copy of the endpoint list
func (m *Manager) Endpoints() []*Endpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Endpoint, len(m.endpoints))
	copy(out, m.endpoints)
	return out
}

// Stats returns per-endpoint traffic counters
func (m *Manager) Stats() *EndpointStats {
	endpoints := m.Endpoints()
	infos := make([]EndpointInfo, len(endpoints))
	for i, ep := range endpoints {
		total, failed := ep.Metrics.counts()
		infos[i] = EndpointInfo{
			URL:            ep.URL,
			State:          ep.State().String(),
			HealthScore:    ep.Metrics.HealthScore(),
			LastUsed:       ep.LastUsed(),
			RequestCount:   total,
			FailureCount:   failed,
			AverageLatency: float64(ep.Metrics.AverageLatency().Milliseconds()),
		}
	}
	return &EndpointStats{
		Cluster:        m.cluster,
		TotalEndpoints: len(endpoints),
		Strategy:       string(m.selector.Strategy()),
		Endpoints:      infos,
	}
}

func (m *Manager) Cluster() string {
	return m.cluster
}

func (m *Manager) Strategy() LoadBalancingStrategy {
	return m.selector.Strategy()
}
