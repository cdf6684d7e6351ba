package rpcpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pushchain/svm-txkit/config"
)

// HealthMonitor periodically checks endpoints and re-admits excluded ones
// after the recovery interval.
type HealthMonitor struct {
	manager *Manager
	config  config.RPCPoolConfig
	logger  zerolog.Logger

	mu       sync.RWMutex
	checker  HealthChecker
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewHealthMonitor(manager *Manager, cfg config.RPCPoolConfig, logger zerolog.Logger) *HealthMonitor {
	return &HealthMonitor{
		manager: manager,
		config:  cfg,
		logger:  logger.With().Str("component", "health_monitor").Logger(),
		stopCh:  make(chan struct{}),
	}
}

// SetHealthChecker enables active probing. Without a checker the pool relies
// on request outcomes only.
func (h *HealthMonitor) SetHealthChecker(checker HealthChecker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checker = checker
}

func (h *HealthMonitor) hasChecker() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.checker != nil
}

// Run checks all endpoints immediately and then every health check interval
// until ctx is done or Stop is called.
func (h *HealthMonitor) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	interval := h.config.HealthCheckInterval()
	if interval <= 0 {
		interval = 30 * time.Second
	}
	h.logger.Info().Dur("interval", interval).Msg("starting health monitor")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.CheckAll(ctx)

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Msg("health monitor stopping: context cancelled")
			return
		case <-h.stopCh:
			h.logger.Info().Msg("health monitor stopping: stop signal received")
			return
		case <-ticker.C:
			h.CheckAll(ctx)
		}
	}
}

// Stop ends Run. Safe to call more than once.
func (h *HealthMonitor) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

// CheckAll checks every endpoint concurrently and waits for the results.
func (h *HealthMonitor) CheckAll(ctx context.Context) {
	h.mu.RLock()
	checker := h.checker
	h.mu.RUnlock()
	if checker == nil {
		return
	}

	var wg sync.WaitGroup
	for _, ep := range h.manager.Endpoints() {
		wg.Add(1)
		go func(ep *Endpoint) {
			defer wg.Done()
			h.checkEndpoint(ctx, checker, ep)
		}(ep)
	}
	wg.Wait()
}

func (h *HealthMonitor) checkEndpoint(ctx context.Context, checker HealthChecker, ep *Endpoint) {
	client := ep.Client()
	if client == nil {
		return
	}

	timeout := h.config.RequestTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := checker.CheckHealth(checkCtx, client)
	latency := time.Since(start)

	if ep.State() == StateExcluded {
		h.tryRecover(ep, latency, err)
		return
	}

	h.manager.RecordOutcome(ep, latency, err)
	if err != nil {
		h.logger.Warn().
			Str("url", ep.URL).
			Dur("latency", latency).
			Int("consecutive_failures", ep.Metrics.ConsecutiveFailures()).
			Err(err).
			Msg("endpoint health check failed")
		return
	}
	h.logger.Debug().
		Str("url", ep.URL).
		Dur("latency", latency).
		Float64("health_score", ep.Metrics.HealthScore()).
		Msg("endpoint health check passed")
}

func (h *HealthMonitor) tryRecover(ep *Endpoint, latency time.Duration, err error) {
	excludedFor := time.Since(ep.ExcludedAt())
	if excludedFor < h.config.RecoveryInterval() {
		return
	}

	if err != nil {
		ep.extendExclusion()
		h.logger.Warn().Str("url", ep.URL).Err(err).Msg("endpoint recovery failed, extending exclusion period")
		return
	}

	ep.reinstate()
	h.logger.Info().
		Str("url", ep.URL).
		Dur("excluded_for", excludedFor).
		Dur("recovery_latency", latency).
		Msg("endpoint recovered, promoted to degraded state")
}

// Status summarizes endpoint health
func (h *HealthMonitor) Status() *HealthStatus {
	endpoints := h.manager.Endpoints()
	status := &HealthStatus{
		Cluster:        h.manager.Cluster(),
		TotalEndpoints: len(endpoints),
		Strategy:       string(h.manager.Strategy()),
		Endpoints:      make([]EndpointStatus, len(endpoints)),
	}

	for i, ep := range endpoints {
		state := ep.State()
		switch state {
		case StateHealthy:
			status.HealthyCount++
		case StateDegraded:
			status.DegradedCount++
		case StateUnhealthy:
			status.UnhealthyCount++
		case StateExcluded:
			status.ExcludedCount++
		}

		var lastError string
		if err := ep.Metrics.LastError(); err != nil {
			lastError = err.Error()
		}
		status.Endpoints[i] = EndpointStatus{
			URL:          ep.URL,
			State:        state.String(),
			HealthScore:  ep.Metrics.HealthScore(),
			ResponseTime: ep.Metrics.AverageLatency().Milliseconds(),
			LastUsed:     ep.LastUsed(),
			LastError:    lastError,
		}
	}
	return status
}

// ForceExcludeEndpoint takes an endpoint out of rotation
func (h *HealthMonitor) ForceExcludeEndpoint(url string) error {
	for _, ep := range h.manager.Endpoints() {
		if ep.URL == url {
			ep.SetState(StateExcluded)
			h.logger.Info().Str("url", url).Msg("endpoint manually excluded")
			return nil
		}
	}
	return fmt.Errorf("endpoint not found: %s", url)
}

// ForceRecoverEndpoint puts an excluded endpoint back on probation
func (h *HealthMonitor) ForceRecoverEndpoint(url string) error {
	for _, ep := range h.manager.Endpoints() {
		if ep.URL == url && ep.State() == StateExcluded {
			ep.reinstate()
			h.logger.Info().Str("url", url).Msg("endpoint manually recovered")
			return nil
		}
	}
	return fmt.Errorf("excluded endpoint not found: %s", url)
}
