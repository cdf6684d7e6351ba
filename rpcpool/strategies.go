package rpcpool

import (
	"math/rand"
	"sync/atomic"

	"github.com/pushchain/svm-txkit/constant"
)

// LoadBalancingStrategy selects how requests spread across endpoints
type LoadBalancingStrategy string

const (
	StrategyRoundRobin LoadBalancingStrategy = constant.StrategyRoundRobin
	StrategyWeighted   LoadBalancingStrategy = constant.StrategyWeighted
)

// EndpointSelector picks the next endpoint to serve a request
type EndpointSelector struct {
	strategy LoadBalancingStrategy
	next     atomic.Uint32
}

// NewEndpointSelector falls back to round-robin for unknown strategies
func NewEndpointSelector(strategy LoadBalancingStrategy) *EndpointSelector {
	if strategy != StrategyRoundRobin && strategy != StrategyWeighted {
		strategy = StrategyRoundRobin
	}
	return &EndpointSelector{strategy: strategy}
}

// Order returns the usable endpoints in the order they should be tried:
// the selected endpoint first, then the rest in pool order.
func (s *EndpointSelector) Order(usable []*Endpoint) []*Endpoint {
	if len(usable) == 0 {
		return nil
	}
	first := s.Select(usable)
	out := make([]*Endpoint, 0, len(usable))
	out = append(out, first)
	for _, ep := range usable {
		if ep != first {
			out = append(out, ep)
		}
	}
	return out
}

// Select picks one endpoint according to the strategy
func (s *EndpointSelector) Select(usable []*Endpoint) *Endpoint {
	switch len(usable) {
	case 0:
		return nil
	case 1:
		return usable[0]
	}

	if s.strategy == StrategyWeighted {
		return s.selectWeighted(usable)
	}
	return s.selectRoundRobin(usable)
}

func (s *EndpointSelector) selectRoundRobin(endpoints []*Endpoint) *Endpoint {
	index := (s.next.Add(1) - 1) % uint32(len(endpoints))
	return endpoints[index]
}

// selectWeighted draws an endpoint with probability proportional to its health score
func (s *EndpointSelector) selectWeighted(endpoints []*Endpoint) *Endpoint {
	total := 0.0
	for _, ep := range endpoints {
		total += ep.Metrics.HealthScore()
	}
	if total == 0 {
		return s.selectRoundRobin(endpoints)
	}

	target := rand.Float64() * total
	acc := 0.0
	for _, ep := range endpoints {
		acc += ep.Metrics.HealthScore()
		if acc >= target {
			return ep
		}
	}
	return endpoints[len(endpoints)-1]
}

func (s *EndpointSelector) Strategy() LoadBalancingStrategy {
	return s.strategy
}
