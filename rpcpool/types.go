package rpcpool

import "time"

// HealthStatus summarizes the health of every endpoint in the pool
type HealthStatus struct {
	Cluster        string           `json:"cluster"`
	TotalEndpoints int              `json:"total_endpoints"`
	HealthyCount   int              `json:"healthy_count"`
	UnhealthyCount int              `json:"unhealthy_count"`
	DegradedCount  int              `json:"degraded_count"`
	ExcludedCount  int              `json:"excluded_count"`
	Strategy       string           `json:"strategy"`
	Endpoints      []EndpointStatus `json:"endpoints"`
}

// EndpointStatus is the health view of one endpoint
type EndpointStatus struct {
	URL          string    `json:"url"`
	State        string    `json:"state"`
	HealthScore  float64   `json:"health_score"`
	ResponseTime int64     `json:"response_time_ms"`
	LastUsed     time.Time `json:"last_used"`
	LastError    string    `json:"last_error,omitempty"`
}

// EndpointStats is the traffic view of the pool
type EndpointStats struct {
	Cluster        string         `json:"cluster"`
	TotalEndpoints int            `json:"total_endpoints"`
	Strategy       string         `json:"strategy"`
	Endpoints      []EndpointInfo `json:"endpoints"`
}

// EndpointInfo is the traffic view of one endpoint
type EndpointInfo struct {
	URL            string    `json:"url"`
	State          string    `json:"state"`
	HealthScore    float64   `json:"health_score"`
	LastUsed       time.Time `json:"last_used"`
	RequestCount   uint64    `json:"request_count"`
	FailureCount   uint64    `json:"failure_count"`
	AverageLatency float64   `json:"average_latency_ms"`
}
