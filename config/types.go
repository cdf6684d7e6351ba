package config

import "time"

type Config struct {
	// Log Config
	LogLevel   int    `json:"log_level"`   // e.g., 0 = debug, 1 = info, etc.
	LogFormat  string `json:"log_format"`  // "json" or "console"
	LogSampler bool   `json:"log_sampler"` // if true, samples logs (e.g., 1 in 5)

	// Home directory holding config/ and databases/ (default: ~/.svmtx)
	NodeHome string `json:"node_home"`

	// Ledger RPC configuration
	RPCURLs               []string `json:"rpc_urls"`                // RPC endpoints, tried in pool order
	Commitment            string   `json:"commitment"`              // processed | confirmed | finalized
	RequestTimeoutSeconds int      `json:"request_timeout_seconds"` // Per-call deadline applied by the gateway
	MaxRetries            int      `json:"max_retries"`             // Read retries per gateway call (default: 3)
	RetryBackoffMillis    int      `json:"retry_backoff_millis"`    // Initial read retry backoff (default: 250)

	// Submission
	ConfirmationPollMillis     int    `json:"confirmation_poll_millis"`     // Signature status poll interval
	ConfirmationTimeoutSeconds int    `json:"confirmation_timeout_seconds"` // Give up waiting for confirmation after this
	StaleResubmitAttempts      int    `json:"stale_resubmit_attempts"`      // Fresh-blockhash resubmissions after an expired one
	ComputeUnitLimit           uint32 `json:"compute_unit_limit"`           // 0 leaves the ledger default
	ComputeUnitPrice           uint64 `json:"compute_unit_price"`           // micro-lamports per compute unit, 0 disables

	// Submission journal
	JournalEnabled bool `json:"journal_enabled"` // Persist submissions to <NodeHome>/databases/journal.db

	RPCPoolConfig RPCPoolConfig `json:"rpc_pool_config"`
}

// RPCPoolConfig tunes endpoint health tracking and selection
type RPCPoolConfig struct {
	HealthCheckIntervalSeconds int    `json:"health_check_interval_seconds"`
	UnhealthyThreshold         int    `json:"unhealthy_threshold"` // consecutive failures before exclusion
	RecoveryIntervalSeconds    int    `json:"recovery_interval_seconds"`
	MinHealthyEndpoints        int    `json:"min_healthy_endpoints"`
	RequestTimeoutSeconds      int    `json:"request_timeout_seconds"` // health check timeout
	LoadBalancingStrategy      string `json:"load_balancing_strategy"` // "round-robin" or "weighted"
}

// RequestTimeout returns the per-call gateway deadline
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// RetryBackoff returns the initial read retry backoff
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMillis) * time.Millisecond
}

// ConfirmationPoll returns the signature status poll interval
func (c *Config) ConfirmationPoll() time.Duration {
	return time.Duration(c.ConfirmationPollMillis) * time.Millisecond
}

// ConfirmationTimeout returns how long to wait for a submitted transaction
func (c *Config) ConfirmationTimeout() time.Duration {
	return time.Duration(c.ConfirmationTimeoutSeconds) * time.Second
}

func (p RPCPoolConfig) HealthCheckInterval() time.Duration {
	return time.Duration(p.HealthCheckIntervalSeconds) * time.Second
}

func (p RPCPoolConfig) RecoveryInterval() time.Duration {
	return time.Duration(p.RecoveryIntervalSeconds) * time.Second
}

func (p RPCPoolConfig) RequestTimeout() time.Duration {
	return time.Duration(p.RequestTimeoutSeconds) * time.Second
}
