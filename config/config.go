package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pushchain/svm-txkit/constant"
)

//go:embed default_config.json
var defaultConfigJSON []byte

func validateConfig(cfg *Config) error {
	// Validate log level
	if cfg.LogLevel < 0 || cfg.LogLevel > 5 {
		return fmt.Errorf("log level must be between 0 and 5")
	}

	// Validate log format
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	if cfg.NodeHome == "" {
		cfg.NodeHome = constant.DefaultNodeHome
	}

	if len(cfg.RPCURLs) == 0 {
		var defaultCfg Config
		if err := json.Unmarshal(defaultConfigJSON, &defaultCfg); err == nil {
			cfg.RPCURLs = defaultCfg.RPCURLs
		}
	}
	if len(cfg.RPCURLs) == 0 {
		return fmt.Errorf("at least one rpc url is required")
	}

	if cfg.Commitment == "" {
		cfg.Commitment = constant.CommitmentConfirmed
	}
	switch cfg.Commitment {
	case constant.CommitmentProcessed, constant.CommitmentConfirmed, constant.CommitmentFinalized:
	default:
		return fmt.Errorf("commitment must be 'processed', 'confirmed' or 'finalized'")
	}

	// Set defaults for gateway calls
	if cfg.RequestTimeoutSeconds == 0 {
		cfg.RequestTimeoutSeconds = 30
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoffMillis == 0 {
		cfg.RetryBackoffMillis = 250
	}

	// Set defaults for submission
	if cfg.ConfirmationPollMillis == 0 {
		cfg.ConfirmationPollMillis = 500
	}
	if cfg.ConfirmationTimeoutSeconds == 0 {
		cfg.ConfirmationTimeoutSeconds = 60
	}
	if cfg.StaleResubmitAttempts == 0 {
		cfg.StaleResubmitAttempts = 3
	}

	// Set defaults for RPC pool config
	if cfg.RPCPoolConfig.HealthCheckIntervalSeconds == 0 {
		cfg.RPCPoolConfig.HealthCheckIntervalSeconds = 30
	}
	if cfg.RPCPoolConfig.UnhealthyThreshold == 0 {
		cfg.RPCPoolConfig.UnhealthyThreshold = 3
	}
	if cfg.RPCPoolConfig.RecoveryIntervalSeconds == 0 {
		cfg.RPCPoolConfig.RecoveryIntervalSeconds = 300
	}
	if cfg.RPCPoolConfig.MinHealthyEndpoints == 0 {
		cfg.RPCPoolConfig.MinHealthyEndpoints = 1
	}
	if cfg.RPCPoolConfig.RequestTimeoutSeconds == 0 {
		cfg.RPCPoolConfig.RequestTimeoutSeconds = 10
	}
	if cfg.RPCPoolConfig.LoadBalancingStrategy == "" {
		cfg.RPCPoolConfig.LoadBalancingStrategy = constant.StrategyRoundRobin
	}

	// Validate load balancing strategy
	if cfg.RPCPoolConfig.LoadBalancingStrategy != constant.StrategyRoundRobin &&
		cfg.RPCPoolConfig.LoadBalancingStrategy != constant.StrategyWeighted {
		return fmt.Errorf("load balancing strategy must be 'round-robin' or 'weighted'")
	}

	return nil
}

// Validate applies defaults to cfg and reports the first invalid setting.
func Validate(cfg *Config) error {
	return validateConfig(cfg)
}

// Save writes the given config to <basePath>/config/svmtx_config.json.
func Save(cfg *Config, basePath string) error {
	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	configDir := filepath.Join(basePath, constant.ConfigSubdir)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configDir, constant.ConfigFileName)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load reads the config from <basePath>/config/svmtx_config.json, applies
// environment overrides and fills defaults.
func Load(basePath string) (Config, error) {
	configFile := filepath.Join(basePath, constant.ConfigSubdir, constant.ConfigFileName)
	data, err := os.ReadFile(filepath.Clean(configFile))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := ApplyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := validateConfig(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadDefaultConfig loads the default configuration from embedded JSON
func LoadDefaultConfig() (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(defaultConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal default config: %w", err)
	}
	return &cfg, nil
}
