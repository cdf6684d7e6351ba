package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/pushchain/svm-txkit/constant"
)

// LoadEnvFile loads variables from the given .env files (or ./.env when none
// are given) without overriding variables already set in the process.
// A missing default .env file is not an error.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		if _, err := os.Stat(".env"); os.IsNotExist(err) {
			return nil
		}
	}
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// ApplyEnvOverrides replaces config values with SVMTX_* environment variables
func ApplyEnvOverrides(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv(constant.EnvRPCURLs)); v != "" {
		var urls []string
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		cfg.RPCURLs = urls
	}
	if v := strings.TrimSpace(os.Getenv(constant.EnvCommitment)); v != "" {
		cfg.Commitment = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(constant.EnvLogLevel)); v != "" {
		level, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", constant.EnvLogLevel, err)
		}
		cfg.LogLevel = level
	}
	return nil
}
