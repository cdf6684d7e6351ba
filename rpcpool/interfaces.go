package rpcpool

import (
	"context"
)

// Client is a ledger RPC connection held by one endpoint of the pool.
type Client interface {
	// Ping performs a cheap liveness call against the node
	Ping(ctx context.Context) error

	// Close releases the connection
	Close() error
}

// ClientFactory opens a Client for a URL. It must not block on the network.
type ClientFactory func(url string) (Client, error)

// HealthChecker runs an active health check against a Client.
type HealthChecker interface {
	CheckHealth(ctx context.Context, client Client) error
}
