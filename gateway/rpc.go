package gateway

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/pushchain/svm-txkit/rpcpool"
)

// RPC is the subset of the ledger SDK client used by RPCGateway. Each pool
// endpoint holds one.
type RPC interface {
	rpcpool.Client

	GetHealth(ctx context.Context) (string, error)
	GetSlot(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
	GetGenesisHash(ctx context.Context) (solana.Hash, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
	GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey, conf *rpc.GetTokenAccountsConfig, opts *rpc.GetTokenAccountsOpts) (*rpc.GetTokenAccountsResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetTransaction(ctx context.Context, sig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64, commitment rpc.CommitmentType) (uint64, error)
	RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64, commitment rpc.CommitmentType) (solana.Signature, error)

	// RecentPrioritizationFees returns the per-slot prioritization fees of recent blocks
	RecentPrioritizationFees(ctx context.Context) ([]PrioritizationFee, error)
}

// PrioritizationFee is the fee paid per compute unit in a recent slot.
type PrioritizationFee struct {
	Slot              uint64
	PrioritizationFee uint64
}

var _ RPC = (*ledgerClient)(nil)

// ledgerClient wraps rpc.Client to implement RPC
type ledgerClient struct {
	*rpc.Client
}

// Ping fetches the latest slot
func (c *ledgerClient) Ping(ctx context.Context) error {
	_, err := c.Client.GetSlot(ctx, rpc.CommitmentConfirmed)
	return err
}

// Close is a no-op; the HTTP transport is shared and has nothing to release.
func (c *ledgerClient) Close() error {
	return nil
}

func (c *ledgerClient) RecentPrioritizationFees(ctx context.Context) ([]PrioritizationFee, error) {
	fees, err := c.Client.GetRecentPrioritizationFees(ctx, nil)
	if err != nil {
		return nil, err
	}
	out := make([]PrioritizationFee, 0, len(fees))
	for _, fee := range fees {
		out = append(out, PrioritizationFee{
			Slot:              fee.Slot,
			PrioritizationFee: fee.PrioritizationFee,
		})
	}
	return out, nil
}

// NewClientFactory returns a pool ClientFactory that opens SDK RPC clients
func NewClientFactory() rpcpool.ClientFactory {
	return func(url string) (rpcpool.Client, error) {
		return &ledgerClient{Client: rpc.New(url)}, nil
	}
}

// NewHealthChecker creates a pool health checker for ledger endpoints. A
// non-empty expectedGenesisHash pins endpoints to one network; it may be a
// prefix of the full hash.
func NewHealthChecker(expectedGenesisHash string) rpcpool.HealthChecker {
	return &healthChecker{expectedGenesisHash: expectedGenesisHash}
}

type healthChecker struct {
	expectedGenesisHash string
}

// CheckHealth asks the node for its health, then checks it is producing
// slots and serves the expected network.
func (h *healthChecker) CheckHealth(ctx context.Context, client rpcpool.Client) error {
	node, ok := client.(RPC)
	if !ok {
		return fmt.Errorf("invalid client type for ledger health check: %T", client)
	}

	health, err := node.GetHealth(ctx)
	if err != nil {
		return fmt.Errorf("failed to get health status: %w", err)
	}
	if health != "ok" {
		return fmt.Errorf("node is not healthy: %s", health)
	}

	slot, err := node.GetSlot(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return fmt.Errorf("failed to get slot: %w", err)
	}
	if slot == 0 {
		return fmt.Errorf("slot is zero, node may not be synced")
	}

	if h.expectedGenesisHash != "" {
		genesisHash, err := node.GetGenesisHash(ctx)
		if err != nil {
			return fmt.Errorf("failed to get genesis hash: %w", err)
		}
		actual := genesisHash.String()
		if len(actual) > len(h.expectedGenesisHash) {
			actual = actual[:len(h.expectedGenesisHash)]
		}
		if actual != h.expectedGenesisHash {
			return fmt.Errorf("genesis hash mismatch: expected %s, got %s",
				h.expectedGenesisHash, genesisHash.String())
		}
	}
	return nil
}

func asRPC(client rpcpool.Client) (RPC, error) {
	node, ok := client.(RPC)
	if !ok {
		return nil, fmt.Errorf("invalid client type: expected ledger RPC, got %T", client)
	}
	return node, nil
}
