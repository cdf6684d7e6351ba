package gateway

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	"github.com/pushchain/svm-txkit/config"
	txerrors "github.com/pushchain/svm-txkit/errors"
	"github.com/pushchain/svm-txkit/rpcpool"
)

// DefaultPriorityFee is returned by GetPriorityFee when recent blocks carry
// no prioritization fees, in micro-lamports per compute unit.
const DefaultPriorityFee uint64 = 1000

// Options tunes an RPCGateway built over an existing pool.
type Options struct {
	Commitment     rpc.CommitmentType
	RequestTimeout time.Duration
	Retry          *txerrors.RetryConfig
}

// OptionsFromConfig derives gateway options from the module config.
func OptionsFromConfig(cfg *config.Config) Options {
	retry := txerrors.DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxRetries + 1
	if backoff := cfg.RetryBackoff(); backoff > 0 {
		retry.InitialDelay = backoff
	}
	return Options{
		Commitment:     rpc.CommitmentType(cfg.Commitment),
		RequestTimeout: cfg.RequestTimeout(),
		Retry:          retry,
	}
}

// RPCGateway implements Ledger over a pool of ledger RPC endpoints. It is
// safe for concurrent use.
type RPCGateway struct {
	pool    *rpcpool.Manager
	opts    Options
	logger  zerolog.Logger
	ownPool bool
}

var _ Ledger = (*RPCGateway)(nil)

// NewRPCGateway builds the endpoint pool described by cfg. Call Start before use.
func NewRPCGateway(cfg *config.Config, logger zerolog.Logger) (*RPCGateway, error) {
	pool, err := rpcpool.NewManager("ledger", cfg.RPCURLs, cfg.RPCPoolConfig, NewClientFactory(), logger)
	if err != nil {
		return nil, txerrors.NewInvalidInputError("new_rpc_gateway", "failed to create rpc pool", err)
	}
	pool.HealthMonitor.SetHealthChecker(NewHealthChecker(""))

	g := NewFromPool(pool, OptionsFromConfig(cfg), logger)
	g.ownPool = true
	return g, nil
}

// NewFromPool wraps an existing pool. The caller owns the pool lifecycle.
func NewFromPool(pool *rpcpool.Manager, opts Options, logger zerolog.Logger) *RPCGateway {
	if opts.Commitment == "" {
		opts.Commitment = rpc.CommitmentConfirmed
	}
	if opts.Retry == nil {
		opts.Retry = txerrors.DefaultRetryConfig()
	}
	return &RPCGateway{
		pool:   pool,
		opts:   opts,
		logger: logger.With().Str("component", "rpc_gateway").Logger(),
	}
}

// Start opens the endpoint clients and the health monitor.
func (g *RPCGateway) Start(ctx context.Context) error {
	if err := g.pool.Start(ctx); err != nil {
		return txerrors.NewTransientError("start", "failed to start rpc pool", err)
	}
	return nil
}

// Stop shuts down a pool created by NewRPCGateway.
func (g *RPCGateway) Stop() {
	if g.ownPool {
		g.pool.Stop()
	}
}

// Pool exposes the endpoint pool for stats and manual exclusion.
func (g *RPCGateway) Pool() *rpcpool.Manager {
	return g.pool
}

// Commitment is the commitment level applied to every call.
func (g *RPCGateway) Commitment() rpc.CommitmentType {
	return g.opts.Commitment
}

// call runs fn once through the pool with a per-attempt deadline.
func (g *RPCGateway) call(ctx context.Context, op string, fn func(ctx context.Context, node RPC) error) error {
	return g.pool.Execute(ctx, op, func(ctx context.Context, client rpcpool.Client) error {
		node, err := asRPC(client)
		if err != nil {
			return txerrors.NewFatalError(op, "unusable pool client", err)
		}
		if g.opts.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.opts.RequestTimeout)
			defer cancel()
		}
		return fn(ctx, node)
	})
}

// read runs an idempotent call, retrying transient failures with backoff.
func (g *RPCGateway) read(ctx context.Context, op string, fn func(ctx context.Context, node RPC) error) error {
	retry := &txerrors.RetryOperation{
		Name:   op,
		Config: g.opts.Retry,
		Fn: func() error {
			return g.call(ctx, op, fn)
		},
		OnRetry: func(attempt int, err error) {
			g.logger.Debug().Str("operation", op).Int("attempt", attempt).Err(err).Msg("retrying read")
		},
	}
	if err := retry.Execute(ctx); err != nil {
		return txerrors.Classified(op, err)
	}
	return nil
}

// GetLatestBlockhash returns a fresh blockhash at the configured commitment.
func (g *RPCGateway) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	var hash solana.Hash
	err := g.read(ctx, "get_latest_blockhash", func(ctx context.Context, node RPC) error {
		out, err := node.GetLatestBlockhash(ctx, g.opts.Commitment)
		if err != nil {
			return err
		}
		if out == nil || out.Value == nil {
			return txerrors.NewFatalError("get_latest_blockhash", "empty blockhash response", nil)
		}
		hash = out.Value.Blockhash
		return nil
	})
	return hash, err
}

// GetAccount returns the account at addr or a NotFound error.
func (g *RPCGateway) GetAccount(ctx context.Context, addr solana.PublicKey) (*Account, error) {
	var account *Account
	err := g.read(ctx, "get_account", func(ctx context.Context, node RPC) error {
		out, err := node.GetAccountInfoWithOpts(ctx, addr, &rpc.GetAccountInfoOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: g.opts.Commitment,
		})
		if err != nil {
			if txerrors.Is(err, rpc.ErrNotFound) {
				return txerrors.Sentinel(txerrors.ErrAccountNotFound, "get_account", err).
					WithContext("address", addr.String())
			}
			return err
		}
		if out == nil || out.Value == nil {
			return txerrors.Sentinel(txerrors.ErrAccountNotFound, "get_account", nil).
				WithContext("address", addr.String())
		}
		account = toAccount(addr, out.Value.Lamports, out.Value.Owner, out.Value.Data, out.Value.Executable)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// GetBalance returns the lamport balance of addr.
func (g *RPCGateway) GetBalance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	var lamports uint64
	err := g.read(ctx, "get_balance", func(ctx context.Context, node RPC) error {
		out, err := node.GetBalance(ctx, addr, g.opts.Commitment)
		if err != nil {
			return err
		}
		lamports = out.Value
		return nil
	})
	return lamports, err
}

// GetTokenAccountBalance returns the token balance held by the token account addr.
func (g *RPCGateway) GetTokenAccountBalance(ctx context.Context, addr solana.PublicKey) (*TokenAmount, error) {
	var amount *TokenAmount
	err := g.read(ctx, "get_token_account_balance", func(ctx context.Context, node RPC) error {
		out, err := node.GetTokenAccountBalance(ctx, addr, g.opts.Commitment)
		if err != nil {
			return err
		}
		if out == nil || out.Value == nil {
			return txerrors.Sentinel(txerrors.ErrAccountNotFound, "get_token_account_balance", nil).
				WithContext("address", addr.String())
		}
		raw, err := strconv.ParseUint(out.Value.Amount, 10, 64)
		if err != nil {
			return txerrors.NewFatalError("get_token_account_balance", "malformed token amount", err)
		}
		amount = &TokenAmount{
			Amount:         raw,
			Decimals:       out.Value.Decimals,
			UIAmountString: out.Value.UiAmountString,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return amount, nil
}

// SendTransaction submits tx with preflight simulation. It is never retried
// here; an endpoint that cannot be reached is skipped in favour of the next.
func (g *RPCGateway) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	var sig solana.Signature
	err := g.call(ctx, "send_transaction", func(ctx context.Context, node RPC) error {
		var err error
		sig, err = node.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			SkipPreflight:       false,
			PreflightCommitment: g.opts.Commitment,
		})
		return err
	})
	if err != nil {
		g.logger.Debug().Err(err).Msg("transaction submission failed")
		return solana.Signature{}, txerrors.Classified("send_transaction", err)
	}
	g.logger.Debug().Str("signature", sig.String()).Msg("transaction submitted")
	return sig, nil
}

// GetTransaction returns the processed transaction or a NotFound error.
func (g *RPCGateway) GetTransaction(ctx context.Context, sig solana.Signature) (*TransactionDetails, error) {
	var details *TransactionDetails
	maxVersion := uint64(0)
	err := g.read(ctx, "get_transaction", func(ctx context.Context, node RPC) error {
		out, err := node.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
			Encoding:                       solana.EncodingBase64,
			Commitment:                     g.opts.Commitment,
			MaxSupportedTransactionVersion: &maxVersion,
		})
		if err != nil {
			return err
		}
		if out == nil {
			return txerrors.NewNotFoundError("get_transaction", "transaction not found", rpc.ErrNotFound)
		}
		details = &TransactionDetails{
			Signature: sig,
			Slot:      out.Slot,
		}
		if out.BlockTime != nil {
			t := out.BlockTime.Time()
			details.BlockTime = &t
		}
		if out.Meta != nil {
			details.Fee = out.Meta.Fee
			details.Err = out.Meta.Err
			details.Logs = out.Meta.LogMessages
			details.PreBalances = out.Meta.PreBalances
			details.PostBalances = out.Meta.PostBalances
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

// GetSignatureStatus returns the confirmation progress of sig, or NotFound
// while the ledger has not seen it.
func (g *RPCGateway) GetSignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error) {
	var status *SignatureStatus
	err := g.read(ctx, "get_signature_status", func(ctx context.Context, node RPC) error {
		out, err := node.GetSignatureStatuses(ctx, false, sig)
		if err != nil {
			return err
		}
		if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
			return txerrors.NewNotFoundError("get_signature_status", "signature not found", nil).
				WithContext("signature", sig.String())
		}
		v := out.Value[0]
		status = &SignatureStatus{
			Slot:               v.Slot,
			Confirmations:      v.Confirmations,
			Err:                v.Err,
			ConfirmationStatus: v.ConfirmationStatus,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// GetMinimumBalanceForRentExemption returns the lamports an account of
// dataSize bytes must hold.
func (g *RPCGateway) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error) {
	var lamports uint64
	err := g.read(ctx, "get_minimum_balance_for_rent_exemption", func(ctx context.Context, node RPC) error {
		var err error
		lamports, err = node.GetMinimumBalanceForRentExemption(ctx, dataSize, g.opts.Commitment)
		return err
	})
	return lamports, err
}

// RequestAirdrop asks a test ledger to credit addr.
func (g *RPCGateway) RequestAirdrop(ctx context.Context, addr solana.PublicKey, lamports uint64) (solana.Signature, error) {
	var sig solana.Signature
	err := g.call(ctx, "request_airdrop", func(ctx context.Context, node RPC) error {
		var err error
		sig, err = node.RequestAirdrop(ctx, addr, lamports, g.opts.Commitment)
		return err
	})
	if err != nil {
		return solana.Signature{}, txerrors.Classified("request_airdrop", err)
	}
	return sig, nil
}

// GetTokenAccountsByOwner lists the token accounts of owner under program.
func (g *RPCGateway) GetTokenAccountsByOwner(ctx context.Context, owner, program solana.PublicKey) ([]*Account, error) {
	var accounts []*Account
	err := g.read(ctx, "get_token_accounts_by_owner", func(ctx context.Context, node RPC) error {
		programID := program
		out, err := node.GetTokenAccountsByOwner(ctx, owner,
			&rpc.GetTokenAccountsConfig{ProgramId: &programID},
			&rpc.GetTokenAccountsOpts{Commitment: g.opts.Commitment, Encoding: solana.EncodingBase64},
		)
		if err != nil {
			return err
		}
		accounts = accounts[:0]
		if out == nil {
			return nil
		}
		for _, item := range out.Value {
			accounts = append(accounts, toAccount(item.Pubkey, item.Account.Lamports, item.Account.Owner, item.Account.Data, item.Account.Executable))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetPriorityFee returns the median non-zero prioritization fee of recent
// blocks, or DefaultPriorityFee when there is none.
func (g *RPCGateway) GetPriorityFee(ctx context.Context) (uint64, error) {
	var fees []uint64
	err := g.read(ctx, "get_priority_fee", func(ctx context.Context, node RPC) error {
		recent, err := node.RecentPrioritizationFees(ctx)
		if err != nil {
			return err
		}
		fees = fees[:0]
		for _, fee := range recent {
			if fee.PrioritizationFee > 0 {
				fees = append(fees, fee.PrioritizationFee)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(fees) == 0 {
		g.logger.Info().Uint64("default_fee", DefaultPriorityFee).Msg("no recent non-zero prioritization fees, using default")
		return DefaultPriorityFee, nil
	}

	median := calculateMedian(fees)
	g.logger.Debug().Uint64("priority_fee", median).Int("samples", len(fees)).Msg("fetched priority fee")
	return median, nil
}

func toAccount(addr solana.PublicKey, lamports uint64, owner solana.PublicKey, data *rpc.DataBytesOrJSON, executable bool) *Account {
	account := &Account{
		Address:    addr,
		Lamports:   lamports,
		Owner:      owner,
		Executable: executable,
	}
	if data != nil {
		account.Data = data.GetBinary()
	}
	return account
}

// calculateMedian sorts fees in place and returns their median
func calculateMedian(fees []uint64) uint64 {
	if len(fees) == 0 {
		return 0
	}
	sort.Slice(fees, func(i, j int) bool {
		return fees[i] < fees[j]
	})
	n := len(fees)
	if n%2 == 0 {
		return (fees[n/2-1] + fees[n/2]) / 2
	}
	return fees[n/2]
}
