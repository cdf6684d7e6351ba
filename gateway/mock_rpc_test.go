package gateway

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/mock"
)

// MockRPC is a mock implementation of RPC
type MockRPC struct {
	mock.Mock
}

func (m *MockRPC) Ping(ctx context.Context) error { return nil }

func (m *MockRPC) Close() error { return nil }

func (m *MockRPC) GetHealth(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockRPC) GetSlot(ctx context.Context, commitment rpc.CommitmentType) (uint64, error) {
	args := m.Called(ctx, commitment)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockRPC) GetGenesisHash(ctx context.Context) (solana.Hash, error) {
	args := m.Called(ctx)
	return args.Get(0).(solana.Hash), args.Error(1)
}

func (m *MockRPC) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	args := m.Called(ctx, commitment)
	out, _ := args.Get(0).(*rpc.GetLatestBlockhashResult)
	return out, args.Error(1)
}

func (m *MockRPC) GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	args := m.Called(ctx, account, opts)
	out, _ := args.Get(0).(*rpc.GetAccountInfoResult)
	return out, args.Error(1)
}

func (m *MockRPC) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	args := m.Called(ctx, account, commitment)
	out, _ := args.Get(0).(*rpc.GetBalanceResult)
	return out, args.Error(1)
}

func (m *MockRPC) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error) {
	args := m.Called(ctx, account, commitment)
	out, _ := args.Get(0).(*rpc.GetTokenAccountBalanceResult)
	return out, args.Error(1)
}

func (m *MockRPC) GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey, conf *rpc.GetTokenAccountsConfig, opts *rpc.GetTokenAccountsOpts) (*rpc.GetTokenAccountsResult, error) {
	args := m.Called(ctx, owner, conf, opts)
	out, _ := args.Get(0).(*rpc.GetTokenAccountsResult)
	return out, args.Error(1)
}

func (m *MockRPC) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	args := m.Called(ctx, tx, opts)
	return args.Get(0).(solana.Signature), args.Error(1)
}

func (m *MockRPC) GetTransaction(ctx context.Context, sig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error) {
	args := m.Called(ctx, sig, opts)
	out, _ := args.Get(0).(*rpc.GetTransactionResult)
	return out, args.Error(1)
}

func (m *MockRPC) GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	args := m.Called(ctx, searchTransactionHistory, sigs)
	out, _ := args.Get(0).(*rpc.GetSignatureStatusesResult)
	return out, args.Error(1)
}

func (m *MockRPC) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64, commitment rpc.CommitmentType) (uint64, error) {
	args := m.Called(ctx, dataSize, commitment)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockRPC) RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64, commitment rpc.CommitmentType) (solana.Signature, error) {
	args := m.Called(ctx, account, lamports, commitment)
	return args.Get(0).(solana.Signature), args.Error(1)
}

func (m *MockRPC) RecentPrioritizationFees(ctx context.Context) ([]PrioritizationFee, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]PrioritizationFee)
	return out, args.Error(1)
}
