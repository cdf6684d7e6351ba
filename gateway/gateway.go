// Package gateway is the module's only contact with the ledger network.
package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Gateway is the set of ledger calls the transaction core depends on.
// Every error it returns is classified (see errors.Classify): a missing
// account is NotFound, a creation the system program refuses because the
// account exists is AlreadyExists, an expired blockhash is StaleFreshness, network trouble is Transient and
// anything else is Fatal.
type Gateway interface {
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
	GetAccount(ctx context.Context, addr solana.PublicKey) (*Account, error)
	GetBalance(ctx context.Context, addr solana.PublicKey) (uint64, error)
	GetTokenAccountBalance(ctx context.Context, addr solana.PublicKey) (*TokenAmount, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	GetTransaction(ctx context.Context, sig solana.Signature) (*TransactionDetails, error)
}

// Ledger adds the calls used by the token, airdrop and confirmation helpers.
type Ledger interface {
	Gateway
	GetSignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error)
	RequestAirdrop(ctx context.Context, addr solana.PublicKey, lamports uint64) (solana.Signature, error)
	GetTokenAccountsByOwner(ctx context.Context, owner, program solana.PublicKey) ([]*Account, error)
	GetPriorityFee(ctx context.Context) (uint64, error)
}

// Account is a ledger account snapshot.
type Account struct {
	Address    solana.PublicKey `json:"address"`
	Lamports   uint64           `json:"lamports"`
	Owner      solana.PublicKey `json:"owner"`
	Data       []byte           `json:"data"`
	Executable bool             `json:"executable"`
}

// TokenAmount is a token account balance in base units.
type TokenAmount struct {
	Amount         uint64 `json:"amount"`
	Decimals       uint8  `json:"decimals"`
	UIAmountString string `json:"ui_amount_string"`
}

// TransactionDetails is the ledger's record of a processed transaction.
type TransactionDetails struct {
	Signature    solana.Signature `json:"signature"`
	Slot         uint64           `json:"slot"`
	BlockTime    *time.Time       `json:"block_time,omitempty"`
	Fee          uint64           `json:"fee"`
	Err          interface{}      `json:"err,omitempty"`
	Logs         []string         `json:"logs,omitempty"`
	PreBalances  []uint64         `json:"pre_balances,omitempty"`
	PostBalances []uint64         `json:"post_balances,omitempty"`
}

// Succeeded reports whether the transaction executed without error.
func (d *TransactionDetails) Succeeded() bool {
	return d.Err == nil
}

// JSON renders the details as an indented JSON document.
func (d *TransactionDetails) JSON() (string, error) {
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// SignatureStatus is the confirmation progress of a submitted transaction.
type SignatureStatus struct {
	Slot               uint64                     `json:"slot"`
	Confirmations      *uint64                    `json:"confirmations,omitempty"`
	Err                interface{}                `json:"err,omitempty"`
	ConfirmationStatus rpc.ConfirmationStatusType `json:"confirmation_status"`
}

// Reached reports whether the status has reached at least commitment.
func (s *SignatureStatus) Reached(commitment rpc.CommitmentType) bool {
	return confirmationRank(s.ConfirmationStatus) >= commitmentRank(commitment)
}

func confirmationRank(status rpc.ConfirmationStatusType) int {
	switch status {
	case rpc.ConfirmationStatusProcessed:
		return 1
	case rpc.ConfirmationStatusConfirmed:
		return 2
	case rpc.ConfirmationStatusFinalized:
		return 3
	}
	return 0
}

func commitmentRank(commitment rpc.CommitmentType) int {
	switch commitment {
	case rpc.CommitmentProcessed:
		return 1
	case rpc.CommitmentConfirmed:
		return 2
	case rpc.CommitmentFinalized:
		return 3
	}
	return 2
}
