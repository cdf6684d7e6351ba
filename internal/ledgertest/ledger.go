// Package ledgertest provides an in-memory ledger implementing gateway.Ledger
// for tests. It verifies signatures, enforces blockhash freshness and runs the
// system, associated token account and token programs closely enough for
// provisioning and transfer scenarios.
package ledgertest

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	txerrors "github.com/pushchain/svm-txkit/errors"
	"github.com/pushchain/svm-txkit/gateway"
)

const (
	// TokenAccountSize and MintSize are the token program's account layouts.
	TokenAccountSize = 165
	MintSize         = 82

	lamportsPerSignature = 5000
	rentPerByteYear      = 3480
	rentExemptionYears   = 2
	accountStorageBytes  = 128
)

// ProgramHandler runs a custom program's instruction. Returning an error
// fails the whole transaction.
type ProgramHandler func(accounts []*solana.AccountMeta, data []byte) error

// Ledger is an in-memory ledger. It is safe for concurrent use.
type Ledger struct {
	// BeforeGetAccount and AfterGetAccount run around the read in every
	// GetAccount, outside the lock. Set them before the ledger is shared.
	BeforeGetAccount func(addr solana.PublicKey)
	AfterGetAccount  func(addr solana.PublicKey)

	mu          sync.Mutex
	slot        uint64
	blockhash   solana.Hash
	valid       map[solana.Hash]bool
	accounts    map[solana.PublicKey]*gateway.Account
	txs         map[solana.Signature]*gateway.TransactionDetails
	statuses    map[solana.Signature]rpc.ConfirmationStatusType
	programs    map[solana.PublicKey]ProgramHandler
	sendErrs    []error
	staleSends  int
	sendCount   int
	priorityFee uint64
}

// New creates an empty ledger with one valid blockhash.
func New() *Ledger {
	l := &Ledger{
		slot:        1,
		valid:       make(map[solana.Hash]bool),
		accounts:    make(map[solana.PublicKey]*gateway.Account),
		txs:         make(map[solana.Signature]*gateway.TransactionDetails),
		statuses:    make(map[solana.Signature]rpc.ConfirmationStatusType),
		programs:    make(map[solana.PublicKey]ProgramHandler),
		priorityFee: gateway.DefaultPriorityFee,
	}
	l.rotateLocked()
	return l
}

var _ gateway.Ledger = (*Ledger)(nil)

func (l *Ledger) rotateLocked() {
	l.slot++
	var h solana.Hash
	binary.LittleEndian.PutUint64(h[:], l.slot)
	copy(h[8:], "ledgertest")
	l.blockhash = h
	l.valid[h] = true
}

// ExpireBlockhashes invalidates every blockhash handed out so far.
func (l *Ledger) ExpireBlockhashes() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.valid = make(map[solana.Hash]bool)
	l.rotateLocked()
}

// RejectStale makes the next n submissions fail with an expired blockhash,
// as if the network had moved on while they were in flight.
func (l *Ledger) RejectStale(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.staleSends = n
}

// FailNextSend queues err as the result of the next submission.
func (l *Ledger) FailNextSend(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sendErrs = append(l.sendErrs, err)
}

// RegisterProgram installs a handler for a custom program. Instructions for
// unknown programs succeed without effect.
func (l *Ledger) RegisterProgram(id solana.PublicKey, h ProgramHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.programs[id] = h
}

// SetPriorityFee sets the value GetPriorityFee reports.
func (l *Ledger) SetPriorityFee(fee uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.priorityFee = fee
}

// SetStatus overrides the confirmation status of a processed transaction.
func (l *Ledger) SetStatus(sig solana.Signature, status rpc.ConfirmationStatusType) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses[sig] = status
}

// Fund credits lamports to addr, creating a system account if needed.
func (l *Ledger) Fund(addr solana.PublicKey, lamports uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[addr]
	if !ok {
		acc = &gateway.Account{Address: addr, Owner: solana.SystemProgramID}
		l.accounts[addr] = acc
	}
	acc.Lamports += lamports
}

// PutAccount stores a copy of acc.
func (l *Ledger) PutAccount(acc gateway.Account) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[acc.Address] = cloneAccount(&acc)
}

// SendCount returns how many submissions reached the ledger, accepted or not.
func (l *Ledger) SendCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sendCount
}

// Processed returns how many transactions were executed.
func (l *Ledger) Processed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.txs)
}

func (l *Ledger) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	if err := ctx.Err(); err != nil {
		return solana.Hash{}, txerrors.NewTransientError("get_latest_blockhash", "context done", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.blockhash, nil
}

func (l *Ledger) GetAccount(ctx context.Context, addr solana.PublicKey) (*gateway.Account, error) {
	if l.BeforeGetAccount != nil {
		l.BeforeGetAccount(addr)
	}
	if err := ctx.Err(); err != nil {
		return nil, txerrors.NewTransientError("get_account", "context done", err)
	}
	acc, err := l.account(addr)
	if l.AfterGetAccount != nil {
		l.AfterGetAccount(addr)
	}
	return acc, err
}

func (l *Ledger) account(addr solana.PublicKey) (*gateway.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[addr]
	if !ok {
		return nil, txerrors.Sentinel(txerrors.ErrAccountNotFound, "get_account", rpc.ErrNotFound).
			WithContext("address", addr.String())
	}
	return cloneAccount(acc), nil
}

func (l *Ledger) GetBalance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if acc, ok := l.accounts[addr]; ok {
		return acc.Lamports, nil
	}
	return 0, nil
}

func (l *Ledger) GetTokenAccountBalance(ctx context.Context, addr solana.PublicKey) (*gateway.TokenAmount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[addr]
	if !ok || len(acc.Data) != TokenAccountSize {
		return nil, txerrors.NewFatalError("get_token_account_balance", "could not find account", nil)
	}
	amount := binary.LittleEndian.Uint64(acc.Data[64:72])
	var decimals uint8
	if mint, ok := l.accounts[solana.PublicKeyFromBytes(acc.Data[0:32])]; ok && len(mint.Data) == MintSize {
		decimals = mint.Data[44]
	}
	return &gateway.TokenAmount{
		Amount:         amount,
		Decimals:       decimals,
		UIAmountString: formatUI(amount, decimals),
	}, nil
}

func (l *Ledger) GetTransaction(ctx context.Context, sig solana.Signature) (*gateway.TransactionDetails, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, ok := l.txs[sig]
	if !ok {
		return nil, txerrors.NewNotFoundError("get_transaction", "transaction not found", rpc.ErrNotFound)
	}
	out := *d
	return &out, nil
}

func (l *Ledger) GetSignatureStatus(ctx context.Context, sig solana.Signature) (*gateway.SignatureStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, ok := l.txs[sig]
	if !ok {
		return nil, txerrors.NewNotFoundError("get_signature_status", "signature not found", nil)
	}
	return &gateway.SignatureStatus{
		Slot:               d.Slot,
		Err:                d.Err,
		ConfirmationStatus: l.statuses[sig],
	}, nil
}

func (l *Ledger) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error) {
	return rentExempt(dataSize), nil
}

func (l *Ledger) RequestAirdrop(ctx context.Context, addr solana.PublicKey, lamports uint64) (solana.Signature, error) {
	l.Fund(addr, lamports)

	l.mu.Lock()
	defer l.mu.Unlock()
	var sig solana.Signature
	binary.LittleEndian.PutUint64(sig[:], l.slot)
	copy(sig[8:], addr[:])
	l.slot++
	l.txs[sig] = &gateway.TransactionDetails{Signature: sig, Slot: l.slot}
	l.statuses[sig] = rpc.ConfirmationStatusFinalized
	return sig, nil
}

func (l *Ledger) GetTokenAccountsByOwner(ctx context.Context, owner, program solana.PublicKey) ([]*gateway.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*gateway.Account
	for _, acc := range l.accounts {
		if acc.Owner != program || len(acc.Data) != TokenAccountSize {
			continue
		}
		if solana.PublicKeyFromBytes(acc.Data[32:64]) == owner {
			out = append(out, cloneAccount(acc))
		}
	}
	return out, nil
}

func (l *Ledger) GetPriorityFee(ctx context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.priorityFee, nil
}

// SendTransaction verifies and executes tx atomically. Rejections carry the
// same classification RPCGateway would give the node's answer.
func (l *Ledger) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if err := ctx.Err(); err != nil {
		return solana.Signature{}, txerrors.NewTransientError("send_transaction", "context done", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.sendCount++

	if n := len(l.sendErrs); n > 0 {
		err := l.sendErrs[0]
		l.sendErrs = l.sendErrs[1:]
		return solana.Signature{}, txerrors.Classified("send_transaction", err)
	}
	if l.staleSends > 0 {
		l.staleSends--
		return solana.Signature{}, rejection("Blockhash not found")
	}

	if len(tx.Signatures) == 0 || len(tx.Signatures) != int(tx.Message.Header.NumRequiredSignatures) {
		return solana.Signature{}, rejection("invalid transaction: signature count mismatch")
	}
	if err := tx.VerifySignatures(); err != nil {
		return solana.Signature{}, rejection(fmt.Sprintf("signature verification failure: %v", err))
	}
	if !l.valid[tx.Message.RecentBlockhash] {
		return solana.Signature{}, rejection("Blockhash not found")
	}
	sig := tx.Signatures[0]
	if _, seen := l.txs[sig]; seen {
		return solana.Signature{}, rejection("This transaction has already been processed")
	}

	run := &execution{ledger: l, staged: make(map[solana.PublicKey]*gateway.Account)}
	for i, ix := range tx.Message.Instructions {
		if err := run.instruction(tx, i, ix); err != nil {
			return solana.Signature{}, err
		}
	}
	for addr, acc := range run.staged {
		if acc == nil {
			delete(l.accounts, addr)
			continue
		}
		l.accounts[addr] = acc
	}

	l.slot++
	l.txs[sig] = &gateway.TransactionDetails{
		Signature: sig,
		Slot:      l.slot,
		Fee:       lamportsPerSignature * uint64(len(tx.Signatures)),
		Logs:      run.logs,
	}
	l.statuses[sig] = rpc.ConfirmationStatusFinalized
	return sig, nil
}

// rejection is a preflight failure as a node reports it.
func rejection(reason string) error {
	return txerrors.Classified("send_transaction", &jsonrpc.RPCError{
		Code:    -32002,
		Message: "Transaction simulation failed: " + reason,
	})
}

func instructionError(index int, reason string, logs ...string) error {
	data := map[string]interface{}{}
	if len(logs) > 0 {
		l := make([]interface{}, len(logs))
		for i, s := range logs {
			l[i] = s
		}
		data["logs"] = l
	}
	return txerrors.Classified("send_transaction", &jsonrpc.RPCError{
		Code:    -32002,
		Message: fmt.Sprintf("Transaction simulation failed: Error processing Instruction %d: %s", index, reason),
		Data:    data,
	})
}

func rentExempt(dataSize uint64) uint64 {
	return (accountStorageBytes + dataSize) * rentPerByteYear * rentExemptionYears
}

func cloneAccount(acc *gateway.Account) *gateway.Account {
	out := *acc
	if acc.Data != nil {
		out.Data = append([]byte(nil), acc.Data...)
	}
	return &out
}

func formatUI(amount uint64, decimals uint8) string {
	if decimals == 0 {
		return fmt.Sprintf("%d", amount)
	}
	div := uint64(1)
	for i := uint8(0); i < decimals; i++ {
		div *= 10
	}
	return fmt.Sprintf("%d.%0*d", amount/div, int(decimals), amount%div)
}
