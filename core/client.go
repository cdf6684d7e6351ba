// Package core is the entry point of the module: it ties instruction
// building, address derivation, provisioning, assembly and submission to a
// ledger gateway.
package core

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/pushchain/svm-txkit/assembler"
	"github.com/pushchain/svm-txkit/config"
	"github.com/pushchain/svm-txkit/derivation"
	txerrors "github.com/pushchain/svm-txkit/errors"
	"github.com/pushchain/svm-txkit/events"
	"github.com/pushchain/svm-txkit/gateway"
	"github.com/pushchain/svm-txkit/instruction"
	"github.com/pushchain/svm-txkit/provisioner"
	"github.com/pushchain/svm-txkit/signer"
)

const (
	opSubmit  = "submit"
	opExecute = "execute"
	opConfirm = "wait_for_confirmation"
)

// Options tunes submission behavior of a Client.
type Options struct {
	Commitment            rpc.CommitmentType
	StaleResubmitAttempts int
	ConfirmationPoll      time.Duration
	ConfirmationTimeout   time.Duration
	ComputeUnitLimit      uint32
	ComputeUnitPrice      uint64
}

// DefaultOptions mirrors the defaults of the embedded config.
func DefaultOptions() Options {
	return Options{
		Commitment:            rpc.CommitmentConfirmed,
		StaleResubmitAttempts: 3,
		ConfirmationPoll:      500 * time.Millisecond,
		ConfirmationTimeout:   60 * time.Second,
	}
}

// OptionsFromConfig derives client options from a validated config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Commitment:            rpc.CommitmentType(cfg.Commitment),
		StaleResubmitAttempts: cfg.StaleResubmitAttempts,
		ConfirmationPoll:      cfg.ConfirmationPoll(),
		ConfirmationTimeout:   cfg.ConfirmationTimeout(),
		ComputeUnitLimit:      cfg.ComputeUnitLimit,
		ComputeUnitPrice:      cfg.ComputeUnitPrice,
	}
}

// Client is safe for concurrent use. It keeps no per-transaction state; the
// only shared resource is the ledger it was built over.
type Client struct {
	ledger      gateway.Ledger
	provisioner *provisioner.Provisioner
	sink        events.Sink
	opts        Options
	closers     []func() error
}

// New creates a client over ledger. A nil sink discards events.
func New(ledger gateway.Ledger, sink events.Sink, opts Options) *Client {
	if sink == nil {
		sink = events.Nop{}
	}
	if opts.Commitment == "" {
		opts.Commitment = rpc.CommitmentConfirmed
	}
	c := &Client{ledger: ledger, sink: sink, opts: opts}
	c.provisioner = provisioner.New(ledger, sink, c.budget()...)
	return c
}

// Ledger returns the gateway the client submits through.
func (c *Client) Ledger() gateway.Ledger {
	return c.ledger
}

func (c *Client) budget() []assembler.Option {
	return []assembler.Option{
		assembler.WithComputeUnitLimit(c.opts.ComputeUnitLimit),
		assembler.WithComputeUnitPrice(c.opts.ComputeUnitPrice),
	}
}

// BuildInstruction builds an Anchor-style instruction calling method on the
// program whose base58 address is program.
func (c *Client) BuildInstruction(program string, method string, accounts []*solana.AccountMeta, payload []byte) (solana.Instruction, error) {
	ix, err := instruction.BuildFromText(program, method, accounts, payload)
	if err != nil {
		return nil, err
	}
	return ix, nil
}

// AssembleAndSign compiles and signs a transaction. It performs no I/O; the
// caller supplies the blockhash.
func (c *Client) AssembleAndSign(
	instructions []solana.Instruction,
	feePayer solana.PublicKey,
	signers []signer.Signer,
	blockhash solana.Hash,
	opts ...assembler.Option,
) (*solana.Transaction, error) {
	return assembler.Assemble(instructions, feePayer, signers, blockhash, opts...)
}

// DeriveAssociatedAddress returns owner's associated account for mint under program.
func (c *Client) DeriveAssociatedAddress(owner, mint, program solana.PublicKey) (solana.PublicKey, error) {
	return derivation.AssociatedAddress(owner, mint, program)
}

// EnsureAssociatedAccount creates owner's associated account unless it exists.
func (c *Client) EnsureAssociatedAccount(ctx context.Context, payer signer.Signer, owner, mint, program solana.PublicKey) (provisioner.Result, error) {
	return c.provisioner.Ensure(ctx, payer, owner, mint, program)
}

// Submit sends an already signed transaction once. A stale blockhash is
// reported as StaleFreshness; use Execute to have the client rebuild.
func (c *Client) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if tx == nil || len(tx.Signatures) == 0 {
		return solana.Signature{}, txerrors.NewInvalidInputError(opSubmit, "transaction is not signed", nil)
	}
	return c.send(ctx, opSubmit, tx, 1)
}

// Execute fetches a fresh blockhash, assembles, signs and submits. When the
// ledger rejects the blockhash as expired the transaction is rebuilt and
// resubmitted, up to StaleResubmitAttempts times. Other failures are
// returned immediately.
func (c *Client) Execute(ctx context.Context, instructions []solana.Instruction, feePayer solana.PublicKey, signers []signer.Signer) (solana.Signature, error) {
	return c.execute(ctx, opExecute, instructions, feePayer, signers)
}

func (c *Client) execute(ctx context.Context, op string, instructions []solana.Instruction, feePayer solana.PublicKey, signers []signer.Signer) (solana.Signature, error) {
	attempts := 1 + c.opts.StaleResubmitAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		blockhash, err := c.ledger.GetLatestBlockhash(ctx)
		if err != nil {
			return solana.Signature{}, txerrors.Classified(op, err)
		}

		tx, err := assembler.Assemble(instructions, feePayer, signers, blockhash, c.budget()...)
		if err != nil {
			return solana.Signature{}, err
		}

		sig, err := c.send(ctx, op, tx, attempt)
		if err == nil {
			return sig, nil
		}
		if txerrors.Classify(err) != txerrors.ErrCodeStaleFreshness || attempt >= attempts {
			return solana.Signature{}, err
		}

		c.sink.Emit(events.Stamp(events.Event{
			Kind:      events.KindResubmitting,
			Op:        op,
			Signature: tx.Signatures[0],
			FeePayer:  feePayer,
			Blockhash: blockhash,
			Attempt:   attempt,
			Err:       err,
		}))
	}
}

func (c *Client) send(ctx context.Context, op string, tx *solana.Transaction, attempt int) (solana.Signature, error) {
	start := time.Now()
	sig, err := c.ledger.SendTransaction(ctx, tx)

	e := events.Event{
		Op:        op,
		Signature: tx.Signatures[0],
		Blockhash: tx.Message.RecentBlockhash,
		Attempt:   attempt,
		Duration:  time.Since(start),
	}
	if len(tx.Message.AccountKeys) > 0 {
		e.FeePayer = tx.Message.AccountKeys[0]
	}
	if err != nil && txerrors.IsAlreadyProcessed(err) {
		// a resend of a transaction that already landed, e.g. after failover
		sig, err = tx.Signatures[0], nil
	}
	if err != nil {
		e.Kind = events.KindSubmitFailed
		e.Err = err
		c.sink.Emit(events.Stamp(e))
		return solana.Signature{}, txerrors.Classified(op, err)
	}
	e.Kind = events.KindSubmitted
	e.Signature = sig
	c.sink.Emit(events.Stamp(e))
	return sig, nil
}

// WaitForConfirmation polls the signature status until it reaches
// commitment, the transaction fails on chain, or ConfirmationTimeout
// elapses. An empty commitment uses the client's default.
func (c *Client) WaitForConfirmation(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType) (*gateway.SignatureStatus, error) {
	if commitment == "" {
		commitment = c.opts.Commitment
	}
	poll := c.opts.ConfirmationPoll
	if poll <= 0 {
		poll = DefaultOptions().ConfirmationPoll
	}
	if c.opts.ConfirmationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.ConfirmationTimeout)
		defer cancel()
	}

	start := time.Now()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		status, err := c.ledger.GetSignatureStatus(ctx, sig)
		switch {
		case err == nil && status.Err != nil:
			failure := txerrors.NewFatalError(opConfirm, "transaction failed on chain", nil).
				WithContext("signature", sig.String()).
				WithContext("err", status.Err)
			c.emitConfirmation(events.KindConfirmFailed, sig, status.Slot, start, failure)
			return status, failure
		case err == nil && status.Reached(commitment):
			c.emitConfirmation(events.KindConfirmed, sig, status.Slot, start, nil)
			return status, nil
		case err != nil:
			code := txerrors.Classify(err)
			if code != txerrors.ErrCodeNotFound && code != txerrors.ErrCodeTransient {
				c.emitConfirmation(events.KindConfirmFailed, sig, 0, start, err)
				return nil, txerrors.Classified(opConfirm, err)
			}
		}

		select {
		case <-ctx.Done():
			timeout := txerrors.NewTransientError(opConfirm, "timed out waiting for confirmation", ctx.Err()).
				WithContext("signature", sig.String()).
				WithContext("commitment", string(commitment))
			c.emitConfirmation(events.KindConfirmFailed, sig, 0, start, timeout)
			return nil, timeout
		case <-ticker.C:
		}
	}
}

func (c *Client) emitConfirmation(kind events.Kind, sig solana.Signature, slot uint64, start time.Time, err error) {
	c.sink.Emit(events.Stamp(events.Event{
		Kind:      kind,
		Op:        opConfirm,
		Signature: sig,
		Slot:      slot,
		Duration:  time.Since(start),
		Err:       err,
	}))
}

// Close releases resources the client owns, such as a gateway or journal
// opened by Open. Clients built with New own nothing.
func (c *Client) Close() error {
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	return first
}
