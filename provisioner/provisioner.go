// Package provisioner creates associated token accounts on demand, tolerating
// concurrent callers racing to create the same account.
package provisioner

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/pushchain/svm-txkit/assembler"
	"github.com/pushchain/svm-txkit/derivation"
	txerrors "github.com/pushchain/svm-txkit/errors"
	"github.com/pushchain/svm-txkit/events"
	"github.com/pushchain/svm-txkit/gateway"
	"github.com/pushchain/svm-txkit/signer"
)

const op = "ensure_associated_account"

// Outcome tells how Ensure satisfied the request.
type Outcome int

const (
	// Created means this call's transaction created the account.
	Created Outcome = iota + 1
	// AlreadyExisted means the account was present, or another caller won the race to create it.
	AlreadyExisted
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case AlreadyExisted:
		return "already_existed"
	default:
		return "unknown"
	}
}

// Existence is what a call learned about an account.
type Existence int

const (
	Unknown Existence = iota
	Missing
	Present
)

// Record is the per-call view of the account being provisioned.
type Record struct {
	Address   solana.PublicKey
	Existence Existence
}

// Result is a successful provisioning. Signature is set only for Created.
type Result struct {
	Address   solana.PublicKey
	Outcome   Outcome
	Signature solana.Signature
}

// Ledger is the part of the gateway the provisioner needs.
type Ledger interface {
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
	GetAccount(ctx context.Context, addr solana.PublicKey) (*gateway.Account, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// Provisioner holds no state between calls and is safe for concurrent use.
type Provisioner struct {
	ledger Ledger
	sink   events.Sink
	opts   []assembler.Option
}

// New creates a provisioner. A nil sink discards events. opts apply to every
// creating transaction.
func New(ledger Ledger, sink events.Sink, opts ...assembler.Option) *Provisioner {
	if sink == nil {
		sink = events.Nop{}
	}
	return &Provisioner{ledger: ledger, sink: sink, opts: opts}
}

// Ensure makes sure owner's associated account for mint under program exists,
// creating it with payer paying when it is missing. Losing a creation race
// to another caller is reported as AlreadyExisted, not as an error.
func (p *Provisioner) Ensure(ctx context.Context, payer signer.Signer, owner, mint, program solana.PublicKey) (Result, error) {
	if payer == nil {
		return Result{}, txerrors.NewInvalidInputError(op, "payer is required", nil)
	}

	addr, err := derivation.AssociatedAddress(owner, mint, program)
	if err != nil {
		return Result{}, err
	}
	rec := Record{Address: addr}

	if _, err := p.ledger.GetAccount(ctx, addr); err == nil {
		rec.Existence = Present
	} else if txerrors.Classify(err) == txerrors.ErrCodeNotFound {
		rec.Existence = Missing
	} else {
		return Result{}, txerrors.Classified(op, err)
	}

	if rec.Existence == Present {
		p.emitOutcome(events.KindAccountExisted, rec.Address, owner, mint, program, solana.Signature{})
		return Result{Address: rec.Address, Outcome: AlreadyExisted}, nil
	}

	sig, err := p.create(ctx, payer, owner, mint, program, rec.Address)
	if err != nil {
		if p.lostRace(ctx, rec.Address, err) {
			p.emitOutcome(events.KindAccountExisted, rec.Address, owner, mint, program, solana.Signature{})
			return Result{Address: rec.Address, Outcome: AlreadyExisted}, nil
		}
		return Result{}, txerrors.Classified(op, err)
	}

	p.emitOutcome(events.KindAccountCreated, rec.Address, owner, mint, program, sig)
	return Result{Address: rec.Address, Outcome: Created, Signature: sig}, nil
}

// lostRace decides whether a failed create means another caller got there
// first. The account being present now settles it; otherwise the rejection
// itself must say the account exists.
func (p *Provisioner) lostRace(ctx context.Context, addr solana.PublicKey, err error) bool {
	if _, lookupErr := p.ledger.GetAccount(ctx, addr); lookupErr == nil {
		return true
	}
	return txerrors.IsAccountConflict(err) || txerrors.IsAlreadyProcessed(err)
}

func (p *Provisioner) create(ctx context.Context, payer signer.Signer, owner, mint, program, addr solana.PublicKey) (solana.Signature, error) {
	ix := CreateInstruction(payer.PublicKey(), addr, owner, mint, program)

	blockhash, err := p.ledger.GetLatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, err
	}

	tx, err := assembler.Assemble([]solana.Instruction{ix}, payer.PublicKey(), []signer.Signer{payer}, blockhash, p.opts...)
	if err != nil {
		return solana.Signature{}, err
	}

	start := time.Now()
	sig, err := p.ledger.SendTransaction(ctx, tx)
	e := events.Event{
		Op:        op,
		Signature: tx.Signatures[0],
		FeePayer:  payer.PublicKey(),
		Blockhash: blockhash,
		Attempt:   1,
		Duration:  time.Since(start),
		Err:       err,
	}
	if err != nil {
		e.Kind = events.KindSubmitFailed
		p.sink.Emit(events.Stamp(e))
		return solana.Signature{}, err
	}
	e.Kind = events.KindSubmitted
	e.Signature = sig
	p.sink.Emit(events.Stamp(e))
	return sig, nil
}

func (p *Provisioner) emitOutcome(kind events.Kind, addr, owner, mint, program solana.PublicKey, sig solana.Signature) {
	p.sink.Emit(events.Stamp(events.Event{
		Kind:      kind,
		Op:        op,
		Address:   addr,
		Owner:     owner,
		Mint:      mint,
		Program:   program,
		Signature: sig,
	}))
}

// CreateInstruction builds the associated token account program's Create
// instruction. Create fails when the account exists, which is how a lost
// race surfaces.
func CreateInstruction(payer, addr, owner, mint, program solana.PublicKey) *solana.GenericInstruction {
	return solana.NewInstruction(
		solana.SPLAssociatedTokenAccountProgramID,
		solana.AccountMetaSlice{
			{PublicKey: payer, IsSigner: true, IsWritable: true},
			{PublicKey: addr, IsWritable: true},
			{PublicKey: owner},
			{PublicKey: mint},
			{PublicKey: solana.SystemProgramID},
			{PublicKey: program},
		},
		[]byte{0},
	)
}
