// Package assembler compiles instructions into a signed transaction.
package assembler

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	txerrors "github.com/pushchain/svm-txkit/errors"
	"github.com/pushchain/svm-txkit/signer"
)

const op = "assemble"

// Assemble builds a transaction paying fees from feePayer, bound to
// blockhash and signed by every signer.
//
// Account metadata is normalized before compiling: an account is a signer
// exactly when its address belongs to signers, and it is writable when any
// declaration of it in the transaction is writable. The caller's metas are
// left untouched. Signatures follow the message's signer order, fee payer
// first.
func Assemble(
	instructions []solana.Instruction,
	feePayer solana.PublicKey,
	signers []signer.Signer,
	blockhash solana.Hash,
	opts ...Option,
) (*solana.Transaction, error) {
	if len(signers) == 0 {
		return nil, txerrors.Sentinel(txerrors.ErrNoSigners, op, nil)
	}
	if len(instructions) == 0 {
		return nil, txerrors.NewAssemblyError(op, "no instructions provided", nil)
	}

	bySigner := make(map[solana.PublicKey]signer.Signer, len(signers))
	for i, s := range signers {
		if s == nil {
			return nil, txerrors.NewAssemblyError(op, fmt.Sprintf("signer %d is nil", i), nil)
		}
		pk := s.PublicKey()
		if _, dup := bySigner[pk]; dup {
			return nil, txerrors.NewAssemblyError(op, "duplicate signer", nil).WithContext("signer", pk.String())
		}
		bySigner[pk] = s
	}
	if _, ok := bySigner[feePayer]; !ok {
		return nil, txerrors.Sentinel(txerrors.ErrMissingFeePayerSignature, op, nil).
			WithContext("fee_payer", feePayer.String())
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	all := append(o.budgetInstructions(), instructions...)

	normalized, err := normalize(all, bySigner)
	if err != nil {
		return nil, err
	}

	tx, err := solana.NewTransaction(normalized, blockhash, solana.TransactionPayer(feePayer))
	if err != nil {
		return nil, txerrors.NewAssemblyError(op, "failed to compile message", err)
	}

	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, txerrors.NewAssemblyError(op, "failed to encode message", err)
	}

	required := tx.Message.Signers()
	if len(required) != len(signers) {
		return nil, txerrors.NewAssemblyError(op,
			fmt.Sprintf("message requires %d signatures but %d signers were supplied", len(required), len(signers)), nil)
	}

	tx.Signatures = make([]solana.Signature, len(required))
	for i, pk := range required {
		s, ok := bySigner[pk]
		if !ok {
			return nil, txerrors.NewAssemblyError(op, "message signer not supplied", nil).WithContext("signer", pk.String())
		}
		sig, err := s.Sign(message)
		if err != nil {
			return nil, txerrors.NewSigningError(op, "signer failed", err).WithContext("signer", pk.String())
		}
		tx.Signatures[i] = sig
	}

	return tx, nil
}

// normalize rebuilds every instruction over fresh account metas with the
// signer and writable flags resolved across the whole transaction.
func normalize(instructions []solana.Instruction, signers map[solana.PublicKey]signer.Signer) ([]solana.Instruction, error) {
	writable := make(map[solana.PublicKey]bool)
	for i, ix := range instructions {
		if ix == nil {
			return nil, txerrors.NewAssemblyError(op, fmt.Sprintf("instruction %d is nil", i), nil)
		}
		for _, acc := range ix.Accounts() {
			if acc == nil {
				return nil, txerrors.NewAssemblyError(op, fmt.Sprintf("instruction %d has a nil account", i), nil)
			}
			writable[acc.PublicKey] = writable[acc.PublicKey] || acc.IsWritable
		}
	}

	out := make([]solana.Instruction, 0, len(instructions))
	for i, ix := range instructions {
		data, err := ix.Data()
		if err != nil {
			return nil, txerrors.NewAssemblyError(op, fmt.Sprintf("failed to encode instruction %d", i), err)
		}
		accounts := ix.Accounts()
		metas := make(solana.AccountMetaSlice, len(accounts))
		for j, acc := range accounts {
			_, isSigner := signers[acc.PublicKey]
			metas[j] = &solana.AccountMeta{
				PublicKey:  acc.PublicKey,
				IsSigner:   isSigner,
				IsWritable: writable[acc.PublicKey],
			}
		}
		out = append(out, solana.NewInstruction(ix.ProgramID(), metas, data))
	}
	return out, nil
}
