package assembler

import (
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	txerrors "github.com/pushchain/svm-txkit/errors"
	"github.com/pushchain/svm-txkit/instruction"
	"github.com/pushchain/svm-txkit/signer"
)

var computeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

func seeded(b byte) *signer.Keypair {
	var seed [32]byte
	seed[0] = b
	return signer.FromSeed(seed)
}

type failingSigner struct {
	pk solana.PublicKey
}

func (f failingSigner) PublicKey() solana.PublicKey { return f.pk }
func (f failingSigner) Sign([]byte) (solana.Signature, error) {
	return solana.Signature{}, fmt.Errorf("hardware wallet disconnected")
}

func TestAssembleRejectsInvalidInput(t *testing.T) {
	payer := seeded(1)
	other := seeded(2)
	program := seeded(9).PublicKey()
	blockhash := solana.Hash{1}
	ix := instruction.Build(program, "ping", []*solana.AccountMeta{instruction.Writable(other.PublicKey())}, nil)

	testCases := []struct {
		name     string
		ixs      []solana.Instruction
		feePayer solana.PublicKey
		signers  []signer.Signer
		sentinel *txerrors.Error
		code     txerrors.ErrorCode
	}{
		{
			name:     "no signers",
			ixs:      []solana.Instruction{ix},
			feePayer: payer.PublicKey(),
			sentinel: txerrors.ErrNoSigners,
			code:     txerrors.ErrCodeAssembly,
		},
		{
			name:     "fee payer not among signers",
			ixs:      []solana.Instruction{ix},
			feePayer: payer.PublicKey(),
			signers:  []signer.Signer{other},
			sentinel: txerrors.ErrMissingFeePayerSignature,
			code:     txerrors.ErrCodeAssembly,
		},
		{
			name:     "no instructions",
			feePayer: payer.PublicKey(),
			signers:  []signer.Signer{payer},
			code:     txerrors.ErrCodeAssembly,
		},
		{
			name:     "duplicate signer",
			ixs:      []solana.Instruction{ix},
			feePayer: payer.PublicKey(),
			signers:  []signer.Signer{payer, payer},
			code:     txerrors.ErrCodeAssembly,
		},
		{
			name:     "signer not referenced by the message",
			ixs:      []solana.Instruction{ix},
			feePayer: payer.PublicKey(),
			signers:  []signer.Signer{payer, seeded(3)},
			code:     txerrors.ErrCodeAssembly,
		},
		{
			name:     "signer fails",
			ixs:      []solana.Instruction{ix},
			feePayer: payer.PublicKey(),
			signers:  []signer.Signer{failingSigner{pk: payer.PublicKey()}},
			code:     txerrors.ErrCodeSigning,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tx, err := Assemble(tc.ixs, tc.feePayer, tc.signers, blockhash)
			require.Error(t, err)
			assert.Nil(t, tx)
			assert.Equal(t, tc.code, txerrors.Classify(err))
			if tc.sentinel != nil {
				assert.True(t, txerrors.Is(err, tc.sentinel))
			}
		})
	}
}

func TestAssembleSignsEveryRequiredSigner(t *testing.T) {
	payer := seeded(1)
	authority := seeded(2)
	program := seeded(9).PublicKey()
	state := seeded(10).PublicKey()

	ix := instruction.Build(program, "update", []*solana.AccountMeta{
		instruction.Writable(state),
		instruction.Readonly(authority.PublicKey()),
	}, []byte{42})

	tx, err := Assemble([]solana.Instruction{ix}, payer.PublicKey(), []signer.Signer{authority, payer}, solana.Hash{7})
	require.NoError(t, err)

	assert.Equal(t, payer.PublicKey(), tx.Message.AccountKeys[0], "fee payer must be the first account")
	assert.Equal(t, solana.Hash{7}, tx.Message.RecentBlockhash)
	assert.Equal(t, 2, int(tx.Message.Header.NumRequiredSignatures))
	assert.Len(t, tx.Signatures, 2)
	require.NoError(t, tx.VerifySignatures())

	message, err := tx.Message.MarshalBinary()
	require.NoError(t, err)
	assert.True(t, signer.Verify(payer.PublicKey(), message, tx.Signatures[0]))
}

func TestAssembleSignerFlagsFollowSignerSet(t *testing.T) {
	payer := seeded(1)
	authority := seeded(2)
	impostor := seeded(3)
	program := seeded(9).PublicKey()

	// caller claims impostor signs and forgets that authority does
	accounts := []*solana.AccountMeta{
		{PublicKey: impostor.PublicKey(), IsSigner: true, IsWritable: false},
		{PublicKey: authority.PublicKey(), IsSigner: false, IsWritable: false},
	}
	ix := instruction.Build(program, "act", accounts, nil)

	tx, err := Assemble([]solana.Instruction{ix}, payer.PublicKey(), []signer.Signer{payer, authority}, solana.Hash{1})
	require.NoError(t, err)

	assert.True(t, tx.IsSigner(payer.PublicKey()))
	assert.True(t, tx.IsSigner(authority.PublicKey()))
	assert.False(t, tx.IsSigner(impostor.PublicKey()))
	require.NoError(t, tx.VerifySignatures())

	assert.True(t, accounts[0].IsSigner, "caller metas must not be mutated")
	assert.False(t, accounts[1].IsSigner, "caller metas must not be mutated")
}

func TestAssembleIsIndependentOfSignerOrder(t *testing.T) {
	payer := seeded(1)
	a := seeded(2)
	b := seeded(3)
	program := seeded(9).PublicKey()

	ix := instruction.Build(program, "multi", []*solana.AccountMeta{
		instruction.Readonly(a.PublicKey()),
		instruction.Readonly(b.PublicKey()),
	}, nil)

	tx1, err := Assemble([]solana.Instruction{ix}, payer.PublicKey(), []signer.Signer{payer, a, b}, solana.Hash{2})
	require.NoError(t, err)
	tx2, err := Assemble([]solana.Instruction{ix}, payer.PublicKey(), []signer.Signer{b, a, payer}, solana.Hash{2})
	require.NoError(t, err)

	m1, err := tx1.Message.MarshalBinary()
	require.NoError(t, err)
	m2, err := tx2.Message.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, m1, m2)
	assert.Equal(t, tx1.Signatures, tx2.Signatures)
}

func TestAssembleWritableWins(t *testing.T) {
	payer := seeded(1)
	program := seeded(9).PublicKey()
	shared := seeded(11).PublicKey()

	reader := instruction.Build(program, "read", []*solana.AccountMeta{instruction.Readonly(shared)}, nil)
	writer := instruction.Build(program, "write", []*solana.AccountMeta{instruction.Writable(shared)}, nil)

	for name, ixs := range map[string][]solana.Instruction{
		"readonly first": {reader, writer},
		"writable first": {writer, reader},
	} {
		t.Run(name, func(t *testing.T) {
			tx, err := Assemble(ixs, payer.PublicKey(), []signer.Signer{payer}, solana.Hash{3})
			require.NoError(t, err)

			writable, err := tx.IsWritable(shared)
			require.NoError(t, err)
			assert.True(t, writable)

			programWritable, err := tx.IsWritable(program)
			require.NoError(t, err)
			assert.False(t, programWritable)
		})
	}
}

func TestAssembleComputeBudget(t *testing.T) {
	payer := seeded(1)
	program := seeded(9).PublicKey()
	ix := instruction.Build(program, "heavy", nil, nil)

	tx, err := Assemble([]solana.Instruction{ix}, payer.PublicKey(), []signer.Signer{payer}, solana.Hash{4},
		WithComputeUnitLimit(DefaultComputeUnitLimit), WithComputeUnitPrice(1000))
	require.NoError(t, err)
	require.Len(t, tx.Message.Instructions, 3)

	for i, want := range []solana.PublicKey{computeBudgetProgramID, computeBudgetProgramID, program} {
		got, err := tx.Message.ResolveProgramIDIndex(tx.Message.Instructions[i].ProgramIDIndex)
		require.NoError(t, err)
		assert.Equal(t, want, got, "instruction %d", i)
	}
	require.NoError(t, tx.VerifySignatures())

	plain, err := Assemble([]solana.Instruction{ix}, payer.PublicKey(), []signer.Signer{payer}, solana.Hash{4},
		WithComputeUnitLimit(0), WithComputeUnitPrice(0))
	require.NoError(t, err)
	assert.Len(t, plain.Message.Instructions, 1)
}
