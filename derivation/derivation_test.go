package derivation

import (
	"bytes"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	txerrors "github.com/pushchain/svm-txkit/errors"
)

func TestAssociatedAddress(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	t.Run("deterministic", func(t *testing.T) {
		a, err := AssociatedAddress(owner, mint, solana.TokenProgramID)
		require.NoError(t, err)
		b, err := AssociatedAddress(owner, mint, solana.TokenProgramID)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("agrees with solana-go for the classic token program", func(t *testing.T) {
		want, _, err := solana.FindAssociatedTokenAddress(owner, mint)
		require.NoError(t, err)
		got, err := AssociatedAddress(owner, mint, solana.TokenProgramID)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("each input changes the address", func(t *testing.T) {
		base := MustAssociatedAddress(owner, mint, solana.TokenProgramID)
		other := solana.NewWallet().PublicKey()

		assert.NotEqual(t, base, MustAssociatedAddress(other, mint, solana.TokenProgramID))
		assert.NotEqual(t, base, MustAssociatedAddress(owner, other, solana.TokenProgramID))
		assert.NotEqual(t, base, MustAssociatedAddress(owner, mint, Token2022ProgramID))
	})

	t.Run("owner and mint roles are not interchangeable", func(t *testing.T) {
		assert.NotEqual(t,
			MustAssociatedAddress(owner, mint, solana.TokenProgramID),
			MustAssociatedAddress(mint, owner, solana.TokenProgramID))
	})

	t.Run("derived address is off curve", func(t *testing.T) {
		addr := MustAssociatedAddress(owner, mint, solana.TokenProgramID)
		assert.False(t, addr.IsOnCurve())
	})
}

func TestProgramAddress(t *testing.T) {
	program := solana.NewWallet().PublicKey()

	addr, bump, err := ProgramAddress([][]byte{[]byte("vault")}, program)
	require.NoError(t, err)

	again, err := solana.CreateProgramAddress([][]byte{[]byte("vault"), {bump}}, program)
	require.NoError(t, err)
	assert.Equal(t, addr, again)

	t.Run("seed too long", func(t *testing.T) {
		_, _, err := ProgramAddress([][]byte{bytes.Repeat([]byte{1}, 33)}, program)
		require.Error(t, err)
		assert.Equal(t, txerrors.ErrCodeDerivation, txerrors.Classify(err))
	})

	t.Run("too many seeds", func(t *testing.T) {
		seeds := make([][]byte, 17)
		for i := range seeds {
			seeds[i] = []byte{byte(i)}
		}
		_, _, err := ProgramAddress(seeds, program)
		require.Error(t, err)
		assert.Equal(t, txerrors.ErrCodeDerivation, txerrors.Classify(err))
	})
}
