package instruction

import (
	"crypto/sha256"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	txerrors "github.com/pushchain/svm-txkit/errors"
)

func TestDiscriminator(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, Discriminator("initialize"), Discriminator("initialize"))
	})

	t.Run("matches sha256 of global namespace", func(t *testing.T) {
		for _, method := range []string{"initialize", "transfer", "withdraw_tss", ""} {
			sum := sha256.Sum256([]byte("global:" + method))
			disc := Discriminator(method)
			assert.Equal(t, sum[:8], disc[:], method)
		}
	})

	t.Run("distinct names differ", func(t *testing.T) {
		assert.NotEqual(t, Discriminator("initialize"), Discriminator("Initialize"))
		assert.NotEqual(t, Discriminator("deposit"), Discriminator("withdraw"))
	})
}

func TestBuild(t *testing.T) {
	program := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()
	state := solana.NewWallet().PublicKey()

	accounts := []*solana.AccountMeta{Writable(state), Readonly(owner)}
	ix := Build(program, "initialize", accounts, []byte{1, 2, 3})

	assert.Equal(t, program, ix.ProgramID())

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, DiscriminatorSize+3)
	disc := Discriminator("initialize")
	assert.Equal(t, disc[:], data[:DiscriminatorSize])
	assert.Equal(t, []byte{1, 2, 3}, data[DiscriminatorSize:])
	assert.True(t, Method(data, "initialize"))
	assert.False(t, Method(data, "close"))

	got := ix.Accounts()
	require.Len(t, got, 2)
	assert.Equal(t, state, got[0].PublicKey)
	assert.True(t, got[0].IsWritable)
	assert.Equal(t, owner, got[1].PublicKey)
	assert.False(t, got[1].IsWritable)

	accounts[0].IsWritable = false
	assert.True(t, ix.Accounts()[0].IsWritable, "caller edits must not leak into the instruction")
}

func TestBuildWithEmptyPayload(t *testing.T) {
	ix := Build(solana.SystemProgramID, "noop", nil, nil)
	data, err := ix.Data()
	require.NoError(t, err)
	assert.Len(t, data, DiscriminatorSize)
	assert.Empty(t, ix.Accounts())
}

func TestBuildFromText(t *testing.T) {
	program := solana.NewWallet().PublicKey()

	ix, err := BuildFromText(program.String(), "initialize", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, program, ix.ProgramID())

	for _, bad := range []string{"", "not-an-address", "0x1234"} {
		_, err := BuildFromText(bad, "initialize", nil, nil)
		require.Error(t, err, bad)
		assert.True(t, txerrors.Is(err, txerrors.ErrInvalidProgramAddress))
		assert.Equal(t, txerrors.ErrCodeInvalidInput, txerrors.Classify(err))
	}
}

func TestEncodeArgs(t *testing.T) {
	out, err := EncodeArgs(uint64(5), uint8(9), true)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		5, 0, 0, 0, 0, 0, 0, 0,
		9,
		1,
	}, out)

	ix, err := BuildWithArgs(solana.SystemProgramID, "set", nil, uint32(1))
	require.NoError(t, err)
	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 0}, data[DiscriminatorSize:])
}
