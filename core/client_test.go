package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushchain/svm-txkit/config"
	"github.com/pushchain/svm-txkit/derivation"
	txerrors "github.com/pushchain/svm-txkit/errors"
	"github.com/pushchain/svm-txkit/events"
	"github.com/pushchain/svm-txkit/gateway"
	"github.com/pushchain/svm-txkit/instruction"
	"github.com/pushchain/svm-txkit/internal/ledgertest"
	"github.com/pushchain/svm-txkit/provisioner"
	"github.com/pushchain/svm-txkit/signer"
)

const sol = 1_000_000_000

func testOptions() Options {
	return Options{
		Commitment:            rpc.CommitmentConfirmed,
		StaleResubmitAttempts: 3,
		ConfirmationPoll:      5 * time.Millisecond,
		ConfirmationTimeout:   200 * time.Millisecond,
	}
}

func newTestClient(t *testing.T, opts Options) (*Client, *ledgertest.Ledger, *events.Recorder) {
	t.Helper()
	ledger := ledgertest.New()
	rec := events.NewRecorder()
	return New(ledger, rec, opts), ledger, rec
}

func fundedKeypair(t *testing.T, ledger *ledgertest.Ledger) *signer.Keypair {
	t.Helper()
	k, err := signer.Generate()
	require.NoError(t, err)
	ledger.Fund(k.PublicKey(), 10*sol)
	return k
}

func TestBuildInstruction(t *testing.T) {
	c, _, _ := newTestClient(t, testOptions())
	program := solana.NewWallet().PublicKey()
	acct := instruction.Writable(solana.NewWallet().PublicKey())

	ix, err := c.BuildInstruction(program.String(), "increment", []*solana.AccountMeta{acct}, []byte{7})
	require.NoError(t, err)
	assert.Equal(t, program, ix.ProgramID())

	data, err := ix.Data()
	require.NoError(t, err)
	disc := instruction.Discriminator("increment")
	assert.Equal(t, append(disc[:], 7), data)

	_, err = c.BuildInstruction("not-an-address", "increment", nil, nil)
	require.Error(t, err)
	assert.True(t, txerrors.Is(err, txerrors.ErrInvalidProgramAddress))
}

func TestAssembleAndSign(t *testing.T) {
	c, ledger, _ := newTestClient(t, testOptions())
	payer := fundedKeypair(t, ledger)
	other, err := signer.Generate()
	require.NoError(t, err)

	blockhash, err := ledger.GetLatestBlockhash(context.Background())
	require.NoError(t, err)

	ix := solana.NewInstruction(solana.NewWallet().PublicKey(), solana.AccountMetaSlice{
		{PublicKey: other.PublicKey(), IsWritable: true},
	}, []byte{1})
	tx, err := c.AssembleAndSign([]solana.Instruction{ix}, payer.PublicKey(), []signer.Signer{other, payer}, blockhash)
	require.NoError(t, err)

	require.Len(t, tx.Signatures, 2)
	assert.Equal(t, payer.PublicKey(), tx.Message.AccountKeys[0])
	assert.NoError(t, tx.VerifySignatures())

	_, err = c.AssembleAndSign([]solana.Instruction{ix}, payer.PublicKey(), nil, blockhash)
	assert.True(t, txerrors.Is(err, txerrors.ErrNoSigners))
}

func TestDeriveAssociatedAddress(t *testing.T) {
	c, _, _ := newTestClient(t, testOptions())
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	got, err := c.DeriveAssociatedAddress(owner, mint, solana.TokenProgramID)
	require.NoError(t, err)
	assert.Equal(t, derivation.MustAssociatedAddress(owner, mint, solana.TokenProgramID), got)
}

func TestEnsureAssociatedAccount(t *testing.T) {
	c, ledger, rec := newTestClient(t, testOptions())
	payer := fundedKeypair(t, ledger)
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	ledger.AddMint(mint, payer.PublicKey(), 6)

	first, err := c.EnsureAssociatedAccount(context.Background(), payer, owner, mint, solana.TokenProgramID)
	require.NoError(t, err)
	assert.Equal(t, provisioner.Created, first.Outcome)

	second, err := c.EnsureAssociatedAccount(context.Background(), payer, owner, mint, solana.TokenProgramID)
	require.NoError(t, err)
	assert.Equal(t, provisioner.AlreadyExisted, second.Outcome)
	assert.Equal(t, first.Address, second.Address)

	assert.Equal(t, 1, rec.Count(events.KindAccountCreated))
	assert.Equal(t, 1, rec.Count(events.KindAccountExisted))
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()
	c, ledger, rec := newTestClient(t, testOptions())
	sender := fundedKeypair(t, ledger)
	recipient := solana.NewWallet().PublicKey()

	build := func() *solana.Transaction {
		blockhash, err := ledger.GetLatestBlockhash(ctx)
		require.NoError(t, err)
		tx, err := c.AssembleAndSign(
			[]solana.Instruction{systemTransfer(sender.PublicKey(), recipient, 1000)},
			sender.PublicKey(), []signer.Signer{sender}, blockhash)
		require.NoError(t, err)
		return tx
	}

	t.Run("accepted", func(t *testing.T) {
		tx := build()
		sig, err := c.Submit(ctx, tx)
		require.NoError(t, err)
		assert.Equal(t, tx.Signatures[0], sig)
		assert.Equal(t, 1, rec.Count(events.KindSubmitted))
	})

	t.Run("resend of a landed transaction", func(t *testing.T) {
		tx := build()
		before, err := c.GetBalance(ctx, recipient)
		require.NoError(t, err)

		first, err := c.Submit(ctx, tx)
		require.NoError(t, err)
		again, err := c.Submit(ctx, tx)
		require.NoError(t, err)
		assert.Equal(t, first, again)
		assert.Equal(t, tx.Signatures[0], again)

		after, err := c.GetBalance(ctx, recipient)
		require.NoError(t, err)
		assert.Equal(t, before+1000, after)
		assert.Equal(t, 0, rec.Count(events.KindSubmitFailed))
	})

	t.Run("stale blockhash is not rebuilt", func(t *testing.T) {
		tx := build()
		ledger.ExpireBlockhashes()
		before := ledger.SendCount()

		_, err := c.Submit(ctx, tx)
		require.Error(t, err)
		assert.Equal(t, txerrors.ErrCodeStaleFreshness, txerrors.Classify(err))
		assert.Equal(t, before+1, ledger.SendCount())
		assert.Equal(t, 0, rec.Count(events.KindResubmitting))
	})

	t.Run("unsigned", func(t *testing.T) {
		_, err := c.Submit(ctx, &solana.Transaction{})
		assert.Equal(t, txerrors.ErrCodeInvalidInput, txerrors.Classify(err))
	})
}

func systemTransfer(from, to solana.PublicKey, lamports uint64) solana.Instruction {
	return system.NewTransferInstruction(lamports, from, to).Build()
}

func TestExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("resubmits after stale blockhash", func(t *testing.T) {
		c, ledger, rec := newTestClient(t, testOptions())
		sender := fundedKeypair(t, ledger)
		recipient := solana.NewWallet().PublicKey()
		ledger.RejectStale(2)

		sig, err := c.Execute(ctx, []solana.Instruction{systemTransfer(sender.PublicKey(), recipient, 1000)},
			sender.PublicKey(), []signer.Signer{sender})
		require.NoError(t, err)
		assert.NotEqual(t, solana.Signature{}, sig)
		assert.Equal(t, 3, ledger.SendCount())
		assert.Equal(t, 2, rec.Count(events.KindResubmitting))
		assert.Equal(t, 2, rec.Count(events.KindSubmitFailed))
		assert.Equal(t, 1, rec.Count(events.KindSubmitted))

		bal, err := c.GetBalance(ctx, recipient)
		require.NoError(t, err)
		assert.Equal(t, uint64(1000), bal)
	})

	t.Run("gives up after configured resubmissions", func(t *testing.T) {
		opts := testOptions()
		opts.StaleResubmitAttempts = 1
		c, ledger, _ := newTestClient(t, opts)
		sender := fundedKeypair(t, ledger)
		ledger.RejectStale(5)

		_, err := c.Execute(ctx, []solana.Instruction{systemTransfer(sender.PublicKey(), solana.NewWallet().PublicKey(), 1)},
			sender.PublicKey(), []signer.Signer{sender})
		require.Error(t, err)
		assert.Equal(t, txerrors.ErrCodeStaleFreshness, txerrors.Classify(err))
		assert.Equal(t, 2, ledger.SendCount())
	})

	t.Run("other failures are not resubmitted", func(t *testing.T) {
		c, ledger, _ := newTestClient(t, testOptions())
		sender := fundedKeypair(t, ledger)
		ledger.FailNextSend(fmt.Errorf("Transaction simulation failed: insufficient funds for fee"))

		_, err := c.Execute(ctx, []solana.Instruction{systemTransfer(sender.PublicKey(), solana.NewWallet().PublicKey(), 1)},
			sender.PublicKey(), []signer.Signer{sender})
		require.Error(t, err)
		assert.Equal(t, txerrors.ErrCodeFatal, txerrors.Classify(err))
		assert.Equal(t, 1, ledger.SendCount())
	})

	t.Run("assembly errors surface before any send", func(t *testing.T) {
		c, ledger, _ := newTestClient(t, testOptions())
		sender := fundedKeypair(t, ledger)
		stranger, err := signer.Generate()
		require.NoError(t, err)

		_, err = c.Execute(ctx, []solana.Instruction{systemTransfer(sender.PublicKey(), solana.NewWallet().PublicKey(), 1)},
			sender.PublicKey(), []signer.Signer{stranger})
		assert.True(t, txerrors.Is(err, txerrors.ErrMissingFeePayerSignature))
		assert.Equal(t, 0, ledger.SendCount())
	})
}

func TestExecute_AppliesComputeBudget(t *testing.T) {
	opts := testOptions()
	opts.ComputeUnitLimit = 300_000
	opts.ComputeUnitPrice = 10
	c, ledger, _ := newTestClient(t, opts)
	sender := fundedKeypair(t, ledger)

	sig, err := c.Execute(context.Background(), []solana.Instruction{systemTransfer(sender.PublicKey(), solana.NewWallet().PublicKey(), 1)},
		sender.PublicKey(), []signer.Signer{sender})
	require.NoError(t, err)

	details, err := c.GetTransactionDetails(context.Background(), sig)
	require.NoError(t, err)
	assert.True(t, details.Succeeded())
	assert.Contains(t, details.Logs, "Program ComputeBudget111111111111111111111111111111 invoke [1]")
}

// failingStatus reports every signature as failed on chain.
type failingStatus struct {
	*ledgertest.Ledger
}

func (f failingStatus) GetSignatureStatus(ctx context.Context, sig solana.Signature) (*gateway.SignatureStatus, error) {
	return &gateway.SignatureStatus{
		Slot:               9,
		Err:                map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}},
		ConfirmationStatus: rpc.ConfirmationStatusProcessed,
	}, nil
}

func TestWaitForConfirmation(t *testing.T) {
	ctx := context.Background()

	t.Run("reached", func(t *testing.T) {
		c, ledger, rec := newTestClient(t, testOptions())
		sender := fundedKeypair(t, ledger)
		sig, err := c.TransferSOL(ctx, sender, solana.NewWallet().PublicKey(), 1000)
		require.NoError(t, err)

		status, err := c.WaitForConfirmation(ctx, sig, rpc.CommitmentFinalized)
		require.NoError(t, err)
		assert.Equal(t, rpc.ConfirmationStatusFinalized, status.ConfirmationStatus)
		assert.Equal(t, 1, rec.Count(events.KindConfirmed))
	})

	t.Run("times out below requested commitment", func(t *testing.T) {
		c, ledger, rec := newTestClient(t, testOptions())
		sender := fundedKeypair(t, ledger)
		sig, err := c.TransferSOL(ctx, sender, solana.NewWallet().PublicKey(), 1000)
		require.NoError(t, err)
		ledger.SetStatus(sig, rpc.ConfirmationStatusProcessed)

		_, err = c.WaitForConfirmation(ctx, sig, rpc.CommitmentFinalized)
		require.Error(t, err)
		assert.Equal(t, txerrors.ErrCodeTransient, txerrors.Classify(err))
		assert.Equal(t, 1, rec.Count(events.KindConfirmFailed))
	})

	t.Run("unknown signature keeps polling until timeout", func(t *testing.T) {
		c, _, _ := newTestClient(t, testOptions())
		start := time.Now()
		_, err := c.WaitForConfirmation(ctx, solana.Signature{1}, "")
		require.Error(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	})

	t.Run("failed on chain", func(t *testing.T) {
		rec := events.NewRecorder()
		c := New(failingStatus{ledgertest.New()}, rec, testOptions())

		status, err := c.WaitForConfirmation(ctx, solana.Signature{2}, rpc.CommitmentConfirmed)
		require.Error(t, err)
		assert.Equal(t, txerrors.ErrCodeFatal, txerrors.Classify(err))
		require.NotNil(t, status)
		assert.Equal(t, uint64(9), status.Slot)
		assert.Equal(t, 1, rec.Count(events.KindConfirmFailed))
	})
}

func TestOptionsFromConfig(t *testing.T) {
	cfg, err := config.LoadDefaultConfig()
	require.NoError(t, err)
	cfg.ComputeUnitPrice = 25

	opts := OptionsFromConfig(cfg)
	assert.Equal(t, rpc.CommitmentConfirmed, opts.Commitment)
	assert.Equal(t, 3, opts.StaleResubmitAttempts)
	assert.Equal(t, 500*time.Millisecond, opts.ConfirmationPoll)
	assert.Equal(t, time.Minute, opts.ConfirmationTimeout)
	assert.Equal(t, uint64(25), opts.ComputeUnitPrice)
}
