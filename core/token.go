package core

import (
	"context"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/pushchain/svm-txkit/derivation"
	txerrors "github.com/pushchain/svm-txkit/errors"
	"github.com/pushchain/svm-txkit/gateway"
	"github.com/pushchain/svm-txkit/instruction"
	"github.com/pushchain/svm-txkit/signer"
)

// Account sizes of the token program.
const (
	MintSize         = 82
	TokenAccountSize = 165
)

const initializeMint2Tag = 20

// TokenAccount is a decoded token account.
type TokenAccount struct {
	Address solana.PublicKey
	Mint    solana.PublicKey
	Owner   solana.PublicKey
	Amount  uint64
	State   token.AccountState
}

// GetBalance returns the lamport balance of addr.
func (c *Client) GetBalance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	return c.ledger.GetBalance(ctx, addr)
}

// RequestAirdrop asks a test ledger to credit addr.
func (c *Client) RequestAirdrop(ctx context.Context, addr solana.PublicKey, lamports uint64) (solana.Signature, error) {
	if lamports == 0 {
		return solana.Signature{}, txerrors.NewInvalidInputError("request_airdrop", "lamports must be positive", nil)
	}
	return c.ledger.RequestAirdrop(ctx, addr, lamports)
}

// TransferSOL moves lamports from sender to recipient. The sender pays fees.
func (c *Client) TransferSOL(ctx context.Context, sender signer.Signer, recipient solana.PublicKey, lamports uint64) (solana.Signature, error) {
	const op = "transfer_sol"
	if sender == nil {
		return solana.Signature{}, txerrors.NewInvalidInputError(op, "sender is required", nil)
	}
	if lamports == 0 {
		return solana.Signature{}, txerrors.NewInvalidInputError(op, "lamports must be positive", nil)
	}

	ix := system.NewTransferInstruction(lamports, sender.PublicKey(), recipient).Build()
	return c.execute(ctx, op, []solana.Instruction{ix}, sender.PublicKey(), []signer.Signer{sender})
}

// TransferToken moves amount base units of mint from the sender's associated
// account to recipientOwner's, creating the recipient's account first when
// it is missing. The sender pays for both.
func (c *Client) TransferToken(ctx context.Context, sender signer.Signer, recipientOwner, mint solana.PublicKey, amount uint64) (solana.Signature, error) {
	const op = "transfer_token"
	if sender == nil {
		return solana.Signature{}, txerrors.NewInvalidInputError(op, "sender is required", nil)
	}
	if amount == 0 {
		return solana.Signature{}, txerrors.NewInvalidInputError(op, "amount must be positive", nil)
	}

	source, err := derivation.AssociatedAddress(sender.PublicKey(), mint, solana.TokenProgramID)
	if err != nil {
		return solana.Signature{}, err
	}
	dest, err := c.provisioner.Ensure(ctx, sender, recipientOwner, mint, solana.TokenProgramID)
	if err != nil {
		return solana.Signature{}, err
	}

	ix := token.NewTransferInstruction(amount, source, dest.Address, sender.PublicKey(), []solana.PublicKey{}).Build()
	return c.execute(ctx, op, []solana.Instruction{ix}, sender.PublicKey(), []signer.Signer{sender})
}

// CreateMint creates and initializes a mint at the mint signer's address
// with payer as mint authority and no freeze authority.
func (c *Client) CreateMint(ctx context.Context, payer, mint signer.Signer, decimals uint8) (solana.Signature, error) {
	const op = "create_mint"
	if payer == nil || mint == nil {
		return solana.Signature{}, txerrors.NewInvalidInputError(op, "payer and mint signers are required", nil)
	}

	rent, err := c.ledger.GetMinimumBalanceForRentExemption(ctx, MintSize)
	if err != nil {
		return solana.Signature{}, txerrors.Classified(op, err)
	}

	create := system.NewCreateAccountInstruction(rent, MintSize, solana.TokenProgramID, payer.PublicKey(), mint.PublicKey()).Build()
	initialize := InitializeMintInstruction(mint.PublicKey(), payer.PublicKey(), decimals)
	return c.execute(ctx, op, []solana.Instruction{create, initialize}, payer.PublicKey(), []signer.Signer{payer, mint})
}

// InitializeMintInstruction builds the token program's InitializeMint2
// instruction without a freeze authority.
func InitializeMintInstruction(mint, authority solana.PublicKey, decimals uint8) *solana.GenericInstruction {
	data := make([]byte, 0, 35)
	data = append(data, initializeMint2Tag, decimals)
	data = append(data, authority[:]...)
	data = append(data, 0) // freeze authority: none
	return solana.NewInstruction(
		solana.TokenProgramID,
		solana.AccountMetaSlice{{PublicKey: mint, IsWritable: true}},
		data,
	)
}

// MintTo mints amount base units of mint to recipientOwner's associated
// account, creating it first when missing. payer pays fees and rent.
func (c *Client) MintTo(ctx context.Context, payer, mintAuthority signer.Signer, mint, recipientOwner solana.PublicKey, amount uint64) (solana.Signature, error) {
	const op = "mint_to"
	if payer == nil || mintAuthority == nil {
		return solana.Signature{}, txerrors.NewInvalidInputError(op, "payer and mint authority are required", nil)
	}
	if amount == 0 {
		return solana.Signature{}, txerrors.NewInvalidInputError(op, "amount must be positive", nil)
	}

	dest, err := c.provisioner.Ensure(ctx, payer, recipientOwner, mint, solana.TokenProgramID)
	if err != nil {
		return solana.Signature{}, err
	}

	signers := []signer.Signer{payer}
	if mintAuthority.PublicKey() != payer.PublicKey() {
		signers = append(signers, mintAuthority)
	}
	ix := token.NewMintToInstruction(amount, mint, dest.Address, mintAuthority.PublicKey(), []solana.PublicKey{}).Build()
	return c.execute(ctx, op, []solana.Instruction{ix}, payer.PublicKey(), signers)
}

// GetMintInfo fetches and decodes a mint account.
func (c *Client) GetMintInfo(ctx context.Context, mint solana.PublicKey) (*token.Mint, error) {
	const op = "get_mint_info"
	acc, err := c.ledger.GetAccount(ctx, mint)
	if err != nil {
		return nil, txerrors.Classified(op, err)
	}
	if !isTokenProgram(acc.Owner) || len(acc.Data) < MintSize {
		return nil, txerrors.NewInvalidInputError(op, "account is not a mint", nil).
			WithContext("address", mint.String())
	}

	var out token.Mint
	if err := bin.NewBinDecoder(acc.Data[:MintSize]).Decode(&out); err != nil {
		return nil, txerrors.NewFatalError(op, "failed to decode mint", err)
	}
	return &out, nil
}

// GetAssociatedTokenBalance returns the balance of owner's associated account for mint.
func (c *Client) GetAssociatedTokenBalance(ctx context.Context, owner, mint solana.PublicKey) (*gateway.TokenAmount, error) {
	addr, err := derivation.AssociatedAddress(owner, mint, solana.TokenProgramID)
	if err != nil {
		return nil, err
	}
	return c.ledger.GetTokenAccountBalance(ctx, addr)
}

// ListTokenAccounts returns every token program account owned by owner.
func (c *Client) ListTokenAccounts(ctx context.Context, owner solana.PublicKey) ([]TokenAccount, error) {
	const op = "list_token_accounts"
	accounts, err := c.ledger.GetTokenAccountsByOwner(ctx, owner, solana.TokenProgramID)
	if err != nil {
		return nil, txerrors.Classified(op, err)
	}

	out := make([]TokenAccount, 0, len(accounts))
	for _, acc := range accounts {
		if len(acc.Data) < TokenAccountSize {
			return nil, txerrors.NewFatalError(op, "token account data too short", nil).
				WithContext("address", acc.Address.String())
		}
		var decoded token.Account
		if err := bin.NewBinDecoder(acc.Data[:TokenAccountSize]).Decode(&decoded); err != nil {
			return nil, txerrors.NewFatalError(op, "failed to decode token account", err).
				WithContext("address", acc.Address.String())
		}
		out = append(out, TokenAccount{
			Address: acc.Address,
			Mint:    decoded.Mint,
			Owner:   decoded.Owner,
			Amount:  decoded.Amount,
			State:   decoded.State,
		})
	}
	return out, nil
}

// GetAccountData returns the data of addr starting at offset. Pass
// instruction.DiscriminatorSize to skip an Anchor account discriminator.
func (c *Client) GetAccountData(ctx context.Context, addr solana.PublicKey, offset int) ([]byte, error) {
	const op = "get_account_data"
	acc, err := c.ledger.GetAccount(ctx, addr)
	if err != nil {
		return nil, txerrors.Classified(op, err)
	}
	if offset < 0 || offset > len(acc.Data) {
		return nil, txerrors.NewInvalidInputError(op, "offset out of range", nil).
			WithContext("offset", offset).
			WithContext("size", len(acc.Data))
	}
	return acc.Data[offset:], nil
}

// GetTransactionDetails returns the ledger's record of sig.
func (c *Client) GetTransactionDetails(ctx context.Context, sig solana.Signature) (*gateway.TransactionDetails, error) {
	return c.ledger.GetTransaction(ctx, sig)
}

// SendProgramMethod calls method on program. The first signer pays fees.
func (c *Client) SendProgramMethod(
	ctx context.Context,
	program solana.PublicKey,
	method string,
	accounts []*solana.AccountMeta,
	signers []signer.Signer,
	payload []byte,
) (solana.Signature, error) {
	if len(signers) == 0 || signers[0] == nil {
		return solana.Signature{}, txerrors.Sentinel(txerrors.ErrNoSigners, "send_program_method", nil)
	}
	ix := instruction.Build(program, method, accounts, payload)
	return c.execute(ctx, "send_program_method", []solana.Instruction{ix}, signers[0].PublicKey(), signers)
}

// InitializeAccount calls an Anchor program's initialize method, creating
// account with payer paying.
func (c *Client) InitializeAccount(ctx context.Context, payer, account signer.Signer, program solana.PublicKey) (solana.Signature, error) {
	if payer == nil || account == nil {
		return solana.Signature{}, txerrors.NewInvalidInputError("initialize_account", "payer and account signers are required", nil)
	}
	accounts := []*solana.AccountMeta{
		{PublicKey: account.PublicKey(), IsSigner: true, IsWritable: true},
		{PublicKey: payer.PublicKey(), IsSigner: true, IsWritable: true},
		{PublicKey: solana.SystemProgramID},
	}
	return c.SendProgramMethod(ctx, program, "initialize", accounts, []signer.Signer{payer, account}, nil)
}

func isTokenProgram(pk solana.PublicKey) bool {
	return pk == solana.TokenProgramID || pk == derivation.Token2022ProgramID
}
