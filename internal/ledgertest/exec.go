package ledgertest

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/pushchain/svm-txkit/derivation"
	"github.com/pushchain/svm-txkit/gateway"
)

var computeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

// Token program instruction tags.
const (
	tokenInitializeMint  = 0
	tokenTransfer        = 3
	tokenMintTo          = 7
	tokenTransferChecked = 12
	tokenInitializeMint2 = 20
)

// execution stages account changes of one transaction until every
// instruction has succeeded.
type execution struct {
	ledger *Ledger
	staged map[solana.PublicKey]*gateway.Account
	logs   []string
}

func (r *execution) get(addr solana.PublicKey) *gateway.Account {
	if acc, ok := r.staged[addr]; ok {
		return acc
	}
	acc, ok := r.ledger.accounts[addr]
	if !ok {
		return nil
	}
	c := cloneAccount(acc)
	r.staged[addr] = c
	return c
}

func (r *execution) put(acc *gateway.Account) {
	r.staged[acc.Address] = acc
}

func (r *execution) debit(index int, addr solana.PublicKey, lamports uint64) error {
	acc := r.get(addr)
	if acc == nil || acc.Lamports < lamports {
		return instructionError(index, "custom program error: 0x1",
			fmt.Sprintf("Transfer: insufficient lamports, need %d", lamports))
	}
	acc.Lamports -= lamports
	return nil
}

func (r *execution) credit(addr solana.PublicKey, lamports uint64) {
	acc := r.get(addr)
	if acc == nil {
		acc = &gateway.Account{Address: addr, Owner: solana.SystemProgramID}
		r.put(acc)
	}
	acc.Lamports += lamports
}

func (r *execution) instruction(tx *solana.Transaction, index int, ix solana.CompiledInstruction) error {
	program, err := tx.Message.ResolveProgramIDIndex(ix.ProgramIDIndex)
	if err != nil {
		return instructionError(index, "invalid program id index")
	}

	metas := make([]*solana.AccountMeta, len(ix.Accounts))
	for i, idx := range ix.Accounts {
		if int(idx) >= len(tx.Message.AccountKeys) {
			return instructionError(index, "invalid account index")
		}
		pk := tx.Message.AccountKeys[idx]
		writable, err := tx.Message.IsWritable(pk)
		if err != nil {
			return instructionError(index, err.Error())
		}
		metas[i] = &solana.AccountMeta{
			PublicKey:  pk,
			IsSigner:   tx.Message.IsSigner(pk),
			IsWritable: writable,
		}
	}
	data := []byte(ix.Data)

	r.logs = append(r.logs, fmt.Sprintf("Program %s invoke [1]", program))
	switch program {
	case computeBudgetProgramID:
	case solana.SystemProgramID:
		err = r.system(index, metas, data)
	case solana.SPLAssociatedTokenAccountProgramID:
		err = r.associated(index, metas, data)
	case solana.TokenProgramID:
		err = r.token(index, metas, data)
	default:
		if h, ok := r.ledger.programs[program]; ok {
			if herr := h(metas, data); herr != nil {
				err = instructionError(index, herr.Error())
			}
		}
	}
	if err != nil {
		return err
	}
	r.logs = append(r.logs, fmt.Sprintf("Program %s success", program))
	return nil
}

func (r *execution) system(index int, metas []*solana.AccountMeta, data []byte) error {
	inst, err := system.DecodeInstruction(metas, data)
	if err != nil {
		return instructionError(index, "invalid instruction data")
	}

	switch impl := inst.Impl.(type) {
	case *system.Transfer:
		if len(metas) < 2 || !metas[0].IsSigner {
			return instructionError(index, "missing required signature for instruction")
		}
		if err := r.debit(index, metas[0].PublicKey, *impl.Lamports); err != nil {
			return err
		}
		r.credit(metas[1].PublicKey, *impl.Lamports)

	case *system.CreateAccount:
		if len(metas) < 2 || !metas[0].IsSigner || !metas[1].IsSigner {
			return instructionError(index, "missing required signature for instruction")
		}
		newAddr := metas[1].PublicKey
		if r.get(newAddr) != nil {
			return instructionError(index, "custom program error: 0x0",
				fmt.Sprintf("Create Account: account Address { address: %s, base: None } already in use", newAddr))
		}
		if err := r.debit(index, metas[0].PublicKey, *impl.Lamports); err != nil {
			return err
		}
		r.put(&gateway.Account{
			Address:  newAddr,
			Lamports: *impl.Lamports,
			Owner:    *impl.Owner,
			Data:     make([]byte, *impl.Space),
		})
	}
	return nil
}

func (r *execution) associated(index int, metas []*solana.AccountMeta, data []byte) error {
	if len(metas) < 6 {
		return instructionError(index, "not enough account keys given to the instruction")
	}
	payer, addr, owner, mint, program := metas[0].PublicKey, metas[1].PublicKey, metas[2].PublicKey, metas[3].PublicKey, metas[5].PublicKey
	idempotent := len(data) > 0 && data[0] == 1

	want, err := derivation.AssociatedAddress(owner, mint, program)
	if err != nil || want != addr {
		return instructionError(index, "Provided seeds do not result in a valid address")
	}
	if existing := r.get(addr); existing != nil {
		if idempotent {
			return nil
		}
		// Create refuses any account no longer owned by the system program
		if existing.Owner != solana.SystemProgramID {
			return instructionError(index, "Provided owner is not allowed", "Program log: Create")
		}
		return instructionError(index, "custom program error: 0x0",
			fmt.Sprintf("Allocate: account Address { address: %s, base: None } already in use", addr))
	}
	mintAcc := r.get(mint)
	if mintAcc == nil || mintAcc.Owner != program || len(mintAcc.Data) != MintSize {
		return instructionError(index, "invalid account data for instruction")
	}

	lamports := rentExempt(TokenAccountSize)
	if err := r.debit(index, payer, lamports); err != nil {
		return err
	}

	acc := make([]byte, TokenAccountSize)
	copy(acc[0:32], mint[:])
	copy(acc[32:64], owner[:])
	acc[108] = 1 // initialized
	r.put(&gateway.Account{Address: addr, Lamports: lamports, Owner: program, Data: acc})
	return nil
}

func (r *execution) token(index int, metas []*solana.AccountMeta, data []byte) error {
	if len(data) == 0 {
		return instructionError(index, "invalid instruction data")
	}

	switch data[0] {
	case tokenInitializeMint, tokenInitializeMint2:
		if len(data) < 35 || len(metas) < 1 {
			return instructionError(index, "invalid instruction data")
		}
		mint := r.get(metas[0].PublicKey)
		if mint == nil || mint.Owner != solana.TokenProgramID || len(mint.Data) != MintSize {
			return instructionError(index, "invalid account data for instruction")
		}
		if mint.Data[45] == 1 {
			return instructionError(index, "custom program error: 0x6")
		}
		binary.LittleEndian.PutUint32(mint.Data[0:4], 1)
		copy(mint.Data[4:36], data[2:34])
		mint.Data[44] = data[1]
		mint.Data[45] = 1
		if data[34] == 1 && len(data) >= 67 {
			binary.LittleEndian.PutUint32(mint.Data[46:50], 1)
			copy(mint.Data[50:82], data[35:67])
		}

	case tokenMintTo:
		if len(data) < 9 || len(metas) < 3 {
			return instructionError(index, "invalid instruction data")
		}
		amount := binary.LittleEndian.Uint64(data[1:9])
		mint, dest := r.get(metas[0].PublicKey), r.get(metas[1].PublicKey)
		if mint == nil || len(mint.Data) != MintSize || dest == nil || len(dest.Data) != TokenAccountSize {
			return instructionError(index, "invalid account data for instruction")
		}
		authority := solana.PublicKeyFromBytes(mint.Data[4:36])
		if binary.LittleEndian.Uint32(mint.Data[0:4]) != 1 || authority != metas[2].PublicKey || !metas[2].IsSigner {
			return instructionError(index, "custom program error: 0x4")
		}
		if solana.PublicKeyFromBytes(dest.Data[0:32]) != metas[0].PublicKey {
			return instructionError(index, "custom program error: 0x3")
		}
		supply := binary.LittleEndian.Uint64(mint.Data[36:44])
		binary.LittleEndian.PutUint64(mint.Data[36:44], supply+amount)
		addAmount(dest, amount)

	case tokenTransfer, tokenTransferChecked:
		if len(data) < 9 {
			return instructionError(index, "invalid instruction data")
		}
		amount := binary.LittleEndian.Uint64(data[1:9])
		src, dst, owner := 0, 1, 2
		if data[0] == tokenTransferChecked {
			src, dst, owner = 0, 2, 3
		}
		if len(metas) <= owner {
			return instructionError(index, "not enough account keys given to the instruction")
		}
		source, dest := r.get(metas[src].PublicKey), r.get(metas[dst].PublicKey)
		if source == nil || len(source.Data) != TokenAccountSize || dest == nil || len(dest.Data) != TokenAccountSize {
			return instructionError(index, "invalid account data for instruction")
		}
		if solana.PublicKeyFromBytes(source.Data[32:64]) != metas[owner].PublicKey || !metas[owner].IsSigner {
			return instructionError(index, "custom program error: 0x4")
		}
		if string(source.Data[0:32]) != string(dest.Data[0:32]) {
			return instructionError(index, "custom program error: 0x3")
		}
		if binary.LittleEndian.Uint64(source.Data[64:72]) < amount {
			return instructionError(index, "custom program error: 0x1")
		}
		addAmount(source, ^amount+1)
		addAmount(dest, amount)

	default:
		return instructionError(index, "invalid instruction data")
	}
	return nil
}

// addAmount adds delta (two's complement for subtraction) to a token account balance.
func addAmount(acc *gateway.Account, delta uint64) {
	cur := binary.LittleEndian.Uint64(acc.Data[64:72])
	binary.LittleEndian.PutUint64(acc.Data[64:72], cur+delta)
}

// AddMint stores an initialized mint owned by the token program.
func (l *Ledger) AddMint(mint, authority solana.PublicKey, decimals uint8) {
	data := make([]byte, MintSize)
	binary.LittleEndian.PutUint32(data[0:4], 1)
	copy(data[4:36], authority[:])
	data[44] = decimals
	data[45] = 1
	l.PutAccount(gateway.Account{
		Address:  mint,
		Lamports: rentExempt(MintSize),
		Owner:    solana.TokenProgramID,
		Data:     data,
	})
}
