// Package instruction builds Anchor-style program instructions: an 8-byte
// method selector followed by the method's argument bytes.
package instruction

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	txerrors "github.com/pushchain/svm-txkit/errors"
)

// DiscriminatorSize is the length of a method selector.
const DiscriminatorSize = 8

// Discriminator returns the first 8 bytes of sha256("global:" + method).
func Discriminator(method string) [DiscriminatorSize]byte {
	var out [DiscriminatorSize]byte
	copy(out[:], bin.Sighash(bin.SIGHASH_GLOBAL_NAMESPACE, method))
	return out
}

// Build returns an instruction invoking method on program. The account list
// is copied so later edits by the caller do not leak into the instruction.
func Build(program solana.PublicKey, method string, accounts []*solana.AccountMeta, payload []byte) *solana.GenericInstruction {
	disc := Discriminator(method)
	data := make([]byte, 0, DiscriminatorSize+len(payload))
	data = append(data, disc[:]...)
	data = append(data, payload...)

	return solana.NewInstruction(program, copyAccounts(accounts), data)
}

// BuildFromText is Build with the program given as a base58 address.
func BuildFromText(program string, method string, accounts []*solana.AccountMeta, payload []byte) (*solana.GenericInstruction, error) {
	programID, err := solana.PublicKeyFromBase58(program)
	if err != nil {
		return nil, txerrors.Sentinel(txerrors.ErrInvalidProgramAddress, "build_instruction",
			fmt.Errorf("%q: %w", program, err))
	}
	return Build(programID, method, accounts, payload), nil
}

// BuildWithArgs borsh-encodes args and builds the instruction.
func BuildWithArgs(program solana.PublicKey, method string, accounts []*solana.AccountMeta, args ...interface{}) (*solana.GenericInstruction, error) {
	payload, err := EncodeArgs(args...)
	if err != nil {
		return nil, err
	}
	return Build(program, method, accounts, payload), nil
}

// EncodeArgs borsh-encodes method arguments in order.
func EncodeArgs(args ...interface{}) ([]byte, error) {
	var out []byte
	for i, arg := range args {
		b, err := bin.MarshalBorsh(arg)
		if err != nil {
			return nil, txerrors.NewInvalidInputError("encode_args",
				fmt.Sprintf("failed to encode argument %d", i), err)
		}
		out = append(out, b...)
	}
	return out, nil
}

// Writable is an account the instruction may modify.
func Writable(pk solana.PublicKey) *solana.AccountMeta {
	return solana.NewAccountMeta(pk, true, false)
}

// Readonly is an account the instruction only reads.
func Readonly(pk solana.PublicKey) *solana.AccountMeta {
	return solana.NewAccountMeta(pk, false, false)
}

// Method reports whether data starts with the selector of method.
func Method(data []byte, method string) bool {
	if len(data) < DiscriminatorSize {
		return false
	}
	disc := Discriminator(method)
	return string(data[:DiscriminatorSize]) == string(disc[:])
}

func copyAccounts(accounts []*solana.AccountMeta) solana.AccountMetaSlice {
	out := make(solana.AccountMetaSlice, 0, len(accounts))
	for _, acc := range accounts {
		if acc == nil {
			continue
		}
		meta := *acc
		out = append(out, &meta)
	}
	return out
}
