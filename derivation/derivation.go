// Package derivation computes program-derived addresses.
package derivation

import (
	"github.com/gagliardetto/solana-go"

	txerrors "github.com/pushchain/svm-txkit/errors"
)

// Token2022ProgramID is the token program with extensions. Associated accounts
// derived under it differ from those of the classic token program.
var Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PazzxqvW1QkXAs")

// AssociatedAddress returns the associated token account of owner for mint
// under the given token program: PDA of [owner, program, mint] under the
// associated token account program.
func AssociatedAddress(owner, mint, program solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := ProgramAddress([][]byte{
		owner[:],
		program[:],
		mint[:],
	}, solana.SPLAssociatedTokenAccountProgramID)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return addr, nil
}

// MustAssociatedAddress panics if derivation fails. Fixed-size seeds cannot
// fail, so a panic here is a programming error.
func MustAssociatedAddress(owner, mint, program solana.PublicKey) solana.PublicKey {
	addr, err := AssociatedAddress(owner, mint, program)
	if err != nil {
		panic(err)
	}
	return addr
}

// ProgramAddress finds the first off-curve address for seeds under program,
// returning it with its bump seed.
func ProgramAddress(seeds [][]byte, program solana.PublicKey) (solana.PublicKey, uint8, error) {
	if len(seeds) > solana.MaxSeeds {
		return solana.PublicKey{}, 0, txerrors.NewDerivationError("program_address", "too many seeds", nil)
	}
	for _, seed := range seeds {
		if len(seed) > solana.MaxSeedLength {
			return solana.PublicKey{}, 0, txerrors.NewDerivationError("program_address", "seed exceeds maximum length", nil)
		}
	}
	addr, bump, err := solana.FindProgramAddress(seeds, program)
	if err != nil {
		return solana.PublicKey{}, 0, txerrors.NewDerivationError("program_address", "failed to find program address", err)
	}
	return addr, bump, nil
}
