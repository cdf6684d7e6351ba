package assembler

import (
	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
)

// DefaultComputeUnitLimit is the per-transaction compute limit the ledger
// applies when no limit instruction is present.
const DefaultComputeUnitLimit = 200000

type options struct {
	unitLimit uint32
	unitPrice uint64
}

// Option adjusts transaction assembly.
type Option func(*options)

// WithComputeUnitLimit prepends a SetComputeUnitLimit instruction. Zero is ignored.
func WithComputeUnitLimit(units uint32) Option {
	return func(o *options) {
		o.unitLimit = units
	}
}

// WithComputeUnitPrice prepends a SetComputeUnitPrice instruction (micro-lamports
// per compute unit). Zero is ignored.
func WithComputeUnitPrice(microLamports uint64) Option {
	return func(o *options) {
		o.unitPrice = microLamports
	}
}

func (o options) budgetInstructions() []solana.Instruction {
	var out []solana.Instruction
	if o.unitLimit > 0 {
		out = append(out, computebudget.NewSetComputeUnitLimitInstruction(o.unitLimit).Build())
	}
	if o.unitPrice > 0 {
		out = append(out, computebudget.NewSetComputeUnitPriceInstruction(o.unitPrice).Build())
	}
	return out
}
