// Package store contains GORM-backed SQLite models for the submission journal.
//
// Database Structure (database file: journal.db):
//
//	<home>/databases/
//	└── journal.db
//	    ├── submissions
//	    └── provisioned_accounts
package store

import (
	"gorm.io/gorm"
)

// Submission statuses
const (
	StatusSubmitted = "submitted"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
	StatusExpired   = "expired" // rejected for a stale blockhash; a later attempt may have landed
)

// Submission records one attempt to submit a signed transaction.
type Submission struct {
	gorm.Model
	Signature  string `gorm:"uniqueIndex"` // First transaction signature (base58), unique per attempt
	Operation  string `gorm:"index"`       // Caller operation, e.g. "transfer_sol"
	FeePayer   string `gorm:"index"`       // Fee payer address
	Blockhash  string // Blockhash the transaction was signed over
	Attempt    int    // 1-based submission attempt
	Status     string `gorm:"index;not null"` // "submitted", "confirmed", "failed", "expired"
	Slot       uint64 // Slot of confirmation (0 until confirmed)
	ErrorCode  string // Classified error code when failed
	ErrorMsg   string `gorm:"type:text"` // Error message if submission failed
	DurationMs int64  // Time from assembly to ledger answer
}

// ProvisionedAccount records the outcome of an associated account provisioning call.
type ProvisionedAccount struct {
	gorm.Model
	Address   string `gorm:"uniqueIndex;not null"` // Derived associated account address
	Owner     string `gorm:"index"`
	Mint      string `gorm:"index"`
	Program   string // Token program the account belongs to
	Outcome   string // "created" or "already_existed"
	Signature string // Creating transaction, empty when the account already existed
}
