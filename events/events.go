// Package events carries diagnostics out of the transaction core. The core
// never logs or prints; it emits Events to an injected Sink.
package events

import (
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	txerrors "github.com/pushchain/svm-txkit/errors"
)

// Kind identifies what happened.
type Kind string

const (
	KindSubmitted      Kind = "submitted"       // the ledger accepted a transaction
	KindSubmitFailed   Kind = "submit_failed"   // the ledger or transport rejected a submission
	KindResubmitting   Kind = "resubmitting"    // a stale blockhash is being replaced
	KindConfirmed      Kind = "confirmed"       // a submitted transaction reached the requested commitment
	KindConfirmFailed  Kind = "confirm_failed"  // a submitted transaction failed on chain or timed out
	KindAccountCreated Kind = "account_created" // provisioning created an associated account
	KindAccountExisted Kind = "account_existed" // provisioning found the account already present
)

// Event is one diagnostic record. Fields not relevant to Kind are zero.
type Event struct {
	Kind      Kind
	Op        string
	Time      time.Time
	Signature solana.Signature
	FeePayer  solana.PublicKey
	Blockhash solana.Hash
	Attempt   int
	Slot      uint64
	Duration  time.Duration

	Address solana.PublicKey
	Owner   solana.PublicKey
	Mint    solana.PublicKey
	Program solana.PublicKey

	Err error
}

// Code returns the classified error code of the event, or "" when it carries no error.
func (e Event) Code() txerrors.ErrorCode {
	return txerrors.Classify(e.Err)
}

// Sink receives events. Implementations must be safe for concurrent use and
// must not block for long; Emit is called inline by the core.
type Sink interface {
	Emit(e Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Emit(Event) {}

// MultiSink fans an event out to every sink in order.
type MultiSink []Sink

func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

// Stamp fills in the event time when it is unset.
func Stamp(e Event) Event {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	return e
}

// Recorder keeps every event in memory, for tests and diagnostics dumps.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many recorded events have kind k.
func (r *Recorder) Count(k Kind) int {
	n := 0
	for _, e := range r.Events() {
		if e.Kind == k {
			n++
		}
	}
	return n
}
