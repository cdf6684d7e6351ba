package events

import (
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/pushchain/svm-txkit/db"
	txerrors "github.com/pushchain/svm-txkit/errors"
	"github.com/pushchain/svm-txkit/store"
)

// JournalSink persists submissions and provisioning outcomes to the journal
// database. Write failures are logged and never reach the emitter.
type JournalSink struct {
	db     *db.DB
	logger zerolog.Logger
}

// NewJournalSink creates a sink writing to database.
func NewJournalSink(database *db.DB, logger zerolog.Logger) *JournalSink {
	return &JournalSink{
		db:     database,
		logger: logger.With().Str("component", "journal_sink").Logger(),
	}
}

func (s *JournalSink) Emit(e Event) {
	var err error
	switch e.Kind {
	case KindSubmitted:
		err = s.db.RecordSubmission(&store.Submission{
			Signature:  e.Signature.String(),
			Operation:  e.Op,
			FeePayer:   keyString(e.FeePayer),
			Blockhash:  e.Blockhash.String(),
			Attempt:    e.Attempt,
			Status:     store.StatusSubmitted,
			DurationMs: e.Duration.Milliseconds(),
		})
	case KindSubmitFailed:
		if e.Signature == (solana.Signature{}) {
			return
		}
		status := store.StatusFailed
		if e.Code() == txerrors.ErrCodeStaleFreshness {
			status = store.StatusExpired
		}
		err = s.db.RecordSubmission(&store.Submission{
			Signature:  e.Signature.String(),
			Operation:  e.Op,
			FeePayer:   keyString(e.FeePayer),
			Blockhash:  e.Blockhash.String(),
			Attempt:    e.Attempt,
			Status:     status,
			ErrorCode:  string(e.Code()),
			ErrorMsg:   errString(e.Err),
			DurationMs: e.Duration.Milliseconds(),
		})
	case KindConfirmed:
		err = s.db.UpdateSubmissionStatus(e.Signature.String(), store.StatusConfirmed, e.Slot, "", "")
	case KindConfirmFailed:
		err = s.db.UpdateSubmissionStatus(e.Signature.String(), store.StatusFailed, e.Slot, string(e.Code()), errString(e.Err))
	case KindAccountCreated, KindAccountExisted:
		outcome := "created"
		sig := ""
		if e.Kind == KindAccountExisted {
			outcome = "already_existed"
		} else if e.Signature != (solana.Signature{}) {
			sig = e.Signature.String()
		}
		err = s.db.RecordProvisioned(&store.ProvisionedAccount{
			Address:   e.Address.String(),
			Owner:     keyString(e.Owner),
			Mint:      keyString(e.Mint),
			Program:   keyString(e.Program),
			Outcome:   outcome,
			Signature: sig,
		})
	default:
		return
	}

	if err != nil {
		s.logger.Warn().Err(err).Str("kind", string(e.Kind)).Msg("failed to journal event")
	}
}

func keyString(k solana.PublicKey) string {
	if k.IsZero() {
		return ""
	}
	return k.String()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
