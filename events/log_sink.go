package events

import (
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
)

// LogSink writes events to a zerolog logger.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink logging under the "events" component.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "events").Logger()}
}

func (s *LogSink) Emit(e Event) {
	var entry *zerolog.Event
	switch e.Kind {
	case KindSubmitFailed, KindConfirmFailed:
		entry = s.logger.Warn().Err(e.Err).Str("error_code", string(e.Code()))
	case KindResubmitting:
		entry = s.logger.Info().Err(e.Err)
	case KindSubmitted, KindConfirmed, KindAccountCreated:
		entry = s.logger.Info()
	default:
		entry = s.logger.Debug()
	}

	entry = entry.Str("kind", string(e.Kind))
	if e.Op != "" {
		entry = entry.Str("op", e.Op)
	}
	if e.Signature != (solana.Signature{}) {
		entry = entry.Str("signature", e.Signature.String())
	}
	if !e.FeePayer.IsZero() {
		entry = entry.Str("fee_payer", e.FeePayer.String())
	}
	if !e.Address.IsZero() {
		entry = entry.Str("address", e.Address.String())
	}
	if e.Attempt > 0 {
		entry = entry.Int("attempt", e.Attempt)
	}
	if e.Slot > 0 {
		entry = entry.Uint64("slot", e.Slot)
	}
	if e.Duration > 0 {
		entry = entry.Dur("duration", e.Duration)
	}
	entry.Msg("transaction event")
}
