package core

import (
	"context"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/pushchain/svm-txkit/config"
	"github.com/pushchain/svm-txkit/constant"
	"github.com/pushchain/svm-txkit/db"
	txerrors "github.com/pushchain/svm-txkit/errors"
	"github.com/pushchain/svm-txkit/events"
	"github.com/pushchain/svm-txkit/gateway"
	"github.com/pushchain/svm-txkit/logger"
	"github.com/pushchain/svm-txkit/metrics"
)

// Open builds a client from cfg: an RPC gateway over the configured
// endpoints, a log sink, the submission journal when enabled and prometheus
// collectors when reg is non-nil. Close the client to release them.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger, reg prometheus.Registerer) (*Client, error) {
	const op = "open"
	if err := config.Validate(cfg); err != nil {
		return nil, txerrors.NewInvalidInputError(op, "invalid config", err)
	}

	gw, err := gateway.NewRPCGateway(cfg, logger.Component(log, "gateway"))
	if err != nil {
		return nil, err
	}
	if err := gw.Start(ctx); err != nil {
		return nil, txerrors.NewTransientError(op, "failed to start rpc gateway", err)
	}
	closers := []func() error{func() error { gw.Stop(); return nil }}
	fail := func(err error) (*Client, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return nil, err
	}

	sinks := events.MultiSink{events.NewLogSink(log)}

	if cfg.JournalEnabled {
		journal, err := db.OpenFileDB(filepath.Join(cfg.NodeHome, constant.DatabasesSubdir), constant.JournalDBName, true)
		if err != nil {
			return fail(txerrors.NewInternalError(op, "failed to open journal", err))
		}
		closers = append(closers, journal.Close)
		sinks = append(sinks, events.NewJournalSink(journal, log))
	}

	if reg != nil {
		m, err := metrics.NewSink(reg)
		if err != nil {
			return fail(txerrors.NewInternalError(op, "failed to register metrics", err))
		}
		sinks = append(sinks, m)
	}

	c := New(gw, sinks, OptionsFromConfig(cfg))
	c.closers = closers
	log.Info().
		Int("endpoints", len(cfg.RPCURLs)).
		Str("commitment", cfg.Commitment).
		Bool("journal", cfg.JournalEnabled).
		Msg("client ready")
	return c, nil
}
