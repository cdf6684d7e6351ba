package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	txerrors "github.com/pushchain/svm-txkit/errors"
	"github.com/pushchain/svm-txkit/events"
)

func TestSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewSink(reg)
	require.NoError(t, err)

	sink.Emit(events.Event{Kind: events.KindSubmitted, Op: "transfer_sol", Duration: 20 * time.Millisecond})
	sink.Emit(events.Event{Kind: events.KindSubmitted, Op: "transfer_sol", Duration: 30 * time.Millisecond})
	sink.Emit(events.Event{
		Kind: events.KindSubmitFailed,
		Op:   "transfer_sol",
		Err:  txerrors.New(txerrors.ErrCodeStaleFreshness, "send", "expired", nil),
	})
	sink.Emit(events.Event{Kind: events.KindResubmitting})
	sink.Emit(events.Event{Kind: events.KindConfirmed, Op: "transfer_sol"})
	sink.Emit(events.Event{Kind: events.KindAccountCreated})
	sink.Emit(events.Event{Kind: events.KindAccountExisted})
	sink.Emit(events.Event{Kind: events.KindAccountExisted})

	assert.Equal(t, 2.0, testutil.ToFloat64(sink.submissions.WithLabelValues("transfer_sol", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.submissions.WithLabelValues("transfer_sol", "STALE_FRESHNESS")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.resubmissions))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.confirmations.WithLabelValues("transfer_sol", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.provisioned.WithLabelValues("created")))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.provisioned.WithLabelValues("already_existed")))
	assert.Equal(t, 1, testutil.CollectAndCount(sink.submitDuration))
}

func TestNewSinkDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewSink(reg)
	require.NoError(t, err)

	_, err = NewSink(reg)
	require.Error(t, err)
}
