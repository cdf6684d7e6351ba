// Package metrics exports transaction events as prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pushchain/svm-txkit/events"
)

const namespace = "svmtx"

// Sink is an events.Sink that counts submissions, confirmations and
// provisioning outcomes.
type Sink struct {
	submissions    *prometheus.CounterVec
	confirmations  *prometheus.CounterVec
	provisioned    *prometheus.CounterVec
	resubmissions  prometheus.Counter
	submitDuration *prometheus.HistogramVec
}

var _ events.Sink = (*Sink)(nil)

// NewSink creates the collectors and registers them with reg.
func NewSink(reg prometheus.Registerer) (*Sink, error) {
	s := &Sink{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Transaction submissions by operation and result code.",
		}, []string{"op", "result"}),
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmations_total",
			Help:      "Confirmation outcomes of submitted transactions.",
		}, []string{"op", "result"}),
		provisioned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provisioned_accounts_total",
			Help:      "Associated account provisioning outcomes.",
		}, []string{"outcome"}),
		resubmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_resubmissions_total",
			Help:      "Resubmissions after a stale blockhash rejection.",
		}),
		submitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submit_duration_seconds",
			Help:      "Time from assembly to the ledger's answer.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}

	for _, c := range []prometheus.Collector{s.submissions, s.confirmations, s.provisioned, s.resubmissions, s.submitDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Sink) Emit(e events.Event) {
	switch e.Kind {
	case events.KindSubmitted:
		s.submissions.WithLabelValues(e.Op, "ok").Inc()
		s.submitDuration.WithLabelValues(e.Op).Observe(e.Duration.Seconds())
	case events.KindSubmitFailed:
		s.submissions.WithLabelValues(e.Op, string(e.Code())).Inc()
		s.submitDuration.WithLabelValues(e.Op).Observe(e.Duration.Seconds())
	case events.KindResubmitting:
		s.resubmissions.Inc()
	case events.KindConfirmed:
		s.confirmations.WithLabelValues(e.Op, "ok").Inc()
	case events.KindConfirmFailed:
		s.confirmations.WithLabelValues(e.Op, string(e.Code())).Inc()
	case events.KindAccountCreated:
		s.provisioned.WithLabelValues("created").Inc()
	case events.KindAccountExisted:
		s.provisioned.WithLabelValues("already_existed").Inc()
	}
}
