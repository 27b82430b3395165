package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics
// is valid and records nothing, which keeps unit tests free of registries.
type Metrics struct {
	CodesIssued        *prometheus.CounterVec
	CodeVerifications  *prometheus.CounterVec
	IdentityChecks     *prometheus.CounterVec
	TokensIssued       prometheus.Counter
	VotesCast          *prometheus.CounterVec
	VoteRejections     *prometheus.CounterVec
	LedgerCastDuration *prometheus.HistogramVec
	AuditWriteFailures *prometheus.CounterVec
	AuditQueueDepth    prometheus.Gauge
	SessionsSwept      prometheus.Counter
}

// New creates and registers all Prometheus metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CodesIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "unionvote_codes_issued_total",
			Help: "One-time codes issued, by purpose",
		}, []string{"purpose"}),
		CodeVerifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "unionvote_code_verifications_total",
			Help: "One-time code verification outcomes",
		}, []string{"result"}),
		IdentityChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "unionvote_identity_checks_total",
			Help: "Identity verification outcomes",
		}, []string{"result"}),
		TokensIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "unionvote_tokens_issued_total",
			Help: "Access tokens issued",
		}),
		VotesCast: f.NewCounterVec(prometheus.CounterOpts{
			Name: "unionvote_votes_cast_total",
			Help: "Votes accepted by the ledger, by backend",
		}, []string{"backend"}),
		VoteRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "unionvote_vote_rejections_total",
			Help: "Vote casts rejected, by reason code",
		}, []string{"reason"}),
		LedgerCastDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "unionvote_ledger_cast_duration_seconds",
			Help:    "Latency of the ledger check-and-set",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"backend"}),
		AuditWriteFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "unionvote_audit_write_failures_total",
			Help: "Audit entries that could not be persisted; any increase should page",
		}, []string{"reason"}),
		AuditQueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "unionvote_audit_queue_depth",
			Help: "Audit entries waiting in the publisher buffer",
		}),
		SessionsSwept: f.NewCounter(prometheus.CounterOpts{
			Name: "unionvote_sessions_swept_total",
			Help: "Expired verification sessions removed by the sweep",
		}),
	}
}

func (m *Metrics) IncCodesIssued(purpose string) {
	if m == nil {
		return
	}
	m.CodesIssued.WithLabelValues(purpose).Inc()
}

func (m *Metrics) IncCodeVerification(result string) {
	if m == nil {
		return
	}
	m.CodeVerifications.WithLabelValues(result).Inc()
}

func (m *Metrics) IncIdentityCheck(result string) {
	if m == nil {
		return
	}
	m.IdentityChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) IncTokensIssued() {
	if m == nil {
		return
	}
	m.TokensIssued.Inc()
}

func (m *Metrics) IncVotesCast(backend string) {
	if m == nil {
		return
	}
	m.VotesCast.WithLabelValues(backend).Inc()
}

func (m *Metrics) IncVoteRejection(reason string) {
	if m == nil {
		return
	}
	m.VoteRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveLedgerCast(backend string, d time.Duration) {
	if m == nil {
		return
	}
	m.LedgerCastDuration.WithLabelValues(backend).Observe(d.Seconds())
}

func (m *Metrics) IncAuditWriteFailure(reason string) {
	if m == nil {
		return
	}
	m.AuditWriteFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetAuditQueueDepth(n int) {
	if m == nil {
		return
	}
	m.AuditQueueDepth.Set(float64(n))
}

func (m *Metrics) AddSessionsSwept(n int) {
	if m == nil {
		return
	}
	m.SessionsSwept.Add(float64(n))
}
