package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	EventsIngested     prometheus.Counter
	MalformedPayloads  prometheus.Counter
	CertificatesIssued *prometheus.CounterVec
	IssuanceSkipped    prometheus.Counter
	ClaimFailures      prometheus.Counter
	VerifyTampered     prometheus.Counter
	RequestLatency     *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		EventsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attentid_events_ingested_total",
			Help: "Total number of beacon events persisted",
		}),
		MalformedPayloads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attentid_malformed_payloads_total",
			Help: "Events whose payload failed every normalization strategy",
		}),
		CertificatesIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attentid_certificates_issued_total",
			Help: "Certificates minted, by issuance path",
		}, []string{"path"}),
		IssuanceSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attentid_issuance_skipped_total",
			Help: "Automatic issuances skipped by the one-hour dedup window",
		}),
		ClaimFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attentid_claim_failures_total",
			Help: "Presence claims that failed extraction or issuance during ingest",
		}),
		VerifyTampered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attentid_certificates_tampered_total",
			Help: "Certificate verifications that detected a signature mismatch",
		}),
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attentid_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}
