// Package ingest receives raw beacon messages from the transport and turns
// them into persisted events plus, when a topic carries a presence claim,
// automatically issued certificates.
package ingest

import (
	"context"
	"log/slog"

	"attentid/internal/certificate"
	"attentid/internal/event"
	"attentid/internal/fingerprint"
	"attentid/internal/platform/metrics"
)

// EventAppender is the slice of the event store the pipeline writes to.
type EventAppender interface {
	Append(ctx context.Context, e event.Event) (event.Event, error)
}

// CertificateIssuer is the automatic issuance port.
type CertificateIssuer interface {
	IssueFromSighting(ctx context.Context, fp fingerprint.Fingerprint) (certificate.Certificate, bool, error)
}

// IdentityDirectory resolves emails for issuance notifications.
type IdentityDirectory interface {
	EmailOf(ctx context.Context, identityID string) (string, error)
}

// Pipeline handles one inbound message at a time. Phase one (persist the raw
// event) must succeed or the error propagates to the transport for redelivery.
// Phase two (derive a certificate from a presence claim) is best-effort: every
// failure is logged and swallowed so derived work never blocks ingestion.
type Pipeline struct {
	events     EventAppender
	issuer     CertificateIssuer
	identities IdentityDirectory
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewPipeline(events EventAppender, issuer CertificateIssuer, identities IdentityDirectory, logger *slog.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		events:     events,
		issuer:     issuer,
		identities: identities,
		logger:     logger,
		metrics:    m,
	}
}

// HandleMessage persists the message and triggers certificate issuance for
// presence-claim topics.
func (p *Pipeline) HandleMessage(ctx context.Context, topic string, payload []byte, qos int) error {
	payloadStr := string(payload)

	deviceID, parsed := normalizePayload(payloadStr)
	if !parsed {
		// No reply channel exists toward the event source; record and move on.
		p.metrics.MalformedPayloads.Inc()
		p.logger.WarnContext(ctx, "payload failed every normalization strategy",
			"topic", topic,
		)
	}

	persisted, err := p.events.Append(ctx, event.Event{
		Topic:    topic,
		Payload:  payloadStr,
		QoS:      qos,
		DeviceID: deviceID,
	})
	if err != nil {
		return err
	}
	p.metrics.EventsIngested.Inc()
	p.logger.DebugContext(ctx, "event persisted",
		"event_id", persisted.ID,
		"topic", topic,
		"device_id", deviceID,
	)

	if fingerprint.ContainsClaimMarker(topic) {
		p.handlePresenceClaim(ctx, topic)
	}
	return nil
}

// handlePresenceClaim runs the claim branch. Nothing here may propagate: a
// malformed or duplicate claim never blocks ingestion of the underlying event.
func (p *Pipeline) handlePresenceClaim(ctx context.Context, topic string) {
	fp, ok := fingerprint.Extract(topic)
	if !ok {
		p.metrics.ClaimFailures.Inc()
		p.logger.WarnContext(ctx, "could not extract fingerprint from claim topic",
			"topic", topic,
		)
		return
	}

	cert, skipped, err := p.issuer.IssueFromSighting(ctx, fp)
	if err != nil {
		p.metrics.ClaimFailures.Inc()
		p.logger.WarnContext(ctx, "automatic certificate issuance failed",
			"topic", topic,
			"identity_id", fp.IdentityID,
			"place_id", fp.PlaceID,
			"error", err,
		)
		return
	}
	if skipped {
		p.metrics.IssuanceSkipped.Inc()
		return
	}

	p.metrics.CertificatesIssued.WithLabelValues("auto").Inc()
	p.logger.InfoContext(ctx, "certificate issued from sighting",
		"certificate_id", cert.ID,
		"identity_id", cert.IdentityID,
		"place_id", cert.PlaceID,
		"identity_strategy", string(fp.IdentityStrategy),
		"place_strategy", string(fp.PlaceStrategy),
	)

	if email, err := p.identities.EmailOf(ctx, cert.IdentityID); err == nil && email != "" {
		// TODO(notifications): send the certificate mail once an SMTP relay
		// is provisioned for this deployment.
		p.logger.InfoContext(ctx, "certificate notification pending",
			"certificate_id", cert.ID,
			"email", email,
		)
	}
}
