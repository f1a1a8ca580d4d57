package ingest

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attentid/internal/certificate"
	"attentid/internal/certificate/lock"
	certservice "attentid/internal/certificate/service"
	certstore "attentid/internal/certificate/store"
	eventstore "attentid/internal/event/store"
	"attentid/internal/identity"
	identityservice "attentid/internal/identity/service"
	identitystore "attentid/internal/identity/store"
	"attentid/internal/platform/metrics"
	"attentid/internal/presence"
)

// One registry per test binary; promauto registers into the default one.
var testMetrics = metrics.New()

type fixture struct {
	pipeline *Pipeline
	events   *eventstore.MemoryStore
	certs    *certstore.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	users := identitystore.NewMemory()
	require.NoError(t, users.Save(context.Background(), identity.User{
		ID:      "us-42",
		Email:   "presence@example.com",
		Created: time.Now(),
	}))
	directory := identityservice.NewService(users)

	events := eventstore.NewMemory()
	certs := certstore.NewMemory()
	issuer := certservice.NewService(
		certs,
		directory,
		presence.NewMatcher(events, logger),
		certificate.NewSigner("test-secret"),
		lock.NewMemory(),
		logger,
	)

	return &fixture{
		pipeline: NewPipeline(events, issuer, directory, logger, testMetrics),
		events:   events,
		certs:    certs,
	}
}

func TestHandleMessageIssuesCertificateFromClaimTopic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	topic := "/loc/abcdef12-3456-7890-abcd-ef1234567890/presence-verified-for-identity/us-42"

	err := f.pipeline.HandleMessage(ctx, topic, []byte("{}"), 0)
	require.NoError(t, err)

	stored, err := f.events.QueryByTopicSubstring(ctx, "us-42", nil, nil)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "{}", stored[0].Payload)

	certs, err := f.certs.ListAll(ctx, 0, 100)
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, "us-42", certs[0].IdentityID)
	assert.Equal(t, "abcdef12-3456-7890-abcd-ef1234567890", certs[0].PlaceID)
	assert.False(t, certs[0].Verified)
	assert.NotEmpty(t, certs[0].Signature)
}

func TestHandleMessageRepeatedClaimIssuesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	topic := "/loc/abcdef12-3456-7890-abcd-ef1234567890/presence-verified-for-identity/us-42"

	require.NoError(t, f.pipeline.HandleMessage(ctx, topic, []byte("{}"), 0))
	require.NoError(t, f.pipeline.HandleMessage(ctx, topic, []byte("{}"), 0))

	events, err := f.events.QueryByTopicSubstring(ctx, "us-42", nil, nil)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	certs, err := f.certs.ListAll(ctx, 0, 100)
	require.NoError(t, err)
	assert.Len(t, certs, 1)
}

func TestHandleMessageUnknownIdentityStillPersistsEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	topic := "/loc/abcdef12-3456-7890-abcd-ef1234567890/presence-verified-for-identity/us-ghost"

	failures := testutil.ToFloat64(testMetrics.ClaimFailures)
	err := f.pipeline.HandleMessage(ctx, topic, []byte("{}"), 0)
	require.NoError(t, err)

	events, err := f.events.QueryByTopicSubstring(ctx, "us-ghost", nil, nil)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	certs, err := f.certs.ListAll(ctx, 0, 100)
	require.NoError(t, err)
	assert.Empty(t, certs)
	assert.Equal(t, failures+1, testutil.ToFloat64(testMetrics.ClaimFailures))
}

func TestHandleMessageMalformedPayloadStillPersistsEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	malformed := testutil.ToFloat64(testMetrics.MalformedPayloads)
	err := f.pipeline.HandleMessage(ctx, "/rv-catcher/ble", []byte("][not json"), 1)
	require.NoError(t, err)

	events, err := f.events.QueryByTopicSubstring(ctx, "rv-catcher", nil, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "][not json", events[0].Payload)
	assert.Equal(t, 1, events[0].QoS)
	assert.Equal(t, malformed+1, testutil.ToFloat64(testMetrics.MalformedPayloads))
}

func TestHandleMessageExtractsDeviceID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	payload := `{'data': {'mac': 'AA:BB:CC:DD:EE:FF'}}`
	require.NoError(t, f.pipeline.HandleMessage(ctx, "/rv-catcher/ble", []byte(payload), 0))

	events, err := f.events.QueryByTopicSubstring(ctx, "rv-catcher", nil, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", events[0].DeviceID)
}
