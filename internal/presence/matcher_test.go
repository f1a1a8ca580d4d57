package presence

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attentid/internal/event"
	eventstore "attentid/internal/event/store"
)

const (
	placeID  = "abcdef12-3456-7890-abcd-ef1234567890"
	identity = "us-42"
)

func newMatcher(t *testing.T) (*Matcher, *eventstore.MemoryStore) {
	t.Helper()
	events := eventstore.NewMemory()
	return NewMatcher(events, slog.New(slog.NewTextHandler(io.Discard, nil))), events
}

func appendAt(t *testing.T, events *eventstore.MemoryStore, topic string, at time.Time) {
	t.Helper()
	_, err := events.Append(context.Background(), event.Event{
		Topic:      topic,
		Payload:    "{}",
		ReceivedAt: at,
	})
	require.NoError(t, err)
}

func TestMatchesDirect(t *testing.T) {
	m, events := newMatcher(t)
	claimed := time.Now()
	appendAt(t, events, "/loc/"+placeID+"/presence-verified-for-identity/"+identity, claimed.Add(-5*time.Minute))

	ok, err := m.Matches(context.Background(), identity, placeID, &claimed, DefaultWindow)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchesNoEvidence(t *testing.T) {
	m, _ := newMatcher(t)
	claimed := time.Now()

	ok, err := m.Matches(context.Background(), identity, placeID, &claimed, DefaultWindow)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchesWindowBoundary(t *testing.T) {
	claimed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	topic := "/loc/" + placeID + "/presence-verified-for-identity/" + identity

	t.Run("event exactly at lower bound matches", func(t *testing.T) {
		m, events := newMatcher(t)
		appendAt(t, events, topic, claimed.Add(-DefaultWindow))

		ok, err := m.Matches(context.Background(), identity, placeID, &claimed, DefaultWindow)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("event one second outside does not match", func(t *testing.T) {
		m, events := newMatcher(t)
		appendAt(t, events, topic, claimed.Add(-DefaultWindow-time.Second))

		ok, err := m.Matches(context.Background(), identity, placeID, &claimed, DefaultWindow)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestMatchesNoClaimedTimeIgnoresAge(t *testing.T) {
	m, events := newMatcher(t)
	appendAt(t, events, "/loc/"+placeID+"/presence-verified-for-identity/"+identity,
		time.Now().Add(-48*time.Hour))

	ok, err := m.Matches(context.Background(), identity, placeID, nil, DefaultWindow)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchesFuzzySuffix(t *testing.T) {
	m, events := newMatcher(t)
	claimed := time.Now()
	// Same trailing 8 characters as placeID, different prefix.
	appendAt(t, events, "/loc/99999999-aaaa-bbbb-cccc-ef1234567890/presence-verified-for-identity/"+identity, claimed)

	ok, err := m.Matches(context.Background(), identity, placeID, &claimed, DefaultWindow)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchesFuzzyContainment(t *testing.T) {
	m, events := newMatcher(t)
	claimed := time.Now()
	// Truncated place token: the claimed place id contains it, but the topic
	// does not contain the full id, so only the recall pass can match.
	appendAt(t, events, "/loc/"+placeID[:len(placeID)-1]+"/presence-verified-for-identity/"+identity, claimed)

	ok, err := m.Matches(context.Background(), identity, placeID, &claimed, DefaultWindow)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchesFuzzyRejectsUnrelatedPlace(t *testing.T) {
	m, events := newMatcher(t)
	claimed := time.Now()
	appendAt(t, events, "/loc/99999999-aaaa-bbbb-cccc-000000000000/presence-verified-for-identity/"+identity, claimed)

	ok, err := m.Matches(context.Background(), identity, placeID, &claimed, DefaultWindow)
	require.NoError(t, err)
	assert.False(t, ok)
}
