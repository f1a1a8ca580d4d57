// Package presence decides whether the event log contains evidence that an
// identity was at a place within a time window.
package presence

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"attentid/internal/event"
	"attentid/internal/fingerprint"
)

// DefaultWindow is the ± tolerance applied when a claim omits one.
const DefaultWindow = 30 * time.Minute

// SuffixLen is the number of trailing characters compared in the fuzzy
// fallback. Tunable policy, not a guaranteed-correct algorithm: its
// false-positive rate on large UUID populations is uncharacterized.
const SuffixLen = 8

// EventSource is the slice of the event store the matcher needs.
type EventSource interface {
	QueryByTopicSubstrings(ctx context.Context, substrings []string, from, to *time.Time) ([]event.Event, error)
	QueryByTopicSubstring(ctx context.Context, substring string, from, to *time.Time) ([]event.Event, error)
}

// Matcher runs the two-tier presence check: exact topic containment first,
// then a looser identity-only pass with UUID suffix comparison. Beacon topics
// are operator-controlled and occasionally non-canonical, so strict matching
// alone produces unacceptable false negatives.
type Matcher struct {
	events EventSource
	logger *slog.Logger
}

func NewMatcher(events EventSource, logger *slog.Logger) *Matcher {
	return &Matcher{events: events, logger: logger}
}

// Matches reports whether any event within [claimedAt-window, claimedAt+window]
// (bounds inclusive; unbounded when claimedAt is nil) supports the claim.
func (m *Matcher) Matches(ctx context.Context, identityID, placeID string, claimedAt *time.Time, window time.Duration) (bool, error) {
	var from, to *time.Time
	if claimedAt != nil {
		f := claimedAt.Add(-window)
		t := claimedAt.Add(window)
		from, to = &f, &t
	}

	direct, err := m.events.QueryByTopicSubstrings(ctx, []string{placeID, identityID}, from, to)
	if err != nil {
		return false, err
	}
	if len(direct) > 0 {
		m.logger.DebugContext(ctx, "presence confirmed by direct match",
			"identity_id", identityID, "place_id", placeID, "hits", len(direct))
		return true, nil
	}

	// Recall pass: any event mentioning the identity whose topic carries a
	// UUID-shaped segment close enough to the claimed place.
	candidates, err := m.events.QueryByTopicSubstring(ctx, identityID, from, to)
	if err != nil {
		return false, err
	}
	for _, e := range candidates {
		if seg, ok := matchPlaceSegment(e.Topic, placeID); ok {
			m.logger.DebugContext(ctx, "presence confirmed by fuzzy match",
				"identity_id", identityID, "place_id", placeID, "segment", seg)
			return true, nil
		}
	}

	return false, nil
}

// matchPlaceSegment scans a topic's segments for one matching placeID either
// by containment in either direction or by trailing-suffix equality.
func matchPlaceSegment(topic, placeID string) (string, bool) {
	for _, seg := range strings.Split(topic, "/") {
		if !fingerprint.IsUUIDShaped(seg) {
			continue
		}
		if strings.Contains(seg, placeID) || strings.Contains(placeID, seg) {
			return seg, true
		}
		if len(seg) >= SuffixLen && len(placeID) >= SuffixLen &&
			seg[len(seg)-SuffixLen:] == placeID[len(placeID)-SuffixLen:] {
			return seg, true
		}
	}
	return "", false
}
