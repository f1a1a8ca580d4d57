// Package fingerprint extracts identity and place identifiers from beacon
// topic paths. Topics are produced by operator-controlled scanners and are
// only loosely structured, so extraction is an ordered chain of heuristic
// strategies; ambiguous topics may legitimately fail to match.
package fingerprint

import "strings"

// Claim markers embedded in beacon topics. The primary marker contains the
// fallback one, so a substring check against MarkerPresence catches both.
const (
	MarkerPresenceForIdentity = "presence-verified-for-identity"
	MarkerPresence            = "presence-verified"
)

// uuidMinLen is the length threshold for the UUID-shape heuristic. Canonical
// UUIDs are 36 characters; the threshold is lower to tolerate vendor-prefixed
// variants.
const uuidMinLen = 31

// Strategy names which extraction rule produced a value, for logging and
// tuning.
type Strategy string

const (
	StrategyMarkerAdjacent     Strategy = "marker-adjacent"
	StrategyMarkerScan         Strategy = "marker-scan"
	StrategyUUIDShapeScan      Strategy = "uuid-shape-scan"
	StrategyPositionalFallback Strategy = "positional-fallback"
)

// Fingerprint is the (identity, place) pair recovered from a topic.
type Fingerprint struct {
	IdentityID       string
	PlaceID          string
	IdentityStrategy Strategy
	PlaceStrategy    Strategy
}

// ContainsClaimMarker reports whether the topic carries either recognized
// presence-claim marker. Cheap gate for the ingest pipeline before running
// full extraction.
func ContainsClaimMarker(topic string) bool {
	return strings.Contains(topic, MarkerPresence)
}

// Extract parses a slash-delimited topic into a Fingerprint. Returns false
// when no marker segment is present at all; a missing place falls back to the
// positional rule before giving up.
func Extract(topic string) (Fingerprint, bool) {
	segments := strings.Split(topic, "/")

	identityID, identityStrategy := extractIdentity(segments)
	if identityID == "" {
		return Fingerprint{}, false
	}

	placeID, placeStrategy := extractPlace(segments)
	if placeID == "" {
		return Fingerprint{}, false
	}

	return Fingerprint{
		IdentityID:       identityID,
		PlaceID:          placeID,
		IdentityStrategy: identityStrategy,
		PlaceStrategy:    placeStrategy,
	}, true
}

// extractIdentity runs the identity strategies in priority order: the primary
// marker as penultimate segment first, then a scan for any marker segment
// followed by one more segment.
func extractIdentity(segments []string) (string, Strategy) {
	if n := len(segments); n >= 2 && segments[n-2] == MarkerPresenceForIdentity {
		return segments[n-1], StrategyMarkerAdjacent
	}
	for i, seg := range segments {
		if (seg == MarkerPresence || seg == MarkerPresenceForIdentity) && i+1 < len(segments) {
			return segments[i+1], StrategyMarkerScan
		}
	}
	return "", ""
}

// extractPlace prefers the first UUID-shaped segment, falling back to the
// fixed positional slot the scanner fleet uses for its location id.
func extractPlace(segments []string) (string, Strategy) {
	for _, seg := range segments {
		if IsUUIDShaped(seg) {
			return seg, StrategyUUIDShapeScan
		}
	}
	if len(segments) > 3 {
		return segments[3], StrategyPositionalFallback
	}
	return "", ""
}

// IsUUIDShaped reports whether a topic segment looks like a location UUID:
// long enough and hyphenated. Shared with the presence matcher's fuzzy pass.
func IsUUIDShaped(segment string) bool {
	return len(segment) >= uuidMinLen && strings.Contains(segment, "-")
}
