// Package certificate contains the presence certificate model and the
// deterministic signer used both at issuance and verification.
package certificate

import "time"

// Certificate is a signed record asserting a verified presence claim.
// Immutable once created except for the Verified flag, which flips false→true
// on successful verification.
type Certificate struct {
	ID         string
	IdentityID string
	PlaceID    string
	IssuedAt   time.Time
	Signature  string
	Verified   bool
}

// DedupWindow is the minimum spacing between automatically issued
// certificates for the same (identity, place) pair. Prevents certificate
// storms from repeated beacon detections.
const DedupWindow = time.Hour
