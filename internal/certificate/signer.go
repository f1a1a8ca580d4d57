package certificate

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"time"
)

// timestampLayout is the canonical ISO-8601 form used inside the signed
// message: UTC, always six fractional digits. Fixed-width fractions mean a
// timestamp that survived a PostgreSQL round trip (microsecond precision)
// formats byte-identically at verification time.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// Signer computes the deterministic keyed digest over certificate fields.
// The key is injected at construction and shared between issuance and
// verification; there is deliberately no package-level key state.
type Signer struct {
	key []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{key: []byte(secret)}
}

// Sign returns the base64-encoded HMAC-SHA256 over the canonical message
// "id:identity:place:timestamp". Identical inputs and key always produce
// identical output.
func (s *Signer) Sign(certID, identityID, placeID string, issuedAt time.Time) string {
	msg := fmt.Sprintf("%s:%s:%s:%s", certID, identityID, placeID, CanonicalTime(issuedAt))
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(msg))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Matches re-derives the signature for cert's fields and compares it against
// the stored one in constant time.
func (s *Signer) Matches(cert Certificate) bool {
	derived := s.Sign(cert.ID, cert.IdentityID, cert.PlaceID, cert.IssuedAt)
	return subtle.ConstantTimeCompare([]byte(derived), []byte(cert.Signature)) == 1
}

// CanonicalTime formats issuedAt the way the signed message expects. Exposed
// so the issuer can normalize timestamps before persisting them.
func CanonicalTime(t time.Time) string {
	return t.UTC().Truncate(time.Microsecond).Format(timestampLayout)
}
