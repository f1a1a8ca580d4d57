package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"attentid/internal/certificate"
	"attentid/internal/fingerprint"
	"attentid/internal/presence"
	dErrors "attentid/pkg/domain-errors"
	"attentid/pkg/platform/sentinel"
)

// Store is the certificate persistence port.
type Store interface {
	Insert(ctx context.Context, cert certificate.Certificate) error
	GetByID(ctx context.Context, certID string) (certificate.Certificate, error)
	FindByIdentityAndPlace(ctx context.Context, identityID, placeID string, issuedAfter time.Time) ([]certificate.Certificate, error)
	ListByIdentity(ctx context.Context, identityID string, skip, limit int) ([]certificate.Certificate, error)
	ListAll(ctx context.Context, skip, limit int) ([]certificate.Certificate, error)
	SetVerified(ctx context.Context, certID string, verified bool) error
}

// IdentityDirectory is the external identity lookup port.
type IdentityDirectory interface {
	Exists(ctx context.Context, identityID string) (bool, error)
	EmailOf(ctx context.Context, identityID string) (string, error)
}

// Matcher is the presence evidence port.
type Matcher interface {
	Matches(ctx context.Context, identityID, placeID string, claimedAt *time.Time, window time.Duration) (bool, error)
}

// IssueLock serializes automatic issuance per (identity, place) pair.
type IssueLock interface {
	Acquire(ctx context.Context, identityID, placeID string) error
	Release(ctx context.Context, identityID, placeID string)
}

// Service orchestrates certificate issuance and verification. The existence
// check and presence check both pass before any write; failures leave zero
// rows behind.
type Service struct {
	store      Store
	identities IdentityDirectory
	matcher    Matcher
	signer     *certificate.Signer
	lock       IssueLock
	logger     *slog.Logger
}

func NewService(store Store, identities IdentityDirectory, matcher Matcher, signer *certificate.Signer, lock IssueLock, logger *slog.Logger) *Service {
	return &Service{
		store:      store,
		identities: identities,
		matcher:    matcher,
		signer:     signer,
		lock:       lock,
		logger:     logger,
	}
}

// Issue mints a certificate after verifying the identity exists and the event
// log holds presence evidence within the window. claimedAt defaults to now,
// window to the 30-minute default.
func (s *Service) Issue(ctx context.Context, identityID, placeID string, claimedAt *time.Time, window time.Duration) (certificate.Certificate, error) {
	if identityID == "" || placeID == "" {
		return certificate.Certificate{}, dErrors.New(dErrors.CodeBadRequest, "identity id and place id are required")
	}
	if window <= 0 {
		window = presence.DefaultWindow
	}

	exists, err := s.identities.Exists(ctx, identityID)
	if err != nil {
		return certificate.Certificate{}, dErrors.Wrap(dErrors.CodeInternal, "identity lookup failed", err)
	}
	if !exists {
		return certificate.Certificate{}, dErrors.New(dErrors.CodeNotFound, "identity "+identityID+" not found")
	}

	matched, err := s.matcher.Matches(ctx, identityID, placeID, claimedAt, window)
	if err != nil {
		return certificate.Certificate{}, dErrors.Wrap(dErrors.CodeInternal, "presence query failed", err)
	}
	if !matched {
		return certificate.Certificate{}, dErrors.New(dErrors.CodePresenceUnverified,
			"no verification found that the identity was present at this location")
	}

	issuedAt := time.Now()
	if claimedAt != nil {
		issuedAt = *claimedAt
	}
	// Normalize before signing so the persisted value re-signs identically.
	issuedAt = issuedAt.UTC().Truncate(time.Microsecond)

	cert := certificate.Certificate{
		ID:         "cert-" + uuid.NewString(),
		IdentityID: identityID,
		PlaceID:    placeID,
		IssuedAt:   issuedAt,
		Verified:   false,
	}
	cert.Signature = s.signer.Sign(cert.ID, cert.IdentityID, cert.PlaceID, cert.IssuedAt)

	if err := s.store.Insert(ctx, cert); err != nil {
		if errors.Is(err, sentinel.ErrDuplicate) {
			return certificate.Certificate{}, dErrors.New(dErrors.CodeConflict,
				"a certificate for this identity and place was already issued in this hour")
		}
		return certificate.Certificate{}, dErrors.Wrap(dErrors.CodeInternal, "persist certificate", err)
	}

	s.logger.InfoContext(ctx, "certificate issued",
		"certificate_id", cert.ID,
		"identity_id", cert.IdentityID,
		"place_id", cert.PlaceID,
	)
	return cert, nil
}

// IssueFromSighting is the automatic ingestion variant. It pre-checks the
// one-hour dedup window and holds the per-pair lock across the issue call.
// The skipped return distinguishes "already covered, nothing to do" from an
// actual issuance; neither duplicate nor lock contention is an error.
func (s *Service) IssueFromSighting(ctx context.Context, fp fingerprint.Fingerprint) (certificate.Certificate, bool, error) {
	existing, err := s.store.FindByIdentityAndPlace(ctx, fp.IdentityID, fp.PlaceID, time.Now().Add(-certificate.DedupWindow))
	if err != nil {
		return certificate.Certificate{}, false, dErrors.Wrap(dErrors.CodeInternal, "dedup pre-check failed", err)
	}
	if len(existing) > 0 {
		s.logger.InfoContext(ctx, "certificate already covers this sighting",
			"identity_id", fp.IdentityID,
			"place_id", fp.PlaceID,
			"existing_id", existing[0].ID,
			"issued_at", existing[0].IssuedAt,
		)
		return certificate.Certificate{}, true, nil
	}

	if err := s.lock.Acquire(ctx, fp.IdentityID, fp.PlaceID); err != nil {
		if errors.Is(err, sentinel.ErrLockHeld) {
			return certificate.Certificate{}, true, nil
		}
		return certificate.Certificate{}, false, dErrors.Wrap(dErrors.CodeInternal, "issuance lock failed", err)
	}
	defer s.lock.Release(ctx, fp.IdentityID, fp.PlaceID)

	now := time.Now()
	cert, err := s.Issue(ctx, fp.IdentityID, fp.PlaceID, &now, presence.DefaultWindow)
	if err != nil {
		// Losing the insert race to a concurrent instance is equivalent to
		// the pre-check having found a row.
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			return certificate.Certificate{}, true, nil
		}
		return certificate.Certificate{}, false, err
	}
	return cert, false, nil
}

// Verify re-derives the signature from the stored fields and flips the
// verified flag on a match. A mismatch leaves the row untouched.
func (s *Service) Verify(ctx context.Context, certID string) (certificate.Certificate, error) {
	cert, err := s.store.GetByID(ctx, certID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return certificate.Certificate{}, dErrors.New(dErrors.CodeNotFound, "certificate "+certID+" not found")
		}
		return certificate.Certificate{}, dErrors.Wrap(dErrors.CodeInternal, "load certificate", err)
	}

	if !s.signer.Matches(cert) {
		// Elevated severity: a mismatch on persisted data may indicate
		// malicious modification, not user error.
		s.logger.ErrorContext(ctx, "certificate signature mismatch",
			"certificate_id", cert.ID,
			"identity_id", cert.IdentityID,
			"place_id", cert.PlaceID,
		)
		return certificate.Certificate{}, dErrors.New(dErrors.CodeTamperedCertificate,
			"certificate has been tampered with and is not valid")
	}

	if err := s.store.SetVerified(ctx, certID, true); err != nil {
		return certificate.Certificate{}, dErrors.Wrap(dErrors.CodeInternal, "mark certificate verified", err)
	}
	cert.Verified = true
	return cert, nil
}

// Get loads a certificate by id.
func (s *Service) Get(ctx context.Context, certID string) (certificate.Certificate, error) {
	cert, err := s.store.GetByID(ctx, certID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return certificate.Certificate{}, dErrors.New(dErrors.CodeNotFound, "certificate "+certID+" not found")
		}
		return certificate.Certificate{}, dErrors.Wrap(dErrors.CodeInternal, "load certificate", err)
	}
	return cert, nil
}

// ListForIdentity pages through one identity's certificates.
func (s *Service) ListForIdentity(ctx context.Context, identityID string, skip, limit int) ([]certificate.Certificate, error) {
	certs, err := s.store.ListByIdentity(ctx, identityID, skip, normalizeLimit(limit))
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list certificates", err)
	}
	return certs, nil
}

// ListAll pages through every certificate in the system.
func (s *Service) ListAll(ctx context.Context, skip, limit int) ([]certificate.Certificate, error) {
	certs, err := s.store.ListAll(ctx, skip, normalizeLimit(limit))
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list certificates", err)
	}
	return certs, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}
