package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"attentid/internal/certificate"
	"attentid/pkg/platform/sentinel"
)

// MemoryStore is an in-memory certificate store for tests and local
// development. It enforces the same hour-bucket uniqueness as the PostgreSQL
// index so dedup behavior matches across implementations.
type MemoryStore struct {
	mu    sync.RWMutex
	certs map[string]certificate.Certificate
}

func NewMemory() *MemoryStore {
	return &MemoryStore{certs: make(map[string]certificate.Certificate)}
}

func (s *MemoryStore) Insert(_ context.Context, cert certificate.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.certs[cert.ID]; exists {
		return sentinel.ErrDuplicate
	}
	bucket := cert.IssuedAt.UTC().Truncate(time.Hour)
	for _, existing := range s.certs {
		if existing.IdentityID == cert.IdentityID &&
			existing.PlaceID == cert.PlaceID &&
			existing.IssuedAt.UTC().Truncate(time.Hour).Equal(bucket) {
			return sentinel.ErrDuplicate
		}
	}
	s.certs[cert.ID] = cert
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, certID string) (certificate.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cert, ok := s.certs[certID]
	if !ok {
		return certificate.Certificate{}, sentinel.ErrNotFound
	}
	return cert, nil
}

func (s *MemoryStore) FindByIdentityAndPlace(_ context.Context, identityID, placeID string, issuedAfter time.Time) ([]certificate.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []certificate.Certificate
	for _, cert := range s.certs {
		if cert.IdentityID == identityID && cert.PlaceID == placeID && !cert.IssuedAt.Before(issuedAfter) {
			out = append(out, cert)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) ListByIdentity(_ context.Context, identityID string, skip, limit int) ([]certificate.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []certificate.Certificate
	for _, cert := range s.certs {
		if cert.IdentityID == identityID {
			out = append(out, cert)
		}
	}
	sortNewestFirst(out)
	return page(out, skip, limit), nil
}

func (s *MemoryStore) ListAll(_ context.Context, skip, limit int) ([]certificate.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]certificate.Certificate, 0, len(s.certs))
	for _, cert := range s.certs {
		out = append(out, cert)
	}
	sortNewestFirst(out)
	return page(out, skip, limit), nil
}

func (s *MemoryStore) SetVerified(_ context.Context, certID string, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cert, ok := s.certs[certID]
	if !ok {
		return sentinel.ErrNotFound
	}
	cert.Verified = verified
	s.certs[certID] = cert
	return nil
}

// Tamper overwrites a stored certificate bypassing uniqueness checks. Test
// hook for simulating hostile modification of persisted rows.
func (s *MemoryStore) Tamper(certID string, mutate func(*certificate.Certificate)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cert := s.certs[certID]
	mutate(&cert)
	s.certs[certID] = cert
}

func sortNewestFirst(certs []certificate.Certificate) {
	sort.Slice(certs, func(i, j int) bool {
		return certs[i].IssuedAt.After(certs[j].IssuedAt)
	})
}

func page(certs []certificate.Certificate, skip, limit int) []certificate.Certificate {
	if skip >= len(certs) {
		return nil
	}
	certs = certs[skip:]
	if limit > 0 && limit < len(certs) {
		certs = certs[:limit]
	}
	return certs
}
