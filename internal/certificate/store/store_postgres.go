package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"attentid/internal/certificate"
	"attentid/pkg/platform/sentinel"
)

// uniqueViolation is the PostgreSQL error code raised by the
// (identity_id, place_id, hour-bucket) unique index guarding the automatic
// issuance path against concurrent double-issue.
const uniqueViolation = "23505"

// PostgresStore persists certificates in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed certificate store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Insert writes one certificate row. Returns sentinel.ErrDuplicate when the
// hour-bucket uniqueness constraint rejects the write.
func (s *PostgresStore) Insert(ctx context.Context, cert certificate.Certificate) error {
	query := `
		INSERT INTO certificates (id, identity_id, place_id, issued_at, signature, verified)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		cert.ID,
		cert.IdentityID,
		cert.PlaceID,
		cert.IssuedAt,
		cert.Signature,
		cert.Verified,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return sentinel.ErrDuplicate
		}
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

// GetByID loads one certificate, or sentinel.ErrNotFound.
func (s *PostgresStore) GetByID(ctx context.Context, certID string) (certificate.Certificate, error) {
	query := `
		SELECT id, identity_id, place_id, issued_at, signature, verified
		FROM certificates
		WHERE id = $1
	`
	var cert certificate.Certificate
	err := s.db.QueryRowContext(ctx, query, certID).Scan(
		&cert.ID, &cert.IdentityID, &cert.PlaceID, &cert.IssuedAt, &cert.Signature, &cert.Verified,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return certificate.Certificate{}, sentinel.ErrNotFound
		}
		return certificate.Certificate{}, fmt.Errorf("get certificate: %w", err)
	}
	return cert, nil
}

// FindByIdentityAndPlace returns certificates for the pair issued at or after
// the given time. Used by the automatic path's dedup pre-check.
func (s *PostgresStore) FindByIdentityAndPlace(ctx context.Context, identityID, placeID string, issuedAfter time.Time) ([]certificate.Certificate, error) {
	query := `
		SELECT id, identity_id, place_id, issued_at, signature, verified
		FROM certificates
		WHERE identity_id = $1 AND place_id = $2 AND issued_at >= $3
		ORDER BY issued_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, identityID, placeID, issuedAfter)
	if err != nil {
		return nil, fmt.Errorf("query certificates: %w", err)
	}
	defer rows.Close()
	return scanCertificates(rows)
}

// ListByIdentity pages through one identity's certificates, newest first.
func (s *PostgresStore) ListByIdentity(ctx context.Context, identityID string, skip, limit int) ([]certificate.Certificate, error) {
	query := `
		SELECT id, identity_id, place_id, issued_at, signature, verified
		FROM certificates
		WHERE identity_id = $1
		ORDER BY issued_at DESC
		OFFSET $2 LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, identityID, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("query certificates: %w", err)
	}
	defer rows.Close()
	return scanCertificates(rows)
}

// ListAll pages through every certificate, newest first.
func (s *PostgresStore) ListAll(ctx context.Context, skip, limit int) ([]certificate.Certificate, error) {
	query := `
		SELECT id, identity_id, place_id, issued_at, signature, verified
		FROM certificates
		ORDER BY issued_at DESC
		OFFSET $1 LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("query certificates: %w", err)
	}
	defer rows.Close()
	return scanCertificates(rows)
}

// SetVerified flips the verified flag. Idempotent.
func (s *PostgresStore) SetVerified(ctx context.Context, certID string, verified bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE certificates SET verified = $2 WHERE id = $1`, certID, verified)
	if err != nil {
		return fmt.Errorf("update certificate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update certificate: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanCertificates(rows *sql.Rows) ([]certificate.Certificate, error) {
	var certs []certificate.Certificate
	for rows.Next() {
		var cert certificate.Certificate
		if err := rows.Scan(&cert.ID, &cert.IdentityID, &cert.PlaceID, &cert.IssuedAt, &cert.Signature, &cert.Verified); err != nil {
			return nil, fmt.Errorf("scan certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate certificates: %w", err)
	}
	return certs, nil
}
