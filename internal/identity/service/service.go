package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"attentid/internal/identity"
	dErrors "attentid/pkg/domain-errors"
	"attentid/pkg/platform/sentinel"
)

// Store is the user persistence port.
type Store interface {
	Save(ctx context.Context, user identity.User) error
	FindByID(ctx context.Context, userID string) (identity.User, error)
	FindByEmail(ctx context.Context, email string) (identity.User, error)
}

// Service manages user registration and lookup. It also implements the
// identity directory port the certificate issuer depends on.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Register creates a user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, email, name, password string) (identity.User, error) {
	if email == "" || password == "" {
		return identity.User{}, dErrors.New(dErrors.CodeBadRequest, "email and password are required")
	}
	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return identity.User{}, dErrors.New(dErrors.CodeConflict, "email already registered")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return identity.User{}, dErrors.Wrap(dErrors.CodeInternal, "lookup user", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return identity.User{}, dErrors.Wrap(dErrors.CodeInternal, "hash password", err)
	}

	now := time.Now()
	user := identity.User{
		ID:           "us-" + uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Created:      now,
		Active:       now,
	}
	if err := s.store.Save(ctx, user); err != nil {
		return identity.User{}, dErrors.Wrap(dErrors.CodeInternal, "save user", err)
	}
	return user, nil
}

// Authenticate validates credentials and returns the user on success.
func (s *Service) Authenticate(ctx context.Context, email, password string) (identity.User, error) {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return identity.User{}, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return identity.User{}, dErrors.Wrap(dErrors.CodeInternal, "lookup user", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return identity.User{}, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	return user, nil
}

// Get loads a user by id.
func (s *Service) Get(ctx context.Context, userID string) (identity.User, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return identity.User{}, dErrors.New(dErrors.CodeNotFound, "user "+userID+" not found")
		}
		return identity.User{}, dErrors.Wrap(dErrors.CodeInternal, "lookup user", err)
	}
	return user, nil
}

// Exists implements the certificate issuer's identity directory port.
func (s *Service) Exists(ctx context.Context, identityID string) (bool, error) {
	_, err := s.store.FindByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// EmailOf returns the identity's email, or empty when unknown.
func (s *Service) EmailOf(ctx context.Context, identityID string) (string, error) {
	user, err := s.store.FindByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return user.Email, nil
}
