package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identitystore "attentid/internal/identity/store"
	dErrors "attentid/pkg/domain-errors"
)

func newService() *Service {
	return NewService(identitystore.NewMemory())
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	user, err := svc.Register(ctx, "jana@example.com", "Jana", "s3cret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(user.ID, "us-"))
	assert.NotEqual(t, "s3cret", user.PasswordHash)

	authed, err := svc.Authenticate(ctx, "jana@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)

	_, err = svc.Authenticate(ctx, "jana@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	_, err := svc.Register(ctx, "jana@example.com", "Jana", "s3cret")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "jana@example.com", "Other", "pw")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestExistsAndEmailOf(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	user, err := svc.Register(ctx, "jana@example.com", "Jana", "s3cret")
	require.NoError(t, err)

	exists, err := svc.Exists(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = svc.Exists(ctx, "us-ghost")
	require.NoError(t, err)
	assert.False(t, exists)

	email, err := svc.EmailOf(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "jana@example.com", email)

	email, err = svc.EmailOf(ctx, "us-ghost")
	require.NoError(t, err)
	assert.Empty(t, email)
}
