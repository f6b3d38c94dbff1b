package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madeeharehan/pakistan-air-quality-project/internal/auth"
)

func newTestService() *auth.Service {
	return auth.NewService(auth.Config{
		SigningKey: "test-signing-key",
		Issuer:     "https://api.pakairquality.pk",
		Audience:   "paq-api",
	})
}

func TestIssueAndValidateToken(t *testing.T) {
	svc := newTestService()

	token, expiresAt, err := svc.IssueToken("ops", auth.RoleAdmin)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(auth.DefaultTokenExpiry), expiresAt, time.Minute)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
}

func TestValidateToken_WrongKey(t *testing.T) {
	token, _, err := newTestService().IssueToken("ops", auth.RoleAdmin)
	require.NoError(t, err)

	other := auth.NewService(auth.Config{
		SigningKey: "a-different-key",
		Issuer:     "https://api.pakairquality.pk",
		Audience:   "paq-api",
	})
	_, err = other.ValidateToken(token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestValidateToken_Expired(t *testing.T) {
	svc := auth.NewService(auth.Config{
		SigningKey:  "test-signing-key",
		Issuer:      "https://api.pakairquality.pk",
		Audience:    "paq-api",
		TokenExpiry: -time.Minute,
	})

	token, _, err := svc.IssueToken("ops", auth.RoleAdmin)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestValidateToken_Garbage(t *testing.T) {
	_, err := newTestService().ValidateToken("not-a-jwt")
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestRequireRole(t *testing.T) {
	svc := newTestService()

	token, _, err := svc.IssueToken("scheduler", "viewer")
	require.NoError(t, err)

	_, err = svc.RequireRole(token, auth.RoleAdmin)
	require.ErrorIs(t, err, auth.ErrMissingRole)

	admin, _, err := svc.IssueToken("ops", auth.RoleAdmin)
	require.NoError(t, err)
	claims, err := svc.RequireRole(admin, auth.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
}
