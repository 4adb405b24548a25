package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, clock func() time.Time) *JWTService {
	t.Helper()

	svc, err := NewJWTService(JWTConfig{
		Secret:         "test-secret",
		Issuer:         "collegedesk",
		AccessTokenTTL: time.Hour,
		Clock:          clock,
	})
	require.NoError(t, err)
	return svc
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestService(t, nil)

	token, err := svc.GenerateAccessToken(AccessTokenInput{Username: "gp-pune", Role: "college"})
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "gp-pune", claims.Username)
	require.Equal(t, "college", claims.Role)
	require.Equal(t, "collegedesk", claims.Issuer)
}

func TestGenerateRequiresUsernameAndRole(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.GenerateAccessToken(AccessTokenInput{Role: "college"})
	require.Error(t, err)

	_, err = svc.GenerateAccessToken(AccessTokenInput{Username: "gp-pune"})
	require.Error(t, err)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	issuedAt := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	svc := newTestService(t, func() time.Time { return issuedAt })

	token, err := svc.GenerateAccessToken(AccessTokenInput{Username: "gp-pune", Role: "college"})
	require.NoError(t, err)

	late := newTestService(t, func() time.Time { return issuedAt.Add(2 * time.Hour) })
	_, err = late.ValidateAccessToken(token)
	require.Error(t, err)
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	other, err := NewJWTService(JWTConfig{Secret: "test-secret", Issuer: "someone-else"})
	require.NoError(t, err)

	token, err := other.GenerateAccessToken(AccessTokenInput{Username: "gp-pune", Role: "college"})
	require.NoError(t, err)

	svc := newTestService(t, nil)
	_, err = svc.ValidateAccessToken(token)
	require.Error(t, err)
}

func TestNewJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.Error(t, err)
}
