package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionService_RoundTrip(t *testing.T) {
	service := NewSessionService("test-secret", time.Hour)

	token, err := service.Issue("user-1")
	require.NoError(t, err)

	userID, err := service.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestSessionService_Expiry(t *testing.T) {
	issued := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	service := NewSessionService("test-secret", time.Hour)
	service.now = func() time.Time { return issued }

	token, err := service.Issue("user-1")
	require.NoError(t, err)

	service.now = func() time.Time { return issued.Add(59 * time.Minute) }
	_, err = service.Verify(token)
	assert.NoError(t, err)

	service.now = func() time.Time { return issued.Add(61 * time.Minute) }
	_, err = service.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionService_RejectsForeignSignature(t *testing.T) {
	issuer := NewSessionService("secret-a", time.Hour)
	verifier := NewSessionService("secret-b", time.Hour)

	token, err := issuer.Issue("user-1")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionService_RejectsGarbage(t *testing.T) {
	service := NewSessionService("test-secret", time.Hour)

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := service.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidSession)
	}
}

func TestPassword_HashAndCheck(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery", hash)

	assert.NoError(t, CheckPassword(hash, "correct horse battery"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong password"), ErrInvalidCredentials)
}

func TestPassword_MinimumLength(t *testing.T) {
	_, err := HashPassword("short")
	assert.Error(t, err)
}
