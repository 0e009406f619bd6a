package managers

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/agentdock/agentdock/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOAuthStateCodec_RoundTrip(t *testing.T) {
	issued := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	codec := NewOAuthStateCodec()
	codec.now = func() time.Time { return issued }

	encoded, err := codec.Encode("user-1", domain.OAuthProviderGoogle)
	require.NoError(t, err)
	assert.NotContains(t, encoded, "=")

	tests := []struct {
		name     string
		decodeAt time.Time
		wantErr  error
	}{
		{
			name:     "immediately",
			decodeAt: issued,
		},
		{
			name:     "just inside the freshness window",
			decodeAt: issued.Add(10*time.Minute - time.Second),
		},
		{
			name:     "just past the freshness window",
			decodeAt: issued.Add(10*time.Minute + time.Second),
			wantErr:  domain.ErrExpiredState,
		},
		{
			name:     "long past the freshness window",
			decodeAt: issued.Add(24 * time.Hour),
			wantErr:  domain.ErrExpiredState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec.now = func() time.Time { return tt.decodeAt }

			state, err := codec.Decode(encoded)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "user-1", state.UserID)
			assert.Equal(t, domain.OAuthProviderGoogle, state.Provider)
			assert.NotEmpty(t, state.Nonce)
		})
	}
}

func TestOAuthStateCodec_UniqueNonces(t *testing.T) {
	codec := NewOAuthStateCodec()

	first, err := codec.Encode("user-1", domain.OAuthProviderSlack)
	require.NoError(t, err)

	second, err := codec.Encode("user-1", domain.OAuthProviderSlack)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestOAuthStateCodec_RejectsMalformedStates(t *testing.T) {
	codec := NewOAuthStateCodec()

	valid, err := codec.Encode("user-1", domain.OAuthProviderNotion)
	require.NoError(t, err)

	tests := []struct {
		name  string
		state string
	}{
		{name: "empty", state: ""},
		{name: "not base64", state: "%%%not-base64%%%"},
		{name: "base64 of non-json", state: base64.RawURLEncoding.EncodeToString([]byte("not json"))},
		{name: "truncated payload", state: valid[:len(valid)/2]},
		{name: "tampered payload", state: "AAAA" + valid[4:]},
		{
			name: "missing user id",
			state: base64.RawURLEncoding.EncodeToString(
				[]byte(`{"provider":"google","issued_at":1700000000000,"nonce":"abc"}`)),
		},
		{
			name: "unknown provider",
			state: base64.RawURLEncoding.EncodeToString(
				[]byte(`{"user_id":"user-1","provider":"github","issued_at":1700000000000,"nonce":"abc"}`)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decode(tt.state)
			assert.ErrorIs(t, err, domain.ErrInvalidState)
		})
	}
}
