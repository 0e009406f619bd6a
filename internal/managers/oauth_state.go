package managers

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentdock/agentdock/pkg/domain"
)

// stateTTL is how long a state token stays accepted after issuance.
const stateTTL = 10 * time.Minute

// OAuthState is the payload carried through the provider redirect round-trip.
// It is never persisted; the encoded form is the only copy.
type OAuthState struct {
	UserID   string               `json:"user_id"`
	Provider domain.OAuthProvider `json:"provider"`
	IssuedAt int64                `json:"issued_at"`
	Nonce    string               `json:"nonce"`
}

// OAuthStateCodec encodes and decodes opaque, URL-safe state tokens.
type OAuthStateCodec struct {
	now func() time.Time
}

func NewOAuthStateCodec() *OAuthStateCodec {
	return &OAuthStateCodec{now: time.Now}
}

func (c *OAuthStateCodec) Encode(userID string, provider domain.OAuthProvider) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}

	state := OAuthState{
		UserID:   userID,
		Provider: provider,
		IssuedAt: c.now().UnixMilli(),
		Nonce:    hex.EncodeToString(nonce),
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to encode state: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(payload), nil
}

// Decode fails closed: any payload that does not parse into the expected
// shape is rejected as invalid, and a well-formed payload older than the
// freshness window is rejected as expired.
func (c *OAuthStateCodec) Decode(encoded string) (OAuthState, error) {
	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return OAuthState{}, domain.ErrInvalidState
	}

	var state OAuthState
	if err := json.Unmarshal(payload, &state); err != nil {
		return OAuthState{}, domain.ErrInvalidState
	}

	if state.UserID == "" || state.Nonce == "" || !state.Provider.Valid() || state.IssuedAt <= 0 {
		return OAuthState{}, domain.ErrInvalidState
	}

	issuedAt := time.UnixMilli(state.IssuedAt)
	if c.now().Sub(issuedAt) > stateTTL {
		return OAuthState{}, domain.ErrExpiredState
	}

	return state, nil
}
