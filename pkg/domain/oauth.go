package domain

import (
	"context"
	"errors"
	"time"
)

type OAuthProvider string

const (
	OAuthProviderGoogle    OAuthProvider = "google"
	OAuthProviderMicrosoft OAuthProvider = "microsoft"
	OAuthProviderSlack     OAuthProvider = "slack"
	OAuthProviderNotion    OAuthProvider = "notion"
)

func (p OAuthProvider) Valid() bool {
	switch p {
	case OAuthProviderGoogle, OAuthProviderMicrosoft, OAuthProviderSlack, OAuthProviderNotion:
		return true
	}

	return false
}

var (
	ErrInvalidState       = errors.New("oauth state is invalid")
	ErrExpiredState       = errors.New("oauth state has expired")
	ErrExchangeFailed     = errors.New("oauth code exchange failed")
	ErrNotLinked          = errors.New("oauth account is not linked")
	ErrRefreshUnavailable = errors.New("oauth token has no refresh token")
	ErrRefreshFailed      = errors.New("oauth token refresh failed")
)

// OAuthToken is the persisted token record for one (user, provider) pair.
type OAuthToken struct {
	ID           string
	UserID       string
	Provider     OAuthProvider
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scopes       []string
	UpdatedAt    time.Time
}

// OAuthTokenResponse is the raw payload returned by a provider token endpoint.
type OAuthTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}

type OAuthUserProfile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type OAuthTokenStore interface {
	// Upsert writes the record for (token.UserID, token.Provider), replacing
	// an existing row for the same pair.
	Upsert(ctx context.Context, token OAuthToken) error
	// Get returns ErrNotLinked when no record exists for the pair.
	Get(ctx context.Context, userID string, provider OAuthProvider) (OAuthToken, error)
	// Delete is idempotent; deleting an absent record is not an error.
	Delete(ctx context.Context, userID string, provider OAuthProvider) error
	ListByUser(ctx context.Context, userID string) ([]OAuthToken, error)
}
