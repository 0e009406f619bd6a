package managers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agentdock/agentdock/pkg/domain"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
)

const (
	// defaultTokenLifetime applies when a token response omits expires_in.
	defaultTokenLifetime = time.Hour
	// refreshWindow is how close to expiry a token counts as expiring.
	refreshWindow = 5 * time.Minute

	maxTokenResponseBytes = 1 << 20
)

// ProviderDescriptor is the immutable per-provider configuration. One
// descriptor is built per provider at process start.
type ProviderDescriptor struct {
	Name         domain.OAuthProvider
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	ProfileURL   string

	// AuthParams are provider-specific defaults appended to every
	// authorization URL (e.g. access_type=offline for Google).
	AuthParams map[string]string

	// DisableRefresh marks providers whose tokens never expire and never
	// issue refresh tokens. GetValidAccessToken returns the stored token
	// as-is for these providers.
	DisableRefresh bool
}

// ProviderOverrides holds the optional per-provider deviations from the
// generic flow. A nil field means the generic behavior applies.
type ProviderOverrides struct {
	ExchangeCode func(ctx context.Context, code string) (domain.OAuthTokenResponse, error)
	FetchProfile func(ctx context.Context, accessToken string) (domain.OAuthUserProfile, error)
}

// OAuthManager implements the authorization-code lifecycle for one provider:
// building authorization URLs, exchanging codes, persisting tokens and
// refreshing them transparently on read.
type OAuthManager struct {
	descriptor ProviderDescriptor
	overrides  ProviderOverrides
	store      domain.OAuthTokenStore
	httpClient *http.Client
	now        func() time.Time

	// refreshLocks serializes refreshes per user so concurrent expiring
	// reads trigger a single refresh exchange.
	refreshLocks *keyedMutex
}

type OAuthManagerDependencies struct {
	Descriptor ProviderDescriptor
	Overrides  ProviderOverrides
	TokenStore domain.OAuthTokenStore
	HTTPClient *http.Client
}

func NewOAuthManager(deps OAuthManagerDependencies) *OAuthManager {
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	return &OAuthManager{
		descriptor:   deps.Descriptor,
		overrides:    deps.Overrides,
		store:        deps.TokenStore,
		httpClient:   httpClient,
		now:          time.Now,
		refreshLocks: newKeyedMutex(),
	}
}

func (m *OAuthManager) Provider() domain.OAuthProvider {
	return m.descriptor.Name
}

// BuildAuthorizationURL renders the provider authorization endpoint with the
// standard code-flow parameters, the descriptor's defaults and any extra
// override params. Pure; no side effects.
func (m *OAuthManager) BuildAuthorizationURL(state string, extraParams map[string]string) string {
	values := url.Values{}
	values.Set("client_id", m.descriptor.ClientID)
	values.Set("redirect_uri", m.descriptor.RedirectURI)
	values.Set("response_type", "code")
	values.Set("state", state)

	if len(m.descriptor.Scopes) > 0 {
		values.Set("scope", strings.Join(m.descriptor.Scopes, " "))
	}

	for key, value := range m.descriptor.AuthParams {
		values.Set(key, value)
	}

	for key, value := range extraParams {
		values.Set(key, value)
	}

	return m.descriptor.AuthURL + "?" + values.Encode()
}

// ExchangeCode trades an authorization code for tokens. The generic transport
// is a form-encoded POST with the client credentials in the body; providers
// that deviate supply an override.
func (m *OAuthManager) ExchangeCode(ctx context.Context, code string) (domain.OAuthTokenResponse, error) {
	if m.overrides.ExchangeCode != nil {
		return m.overrides.ExchangeCode(ctx, code)
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", m.descriptor.RedirectURI)
	form.Set("client_id", m.descriptor.ClientID)
	form.Set("client_secret", m.descriptor.ClientSecret)

	response, err := postTokenForm(ctx, m.httpClient, m.descriptor.TokenURL, form)
	if err != nil {
		return domain.OAuthTokenResponse{}, fmt.Errorf("%w: %s", domain.ErrExchangeFailed, err)
	}

	return response, nil
}

// PersistTokens upserts the token record for (userID, provider). An existing
// record keeps its identifier, and its refresh token survives responses that
// omit one; providers commonly leave refresh_token out of refresh responses.
func (m *OAuthManager) PersistTokens(ctx context.Context, userID string, response domain.OAuthTokenResponse) (domain.OAuthToken, error) {
	now := m.now()

	lifetime := time.Duration(response.ExpiresIn) * time.Second
	if response.ExpiresIn <= 0 {
		lifetime = defaultTokenLifetime
	}

	token := domain.OAuthToken{
		UserID:       userID,
		Provider:     m.descriptor.Name,
		AccessToken:  response.AccessToken,
		RefreshToken: response.RefreshToken,
		ExpiresAt:    now.Add(lifetime),
		Scopes:       m.descriptor.Scopes,
		UpdatedAt:    now,
	}

	if response.Scope != "" {
		token.Scopes = strings.Fields(response.Scope)
	}

	existing, err := m.store.Get(ctx, userID, m.descriptor.Name)
	switch {
	case err == nil:
		token.ID = existing.ID
		if token.RefreshToken == "" {
			token.RefreshToken = existing.RefreshToken
		}
	case errors.Is(err, domain.ErrNotLinked):
		token.ID = xid.New().String()
	default:
		return domain.OAuthToken{}, fmt.Errorf("failed to load existing token: %w", err)
	}

	if err := m.store.Upsert(ctx, token); err != nil {
		return domain.OAuthToken{}, fmt.Errorf("failed to persist token: %w", err)
	}

	return token, nil
}

// GetValidAccessToken returns a usable access token for the user, refreshing
// through the token endpoint first when the stored token expires within the
// refresh window. Every consumer of provider access drives the token
// lifecycle through this call; there is no background refresher.
func (m *OAuthManager) GetValidAccessToken(ctx context.Context, userID string) (string, error) {
	token, err := m.store.Get(ctx, userID, m.descriptor.Name)
	if err != nil {
		return "", err
	}

	if m.descriptor.DisableRefresh || m.fresh(token) {
		return token.AccessToken, nil
	}

	unlock := m.refreshLocks.Lock(userID)
	defer unlock()

	// Re-check under the lock; a concurrent caller may have refreshed while
	// this one waited.
	token, err = m.store.Get(ctx, userID, m.descriptor.Name)
	if err != nil {
		return "", err
	}

	if m.fresh(token) {
		return token.AccessToken, nil
	}

	if token.RefreshToken == "" {
		return "", domain.ErrRefreshUnavailable
	}

	response, err := m.refreshExchange(ctx, token.RefreshToken)
	if err != nil {
		// The stored record stays untouched; the stale token may still be
		// briefly valid.
		return "", err
	}

	refreshed, err := m.PersistTokens(ctx, userID, response)
	if err != nil {
		return "", err
	}

	log.Debug().
		Str("provider", string(m.descriptor.Name)).
		Str("user_id", userID).
		Time("expires_at", refreshed.ExpiresAt).
		Msg("Refreshed OAuth access token")

	return refreshed.AccessToken, nil
}

// Revoke deletes the stored record. Revoking an unlinked provider is a no-op.
func (m *OAuthManager) Revoke(ctx context.Context, userID string) error {
	if err := m.store.Delete(ctx, userID, m.descriptor.Name); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	return nil
}

// FetchProfile retrieves the provider identity for the given access token and
// normalizes it. Providers with non-standard identity payloads override this.
func (m *OAuthManager) FetchProfile(ctx context.Context, accessToken string) (domain.OAuthUserProfile, error) {
	if m.overrides.FetchProfile != nil {
		return m.overrides.FetchProfile(ctx, accessToken)
	}

	raw, err := getJSON(ctx, m.httpClient, m.descriptor.ProfileURL, accessToken, nil)
	if err != nil {
		return domain.OAuthUserProfile{}, fmt.Errorf("failed to fetch %s profile: %w", m.descriptor.Name, err)
	}

	return domain.OAuthUserProfile{
		ID:    firstString(raw, "sub", "id"),
		Email: firstString(raw, "email", "mail", "userPrincipalName"),
		Name:  firstString(raw, "name", "displayName"),
	}, nil
}

func (m *OAuthManager) fresh(token domain.OAuthToken) bool {
	return !token.ExpiresAt.Before(m.now().Add(refreshWindow))
}

func (m *OAuthManager) refreshExchange(ctx context.Context, refreshToken string) (domain.OAuthTokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", m.descriptor.ClientID)
	form.Set("client_secret", m.descriptor.ClientSecret)

	response, err := postTokenForm(ctx, m.httpClient, m.descriptor.TokenURL, form)
	if err != nil {
		return domain.OAuthTokenResponse{}, fmt.Errorf("%w: %s", domain.ErrRefreshFailed, err)
	}

	return response, nil
}

// postTokenForm performs a form-encoded token-endpoint request and decodes
// the response, surfacing provider-reported errors.
func postTokenForm(ctx context.Context, client *http.Client, tokenURL string, form url.Values) (domain.OAuthTokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.OAuthTokenResponse{}, fmt.Errorf("failed to build token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return domain.OAuthTokenResponse{}, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return domain.OAuthTokenResponse{}, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		return domain.OAuthTokenResponse{}, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, errorReason(body))
	}

	var response domain.OAuthTokenResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return domain.OAuthTokenResponse{}, fmt.Errorf("failed to decode token response: %w", err)
	}

	if response.AccessToken == "" {
		return domain.OAuthTokenResponse{}, fmt.Errorf("token response has no access token: %s", errorReason(body))
	}

	return response, nil
}

// getJSON performs an authenticated GET and decodes the JSON body into a map.
func getJSON(ctx context.Context, client *http.Client, endpoint string, accessToken string, headers map[string]string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return raw, nil
}

// errorReason extracts the provider's error field from an error payload so
// exchange failures carry the provider-reported reason.
func errorReason(body []byte) string {
	var payload struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}

	if payload.ErrorDescription != "" {
		return payload.ErrorDescription
	}
	if payload.Error != "" {
		return payload.Error
	}

	return strings.TrimSpace(string(body))
}

func firstString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := raw[key].(string); ok && strings.TrimSpace(value) != "" {
			return value
		}
	}

	return ""
}
