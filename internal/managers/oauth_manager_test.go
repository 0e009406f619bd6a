package managers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentdock/agentdock/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memTokenStore struct {
	mu     sync.Mutex
	tokens map[string]domain.OAuthToken
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{tokens: make(map[string]domain.OAuthToken)}
}

func tokenKey(userID string, provider domain.OAuthProvider) string {
	return userID + "|" + string(provider)
}

func (s *memTokenStore) Upsert(_ context.Context, token domain.OAuthToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tokenKey(token.UserID, token.Provider)] = token
	return nil
}

func (s *memTokenStore) Get(_ context.Context, userID string, provider domain.OAuthProvider) (domain.OAuthToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[tokenKey(userID, provider)]
	if !ok {
		return domain.OAuthToken{}, domain.ErrNotLinked
	}

	return token, nil
}

func (s *memTokenStore) Delete(_ context.Context, userID string, provider domain.OAuthProvider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, tokenKey(userID, provider))
	return nil
}

func (s *memTokenStore) ListByUser(_ context.Context, userID string) ([]domain.OAuthToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tokens []domain.OAuthToken
	for _, token := range s.tokens {
		if token.UserID == userID {
			tokens = append(tokens, token)
		}
	}

	return tokens, nil
}

func newTestManager(store domain.OAuthTokenStore, tokenURL string, now time.Time) *OAuthManager {
	manager := NewOAuthManager(OAuthManagerDependencies{
		Descriptor: ProviderDescriptor{
			Name:         domain.OAuthProviderGoogle,
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RedirectURI:  "https://app.example.com/oauth/google/callback",
			Scopes:       []string{"https://www.googleapis.com/auth/gmail.send"},
			AuthURL:      "https://accounts.example.com/authorize",
			TokenURL:     tokenURL,
		},
		TokenStore: store,
	})
	manager.now = func() time.Time { return now }

	return manager
}

func tokenEndpoint(t *testing.T, response domain.OAuthTokenResponse, calls *atomic.Int64) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(response))
	}))
}

func TestBuildAuthorizationURL(t *testing.T) {
	manager := newTestManager(newMemTokenStore(), "https://token.example.com", time.Now())
	manager.descriptor.Scopes = []string{"scope.a", "scope.b"}
	manager.descriptor.AuthParams = map[string]string{"access_type": "offline"}

	rendered := manager.BuildAuthorizationURL("opaque-state", map[string]string{"login_hint": "user@example.com"})

	parsed, err := url.Parse(rendered)
	require.NoError(t, err)

	assert.Equal(t, "accounts.example.com", parsed.Host)

	query := parsed.Query()
	assert.Equal(t, "client-id", query.Get("client_id"))
	assert.Equal(t, "https://app.example.com/oauth/google/callback", query.Get("redirect_uri"))
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "opaque-state", query.Get("state"))
	assert.Equal(t, "scope.a scope.b", query.Get("scope"))
	assert.Equal(t, "offline", query.Get("access_type"))
	assert.Equal(t, "user@example.com", query.Get("login_hint"))
}

func TestExchangeCode_SendsAuthorizationCodeGrant(t *testing.T) {
	var gotForm url.Values

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"a1","refresh_token":"r1","expires_in":3600}`)
	}))
	defer srv.Close()

	manager := newTestManager(newMemTokenStore(), srv.URL, time.Now())

	response, err := manager.ExchangeCode(context.Background(), "auth-code")
	require.NoError(t, err)

	assert.Equal(t, "authorization_code", gotForm.Get("grant_type"))
	assert.Equal(t, "auth-code", gotForm.Get("code"))
	assert.Equal(t, "client-id", gotForm.Get("client_id"))
	assert.Equal(t, "client-secret", gotForm.Get("client_secret"))
	assert.Equal(t, "https://app.example.com/oauth/google/callback", gotForm.Get("redirect_uri"))

	assert.Equal(t, "a1", response.AccessToken)
	assert.Equal(t, "r1", response.RefreshToken)
	assert.EqualValues(t, 3600, response.ExpiresIn)
}

func TestExchangeCode_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant","error_description":"Code was already redeemed"}`)
	}))
	defer srv.Close()

	store := newMemTokenStore()
	manager := newTestManager(store, srv.URL, time.Now())

	_, err := manager.ExchangeCode(context.Background(), "auth-code")
	assert.ErrorIs(t, err, domain.ErrExchangeFailed)
	assert.Contains(t, err.Error(), "Code was already redeemed")

	// A failed exchange never writes a record.
	assert.Empty(t, store.tokens)
}

func TestPersistTokens(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := newMemTokenStore()
	manager := newTestManager(store, "https://token.example.com", now)

	first, err := manager.PersistTokens(context.Background(), "user-1", domain.OAuthTokenResponse{
		AccessToken:  "a1",
		RefreshToken: "r1",
		ExpiresIn:    3600,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.Equal(t, now.Add(time.Hour), first.ExpiresAt)
	assert.Equal(t, []string{"https://www.googleapis.com/auth/gmail.send"}, first.Scopes)

	// A response without a refresh token keeps the stored one.
	second, err := manager.PersistTokens(context.Background(), "user-1", domain.OAuthTokenResponse{
		AccessToken: "a2",
		ExpiresIn:   1800,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "existing record keeps its identifier")
	assert.Equal(t, "a2", second.AccessToken)
	assert.Equal(t, "r1", second.RefreshToken)
	assert.Equal(t, now.Add(30*time.Minute), second.ExpiresAt)

	stored, err := store.Get(context.Background(), "user-1", domain.OAuthProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, second, stored)
}

func TestPersistTokens_DefaultLifetime(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	manager := newTestManager(newMemTokenStore(), "https://token.example.com", now)

	token, err := manager.PersistTokens(context.Background(), "user-1", domain.OAuthTokenResponse{
		AccessToken: "a1",
	})
	require.NoError(t, err)

	assert.Equal(t, now.Add(time.Hour), token.ExpiresAt)
}

func TestGetValidAccessToken_NotLinked(t *testing.T) {
	manager := newTestManager(newMemTokenStore(), "https://token.example.com", time.Now())

	_, err := manager.GetValidAccessToken(context.Background(), "user-1")
	assert.ErrorIs(t, err, domain.ErrNotLinked)
}

func TestGetValidAccessToken_FreshTokenReturnedUnchanged(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	var calls atomic.Int64
	srv := tokenEndpoint(t, domain.OAuthTokenResponse{AccessToken: "a2"}, &calls)
	defer srv.Close()

	store := newMemTokenStore()
	manager := newTestManager(store, srv.URL, now)

	require.NoError(t, store.Upsert(context.Background(), domain.OAuthToken{
		ID:           "tok-1",
		UserID:       "user-1",
		Provider:     domain.OAuthProviderGoogle,
		AccessToken:  "a1",
		RefreshToken: "r1",
		ExpiresAt:    now.Add(5 * time.Minute),
	}))

	accessToken, err := manager.GetValidAccessToken(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "a1", accessToken)
	assert.EqualValues(t, 0, calls.Load(), "fresh token must not trigger a refresh")
}

func TestGetValidAccessToken_RefreshesExpiringToken(t *testing.T) {
	start := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"a2","expires_in":3600}`)
	}))
	defer srv.Close()

	store := newMemTokenStore()
	manager := newTestManager(store, srv.URL, start)

	// Linked at start with one hour of validity.
	_, err := manager.PersistTokens(context.Background(), "u1", domain.OAuthTokenResponse{
		AccessToken:  "a1",
		RefreshToken: "r1",
		ExpiresIn:    3600,
	})
	require.NoError(t, err)

	// 3580s later the token is inside the five-minute window.
	callTime := start.Add(3580 * time.Second)
	manager.now = func() time.Time { return callTime }

	accessToken, err := manager.GetValidAccessToken(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "a2", accessToken)

	assert.Equal(t, "refresh_token", gotForm.Get("grant_type"))
	assert.Equal(t, "r1", gotForm.Get("refresh_token"))

	stored, err := store.Get(context.Background(), "u1", domain.OAuthProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "a2", stored.AccessToken)
	assert.Equal(t, "r1", stored.RefreshToken, "refresh token survives a response that omits it")
	assert.Equal(t, callTime.Add(time.Hour), stored.ExpiresAt)
}

func TestGetValidAccessToken_RefreshUnavailable(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	store := newMemTokenStore()
	manager := newTestManager(store, "https://token.example.com", now)

	require.NoError(t, store.Upsert(context.Background(), domain.OAuthToken{
		ID:          "tok-1",
		UserID:      "user-1",
		Provider:    domain.OAuthProviderGoogle,
		AccessToken: "a1",
		ExpiresAt:   now.Add(time.Minute),
	}))

	_, err := manager.GetValidAccessToken(context.Background(), "user-1")
	assert.ErrorIs(t, err, domain.ErrRefreshUnavailable)
}

func TestGetValidAccessToken_RefreshFailureLeavesRecordUntouched(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant"}`)
	}))
	defer srv.Close()

	store := newMemTokenStore()
	manager := newTestManager(store, srv.URL, now)

	stale := domain.OAuthToken{
		ID:           "tok-1",
		UserID:       "user-1",
		Provider:     domain.OAuthProviderGoogle,
		AccessToken:  "a1",
		RefreshToken: "r1",
		ExpiresAt:    now.Add(time.Minute),
	}
	require.NoError(t, store.Upsert(context.Background(), stale))

	_, err := manager.GetValidAccessToken(context.Background(), "user-1")
	assert.ErrorIs(t, err, domain.ErrRefreshFailed)

	stored, err := store.Get(context.Background(), "user-1", domain.OAuthProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, stale, stored)
}

func TestGetValidAccessToken_DisabledRefreshSkipsExpiryCheck(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	var calls atomic.Int64
	srv := tokenEndpoint(t, domain.OAuthTokenResponse{AccessToken: "a2"}, &calls)
	defer srv.Close()

	store := newMemTokenStore()
	manager := newTestManager(store, srv.URL, now)
	manager.descriptor.DisableRefresh = true

	// Long past expiry; the token is still served as-is.
	require.NoError(t, store.Upsert(context.Background(), domain.OAuthToken{
		ID:          "tok-1",
		UserID:      "user-1",
		Provider:    domain.OAuthProviderGoogle,
		AccessToken: "workspace-token",
		ExpiresAt:   now.Add(-24 * time.Hour),
	}))

	accessToken, err := manager.GetValidAccessToken(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "workspace-token", accessToken)
	assert.EqualValues(t, 0, calls.Load())
}

func TestGetValidAccessToken_ConcurrentCallersRefreshOnce(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	var calls atomic.Int64
	srv := tokenEndpoint(t, domain.OAuthTokenResponse{AccessToken: "a2", ExpiresIn: 3600}, &calls)
	defer srv.Close()

	store := newMemTokenStore()
	manager := newTestManager(store, srv.URL, now)

	require.NoError(t, store.Upsert(context.Background(), domain.OAuthToken{
		ID:           "tok-1",
		UserID:       "user-1",
		Provider:     domain.OAuthProviderGoogle,
		AccessToken:  "a1",
		RefreshToken: "r1",
		ExpiresAt:    now.Add(time.Minute),
	}))

	const concurrency = 8

	var wg sync.WaitGroup
	results := make([]string, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			accessToken, err := manager.GetValidAccessToken(context.Background(), "user-1")
			assert.NoError(t, err)
			results[i] = accessToken
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load(), "concurrent expiring reads must share one refresh")
	for _, accessToken := range results {
		assert.Equal(t, "a2", accessToken)
	}
}

func TestRevoke(t *testing.T) {
	now := time.Now()
	store := newMemTokenStore()
	manager := newTestManager(store, "https://token.example.com", now)

	_, err := manager.PersistTokens(context.Background(), "user-1", domain.OAuthTokenResponse{
		AccessToken: "a1",
		ExpiresIn:   3600,
	})
	require.NoError(t, err)

	require.NoError(t, manager.Revoke(context.Background(), "user-1"))

	_, err = manager.GetValidAccessToken(context.Background(), "user-1")
	assert.ErrorIs(t, err, domain.ErrNotLinked)

	// Revoking again is a no-op.
	assert.NoError(t, manager.Revoke(context.Background(), "user-1"))
}

func TestFetchProfile_NormalizesCommonFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer a1", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"sub":"123","email":"user@example.com","name":"User Example"}`)
	}))
	defer srv.Close()

	manager := newTestManager(newMemTokenStore(), "https://token.example.com", time.Now())
	manager.descriptor.ProfileURL = srv.URL

	profile, err := manager.FetchProfile(context.Background(), "a1")
	require.NoError(t, err)

	assert.Equal(t, domain.OAuthUserProfile{
		ID:    "123",
		Email: "user@example.com",
		Name:  "User Example",
	}, profile)
}
