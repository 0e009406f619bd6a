package managers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agentdock/agentdock/pkg/domain"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
)

const (
	slackAuthURL     = "https://slack.com/oauth/v2/authorize"
	slackTokenURL    = "https://slack.com/api/oauth.v2.access"
	slackIdentityURL = "https://slack.com/api/users.identity"

	notionAuthURL    = "https://api.notion.com/v1/oauth/authorize"
	notionTokenURL   = "https://api.notion.com/v1/oauth/token"
	notionUsersMeURL = "https://api.notion.com/v1/users/me"
	notionAPIVersion = "2022-06-28"

	googleProfileURL    = "https://openidconnect.googleapis.com/v1/userinfo"
	microsoftProfileURL = "https://graph.microsoft.com/v1.0/me"
)

// googleServiceScopes maps the platform's Google service toggles to the
// scopes each service needs. The rendered scope set is the deduplicated
// union over enabled services.
var googleServiceScopes = map[string][]string{
	"gmail": {
		"https://www.googleapis.com/auth/gmail.send",
		"https://www.googleapis.com/auth/gmail.readonly",
	},
	"sheets": {
		"https://www.googleapis.com/auth/spreadsheets",
	},
	"calendar": {
		"https://www.googleapis.com/auth/calendar",
	},
	"drive": {
		"https://www.googleapis.com/auth/drive",
	},
}

var microsoftServiceScopes = map[string][]string{
	"mail": {
		"Mail.Read",
		"Mail.Send",
	},
	"calendar": {
		"Calendars.ReadWrite",
	},
	"files": {
		"Files.ReadWrite",
	},
}

// microsoftBaseScopes are requested for every Microsoft link regardless of
// enabled services.
var microsoftBaseScopes = []string{"openid", "profile", "email", "offline_access"}

var slackScopes = []string{"chat:write", "channels:read", "users:read", "users:read.email"}

// ProviderCredentials is the externally supplied configuration for one
// provider application.
type ProviderCredentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

func (c ProviderCredentials) configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type ProviderRegistryConfig struct {
	Google            ProviderCredentials
	GoogleServices    []string
	Microsoft         ProviderCredentials
	MicrosoftServices []string
	Slack             ProviderCredentials
	Notion            ProviderCredentials
}

// ProviderRegistry holds one lifecycle manager per configured provider.
type ProviderRegistry struct {
	managers map[domain.OAuthProvider]*OAuthManager
}

type ProviderRegistryDependencies struct {
	Config     ProviderRegistryConfig
	TokenStore domain.OAuthTokenStore
	HTTPClient *http.Client
}

func NewProviderRegistry(deps ProviderRegistryDependencies) *ProviderRegistry {
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	registry := &ProviderRegistry{
		managers: make(map[domain.OAuthProvider]*OAuthManager),
	}

	if deps.Config.Google.configured() {
		registry.add(NewGoogleManager(deps.Config.Google, deps.Config.GoogleServices, deps.TokenStore, httpClient))
	}
	if deps.Config.Microsoft.configured() {
		registry.add(NewMicrosoftManager(deps.Config.Microsoft, deps.Config.MicrosoftServices, deps.TokenStore, httpClient))
	}
	if deps.Config.Slack.configured() {
		registry.add(NewSlackManager(deps.Config.Slack, deps.TokenStore, httpClient))
	}
	if deps.Config.Notion.configured() {
		registry.add(NewNotionManager(deps.Config.Notion, deps.TokenStore, httpClient))
	}

	return registry
}

func (r *ProviderRegistry) add(manager *OAuthManager) {
	r.managers[manager.Provider()] = manager
}

func (r *ProviderRegistry) Get(provider domain.OAuthProvider) (*OAuthManager, bool) {
	manager, ok := r.managers[provider]
	return manager, ok
}

func (r *ProviderRegistry) Providers() []domain.OAuthProvider {
	providers := make([]domain.OAuthProvider, 0, len(r.managers))
	for provider := range r.managers {
		providers = append(providers, provider)
	}

	return providers
}

// NewGoogleManager builds the Google lifecycle manager. The scope set is the
// union of the enabled services' scope lists, and the authorization URL asks
// for offline access with a consent prompt so a refresh token is issued.
func NewGoogleManager(credentials ProviderCredentials, services []string, store domain.OAuthTokenStore, httpClient *http.Client) *OAuthManager {
	return NewOAuthManager(OAuthManagerDependencies{
		Descriptor: ProviderDescriptor{
			Name:         domain.OAuthProviderGoogle,
			ClientID:     credentials.ClientID,
			ClientSecret: credentials.ClientSecret,
			RedirectURI:  credentials.RedirectURI,
			Scopes:       unionScopes(googleServiceScopes, services, nil),
			AuthURL:      google.Endpoint.AuthURL,
			TokenURL:     google.Endpoint.TokenURL,
			ProfileURL:   googleProfileURL,
			AuthParams: map[string]string{
				"access_type":            "offline",
				"prompt":                 "consent",
				"include_granted_scopes": "true",
			},
		},
		TokenStore: store,
		HTTPClient: httpClient,
	})
}

func NewMicrosoftManager(credentials ProviderCredentials, services []string, store domain.OAuthTokenStore, httpClient *http.Client) *OAuthManager {
	endpoint := microsoft.AzureADEndpoint("common")

	return NewOAuthManager(OAuthManagerDependencies{
		Descriptor: ProviderDescriptor{
			Name:         domain.OAuthProviderMicrosoft,
			ClientID:     credentials.ClientID,
			ClientSecret: credentials.ClientSecret,
			RedirectURI:  credentials.RedirectURI,
			Scopes:       unionScopes(microsoftServiceScopes, services, microsoftBaseScopes),
			AuthURL:      endpoint.AuthURL,
			TokenURL:     endpoint.TokenURL,
			ProfileURL:   microsoftProfileURL,
		},
		TokenStore: store,
		HTTPClient: httpClient,
	})
}

// NewSlackManager builds the Slack lifecycle manager. Slack reports exchange
// failures inside a 200 response through an ok flag, so the exchange is
// overridden to check it.
func NewSlackManager(credentials ProviderCredentials, store domain.OAuthTokenStore, httpClient *http.Client) *OAuthManager {
	descriptor := ProviderDescriptor{
		Name:         domain.OAuthProviderSlack,
		ClientID:     credentials.ClientID,
		ClientSecret: credentials.ClientSecret,
		RedirectURI:  credentials.RedirectURI,
		Scopes:       slackScopes,
		AuthURL:      slackAuthURL,
		TokenURL:     slackTokenURL,
		ProfileURL:   slackIdentityURL,
	}

	return NewOAuthManager(OAuthManagerDependencies{
		Descriptor: descriptor,
		Overrides: ProviderOverrides{
			ExchangeCode: slackExchange(descriptor, httpClient),
			FetchProfile: slackProfile(httpClient, descriptor.ProfileURL),
		},
		TokenStore: store,
		HTTPClient: httpClient,
	})
}

// NewNotionManager builds the Notion lifecycle manager. Notion expects a JSON
// exchange body authenticated with Basic credentials, grants workspace-level
// tokens without scopes, and never issues refresh tokens.
func NewNotionManager(credentials ProviderCredentials, store domain.OAuthTokenStore, httpClient *http.Client) *OAuthManager {
	descriptor := ProviderDescriptor{
		Name:         domain.OAuthProviderNotion,
		ClientID:     credentials.ClientID,
		ClientSecret: credentials.ClientSecret,
		RedirectURI:  credentials.RedirectURI,
		AuthURL:      notionAuthURL,
		TokenURL:     notionTokenURL,
		ProfileURL:   notionUsersMeURL,
		AuthParams: map[string]string{
			"owner": "user",
		},
		DisableRefresh: true,
	}

	return NewOAuthManager(OAuthManagerDependencies{
		Descriptor: descriptor,
		Overrides: ProviderOverrides{
			ExchangeCode: notionExchange(descriptor, httpClient),
			FetchProfile: notionProfile(httpClient, descriptor.ProfileURL),
		},
		TokenStore: store,
		HTTPClient: httpClient,
	})
}

// unionScopes builds the deduplicated union of the enabled services' scopes,
// preserving first-seen order so rendered URLs stay stable.
func unionScopes(serviceScopes map[string][]string, services []string, base []string) []string {
	seen := make(map[string]struct{})
	var scopes []string

	appendScope := func(scope string) {
		if _, ok := seen[scope]; ok {
			return
		}
		seen[scope] = struct{}{}
		scopes = append(scopes, scope)
	}

	for _, scope := range base {
		appendScope(scope)
	}

	for _, service := range services {
		for _, scope := range serviceScopes[service] {
			appendScope(scope)
		}
	}

	return scopes
}

type slackTokenResponse struct {
	OK           bool   `json:"ok"`
	Error        string `json:"error"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}

func slackExchange(descriptor ProviderDescriptor, client *http.Client) func(ctx context.Context, code string) (domain.OAuthTokenResponse, error) {
	return func(ctx context.Context, code string) (domain.OAuthTokenResponse, error) {
		form := url.Values{}
		form.Set("grant_type", "authorization_code")
		form.Set("code", code)
		form.Set("redirect_uri", descriptor.RedirectURI)
		form.Set("client_id", descriptor.ClientID)
		form.Set("client_secret", descriptor.ClientSecret)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, descriptor.TokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return domain.OAuthTokenResponse{}, fmt.Errorf("%w: failed to build request: %s", domain.ErrExchangeFailed, err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := client.Do(req)
		if err != nil {
			return domain.OAuthTokenResponse{}, fmt.Errorf("%w: %s", domain.ErrExchangeFailed, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
		if err != nil {
			return domain.OAuthTokenResponse{}, fmt.Errorf("%w: failed to read response: %s", domain.ErrExchangeFailed, err)
		}

		if resp.StatusCode >= http.StatusMultipleChoices {
			return domain.OAuthTokenResponse{}, fmt.Errorf("%w: status %d", domain.ErrExchangeFailed, resp.StatusCode)
		}

		var slackResponse slackTokenResponse
		if err := json.Unmarshal(body, &slackResponse); err != nil {
			return domain.OAuthTokenResponse{}, fmt.Errorf("%w: failed to decode response: %s", domain.ErrExchangeFailed, err)
		}

		// Slack returns 200 with ok=false on rejected codes.
		if !slackResponse.OK {
			return domain.OAuthTokenResponse{}, fmt.Errorf("%w: %s", domain.ErrExchangeFailed, slackResponse.Error)
		}

		return domain.OAuthTokenResponse{
			AccessToken:  slackResponse.AccessToken,
			RefreshToken: slackResponse.RefreshToken,
			TokenType:    slackResponse.TokenType,
			ExpiresIn:    slackResponse.ExpiresIn,
			Scope:        strings.ReplaceAll(slackResponse.Scope, ",", " "),
		}, nil
	}
}

func slackProfile(client *http.Client, identityURL string) func(ctx context.Context, accessToken string) (domain.OAuthUserProfile, error) {
	return func(ctx context.Context, accessToken string) (domain.OAuthUserProfile, error) {
		raw, err := getJSON(ctx, client, identityURL, accessToken, nil)
		if err != nil {
			return domain.OAuthUserProfile{}, fmt.Errorf("failed to fetch slack identity: %w", err)
		}

		if ok, _ := raw["ok"].(bool); !ok {
			reason, _ := raw["error"].(string)
			return domain.OAuthUserProfile{}, fmt.Errorf("slack identity request failed: %s", reason)
		}

		user, _ := raw["user"].(map[string]any)

		return domain.OAuthUserProfile{
			ID:    firstString(user, "id"),
			Email: firstString(user, "email"),
			Name:  firstString(user, "name"),
		}, nil
	}
}

func notionExchange(descriptor ProviderDescriptor, client *http.Client) func(ctx context.Context, code string) (domain.OAuthTokenResponse, error) {
	return func(ctx context.Context, code string) (domain.OAuthTokenResponse, error) {
		payload, err := json.Marshal(map[string]string{
			"grant_type":   "authorization_code",
			"code":         code,
			"redirect_uri": descriptor.RedirectURI,
		})
		if err != nil {
			return domain.OAuthTokenResponse{}, fmt.Errorf("%w: failed to encode request: %s", domain.ErrExchangeFailed, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, descriptor.TokenURL, bytes.NewReader(payload))
		if err != nil {
			return domain.OAuthTokenResponse{}, fmt.Errorf("%w: failed to build request: %s", domain.ErrExchangeFailed, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.SetBasicAuth(descriptor.ClientID, descriptor.ClientSecret)

		resp, err := client.Do(req)
		if err != nil {
			return domain.OAuthTokenResponse{}, fmt.Errorf("%w: %s", domain.ErrExchangeFailed, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
		if err != nil {
			return domain.OAuthTokenResponse{}, fmt.Errorf("%w: failed to read response: %s", domain.ErrExchangeFailed, err)
		}

		if resp.StatusCode >= http.StatusMultipleChoices {
			return domain.OAuthTokenResponse{}, fmt.Errorf("%w: %s", domain.ErrExchangeFailed, errorReason(body))
		}

		var response domain.OAuthTokenResponse
		if err := json.Unmarshal(body, &response); err != nil {
			return domain.OAuthTokenResponse{}, fmt.Errorf("%w: failed to decode response: %s", domain.ErrExchangeFailed, err)
		}

		if response.AccessToken == "" {
			return domain.OAuthTokenResponse{}, fmt.Errorf("%w: %s", domain.ErrExchangeFailed, errorReason(body))
		}

		return response, nil
	}
}

func notionProfile(client *http.Client, usersMeURL string) func(ctx context.Context, accessToken string) (domain.OAuthUserProfile, error) {
	return func(ctx context.Context, accessToken string) (domain.OAuthUserProfile, error) {
		raw, err := getJSON(ctx, client, usersMeURL, accessToken, map[string]string{
			"Notion-Version": notionAPIVersion,
		})
		if err != nil {
			return domain.OAuthUserProfile{}, fmt.Errorf("failed to fetch notion bot user: %w", err)
		}

		profile := domain.OAuthUserProfile{
			ID:   firstString(raw, "id"),
			Name: firstString(raw, "name"),
		}

		// Workspace tokens identify a bot; the human identity sits under the
		// bot owner.
		if bot, ok := raw["bot"].(map[string]any); ok {
			if owner, ok := bot["owner"].(map[string]any); ok {
				if user, ok := owner["user"].(map[string]any); ok {
					profile.ID = firstString(user, "id")
					profile.Name = firstString(user, "name")
					if person, ok := user["person"].(map[string]any); ok {
						profile.Email = firstString(person, "email")
					}
				}
			}
		}

		return profile, nil
	}
}
