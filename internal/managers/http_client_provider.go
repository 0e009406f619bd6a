package managers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/agentdock/agentdock/pkg/domain"

	"golang.org/x/oauth2"
)

// OAuthHTTPClientProvider hands out http.Clients that authenticate against a
// provider API with the user's current access token. Going through
// GetValidAccessToken keeps the refresh-on-read policy in the loop.
type OAuthHTTPClientProvider struct {
	registry *ProviderRegistry
}

func NewOAuthHTTPClientProvider(registry *ProviderRegistry) *OAuthHTTPClientProvider {
	return &OAuthHTTPClientProvider{registry: registry}
}

func (p *OAuthHTTPClientProvider) GetClient(ctx context.Context, userID string, provider domain.OAuthProvider) (*http.Client, error) {
	manager, ok := p.registry.Get(provider)
	if !ok {
		return nil, fmt.Errorf("provider %s is not configured", provider)
	}

	accessToken, err := manager.GetValidAccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	config := oauth2.Config{}
	token := &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}

	return config.Client(ctx, token), nil
}
