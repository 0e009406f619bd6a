package managers

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/agentdock/agentdock/pkg/domain"

	"github.com/rs/zerolog/log"
)

// ConnectionTester verifies a linked provider account still works by hitting
// the provider's identity endpoint with an authenticated client.
type ConnectionTester struct {
	registry       *ProviderRegistry
	clientProvider *OAuthHTTPClientProvider
}

func NewConnectionTester(registry *ProviderRegistry, clientProvider *OAuthHTTPClientProvider) *ConnectionTester {
	return &ConnectionTester{
		registry:       registry,
		clientProvider: clientProvider,
	}
}

func (t *ConnectionTester) TestConnection(ctx context.Context, userID string, provider domain.OAuthProvider) error {
	manager, ok := t.registry.Get(provider)
	if !ok {
		return fmt.Errorf("provider %s is not configured", provider)
	}

	client, err := t.clientProvider.GetClient(ctx, userID, provider)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manager.descriptor.ProfileURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build connection test request: %w", err)
	}

	if manager.descriptor.Name == domain.OAuthProviderNotion {
		req.Header.Set("Notion-Version", notionAPIVersion)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("connection test request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("connection test returned status %d", resp.StatusCode)
	}

	log.Debug().
		Str("provider", string(provider)).
		Str("user_id", userID).
		Msg("Connection test succeeded")

	return nil
}
