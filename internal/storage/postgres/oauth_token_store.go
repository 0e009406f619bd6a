package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agentdock/agentdock/pkg/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OAuthTokenStore struct {
	pool *pgxpool.Pool
}

func NewOAuthTokenStore(pool *pgxpool.Pool) *OAuthTokenStore {
	return &OAuthTokenStore{pool: pool}
}

// Upsert relies on the (user_id, provider) unique constraint so concurrent
// writers for the same pair cannot leave duplicate rows.
func (s *OAuthTokenStore) Upsert(ctx context.Context, token domain.OAuthToken) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO oauth_tokens (id, user_id, provider, access_token, refresh_token, expires_at, scopes, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			scopes = EXCLUDED.scopes,
			updated_at = EXCLUDED.updated_at`,
		token.ID, token.UserID, string(token.Provider), token.AccessToken, token.RefreshToken,
		token.ExpiresAt, strings.Join(token.Scopes, " "), token.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert oauth token: %w", err)
	}

	return nil
}

func (s *OAuthTokenStore) Get(ctx context.Context, userID string, provider domain.OAuthProvider) (domain.OAuthToken, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, provider, access_token, refresh_token, expires_at, scopes, updated_at
		FROM oauth_tokens
		WHERE user_id = $1 AND provider = $2`,
		userID, string(provider),
	)

	token, err := scanOAuthToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.OAuthToken{}, domain.ErrNotLinked
	}
	if err != nil {
		return domain.OAuthToken{}, fmt.Errorf("failed to get oauth token: %w", err)
	}

	return token, nil
}

func (s *OAuthTokenStore) Delete(ctx context.Context, userID string, provider domain.OAuthProvider) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM oauth_tokens WHERE user_id = $1 AND provider = $2`,
		userID, string(provider),
	)
	if err != nil {
		return fmt.Errorf("failed to delete oauth token: %w", err)
	}

	return nil
}

func (s *OAuthTokenStore) ListByUser(ctx context.Context, userID string) ([]domain.OAuthToken, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, provider, access_token, refresh_token, expires_at, scopes, updated_at
		FROM oauth_tokens
		WHERE user_id = $1
		ORDER BY provider`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list oauth tokens: %w", err)
	}
	defer rows.Close()

	var tokens []domain.OAuthToken
	for rows.Next() {
		token, err := scanOAuthToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan oauth token: %w", err)
		}
		tokens = append(tokens, token)
	}

	return tokens, rows.Err()
}

func scanOAuthToken(row pgx.Row) (domain.OAuthToken, error) {
	var token domain.OAuthToken
	var provider, scopes string

	err := row.Scan(&token.ID, &token.UserID, &provider, &token.AccessToken,
		&token.RefreshToken, &token.ExpiresAt, &scopes, &token.UpdatedAt)
	if err != nil {
		return domain.OAuthToken{}, err
	}

	token.Provider = domain.OAuthProvider(provider)
	if scopes != "" {
		token.Scopes = strings.Fields(scopes)
	}

	return token, nil
}
