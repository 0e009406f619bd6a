package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentdock/agentdock/pkg/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AgentStore struct {
	pool *pgxpool.Pool
}

func NewAgentStore(pool *pgxpool.Pool) *AgentStore {
	return &AgentStore{pool: pool}
}

func (s *AgentStore) Create(ctx context.Context, agent domain.Agent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO agents (id, user_id, name, description, model, system_prompt, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		agent.ID, agent.UserID, agent.Name, agent.Description, agent.Model,
		agent.SystemPrompt, agent.CreatedAt, agent.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	return nil
}

func (s *AgentStore) Get(ctx context.Context, id string, userID string) (domain.Agent, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, name, description, model, system_prompt, created_at, updated_at
		FROM agents
		WHERE id = $1 AND user_id = $2`,
		id, userID,
	)

	agent, err := scanAgent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Agent{}, domain.ErrAgentNotFound
	}
	if err != nil {
		return domain.Agent{}, fmt.Errorf("failed to get agent: %w", err)
	}

	return agent, nil
}

func (s *AgentStore) ListByUser(ctx context.Context, userID string) ([]domain.Agent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, name, description, model, system_prompt, created_at, updated_at
		FROM agents
		WHERE user_id = $1
		ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var agents []domain.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agents = append(agents, agent)
	}

	return agents, rows.Err()
}

func (s *AgentStore) Update(ctx context.Context, agent domain.Agent) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE agents
		SET name = $1, description = $2, model = $3, system_prompt = $4, updated_at = $5
		WHERE id = $6 AND user_id = $7`,
		agent.Name, agent.Description, agent.Model, agent.SystemPrompt,
		agent.UpdatedAt, agent.ID, agent.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAgentNotFound
	}

	return nil
}

func (s *AgentStore) Delete(ctx context.Context, id string, userID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM agents WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAgentNotFound
	}

	return nil
}

func scanAgent(row pgx.Row) (domain.Agent, error) {
	var agent domain.Agent

	err := row.Scan(&agent.ID, &agent.UserID, &agent.Name, &agent.Description,
		&agent.Model, &agent.SystemPrompt, &agent.CreatedAt, &agent.UpdatedAt)
	if err != nil {
		return domain.Agent{}, err
	}

	return agent, nil
}
