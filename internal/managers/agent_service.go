package managers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agentdock/agentdock/pkg/domain"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
)

// AgentService implements ownership-scoped CRUD over agents. Every lookup is
// keyed by the calling user so one user can never touch another's agents.
type AgentService struct {
	store domain.AgentStore
	now   func() time.Time
}

func NewAgentService(store domain.AgentStore) *AgentService {
	return &AgentService{
		store: store,
		now:   time.Now,
	}
}

type CreateAgentParams struct {
	Name         string
	Description  string
	Model        string
	SystemPrompt string
}

func (s *AgentService) CreateAgent(ctx context.Context, userID string, params CreateAgentParams) (domain.Agent, error) {
	if strings.TrimSpace(params.Name) == "" {
		return domain.Agent{}, fmt.Errorf("agent name is required")
	}

	now := s.now()

	agent := domain.Agent{
		ID:           xid.New().String(),
		UserID:       userID,
		Name:         params.Name,
		Description:  params.Description,
		Model:        params.Model,
		SystemPrompt: params.SystemPrompt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Create(ctx, agent); err != nil {
		return domain.Agent{}, fmt.Errorf("failed to create agent: %w", err)
	}

	log.Info().Str("agent_id", agent.ID).Str("user_id", userID).Msg("Created agent")

	return agent, nil
}

func (s *AgentService) GetAgent(ctx context.Context, userID string, agentID string) (domain.Agent, error) {
	return s.store.Get(ctx, agentID, userID)
}

func (s *AgentService) ListAgents(ctx context.Context, userID string) ([]domain.Agent, error) {
	return s.store.ListByUser(ctx, userID)
}

type UpdateAgentParams struct {
	Name         *string
	Description  *string
	Model        *string
	SystemPrompt *string
}

func (s *AgentService) UpdateAgent(ctx context.Context, userID string, agentID string, params UpdateAgentParams) (domain.Agent, error) {
	agent, err := s.store.Get(ctx, agentID, userID)
	if err != nil {
		return domain.Agent{}, err
	}

	if params.Name != nil {
		if strings.TrimSpace(*params.Name) == "" {
			return domain.Agent{}, fmt.Errorf("agent name is required")
		}
		agent.Name = *params.Name
	}
	if params.Description != nil {
		agent.Description = *params.Description
	}
	if params.Model != nil {
		agent.Model = *params.Model
	}
	if params.SystemPrompt != nil {
		agent.SystemPrompt = *params.SystemPrompt
	}

	agent.UpdatedAt = s.now()

	if err := s.store.Update(ctx, agent); err != nil {
		return domain.Agent{}, fmt.Errorf("failed to update agent: %w", err)
	}

	return agent, nil
}

func (s *AgentService) DeleteAgent(ctx context.Context, userID string, agentID string) error {
	return s.store.Delete(ctx, agentID, userID)
}
