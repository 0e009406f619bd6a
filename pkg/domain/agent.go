package domain

import (
	"context"
	"errors"
	"time"
)

var ErrAgentNotFound = errors.New("agent not found")

// Agent is a user-owned assistant configuration that widgets attach to.
type Agent struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Model        string    `json:"model"`
	SystemPrompt string    `json:"system_prompt"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AgentStore queries are ownership scoped; lookups for an agent the given
// user does not own return ErrAgentNotFound.
type AgentStore interface {
	Create(ctx context.Context, agent Agent) error
	Get(ctx context.Context, id string, userID string) (Agent, error)
	ListByUser(ctx context.Context, userID string) ([]Agent, error)
	Update(ctx context.Context, agent Agent) error
	Delete(ctx context.Context, id string, userID string) error
}
