package managers

import (
	"context"
	"sync"
	"testing"

	"github.com/agentdock/agentdock/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memAgentStore struct {
	mu     sync.Mutex
	agents map[string]domain.Agent
}

func newMemAgentStore() *memAgentStore {
	return &memAgentStore{agents: make(map[string]domain.Agent)}
}

func (s *memAgentStore) Create(_ context.Context, agent domain.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[agent.ID] = agent
	return nil
}

func (s *memAgentStore) Get(_ context.Context, id string, userID string) (domain.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[id]
	if !ok || agent.UserID != userID {
		return domain.Agent{}, domain.ErrAgentNotFound
	}

	return agent, nil
}

func (s *memAgentStore) ListByUser(_ context.Context, userID string) ([]domain.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var agents []domain.Agent
	for _, agent := range s.agents {
		if agent.UserID == userID {
			agents = append(agents, agent)
		}
	}

	return agents, nil
}

func (s *memAgentStore) Update(_ context.Context, agent domain.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.agents[agent.ID]
	if !ok || existing.UserID != agent.UserID {
		return domain.ErrAgentNotFound
	}

	s.agents[agent.ID] = agent
	return nil
}

func (s *memAgentStore) Delete(_ context.Context, id string, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[id]
	if !ok || agent.UserID != userID {
		return domain.ErrAgentNotFound
	}

	delete(s.agents, id)
	return nil
}

func TestAgentService_CreateAndGet(t *testing.T) {
	service := NewAgentService(newMemAgentStore())

	agent, err := service.CreateAgent(context.Background(), "user-1", CreateAgentParams{
		Name:  "Support Bot",
		Model: "gpt-4o-mini",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, agent.ID)

	got, err := service.GetAgent(context.Background(), "user-1", agent.ID)
	require.NoError(t, err)
	assert.Equal(t, agent, got)
}

func TestAgentService_CreateRequiresName(t *testing.T) {
	service := NewAgentService(newMemAgentStore())

	_, err := service.CreateAgent(context.Background(), "user-1", CreateAgentParams{Name: "   "})
	assert.Error(t, err)
}

func TestAgentService_OwnershipScoped(t *testing.T) {
	service := NewAgentService(newMemAgentStore())

	agent, err := service.CreateAgent(context.Background(), "user-1", CreateAgentParams{Name: "Mine"})
	require.NoError(t, err)

	_, err = service.GetAgent(context.Background(), "user-2", agent.ID)
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)

	err = service.DeleteAgent(context.Background(), "user-2", agent.ID)
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)

	// The owner still sees it.
	_, err = service.GetAgent(context.Background(), "user-1", agent.ID)
	assert.NoError(t, err)
}

func TestAgentService_PartialUpdate(t *testing.T) {
	service := NewAgentService(newMemAgentStore())

	agent, err := service.CreateAgent(context.Background(), "user-1", CreateAgentParams{
		Name:        "Original",
		Description: "keep me",
	})
	require.NoError(t, err)

	name := "Renamed"
	updated, err := service.UpdateAgent(context.Background(), "user-1", agent.ID, UpdateAgentParams{Name: &name})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "keep me", updated.Description)
}
