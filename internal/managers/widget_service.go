package managers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agentdock/agentdock/pkg/domain"

	"github.com/google/uuid"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
)

// WidgetService implements widget CRUD scoped to agents the caller owns, plus
// the unauthenticated embed lookup.
type WidgetService struct {
	widgets domain.WidgetStore
	agents  domain.AgentStore
	now     func() time.Time
}

func NewWidgetService(widgets domain.WidgetStore, agents domain.AgentStore) *WidgetService {
	return &WidgetService{
		widgets: widgets,
		agents:  agents,
		now:     time.Now,
	}
}

type CreateWidgetParams struct {
	Name     string
	Kind     domain.WidgetKind
	Settings map[string]any
}

func (s *WidgetService) CreateWidget(ctx context.Context, userID string, agentID string, params CreateWidgetParams) (domain.Widget, error) {
	if strings.TrimSpace(params.Name) == "" {
		return domain.Widget{}, fmt.Errorf("widget name is required")
	}
	if !params.Kind.Valid() {
		return domain.Widget{}, fmt.Errorf("unknown widget kind %q", params.Kind)
	}

	// The agent lookup doubles as the ownership check.
	if _, err := s.agents.Get(ctx, agentID, userID); err != nil {
		return domain.Widget{}, err
	}

	now := s.now()

	widget := domain.Widget{
		ID:        xid.New().String(),
		AgentID:   agentID,
		UserID:    userID,
		Name:      params.Name,
		Kind:      params.Kind,
		Settings:  params.Settings,
		EmbedKey:  uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if widget.Settings == nil {
		widget.Settings = map[string]any{}
	}

	if err := s.widgets.Create(ctx, widget); err != nil {
		return domain.Widget{}, fmt.Errorf("failed to create widget: %w", err)
	}

	log.Info().Str("widget_id", widget.ID).Str("agent_id", agentID).Msg("Created widget")

	return widget, nil
}

func (s *WidgetService) GetWidget(ctx context.Context, userID string, widgetID string) (domain.Widget, error) {
	return s.widgets.Get(ctx, widgetID, userID)
}

func (s *WidgetService) ListWidgets(ctx context.Context, userID string, agentID string) ([]domain.Widget, error) {
	if _, err := s.agents.Get(ctx, agentID, userID); err != nil {
		return nil, err
	}

	return s.widgets.ListByAgent(ctx, agentID, userID)
}

type UpdateWidgetParams struct {
	Name     *string
	Kind     *domain.WidgetKind
	Settings map[string]any
}

func (s *WidgetService) UpdateWidget(ctx context.Context, userID string, widgetID string, params UpdateWidgetParams) (domain.Widget, error) {
	widget, err := s.widgets.Get(ctx, widgetID, userID)
	if err != nil {
		return domain.Widget{}, err
	}

	if params.Name != nil {
		if strings.TrimSpace(*params.Name) == "" {
			return domain.Widget{}, fmt.Errorf("widget name is required")
		}
		widget.Name = *params.Name
	}
	if params.Kind != nil {
		if !params.Kind.Valid() {
			return domain.Widget{}, fmt.Errorf("unknown widget kind %q", *params.Kind)
		}
		widget.Kind = *params.Kind
	}
	if params.Settings != nil {
		widget.Settings = params.Settings
	}

	widget.UpdatedAt = s.now()

	if err := s.widgets.Update(ctx, widget); err != nil {
		return domain.Widget{}, fmt.Errorf("failed to update widget: %w", err)
	}

	return widget, nil
}

func (s *WidgetService) DeleteWidget(ctx context.Context, userID string, widgetID string) error {
	return s.widgets.Delete(ctx, widgetID, userID)
}

// GetEmbeddedWidget serves the public embed endpoint. The embed key is the
// only credential; no session is involved.
func (s *WidgetService) GetEmbeddedWidget(ctx context.Context, embedKey string) (domain.Widget, error) {
	return s.widgets.GetByEmbedKey(ctx, embedKey)
}
