package domain

import (
	"context"
	"errors"
	"time"
)

var ErrWidgetNotFound = errors.New("widget not found")

type WidgetKind string

const (
	WidgetKindChatBubble WidgetKind = "chat_bubble"
	WidgetKindInline     WidgetKind = "inline"
	WidgetKindFullPage   WidgetKind = "full_page"
)

func (k WidgetKind) Valid() bool {
	switch k {
	case WidgetKindChatBubble, WidgetKindInline, WidgetKindFullPage:
		return true
	}

	return false
}

// Widget is an embeddable surface bound to an agent. EmbedKey is the public
// handle the embed script uses; it carries no session.
type Widget struct {
	ID        string         `json:"id"`
	AgentID   string         `json:"agent_id"`
	UserID    string         `json:"user_id"`
	Name      string         `json:"name"`
	Kind      WidgetKind     `json:"kind"`
	Settings  map[string]any `json:"settings"`
	EmbedKey  string         `json:"embed_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type WidgetStore interface {
	Create(ctx context.Context, widget Widget) error
	Get(ctx context.Context, id string, userID string) (Widget, error)
	ListByAgent(ctx context.Context, agentID string, userID string) ([]Widget, error)
	Update(ctx context.Context, widget Widget) error
	Delete(ctx context.Context, id string, userID string) error
	// GetByEmbedKey is the unauthenticated lookup used by the embed endpoint.
	GetByEmbedKey(ctx context.Context, embedKey string) (Widget, error)
}
