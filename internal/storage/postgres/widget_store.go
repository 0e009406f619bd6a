package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/agentdock/agentdock/pkg/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WidgetStore struct {
	pool *pgxpool.Pool
}

func NewWidgetStore(pool *pgxpool.Pool) *WidgetStore {
	return &WidgetStore{pool: pool}
}

func (s *WidgetStore) Create(ctx context.Context, widget domain.Widget) error {
	settings, err := json.Marshal(widget.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode widget settings: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO widgets (id, agent_id, user_id, name, kind, settings, embed_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		widget.ID, widget.AgentID, widget.UserID, widget.Name, string(widget.Kind),
		settings, widget.EmbedKey, widget.CreatedAt, widget.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create widget: %w", err)
	}

	return nil
}

func (s *WidgetStore) Get(ctx context.Context, id string, userID string) (domain.Widget, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, agent_id, user_id, name, kind, settings, embed_key, created_at, updated_at
		FROM widgets
		WHERE id = $1 AND user_id = $2`,
		id, userID,
	)

	return scanWidget(row)
}

func (s *WidgetStore) GetByEmbedKey(ctx context.Context, embedKey string) (domain.Widget, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, agent_id, user_id, name, kind, settings, embed_key, created_at, updated_at
		FROM widgets
		WHERE embed_key = $1`,
		embedKey,
	)

	return scanWidget(row)
}

func (s *WidgetStore) ListByAgent(ctx context.Context, agentID string, userID string) ([]domain.Widget, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, agent_id, user_id, name, kind, settings, embed_key, created_at, updated_at
		FROM widgets
		WHERE agent_id = $1 AND user_id = $2
		ORDER BY created_at DESC`,
		agentID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list widgets: %w", err)
	}
	defer rows.Close()

	var widgets []domain.Widget
	for rows.Next() {
		widget, err := scanWidget(rows)
		if err != nil {
			return nil, err
		}
		widgets = append(widgets, widget)
	}

	return widgets, rows.Err()
}

func (s *WidgetStore) Update(ctx context.Context, widget domain.Widget) error {
	settings, err := json.Marshal(widget.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode widget settings: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE widgets
		SET name = $1, kind = $2, settings = $3, updated_at = $4
		WHERE id = $5 AND user_id = $6`,
		widget.Name, string(widget.Kind), settings, widget.UpdatedAt, widget.ID, widget.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update widget: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrWidgetNotFound
	}

	return nil
}

func (s *WidgetStore) Delete(ctx context.Context, id string, userID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM widgets WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete widget: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrWidgetNotFound
	}

	return nil
}

func scanWidget(row pgx.Row) (domain.Widget, error) {
	var widget domain.Widget
	var kind string
	var settings []byte

	err := row.Scan(&widget.ID, &widget.AgentID, &widget.UserID, &widget.Name,
		&kind, &settings, &widget.EmbedKey, &widget.CreatedAt, &widget.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Widget{}, domain.ErrWidgetNotFound
	}
	if err != nil {
		return domain.Widget{}, fmt.Errorf("failed to scan widget: %w", err)
	}

	widget.Kind = domain.WidgetKind(kind)
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &widget.Settings); err != nil {
			return domain.Widget{}, fmt.Errorf("failed to decode widget settings: %w", err)
		}
	}

	return widget, nil
}
