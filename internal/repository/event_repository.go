package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/kkkkikiki/crowdfund/internal/model"
)

type eventRow struct {
	ID        string `db:"id"`
	Kind      string `db:"kind"`
	Campaign  string `db:"campaign"`
	Payload   string `db:"payload"`
	CreatedAt int64  `db:"created_at"`
}

// EventRepository appends and reads the ledger event outbox
type EventRepository struct{}

// NewEventRepository creates a new event repository
func NewEventRepository() *EventRepository {
	return &EventRepository{}
}

// AppendEvent records an event in the caller's transaction
func (r *EventRepository) AppendEvent(ctx context.Context, db DBExecutor, kind model.EventKind, campaign solana.PublicKey, payload any) (*model.Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event payload: %w", err)
	}

	event := &model.Event{
		ID:        uuid.New(),
		Kind:      kind,
		Campaign:  campaign,
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	}

	query := `
		INSERT INTO ledger_events (id, kind, campaign, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := db.ExecContext(ctx, db.Rebind(query),
		event.ID.String(), string(kind), keyString(campaign), string(body), toMillis(event.CreatedAt)); err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}
	return event, nil
}

// ListEvents returns a campaign's events oldest first. A zero campaign
// lists deployment-level events.
func (r *EventRepository) ListEvents(ctx context.Context, db DBExecutor, campaign solana.PublicKey, limit int) ([]model.Event, error) {
	query := `
		SELECT id, kind, campaign, payload, created_at
		FROM ledger_events
		WHERE campaign = ?
		ORDER BY seq ASC
		LIMIT ?
	`

	var rows []eventRow
	if err := db.SelectContext(ctx, &rows, db.Rebind(query), keyString(campaign), limit); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]model.Event, 0, len(rows))
	for _, row := range rows {
		id, err := uuid.Parse(row.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid event id %q: %w", row.ID, err)
		}
		c, err := parseKey("event campaign", row.Campaign)
		if err != nil {
			return nil, err
		}
		events = append(events, model.Event{
			ID:        id,
			Kind:      model.EventKind(row.Kind),
			Campaign:  c,
			Payload:   json.RawMessage(row.Payload),
			CreatedAt: fromMillis(row.CreatedAt),
		})
	}
	return events, nil
}
