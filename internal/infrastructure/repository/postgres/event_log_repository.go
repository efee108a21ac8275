package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/match-tracker/internal/domain/event"
)

// EventLogRepository persists the append-only match event log. seq is a
// bigserial and doubles as the change-stream cursor.
type EventLogRepository struct {
	db *sqlx.DB
}

func NewEventLogRepository(db *sqlx.DB) *EventLogRepository {
	return &EventLogRepository{db: db}
}

func (r *EventLogRepository) Append(ctx context.Context, item event.MatchEvent) error {
	const query = `
		INSERT INTO match_events (event_id, match_id, ts, team, opponent, event_type, event_details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if _, err := r.db.ExecContext(ctx, query,
		item.EventID,
		item.MatchID,
		item.Timestamp,
		item.Team,
		item.Opponent,
		item.EventType,
		item.RawDetails,
	); err != nil {
		return fmt.Errorf("insert match event: %w", err)
	}
	return nil
}

func (r *EventLogRepository) ListByMatch(ctx context.Context, matchID string) ([]event.MatchEvent, error) {
	const query = `
		SELECT seq, event_id, match_id, ts, team, opponent, event_type, event_details
		FROM match_events
		WHERE match_id = $1
		ORDER BY seq`

	var rows []matchEventRow
	if err := r.db.SelectContext(ctx, &rows, query, matchID); err != nil {
		return nil, fmt.Errorf("list match events: %w", err)
	}

	out := make([]event.MatchEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *EventLogRepository) MaxSeq(ctx context.Context) (int64, error) {
	const query = `SELECT COALESCE(MAX(seq), 0) FROM match_events`

	var seq int64
	if err := r.db.GetContext(ctx, &seq, query); err != nil {
		return 0, fmt.Errorf("read max event seq: %w", err)
	}
	return seq, nil
}

func (r *EventLogRepository) ListAfter(ctx context.Context, afterSeq int64, limit int) ([]event.MatchEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	const query = `
		SELECT seq, event_id, match_id, ts, team, opponent, event_type, event_details
		FROM match_events
		WHERE seq > $1
		ORDER BY seq
		LIMIT $2`

	var rows []matchEventRow
	if err := r.db.SelectContext(ctx, &rows, query, afterSeq, limit); err != nil {
		return nil, fmt.Errorf("list match events after seq %d: %w", afterSeq, err)
	}

	out := make([]event.MatchEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}
