package memory

import (
	"context"
	"sync"

	"github.com/riskibarqy/match-tracker/internal/domain/event"
)

// EventLogRepository is the in-memory event log used by tests and the
// dev backend. Seq assignment mirrors the bigserial column.
type EventLogRepository struct {
	mu     sync.RWMutex
	items  []event.MatchEvent
	lastID int64
}

func NewEventLogRepository() *EventLogRepository {
	return &EventLogRepository{}
}

func (r *EventLogRepository) Append(_ context.Context, item event.MatchEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastID++
	item.Seq = r.lastID
	r.items = append(r.items, item)
	return nil
}

func (r *EventLogRepository) ListByMatch(_ context.Context, matchID string) ([]event.MatchEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]event.MatchEvent, 0)
	for _, item := range r.items {
		if item.MatchID == matchID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *EventLogRepository) MaxSeq(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastID, nil
}

func (r *EventLogRepository) ListAfter(_ context.Context, afterSeq int64, limit int) ([]event.MatchEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]event.MatchEvent, 0, limit)
	for _, item := range r.items {
		if item.Seq <= afterSeq {
			continue
		}
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
