package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/riskibarqy/match-tracker/internal/domain/aggregate"
)

type statsKey struct {
	teamName string
	matchID  string
}

// StatisticsRepository is the in-memory aggregate store. Every operation
// runs under the mutex, so AddDelta and SetDateIfAbsent are atomic the same
// way the single-statement Postgres variants are.
type StatisticsRepository struct {
	mu   sync.RWMutex
	rows map[statsKey]aggregate.TeamMatchStats
}

func NewStatisticsRepository() *StatisticsRepository {
	return &StatisticsRepository{rows: make(map[statsKey]aggregate.TeamMatchStats)}
}

func (r *StatisticsRepository) Get(_ context.Context, teamName, matchID string) (aggregate.TeamMatchStats, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.rows[statsKey{teamName, matchID}]
	return row, ok, nil
}

func (r *StatisticsRepository) Put(_ context.Context, item aggregate.TeamMatchStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rows[statsKey{item.TeamName, item.MatchID}] = item
	return nil
}

func (r *StatisticsRepository) AddDelta(_ context.Context, teamName, matchID, opponent string, field aggregate.StatField, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := statsKey{teamName, matchID}
	row, ok := r.rows[key]
	if !ok {
		row = aggregate.TeamMatchStats{
			TeamName: teamName,
			MatchID:  matchID,
			Opponent: opponent,
		}
	}

	switch field {
	case aggregate.FieldGoalsScored:
		row.TotalGoalsScored += delta
	case aggregate.FieldGoalsConceded:
		row.TotalGoalsConceded += delta
	case aggregate.FieldFouls:
		row.TotalFouls += delta
	default:
		return fmt.Errorf("unknown stat field %q", field)
	}

	r.rows[key] = row
	return nil
}

func (r *StatisticsRepository) SetResult(_ context.Context, teamName, matchID, result string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := statsKey{teamName, matchID}
	row, ok := r.rows[key]
	if !ok {
		return nil
	}
	row.Result = result
	r.rows[key] = row
	return nil
}

func (r *StatisticsRepository) SetDate(_ context.Context, teamName, matchID, date string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := statsKey{teamName, matchID}
	row, ok := r.rows[key]
	if !ok {
		return nil
	}
	row.MatchDate = date
	r.rows[key] = row
	return nil
}

func (r *StatisticsRepository) SetDateIfAbsent(_ context.Context, teamName, matchID, date string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := statsKey{teamName, matchID}
	row, ok := r.rows[key]
	if !ok || row.MatchDate != "" {
		return nil
	}
	row.MatchDate = date
	r.rows[key] = row
	return nil
}

func (r *StatisticsRepository) ListByTeam(_ context.Context, teamName string) ([]aggregate.TeamMatchStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]aggregate.TeamMatchStats, 0)
	for key, row := range r.rows {
		if key.teamName == teamName {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchID < out[j].MatchID })
	return out, nil
}

func (r *StatisticsRepository) ListAll(_ context.Context) ([]aggregate.TeamMatchStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]aggregate.TeamMatchStats, 0, len(r.rows))
	for _, row := range r.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MatchID != out[j].MatchID {
			return out[i].MatchID < out[j].MatchID
		}
		return out[i].TeamName < out[j].TeamName
	})
	return out, nil
}
