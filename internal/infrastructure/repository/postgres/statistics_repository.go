package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/match-tracker/internal/domain/aggregate"
)

// Column names may not be bound as parameters, so counter columns go through
// this whitelist before being spliced into an upsert.
var statColumnByField = map[aggregate.StatField]string{
	aggregate.FieldGoalsScored:   "total_goals_scored",
	aggregate.FieldGoalsConceded: "total_goals_conceded",
	aggregate.FieldFouls:         "total_fouls",
}

// StatisticsRepository is the aggregate store over team_match_statistics.
// AddDelta and SetDateIfAbsent are single-statement upserts/conditional
// updates, so they stay correct under concurrent engine instances; Get/Put
// exist for the legacy read-modify-write path.
type StatisticsRepository struct {
	db *sqlx.DB
}

func NewStatisticsRepository(db *sqlx.DB) *StatisticsRepository {
	return &StatisticsRepository{db: db}
}

func (r *StatisticsRepository) Get(ctx context.Context, teamName, matchID string) (aggregate.TeamMatchStats, bool, error) {
	const query = `
		SELECT team_name, match_id, opponent, total_goals_scored, total_goals_conceded, total_fouls, result, match_date
		FROM team_match_statistics
		WHERE team_name = $1 AND match_id = $2`

	var row teamMatchStatsRow
	if err := r.db.GetContext(ctx, &row, query, teamName, matchID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return aggregate.TeamMatchStats{}, false, nil
		}
		return aggregate.TeamMatchStats{}, false, fmt.Errorf("get aggregate row: %w", err)
	}

	return row.toDomain(), true, nil
}

func (r *StatisticsRepository) Put(ctx context.Context, item aggregate.TeamMatchStats) error {
	const query = `
		INSERT INTO team_match_statistics
			(team_name, match_id, opponent, total_goals_scored, total_goals_conceded, total_fouls, result, match_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (team_name, match_id) DO UPDATE SET
			opponent = EXCLUDED.opponent,
			total_goals_scored = EXCLUDED.total_goals_scored,
			total_goals_conceded = EXCLUDED.total_goals_conceded,
			total_fouls = EXCLUDED.total_fouls,
			result = EXCLUDED.result,
			match_date = EXCLUDED.match_date,
			updated_at = now()`

	if _, err := r.db.ExecContext(ctx, query,
		item.TeamName,
		item.MatchID,
		item.Opponent,
		item.TotalGoalsScored,
		item.TotalGoalsConceded,
		item.TotalFouls,
		item.Result,
		item.MatchDate,
	); err != nil {
		return fmt.Errorf("put aggregate row: %w", err)
	}
	return nil
}

func (r *StatisticsRepository) AddDelta(ctx context.Context, teamName, matchID, opponent string, field aggregate.StatField, delta int) error {
	column, ok := statColumnByField[field]
	if !ok {
		return fmt.Errorf("unknown stat field %q", field)
	}

	// A zero delta still upserts the row: the opponent's record must exist
	// even when only its counterpart scored or fouled.
	query := fmt.Sprintf(`
		INSERT INTO team_match_statistics (team_name, match_id, opponent, %[1]s)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (team_name, match_id) DO UPDATE SET
			%[1]s = team_match_statistics.%[1]s + EXCLUDED.%[1]s,
			updated_at = now()`, column)

	if _, err := r.db.ExecContext(ctx, query, teamName, matchID, opponent, delta); err != nil {
		return fmt.Errorf("add %s delta: %w", field, err)
	}
	return nil
}

func (r *StatisticsRepository) SetResult(ctx context.Context, teamName, matchID, result string) error {
	const query = `
		UPDATE team_match_statistics
		SET result = $3, updated_at = now()
		WHERE team_name = $1 AND match_id = $2`

	if _, err := r.db.ExecContext(ctx, query, teamName, matchID, result); err != nil {
		return fmt.Errorf("set result: %w", err)
	}
	return nil
}

func (r *StatisticsRepository) SetDate(ctx context.Context, teamName, matchID, date string) error {
	const query = `
		UPDATE team_match_statistics
		SET match_date = $3, updated_at = now()
		WHERE team_name = $1 AND match_id = $2`

	if _, err := r.db.ExecContext(ctx, query, teamName, matchID, date); err != nil {
		return fmt.Errorf("set date: %w", err)
	}
	return nil
}

func (r *StatisticsRepository) SetDateIfAbsent(ctx context.Context, teamName, matchID, date string) error {
	const query = `
		UPDATE team_match_statistics
		SET match_date = $3, updated_at = now()
		WHERE team_name = $1 AND match_id = $2 AND match_date = ''`

	if _, err := r.db.ExecContext(ctx, query, teamName, matchID, date); err != nil {
		return fmt.Errorf("set date if absent: %w", err)
	}
	return nil
}

func (r *StatisticsRepository) ListByTeam(ctx context.Context, teamName string) ([]aggregate.TeamMatchStats, error) {
	const query = `
		SELECT team_name, match_id, opponent, total_goals_scored, total_goals_conceded, total_fouls, result, match_date
		FROM team_match_statistics
		WHERE team_name = $1
		ORDER BY match_id`

	var rows []teamMatchStatsRow
	if err := r.db.SelectContext(ctx, &rows, query, teamName); err != nil {
		return nil, fmt.Errorf("list aggregate rows by team: %w", err)
	}

	out := make([]aggregate.TeamMatchStats, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *StatisticsRepository) ListAll(ctx context.Context) ([]aggregate.TeamMatchStats, error) {
	const query = `
		SELECT team_name, match_id, opponent, total_goals_scored, total_goals_conceded, total_fouls, result, match_date
		FROM team_match_statistics
		ORDER BY match_id, team_name`

	var rows []teamMatchStatsRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list aggregate rows: %w", err)
	}

	out := make([]aggregate.TeamMatchStats, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}
