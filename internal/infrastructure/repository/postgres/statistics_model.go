package postgres

import "github.com/riskibarqy/match-tracker/internal/domain/aggregate"

type teamMatchStatsRow struct {
	TeamName           string `db:"team_name"`
	MatchID            string `db:"match_id"`
	Opponent           string `db:"opponent"`
	TotalGoalsScored   int    `db:"total_goals_scored"`
	TotalGoalsConceded int    `db:"total_goals_conceded"`
	TotalFouls         int    `db:"total_fouls"`
	Result             string `db:"result"`
	MatchDate          string `db:"match_date"`
}

func (r teamMatchStatsRow) toDomain() aggregate.TeamMatchStats {
	return aggregate.TeamMatchStats{
		TeamName:           r.TeamName,
		MatchID:            r.MatchID,
		Opponent:           r.Opponent,
		TotalGoalsScored:   r.TotalGoalsScored,
		TotalGoalsConceded: r.TotalGoalsConceded,
		TotalFouls:         r.TotalFouls,
		Result:             r.Result,
		MatchDate:          r.MatchDate,
	}
}
