package aggregate

const (
	ResultWin  = "win"
	ResultDraw = "draw"
	ResultLoss = "loss"
)

// TeamMatchStats is one aggregate row keyed by (team, match). Rows are
// created lazily on the first event referencing the pair and never deleted
// by the engine.
type TeamMatchStats struct {
	TeamName           string
	MatchID            string
	Opponent           string
	TotalGoalsScored   int
	TotalGoalsConceded int
	TotalFouls         int
	Result             string
	MatchDate          string
}

// ResultFromGoals derives the match result from the goal tallies.
func ResultFromGoals(scored, conceded int) string {
	switch {
	case scored > conceded:
		return ResultWin
	case scored < conceded:
		return ResultLoss
	default:
		return ResultDraw
	}
}

// MirrorResult returns the opposing team's result. The two rows of a match
// always hold a valid opposite pair at the moment both are recomputed.
func MirrorResult(result string) string {
	switch result {
	case ResultWin:
		return ResultLoss
	case ResultLoss:
		return ResultWin
	default:
		return ResultDraw
	}
}

// StatField names a counter column on the aggregate row. Stores must reject
// anything outside the known set.
type StatField string

const (
	FieldGoalsScored   StatField = "total_goals_scored"
	FieldGoalsConceded StatField = "total_goals_conceded"
	FieldFouls         StatField = "total_fouls"
)

func (f StatField) Valid() bool {
	switch f {
	case FieldGoalsScored, FieldGoalsConceded, FieldFouls:
		return true
	default:
		return false
	}
}

// SeasonStats aggregates a team's rows across all matches.
type SeasonStats struct {
	TotalMatches       int
	TotalWins          int
	TotalDraws         int
	TotalLosses        int
	TotalGoalsScored   int
	TotalGoalsConceded int
}
