package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/riskibarqy/match-tracker/internal/usecase"
)

type matchStatisticsDTO struct {
	TotalGoalsScored   int `json:"total_goals_scored"`
	TotalGoalsConceded int `json:"total_goals_conceded"`
}

type matchSummaryDTO struct {
	MatchID    string             `json:"match_id"`
	Team       string             `json:"team"`
	Opponent   string             `json:"opponent"`
	Date       string             `json:"date"`
	Statistics matchStatisticsDTO `json:"statistics"`
}

type listMatchesResponse struct {
	Status  string            `json:"status"`
	Matches []matchSummaryDTO `json:"matches"`
}

// ListMatches returns one deduplicated summary per match.
func (h *Handler) ListMatches(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListMatches")
	defer span.End()

	matches, err := h.queryService.ListMatches(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list matches failed", "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to retrieve matches.", err)
		return
	}

	items := make([]matchSummaryDTO, 0, len(matches))
	for _, m := range matches {
		items = append(items, matchSummaryDTO{
			MatchID:  m.MatchID,
			Team:     m.Team,
			Opponent: m.Opponent,
			Date:     m.Date,
			Statistics: matchStatisticsDTO{
				TotalGoalsScored:   m.TotalGoalsScored,
				TotalGoalsConceded: m.TotalGoalsConceded,
			},
		})
	}

	writeJSON(ctx, w, http.StatusOK, listMatchesResponse{
		Status:  statusSuccess,
		Matches: items,
	})
}

type matchEventDTO struct {
	EventType string `json:"event_type"`
	Timestamp string `json:"timestamp"`
	Player    string `json:"player"`
	GoalType  string `json:"goal_type"`
	Minute    string `json:"minute"`
	VideoURL  string `json:"video_url"`
}

type matchDetailDTO struct {
	MatchID  string          `json:"match_id"`
	Team     string          `json:"team"`
	Opponent string          `json:"opponent"`
	Date     string          `json:"date"`
	Events   []matchEventDTO `json:"events"`
}

type matchDetailResponse struct {
	Status string         `json:"status"`
	Match  matchDetailDTO `json:"match"`
}

// GetMatchDetail returns the event list of one match.
func (h *Handler) GetMatchDetail(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetMatchDetail")
	defer span.End()

	matchID := r.PathValue("matchID")
	detail, err := h.queryService.GetMatchDetail(ctx, matchID)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidInput):
			writeError(ctx, w, http.StatusBadRequest, "Missing match_id parameter.", nil)
		case errors.Is(err, usecase.ErrNotFound):
			writeError(ctx, w, http.StatusNotFound, "Match not found.", nil)
		default:
			h.logger.ErrorContext(ctx, "get match detail failed", "match_id", matchID, "error", err)
			writeError(ctx, w, http.StatusInternalServerError, "Failed to retrieve match details.", err)
		}
		return
	}

	events := make([]matchEventDTO, 0, len(detail.Events))
	for _, item := range detail.Events {
		events = append(events, matchEventDTO{
			EventType: item.EventType,
			Timestamp: item.Timestamp,
			Player:    item.Player,
			GoalType:  item.GoalType,
			Minute:    item.Minute,
			VideoURL:  item.VideoURL,
		})
	}

	writeJSON(ctx, w, http.StatusOK, matchDetailResponse{
		Status: statusSuccess,
		Match: matchDetailDTO{
			MatchID:  detail.MatchID,
			Team:     detail.Team,
			Opponent: detail.Opponent,
			Date:     detail.Date,
			Events:   events,
		},
	})
}

type matchAggregateStatsDTO struct {
	Team                     string `json:"team"`
	Opponent                 string `json:"opponent"`
	TotalGoals               string `json:"total_goals"`
	TotalFouls               string `json:"total_fouls"`
	BallPossessionPercentage string `json:"ball_possession_percentage"`
}

type matchAggregateStatsResponse struct {
	Status     string                 `json:"status"`
	MatchID    string                 `json:"match_id"`
	Statistics matchAggregateStatsDTO `json:"statistics"`
}

// GetMatchStatistics returns the aggregate statistics view of one match.
func (h *Handler) GetMatchStatistics(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetMatchStatistics")
	defer span.End()

	matchID := r.PathValue("matchID")
	stats, err := h.queryService.GetMatchStatistics(ctx, matchID)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidInput):
			writeError(ctx, w, http.StatusBadRequest, "Missing match_id parameter.", nil)
		case errors.Is(err, usecase.ErrNotFound):
			writeError(ctx, w, http.StatusNotFound, "Match not found.", nil)
		default:
			h.logger.ErrorContext(ctx, "get match statistics failed", "match_id", matchID, "error", err)
			writeError(ctx, w, http.StatusInternalServerError, "Failed to retrieve match details.", err)
		}
		return
	}

	writeJSON(ctx, w, http.StatusOK, matchAggregateStatsResponse{
		Status:  statusSuccess,
		MatchID: matchID,
		Statistics: matchAggregateStatsDTO{
			Team:                     stats.Team,
			Opponent:                 stats.Opponent,
			TotalGoals:               strconv.Itoa(stats.TotalGoals),
			TotalFouls:               strconv.Itoa(stats.TotalFouls),
			BallPossessionPercentage: formatPossession(stats.BallPossessionPct),
		},
	})
}

// formatPossession keeps at least one decimal place so a whole-number ratio
// serializes as "2.0", the shape the read clients already parse.
func formatPossession(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

type teamSeasonStatsDTO struct {
	TotalMatches       int `json:"total_matches"`
	TotalWins          int `json:"total_wins"`
	TotalDraws         int `json:"total_draws"`
	TotalLosses        int `json:"total_losses"`
	TotalGoalsScored   int `json:"total_goals_scored"`
	TotalGoalsConceded int `json:"total_goals_conceded"`
}

type teamSeasonStatsResponse struct {
	Status     string             `json:"status"`
	Team       string             `json:"team"`
	Statistics teamSeasonStatsDTO `json:"statistics"`
}

// GetTeamStatistics aggregates a team's season totals across all matches.
func (h *Handler) GetTeamStatistics(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetTeamStatistics")
	defer span.End()

	teamName := r.PathValue("teamName")
	stats, err := h.queryService.GetTeamSeasonStatistics(ctx, teamName)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidInput):
			writeError(ctx, w, http.StatusBadRequest, "Missing team_name parameter.", nil)
		case errors.Is(err, usecase.ErrNotFound):
			writeError(ctx, w, http.StatusNotFound, "Team statistics not found.", nil)
		default:
			h.logger.ErrorContext(ctx, "get team statistics failed", "team", teamName, "error", err)
			writeError(ctx, w, http.StatusInternalServerError, "Failed to retrieve team statistics.", err)
		}
		return
	}

	writeJSON(ctx, w, http.StatusOK, teamSeasonStatsResponse{
		Status: statusSuccess,
		Team:   teamName,
		Statistics: teamSeasonStatsDTO{
			TotalMatches:       stats.TotalMatches,
			TotalWins:          stats.TotalWins,
			TotalDraws:         stats.TotalDraws,
			TotalLosses:        stats.TotalLosses,
			TotalGoalsScored:   stats.TotalGoalsScored,
			TotalGoalsConceded: stats.TotalGoalsConceded,
		},
	})
}
