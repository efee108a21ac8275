package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/riskibarqy/match-tracker/internal/domain/aggregate"
	"github.com/riskibarqy/match-tracker/internal/domain/event"
	"github.com/riskibarqy/match-tracker/internal/platform/cache"
	"github.com/riskibarqy/match-tracker/internal/platform/id"
	"github.com/riskibarqy/match-tracker/internal/platform/logging"
)

const detailFallback = "NaN"

// MatchSummary is one deduplicated entry of the match listing.
type MatchSummary struct {
	MatchID            string
	Team               string
	Opponent           string
	Date               string
	TotalGoalsScored   int
	TotalGoalsConceded int
}

// EventDetail is one event of a match with its payload fields flattened for
// the read side. Missing fields surface as "NaN", matching the historical
// contract.
type EventDetail struct {
	EventType string
	Timestamp string
	Player    string
	GoalType  string
	Minute    string
	VideoURL  string
}

type MatchDetail struct {
	MatchID  string
	Team     string
	Opponent string
	Date     string
	Events   []EventDetail
}

// MatchStatistics is the per-match statistics view. BallPossessionPct is the
// provisional (1+scored)/(1+conceded) heuristic, not a real possession
// metric; it stays until event payloads carry possession data.
type MatchStatistics struct {
	Team              string
	Opponent          string
	TotalGoals        int
	TotalFouls        int
	BallPossessionPct float64
}

// QueryService serves the read contracts over the event log and the
// aggregate store. Responses are cached behind the shared query prefix when
// a cache store is attached; the aggregation engine invalidates it on write.
type QueryService struct {
	events event.Log
	stats  aggregate.Store
	cache  *cache.Store
	idGen  id.Generator
	logger *logging.Logger
}

func NewQueryService(events event.Log, stats aggregate.Store, cacheStore *cache.Store, idGen id.Generator, logger *logging.Logger) *QueryService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &QueryService{
		events: events,
		stats:  stats,
		cache:  cacheStore,
		idGen:  idGen,
		logger: logger,
	}
}

// ListMatches scans the aggregate store and returns one summary per match.
// Each match has two rows (one per team); the first row seen wins.
func (s *QueryService) ListMatches(ctx context.Context) ([]MatchSummary, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.QueryService.ListMatches")
	defer span.End()

	value, err := s.cached(ctx, QueryCachePrefix+"matches", func(ctx context.Context) (any, error) {
		rows, err := s.stats.ListAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("list aggregate rows: %w", err)
		}

		seen := make(map[string]struct{}, len(rows)/2+1)
		out := make([]MatchSummary, 0, len(rows)/2+1)
		for _, row := range rows {
			if _, ok := seen[row.MatchID]; ok {
				continue
			}
			seen[row.MatchID] = struct{}{}

			out = append(out, MatchSummary{
				MatchID:            row.MatchID,
				Team:               row.TeamName,
				Opponent:           row.Opponent,
				Date:               row.MatchDate,
				TotalGoalsScored:   row.TotalGoalsScored,
				TotalGoalsConceded: row.TotalGoalsConceded,
			})
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	return value.([]MatchSummary), nil
}

// GetMatchDetail returns the event list for a match with per-event detail
// fields extracted from the typed payload.
func (s *QueryService) GetMatchDetail(ctx context.Context, matchID string) (MatchDetail, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.QueryService.GetMatchDetail")
	defer span.End()

	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return MatchDetail{}, fmt.Errorf("%w: match_id is required", ErrInvalidInput)
	}

	value, err := s.cached(ctx, QueryCachePrefix+"match:"+matchID, func(ctx context.Context) (any, error) {
		items, err := s.events.ListByMatch(ctx, matchID)
		if err != nil {
			return nil, fmt.Errorf("list events for match %s: %w", matchID, err)
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("%w: match not found", ErrNotFound)
		}

		detail := MatchDetail{
			MatchID:  matchID,
			Team:     items[0].Team,
			Opponent: items[0].Opponent,
			Events:   make([]EventDetail, 0, len(items)),
		}

		if row, found, err := s.stats.Get(ctx, detail.Team, matchID); err != nil {
			return nil, fmt.Errorf("get aggregate row for match %s: %w", matchID, err)
		} else if found {
			detail.Date = row.MatchDate
		}

		for _, item := range items {
			detail.Events = append(detail.Events, s.eventDetail(ctx, item))
		}
		return detail, nil
	})
	if err != nil {
		return MatchDetail{}, err
	}

	return value.(MatchDetail), nil
}

// GetMatchStatistics returns the aggregated statistics view of one match.
func (s *QueryService) GetMatchStatistics(ctx context.Context, matchID string) (MatchStatistics, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.QueryService.GetMatchStatistics")
	defer span.End()

	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return MatchStatistics{}, fmt.Errorf("%w: match_id is required", ErrInvalidInput)
	}

	value, err := s.cached(ctx, QueryCachePrefix+"match-stats:"+matchID, func(ctx context.Context) (any, error) {
		items, err := s.events.ListByMatch(ctx, matchID)
		if err != nil {
			return nil, fmt.Errorf("list events for match %s: %w", matchID, err)
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("%w: match not found", ErrNotFound)
		}

		team := items[0].Team
		row, _, err := s.stats.Get(ctx, team, matchID)
		if err != nil {
			return nil, fmt.Errorf("get aggregate row for match %s: %w", matchID, err)
		}

		return MatchStatistics{
			Team:              team,
			Opponent:          items[0].Opponent,
			TotalGoals:        row.TotalGoalsScored + row.TotalGoalsConceded,
			TotalFouls:        row.TotalFouls,
			BallPossessionPct: float64(1+row.TotalGoalsScored) / float64(1+row.TotalGoalsConceded),
		}, nil
	})
	if err != nil {
		return MatchStatistics{}, err
	}

	return value.(MatchStatistics), nil
}

// GetTeamSeasonStatistics aggregates all of a team's rows into season totals.
func (s *QueryService) GetTeamSeasonStatistics(ctx context.Context, teamName string) (aggregate.SeasonStats, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.QueryService.GetTeamSeasonStatistics")
	defer span.End()

	teamName = strings.TrimSpace(teamName)
	if teamName == "" {
		return aggregate.SeasonStats{}, fmt.Errorf("%w: team_name is required", ErrInvalidInput)
	}

	value, err := s.cached(ctx, QueryCachePrefix+"team:"+teamName, func(ctx context.Context) (any, error) {
		rows, err := s.stats.ListByTeam(ctx, teamName)
		if err != nil {
			return nil, fmt.Errorf("list aggregate rows for team %s: %w", teamName, err)
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("%w: team statistics not found", ErrNotFound)
		}

		stats := aggregate.SeasonStats{TotalMatches: len(rows)}
		for _, row := range rows {
			switch row.Result {
			case aggregate.ResultWin:
				stats.TotalWins++
			case aggregate.ResultDraw:
				stats.TotalDraws++
			case aggregate.ResultLoss:
				stats.TotalLosses++
			}
			stats.TotalGoalsScored += row.TotalGoalsScored
			stats.TotalGoalsConceded += row.TotalGoalsConceded
		}
		return stats, nil
	})
	if err != nil {
		return aggregate.SeasonStats{}, err
	}

	return value.(aggregate.SeasonStats), nil
}

func (s *QueryService) cached(ctx context.Context, key string, load func(context.Context) (any, error)) (any, error) {
	if s.cache == nil {
		return load(ctx)
	}
	return s.cache.GetOrLoad(ctx, key, load)
}

func (s *QueryService) eventDetail(ctx context.Context, item event.MatchEvent) EventDetail {
	out := EventDetail{
		EventType: item.EventType,
		Timestamp: item.Timestamp,
		Player:    detailFallback,
		GoalType:  detailFallback,
		Minute:    detailFallback,
	}

	details, err := event.ParseDetails(item.EventType, item.RawDetails)
	if err != nil {
		s.logger.WarnContext(ctx, "skipping unreadable event details",
			"event_id", item.EventID,
			"match_id", item.MatchID,
			"error", err,
		)
		out.VideoURL = s.fallbackVideoURL(out.GoalType)
		return out
	}

	switch d := details.(type) {
	case event.GoalDetails:
		if d.Player.Name != "" {
			out.Player = d.Player.Name
		}
		if d.GoalType != "" {
			out.GoalType = d.GoalType
		}
		if d.Minute != nil {
			out.Minute = strconv.Itoa(*d.Minute)
		}
		out.VideoURL = d.VideoURL
	case event.FoulDetails:
		if d.Player.Name != "" {
			out.Player = d.Player.Name
		}
		if d.Minute != nil {
			out.Minute = strconv.Itoa(*d.Minute)
		}
	case event.GenericDetails:
		if name, ok := nestedString(d.Raw, "player", "name"); ok {
			out.Player = name
		}
		if goalType, ok := d.Raw["goal_type"].(string); ok && goalType != "" {
			out.GoalType = goalType
		}
		if minute, ok := d.Raw["minute"].(float64); ok {
			out.Minute = strconv.Itoa(int(minute))
		}
		if videoURL, ok := d.Raw["video_url"].(string); ok {
			out.VideoURL = videoURL
		}
	}

	if out.VideoURL == "" {
		out.VideoURL = s.fallbackVideoURL(out.GoalType)
	}
	return out
}

// fallbackVideoURL fabricates a stable-looking clip link for events without
// one, preserving the historical read contract.
func (s *QueryService) fallbackVideoURL(goalType string) string {
	suffix := ""
	if s.idGen != nil {
		if generated, err := s.idGen.NewID(); err == nil {
			suffix = generated
		}
	}
	return fmt.Sprintf("https://example.com/%s%s.mp4", goalType, suffix)
}

func nestedString(raw map[string]any, outerKey, innerKey string) (string, bool) {
	outer, ok := raw[outerKey].(map[string]any)
	if !ok {
		return "", false
	}
	value, ok := outer[innerKey].(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}
