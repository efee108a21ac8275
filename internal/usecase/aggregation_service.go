package usecase

import (
	"context"
	"fmt"

	"github.com/riskibarqy/match-tracker/internal/domain/aggregate"
	"github.com/riskibarqy/match-tracker/internal/domain/event"
	"github.com/riskibarqy/match-tracker/internal/platform/logging"
)

// WriteMode selects how the engine mutates the aggregate store.
//
// WriteModeLegacy reproduces the historical read-modify-write behavior:
// concurrent deltas for the same (team, match) key can lose updates, and the
// date bootstrap checks only the event team's row before stamping both rows.
// WriteModeAtomic routes counters through the store's native atomic
// increment and stamps dates with conditional set-if-absent writes on both
// rows, which closes the lost-update race and the one-sided date check.
//
// Neither mode deduplicates redeliveries: the change stream is at-least-once
// and a replayed notification counts twice.
type WriteMode string

const (
	WriteModeLegacy WriteMode = "legacy"
	WriteModeAtomic WriteMode = "atomic"
)

func ParseWriteMode(raw string) (WriteMode, error) {
	switch WriteMode(raw) {
	case WriteModeLegacy:
		return WriteModeLegacy, nil
	case WriteModeAtomic, "":
		return WriteModeAtomic, nil
	default:
		return "", fmt.Errorf("unknown aggregate write mode %q", raw)
	}
}

// QueryCachePrefix namespaces every cached query response. The engine
// invalidates the whole prefix after each processed event.
const QueryCachePrefix = "query:"

// CacheInvalidator drops cached query responses after the store changes.
type CacheInvalidator interface {
	DeletePrefix(ctx context.Context, prefix string)
}

// AggregationService consumes event-log change notifications and maintains
// the per-(team, match) aggregate rows, mirroring each one-sided event onto
// the opposing team's record. It holds no in-memory state, so any number of
// instances may run concurrently against the same store.
type AggregationService struct {
	store  aggregate.Store
	mode   WriteMode
	cache  CacheInvalidator
	logger *logging.Logger
}

func NewAggregationService(store aggregate.Store, mode WriteMode, cache CacheInvalidator, logger *logging.Logger) *AggregationService {
	if mode != WriteModeLegacy {
		mode = WriteModeAtomic
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &AggregationService{
		store:  store,
		mode:   mode,
		cache:  cache,
		logger: logger,
	}
}

// Process applies a single change notification. Non-insert notifications and
// inserts missing required fields are dropped without error. A detail parse
// failure or store failure is returned to the caller, whose delivery
// envelope is responsible for redelivery.
func (s *AggregationService) Process(ctx context.Context, change event.ChangeNotification) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.AggregationService.Process")
	defer span.End()

	if change.Kind != event.ChangeInsert || change.NewImage == nil {
		return nil
	}

	item := *change.NewImage
	if !item.HasRequiredFields() {
		s.logger.WarnContext(ctx, "dropping malformed event notification",
			"event_id", item.EventID,
			"match_id", item.MatchID,
			"event_type", item.EventType,
		)
		return nil
	}

	if _, err := event.ParseDetails(item.EventType, item.RawDetails); err != nil {
		return fmt.Errorf("event %s: %w: %w", item.EventID, ErrMalformedEvent, err)
	}

	switch item.EventType {
	case event.TypeGoal:
		if err := s.applyDelta(ctx, item.Team, item.MatchID, item.Opponent, aggregate.FieldGoalsScored, 1); err != nil {
			return err
		}
		if err := s.applyDelta(ctx, item.Opponent, item.MatchID, item.Team, aggregate.FieldGoalsConceded, 1); err != nil {
			s.logDivergence(ctx, item, err)
			return err
		}
	case event.TypeFoul:
		if err := s.applyDelta(ctx, item.Team, item.MatchID, item.Opponent, aggregate.FieldFouls, 1); err != nil {
			return err
		}
		// Zero-valued touch keeps the opponent row's existence and result in
		// sync even though fouls never mirror.
		if err := s.applyDelta(ctx, item.Opponent, item.MatchID, item.Team, aggregate.FieldFouls, 0); err != nil {
			s.logDivergence(ctx, item, err)
			return err
		}
	default:
		s.logger.DebugContext(ctx, "no statistic delta for event type",
			"event_id", item.EventID,
			"event_type", item.EventType,
		)
	}

	if err := s.recomputeResult(ctx, item.Team, item.Opponent, item.MatchID); err != nil {
		return err
	}

	if err := s.ensureDate(ctx, item.Team, item.Opponent, item.MatchID, item.Timestamp); err != nil {
		return err
	}

	if s.cache != nil {
		s.cache.DeletePrefix(ctx, QueryCachePrefix)
	}

	return nil
}

func (s *AggregationService) applyDelta(ctx context.Context, teamName, matchID, opponent string, field aggregate.StatField, delta int) error {
	if !field.Valid() {
		return fmt.Errorf("unknown stat field %q", field)
	}

	if s.mode == WriteModeAtomic {
		if err := s.store.AddDelta(ctx, teamName, matchID, opponent, field, delta); err != nil {
			return fmt.Errorf("add %s delta for %s/%s: %w", field, teamName, matchID, err)
		}
		return nil
	}

	// Legacy path: the read and the write are separate store operations, so
	// two concurrent deltas for the same key can both read the same base and
	// one increment is lost.
	row, found, err := s.store.Get(ctx, teamName, matchID)
	if err != nil {
		return fmt.Errorf("get aggregate row for %s/%s: %w", teamName, matchID, err)
	}
	if !found {
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
	}

	if err := s.store.Put(ctx, row); err != nil {
		return fmt.Errorf("put aggregate row for %s/%s: %w", teamName, matchID, err)
	}
	return nil
}

// recomputeResult derives both sides' results from the event team's stored
// tallies. Full recomputation on every event keeps the result self-correcting
// instead of drifting with incremental bookkeeping.
func (s *AggregationService) recomputeResult(ctx context.Context, teamName, opponent, matchID string) error {
	row, _, err := s.store.Get(ctx, teamName, matchID)
	if err != nil {
		return fmt.Errorf("get aggregate row for result of %s/%s: %w", teamName, matchID, err)
	}

	result := aggregate.ResultFromGoals(row.TotalGoalsScored, row.TotalGoalsConceded)
	if err := s.store.SetResult(ctx, teamName, matchID, result); err != nil {
		return fmt.Errorf("set result for %s/%s: %w", teamName, matchID, err)
	}
	if err := s.store.SetResult(ctx, opponent, matchID, aggregate.MirrorResult(result)); err != nil {
		s.logger.ErrorContext(ctx, "aggregate rows diverged: result written for one side only",
			"team", teamName,
			"opponent", opponent,
			"match_id", matchID,
			"error", err,
		)
		return fmt.Errorf("set mirrored result for %s/%s: %w", opponent, matchID, err)
	}
	return nil
}

// ensureDate stamps the event timestamp as the match date on first sight of
// the (team, match) pair. Legacy mode checks only the event team's row and
// then writes both sides unconditionally; atomic mode uses set-if-absent on
// each row so a pre-dated team row cannot leave the opponent undated.
func (s *AggregationService) ensureDate(ctx context.Context, teamName, opponent, matchID, timestamp string) error {
	if s.mode == WriteModeAtomic {
		if err := s.store.SetDateIfAbsent(ctx, teamName, matchID, timestamp); err != nil {
			return fmt.Errorf("set date for %s/%s: %w", teamName, matchID, err)
		}
		if err := s.store.SetDateIfAbsent(ctx, opponent, matchID, timestamp); err != nil {
			return fmt.Errorf("set date for %s/%s: %w", opponent, matchID, err)
		}
		return nil
	}

	row, found, err := s.store.Get(ctx, teamName, matchID)
	if err != nil {
		return fmt.Errorf("get aggregate row for date of %s/%s: %w", teamName, matchID, err)
	}
	if found && row.MatchDate != "" {
		return nil
	}

	if err := s.store.SetDate(ctx, teamName, matchID, timestamp); err != nil {
		return fmt.Errorf("set date for %s/%s: %w", teamName, matchID, err)
	}
	if err := s.store.SetDate(ctx, opponent, matchID, timestamp); err != nil {
		return fmt.Errorf("set date for %s/%s: %w", opponent, matchID, err)
	}
	return nil
}

func (s *AggregationService) logDivergence(ctx context.Context, item event.MatchEvent, err error) {
	s.logger.ErrorContext(ctx, "aggregate rows diverged: delta applied for one side only",
		"event_id", item.EventID,
		"match_id", item.MatchID,
		"team", item.Team,
		"opponent", item.Opponent,
		"error", err,
	)
}
