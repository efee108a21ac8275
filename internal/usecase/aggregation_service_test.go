package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/riskibarqy/match-tracker/internal/domain/aggregate"
	"github.com/riskibarqy/match-tracker/internal/domain/event"
	"github.com/riskibarqy/match-tracker/internal/infrastructure/repository/memory"
)

const goalDetailsJSON = `{"player":{"name":"Marco Silva"},"goal_type":"penalty","minute":23,"video_url":"https://clips.example.com/goal-23.mp4"}`
const foulDetailsJSON = `{"player":{"name":"Jon Walker"},"card":"yellow","minute":40}`

func insertNotification(e event.MatchEvent) event.ChangeNotification {
	return event.ChangeNotification{Kind: event.ChangeInsert, NewImage: &e}
}

func goalEvent(team, opponent, matchID, ts string) event.MatchEvent {
	return event.MatchEvent{
		EventID:    matchID + "_" + ts + "_g",
		MatchID:    matchID,
		Timestamp:  ts,
		Team:       team,
		Opponent:   opponent,
		EventType:  event.TypeGoal,
		RawDetails: goalDetailsJSON,
	}
}

func foulEvent(team, opponent, matchID, ts string) event.MatchEvent {
	return event.MatchEvent{
		EventID:    matchID + "_" + ts + "_f",
		MatchID:    matchID,
		Timestamp:  ts,
		Team:       team,
		Opponent:   opponent,
		EventType:  event.TypeFoul,
		RawDetails: foulDetailsJSON,
	}
}

func mustGetRow(t *testing.T, store aggregate.Store, team, matchID string) aggregate.TeamMatchStats {
	t.Helper()

	row, found, err := store.Get(context.Background(), team, matchID)
	if err != nil {
		t.Fatalf("get row %s/%s: %v", team, matchID, err)
	}
	if !found {
		t.Fatalf("expected row for %s/%s", team, matchID)
	}
	return row
}

func TestParseWriteMode(t *testing.T) {
	if mode, err := ParseWriteMode(""); err != nil || mode != WriteModeAtomic {
		t.Fatalf("expected empty mode to default to atomic, got %q err=%v", mode, err)
	}
	if mode, err := ParseWriteMode("legacy"); err != nil || mode != WriteModeLegacy {
		t.Fatalf("expected legacy mode, got %q err=%v", mode, err)
	}
	if _, err := ParseWriteMode("dynamo"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestAggregationService_GoalMirrorsBothRows(t *testing.T) {
	for _, mode := range []WriteMode{WriteModeAtomic, WriteModeLegacy} {
		t.Run(string(mode), func(t *testing.T) {
			store := memory.NewStatisticsRepository()
			svc := NewAggregationService(store, mode, nil, nil)

			if err := svc.Process(t.Context(), insertNotification(goalEvent("Alpha FC", "Beta United", "m-1", "2026-03-01"))); err != nil {
				t.Fatalf("process goal: %v", err)
			}

			alpha := mustGetRow(t, store, "Alpha FC", "m-1")
			beta := mustGetRow(t, store, "Beta United", "m-1")

			if alpha.TotalGoalsScored != 1 || alpha.TotalGoalsConceded != 0 {
				t.Fatalf("unexpected alpha goals: scored=%d conceded=%d", alpha.TotalGoalsScored, alpha.TotalGoalsConceded)
			}
			if beta.TotalGoalsScored != 0 || beta.TotalGoalsConceded != 1 {
				t.Fatalf("unexpected beta goals: scored=%d conceded=%d", beta.TotalGoalsScored, beta.TotalGoalsConceded)
			}
			if alpha.Result != aggregate.ResultWin || beta.Result != aggregate.ResultLoss {
				t.Fatalf("unexpected results: alpha=%s beta=%s", alpha.Result, beta.Result)
			}
			if alpha.Opponent != "Beta United" || beta.Opponent != "Alpha FC" {
				t.Fatalf("unexpected opponents: alpha=%q beta=%q", alpha.Opponent, beta.Opponent)
			}
		})
	}
}

func TestAggregationService_FoulNeverMirrors(t *testing.T) {
	store := memory.NewStatisticsRepository()
	svc := NewAggregationService(store, WriteModeAtomic, nil, nil)

	if err := svc.Process(t.Context(), insertNotification(foulEvent("Alpha FC", "Beta United", "m-1", "2026-03-01"))); err != nil {
		t.Fatalf("process foul: %v", err)
	}

	alpha := mustGetRow(t, store, "Alpha FC", "m-1")
	beta := mustGetRow(t, store, "Beta United", "m-1")

	if alpha.TotalFouls != 1 {
		t.Fatalf("unexpected alpha fouls: %d", alpha.TotalFouls)
	}
	if beta.TotalFouls != 0 {
		t.Fatalf("foul leaked to opponent row: %d", beta.TotalFouls)
	}
	if alpha.TotalGoalsScored != 0 || beta.TotalGoalsScored != 0 {
		t.Fatalf("foul mutated goal counters")
	}
	if alpha.Result != aggregate.ResultDraw || beta.Result != aggregate.ResultDraw {
		t.Fatalf("unexpected results: alpha=%s beta=%s", alpha.Result, beta.Result)
	}
}

func TestAggregationService_ResultsStayOppositePair(t *testing.T) {
	store := memory.NewStatisticsRepository()
	svc := NewAggregationService(store, WriteModeAtomic, nil, nil)
	ctx := t.Context()

	// Alpha 1 - Beta 0, then Beta equalizes, then Beta wins.
	steps := []event.MatchEvent{
		goalEvent("Alpha FC", "Beta United", "m-1", "2026-03-01"),
		goalEvent("Beta United", "Alpha FC", "m-1", "2026-03-01"),
		goalEvent("Beta United", "Alpha FC", "m-1", "2026-03-01"),
	}
	wantAlpha := []string{aggregate.ResultWin, aggregate.ResultDraw, aggregate.ResultLoss}

	for i, step := range steps {
		if err := svc.Process(ctx, insertNotification(step)); err != nil {
			t.Fatalf("process step %d: %v", i, err)
		}
		alpha := mustGetRow(t, store, "Alpha FC", "m-1")
		beta := mustGetRow(t, store, "Beta United", "m-1")
		if alpha.Result != wantAlpha[i] {
			t.Fatalf("step %d: unexpected alpha result %s, want %s", i, alpha.Result, wantAlpha[i])
		}
		if beta.Result != aggregate.MirrorResult(alpha.Result) {
			t.Fatalf("step %d: results not an opposite pair: alpha=%s beta=%s", i, alpha.Result, beta.Result)
		}
	}

	alpha := mustGetRow(t, store, "Alpha FC", "m-1")
	if alpha.TotalGoalsScored != 1 || alpha.TotalGoalsConceded != 2 {
		t.Fatalf("unexpected final tallies: scored=%d conceded=%d", alpha.TotalGoalsScored, alpha.TotalGoalsConceded)
	}
}

func TestAggregationService_RedeliveryCountsTwice(t *testing.T) {
	store := memory.NewStatisticsRepository()
	svc := NewAggregationService(store, WriteModeAtomic, nil, nil)

	change := insertNotification(goalEvent("Alpha FC", "Beta United", "m-1", "2026-03-01"))
	if err := svc.Process(t.Context(), change); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := svc.Process(t.Context(), change); err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	alpha := mustGetRow(t, store, "Alpha FC", "m-1")
	if alpha.TotalGoalsScored != 2 {
		t.Fatalf("expected replayed goal to double count, got %d", alpha.TotalGoalsScored)
	}
}

func TestAggregationService_DateSetOnce(t *testing.T) {
	store := memory.NewStatisticsRepository()
	svc := NewAggregationService(store, WriteModeAtomic, nil, nil)
	ctx := t.Context()

	if err := svc.Process(ctx, insertNotification(goalEvent("Alpha FC", "Beta United", "m-1", "2026-03-01"))); err != nil {
		t.Fatalf("first event: %v", err)
	}
	if err := svc.Process(ctx, insertNotification(goalEvent("Beta United", "Alpha FC", "m-1", "2026-03-02"))); err != nil {
		t.Fatalf("second event: %v", err)
	}

	alpha := mustGetRow(t, store, "Alpha FC", "m-1")
	beta := mustGetRow(t, store, "Beta United", "m-1")
	if alpha.MatchDate != "2026-03-01" || beta.MatchDate != "2026-03-01" {
		t.Fatalf("expected first timestamp to stick, got alpha=%q beta=%q", alpha.MatchDate, beta.MatchDate)
	}
}

func TestAggregationService_LegacyDateCheckIsOneSided(t *testing.T) {
	store := memory.NewStatisticsRepository()
	ctx := t.Context()

	// The event team's row is already dated but the opponent's is not. The
	// legacy bootstrap only inspects the event team's row, so the opponent
	// stays undated.
	seed := []aggregate.TeamMatchStats{
		{TeamName: "Alpha FC", MatchID: "m-1", Opponent: "Beta United", MatchDate: "2026-02-28"},
		{TeamName: "Beta United", MatchID: "m-1", Opponent: "Alpha FC"},
	}
	for _, row := range seed {
		if err := store.Put(ctx, row); err != nil {
			t.Fatalf("seed row: %v", err)
		}
	}

	legacy := NewAggregationService(store, WriteModeLegacy, nil, nil)
	if err := legacy.Process(ctx, insertNotification(goalEvent("Alpha FC", "Beta United", "m-1", "2026-03-01"))); err != nil {
		t.Fatalf("legacy process: %v", err)
	}
	if beta := mustGetRow(t, store, "Beta United", "m-1"); beta.MatchDate != "" {
		t.Fatalf("legacy mode should leave opponent undated, got %q", beta.MatchDate)
	}

	atomic := NewAggregationService(store, WriteModeAtomic, nil, nil)
	if err := atomic.Process(ctx, insertNotification(goalEvent("Alpha FC", "Beta United", "m-1", "2026-03-01"))); err != nil {
		t.Fatalf("atomic process: %v", err)
	}
	if beta := mustGetRow(t, store, "Beta United", "m-1"); beta.MatchDate != "2026-03-01" {
		t.Fatalf("atomic mode should backfill the opponent date, got %q", beta.MatchDate)
	}
	if alpha := mustGetRow(t, store, "Alpha FC", "m-1"); alpha.MatchDate != "2026-02-28" {
		t.Fatalf("atomic mode must not overwrite an existing date, got %q", alpha.MatchDate)
	}
}

func TestAggregationService_MalformedEventDroppedWithoutError(t *testing.T) {
	store := memory.NewStatisticsRepository()
	svc := NewAggregationService(store, WriteModeAtomic, nil, nil)

	malformed := goalEvent("", "Beta United", "m-1", "2026-03-01")
	if err := svc.Process(t.Context(), insertNotification(malformed)); err != nil {
		t.Fatalf("malformed event must be dropped, not retried: %v", err)
	}

	rows, err := store.ListAll(t.Context())
	if err != nil {
		t.Fatalf("list rows: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("malformed event mutated the store: %d rows", len(rows))
	}
}

func TestAggregationService_UnparsableDetailsReturnError(t *testing.T) {
	store := memory.NewStatisticsRepository()
	svc := NewAggregationService(store, WriteModeAtomic, nil, nil)

	broken := goalEvent("Alpha FC", "Beta United", "m-1", "2026-03-01")
	broken.RawDetails = `{"player":`
	err := svc.Process(t.Context(), insertNotification(broken))
	if err == nil {
		t.Fatalf("expected error for unparsable details")
	}
	if !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent, got %v", err)
	}

	rows, err := store.ListAll(t.Context())
	if err != nil {
		t.Fatalf("list rows: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("failed event mutated the store: %d rows", len(rows))
	}
}

func TestAggregationService_UnknownEventTypeIsNoOp(t *testing.T) {
	store := memory.NewStatisticsRepository()
	svc := NewAggregationService(store, WriteModeAtomic, nil, nil)

	substitution := event.MatchEvent{
		EventID:    "m-1_2026-03-01_s",
		MatchID:    "m-1",
		Timestamp:  "2026-03-01",
		Team:       "Alpha FC",
		Opponent:   "Beta United",
		EventType:  "substitution",
		RawDetails: `{"player_in":"A","player_out":"B"}`,
	}
	if err := svc.Process(t.Context(), insertNotification(substitution)); err != nil {
		t.Fatalf("process substitution: %v", err)
	}

	// No delta means no rows, and the result/date writers skip missing rows.
	rows, err := store.ListAll(t.Context())
	if err != nil {
		t.Fatalf("list rows: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("unknown event type created rows: %d", len(rows))
	}
}

func TestAggregationService_IgnoresNonInsertNotifications(t *testing.T) {
	store := memory.NewStatisticsRepository()
	svc := NewAggregationService(store, WriteModeAtomic, nil, nil)

	e := goalEvent("Alpha FC", "Beta United", "m-1", "2026-03-01")
	for _, change := range []event.ChangeNotification{
		{Kind: event.ChangeModify, NewImage: &e},
		{Kind: event.ChangeRemove, NewImage: &e},
		{Kind: event.ChangeInsert, NewImage: nil},
	} {
		if err := svc.Process(t.Context(), change); err != nil {
			t.Fatalf("non-insert notification must be ignored: %v", err)
		}
	}

	rows, err := store.ListAll(t.Context())
	if err != nil {
		t.Fatalf("list rows: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("non-insert notifications mutated the store: %d rows", len(rows))
	}
}

func TestAggregationService_MixedScenario(t *testing.T) {
	store := memory.NewStatisticsRepository()
	svc := NewAggregationService(store, WriteModeAtomic, nil, nil)
	ctx := t.Context()

	if err := svc.Process(ctx, insertNotification(goalEvent("Alpha FC", "Beta United", "m-1", "2026-03-01"))); err != nil {
		t.Fatalf("goal: %v", err)
	}
	if err := svc.Process(ctx, insertNotification(foulEvent("Beta United", "Alpha FC", "m-1", "2026-03-01"))); err != nil {
		t.Fatalf("foul: %v", err)
	}

	alpha := mustGetRow(t, store, "Alpha FC", "m-1")
	beta := mustGetRow(t, store, "Beta United", "m-1")

	if alpha.TotalGoalsScored != 1 || alpha.TotalGoalsConceded != 0 || alpha.TotalFouls != 0 {
		t.Fatalf("unexpected alpha row: %+v", alpha)
	}
	if beta.TotalGoalsScored != 0 || beta.TotalGoalsConceded != 1 || beta.TotalFouls != 1 {
		t.Fatalf("unexpected beta row: %+v", beta)
	}
	if alpha.Result != aggregate.ResultWin || beta.Result != aggregate.ResultLoss {
		t.Fatalf("unexpected results: alpha=%s beta=%s", alpha.Result, beta.Result)
	}
}

type recordingInvalidator struct {
	mu       sync.Mutex
	prefixes []string
}

func (r *recordingInvalidator) DeletePrefix(_ context.Context, prefix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes = append(r.prefixes, prefix)
}

func TestAggregationService_InvalidatesQueryCache(t *testing.T) {
	store := memory.NewStatisticsRepository()
	invalidator := &recordingInvalidator{}
	svc := NewAggregationService(store, WriteModeAtomic, invalidator, nil)

	if err := svc.Process(t.Context(), insertNotification(goalEvent("Alpha FC", "Beta United", "m-1", "2026-03-01"))); err != nil {
		t.Fatalf("process goal: %v", err)
	}

	invalidator.mu.Lock()
	defer invalidator.mu.Unlock()
	if len(invalidator.prefixes) != 1 || invalidator.prefixes[0] != QueryCachePrefix {
		t.Fatalf("unexpected cache invalidations: %+v", invalidator.prefixes)
	}
}
