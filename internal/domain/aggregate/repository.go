package aggregate

import "context"

// Store is the keyed aggregate store the engine mutates. Get/Put form the
// legacy read-modify-write path; AddDelta and SetDateIfAbsent are the
// store-native atomic primitives that eliminate the lost-update race.
//
// SetResult and SetDate touch only their own column and are no-ops for keys
// that have no row yet.
type Store interface {
	Get(ctx context.Context, teamName, matchID string) (TeamMatchStats, bool, error)
	Put(ctx context.Context, item TeamMatchStats) error
	AddDelta(ctx context.Context, teamName, matchID, opponent string, field StatField, delta int) error
	SetResult(ctx context.Context, teamName, matchID, result string) error
	SetDate(ctx context.Context, teamName, matchID, date string) error
	SetDateIfAbsent(ctx context.Context, teamName, matchID, date string) error
	ListByTeam(ctx context.Context, teamName string) ([]TeamMatchStats, error)
	ListAll(ctx context.Context) ([]TeamMatchStats, error)
}
