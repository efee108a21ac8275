package event

import "context"

// Log is the append-only match event log. ListAfter drives the change-stream
// poller: it returns events with Seq strictly greater than afterSeq, in Seq
// order. MaxSeq reports the highest assigned Seq (zero for an empty log) so
// the poller can checkpoint past the existing history on startup.
type Log interface {
	Append(ctx context.Context, item MatchEvent) error
	ListByMatch(ctx context.Context, matchID string) ([]MatchEvent, error)
	ListAfter(ctx context.Context, afterSeq int64, limit int) ([]MatchEvent, error)
	MaxSeq(ctx context.Context) (int64, error)
}
