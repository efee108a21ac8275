package postgres

import "github.com/riskibarqy/match-tracker/internal/domain/event"

type matchEventRow struct {
	Seq        int64  `db:"seq"`
	EventID    string `db:"event_id"`
	MatchID    string `db:"match_id"`
	Timestamp  string `db:"ts"`
	Team       string `db:"team"`
	Opponent   string `db:"opponent"`
	EventType  string `db:"event_type"`
	RawDetails string `db:"event_details"`
}

func (r matchEventRow) toDomain() event.MatchEvent {
	return event.MatchEvent{
		EventID:    r.EventID,
		MatchID:    r.MatchID,
		Timestamp:  r.Timestamp,
		Team:       r.Team,
		Opponent:   r.Opponent,
		EventType:  r.EventType,
		RawDetails: r.RawDetails,
		Seq:        r.Seq,
	}
}
