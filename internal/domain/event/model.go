package event

import (
	"fmt"
	"strings"

	sonic "github.com/bytedance/sonic"
)

const (
	TypeGoal = "goal"
	TypeFoul = "foul"
)

// MatchEvent is one append-only entry in the match event log. Events are
// immutable once appended; Seq is assigned by the log and orders the change
// stream, not the match timeline.
type MatchEvent struct {
	EventID    string
	MatchID    string
	Timestamp  string
	Team       string
	Opponent   string
	EventType  string
	RawDetails string
	Seq        int64
}

// HasRequiredFields reports whether the event carries everything the
// aggregation path needs. Events failing this check are dropped, not retried.
func (e MatchEvent) HasRequiredFields() bool {
	return strings.TrimSpace(e.EventType) != "" &&
		strings.TrimSpace(e.Team) != "" &&
		strings.TrimSpace(e.MatchID) != "" &&
		strings.TrimSpace(e.RawDetails) != ""
}

type ChangeKind string

const (
	ChangeInsert ChangeKind = "INSERT"
	ChangeModify ChangeKind = "MODIFY"
	ChangeRemove ChangeKind = "REMOVE"
)

// ChangeNotification is emitted once per event-log mutation. Only inserts
// carry a new image; consumers must tolerate duplicates (at-least-once) and
// out-of-order delivery across matches.
type ChangeNotification struct {
	Kind     ChangeKind
	NewImage *MatchEvent
}

type PlayerRef struct {
	Name string `json:"name"`
}

// Details is the typed form of an event's detail payload. The payload is
// parsed exactly once, at the boundary, into the variant matching the event
// type; consumers never re-parse raw JSON.
type Details interface {
	detailKind() string
}

type GoalDetails struct {
	Player   PlayerRef `json:"player"`
	GoalType string    `json:"goal_type"`
	Minute   *int      `json:"minute"`
	VideoURL string    `json:"video_url"`
}

func (GoalDetails) detailKind() string { return TypeGoal }

type FoulDetails struct {
	Player PlayerRef `json:"player"`
	Card   string    `json:"card"`
	Minute *int      `json:"minute"`
}

func (FoulDetails) detailKind() string { return TypeFoul }

// GenericDetails holds the payload of event types the engine has no schema
// for. The raw map is kept so query consumers can still surface fields.
type GenericDetails struct {
	Raw map[string]any
}

func (GenericDetails) detailKind() string { return "generic" }

// ParseDetails decodes the serialized detail payload for the given event
// type. A decode failure is returned to the caller; the upstream delivery
// mechanism treats it as retryable.
func ParseDetails(eventType, raw string) (Details, error) {
	switch eventType {
	case TypeGoal:
		var d GoalDetails
		if err := sonic.UnmarshalString(raw, &d); err != nil {
			return nil, fmt.Errorf("parse goal details: %w", err)
		}
		return d, nil
	case TypeFoul:
		var d FoulDetails
		if err := sonic.UnmarshalString(raw, &d); err != nil {
			return nil, fmt.Errorf("parse foul details: %w", err)
		}
		return d, nil
	default:
		var m map[string]any
		if err := sonic.UnmarshalString(raw, &m); err != nil {
			return nil, fmt.Errorf("parse %s details: %w", eventType, err)
		}
		return GenericDetails{Raw: m}, nil
	}
}
