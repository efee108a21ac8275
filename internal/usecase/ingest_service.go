package usecase

import (
	"context"
	"fmt"
	"strings"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/match-tracker/internal/domain/event"
	"github.com/riskibarqy/match-tracker/internal/platform/id"
	"github.com/riskibarqy/match-tracker/internal/platform/logging"
)

// IngestService appends match events to the event log. It never touches the
// aggregate store; aggregation is driven by the log's change stream.
type IngestService struct {
	log    event.Log
	idGen  id.Generator
	logger *logging.Logger
}

func NewIngestService(log event.Log, idGen id.Generator, logger *logging.Logger) *IngestService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &IngestService{
		log:    log,
		idGen:  idGen,
		logger: logger,
	}
}

type IngestInput struct {
	MatchID   string
	Timestamp string
	Team      string
	Opponent  string
	EventType string
	Details   any
}

// Append validates the input, assigns a unique event id and appends the
// event to the log. Only match_id is mandatory; everything else is stored
// as provided.
func (s *IngestService) Append(ctx context.Context, input IngestInput) (event.MatchEvent, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.IngestService.Append")
	defer span.End()

	matchID := strings.TrimSpace(input.MatchID)
	if matchID == "" {
		return event.MatchEvent{}, fmt.Errorf("%w: match_id is required", ErrInvalidInput)
	}

	rawDetails, err := sonic.MarshalString(input.Details)
	if err != nil {
		return event.MatchEvent{}, fmt.Errorf("marshal event details: %w", err)
	}

	suffix, err := s.idGen.NewID()
	if err != nil {
		return event.MatchEvent{}, fmt.Errorf("generate event id: %w", err)
	}

	item := event.MatchEvent{
		EventID:    fmt.Sprintf("%s_%s_%s", matchID, input.Timestamp, suffix),
		MatchID:    matchID,
		Timestamp:  input.Timestamp,
		Team:       input.Team,
		Opponent:   input.Opponent,
		EventType:  input.EventType,
		RawDetails: rawDetails,
	}

	if err := s.log.Append(ctx, item); err != nil {
		return event.MatchEvent{}, fmt.Errorf("append match event: %w", err)
	}

	s.logger.InfoContext(ctx, "match event ingested",
		"event_id", item.EventID,
		"match_id", item.MatchID,
		"event_type", item.EventType,
	)

	return item, nil
}
