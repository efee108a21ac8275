package httpapi

import (
	"net/http"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/match-tracker/internal/usecase"
)

type ingestEventRequest struct {
	MatchID      string `json:"match_id" validate:"required"`
	Timestamp    string `json:"timestamp"`
	Team         string `json:"team"`
	Opponent     string `json:"opponent"`
	EventType    string `json:"event_type"`
	EventDetails any    `json:"event_details"`
}

type ingestEventResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    ingestEventData `json:"data"`
}

type ingestEventData struct {
	EventID   string `json:"event_id"`
	Timestamp string `json:"timestamp"`
}

// PostEvent accepts a match event and appends it to the event log. Every
// failure, including a missing match_id, answers 500 with the error
// envelope; that is the contract the ingestion clients were built against.
func (h *Handler) PostEvent(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.PostEvent")
	defer span.End()

	var req ingestEventRequest
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "decode ingest request failed", "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to ingest data.", err)
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.WarnContext(ctx, "invalid ingest request", "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to ingest data.", err)
		return
	}

	item, err := h.ingestService.Append(ctx, usecase.IngestInput{
		MatchID:   req.MatchID,
		Timestamp: req.Timestamp,
		Team:      req.Team,
		Opponent:  req.Opponent,
		EventType: req.EventType,
		Details:   req.EventDetails,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "ingest event failed", "match_id", req.MatchID, "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to ingest data.", err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, ingestEventResponse{
		Status:  statusSuccess,
		Message: "Data successfully ingested.",
		Data: ingestEventData{
			EventID:   item.EventID,
			Timestamp: item.Timestamp,
		},
	})
}
