package httpapi

import (
	"context"
	"net/http"

	sonic "github.com/bytedance/sonic"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// errorEnvelope is the failure body shared by every endpoint:
// {"status":"error","message":...,"error":...}.
type errorEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	_, span := startSpan(ctx, "httpapi.writeJSON")
	defer span.End()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, message string, err error) {
	body := errorEnvelope{
		Status:  statusError,
		Message: message,
	}
	if err != nil {
		body.Error = err.Error()
	}
	writeJSON(ctx, w, status, body)
}
