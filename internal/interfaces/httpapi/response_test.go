package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	sonic "github.com/bytedance/sonic"
)

var errBoom = errors.New("boom")

func TestWriteError_WithoutDetail(t *testing.T) {
	rec := httptest.NewRecorder()

	writeError(t.Context(), rec, http.StatusBadRequest, "Missing match_id parameter.", nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("unexpected content type %q", got)
	}

	body := map[string]any{}
	if err := sonic.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "error" || body["message"] != "Missing match_id parameter." {
		t.Fatalf("unexpected body: %+v", body)
	}
	if _, ok := body["error"]; ok {
		t.Fatalf("error field must be omitted when detail is nil: %+v", body)
	}
}

func TestWriteError_WithDetail(t *testing.T) {
	rec := httptest.NewRecorder()

	writeError(t.Context(), rec, http.StatusInternalServerError, "Failed to ingest data.", errBoom)

	body := map[string]any{}
	if err := sonic.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["error"] != "boom" {
		t.Fatalf("expected error detail, got %+v", body)
	}
}

func TestWriteJSON_EncodesPayload(t *testing.T) {
	rec := httptest.NewRecorder()

	writeJSON(t.Context(), rec, http.StatusOK, map[string]string{"status": "ok"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := map[string]any{}
	if err := sonic.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body: %+v", body)
	}
}
