package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/streamqa/internal/model"
)

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}

// TestWriteErrorResponse_DomainErrors はmodelのエラー生成関数がそのままJSONに載ることを検証する。
func TestWriteErrorResponse_DomainErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		apiErr   *model.APIError
		code     string
		category string
	}{
		{"未認証", http.StatusUnauthorized, model.NewUnauthorizedError(), model.ErrCodeUnauthorized, "auth"},
		{"他人の質問", http.StatusNotFound, model.NewQuestionNotFoundError("q-9"), model.ErrCodeQuestionNotFound, "question"},
		{"配信者なし", http.StatusNotFound, model.NewStreamerNotFoundError("nobody"), model.ErrCodeStreamerNotFound, "question"},
		{"本文不正", http.StatusBadRequest, model.NewInvalidQuestionError("empty"), model.ErrCodeInvalidQuestion, "validation"},
		{"レート制限", http.StatusTooManyRequests, model.NewRateLimitError(), model.ErrCodeRateLimited, "system"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteErrorResponse(w, tt.status, tt.apiErr)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
			if cc := w.Header().Get("Cache-Control"); cc != "no-store" {
				t.Errorf("Cache-Control = %q, want no-store", cc)
			}

			body := decodeErrorBody(t, w)
			if body.Code != tt.code || body.Category != tt.category {
				t.Errorf("body = %+v, want code %s / category %s", body, tt.code, tt.category)
			}
			if body.Message != tt.apiErr.Message || body.Action != tt.apiErr.Action {
				t.Errorf("message/action = %q/%q, want %q/%q", body.Message, body.Action, tt.apiErr.Message, tt.apiErr.Action)
			}
		})
	}
}

func TestWriteInternalServerError_HidesDetail(t *testing.T) {
	w := httptest.NewRecorder()
	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	body := decodeErrorBody(t, w)
	if body.Code != model.ErrCodeInternal || body.Category != "system" {
		t.Errorf("body = %+v", body)
	}
	if body.Action == "" {
		t.Error("action should not be empty")
	}
}

func TestWriteForbidden_UsesGivenMessage(t *testing.T) {
	w := httptest.NewRecorder()
	WriteForbidden(w, "他の配信者の通知は購読できません。")

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
	body := decodeErrorBody(t, w)
	if body.Code != model.ErrCodeForbidden {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeForbidden)
	}
	if body.Message != "他の配信者の通知は購読できません。" {
		t.Errorf("message = %q", body.Message)
	}
}

// JSONのキー名は画面側のスクリプトが参照するため固定。
func TestErrorResponseBody_JSONKeys(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("bad"))

	var raw map[string]interface{}
	if err := json.NewDecoder(w.Result().Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(raw) != 4 {
		t.Errorf("keys = %v, want exactly code/message/category/action", raw)
	}
	for _, key := range []string{"code", "message", "category", "action"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key: %s", key)
		}
	}
}
