package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/streamqa/internal/middleware"
	"github.com/hitoshi/streamqa/internal/model"
)

// --- モック定義 ---

type mockQuestionService struct {
	listQuestionsFn func(ctx context.Context, ownerID string) ([]questionResponse, error)
	pinFn           func(ctx context.Context, ownerID, questionID string) error
	unpinFn         func(ctx context.Context, ownerID string) error
	askFn           func(ctx context.Context, ownerName, body string) (*questionResponse, error)
	pinnedFn        func(ctx context.Context, ownerID string) (*questionResponse, error)
}

func (m *mockQuestionService) ListQuestions(ctx context.Context, ownerID string) ([]questionResponse, error) {
	if m.listQuestionsFn != nil {
		return m.listQuestionsFn(ctx, ownerID)
	}
	return []questionResponse{}, nil
}

func (m *mockQuestionService) Pin(ctx context.Context, ownerID, questionID string) error {
	if m.pinFn != nil {
		return m.pinFn(ctx, ownerID, questionID)
	}
	return nil
}

func (m *mockQuestionService) Unpin(ctx context.Context, ownerID string) error {
	if m.unpinFn != nil {
		return m.unpinFn(ctx, ownerID)
	}
	return nil
}

func (m *mockQuestionService) Ask(ctx context.Context, ownerName, body string) (*questionResponse, error) {
	if m.askFn != nil {
		return m.askFn(ctx, ownerName, body)
	}
	return &questionResponse{}, nil
}

func (m *mockQuestionService) Pinned(ctx context.Context, ownerID string) (*questionResponse, error) {
	if m.pinnedFn != nil {
		return m.pinnedFn(ctx, ownerID)
	}
	return nil, nil
}

// withUser はサインイン済みのリクエストを作る。
func withUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// withURLParam はchiのURLパラメータを設定したリクエストを作る。
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body.Code
}

// --- GetAll ---

func TestQuestionHandler_GetAll_ReturnsRPCEnvelope(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &mockQuestionService{
		listQuestionsFn: func(ctx context.Context, ownerID string) ([]questionResponse, error) {
			if ownerID != "user-1" {
				t.Errorf("ownerID = %q, want user-1", ownerID)
			}
			return []questionResponse{
				{ID: "q1", Body: "first", CreatedAt: createdAt},
				{ID: "q2", Body: "second", CreatedAt: createdAt.Add(time.Minute)},
			}, nil
		},
	}
	h := NewQuestionHandler(svc)

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/trpc/questions.getAll", nil), "user-1")
	w := httptest.NewRecorder()
	h.GetAll(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body struct {
		Result struct {
			Data []struct {
				ID        string    `json:"id"`
				Body      string    `json:"body"`
				CreatedAt time.Time `json:"createdAt"`
			} `json:"data"`
		} `json:"result"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Result.Data) != 2 {
		t.Fatalf("len(data) = %d, want 2", len(body.Result.Data))
	}
	if body.Result.Data[0].ID != "q1" || body.Result.Data[1].ID != "q2" {
		t.Errorf("order = %q,%q; want q1,q2", body.Result.Data[0].ID, body.Result.Data[1].ID)
	}
	if !body.Result.Data[0].CreatedAt.Equal(createdAt) {
		t.Errorf("createdAt = %v", body.Result.Data[0].CreatedAt)
	}
}

func TestQuestionHandler_GetAll_EmptyIsArray(t *testing.T) {
	h := NewQuestionHandler(&mockQuestionService{})

	w := httptest.NewRecorder()
	h.GetAll(w, withUser(httptest.NewRequest(http.MethodGet, "/", nil), "user-1"))

	if got := strings.TrimSpace(w.Body.String()); got != `{"result":{"data":[]}}` {
		t.Errorf("body = %s", got)
	}
}

func TestQuestionHandler_GetAll_Unauthenticated(t *testing.T) {
	h := NewQuestionHandler(&mockQuestionService{})

	w := httptest.NewRecorder()
	h.GetAll(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if code := decodeErrorCode(t, w); code != model.ErrCodeUnauthorized {
		t.Errorf("code = %q", code)
	}
}

func TestQuestionHandler_GetAll_ServiceError_Returns500(t *testing.T) {
	svc := &mockQuestionService{
		listQuestionsFn: func(ctx context.Context, ownerID string) ([]questionResponse, error) {
			return nil, errors.New("db down")
		},
	}
	h := NewQuestionHandler(svc)

	w := httptest.NewRecorder()
	h.GetAll(w, withUser(httptest.NewRequest(http.MethodGet, "/", nil), "user-1"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if code := decodeErrorCode(t, w); code != "INTERNAL_ERROR" {
		t.Errorf("code = %q", code)
	}
}

// --- Pin / Unpin ---

// TestQuestionHandler_Pin_CallsServiceOnce はピン操作がquestionIdを1回だけ渡すことを検証する。
func TestQuestionHandler_Pin_CallsServiceOnce(t *testing.T) {
	var calls []string
	svc := &mockQuestionService{
		pinFn: func(ctx context.Context, ownerID, questionID string) error {
			calls = append(calls, ownerID+":"+questionID)
			return nil
		},
		unpinFn: func(ctx context.Context, ownerID string) error {
			t.Error("unpin should not be called")
			return nil
		},
	}
	h := NewQuestionHandler(svc)

	req := withUser(httptest.NewRequest(http.MethodPost, "/api/trpc/questions.pin", strings.NewReader(`{"questionId":"q-42"}`)), "user-1")
	w := httptest.NewRecorder()
	h.Pin(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if len(calls) != 1 || calls[0] != "user-1:q-42" {
		t.Errorf("pin calls = %v, want [user-1:q-42]", calls)
	}
}

func TestQuestionHandler_Pin_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		pinErr     error
		wantStatus int
		wantCode   string
	}{
		{name: "不正なJSON", body: `{"questionId":`, wantStatus: http.StatusBadRequest, wantCode: model.ErrCodeInvalidRequest},
		{name: "他人の質問", body: `{"questionId":"q-x"}`, pinErr: model.NewQuestionNotFoundError("q-x"), wantStatus: http.StatusNotFound, wantCode: model.ErrCodeQuestionNotFound},
		{name: "ID未指定", body: `{}`, pinErr: model.NewInvalidRequestError("questionIdは必須です"), wantStatus: http.StatusBadRequest, wantCode: model.ErrCodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockQuestionService{
				pinFn: func(ctx context.Context, ownerID, questionID string) error {
					return tt.pinErr
				},
			}
			h := NewQuestionHandler(svc)

			req := withUser(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body)), "user-1")
			w := httptest.NewRecorder()
			h.Pin(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if code := decodeErrorCode(t, w); code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

// TestQuestionHandler_Unpin_IgnoresBody は解除対象がセッションから決まることを検証する。
func TestQuestionHandler_Unpin_IgnoresBody(t *testing.T) {
	var calls []string
	svc := &mockQuestionService{
		unpinFn: func(ctx context.Context, ownerID string) error {
			calls = append(calls, ownerID)
			return nil
		},
	}
	h := NewQuestionHandler(svc)

	req := withUser(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"userId":"someone-else"}`)), "user-1")
	w := httptest.NewRecorder()
	h.Unpin(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if len(calls) != 1 || calls[0] != "user-1" {
		t.Errorf("unpin calls = %v, want [user-1]", calls)
	}
}

// --- Ask / Embed ---

func TestQuestionHandler_Ask_Created(t *testing.T) {
	svc := &mockQuestionService{
		askFn: func(ctx context.Context, ownerName, body string) (*questionResponse, error) {
			if ownerName != "Theo" || body != "hello?" {
				t.Errorf("Ask(%q, %q)", ownerName, body)
			}
			return &questionResponse{ID: "q-new", Body: body}, nil
		},
	}
	h := NewQuestionHandler(svc)

	req := withURLParam(httptest.NewRequest(http.MethodPost, "/api/ask/Theo", strings.NewReader(`{"body":"hello?"}`)), "name", "Theo")
	w := httptest.NewRecorder()
	h.Ask(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	var body questionResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ID != "q-new" {
		t.Errorf("id = %q", body.ID)
	}
}

func TestQuestionHandler_Ask_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "配信者不明", err: model.NewStreamerNotFoundError("nobody"), wantStatus: http.StatusNotFound},
		{name: "本文不正", err: model.NewInvalidQuestionError("本文が空です"), wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockQuestionService{
				askFn: func(ctx context.Context, ownerName, body string) (*questionResponse, error) {
					return nil, tt.err
				},
			}
			h := NewQuestionHandler(svc)

			req := withURLParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"body":""}`)), "name", "nobody")
			w := httptest.NewRecorder()
			h.Ask(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestQuestionHandler_Embed(t *testing.T) {
	svc := &mockQuestionService{
		pinnedFn: func(ctx context.Context, ownerID string) (*questionResponse, error) {
			if ownerID == "user-1" {
				return &questionResponse{ID: "q1", Body: "pinned!"}, nil
			}
			return nil, nil
		},
	}
	h := NewQuestionHandler(svc)

	w := httptest.NewRecorder()
	h.Embed(w, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "userId", "user-1"))
	var pinned struct {
		Question *questionResponse `json:"question"`
	}
	if err := json.NewDecoder(w.Body).Decode(&pinned); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pinned.Question == nil || pinned.Question.Body != "pinned!" {
		t.Errorf("question = %+v", pinned.Question)
	}

	w = httptest.NewRecorder()
	h.Embed(w, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "userId", "user-2"))
	if got := strings.TrimSpace(w.Body.String()); got != `{"question":null}` {
		t.Errorf("body = %s, want null question", got)
	}
}

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{model.ErrCodeQuestionNotFound, http.StatusNotFound},
		{model.ErrCodeStreamerNotFound, http.StatusNotFound},
		{model.ErrCodeInvalidQuestion, http.StatusBadRequest},
		{model.ErrCodeInvalidRequest, http.StatusBadRequest},
		{model.ErrCodeUnauthorized, http.StatusUnauthorized},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := mapAPIErrorToHTTPStatus(&model.APIError{Code: tt.code}); got != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.code, got, tt.want)
		}
	}
}
