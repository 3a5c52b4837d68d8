package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/streamqa/internal/middleware"
	"github.com/hitoshi/streamqa/internal/model"
)

// QuestionServiceInterface は質問ハンドラーが必要とするサービスインターフェース。
type QuestionServiceInterface interface {
	// ListQuestions は配信者宛ての質問を到着順で返す。
	ListQuestions(ctx context.Context, ownerID string) ([]questionResponse, error)
	// Pin は配信者のピン留めを指定の質問に設定する。
	Pin(ctx context.Context, ownerID, questionID string) error
	// Unpin は配信者のピン留めを解除する。
	Unpin(ctx context.Context, ownerID string) error
	// Ask は配信者宛てに質問を投稿する。
	Ask(ctx context.Context, ownerName, body string) (*questionResponse, error)
	// Pinned はピン留め中の質問を返す。未設定の場合はnil。
	Pinned(ctx context.Context, ownerID string) (*questionResponse, error)
}

// QuestionHandler は質問のRPC風エンドポイントと公開エンドポイントのHTTPハンドラー。
type QuestionHandler struct {
	service QuestionServiceInterface
}

// NewQuestionHandler はQuestionHandlerを生成する。
func NewQuestionHandler(service QuestionServiceInterface) *QuestionHandler {
	return &QuestionHandler{service: service}
}

// --- レスポンス型 ---

// questionResponse は質問のレスポンス。
type questionResponse struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// rpcResponse はRPC風エンドポイントのレスポンスエンベロープ。
type rpcResponse struct {
	Result rpcResult `json:"result"`
}

type rpcResult struct {
	Data interface{} `json:"data"`
}

// embedResponse はオーバーレイ向けのピン留め中の質問。未設定の場合はnull。
type embedResponse struct {
	Question *questionResponse `json:"question"`
}

// pinRequest は questions.pin のリクエストボディ。
type pinRequest struct {
	QuestionID string `json:"questionId"`
}

// askRequest は質問投稿のリクエストボディ。
type askRequest struct {
	Body string `json:"body"`
}

// GetAll はサインイン中の配信者宛ての質問一覧を返す。
// GET /api/trpc/questions.getAll
func (h *QuestionHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	questions, err := h.service.ListQuestions(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rpcResponse{Result: rpcResult{Data: questions}})
}

// Pin は指定の質問をピン留めする。
// POST /api/trpc/questions.pin {"questionId": "..."}
func (h *QuestionHandler) Pin(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req pinRequest
	if err := decodeJSONBody(r, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONの形式が不正です"))
		return
	}

	if err := h.service.Pin(r.Context(), userID, req.QuestionID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Unpin はサインイン中の配信者のピン留めを解除する。対象はセッションから決まり、ボディは読まない。
// POST /api/trpc/questions.unpin
func (h *QuestionHandler) Unpin(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Unpin(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Ask は配信者宛てに質問を投稿する。サインイン不要。
// POST /api/ask/{name} {"body": "..."}
func (h *QuestionHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSONBody(r, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONの形式が不正です"))
		return
	}

	q, err := h.service.Ask(r.Context(), chi.URLParam(r, "name"), req.Body)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, q)
}

// Embed は配信者のピン留め中の質問を返す。オーバーレイの描画側が取得する。
// GET /api/embed/{userId}
func (h *QuestionHandler) Embed(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.Pinned(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, embedResponse{Question: q})
}
