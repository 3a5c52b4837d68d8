package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/streamqa/internal/middleware"
	"github.com/hitoshi/streamqa/internal/model"
	"github.com/hitoshi/streamqa/internal/page"
)

// StreamerFinder は質問投稿ページの宛先の配信者を解決する。
type StreamerFinder interface {
	Streamer(ctx context.Context, name string) (*model.User, error)
}

// PageHandler はHTMLページとフォーム送信のHTTPハンドラー。
type PageHandler struct {
	builder   *page.Builder
	templates *page.Templates
	questions QuestionServiceInterface
	streamers StreamerFinder
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(builder *page.Builder, templates *page.Templates, questions QuestionServiceInterface, streamers StreamerFinder) *PageHandler {
	return &PageHandler{
		builder:   builder,
		templates: templates,
		questions: questions,
		streamers: streamers,
	}
}

// Home はダッシュボードを描画する。セッションは描画前に解決済み。
// GET /
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.ViewerFromContext(r.Context())
	data := h.builder.Home(r.Context(), viewer, middleware.CSRFTokenFromContext(r.Context()))

	h.render(w, http.StatusOK, func(buf *bytes.Buffer) error {
		return h.templates.RenderHome(buf, data)
	})
}

// Fragment は質問一覧部分だけを描画する。サーバー描画で間に合わなかった一覧の読み込みと、
// 更新通知を受けた後の再取得に使う。
// GET /fragments/questions
func (h *PageHandler) Fragment(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.ViewerFromContext(r.Context())
	if viewer == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	data := h.builder.Fragment(r.Context(), viewer, middleware.CSRFTokenFromContext(r.Context()))

	h.render(w, http.StatusOK, func(buf *bytes.Buffer) error {
		return h.templates.RenderQuestions(buf, data)
	})
}

// PinAction はフォーム送信で質問をピン留めし、ダッシュボードに戻す。
// POST /actions/pin (questionId)
func (h *PageHandler) PinAction(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.questions.Pin(r.Context(), userID, r.PostFormValue(page.QuestionIDField)); err != nil {
		handleServiceError(w, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// UnpinAction はフォーム送信でピン留めを解除し、ダッシュボードに戻す。
// POST /actions/unpin
func (h *PageHandler) UnpinAction(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.questions.Unpin(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// AskPage は視聴者向けの質問投稿フォームを描画する。
// GET /ask/{name}
func (h *PageHandler) AskPage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := h.streamers.Streamer(r.Context(), name); err != nil {
		h.renderStreamerError(w, r, err)
		return
	}

	data := page.NewAskData(name, middleware.CSRFTokenFromContext(r.Context()))
	data.Sent = r.URL.Query().Get("sent") == "1"

	h.render(w, http.StatusOK, func(buf *bytes.Buffer) error {
		return h.templates.RenderAsk(buf, data)
	})
}

// AskSubmit はフォームから投稿された質問を登録する。
// 本文が不正な場合は入力を残したままフォームを再表示する。
// POST /ask/{name} (body)
func (h *PageHandler) AskSubmit(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	body := r.PostFormValue("body")

	_, err := h.questions.Ask(r.Context(), name, body)
	if err == nil {
		http.Redirect(w, r, "/ask/"+url.PathEscape(name)+"?sent=1", http.StatusSeeOther)
		return
	}
	if apiErr := apiErrorWithCode(err, model.ErrCodeInvalidQuestion); apiErr != nil {
		data := page.NewAskData(name, middleware.CSRFTokenFromContext(r.Context()))
		data.Body = body
		data.Error = apiErr.Action
		h.render(w, http.StatusBadRequest, func(buf *bytes.Buffer) error {
			return h.templates.RenderAsk(buf, data)
		})
		return
	}
	h.renderStreamerError(w, r, err)
}

// NotFound は未定義のパスに404ページを返す。
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderNotFound(w, "お探しのページは見つかりませんでした。")
}

// Favicon はアイコンを持たないため空のレスポンスを返す。
// GET /favicon.ico
func (h *PageHandler) Favicon(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusNoContent)
}

func (h *PageHandler) renderStreamerError(w http.ResponseWriter, r *http.Request, err error) {
	if apiErrorWithCode(err, model.ErrCodeStreamerNotFound) != nil {
		h.renderNotFound(w, "配信者が見つかりません。共有されたURLを確認してください。")
		return
	}
	slog.Error("failed to serve ask page",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

func (h *PageHandler) renderNotFound(w http.ResponseWriter, message string) {
	data := page.NotFoundData{Meta: page.HomeMeta(), Message: message}
	h.render(w, http.StatusNotFound, func(buf *bytes.Buffer) error {
		return h.templates.RenderNotFound(buf, data)
	})
}

// render はテンプレートをバッファに描画してから書き込む。描画に失敗した場合は500だけを返す。
func (h *PageHandler) render(w http.ResponseWriter, statusCode int, fn func(buf *bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		slog.Error("failed to render page", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	w.Write(buf.Bytes())
}
