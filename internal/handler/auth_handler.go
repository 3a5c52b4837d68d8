// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/hitoshi/streamqa/internal/middleware"
	"github.com/hitoshi/streamqa/internal/model"
)

const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	CurrentViewer(ctx context.Context, sessionID string) (*model.Viewer, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はTwitch OAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// viewerResponse はサインイン中のユーザー情報のレスポンス。
type viewerResponse struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// oauthStateMaxAge はサインイン開始からコールバックまでの猶予（秒）。
const oauthStateMaxAge = 600

// setCookie はHttpOnly・SameSite=LaxのCookieを書き込む。maxAgeが負の場合は削除になる。
// セッションCookieだけがCookieDomainの対象になる。
func (h *AuthHandler) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if name == middleware.SessionCookieName {
		c.Domain = h.config.CookieDomain
	}
	http.SetCookie(w, c)
}

// Login はstateをCookieに保存してTwitchの認可画面へリダイレクトする。
// GET /auth/twitch/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	h.setCookie(w, oauthStateCookie, state, oauthStateMaxAge)
	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/twitch/callback?code=xxx&state=yyy
//
// 利用者がTwitch側で同意を取り消した場合(error=access_denied)はエラー画面を出さず、
// サインアウト状態のダッシュボードに戻す。
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	state := query.Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch", slog.String("query_state", state))
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("stateが一致しません"))
		return
	}
	h.setCookie(w, oauthStateCookie, "", -1)

	if query.Get("error") == "access_denied" {
		slog.Info("oauth consent denied")
		http.Redirect(w, r, h.config.BaseURL, http.StatusSeeOther)
		return
	}

	code := query.Get("code")
	if code == "" {
		slog.Warn("oauth callback without code", slog.String("error", query.Get("error")))
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("認可コードがありません"))
		return
	}

	session, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	h.setCookie(w, middleware.SessionCookieName, session.ID, h.config.SessionMaxAge)
	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// Logout はセッションを破棄してダッシュボードに戻す。
// サーバー側の削除に失敗してもCookieは必ず消す。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.service.Logout(r.Context(), cookie.Value); err != nil {
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
	}
	h.setCookie(w, middleware.SessionCookieName, "", -1)

	// フォーム送信からの遷移のため303でGETに切り替える
	http.Redirect(w, r, h.config.BaseURL, http.StatusSeeOther)
}

// Me は現在のサインインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.ViewerFromContext(r.Context())
	if viewer == nil {
		cookie, err := r.Cookie(middleware.SessionCookieName)
		if err == nil && cookie.Value != "" {
			viewer, err = h.service.CurrentViewer(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to get current viewer", slog.String("error", err.Error()))
				viewer = nil
			}
		}
	}
	if viewer == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	writeJSON(w, http.StatusOK, viewerResponse{
		UserID:      viewer.UserID,
		DisplayName: viewer.DisplayName,
		AvatarURL:   viewer.AvatarURL,
	})
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
