// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/streamqa/internal/model"
)

// SessionCookieName はセッションIDを保持するHttpOnly Cookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	viewerContextKey      = contextKey("viewer")
	requestInfoContextKey = contextKey("request_info")
	csrfTokenContextKey   = contextKey("csrf_token")
)

// ViewerResolver はセッションIDからサインイン中のViewerを解決する。
// auth.Serviceが実装する。未ログインの場合は(nil, nil)を返す。
type ViewerResolver interface {
	CurrentViewer(ctx context.Context, sessionID string) (*model.Viewer, error)
}

// NewViewerMiddleware はCookieのセッションからViewerを解決してコンテキストに注入する。
// 未ログインでもリクエストは通し、コンテキストにはnilのViewerが入る。
// 解決に失敗した場合はログに記録し、未ログインとして扱う。
func NewViewerMiddleware(resolver ViewerResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var viewer *model.Viewer
			if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
				viewer, err = resolver.CurrentViewer(r.Context(), cookie.Value)
				if err != nil {
					slog.Error("failed to resolve session",
						slog.String("error", err.Error()),
					)
					viewer = nil
				}
			}

			if viewer != nil {
				if info, ok := r.Context().Value(requestInfoContextKey).(*requestInfo); ok {
					info.userID = viewer.UserID
				}
			}
			next.ServeHTTP(w, r.WithContext(ContextWithViewer(r.Context(), viewer)))
		})
	}
}

// RequireViewer はサインイン済みでないリクエストに401を返すミドルウェア。
// NewViewerMiddlewareの後に配置する。
func RequireViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ViewerFromContext(r.Context()) == nil {
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ViewerFromContext はコンテキストのViewerを返す。未ログインの場合はnil。
func ViewerFromContext(ctx context.Context) *model.Viewer {
	v, _ := ctx.Value(viewerContextKey).(*model.Viewer)
	return v
}

// ContextWithViewer はコンテキストにViewerを注入する。
func ContextWithViewer(ctx context.Context, viewer *model.Viewer) context.Context {
	return context.WithValue(ctx, viewerContextKey, viewer)
}

// UserIDFromContext はサインイン中のユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	v := ViewerFromContext(ctx)
	if v == nil || v.UserID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return v.UserID, nil
}

// ContextWithUserID はユーザーIDのみを持つViewerをコンテキストに注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return ContextWithViewer(ctx, &model.Viewer{UserID: userID})
}
