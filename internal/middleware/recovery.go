package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// NewRecoveryMiddleware はハンドラー内のpanicを500応答に変換するミドルウェアを返す。
// http.ErrAbortHandlerは接続を切るための合図なので握りつぶさない。
// ロギングミドルウェアより内側に置くと、解決済みのuser_idもログに含まれる。
func NewRecoveryMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				attrs := []any{
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				}
				if info, ok := r.Context().Value(requestInfoContextKey).(*requestInfo); ok && info.userID != "" {
					attrs = append(attrs, slog.String("user_id", info.userID))
				}
				slog.Error("panic recovered", attrs...)

				WriteInternalServerError(w)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
