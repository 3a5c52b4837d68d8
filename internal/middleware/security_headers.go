package middleware

import "net/http"

// contentSecurityPolicy はダッシュボードのページに適用するCSP。
// アバター画像はTwitchのCDN（https）から読み込み、WebSocketは同一オリジンに接続する。
const contentSecurityPolicy = "default-src 'self'; img-src 'self' https:; connect-src 'self' ws: wss:; frame-ancestors 'none'"

// hstsValue はHTTPSで公開している場合にだけ付与する。
const hstsValue = "max-age=31536000; includeSubDomains"

// NewSecurityHeadersMiddleware はセキュリティ関連のレスポンスヘッダーを付与するミドルウェアを返す。
// httpsがtrueの場合はStrict-Transport-Securityも付与する。
func NewSecurityHeadersMiddleware(https bool) func(next http.Handler) http.Handler {
	headers := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
		"Permissions-Policy":      "camera=(), microphone=(), geolocation=()",
		"Content-Security-Policy": contentSecurityPolicy,
	}
	if https {
		headers["Strict-Transport-Security"] = hstsValue
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for k, v := range headers {
				w.Header().Set(k, v)
			}
			next.ServeHTTP(w, r)
		})
	}
}
