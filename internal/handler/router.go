package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/streamqa/internal/metrics"
	"github.com/hitoshi/streamqa/internal/middleware"
	"github.com/hitoshi/streamqa/internal/page"
	"github.com/hitoshi/streamqa/internal/realtime"
)

// HealthChecker はヘルスチェック時に依存先の疎通を確認する。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	ViewerResolver    middleware.ViewerResolver
	CSRFConfig        middleware.CSRFConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	HealthChecker     HealthChecker

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 質問
	QuestionService QuestionServiceInterface
	Streamers       StreamerFinder

	// ページ
	PageBuilder *page.Builder
	Templates   *page.Templates

	// リアルタイム通知（nilの場合は /ws を公開しない）
	Hub           *realtime.Hub
	OriginChecker realtime.OriginChecker

	// メトリクス公開（nilの場合は /metrics を公開しない）
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Logging → Recovery → SecurityHeaders → Viewer → CSRF
//
// サインイン必須のルートはさらに RequireViewer → RateLimit(General) を通る。
// /api 配下はCORSを適用し、質問投稿はクライアントIP単位で制限する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.CSRFConfig.CookieSecure))
	r.Use(middleware.NewViewerMiddleware(deps.ViewerResolver))
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	questionHandler := NewQuestionHandler(deps.QuestionService)
	pageHandler := NewPageHandler(deps.PageBuilder, deps.Templates, deps.QuestionService, deps.Streamers)

	r.NotFound(pageHandler.NotFound)

	// --- 運用系 ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Get("/favicon.ico", pageHandler.Favicon)
	r.Handle("/static/*", page.StaticHandler())

	// --- 認証ルート（OAuthフロー） ---
	r.Route("/auth", func(r chi.Router) {
		r.Get("/twitch/login", authHandler.Login)
		r.Get("/twitch/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- ページ ---
	r.Get("/", pageHandler.Home)
	r.Get("/ask/{name}", pageHandler.AskPage)
	r.With(deps.RateLimiter.AskMiddleware()).Post("/ask/{name}", pageHandler.AskSubmit)

	// サインイン必須のページとフォーム送信
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireViewer)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get(page.FragmentPath, pageHandler.Fragment)
		r.Post(page.PinActionPath, pageHandler.PinAction)
		r.Post(page.UnpinActionPath, pageHandler.UnpinAction)

		if deps.Hub != nil {
			r.With(requireOwner("userId")).Get("/ws/{userId}", realtime.ServeWs(deps.Hub, deps.OriginChecker))
		}
	})

	// --- API ---
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

		// 公開エンドポイント
		r.Get("/embed/{userId}", questionHandler.Embed)
		r.With(deps.RateLimiter.AskMiddleware()).Post("/ask/{name}", questionHandler.Ask)

		// RPC風エンドポイント（サインイン必須）
		r.Route("/trpc", func(r chi.Router) {
			r.Use(middleware.RequireViewer)
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/questions.getAll", questionHandler.GetAll)
			r.Post("/questions.pin", questionHandler.Pin)
			r.Post("/questions.unpin", questionHandler.Unpin)
		})
	})

	return r
}

// requireOwner はURLパラメータのユーザーIDがサインイン中のユーザーと一致しない場合に403を返す。
func requireOwner(param string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := middleware.UserIDFromContext(r.Context())
			if err != nil || chi.URLParam(r, param) != userID {
				middleware.WriteForbidden(w, "他の配信者の通知は購読できません。")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// healthHandler はDBへの疎通を確認し、結果をJSONで返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
