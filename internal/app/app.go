// Package app はコマンドごとの依存関係の組み立てと起動を行う。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hitoshi/streamqa/internal/auth"
	"github.com/hitoshi/streamqa/internal/clipboard"
	"github.com/hitoshi/streamqa/internal/config"
	"github.com/hitoshi/streamqa/internal/database"
	"github.com/hitoshi/streamqa/internal/handler"
	"github.com/hitoshi/streamqa/internal/logger"
	"github.com/hitoshi/streamqa/internal/metrics"
	"github.com/hitoshi/streamqa/internal/middleware"
	"github.com/hitoshi/streamqa/internal/model"
	"github.com/hitoshi/streamqa/internal/page"
	"github.com/hitoshi/streamqa/internal/question"
	"github.com/hitoshi/streamqa/internal/realtime"
	"github.com/hitoshi/streamqa/internal/repository"
	"github.com/hitoshi/streamqa/internal/security"
	"github.com/hitoshi/streamqa/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 30 * time.Second

// Run はアプリケーションのメインエントリーポイント。argsにはos.Args[1:]を渡す。
// SIGINTまたはSIGTERMを受信するとコマンドのコンテキストがキャンセルされる。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand(w)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// Init は設定を読み込み、JSON構造化ログをセットアップする。
// 設定の読み込み前にもログを使えるよう、先にLOG_LEVELだけでロガーを初期化する。
func Init(w io.Writer, configPath string) (*config.Config, error) {
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, cfg.LogLevel)
	return cfg, nil
}

// runServe はHTTPサーバーを起動する。
// DB接続を開き、全依存関係をワイヤリングし、ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, opts *options) error {
	cfg, err := Init(opts.out, opts.configPath)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", "serve"),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	// 1. DB接続
	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database connection established")

	// 2. メトリクス
	reg := newRegistry()
	mc := metrics.NewCollector(reg)

	// 3. リポジトリ
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	questionRepo := repository.NewPostgresQuestionRepo(db)

	// 4. 更新通知（REDIS_URL設定時はインスタンス間で共有する）
	var pub realtime.Publisher
	var sub realtime.Subscriber
	if cfg.RedisURL != "" {
		rdb, err := realtime.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()
		ps := realtime.NewRedisPubSub(rdb)
		pub, sub = ps, ps
		slog.Info("realtime fan-out via redis enabled")
	}
	hub := realtime.NewHub(pub, sub, mc)
	defer hub.Close()

	// 5. ドメインサービス
	oauthProvider := auth.NewTwitchOAuthProvider(auth.TwitchOAuthConfig{
		ClientID:     cfg.TwitchClientID,
		ClientSecret: cfg.TwitchClientSecret,
		RedirectURL:  cfg.TwitchRedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, userRepo, identRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	questionService := question.NewService(questionRepo, userRepo, security.NewTextSanitizer(), hub, mc)
	questionAdapter := handler.NewQuestionServiceAdapter(questionService)

	// 6. ルーター
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAsk))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		Metrics:           mc,
		ViewerResolver:    authService,
		CSRFConfig:        middleware.CSRFConfig{CookieSecure: cfg.CookieSecure, CookieDomain: cfg.CookieDomain},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		HealthChecker:     db,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		QuestionService: questionAdapter,
		Streamers:       questionAdapter,

		PageBuilder: page.NewBuilder(cfg.BaseURL, questionService, cfg.PageQueryTimeout, mc),
		Templates:   page.MustParseTemplates(),

		Hub:           hub,
		OriginChecker: realtime.AllowOrigins(strings.TrimRight(cfg.BaseURL, "/"), cfg.CORSAllowedOrigin),

		MetricsHandler: metrics.Handler(reg),
	})

	// 7. HTTPサーバー
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return serveUntilDone(ctx, server)
}

// runWorker は期限切れセッションの定期削除を実行する。
// コンテナのヘルスチェックとメトリクス収集のため、/health と /metrics だけを公開する。
func runWorker(ctx context.Context, opts *options) error {
	cfg, err := Init(opts.out, opts.configPath)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database connection established (worker)")

	reg := newRegistry()
	mc := metrics.NewCollector(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	job := cleanup.NewCleanupJob(repository.NewPostgresSessionRepo(db), slog.Default(), mc)
	go job.Start(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker starting",
		slog.Duration("session_cleanup_interval", cfg.SessionCleanupInterval),
	)
	return serveUntilDone(ctx, server)
}

// runMigrate はマイグレーションを適用する。stepsが0の場合は未適用分を全て適用する。
func runMigrate(opts *options, steps int) error {
	cfg, err := Init(opts.out, opts.configPath)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.Int("steps", steps),
	)

	version, err := database.MigrateSteps(cfg.DatabaseURL, steps)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runURLs は配信者の共有用URLを表示する。copyAskがtrueの場合は質問投稿URLを端末のクリップボードにも書き込む。
func runURLs(ctx context.Context, opts *options, name string, copyAsk bool) error {
	cfg, err := Init(io.Discard, opts.configPath)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	questionService := question.NewService(
		repository.NewPostgresQuestionRepo(db),
		repository.NewPostgresUserRepo(db),
		security.NewTextSanitizer(),
		nil, nil,
	)
	user, err := questionService.Streamer(ctx, name)
	if err != nil {
		return err
	}

	viewer := model.NewViewer(user)
	printURLs(opts.out, cfg.BaseURL, viewer)
	if copyAsk {
		clipboard.CopyURL(clipboard.NewTerminal(cfg.BaseURL, os.Stdout), page.AskPath(viewer))()
	}
	return nil
}

// printURLs はダッシュボードとナビゲーションのコピー対象URLを1行ずつ書き出す。
func printURLs(w io.Writer, origin string, viewer *model.Viewer) {
	fmt.Fprintf(w, "%-10s %s\n", "dashboard", clipboard.URL(origin, "/"))
	for _, action := range page.NewNavButtons(origin, viewer).Actions {
		if !action.IsCopy() {
			continue
		}
		label := strings.TrimPrefix(action.Label, "Copy ")
		label = strings.TrimSuffix(label, " url")
		fmt.Fprintf(w, "%-10s %s\n", label, action.CopyURL)
	}
}

// serveUntilDone はctxがキャンセルされるまでserverを動かし、その後グレースフルシャットダウンする。
func serveUntilDone(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server listen error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down http server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("http server stopped gracefully")
	return nil
}

// newRegistry はプロセスとGoランタイムのメトリクスを含むレジストリを返す。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func healthcheckURL(port string) string {
	return fmt.Sprintf("http://localhost:%s/health", port)
}

// checkHealth は/healthにHTTPリクエストを送り、200以外をエラーとして返す。
func checkHealth(ctx context.Context, target string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("health check request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// maskDatabaseURL はデータベースURLのパスワードを伏せる。解析できない場合は全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
