package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hitoshi/streamqa/internal/middleware"
	"github.com/hitoshi/streamqa/internal/model"
	"github.com/hitoshi/streamqa/internal/page"
	"github.com/hitoshi/streamqa/internal/realtime"
)

const testSessionID = "session-abc"

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// newTestRouter はセッションID testSessionID を owner-1 として解決するルーターを返す。
func newTestRouter(t *testing.T, questions *mockQuestionService, health HealthChecker) http.Handler {
	t.Helper()

	auth := &mockAuthService{
		currentViewerFn: func(ctx context.Context, sessionID string) (*model.Viewer, error) {
			if sessionID == testSessionID {
				return &model.Viewer{UserID: "owner-1", DisplayName: "Theo"}, nil
			}
			return nil, nil
		},
	}
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		ViewerResolver:    auth,
		CSRFConfig:        middleware.CSRFConfig{},
		CORSAllowedOrigin: "https://overlay.example.com",
		RateLimiter:       rl,
		HealthChecker:     health,
		AuthService:       auth,
		AuthConfig:        AuthHandlerConfig{BaseURL: "http://localhost:8080", SessionMaxAge: 3600},
		QuestionService:   questions,
		Streamers:         knownStreamer("theo"),
		PageBuilder:       page.NewBuilder("http://localhost:8080", &mockLister{}, time.Second, nil),
		Templates:         page.MustParseTemplates(),
		Hub:               realtime.NewHub(nil, nil, nil),
		OriginChecker:     realtime.AllowOrigins("http://localhost:8080"),
	})
}

func withSession(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: testSessionID})
	return req
}

func TestRouter_Home_AnonymousShowsSignIn(t *testing.T) {
	router := newTestRouter(t, &mockQuestionService{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	doc, err := goquery.NewDocumentFromReader(w.Body)
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	if doc.Find("main.sign-in").Length() != 1 {
		t.Error("expected sign-in page for anonymous visitor")
	}
	if w.Header().Get("X-Frame-Options") == "" {
		t.Error("expected security headers on page responses")
	}
}

func TestRouter_GetAll_RequiresSession(t *testing.T) {
	svc := &mockQuestionService{
		listQuestionsFn: func(ctx context.Context, ownerID string) ([]questionResponse, error) {
			if ownerID != "owner-1" {
				t.Errorf("ownerID = %q, want owner-1", ownerID)
			}
			return []questionResponse{{ID: "q1", Body: "hi"}}, nil
		},
	}
	router := newTestRouter(t, svc, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/trpc/questions.getAll", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, withSession(httptest.NewRequest(http.MethodGet, "/api/trpc/questions.getAll", nil)))
	if w.Code != http.StatusOK {
		t.Errorf("signed-in status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"id":"q1"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestRouter_Pin_RequiresCSRFToken(t *testing.T) {
	pinned := 0
	svc := &mockQuestionService{
		pinFn: func(ctx context.Context, ownerID, questionID string) error {
			pinned++
			return nil
		},
	}
	router := newTestRouter(t, svc, nil)

	// トークンなし
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/trpc/questions.pin", strings.NewReader(`{"questionId":"q1"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("status without token = %d, want 403", w.Code)
	}

	// Cookieとヘッダーが一致
	req = withSession(httptest.NewRequest(http.MethodPost, "/api/trpc/questions.pin", strings.NewReader(`{"questionId":"q1"}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", "tok")
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "tok"})
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("status with token = %d, want 204", w.Code)
	}
	if pinned != 1 {
		t.Errorf("pin calls = %d, want 1", pinned)
	}
}

func TestRouter_UnknownPath_RendersNotFoundPage(t *testing.T) {
	router := newTestRouter(t, &mockQuestionService{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/no/such/page", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Header().Get("Content-Type"), "text/html") {
		t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
	}
}

func TestRouter_Health(t *testing.T) {
	tests := []struct {
		name       string
		checker    HealthChecker
		wantStatus int
	}{
		{name: "チェッカーなし", checker: nil, wantStatus: http.StatusOK},
		{name: "DB正常", checker: &mockHealthChecker{}, wantStatus: http.StatusOK},
		{name: "DB異常", checker: &mockHealthChecker{err: errors.New("connection refused")}, wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, &mockQuestionService{}, tt.checker)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_API_CORSPreflight(t *testing.T) {
	router := newTestRouter(t, &mockQuestionService{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/embed/owner-1", nil)
	req.Header.Set("Origin", "https://overlay.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://overlay.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestRouter_Realtime_OtherOwner_Returns403(t *testing.T) {
	router := newTestRouter(t, &mockQuestionService{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, withSession(httptest.NewRequest(http.MethodGet, "/ws/someone-else", nil)))

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestRouter_StaticAssets(t *testing.T) {
	router := newTestRouter(t, &mockQuestionService{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/app.js", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
