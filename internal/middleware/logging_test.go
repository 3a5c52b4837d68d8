package middleware

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/streamqa/internal/model"
)

type recordingMetrics struct {
	statuses []int
}

func (m *recordingMetrics) RecordQuestionEvent(string)               {}
func (m *recordingMetrics) RecordQueryLatency(string, time.Duration) {}
func (m *recordingMetrics) RecordHTTPStatus(code int)                { m.statuses = append(m.statuses, code) }
func (m *recordingMetrics) RecordPageRender(string)                  {}
func (m *recordingMetrics) RecordSessionsCleaned(int64)              {}
func (m *recordingMetrics) RealtimeConnected()                       {}
func (m *recordingMetrics) RealtimeDisconnected()                    {}

func parseLogEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, buf.String())
	}
	return entry
}

// TestLoggingMiddleware_LogsRequestFields はリクエストログに必要なフィールドが含まれることを検証する。
func TestLoggingMiddleware_LogsRequestFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	mc := &recordingMetrics{}

	handler := NewLoggingMiddleware(logger, mc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/trpc/questions.getAll", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := parseLogEntry(t, &buf)
	if entry["msg"] != "http_request" {
		t.Errorf("msg = %q, want http_request", entry["msg"])
	}
	if entry["method"] != "GET" {
		t.Errorf("method = %q, want GET", entry["method"])
	}
	if entry["path"] != "/api/trpc/questions.getAll" {
		t.Errorf("path = %q", entry["path"])
	}
	if entry["status"] != float64(200) {
		t.Errorf("status = %v, want 200", entry["status"])
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Error("expected duration_ms field")
	}
	if _, ok := entry["user_id"]; ok {
		t.Error("user_id should be omitted for anonymous requests")
	}
	if len(mc.statuses) != 1 || mc.statuses[0] != 200 {
		t.Errorf("recorded statuses = %v, want [200]", mc.statuses)
	}
}

// TestLoggingMiddleware_IncludesUserIDResolvedInside は内側で解決したユーザーIDがログに載ることを検証する。
func TestLoggingMiddleware_IncludesUserIDResolvedInside(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	inner := NewViewerMiddleware(resolverFor("s1", &model.Viewer{UserID: "user-42"}))(okHandler())
	handler := NewLoggingMiddleware(logger, nil)(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "s1"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := parseLogEntry(t, &buf)
	if entry["user_id"] != "user-42" {
		t.Errorf("user_id = %v, want user-42", entry["user_id"])
	}
}

// TestLoggingMiddleware_LevelByStatus はステータスに応じてログレベルが変わることを検証する。
func TestLoggingMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		status    int
		wantLevel string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		handler := NewLoggingMiddleware(logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		entry := parseLogEntry(t, &buf)
		if entry["level"] != tt.wantLevel {
			t.Errorf("status %d: level = %v, want %s", tt.status, entry["level"], tt.wantLevel)
		}
		if entry["status"] != float64(tt.status) {
			t.Errorf("status = %v, want %d", entry["status"], tt.status)
		}
	}
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	hijacked bool
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	return nil, nil, nil
}

// TestStatusRecorder_Hijack はWebSocketアップグレードのためにHijackを委譲することを検証する。
func TestStatusRecorder_Hijack(t *testing.T) {
	under := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rec := &statusRecorder{ResponseWriter: under, statusCode: http.StatusOK}

	if _, _, err := rec.Hijack(); err != nil {
		t.Fatalf("Hijack() error = %v", err)
	}
	if !under.hijacked {
		t.Error("Hijack should be delegated")
	}
	if rec.statusCode != http.StatusSwitchingProtocols {
		t.Errorf("statusCode = %d, want 101", rec.statusCode)
	}

	plain := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := plain.Hijack(); err == nil {
		t.Error("expected error when underlying writer cannot hijack")
	}
}

// TestRecoveryMiddleware_PanicReturns500 はpanicを500の統一エラーに変換することを検証する。
func TestRecoveryMiddleware_PanicReturns500(t *testing.T) {
	handler := NewRecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want INTERNAL_ERROR", body.Code)
	}
}

// TestSecurityHeadersMiddleware_SetsHeaders はセキュリティヘッダーが付与されることを検証する。
func TestSecurityHeadersMiddleware_SetsHeaders(t *testing.T) {
	handler := NewSecurityHeadersMiddleware(false)(okHandler())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Content-Security-Policy": contentSecurityPolicy,
	} {
		if got := w.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if got := w.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("HSTS must not be sent over plain http, got %q", got)
	}
}

func TestSecurityHeadersMiddleware_HTTPS_AddsHSTS(t *testing.T) {
	handler := NewSecurityHeadersMiddleware(true)(okHandler())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := w.Header().Get("Strict-Transport-Security"); got != hstsValue {
		t.Errorf("Strict-Transport-Security = %q, want %q", got, hstsValue)
	}
}

// TestRecoveryMiddleware_LogsUserID はロギングの内側でpanicした場合に解決済みのuser_idが残ることを検証する。
func TestRecoveryMiddleware_LogsUserID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	chain := NewLoggingMiddleware(slog.New(slog.NewJSONHandler(io.Discard, nil)), nil)(
		NewRecoveryMiddleware()(
			NewViewerMiddleware(resolverFor("sess", &model.Viewer{UserID: "owner-1"}))(panicking),
		),
	)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sess"})
	w := httptest.NewRecorder()
	chain.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(buf.String(), `"user_id":"owner-1"`) {
		t.Errorf("panic log should carry user_id, got: %s", buf.String())
	}
}
