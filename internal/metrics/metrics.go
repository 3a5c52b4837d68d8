// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 質問イベントのラベル値
const (
	EventAsked    = "asked"
	EventPinned   = "pinned"
	EventUnpinned = "unpinned"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・ハンドラー・ワーカーから利用する。
type MetricsCollector interface {
	RecordQuestionEvent(event string)
	RecordQueryLatency(operation string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordPageRender(state string)
	RecordSessionsCleaned(count int64)
	RealtimeConnected()
	RealtimeDisconnected()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	questionEvents  *prometheus.CounterVec
	queryLatency    *prometheus.HistogramVec
	httpStatus      *prometheus.CounterVec
	pageRenders     *prometheus.CounterVec
	sessionsCleaned prometheus.Counter
	realtimeConns   prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		questionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamqa_question_events_total",
			Help: "質問の投稿・ピン留め・ピン解除の合計数",
		}, []string{"event"}),
		queryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "streamqa_question_query_seconds",
			Help:    "質問サービス呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamqa_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		pageRenders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamqa_page_renders_total",
			Help: "質問一覧の描画状態（loading, loaded, failed）別の描画数",
		}, []string{"state"}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamqa_sessions_cleaned_total",
			Help: "クリーンアップで削除された期限切れセッションの合計数",
		}),
		realtimeConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "streamqa_realtime_connections",
			Help: "接続中のWebSocketクライアント数",
		}),
	}

	reg.MustRegister(
		c.questionEvents,
		c.queryLatency,
		c.httpStatus,
		c.pageRenders,
		c.sessionsCleaned,
		c.realtimeConns,
	)

	return c
}

// RecordQuestionEvent は質問イベントを記録する。
func (c *Collector) RecordQuestionEvent(event string) {
	c.questionEvents.WithLabelValues(event).Inc()
}

// RecordQueryLatency はサービス呼び出しのレイテンシを記録する。
func (c *Collector) RecordQueryLatency(operation string, duration time.Duration) {
	c.queryLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordPageRender は質問一覧の描画状態を記録する。
func (c *Collector) RecordPageRender(state string) {
	c.pageRenders.WithLabelValues(state).Inc()
}

// RecordSessionsCleaned は削除したセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int64) {
	c.sessionsCleaned.Add(float64(count))
}

func (c *Collector) RealtimeConnected() { c.realtimeConns.Inc() }
func (c *Collector) RealtimeDisconnected() { c.realtimeConns.Dec() }

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordQuestionEvent(string) {}
func (Nop) RecordQueryLatency(string, time.Duration) {}
func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordPageRender(string) {}
func (Nop) RecordSessionsCleaned(int64) {}
func (Nop) RealtimeConnected() {}
func (Nop) RealtimeDisconnected() {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
