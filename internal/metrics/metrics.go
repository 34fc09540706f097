// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とHTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordBookingCreated()
	RecordTransition(action, result string)
	RecordDenial(kind string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(route string, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	bookingsCreated prometheus.Counter
	transitions     *prometheus.CounterVec
	denials         *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		bookingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traderdesk_bookings_created_total",
			Help: "作成された予約の合計数",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "traderdesk_booking_transitions_total",
			Help: "予約の状態遷移の試行数（アクション・結果別）",
		}, []string{"action", "result"}),
		denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "traderdesk_denials_total",
			Help: "拒否されたリクエスト数（エラー種別別）",
		}, []string{"kind"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "traderdesk_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "traderdesk_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		c.bookingsCreated,
		c.transitions,
		c.denials,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordBookingCreated は予約作成を記録する。
func (c *Collector) RecordBookingCreated() {
	c.bookingsCreated.Inc()
}

// RecordTransition は状態遷移の試行結果を記録する。
// resultには成功時 "ok"、失敗時はエラー種別を渡す。
func (c *Collector) RecordTransition(action, result string) {
	c.transitions.WithLabelValues(action, result).Inc()
}

// RecordDenial は拒否されたリクエストをエラー種別ごとに記録する。
func (c *Collector) RecordDenial(kind string) {
	c.denials.WithLabelValues(kind).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はルートパターン単位でリクエスト処理時間を記録する。
// パス中のIDでラベルが増えないよう、routeにはchiのルートパターンを渡す。
func (c *Collector) RecordRequestLatency(route string, duration time.Duration) {
	c.requestLatency.WithLabelValues(route).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Noop は何も記録しないMetricsCollector。
// メトリクス無効時やテストで使用する。
type Noop struct{}

func (Noop) RecordBookingCreated() {}
func (Noop) RecordTransition(action, result string) {}
func (Noop) RecordDenial(kind string) {}
func (Noop) RecordHTTPStatus(statusCode int) {}
func (Noop) RecordRequestLatency(string, time.Duration) {}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Noop{}
)
