package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/traderdesk/internal/metrics"
)

// unmatchedRoute はchiのルートに一致しなかったリクエストのラベル。
// 任意のパスをラベルにするとカーディナリティが発散するため、まとめて扱う。
const unmatchedRoute = "unmatched"

// NewMetricsMiddleware はレスポンスステータスとルートごとの処理時間を記録するミドルウェアを返す。
// ルートラベルにはchiのルートパターン（例: /api/bookings/{id}）を用いる。
func NewMetricsMiddleware(collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			collector.RecordHTTPStatus(rec.statusCode)
			collector.RecordRequestLatency(routePattern(r), time.Since(start))
		})
	}
}

// routePattern はリクエストに一致したchiのルートパターンを返す。
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return unmatchedRoute
}
