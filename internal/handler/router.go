package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/traderdesk/internal/metrics"
	"github.com/hitoshi/traderdesk/internal/middleware"
	"github.com/hitoshi/traderdesk/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	ActorResolver     middleware.ActorResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.MetricsCollector
	// MetricsHandler がnilの場合 /metrics は公開しない。
	MetricsHandler http.Handler
	// Logger はリクエストログの出力先。nilの場合はslog.Default()を使う。
	Logger *slog.Logger

	// ヘルスチェック
	HealthChecker repository.HealthChecker

	// ドメインサービス
	TraderService  TraderServiceInterface
	BookingService BookingServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Metrics → SecurityHeaders → CORS → Identity → Logging → RateLimit(General)
//
// /health と /metrics はIdentityとレート制限の外に配置する。
// Loggingはアクターを参照するためIdentityの内側に置く。
func NewRouter(deps *RouterDeps) http.Handler {
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Noop{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)

	traderHandler := NewTraderHandler(deps.TraderService)
	bookingHandler := NewBookingHandler(deps.BookingService)

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- API ---
	// ミドルウェアスタック: Identity → Logging → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewIdentityMiddleware(deps.ActorResolver))
		r.Use(middleware.NewLoggingMiddleware(logger))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// トレーダー閲覧（認証任意）
		r.Route("/api/traders", func(r chi.Router) {
			r.Get("/", traderHandler.ListTraders)
			r.Get("/{id}", traderHandler.GetTrader)
			r.Get("/{id}/feedback", traderHandler.ListFeedback)
		})

		r.Route("/api/bookings", func(r chi.Router) {
			// プレビュー（認証任意）
			r.Post("/preview", bookingHandler.Preview)

			// 以降は認証必須
			r.Group(func(r chi.Router) {
				r.Use(middleware.NewRequireActorMiddleware())

				// POST /api/bookings - 予約作成（予約作成専用レート制限を追加）
				r.With(deps.RateLimiter.BookingMiddleware()).Post("/", bookingHandler.Submit)
				r.Get("/me", bookingHandler.ListMine)
				r.Get("/{id}", bookingHandler.GetBooking)
				r.Post("/{id}/{action}", bookingHandler.Transition)
			})
		})
	})

	return r
}
