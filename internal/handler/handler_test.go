package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/traderdesk/internal/booking"
	"github.com/hitoshi/traderdesk/internal/middleware"
	"github.com/hitoshi/traderdesk/internal/model"
	"github.com/hitoshi/traderdesk/internal/trader"
	"github.com/shopspring/decimal"
)

const (
	testClientID  = "11111111-1111-1111-1111-111111111111"
	testTraderID  = "22222222-2222-2222-2222-222222222222"
	testBookingID = "33333333-3333-3333-3333-333333333333"
)

// --- モック定義 ---

// mockTraderService はTraderServiceInterfaceのモック実装。
type mockTraderService struct {
	listTradersFn  func(ctx context.Context) ([]trader.DirectoryEntry, error)
	getTraderFn    func(ctx context.Context, viewer model.Actor, traderID string) (*trader.Page, error)
	listFeedbackFn func(ctx context.Context, viewer model.Actor, traderID string, limit int) ([]trader.FeedbackEntry, error)
}

func (m *mockTraderService) ListTraders(ctx context.Context) ([]trader.DirectoryEntry, error) {
	if m.listTradersFn != nil {
		return m.listTradersFn(ctx)
	}
	return []trader.DirectoryEntry{}, nil
}

func (m *mockTraderService) GetTrader(ctx context.Context, viewer model.Actor, traderID string) (*trader.Page, error) {
	if m.getTraderFn != nil {
		return m.getTraderFn(ctx, viewer, traderID)
	}
	return nil, model.NewTraderNotFoundError()
}

func (m *mockTraderService) ListFeedback(ctx context.Context, viewer model.Actor, traderID string, limit int) ([]trader.FeedbackEntry, error) {
	if m.listFeedbackFn != nil {
		return m.listFeedbackFn(ctx, viewer, traderID, limit)
	}
	return []trader.FeedbackEntry{}, nil
}

// mockBookingService はBookingServiceInterfaceのモック実装。
type mockBookingService struct {
	previewFn    func(ctx context.Context, actor model.Actor, req booking.SubmitRequest) (*booking.Preview, error)
	submitFn     func(ctx context.Context, actor model.Actor, req booking.SubmitRequest) (*model.Booking, error)
	getBookingFn func(ctx context.Context, actor model.Actor, bookingID string) (*model.Booking, error)
	listMineFn   func(ctx context.Context, actor model.Actor) ([]booking.Summary, error)
	transitionFn func(ctx context.Context, actor model.Actor, bookingID string, action booking.Action) (*model.Booking, error)
}

func (m *mockBookingService) Preview(ctx context.Context, actor model.Actor, req booking.SubmitRequest) (*booking.Preview, error) {
	if m.previewFn != nil {
		return m.previewFn(ctx, actor, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockBookingService) Submit(ctx context.Context, actor model.Actor, req booking.SubmitRequest) (*model.Booking, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, actor, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockBookingService) GetBooking(ctx context.Context, actor model.Actor, bookingID string) (*model.Booking, error) {
	if m.getBookingFn != nil {
		return m.getBookingFn(ctx, actor, bookingID)
	}
	return nil, model.NewBookingNotFoundError()
}

func (m *mockBookingService) ListMine(ctx context.Context, actor model.Actor) ([]booking.Summary, error) {
	if m.listMineFn != nil {
		return m.listMineFn(ctx, actor)
	}
	return []booking.Summary{}, nil
}

func (m *mockBookingService) Transition(ctx context.Context, actor model.Actor, bookingID string, action booking.Action) (*model.Booking, error) {
	if m.transitionFn != nil {
		return m.transitionFn(ctx, actor, bookingID, action)
	}
	return nil, errors.New("not implemented")
}

// tokenResolver はAuthorizationヘッダーの値をそのままアクターに対応づけるテスト用リゾルバ。
type tokenResolver map[string]model.Actor

func (t tokenResolver) Resolve(_ context.Context, r *http.Request) model.Actor {
	if actor, ok := t[r.Header.Get("Authorization")]; ok {
		return actor
	}
	return model.Anonymous()
}

// mockHealthChecker はrepository.HealthCheckerのモック実装。
type mockHealthChecker struct {
	pingFn func(ctx context.Context) error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

// --- テストヘルパー ---

const (
	clientToken = "Bearer client"
	traderToken = "Bearer trader"
)

type routerOption func(*RouterDeps)

func newTestRouter(t *testing.T, traders *mockTraderService, bookings *mockBookingService, opts ...routerOption) http.Handler {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     100,
		GeneralBurst:    100,
		BookingRate:     100,
		BookingBurst:    100,
		CleanupInterval: time.Minute,
	})
	t.Cleanup(rl.Stop)

	deps := &RouterDeps{
		ActorResolver: tokenResolver{
			clientToken: {ID: testClientID, Role: model.RoleClient},
			traderToken: {ID: testTraderID, Role: model.RoleTrader},
		},
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		HealthChecker:     &mockHealthChecker{},
		TraderService:     traders,
		BookingService:    bookings,
	}
	for _, opt := range opts {
		opt(deps)
	}
	return NewRouter(deps)
}

func doRequest(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// parseAPIErrorResponse はレスポンスボディからエラーレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body
}

func sampleBooking(status model.BookingStatus) *model.Booking {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &model.Booking{
		ID:            testBookingID,
		ClientID:      testClientID,
		TraderID:      testTraderID,
		Minutes:       45,
		EstimatedCost: decimal.RequireFromString("67.5"),
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
