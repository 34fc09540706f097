package handler

import (
	"context"

	"github.com/hitoshi/traderdesk/internal/booking"
	"github.com/hitoshi/traderdesk/internal/model"
	"github.com/hitoshi/traderdesk/internal/trader"
)

// TraderServiceInterface はトレーダーハンドラーが必要とするサービスインターフェース。
type TraderServiceInterface interface {
	// ListTraders は公開中のトレーダー一覧を返す。
	ListTraders(ctx context.Context) ([]trader.DirectoryEntry, error)
	// GetTrader はviewerから見えるトレーダーのプロフィールページを返す。
	GetTrader(ctx context.Context, viewer model.Actor, traderID string) (*trader.Page, error)
	// ListFeedback はトレーダーへのフィードバックを新しい順に返す。
	ListFeedback(ctx context.Context, viewer model.Actor, traderID string, limit int) ([]trader.FeedbackEntry, error)
}

// BookingServiceInterface は予約ハンドラーが必要とするサービスインターフェース。
type BookingServiceInterface interface {
	// Preview は予約内容を検証し、概算費用を返す。永続化はしない。
	Preview(ctx context.Context, actor model.Actor, req booking.SubmitRequest) (*booking.Preview, error)
	// Submit は予約リクエストを作成する。
	Submit(ctx context.Context, actor model.Actor, req booking.SubmitRequest) (*model.Booking, error)
	// GetBooking は当事者に対して予約を返す。
	GetBooking(ctx context.Context, actor model.Actor, bookingID string) (*model.Booking, error)
	// ListMine はアクターが当事者の予約一覧を返す。
	ListMine(ctx context.Context, actor model.Actor) ([]booking.Summary, error)
	// Transition は予約に操作を適用する。
	Transition(ctx context.Context, actor model.Actor, bookingID string, action booking.Action) (*model.Booking, error)
}

// compile-time interface check
var (
	_ TraderServiceInterface  = (*trader.Service)(nil)
	_ BookingServiceInterface = (*booking.Service)(nil)
)
