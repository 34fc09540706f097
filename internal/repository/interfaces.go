// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/traderdesk/internal/model"
)

// ProfileRepository はプロフィールデータの永続化インターフェース。
type ProfileRepository interface {
	// FindByID は指定ユーザーIDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID string) (*model.Profile, error)

	// FindByIDs は指定ユーザーID集合のプロフィールを1回のクエリでまとめて取得する。
	// 存在しないIDは結果に含まれない。返却順は保証しない。
	FindByIDs(ctx context.Context, userIDs []string) ([]*model.Profile, error)
}

// TraderRepository はトレーダー出品情報の永続化インターフェース。
type TraderRepository interface {
	// FindByUserID は指定ユーザーIDの出品情報を取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.TraderListing, error)

	// ListByRating は有効な出品情報を評価の高い順に返す。
	ListByRating(ctx context.Context) ([]*model.TraderListing, error)
}

// BookingRepository は予約データの永続化インターフェース。
// statusの変更はUpdateStatusのみで行う。
type BookingRepository interface {
	// FindByID は指定IDの予約を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Booking, error)

	// Create は予約を作成する。
	Create(ctx context.Context, booking *model.Booking) error

	// UpdateStatus は現在のstatusがfromである場合に限りtoへ更新する（compare-and-swap）。
	// 更新できた場合はtrue、条件に一致する行がなかった場合はfalseを返す。
	UpdateStatus(ctx context.Context, id string, from, to model.BookingStatus, at time.Time) (bool, error)

	// ListByClientID はクライアントの予約一覧をcreated_at降順で返す。
	ListByClientID(ctx context.Context, clientID string) ([]*model.Booking, error)

	// ListByTraderID はトレーダー宛ての予約一覧をcreated_at降順で返す。
	ListByTraderID(ctx context.Context, traderID string) ([]*model.Booking, error)
}

// FeedbackRepository はフィードバックの読み取りインターフェース。
type FeedbackRepository interface {
	// ListByTraderID はトレーダーへのフィードバックをcreated_at降順で最大limit件返す。
	ListByTraderID(ctx context.Context, traderID string, limit int) ([]*model.Feedback, error)
}

// HealthChecker はデータベースの疎通確認インターフェース。
// *sql.DB が満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}
