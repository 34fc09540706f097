package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatus は予約のライフサイクル状態を表す。
type BookingStatus string

const (
	// BookingPending は作成直後の初期状態。
	BookingPending BookingStatus = "pending"
	// BookingAccepted はトレーダーが承認した状態。completedへの中間状態。
	BookingAccepted BookingStatus = "accepted"
	// BookingRejected はトレーダーが拒否した終端状態。
	BookingRejected BookingStatus = "rejected"
	// BookingCompleted は完了した終端状態。
	BookingCompleted BookingStatus = "completed"
	// BookingCancelled はキャンセルされた終端状態。
	BookingCancelled BookingStatus = "cancelled"
)

// IsTerminal は終端状態かどうかを返す。
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingRejected, BookingCompleted, BookingCancelled:
		return true
	default:
		return false
	}
}

// Booking は予約リクエスト1件を表す。
// EstimatedCostは作成時のトレーダー単価から一度だけ算出し、以後再計算しない。
// 物理削除はせず、rejected/cancelledを終端状態として扱う。
type Booking struct {
	ID            string
	ClientID      string
	TraderID      string
	Minutes       int
	EstimatedCost decimal.Decimal
	Status        BookingStatus
	Note          *string
	ScheduledAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsParticipant はactorIDが予約のクライアントまたはトレーダーかどうかを返す。
func (b *Booking) IsParticipant(actorID string) bool {
	return actorID != "" && (b.ClientID == actorID || b.TraderID == actorID)
}
