package booking

import "github.com/hitoshi/traderdesk/internal/model"

// Action は予約に対する状態遷移の操作を表す。
type Action string

const (
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

// ParseAction は文字列をActionに変換する。未定義の値はfalseを返す。
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionAccept, ActionReject, ActionComplete, ActionCancel:
		return a, true
	default:
		return "", false
	}
}

// side は遷移を実行できる予約の当事者。
type side int

const (
	sideTrader side = iota + 1
	sideClient
	sideEither
)

// transition は状態遷移表の1行。
type transition struct {
	from   model.BookingStatus
	action Action
	to     model.BookingStatus
	who    side
}

// transitions は許可される状態遷移の一覧。
// ここにない (from, action) の組み合わせはすべて不正な遷移として扱う。
// completedへの遷移はトレーダーのみが行い、scheduled_atによる自動完了はしない。
var transitions = []transition{
	{from: model.BookingPending, action: ActionAccept, to: model.BookingAccepted, who: sideTrader},
	{from: model.BookingPending, action: ActionReject, to: model.BookingRejected, who: sideTrader},
	{from: model.BookingPending, action: ActionCancel, to: model.BookingCancelled, who: sideClient},
	{from: model.BookingAccepted, action: ActionComplete, to: model.BookingCompleted, who: sideTrader},
	{from: model.BookingAccepted, action: ActionCancel, to: model.BookingCancelled, who: sideEither},
}

// lookupTransition は現在の状態と操作に対応する遷移を返す。
func lookupTransition(from model.BookingStatus, action Action) (transition, bool) {
	for _, t := range transitions {
		if t.from == from && t.action == action {
			return t, true
		}
	}
	return transition{}, false
}

// permits はactorIDがこの遷移を実行できる側の当事者かどうかを返す。
func (t transition) permits(b *model.Booking, actorID string) bool {
	switch t.who {
	case sideTrader:
		return b.TraderID == actorID
	case sideClient:
		return b.ClientID == actorID
	case sideEither:
		return b.IsParticipant(actorID)
	default:
		return false
	}
}

// NextStatus は遷移後の状態を返す。遷移表にない組み合わせはfalseを返す。
// 当事者の検査は行わない。
func NextStatus(from model.BookingStatus, action Action) (model.BookingStatus, bool) {
	t, ok := lookupTransition(from, action)
	if !ok {
		return "", false
	}
	return t.to, true
}
