package booking

import (
	"github.com/hitoshi/traderdesk/internal/model"
	"github.com/shopspring/decimal"
)

// TraderTarget は予約対象として読み込んだトレーダーの情報。
// Listingは出品情報が存在しない場合nil。
type TraderTarget struct {
	UserID  string
	Role    model.Role
	Listing *model.TraderListing
}

// NewTraderTarget はプロフィールと出品情報からTraderTargetを組み立てる。
func NewTraderTarget(profile *model.Profile, listing *model.TraderListing) TraderTarget {
	return TraderTarget{
		UserID:  profile.UserID,
		Role:    profile.Role,
		Listing: listing,
	}
}

// Allowance は予約が許可された場合に返る情報。
// 単価は認可時に読み込んだ出品情報の値で、クライアントから受け取った値は使わない。
type Allowance struct {
	PricePerMinute decimal.Decimal
}

// Authorize はrequesterがtargetを予約してよいかを判定する。
// 検査は次の順で行い、最初に該当したものを返す。
//  1. 未認証
//  2. 自分自身への予約
//  3. トレーダーによる予約
//  4. 対象がトレーダーでない、または有効な出品情報がない
func Authorize(requester model.Actor, target TraderTarget) (Allowance, error) {
	if requester.IsAnonymous() {
		return Allowance{}, model.NewAuthenticationRequiredError()
	}
	if requester.ID == target.UserID {
		return Allowance{}, model.NewAuthorizationDeniedError(model.ErrCodeCannotBookSelf, "cannot book self")
	}
	if requester.Role == model.RoleTrader {
		return Allowance{}, model.NewAuthorizationDeniedError(model.ErrCodeTraderCannotBook, "traders cannot book other traders")
	}
	if target.Role != model.RoleTrader || target.Listing == nil || !target.Listing.Active {
		return Allowance{}, model.NewAuthorizationDeniedError(model.ErrCodeInvalidTarget, "invalid target")
	}

	return Allowance{PricePerMinute: target.Listing.PricePerMinute}, nil
}
