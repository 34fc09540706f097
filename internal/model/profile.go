// Package model はドメインモデルを定義する。
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role はアクターの役割を表す。
type Role string

const (
	// RoleClient はトレーダーの時間を予約する側。
	RoleClient Role = "client"
	// RoleTrader は時間を提供する側。
	RoleTrader Role = "trader"
)

// Valid はroleが定義済みの値かどうかを返す。
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleTrader
}

// Profile はアクターごとに1件存在するプロフィールを表す。
// Roleは判定のたびにストアから読み直し、リクエストをまたいでキャッシュしない。
type Profile struct {
	UserID      string
	DisplayName string
	Bio         *string
	AvatarURL   *string
	Role        Role
	IsPublic    bool // トレーダーでのみ意味を持つ
	CreatedAt   time.Time
}

// TraderListing はトレーダープロフィールに紐づく出品情報を表す。
// Profile.Role == RoleTrader の場合のみ存在する。
type TraderListing struct {
	UserID         string
	PricePerMinute decimal.Decimal
	Rating         decimal.Decimal // 0〜5、このコアからは読み取り専用
	Categories     []string
	Active         bool
}
