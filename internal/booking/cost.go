// Package booking は予約リクエストの検証・認可・作成と、予約の状態遷移を提供する。
package booking

import "github.com/shopspring/decimal"

// Estimate は分数と分単価から見積額を計算する。
// 小数第2位で四捨五入（half up）する。値は作成時に1度だけ計算して保存し、以後再計算しない。
func Estimate(minutes int, pricePerMinute decimal.Decimal) decimal.Decimal {
	return pricePerMinute.Mul(decimal.NewFromInt(int64(minutes))).Round(2)
}
