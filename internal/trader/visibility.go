// Package trader はトレーダープロフィールの可視性判定と、一覧・プロフィールページの組み立てを提供する。
package trader

import "github.com/hitoshi/traderdesk/internal/model"

// CanView はviewerがtargetのプロフィールとフィードバックを閲覧できるかを返す。
// 公開プロフィール、または本人の場合のみ閲覧できる。
func CanView(viewer model.Actor, target *model.Profile) bool {
	if target == nil {
		return false
	}
	if target.IsPublic {
		return true
	}
	return !viewer.IsAnonymous() && viewer.ID == target.UserID
}
