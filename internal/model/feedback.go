package model

import "time"

// Feedback は完了したセッションに対するクライアントのレビューを表す。
// 可視性は所有するトレーダープロフィールと同一のルールに従う。
type Feedback struct {
	ID        string
	TraderID  string
	ClientID  string
	Rating    int // 1〜5
	Comment   *string
	CreatedAt time.Time
}
