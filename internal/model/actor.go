package model

// Actor はリクエストを行った認証済みアクターを表す。
// ゼロ値は匿名アクターを表す。
type Actor struct {
	ID   string
	Role Role
}

// Anonymous は匿名アクターを返す。
func Anonymous() Actor {
	return Actor{}
}

// IsAnonymous は未認証かどうかを返す。
func (a Actor) IsAnonymous() bool {
	return a.ID == ""
}
