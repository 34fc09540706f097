// Package model はドメインモデルを定義する。
package model

import "fmt"

// ErrorKind はエラーの分類を表す。
// クライアントが機械的に判別できる安定した値として公開する。
type ErrorKind string

const (
	// KindValidation は入力値の形式・範囲の誤り（ユーザーが修正可能）。
	KindValidation ErrorKind = "validation"
	// KindAuthenticationRequired はアクター未認証。
	KindAuthenticationRequired ErrorKind = "authentication_required"
	// KindAuthorizationDenied はアクターは認証済みだが操作が許可されていない。
	KindAuthorizationDenied ErrorKind = "authorization_denied"
	// KindNotFound は対象が存在しない、または非公開で見えない。両者は区別しない。
	KindNotFound ErrorKind = "not_found"
	// KindConflictStale は期待した状態ではないレコードに対する遷移。
	KindConflictStale ErrorKind = "conflict_stale"
	// KindStoreUnavailable はレコードストアの障害。自動リトライはしない。
	KindStoreUnavailable ErrorKind = "store_unavailable"
	// KindRateLimited はレート制限超過。
	KindRateLimited ErrorKind = "rate_limited"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Kind     ErrorKind // エラー分類
	Code     string    // エラーコード
	Message  string    // エラーメッセージ
	Category string    // カテゴリ: auth, validation, booking, trader, system
	Action   string    // ユーザー向け対処方法
	Err      error     // 原因（ログ用。レスポンスには含めない）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeInvalidTraderID   = "INVALID_TRADER_ID"
	ErrCodeInvalidMinutes    = "INVALID_MINUTES"
	ErrCodeNoteTooLong       = "NOTE_TOO_LONG"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeCannotBookSelf    = "CANNOT_BOOK_SELF"
	ErrCodeTraderCannotBook  = "TRADER_CANNOT_BOOK"
	ErrCodeInvalidTarget     = "INVALID_TARGET"
	ErrCodeTransitionDenied  = "TRANSITION_DENIED"
	ErrCodeTraderNotFound    = "TRADER_NOT_FOUND"
	ErrCodeBookingNotFound   = "BOOKING_NOT_FOUND"
	ErrCodeStaleState        = "STALE_STATE"
	ErrCodeStoreUnavailable  = "STORE_UNAVAILABLE"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)

// NewValidationError は入力値エラーを生成する。
func NewValidationError(code, message, action string) *APIError {
	return &APIError{
		Kind:     KindValidation,
		Code:     code,
		Message:  message,
		Category: "validation",
		Action:   action,
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return NewValidationError(
		ErrCodeInvalidRequest,
		"リクエストボディの解析に失敗しました。",
		"正しいJSON形式でリクエストしてください。",
	)
}

// NewAuthenticationRequiredError は未認証エラーを生成する。
func NewAuthenticationRequiredError() *APIError {
	return &APIError{
		Kind:     KindAuthenticationRequired,
		Code:     ErrCodeUnauthorized,
		Message:  "must sign in",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewAuthorizationDeniedError は権限エラーを生成する。
// reasonはUI表示用で、非公開リソースの存在を示す情報を含めてはならない。
func NewAuthorizationDeniedError(code, reason string) *APIError {
	return &APIError{
		Kind:     KindAuthorizationDenied,
		Code:     code,
		Message:  reason,
		Category: "booking",
		Action:   "この操作を行う権限がありません。",
	}
}

// NewTraderNotFoundError はトレーダー未検出エラーを生成する。
// 存在しない場合と非公開の場合で同一のエラーを返す。
func NewTraderNotFoundError() *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeTraderNotFound,
		Message:  "指定されたトレーダーが見つかりません。",
		Category: "trader",
		Action:   "トレーダーIDを確認してください。",
	}
}

// NewBookingNotFoundError は予約未検出エラーを生成する。
func NewBookingNotFoundError() *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeBookingNotFound,
		Message:  "指定された予約が見つかりません。",
		Category: "booking",
		Action:   "予約IDを確認してください。",
	}
}

// NewConflictStaleError は状態不一致による遷移失敗エラーを生成する。
func NewConflictStaleError(current BookingStatus) *APIError {
	return &APIError{
		Kind:     KindConflictStale,
		Code:     ErrCodeStaleState,
		Message:  fmt.Sprintf("予約の状態が変更されています（現在: %s）。", current),
		Category: "booking",
		Action:   "最新の状態を再取得してから操作してください。",
	}
}

// NewStoreUnavailableError はレコードストア障害エラーを生成する。
// 原因はErrに保持し、レスポンスには含めない。
func NewStoreUnavailableError(err error) *APIError {
	return &APIError{
		Kind:     KindStoreUnavailable,
		Code:     ErrCodeStoreUnavailable,
		Message:  "データストアが一時的に利用できません。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
		Err:      err,
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError(retryAfterSec int) *APIError {
	return &APIError{
		Kind:     KindRateLimited,
		Code:     ErrCodeRateLimitExceeded,
		Message:  "リクエスト数が上限を超えました。",
		Category: "system",
		Action:   fmt.Sprintf("%d秒後に再度お試しください。", retryAfterSec),
	}
}
