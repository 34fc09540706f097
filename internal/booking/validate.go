package booking

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/traderdesk/internal/model"
)

// 予約時間と備考の制約。
const (
	MinMinutes    = 5
	MaxMinutes    = 240
	MaxNoteLength = 1000
)

// SubmitRequest はクライアントから受け取る予約リクエスト。
// プレビューと本登録で同じ型を使う。
type SubmitRequest struct {
	TraderID    string      `json:"trader_id"`
	Minutes     json.Number `json:"minutes"`
	Note        *string     `json:"note,omitempty"`
	ScheduledAt *time.Time  `json:"scheduled_at,omitempty"`
}

// ValidatedBooking は検証済みの予約リクエスト。
type ValidatedBooking struct {
	TraderID    string
	Minutes     int
	Note        *string
	ScheduledAt *time.Time
}

// Validate は予約リクエストの形式と範囲を検証する。
// 最初に失敗した検査でエラーを返す。ストアにはアクセスしない。
func Validate(req SubmitRequest) (ValidatedBooking, error) {
	traderID := strings.TrimSpace(req.TraderID)
	if traderID == "" {
		return ValidatedBooking{}, model.NewValidationError(
			model.ErrCodeInvalidTraderID,
			"トレーダーIDは必須です。",
			"予約するトレーダーを指定してください。",
		)
	}
	parsed, err := uuid.Parse(traderID)
	if err != nil {
		return ValidatedBooking{}, model.NewValidationError(
			model.ErrCodeInvalidTraderID,
			"トレーダーIDの形式が不正です。",
			"正しいトレーダーIDを指定してください。",
		)
	}

	minutes, ok := parseMinutes(req.Minutes)
	if !ok {
		return ValidatedBooking{}, model.NewValidationError(
			model.ErrCodeInvalidMinutes,
			"予約時間は5分から240分までの整数で指定してください。",
			"予約時間を修正してください。",
		)
	}

	var note *string
	if req.Note != nil {
		trimmed := strings.TrimSpace(*req.Note)
		if trimmed != "" {
			if utf8.RuneCountInString(trimmed) > MaxNoteLength {
				return ValidatedBooking{}, model.NewValidationError(
					model.ErrCodeNoteTooLong,
					"備考は1000文字以内で入力してください。",
					"備考を短くしてください。",
				)
			}
			note = &trimmed
		}
	}

	return ValidatedBooking{
		TraderID:    parsed.String(),
		Minutes:     minutes,
		Note:        note,
		ScheduledAt: req.ScheduledAt,
	}, nil
}

// parseMinutes はJSON数値を整数の分数として解釈する。
// 小数表記・指数表記・範囲外は不正とする。
func parseMinutes(n json.Number) (int, bool) {
	if n == "" {
		return 0, false
	}
	minutes, err := strconv.Atoi(string(n))
	if err != nil {
		return 0, false
	}
	if minutes < MinMinutes || minutes > MaxMinutes {
		return 0, false
	}
	return minutes, true
}
