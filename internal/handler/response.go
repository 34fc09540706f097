package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/traderdesk/internal/booking"
	"github.com/hitoshi/traderdesk/internal/middleware"
	"github.com/hitoshi/traderdesk/internal/model"
	"github.com/hitoshi/traderdesk/internal/trader"
)

// maxRequestBodyBytes はリクエストボディの上限サイズ。
const maxRequestBodyBytes = 16 << 10

// traderResponse はトレーダー情報のAPIレスポンス。
type traderResponse struct {
	UserID         string   `json:"user_id"`
	DisplayName    string   `json:"display_name"`
	Bio            *string  `json:"bio"`
	AvatarURL      *string  `json:"avatar_url"`
	PricePerMinute string   `json:"price_per_minute"`
	Rating         string   `json:"rating"`
	Categories     []string `json:"categories"`
	Active         bool     `json:"active"`
}

// traderPageResponse はトレーダープロフィールページのAPIレスポンス。
type traderPageResponse struct {
	Trader     traderResponse     `json:"trader"`
	IsOwn      bool               `json:"is_own"`
	Affordance string             `json:"affordance"`
	Feedback   []feedbackResponse `json:"feedback"`
}

// feedbackResponse はフィードバック1件のAPIレスポンス。
type feedbackResponse struct {
	ID         string    `json:"id"`
	Rating     int       `json:"rating"`
	Comment    *string   `json:"comment"`
	ClientName string    `json:"client_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// bookingResponse は予約情報のAPIレスポンス。
type bookingResponse struct {
	ID            string     `json:"id"`
	ClientID      string     `json:"client_id"`
	TraderID      string     `json:"trader_id"`
	Minutes       int        `json:"minutes"`
	EstimatedCost string     `json:"estimated_cost"`
	Status        string     `json:"status"`
	Note          *string    `json:"note"`
	ScheduledAt   *time.Time `json:"scheduled_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// bookingSummaryResponse は予約一覧の1件。相手方の表示名を含む。
type bookingSummaryResponse struct {
	bookingResponse
	CounterpartID   string `json:"counterpart_id"`
	CounterpartName string `json:"counterpart_name"`
}

// previewResponse は予約プレビューのAPIレスポンス。
type previewResponse struct {
	TraderID       string     `json:"trader_id"`
	Minutes        int        `json:"minutes"`
	Note           *string    `json:"note"`
	ScheduledAt    *time.Time `json:"scheduled_at"`
	PricePerMinute string     `json:"price_per_minute"`
	EstimatedCost  string     `json:"estimated_cost"`
}

// submitResponse は予約作成のAPIレスポンス。
type submitResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	EstimatedCost string `json:"estimated_cost"`
}

// transitionResponse は状態遷移のAPIレスポンス。
type transitionResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func toTraderResponse(profile *model.Profile, listing *model.TraderListing) traderResponse {
	resp := traderResponse{
		UserID:      profile.UserID,
		DisplayName: profile.DisplayName,
		Bio:         profile.Bio,
		AvatarURL:   profile.AvatarURL,
		Categories:  []string{},
	}
	if listing != nil {
		resp.PricePerMinute = listing.PricePerMinute.StringFixed(2)
		resp.Rating = listing.Rating.StringFixed(2)
		resp.Active = listing.Active
		if listing.Categories != nil {
			resp.Categories = listing.Categories
		}
	}
	return resp
}

func toFeedbackResponses(entries []trader.FeedbackEntry) []feedbackResponse {
	results := make([]feedbackResponse, len(entries))
	for i, e := range entries {
		results[i] = feedbackResponse{
			ID:         e.Feedback.ID,
			Rating:     e.Feedback.Rating,
			Comment:    e.Feedback.Comment,
			ClientName: e.ClientName,
			CreatedAt:  e.Feedback.CreatedAt,
		}
	}
	return results
}

func toBookingResponse(b *model.Booking) bookingResponse {
	return bookingResponse{
		ID:            b.ID,
		ClientID:      b.ClientID,
		TraderID:      b.TraderID,
		Minutes:       b.Minutes,
		EstimatedCost: b.EstimatedCost.StringFixed(2),
		Status:        string(b.Status),
		Note:          b.Note,
		ScheduledAt:   b.ScheduledAt,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func toBookingSummaryResponses(summaries []booking.Summary) []bookingSummaryResponse {
	results := make([]bookingSummaryResponse, len(summaries))
	for i, s := range summaries {
		results[i] = bookingSummaryResponse{
			bookingResponse: toBookingResponse(s.Booking),
			CounterpartID:   s.CounterpartID,
			CounterpartName: s.CounterpartName,
		}
	}
	return results
}

// decodeJSONBody はリクエストボディをJSONとしてdstに読み込む。
// 不正なJSONや上限超過はINVALID_REQUESTとして返す。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return model.NewInvalidRequestError()
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return model.NewInvalidRequestError()
	}
	return nil
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Kind == model.KindStoreUnavailable && apiErr.Err != nil {
			slog.Error("store unavailable", slog.String("error", apiErr.Err.Error()))
		}
		middleware.WriteAPIError(w, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// NotFound は未定義のルートに統一フォーマットの404を返す。
func NotFound(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteAPIError(w, &model.APIError{
		Kind:     model.KindNotFound,
		Code:     "ROUTE_NOT_FOUND",
		Message:  "指定されたエンドポイントは存在しません。",
		Category: "system",
		Action:   "URLを確認してください。",
	})
}

// MethodNotAllowed は許可されていないメソッドに統一フォーマットの405を返す。
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteErrorResponse(w, http.StatusMethodNotAllowed, &model.APIError{
		Kind:     model.KindValidation,
		Code:     "METHOD_NOT_ALLOWED",
		Message:  "このメソッドは許可されていません。",
		Category: "system",
		Action:   "リクエストメソッドを確認してください。",
	})
}
