package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/traderdesk/internal/middleware"
	"github.com/hitoshi/traderdesk/internal/model"
	"github.com/hitoshi/traderdesk/internal/trader"
)

// TraderHandler はトレーダー閲覧のHTTPハンドラー。
// 全エンドポイントで認証は任意。
type TraderHandler struct {
	service TraderServiceInterface
}

// NewTraderHandler はTraderHandlerを生成する。
func NewTraderHandler(service TraderServiceInterface) *TraderHandler {
	return &TraderHandler{service: service}
}

// ListTraders は公開中のトレーダー一覧を返す。
// GET /api/traders
func (h *TraderHandler) ListTraders(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListTraders(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]traderResponse, len(entries))
	for i, e := range entries {
		results[i] = toTraderResponse(e.Profile, e.Listing)
	}
	writeJSON(w, http.StatusOK, results)
}

// GetTrader はトレーダーのプロフィールページを返す。
// GET /api/traders/{id}
func (h *TraderHandler) GetTrader(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.ActorFromContext(r.Context())

	page, err := h.service.GetTrader(r.Context(), viewer, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, traderPageResponse{
		Trader:     toTraderResponse(page.Profile, page.Listing),
		IsOwn:      page.IsOwn,
		Affordance: string(page.Affordance),
		Feedback:   toFeedbackResponses(page.Feedback),
	})
}

// ListFeedback はトレーダーへのフィードバックを返す。
// GET /api/traders/{id}/feedback?limit=N
func (h *TraderHandler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.ActorFromContext(r.Context())

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	entries, err := h.service.ListFeedback(r.Context(), viewer, chi.URLParam(r, "id"), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFeedbackResponses(entries))
}

// parseLimit はlimitクエリパラメータを解析する。
// 未指定の場合は0を返し、サービス側の既定値に委ねる。
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > trader.MaxFeedbackLimit {
		return 0, model.NewValidationError(
			model.ErrCodeInvalidRequest,
			"limitが不正です。",
			"limitは1〜"+strconv.Itoa(trader.MaxFeedbackLimit)+"の整数で指定してください。",
		)
	}
	return n, nil
}
