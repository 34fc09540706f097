package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/traderdesk/internal/booking"
	"github.com/hitoshi/traderdesk/internal/middleware"
)

// BookingHandler は予約のHTTPハンドラー。
type BookingHandler struct {
	service BookingServiceInterface
}

// NewBookingHandler はBookingHandlerを生成する。
func NewBookingHandler(service BookingServiceInterface) *BookingHandler {
	return &BookingHandler{service: service}
}

// Preview は予約内容を検証し概算費用を返す。認証は任意で、永続化しない。
// POST /api/bookings/preview
func (h *BookingHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req booking.SubmitRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	preview, err := h.service.Preview(r.Context(), middleware.ActorFromContext(r.Context()), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, previewResponse{
		TraderID:       preview.Request.TraderID,
		Minutes:        preview.Request.Minutes,
		Note:           preview.Request.Note,
		ScheduledAt:    preview.Request.ScheduledAt,
		PricePerMinute: preview.PricePerMinute.StringFixed(2),
		EstimatedCost:  preview.EstimatedCost.StringFixed(2),
	})
}

// Submit は予約リクエストを作成する。
// POST /api/bookings
func (h *BookingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req booking.SubmitRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	b, err := h.service.Submit(r.Context(), middleware.ActorFromContext(r.Context()), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, submitResponse{
		ID:            b.ID,
		Status:        string(b.Status),
		EstimatedCost: b.EstimatedCost.StringFixed(2),
	})
}

// ListMine はアクターが当事者の予約一覧を返す。
// GET /api/bookings/me
func (h *BookingHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.ListMine(r.Context(), middleware.ActorFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookingSummaryResponses(summaries))
}

// GetBooking は予約1件を返す。
// GET /api/bookings/{id}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.GetBooking(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

// Transition は予約に操作を適用する。未知の操作は404を返す。
// POST /api/bookings/{id}/{action}  action: accept | reject | complete | cancel
func (h *BookingHandler) Transition(w http.ResponseWriter, r *http.Request) {
	action, ok := booking.ParseAction(chi.URLParam(r, "action"))
	if !ok {
		NotFound(w, r)
		return
	}

	b, err := h.service.Transition(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "id"), action)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transitionResponse{
		ID:     b.ID,
		Status: string(b.Status),
	})
}
