package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hitoshi/traderdesk/internal/model"
	"github.com/shopspring/decimal"
)

// --- インメモリのレコードストア ---

var errStoreDown = errors.New("connection refused")

type memProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*model.Profile
	err      error
	batches  int
}

func (r *memProfileRepo) FindByID(ctx context.Context, userID string) (*model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.profiles[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *memProfileRepo) FindByIDs(ctx context.Context, userIDs []string) ([]*model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches++
	if r.err != nil {
		return nil, r.err
	}
	var out []*model.Profile
	for _, id := range userIDs {
		if p, ok := r.profiles[id]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memTraderRepo struct {
	mu       sync.Mutex
	listings map[string]*model.TraderListing
	err      error
}

func (r *memTraderRepo) FindByUserID(ctx context.Context, userID string) (*model.TraderListing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	l, ok := r.listings[userID]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (r *memTraderRepo) ListByRating(ctx context.Context) ([]*model.TraderListing, error) {
	return nil, nil
}

func (r *memTraderRepo) setPrice(userID, price string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listings[userID].PricePerMinute = decimal.RequireFromString(price)
}

type memBookingRepo struct {
	mu        sync.Mutex
	bookings  map[string]*model.Booking
	createErr error
	updateErr error
	findErr   error
	// beforeUpdate は条件付き更新の直前に呼ばれる（競合の再現用）。
	beforeUpdate func(id string)
}

func newMemBookingRepo() *memBookingRepo {
	return &memBookingRepo{bookings: map[string]*model.Booking{}}
}

func (r *memBookingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	b, ok := r.bookings[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (r *memBookingRepo) Create(ctx context.Context, b *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	cp := *b
	r.bookings[b.ID] = &cp
	return nil
}

func (r *memBookingRepo) UpdateStatus(ctx context.Context, id string, from, to model.BookingStatus, at time.Time) (bool, error) {
	if r.beforeUpdate != nil {
		r.beforeUpdate(id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return false, r.updateErr
	}
	b, ok := r.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	b.UpdatedAt = at
	return true, nil
}

func (r *memBookingRepo) ListByClientID(ctx context.Context, clientID string) ([]*model.Booking, error) {
	return r.list(func(b *model.Booking) bool { return b.ClientID == clientID })
}

func (r *memBookingRepo) ListByTraderID(ctx context.Context, traderID string) ([]*model.Booking, error) {
	return r.list(func(b *model.Booking) bool { return b.TraderID == traderID })
}

func (r *memBookingRepo) list(match func(*model.Booking) bool) ([]*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	var out []*model.Booking
	for _, b := range r.bookings {
		if match(b) {
			cp := *b
			out = append(out, &cp)
		}
	}
	// created_at降順
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].CreatedAt.After(out[j-1].CreatedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (r *memBookingRepo) status(id string) model.BookingStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bookings[id].Status
}

func (r *memBookingRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bookings)
}

// --- テスト用フィクスチャ ---

const (
	clientC     = "c0000000-0000-0000-0000-00000000000c"
	clientD     = "d0000000-0000-0000-0000-00000000000d"
	traderT     = "a0000000-0000-0000-0000-00000000000a"
	traderU     = "b0000000-0000-0000-0000-00000000000b"
	hiddenH     = "e0000000-0000-0000-0000-00000000000e"
	unlistedL   = "f0000000-0000-0000-0000-00000000000f"
	missingUser = "99999999-9999-9999-9999-999999999999"
)

var fixedNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type fixture struct {
	profiles *memProfileRepo
	traders  *memTraderRepo
	bookings *memBookingRepo
	metrics  *recordingMetrics
	svc      *Service
}

// newFixture はクライアント2名とトレーダー4名（公開2、非公開1、出品なし1）の状態を用意する。
func newFixture() *fixture {
	profiles := &memProfileRepo{profiles: map[string]*model.Profile{
		clientC:   {UserID: clientC, DisplayName: "Client C", Role: model.RoleClient},
		clientD:   {UserID: clientD, DisplayName: "Client D", Role: model.RoleClient},
		traderT:   {UserID: traderT, DisplayName: "Trader T", Role: model.RoleTrader, IsPublic: true},
		traderU:   {UserID: traderU, DisplayName: "Trader U", Role: model.RoleTrader, IsPublic: true},
		hiddenH:   {UserID: hiddenH, DisplayName: "Hidden H", Role: model.RoleTrader, IsPublic: false},
		unlistedL: {UserID: unlistedL, DisplayName: "Unlisted L", Role: model.RoleTrader, IsPublic: true},
	}}
	traders := &memTraderRepo{listings: map[string]*model.TraderListing{
		traderT: {UserID: traderT, PricePerMinute: decimal.RequireFromString("1.50"), Active: true},
		traderU: {UserID: traderU, PricePerMinute: decimal.RequireFromString("2.00"), Active: true},
		hiddenH: {UserID: hiddenH, PricePerMinute: decimal.RequireFromString("3.00"), Active: true},
	}}
	bookings := newMemBookingRepo()
	m := &recordingMetrics{}

	var seq int
	svc := NewService(profiles, traders, bookings, stubSanitizer{},
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			seq++
			return []string{
				"10000000-0000-0000-0000-000000000001",
				"10000000-0000-0000-0000-000000000002",
				"10000000-0000-0000-0000-000000000003",
				"10000000-0000-0000-0000-000000000004",
			}[(seq-1)%4]
		}),
		WithMetrics(m),
	)

	return &fixture{profiles: profiles, traders: traders, bookings: bookings, metrics: m, svc: svc}
}

// seedBooking は指定状態の予約を直接ストアに置く。
func (f *fixture) seedBooking(id, clientID, traderID string, status model.BookingStatus) {
	f.bookings.bookings[id] = &model.Booking{
		ID:            id,
		ClientID:      clientID,
		TraderID:      traderID,
		Minutes:       30,
		EstimatedCost: decimal.RequireFromString("45.00"),
		Status:        status,
		CreatedAt:     fixedNow.Add(-time.Hour),
		UpdatedAt:     fixedNow.Add(-time.Hour),
	}
}

func actor(id string, role model.Role) model.Actor {
	return model.Actor{ID: id, Role: role}
}

// stubSanitizer は "<" 以降を除去するだけの簡易サニタイザー。
type stubSanitizer struct{}

func (stubSanitizer) SanitizeText(raw string) string {
	for i, r := range raw {
		if r == '<' {
			return raw[:i]
		}
	}
	return raw
}

type recordingMetrics struct {
	mu          sync.Mutex
	created     int
	transitions map[string]int
	denials     map[string]int
}

func (m *recordingMetrics) RecordBookingCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
}

func (m *recordingMetrics) RecordTransition(action, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transitions == nil {
		m.transitions = map[string]int{}
	}
	m.transitions[action+":"+result]++
}

func (m *recordingMetrics) RecordDenial(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.denials == nil {
		m.denials = map[string]int{}
	}
	m.denials[kind]++
}

func (m *recordingMetrics) RecordHTTPStatus(int) {}

func (m *recordingMetrics) RecordRequestLatency(string, time.Duration) {}

// errorKind はエラーがAPIErrorであればその種別を返す。
func errorKind(err error) model.ErrorKind {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}
