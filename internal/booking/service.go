package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/traderdesk/internal/metrics"
	"github.com/hitoshi/traderdesk/internal/model"
	"github.com/hitoshi/traderdesk/internal/repository"
	"github.com/hitoshi/traderdesk/internal/security"
	"github.com/hitoshi/traderdesk/internal/trader"
	"github.com/shopspring/decimal"
)

// Preview は予約前に表示する見積もり。
// 単価は表示時点の値で、本登録時には改めて読み直す。
type Preview struct {
	Request        ValidatedBooking
	PricePerMinute decimal.Decimal
	EstimatedCost  decimal.Decimal
}

// Summary は予約一覧の1件。Counterpartは閲覧者から見た相手側の当事者。
// 相手のプロフィールが見つからない場合CounterpartNameは空文字列。
type Summary struct {
	Booking         *model.Booking
	CounterpartID   string
	CounterpartName string
}

// Service は予約の作成と状態遷移のサービス層。
// すべての操作はアクターを引数で受け取り、リクエストをまたいだ状態を持たない。
type Service struct {
	profiles  repository.ProfileRepository
	traders   repository.TraderRepository
	bookings  repository.BookingRepository
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	now       func() time.Time
	newID     func() string
}

// Option はServiceの任意設定。
type Option func(*Service)

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator は予約IDの生成関数を差し替える。
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithMetrics はメトリクスの記録先を設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	profiles repository.ProfileRepository,
	traders repository.TraderRepository,
	bookings repository.BookingRepository,
	sanitizer security.TextSanitizer,
	opts ...Option,
) *Service {
	s := &Service{
		profiles:  profiles,
		traders:   traders,
		bookings:  bookings,
		sanitizer: sanitizer,
		metrics:   metrics.Noop{},
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Preview はリクエストを検証し、対象トレーダーの現在の単価で見積額を計算する。
// 本登録と同じ検証を行うが、書き込みはしない。未ログインでも利用できる。
func (s *Service) Preview(ctx context.Context, actor model.Actor, req SubmitRequest) (*Preview, error) {
	v, err := Validate(req)
	if err != nil {
		return nil, s.deny(err)
	}

	target, err := s.loadTarget(ctx, actor, v.TraderID)
	if err != nil {
		return nil, s.deny(err)
	}
	if target.Listing == nil || !target.Listing.Active {
		return nil, s.deny(model.NewAuthorizationDeniedError(model.ErrCodeInvalidTarget, "invalid target"))
	}

	price := target.Listing.PricePerMinute
	return &Preview{
		Request:        v,
		PricePerMinute: price,
		EstimatedCost:  Estimate(v.Minutes, price),
	}, nil
}

// Submit は予約リクエストを検証・認可し、pending状態の予約を作成する。
// 検査はすべて書き込み前に行い、失敗した場合は何も保存しない。
func (s *Service) Submit(ctx context.Context, actor model.Actor, req SubmitRequest) (*model.Booking, error) {
	if actor.IsAnonymous() {
		return nil, s.deny(model.NewAuthenticationRequiredError())
	}

	v, err := Validate(req)
	if err != nil {
		return nil, s.deny(err)
	}

	target, err := s.loadTarget(ctx, actor, v.TraderID)
	if err != nil {
		return nil, s.deny(err)
	}

	allowance, err := Authorize(actor, target)
	if err != nil {
		return nil, s.deny(err)
	}

	now := s.now()
	booking := &model.Booking{
		ID:            s.newID(),
		ClientID:      actor.ID,
		TraderID:      target.UserID,
		Minutes:       v.Minutes,
		EstimatedCost: Estimate(v.Minutes, allowance.PricePerMinute),
		Status:        model.BookingPending,
		Note:          s.sanitizeNote(v.Note),
		ScheduledAt:   v.ScheduledAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, s.deny(model.NewStoreUnavailableError(fmt.Errorf("予約の作成に失敗しました: %w", err)))
	}

	s.metrics.RecordBookingCreated()
	slog.Info("booking created",
		slog.String("booking_id", booking.ID),
		slog.String("client_id", booking.ClientID),
		slog.String("trader_id", booking.TraderID),
		slog.Int("minutes", booking.Minutes),
		slog.String("estimated_cost", booking.EstimatedCost.StringFixed(2)),
	)

	return booking, nil
}

// Accept はトレーダーがpendingの予約を承認する。
func (s *Service) Accept(ctx context.Context, actor model.Actor, bookingID string) (*model.Booking, error) {
	return s.Transition(ctx, actor, bookingID, ActionAccept)
}

// Reject はトレーダーがpendingの予約を拒否する。
func (s *Service) Reject(ctx context.Context, actor model.Actor, bookingID string) (*model.Booking, error) {
	return s.Transition(ctx, actor, bookingID, ActionReject)
}

// Complete はトレーダーがacceptedの予約を完了にする。
func (s *Service) Complete(ctx context.Context, actor model.Actor, bookingID string) (*model.Booking, error) {
	return s.Transition(ctx, actor, bookingID, ActionComplete)
}

// Cancel は当事者が予約をキャンセルする。
// pendingはクライアントのみ、acceptedはどちらの当事者もキャンセルできる。
func (s *Service) Cancel(ctx context.Context, actor model.Actor, bookingID string) (*model.Booking, error) {
	return s.Transition(ctx, actor, bookingID, ActionCancel)
}

// Transition は予約に操作actionを適用する。
// 状態の更新は現在の状態を条件とした1回の更新で行い、同時に実行された遷移のうち1つだけが成功する。
func (s *Service) Transition(ctx context.Context, actor model.Actor, bookingID string, action Action) (*model.Booking, error) {
	booking, t, err := s.prepareTransition(ctx, actor, bookingID, action)
	if err != nil {
		s.recordTransition(action, err)
		return nil, s.deny(err)
	}

	now := s.now()
	swapped, err := s.bookings.UpdateStatus(ctx, booking.ID, t.from, t.to, now)
	if err != nil {
		err = model.NewStoreUnavailableError(fmt.Errorf("予約ステータスの更新に失敗しました: %w", err))
		s.recordTransition(action, err)
		return nil, s.deny(err)
	}
	if !swapped {
		err := s.staleOutcome(ctx, booking.ID)
		s.recordTransition(action, err)
		return nil, s.deny(err)
	}

	booking.Status = t.to
	booking.UpdatedAt = now
	s.recordTransition(action, nil)
	slog.Info("booking transitioned",
		slog.String("booking_id", booking.ID),
		slog.String("action", string(action)),
		slog.String("from", string(t.from)),
		slog.String("to", string(t.to)),
		slog.String("actor_id", actor.ID),
	)

	return booking, nil
}

// GetBooking は当事者に対して予約を返す。当事者以外には存在しないものとして扱う。
func (s *Service) GetBooking(ctx context.Context, actor model.Actor, bookingID string) (*model.Booking, error) {
	if actor.IsAnonymous() {
		return nil, s.deny(model.NewAuthenticationRequiredError())
	}

	booking, err := s.loadParticipantBooking(ctx, actor, bookingID)
	if err != nil {
		return nil, s.deny(err)
	}
	return booking, nil
}

// ListMine はアクターが当事者の予約を新しい順に返す。
// クライアントは自分が申し込んだ予約、トレーダーは自分宛ての予約を返す。
// 相手側の表示名は1回の一括取得で解決する。
func (s *Service) ListMine(ctx context.Context, actor model.Actor) ([]Summary, error) {
	if actor.IsAnonymous() {
		return nil, s.deny(model.NewAuthenticationRequiredError())
	}

	var (
		list []*model.Booking
		err  error
	)
	if actor.Role == model.RoleTrader {
		list, err = s.bookings.ListByTraderID(ctx, actor.ID)
	} else {
		list, err = s.bookings.ListByClientID(ctx, actor.ID)
	}
	if err != nil {
		return nil, s.deny(model.NewStoreUnavailableError(fmt.Errorf("予約一覧の取得に失敗しました: %w", err)))
	}

	counterpartIDs := make([]string, len(list))
	for i, b := range list {
		counterpartIDs[i] = counterpartOf(b, actor.ID)
	}
	names, err := trader.ResolveNames(ctx, s.profiles, counterpartIDs)
	if err != nil {
		return nil, s.deny(err)
	}

	summaries := make([]Summary, len(list))
	for i, b := range list {
		summaries[i] = Summary{
			Booking:         b,
			CounterpartID:   counterpartIDs[i],
			CounterpartName: names[counterpartIDs[i]],
		}
	}
	return summaries, nil
}

// loadTarget は予約対象のトレーダーを読み込む。
// 存在しない、トレーダーでない、requesterから見えない場合はいずれも同じNotFoundを返す。
// 出品情報はこの時点の値を読み直し、存在しない場合はnilのままAuthorizeに渡す。
func (s *Service) loadTarget(ctx context.Context, requester model.Actor, traderID string) (TraderTarget, error) {
	profile, err := s.profiles.FindByID(ctx, traderID)
	if err != nil {
		return TraderTarget{}, model.NewStoreUnavailableError(fmt.Errorf("プロフィールの取得に失敗しました: %w", err))
	}
	if profile == nil || profile.Role != model.RoleTrader || !trader.CanView(requester, profile) {
		return TraderTarget{}, model.NewTraderNotFoundError()
	}

	listing, err := s.traders.FindByUserID(ctx, profile.UserID)
	if err != nil {
		return TraderTarget{}, model.NewStoreUnavailableError(fmt.Errorf("出品情報の取得に失敗しました: %w", err))
	}

	return NewTraderTarget(profile, listing), nil
}

// prepareTransition は遷移前の検査を行い、対象の予約と適用する遷移を返す。
func (s *Service) prepareTransition(ctx context.Context, actor model.Actor, bookingID string, action Action) (*model.Booking, transition, error) {
	if actor.IsAnonymous() {
		return nil, transition{}, model.NewAuthenticationRequiredError()
	}

	booking, err := s.loadParticipantBooking(ctx, actor, bookingID)
	if err != nil {
		return nil, transition{}, err
	}

	t, ok := lookupTransition(booking.Status, action)
	if !ok {
		return nil, transition{}, model.NewConflictStaleError(booking.Status)
	}
	if !t.permits(booking, actor.ID) {
		return nil, transition{}, model.NewAuthorizationDeniedError(
			model.ErrCodeTransitionDenied,
			fmt.Sprintf("この予約を%sする権限がありません。", action),
		)
	}

	return booking, t, nil
}

// loadParticipantBooking は予約を読み込み、actorが当事者でなければNotFoundを返す。
func (s *Service) loadParticipantBooking(ctx context.Context, actor model.Actor, bookingID string) (*model.Booking, error) {
	if _, err := uuid.Parse(bookingID); err != nil {
		return nil, model.NewBookingNotFoundError()
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, model.NewStoreUnavailableError(fmt.Errorf("予約の取得に失敗しました: %w", err))
	}
	if booking == nil || !booking.IsParticipant(actor.ID) {
		return nil, model.NewBookingNotFoundError()
	}
	return booking, nil
}

// staleOutcome は条件付き更新が0件だった場合に、予約を読み直して結果を決める。
func (s *Service) staleOutcome(ctx context.Context, bookingID string) error {
	current, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return model.NewStoreUnavailableError(fmt.Errorf("予約の再取得に失敗しました: %w", err))
	}
	if current == nil {
		return model.NewBookingNotFoundError()
	}
	return model.NewConflictStaleError(current.Status)
}

// sanitizeNote は備考からマークアップを除去する。除去後に空になった場合はnilを返す。
func (s *Service) sanitizeNote(note *string) *string {
	if note == nil {
		return nil
	}
	cleaned := s.sanitizer.SanitizeText(*note)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

// deny は拒否をエラー種別ごとに記録してerrをそのまま返す。
func (s *Service) deny(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		s.metrics.RecordDenial(string(apiErr.Kind))
	}
	return err
}

func (s *Service) recordTransition(action Action, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			result = string(apiErr.Kind)
		}
	}
	s.metrics.RecordTransition(string(action), result)
}

// counterpartOf はactorIDから見た予約の相手側の当事者IDを返す。
func counterpartOf(b *model.Booking, actorID string) string {
	if b.ClientID == actorID {
		return b.TraderID
	}
	return b.ClientID
}
