package trader

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hitoshi/traderdesk/internal/model"
	"github.com/hitoshi/traderdesk/internal/repository"
)

// フィードバック取得件数の既定値と上限。
const (
	DefaultFeedbackLimit = 5
	MaxFeedbackLimit     = 50
)

// Affordance はプロフィールページで閲覧者に提示する予約導線の状態。
type Affordance string

const (
	// AffordanceSelf は自分のプロフィールを閲覧している。
	AffordanceSelf Affordance = "self"
	// AffordanceSignIn は未ログインのため、ログインを促す。
	AffordanceSignIn Affordance = "sign_in"
	// AffordanceTraderViewer は閲覧者がトレーダーのため予約できない。
	AffordanceTraderViewer Affordance = "trader_viewer"
	// AffordanceUnavailable は出品が無効化されているため予約できない。
	AffordanceUnavailable Affordance = "unavailable"
	// AffordanceBookable は予約フォームを表示できる。
	AffordanceBookable Affordance = "bookable"
)

// FeedbackEntry はフィードバックと投稿者の表示名の組。
// 投稿者のプロフィールが見つからない場合ClientNameは空文字列。
type FeedbackEntry struct {
	Feedback   *model.Feedback
	ClientName string
}

// Page はトレーダープロフィールページの表示データ。
type Page struct {
	Profile    *model.Profile
	Listing    *model.TraderListing
	IsOwn      bool
	Affordance Affordance
	Feedback   []FeedbackEntry
}

// DirectoryEntry はトレーダー一覧の1件。
type DirectoryEntry struct {
	Profile *model.Profile
	Listing *model.TraderListing
}

// Service はトレーダー閲覧のサービス層。
type Service struct {
	profiles     repository.ProfileRepository
	traders      repository.TraderRepository
	feedback     repository.FeedbackRepository
	previewLimit int
}

// NewService はServiceの新しいインスタンスを生成する。
// previewLimitはプロフィールページに含めるフィードバック件数。0以下の場合は既定値を使う。
func NewService(
	profiles repository.ProfileRepository,
	traders repository.TraderRepository,
	feedback repository.FeedbackRepository,
	previewLimit int,
) *Service {
	if previewLimit <= 0 {
		previewLimit = DefaultFeedbackLimit
	}
	if previewLimit > MaxFeedbackLimit {
		previewLimit = MaxFeedbackLimit
	}
	return &Service{
		profiles:     profiles,
		traders:      traders,
		feedback:     feedback,
		previewLimit: previewLimit,
	}
}

// GetTrader はプロフィールページの表示データを返す。
// 存在しない、トレーダーでない、閲覧できない場合はいずれも同じNotFoundを返す。
func (s *Service) GetTrader(ctx context.Context, viewer model.Actor, traderID string) (*Page, error) {
	profile, listing, err := s.loadVisible(ctx, viewer, traderID)
	if err != nil {
		return nil, err
	}

	entries, err := s.feedbackEntries(ctx, profile.UserID, s.previewLimit)
	if err != nil {
		return nil, err
	}

	isOwn := !viewer.IsAnonymous() && viewer.ID == profile.UserID
	return &Page{
		Profile:    profile,
		Listing:    listing,
		IsOwn:      isOwn,
		Affordance: affordanceFor(viewer, isOwn, listing.Active),
		Feedback:   entries,
	}, nil
}

// ListFeedback はトレーダーへのフィードバックを新しい順に返す。
// 可視性はプロフィールと同じ規則に従う。
func (s *Service) ListFeedback(ctx context.Context, viewer model.Actor, traderID string, limit int) ([]FeedbackEntry, error) {
	profile, _, err := s.loadVisible(ctx, viewer, traderID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = s.previewLimit
	}
	if limit > MaxFeedbackLimit {
		limit = MaxFeedbackLimit
	}

	return s.feedbackEntries(ctx, profile.UserID, limit)
}

// ListTraders は公開中のトレーダーを評価の高い順に返す。
// プロフィールは1回の一括取得で解決する。
func (s *Service) ListTraders(ctx context.Context) ([]DirectoryEntry, error) {
	listings, err := s.traders.ListByRating(ctx)
	if err != nil {
		return nil, model.NewStoreUnavailableError(fmt.Errorf("出品情報一覧の取得に失敗しました: %w", err))
	}
	if len(listings) == 0 {
		return []DirectoryEntry{}, nil
	}

	ids := make([]string, len(listings))
	for i, l := range listings {
		ids[i] = l.UserID
	}
	profiles, err := s.profiles.FindByIDs(ctx, ids)
	if err != nil {
		return nil, model.NewStoreUnavailableError(fmt.Errorf("プロフィールの一括取得に失敗しました: %w", err))
	}

	byID := make(map[string]*model.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.UserID] = p
	}

	entries := make([]DirectoryEntry, 0, len(listings))
	for _, l := range listings {
		p, ok := byID[l.UserID]
		if !ok || p.Role != model.RoleTrader || !p.IsPublic {
			continue
		}
		entries = append(entries, DirectoryEntry{Profile: p, Listing: l})
	}

	return entries, nil
}

// loadVisible はviewerから見えるトレーダーのプロフィールと出品情報を読み込む。
// 無効化された出品はActive=falseのまま返す。予約時のINVALID_TARGETと同じ事実だけを開示する。
func (s *Service) loadVisible(ctx context.Context, viewer model.Actor, traderID string) (*model.Profile, *model.TraderListing, error) {
	if _, err := uuid.Parse(traderID); err != nil {
		return nil, nil, model.NewTraderNotFoundError()
	}

	profile, err := s.profiles.FindByID(ctx, traderID)
	if err != nil {
		return nil, nil, model.NewStoreUnavailableError(fmt.Errorf("プロフィールの取得に失敗しました: %w", err))
	}
	if profile == nil || profile.Role != model.RoleTrader || !CanView(viewer, profile) {
		return nil, nil, model.NewTraderNotFoundError()
	}

	listing, err := s.traders.FindByUserID(ctx, profile.UserID)
	if err != nil {
		return nil, nil, model.NewStoreUnavailableError(fmt.Errorf("出品情報の取得に失敗しました: %w", err))
	}
	if listing == nil {
		return nil, nil, model.NewTraderNotFoundError()
	}

	return profile, listing, nil
}

// feedbackEntries はフィードバックを取得し、投稿者名を一括で解決する。
func (s *Service) feedbackEntries(ctx context.Context, traderID string, limit int) ([]FeedbackEntry, error) {
	list, err := s.feedback.ListByTraderID(ctx, traderID, limit)
	if err != nil {
		return nil, model.NewStoreUnavailableError(fmt.Errorf("フィードバックの取得に失敗しました: %w", err))
	}

	clientIDs := make([]string, 0, len(list))
	for _, f := range list {
		clientIDs = append(clientIDs, f.ClientID)
	}
	names, err := ResolveNames(ctx, s.profiles, clientIDs)
	if err != nil {
		return nil, err
	}

	entries := make([]FeedbackEntry, len(list))
	for i, f := range list {
		entries[i] = FeedbackEntry{Feedback: f, ClientName: names[f.ClientID]}
	}
	return entries, nil
}

// ResolveNames はユーザーIDから表示名への対応を1回の一括取得で解決する。
// 重複したIDはまとめて問い合わせる。見つからないIDは結果に含めない。
func ResolveNames(ctx context.Context, profiles repository.ProfileRepository, userIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}

	seen := make(map[string]struct{}, len(userIDs))
	unique := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	found, err := profiles.FindByIDs(ctx, unique)
	if err != nil {
		return nil, model.NewStoreUnavailableError(fmt.Errorf("表示名の一括取得に失敗しました: %w", err))
	}
	for _, p := range found {
		names[p.UserID] = p.DisplayName
	}
	return names, nil
}

// affordanceFor は閲覧者に応じた予約導線の状態を返す。
func affordanceFor(viewer model.Actor, isOwn, active bool) Affordance {
	switch {
	case isOwn:
		return AffordanceSelf
	case viewer.IsAnonymous():
		return AffordanceSignIn
	case viewer.Role == model.RoleTrader:
		return AffordanceTraderViewer
	case !active:
		return AffordanceUnavailable
	default:
		return AffordanceBookable
	}
}
