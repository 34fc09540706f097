package identity

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/traderdesk/internal/model"
	"github.com/hitoshi/traderdesk/internal/repository"
)

// Verifier はトークンからユーザーIDを取り出すインターフェース。
type Verifier interface {
	Verify(tokenStr string) (string, error)
}

// Resolver はリクエストからアクターを解決する。
type Resolver struct {
	verifier Verifier
	profiles repository.ProfileRepository
}

// NewResolver はResolverを生成する。
func NewResolver(verifier Verifier, profiles repository.ProfileRepository) *Resolver {
	return &Resolver{verifier: verifier, profiles: profiles}
}

// Resolve はリクエストのアクターを返す。
// トークンがない、検証に失敗した、プロフィールがない、ストアに障害がある場合はいずれも匿名を返す。
// 役割はトークンやリクエストの内容ではなく、プロフィールから毎回読み直す。
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) model.Actor {
	tokenStr, ok := bearerToken(req)
	if !ok {
		return model.Anonymous()
	}

	userID, err := r.verifier.Verify(tokenStr)
	if err != nil {
		slog.Warn("bearer token rejected",
			slog.String("path", req.URL.Path),
			slog.String("error", err.Error()),
		)
		return model.Anonymous()
	}

	profile, err := r.profiles.FindByID(ctx, userID)
	if err != nil {
		slog.Error("failed to load profile for actor",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return model.Anonymous()
	}
	if profile == nil || !profile.Role.Valid() {
		slog.Warn("no usable profile for token subject", slog.String("user_id", userID))
		return model.Anonymous()
	}

	return model.Actor{ID: profile.UserID, Role: profile.Role}
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
func bearerToken(req *http.Request) (string, bool) {
	header := req.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
