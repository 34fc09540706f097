// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"

	"github.com/hitoshi/traderdesk/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// actorContextKey はリクエストコンテキストにアクターを格納するためのキー。
var actorContextKey = contextKey("actor")

// ActorResolver はリクエストからアクターを解決するインターフェース。
// identity.Resolverが満たす。
type ActorResolver interface {
	Resolve(ctx context.Context, r *http.Request) model.Actor
}

// NewIdentityMiddleware はリクエストのアクターを解決してコンテキストに注入するミドルウェアを返す。
// 解決できない場合も匿名アクターとして後続に渡し、ここでは拒否しない。
func NewIdentityMiddleware(resolver ActorResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := resolver.Resolve(r.Context(), r)
			next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
		})
	}
}

// NewRequireActorMiddleware は匿名アクターのリクエストを401で拒否するミドルウェアを返す。
// NewIdentityMiddlewareの後に配置する。
func NewRequireActorMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ActorFromContext(r.Context()).IsAnonymous() {
				WriteAPIError(w, model.NewAuthenticationRequiredError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ContextWithActor はアクターを格納したコンテキストを返す。
func ContextWithActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// ActorFromContext はコンテキストからアクターを取得する。
// 格納されていない場合は匿名アクターを返す。
func ActorFromContext(ctx context.Context) model.Actor {
	actor, ok := ctx.Value(actorContextKey).(model.Actor)
	if !ok {
		return model.Anonymous()
	}
	return actor
}
