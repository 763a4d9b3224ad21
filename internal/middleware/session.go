// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/irissociety/irisportal/internal/model"
)

// SessionCookieName はセッションIDを保持するHTTP Only Cookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	sessionContextKey     = contextKey("session")
	sessionUnavailableKey = contextKey("session_unavailable")
)

// SessionLoader はセッションIDから有効なセッションを取得する。
// 存在しないか期限切れの場合はnilを返す。
type SessionLoader interface {
	CurrentSession(ctx context.Context, sessionID string) (*model.Session, error)
}

// NewSessionMiddleware はCookieのセッションを読み込み、リクエストコンテキストに注入する。
// セッションがないリクエストもそのまま通過させる。認可の判定はRequireMemberで行う。
// セッションストアの障害で読み込めなかった場合は、未サインインと区別できるよう
// その旨をコンテキストに記録する。
func NewSessionMiddleware(loader SessionLoader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := loader.CurrentSession(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to load session",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionUnavailableKey, true)))
				return
			}
			if session == nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
		})
	}
}

// ContextWithSession はコンテキストにセッションを注入する。
func ContextWithSession(ctx context.Context, session *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// SessionFromContext はセッションミドルウェアが注入したセッションを返す。
func SessionFromContext(ctx context.Context) (*model.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(*model.Session)
	return session, ok && session != nil
}

// IdentityFromContext はセッションの本人情報を返す。
func IdentityFromContext(ctx context.Context) (*model.Identity, bool) {
	session, ok := SessionFromContext(ctx)
	if !ok {
		return nil, false
	}
	return &session.Identity, true
}

// MemberIDFromContext はセッションのsubject idを返す。セッションがない場合は空文字列。
func MemberIDFromContext(ctx context.Context) string {
	if identity, ok := IdentityFromContext(ctx); ok {
		return identity.SubjectID
	}
	return ""
}

// SessionUnavailable はセッションCookieがあるのにストア障害で読み込めなかったかどうかを返す。
func SessionUnavailable(ctx context.Context) bool {
	unavailable, _ := ctx.Value(sessionUnavailableKey).(bool)
	return unavailable
}
