package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/irissociety/irisportal/internal/auth"
	"github.com/irissociety/irisportal/internal/model"
)

// StatusChecker はメールアドレスの認可状態を判定する。*auth.Authorizerが実装する。
type StatusChecker interface {
	Status(ctx context.Context, email string) (model.AuthorizationStatus, error)
}

// buildView はリクエストのセッションから保護画面の判定材料を組み立てる。
// セッションを読み込めなかった場合は判定を保留する。
func buildView(r *http.Request, checker StatusChecker) auth.View {
	if SessionUnavailable(r.Context()) {
		return auth.View{Loading: true}
	}

	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		return auth.View{}
	}

	status, err := checker.Status(r.Context(), identity.Email)
	if err != nil {
		slog.Error("authorization check failed",
			slog.String("member_id", identity.SubjectID),
			slog.String("error", err.Error()),
		)
	}
	return auth.View{Identity: identity, Status: status}
}

// NewRequireMemberPage はHTML画面用の保護ミドルウェアを返す。
// 未サインインはサインイン画面へ、未認可はunauthorized画面へリダイレクトする。
// 認可状態を確定できない場合は503を返す。
func NewRequireMemberPage(checker StatusChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			view := buildView(r, checker)

			switch decision := auth.Protect(view); decision {
			case auth.DecisionRender:
				next.ServeHTTP(w, r)
			case auth.DecisionRedirectSignIn:
				target := decision.Location() + "?next=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, target, http.StatusFound)
			case auth.DecisionRedirectUnauthorized:
				http.Redirect(w, r, decision.Location(), http.StatusFound)
			default:
				w.Header().Set("Retry-After", retryAfterSeconds)
				http.Error(w, model.NewAuthorizationUnavailableError().Message, http.StatusServiceUnavailable)
			}
		})
	}
}

// NewRequireMemberAPI はJSON API用の保護ミドルウェアを返す。
// 未サインインは401、未認可は403、認可状態が未確定の場合は503を返す。
func NewRequireMemberAPI(checker StatusChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			view := buildView(r, checker)

			switch auth.Protect(view) {
			case auth.DecisionRender:
				next.ServeHTTP(w, r)
			case auth.DecisionRedirectSignIn:
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
			case auth.DecisionRedirectUnauthorized:
				WriteErrorResponse(w, http.StatusForbidden, model.NewNotAuthorizedError(view.Identity.Email))
			default:
				WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewAuthorizationUnavailableError())
			}
		})
	}
}
