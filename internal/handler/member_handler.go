package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/irissociety/irisportal/internal/middleware"
	"github.com/irissociety/irisportal/internal/model"
)

// MemberServiceInterface はメンバーハンドラーが必要とするサービスインターフェース。
type MemberServiceInterface interface {
	Profile(ctx context.Context, subjectID string) (*model.UserProfile, error)
	// Withdraw は全セッションとキャッシュされたプロフィールを削除する。
	// ロスターのレコードは残す。
	Withdraw(ctx context.Context, subjectID string) error
}

// MemberHandler はサインイン済みメンバー自身のHTTPハンドラー。
type MemberHandler struct {
	service MemberServiceInterface
	cookie  AuthHandlerConfig
}

// NewMemberHandler はMemberHandlerを生成する。
// cookieはWithdraw時にセッションCookieを削除するために使う。
func NewMemberHandler(service MemberServiceInterface, cookie AuthHandlerConfig) *MemberHandler {
	return &MemberHandler{
		service: service,
		cookie:  cookie,
	}
}

// profileResponse はプロフィールAPIのレスポンス。
type profileResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	AvatarURL  string    `json:"avatar_url,omitempty"`
	LastSignIn time.Time `json:"last_sign_in"`
	CreatedAt  time.Time `json:"created_at"`
}

// Profile はキャッシュされた自分のプロフィールを返す。
// GET /api/members/me
func (h *MemberHandler) Profile(w http.ResponseWriter, r *http.Request) {
	memberID := middleware.MemberIDFromContext(r.Context())
	if memberID == "" {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	profile, err := h.service.Profile(r.Context(), memberID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		ID:         profile.ID,
		Email:      profile.Email,
		Name:       profile.Name,
		AvatarURL:  profile.AvatarURL,
		LastSignIn: profile.LastSignIn,
		CreatedAt:  profile.CreatedAt,
	})
}

// Withdraw は自分のプロフィールと全セッションを削除し、セッションCookieをクリアする。
// DELETE /api/members/me
func (h *MemberHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	memberID := middleware.MemberIDFromContext(r.Context())
	if memberID == "" {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	if err := h.service.Withdraw(r.Context(), memberID); err != nil {
		handleServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.cookie.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
