package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/irissociety/irisportal/internal/auth"
	"github.com/irissociety/irisportal/internal/middleware"
	"github.com/irissociety/irisportal/internal/model"
)

const (
	oauthStateCookie = "oauth_state"
	oauthNextCookie  = "oauth_next"
	oauthCookieAge   = 600 // 10分
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, req auth.CallbackRequest) *auth.CallbackResult
	CheckSession(ctx context.Context, sessionID string) (*auth.SessionState, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// Login はGoogle OAuthフローを開始する。
// GET /auth/google/login?next=/path
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateと遷移先をCookieに保存（CSRF対策）
	h.setShortCookie(w, oauthStateCookie, state, oauthCookieAge)
	h.setShortCookie(w, oauthNextCookie, SafeNextPath(r.URL.Query().Get("next")), oauthCookieAge)

	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理し、結果に応じた画面へリダイレクトする。
// GET /auth/callback?code=xxx&state=yyy[&next=/path]
// GET /auth/callback?error=access_denied&error_description=...
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	// 1. クエリとCookieからリクエストを組み立てる
	q := r.URL.Query()
	req := auth.CallbackRequest{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}
	if c, err := r.Cookie(oauthStateCookie); err == nil {
		req.ExpectedState = c.Value
	}
	// 遷移先はクエリのnextを優先し、なければログイン開始時のCookieを使う
	next := auth.PathDashboard
	if qNext := q.Get("next"); qNext != "" {
		next = SafeNextPath(qNext)
	} else if c, err := r.Cookie(oauthNextCookie); err == nil {
		next = SafeNextPath(c.Value)
	}

	// 2. 一度きりのCookieを削除
	h.setShortCookie(w, oauthStateCookie, "", -1)
	h.setShortCookie(w, oauthNextCookie, "", -1)

	// 3. 認証・認可
	result := h.service.HandleCallback(r.Context(), req)

	// 4. 本人確認できた場合はセッションCookieを設定（HTTP Only）
	if result.Session != nil {
		h.setSessionCookie(w, result.Session.ID, h.config.SessionMaxAge)
	}

	// 5. 結果に応じてリダイレクト
	http.Redirect(w, r, h.callbackTarget(result, next), http.StatusTemporaryRedirect)
}

// callbackTarget はコールバック結果からリダイレクト先の絶対URLを決める。
func (h *AuthHandler) callbackTarget(result *auth.CallbackResult, next string) string {
	switch result.Outcome {
	case auth.OutcomeAuthorized:
		return h.config.BaseURL + next
	case auth.OutcomeUnauthorized:
		return h.config.BaseURL + auth.PathUnauthorized
	default:
		return h.config.BaseURL + ErrorPagePath(result.Message)
	}
}

// Logout はセッションを破棄してトップへリダイレクトする。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	h.setSessionCookie(w, "", -1)
	http.Redirect(w, r, h.config.BaseURL+"/", http.StatusSeeOther)
}

// meUser は/auth/meのuserフィールド。
type meUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Me は現在のセッションと認可状態を返す。
// GET /auth/me
//
// セッションがなければ401、認可状態を確定できなければ503で
// authorizedを"unknown"として返す。
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"authenticated": false})
		return
	}

	state, err := h.service.CheckSession(r.Context(), cookie.Value)
	if err != nil {
		slog.Error("failed to check session", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"authenticated": false,
			"authorized":    "unknown",
		})
		return
	}
	if state == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"authenticated": false})
		return
	}

	identity := state.Session.Identity
	user := meUser{
		ID:        identity.SubjectID,
		Email:     identity.Email,
		Name:      identity.Name,
		AvatarURL: identity.AvatarURL,
	}

	if state.Status == model.AuthorizationUnknown {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"authenticated": true,
			"authorized":    "unknown",
			"user":          user,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"authorized":    state.Status == model.Authorized,
		"user":          user,
	})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) setShortCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SafeNextPath はサインイン後の遷移先として使えるローカルパスを返す。
// "/"で始まり"//"や"/\"で始まらないパス以外は/dashboardに置き換える。
func SafeNextPath(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") ||
		strings.HasPrefix(next, "//") || strings.HasPrefix(next, `/\`) {
		return auth.PathDashboard
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return auth.PathDashboard
	}
	return next
}

// ErrorPagePath はエラーページのパスを返す。
// メッセージがあればerrorクエリに%20区切りでエンコードして付与する。
func ErrorPagePath(message string) string {
	if message == "" {
		return auth.PathError
	}
	return auth.PathError + "?error=" + strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
