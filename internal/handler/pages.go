package handler

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/irissociety/irisportal/internal/middleware"
	"github.com/irissociety/irisportal/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// templateFuncs はページテンプレートで使える関数。
var templateFuncs = template.FuncMap{
	"formatDate": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02")
	},
}

// pageTemplates はページ名ごとにbaseと合成したテンプレート。
var pageTemplates = mustParsePages("signin", "unauthorized", "error", "dashboard")

func mustParsePages(names ...string) map[string]*template.Template {
	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		pages[name] = template.Must(template.New(name).Funcs(templateFuncs).ParseFS(
			templateFS, "templates/base.html", "templates/"+name+".html",
		))
	}
	return pages
}

// TextCleaner は表示前にテキストからマークアップを除去する。
type TextCleaner interface {
	Clean(raw string) string
}

// ProfileReader はダッシュボードに表示するプロフィールを取得する。
type ProfileReader interface {
	Profile(ctx context.Context, subjectID string) (*model.UserProfile, error)
}

// PageHandler はサーバー描画のHTML画面を提供する。
type PageHandler struct {
	cleaner  TextCleaner
	profiles ProfileReader
	csrf     middleware.CSRFConfig
}

// NewPageHandler はPageHandlerを生成する。profilesはnilでもよい。
func NewPageHandler(cleaner TextCleaner, profiles ProfileReader, csrf middleware.CSRFConfig) *PageHandler {
	return &PageHandler{
		cleaner:  cleaner,
		profiles: profiles,
		csrf:     csrf,
	}
}

// SignIn はサインイン画面を表示する。
// GET /auth/signin?next=/path
func (h *PageHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	loginURL := "/auth/google/login"
	if next := r.URL.Query().Get("next"); next != "" {
		loginURL += "?next=" + url.QueryEscape(SafeNextPath(next))
	}
	h.render(w, http.StatusOK, "signin", map[string]any{
		"Title":    "Sign in",
		"LoginURL": loginURL,
	})
}

// Unauthorized は未認可画面を表示する。
// セッションがあれば拒否されたメールアドレスとサインアウトフォームを表示する。
// GET /auth/unauthorized
func (h *PageHandler) Unauthorized(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"Title": "Access denied"}
	if identity, ok := middleware.IdentityFromContext(r.Context()); ok {
		data["Email"] = identity.Email
		data["CSRFToken"] = middleware.CSRFToken(w, r, h.csrf)
	}
	h.render(w, http.StatusForbidden, "unauthorized", data)
}

// Error はサインイン失敗画面を表示する。
// errorクエリの内容はマークアップを除去してから表示する。
// GET /auth/error?error=...
func (h *PageHandler) Error(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "error", map[string]any{
		"Title":   "Sign-in failed",
		"Message": h.cleaner.Clean(r.URL.Query().Get("error")),
	})
}

// Dashboard はメンバー専用画面を表示する。RequireMemberPageの内側に配置する。
// GET /dashboard
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/auth/signin", http.StatusFound)
		return
	}

	data := map[string]any{
		"Title":     "Dashboard",
		"Identity":  identity,
		"CSRFToken": middleware.CSRFToken(w, r, h.csrf),
	}
	if h.profiles != nil {
		profile, err := h.profiles.Profile(r.Context(), identity.SubjectID)
		if err != nil {
			slog.Warn("dashboard profile unavailable",
				slog.String("member_id", identity.SubjectID),
				slog.String("error", err.Error()),
			)
		} else {
			data["Profile"] = profile
		}
	}
	h.render(w, http.StatusOK, "dashboard", data)
}

func (h *PageHandler) render(w http.ResponseWriter, status int, page string, data map[string]any) {
	tmpl, ok := pageTemplates[page]
	if !ok {
		slog.Error("unknown page template", slog.String("template", page))
		middleware.WriteInternalServerError(w)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		slog.Error("template render failed",
			slog.String("template", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
