package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/irissociety/irisportal/internal/auth"
	"github.com/irissociety/irisportal/internal/middleware"
	"github.com/irissociety/irisportal/internal/roster"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	StatusRecorder    middleware.HTTPStatusRecorder
	SessionLoader     middleware.SessionLoader
	StatusChecker     middleware.StatusChecker
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 画面
	TextCleaner TextCleaner

	// メンバー
	MemberService MemberServiceInterface

	// ロスター取り込み（AdminTokenが空の場合はルートを登録しない）
	RosterImporter RosterImporter
	RosterSource   roster.Source
	AdminToken     string

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Recovery → SecurityHeaders → CORS → Session → Logging → CSRF
//
// Sessionはリクエストにセッションを注入するだけで拒否しない。
// 保護されたルートはRequireMemberPage/RequireMemberAPIで判定する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	csrfConfig := middleware.CSRFConfig{
		CookieSecure: deps.AuthConfig.CookieSecure,
		CookieDomain: deps.AuthConfig.CookieDomain,
	}

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.AuthConfig.CookieSecure))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSessionMiddleware(deps.SessionLoader))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusRecorder))
	r.Use(middleware.NewCSRFMiddleware(csrfConfig))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	pageHandler := NewPageHandler(deps.TextCleaner, deps.MemberService, csrfConfig)

	// --- 運用 ---
	if deps.HealthChecker != nil {
		r.Get("/health", NewHealthHandler(deps.HealthChecker))
	}
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, auth.PathDashboard, http.StatusFound)
	})
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(csrfConfig))

	// --- 認証（セッション不要） ---
	r.Route("/auth", func(r chi.Router) {
		// OAuthフロー（クライアントIP単位のレート制限）
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.SignInMiddleware())
			r.Get("/google/login", authHandler.Login)
			r.Get("/callback", authHandler.Callback)
		})

		r.Get("/me", authHandler.Me)
		r.Post("/logout", authHandler.Logout)

		r.Get("/signin", pageHandler.SignIn)
		r.Get("/unauthorized", pageHandler.Unauthorized)
		r.Get("/error", pageHandler.Error)
	})

	// --- メンバー専用画面 ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRequireMemberPage(deps.StatusChecker))
		r.Get(auth.PathDashboard, pageHandler.Dashboard)
	})

	// --- メンバー専用API ---
	memberHandler := NewMemberHandler(deps.MemberService, deps.AuthConfig)
	r.Route("/api/members", func(r chi.Router) {
		r.Use(deps.RateLimiter.MemberMiddleware())
		r.Use(middleware.NewRequireMemberAPI(deps.StatusChecker))
		r.Get("/me", memberHandler.Profile)
		r.Delete("/me", memberHandler.Withdraw)
	})

	// --- 管理API ---
	if deps.AdminToken != "" && deps.RosterImporter != nil && deps.RosterSource != nil {
		rosterHandler := NewRosterHandler(deps.RosterImporter, deps.RosterSource)
		r.With(
			deps.RateLimiter.SignInMiddleware(),
			middleware.NewAdminTokenMiddleware(deps.AdminToken),
		).Get("/api/roster/import", rosterHandler.Import)
	}

	return r
}

// NewWorkerRouter はworkerモードで公開する運用エンドポイント（/health, /metrics）のルーターを返す。
func NewWorkerRouter(checker HealthChecker, metricsHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Get("/health", NewHealthHandler(checker))
	r.Method(http.MethodGet, "/metrics", metricsHandler)
	return r
}
