// Package app はサブコマンドごとの起動処理と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/irissociety/irisportal/internal/auth"
	"github.com/irissociety/irisportal/internal/config"
	"github.com/irissociety/irisportal/internal/database"
	"github.com/irissociety/irisportal/internal/handler"
	"github.com/irissociety/irisportal/internal/logger"
	"github.com/irissociety/irisportal/internal/member"
	"github.com/irissociety/irisportal/internal/metrics"
	"github.com/irissociety/irisportal/internal/middleware"
	"github.com/irissociety/irisportal/internal/repository"
	"github.com/irissociety/irisportal/internal/roster"
	"github.com/irissociety/irisportal/internal/security"
	"github.com/irissociety/irisportal/internal/telemetry"
	"github.com/irissociety/irisportal/internal/worker/cleanup"
)

const serviceName = "irisportal"

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, "info")

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再設定
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandImportRoster:
		return runImportRoster(cfg, ImportRosterPath(args))
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Ping(context.Background(), db, 5*time.Second); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("database connection established")
	return db, nil
}

// newRosterSource はロスターの取り込み元を決める。
// pathが指定されればローカルファイル、なければ設定済みURLをSSRF対策済みクライアントで取得する。
func newRosterSource(cfg *config.Config, path string) (roster.Source, error) {
	if path != "" {
		return &roster.FileSource{Path: path}, nil
	}

	guard := security.NewFetchGuard()
	if err := guard.ValidateURL(cfg.RosterSourceURL); err != nil {
		return nil, fmt.Errorf("invalid roster source URL: %w", err)
	}
	return roster.NewHTTPSource(
		cfg.RosterSourceURL,
		guard.NewSafeClient(cfg.RosterFetchTimeout),
		cfg.RosterMaxSize,
	), nil
}

// newMetricsRegistry はGo・プロセスのメトリクスを含むレジストリとCollectorを生成する。
func newMetricsRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// runServe はHTTPサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. トレース
	shutdownTracing := telemetry.Setup(context.Background(), serviceName, cfg.OTLPEndpoint, cfg.OTLPInsecure)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			slog.Error("failed to shutdown tracer provider", slog.String("error", err.Error()))
		}
	}()

	// 2. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 3. リポジトリとメトリクスの初期化
	rosterRepo := repository.NewPostgresRosterRepo(db)
	profileRepo := repository.NewPostgresProfileRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	registry, collector := newMetricsRegistry()

	// 4. ドメインサービスの初期化
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authorizer := auth.NewAuthorizer(rosterRepo)
	authService := auth.NewService(
		oauthProvider, authorizer, profileRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
		collector,
	)
	memberService := member.NewService(profileRepo, sessionRepo)
	importer := roster.NewImporter(rosterRepo, cfg.RosterBatchSize, collector, slog.Default())

	rosterSource, err := newRosterSource(cfg, "")
	if err != nil {
		slog.Warn("roster import endpoint disabled", slog.String("error", err.Error()))
	}
	if cfg.AdminAPIToken == "" {
		slog.Info("ADMIN_API_TOKEN is not set; roster import endpoint disabled")
	}

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitSignIn),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		StatusRecorder:    collector,
		SessionLoader:     authService,
		StatusChecker:     authorizer,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		TextCleaner:   security.NewTextSanitizer(),
		MemberService: memberService,

		RosterImporter: importer,
		RosterSource:   rosterSource,
		AdminToken:     cfg.AdminAPIToken,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      otelhttp.NewHandler(router, serviceName),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("HTTP server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションの掃除を定期実行し、ROSTER_SYNC_INTERVALが正であればロスターも定期同期する。
// SERVER_PORTで/healthと/metricsを公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 3. 運用エンドポイント（Dockerのhealthcheckとメトリクス収集用）
	registry, collector := newMetricsRegistry()
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler.NewWorkerRouter(db, metrics.Handler(registry)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker metrics server failed", slog.String("error", err.Error()))
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	// 4. ロスター定期同期（任意）
	if cfg.RosterSyncInterval > 0 {
		source, err := newRosterSource(cfg, "")
		if err != nil {
			return err
		}
		importer := roster.NewImporter(
			repository.NewPostgresRosterRepo(db), cfg.RosterBatchSize, collector, slog.Default(),
		)
		go roster.NewSyncer(importer, source, slog.Default()).Start(ctx, cfg.RosterSyncInterval)
	}

	slog.Info("worker starting",
		slog.String("addr", server.Addr),
		slog.Duration("session_cleanup_interval", cfg.SessionCleanupInterval),
		slog.Duration("roster_sync_interval", cfg.RosterSyncInterval),
	)

	// 5. セッション掃除をメインgoroutineで実行（ブロッキング）
	cleanup.NewCleanupJob(db, slog.Default(), collector).Start(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version.Version)),
		slog.Bool("dirty", version.Dirty),
	)
	return nil
}

// runImportRoster はロスターを1回取り込んで終了する。
// pathが空の場合はROSTER_SOURCE_URLから取得する。
func runImportRoster(cfg *config.Config, path string) error {
	source, err := newRosterSource(cfg, path)
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	importer := roster.NewImporter(
		repository.NewPostgresRosterRepo(db), cfg.RosterBatchSize, nil, slog.Default(),
	)
	result, err := importer.Import(ctx, source)
	if err != nil {
		return fmt.Errorf("roster import failed: %w", err)
	}

	slog.Info("roster import finished",
		slog.String("run_id", result.RunID),
		slog.Int("count", result.Count),
		slog.Int("total", result.Total),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
