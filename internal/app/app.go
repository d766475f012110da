package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/roadwatch/internal/alert"
	"github.com/hitoshi/roadwatch/internal/analytics"
	"github.com/hitoshi/roadwatch/internal/auth"
	"github.com/hitoshi/roadwatch/internal/config"
	"github.com/hitoshi/roadwatch/internal/database"
	"github.com/hitoshi/roadwatch/internal/handler"
	"github.com/hitoshi/roadwatch/internal/identity"
	"github.com/hitoshi/roadwatch/internal/logger"
	"github.com/hitoshi/roadwatch/internal/metrics"
	"github.com/hitoshi/roadwatch/internal/middleware"
	"github.com/hitoshi/roadwatch/internal/repository"
	"github.com/hitoshi/roadwatch/internal/riskzone"
	"github.com/hitoshi/roadwatch/internal/route"
	"github.com/hitoshi/roadwatch/internal/security"
	"github.com/hitoshi/roadwatch/internal/user"
	"github.com/hitoshi/roadwatch/internal/worker/cleanup"
	"github.com/hitoshi/roadwatch/internal/worker/ingest"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

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
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	profileRepo := repository.NewPostgresProfileRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	zoneRepo := repository.NewPostgresRiskZoneRepo(db)
	alertRepo := repository.NewPostgresAlertRepo(db)
	alertStateRepo := repository.NewPostgresAlertStateRepo(db)
	statsRepo := repository.NewPostgresDriverStatsRepo(db)

	// 3. セキュリティ・メトリクスの初期化
	sanitizer := security.NewContentSanitizer()
	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	// 4. ドメインサービスの初期化
	federated := identity.NewGoogleFederated(identity.GoogleFederatedConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	newScope := func() auth.IdentityScope {
		return identity.NewClient(identity.ClientConfig{
			APIKey:          cfg.IdentityAPIKey,
			AccountsBaseURL: cfg.IdentityAccountsURL,
			TokenBaseURL:    cfg.IdentityTokenURL,
		})
	}
	authService := auth.NewService(
		newScope, federated, profileRepo, sessionRepo,
		slog.Default(), auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	authService.SetMetrics(collector)
	defer authService.Close()

	zoneService := riskzone.NewService(zoneRepo, sanitizer, slog.Default())
	alertService := alert.NewService(alertRepo, alertStateRepo, sanitizer, slog.Default())
	routeService := route.NewService(zoneRepo)
	analyticsService := analytics.NewService(statsRepo)
	userService := user.NewService(
		profileRepo, sessionRepo, alertStateRepo, statsRepo,
		sanitizer, slog.Default(),
	)

	// 5. レート制限の初期化（configはreq/min単位、rate.Limitはreq/sec単位）
	rlCfg := middleware.DefaultRateLimiterConfig()
	rlCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rlCfg.GeneralBurst = cfg.RateLimitGeneral
	rlCfg.ReportRate = rate.Limit(float64(cfg.RateLimitReport) / 60.0)
	rlCfg.ReportBurst = cfg.RateLimitReport
	rateLimiter := middleware.NewRateLimiter(rlCfg)
	defer rateLimiter.Stop()

	// 6. ルーターの構築
	authHandler := handler.NewAuthHandler(authService, handler.AuthHandlerConfig{
		BaseURL:       cfg.BaseURL,
		CookieDomain:  cfg.CookieDomain,
		CookieSecure:  cfg.CookieSecure,
		SessionMaxAge: time.Duration(cfg.SessionMaxAge) * time.Second,
	}, slog.Default())

	router := handler.NewRouter(handler.RouterDeps{
		Logger:            slog.Default(),
		HealthChecker:     db,
		SessionFinder:     sessionRepo,
		RateLimiter:       rateLimiter,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		HTTPMetrics:    collector,
		MetricsHandler: metrics.Handler(prometheus.DefaultGatherer),

		Auth:      authHandler,
		RiskZones: handler.NewRiskZoneHandler(zoneService),
		Alerts:    handler.NewAlertHandler(alertService),
		Routes:    handler.NewRouteHandler(routeService),
		Analytics: handler.NewAnalyticsHandler(analyticsService),
		Users:     handler.NewUserHandler(userService),
	})

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、アドバイザリ取り込みスケジューラとクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	alertRepo := repository.NewPostgresAlertRepo(db)
	zoneRepo := repository.NewPostgresRiskZoneRepo(db)

	// 3. セキュリティ・メトリクスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()
	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	// 4. 取り込みフェッチャーの初期化
	sources := ingest.NewSources(cfg.AdvisoryFeedURLs)
	fetcher := ingest.NewFetcher(
		alertRepo, sanitizer, ssrfGuard, collector,
		slog.Default(), cfg.IngestTimeout, cfg.IngestMaxSize, cfg.IngestInterval,
	)

	// 5. スケジューラの初期化
	scheduler := ingest.NewScheduler(
		sources, fetcher, slog.Default(), cfg.IngestMaxConcurrent,
	)

	// 6. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(sessionRepo, alertRepo, zoneRepo, slog.Default())
	cleanupJob.AlertRetentionDays = cfg.AlertRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("ingest_interval", cfg.IngestInterval),
		slog.Int("max_concurrent", cfg.IngestMaxConcurrent),
		slog.Int("source_count", len(sources)),
	)

	// クリーンアップジョブを定期バックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// 取り込みスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.IngestInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
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
