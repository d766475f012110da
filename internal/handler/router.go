// Package handler はHTTPハンドラとルーティングを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/roadwatch/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なインターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はルーター構築に必要な依存をまとめた構造体。
type RouterDeps struct {
	Logger            *slog.Logger
	HealthChecker     HealthChecker
	SessionFinder     middleware.SessionFinder
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	HTTPMetrics       middleware.HTTPMetrics
	MetricsHandler    http.Handler

	Auth      *AuthHandler
	RiskZones *RiskZoneHandler
	Alerts    *AlertHandler
	Routes    *RouteHandler
	Analytics *AnalyticsHandler
	Users     *UserHandler
}

// NewRouter はアプリケーションのルーターを構築する。
// ミドルウェアの適用順序:
//  1. リカバリ（パニックを500に変換）
//  2. リクエストログ
//  3. CORS（プリフライトを早期応答するため認証より前）
//  4. セキュリティヘッダ
//  5. CSRF（Cookie認証のため全ての非安全メソッドに適用）
//  6. セッション認証 + レート制限（/api配下のみ）
func NewRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	if deps.HTTPMetrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPMetrics))
	}
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.PingContext(req.Context()); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	// Prometheusスクレイプ用エンドポイント。認証の外に置く。
	if deps.MetricsHandler != nil {
		r.Get("/metrics", deps.MetricsHandler.ServeHTTP)
	}

	// 認証エンドポイント。セッション確立前のためセッションミドルウェアの外に置く。
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", deps.Auth.Login)
		r.Post("/signup", deps.Auth.Signup)
		r.Get("/google/login", deps.Auth.GoogleLogin)
		r.Get("/google/callback", deps.Auth.GoogleCallback)
		r.Post("/logout", deps.Auth.Logout)
		r.Get("/me", deps.Auth.Me)
	})

	// 認証必須のAPIエンドポイント。
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		report := r.With(deps.RateLimiter.ReportMiddleware())

		r.Get("/zones", deps.RiskZones.List)
		report.Post("/zones/report", deps.RiskZones.Report)
		report.Post("/zones/{zoneID}/confirm", deps.RiskZones.Confirm)

		r.Get("/alerts", deps.Alerts.List)
		r.Post("/alerts/{alertID}/read", deps.Alerts.MarkRead)
		r.Post("/alerts/read-all", deps.Alerts.MarkAllRead)
		report.Post("/alerts/report", deps.Alerts.Report)

		r.Get("/routes/suggest", deps.Routes.Suggest)
		r.Get("/analytics/driver", deps.Analytics.DriverReport)

		r.Patch("/users/me", deps.Users.UpdateProfile)
		r.Delete("/users/me", deps.Users.Withdraw)
	})

	return r
}
