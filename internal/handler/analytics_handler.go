package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/roadwatch/internal/middleware"
	"github.com/hitoshi/roadwatch/internal/model"
)

// AnalyticsService は運転分析サービスのインターフェース。
type AnalyticsService interface {
	DriverReport(ctx context.Context, userID string, days int) (*model.DriverReport, error)
}

// AnalyticsHandler は運転分析のHTTPハンドラ。
type AnalyticsHandler struct {
	service AnalyticsService
}

// NewAnalyticsHandler は新しいAnalyticsHandlerを生成する。
func NewAnalyticsHandler(service AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

type dailyStatResponse struct {
	Day   string `json:"day"`
	Score int    `json:"score"`
	Trips int    `json:"trips"`
}

type speedSampleResponse struct {
	SampledAt time.Time `json:"sampled_at"`
	SpeedKph  int       `json:"speed_kph"`
	LimitKph  int       `json:"limit_kph"`
}

type behaviorResponse struct {
	SmoothPct          int `json:"smooth_pct"`
	ModerateBrakingPct int `json:"moderate_braking_pct"`
	HarshPct           int `json:"harsh_pct"`
}

type driverReportResponse struct {
	OverallScore int                   `json:"overall_score"`
	ScoreChange  int                   `json:"score_change"`
	Daily        []dailyStatResponse   `json:"daily"`
	Speed        []speedSampleResponse `json:"speed"`
	Behavior     behaviorResponse      `json:"behavior"`
}

// DriverReport はドライバーの運転分析レポートを返す。
// GET /api/analytics/driver?days=7
func (h *AnalyticsHandler) DriverReport(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	days := parseIntParam(r, "days", 7)

	report, err := h.service.DriverReport(r.Context(), userID, days)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	daily := make([]dailyStatResponse, 0, len(report.Daily))
	for _, d := range report.Daily {
		daily = append(daily, dailyStatResponse{
			Day:   d.Day.Format("2006-01-02"),
			Score: d.Score,
			Trips: d.Trips,
		})
	}
	speed := make([]speedSampleResponse, 0, len(report.Speed))
	for _, s := range report.Speed {
		speed = append(speed, speedSampleResponse{
			SampledAt: s.SampledAt,
			SpeedKph:  s.SpeedKph,
			LimitKph:  s.LimitKph,
		})
	}

	writeJSON(w, http.StatusOK, driverReportResponse{
		OverallScore: report.OverallScore,
		ScoreChange:  report.ScoreChange,
		Daily:        daily,
		Speed:        speed,
		Behavior: behaviorResponse{
			SmoothPct:          report.Behavior.SmoothPct,
			ModerateBrakingPct: report.Behavior.ModerateBrakingPct,
			HarshPct:           report.Behavior.HarshPct,
		},
	})
}
