package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/roadwatch/internal/model"
)

// RouteService は経路提案サービスのインターフェース。
type RouteService interface {
	Suggest(ctx context.Context, origin, destination string) ([]model.RouteOption, error)
}

// RouteHandler は経路提案のHTTPハンドラ。
type RouteHandler struct {
	service RouteService
}

// NewRouteHandler は新しいRouteHandlerを生成する。
func NewRouteHandler(service RouteService) *RouteHandler {
	return &RouteHandler{service: service}
}

type routeOptionResponse struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	DistanceKm    float64  `json:"distance_km"`
	DurationMin   int      `json:"duration_min"`
	DelayMin      int      `json:"delay_min"`
	RiskScore     int      `json:"risk_score"`
	IsRecommended bool     `json:"is_recommended"`
	Features      []string `json:"features"`
}

// Suggest は出発地から目的地への経路候補を返す。
// GET /api/routes/suggest?origin=新宿&destination=横浜
func (h *RouteHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	origin := strings.TrimSpace(r.URL.Query().Get("origin"))
	destination := strings.TrimSpace(r.URL.Query().Get("destination"))

	options, err := h.service.Suggest(r.Context(), origin, destination)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]routeOptionResponse, 0, len(options))
	for _, opt := range options {
		responses = append(responses, routeOptionResponse{
			ID:            opt.ID,
			Name:          opt.Name,
			DistanceKm:    opt.DistanceKm,
			DurationMin:   opt.DurationMin,
			DelayMin:      opt.DelayMin,
			RiskScore:     opt.RiskScore,
			IsRecommended: opt.IsRecommended,
			Features:      opt.Features,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"routes": responses})
}
