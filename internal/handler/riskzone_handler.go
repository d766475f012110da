package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/roadwatch/internal/model"
	"github.com/hitoshi/roadwatch/internal/riskzone"
)

// RiskZoneService はリスクゾーンサービスのインターフェース。
type RiskZoneService interface {
	ListZones(ctx context.Context, severity string, limit int) ([]*model.RiskZone, error)
	ReportZone(ctx context.Context, input riskzone.ReportInput) (*model.RiskZone, error)
	ConfirmZone(ctx context.Context, zoneID string) (*model.RiskZone, error)
}

// RiskZoneHandler はリスクゾーン関連のHTTPハンドラ。
type RiskZoneHandler struct {
	service RiskZoneService
}

// NewRiskZoneHandler は新しいRiskZoneHandlerを生成する。
func NewRiskZoneHandler(service RiskZoneService) *RiskZoneHandler {
	return &RiskZoneHandler{service: service}
}

type riskZoneResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	Severity       string    `json:"severity"`
	Description    string    `json:"description"`
	Reports        int       `json:"reports"`
	LastReportedAt time.Time `json:"last_reported_at"`
	LocX           float64   `json:"loc_x"`
	LocY           float64   `json:"loc_y"`
}

func toRiskZoneResponse(zone *model.RiskZone) riskZoneResponse {
	return riskZoneResponse{
		ID:             zone.ID,
		Name:           zone.Name,
		Type:           string(zone.Type),
		Severity:       string(zone.Severity),
		Description:    zone.Description,
		Reports:        zone.Reports,
		LastReportedAt: zone.LastReportedAt,
		LocX:           zone.LocX,
		LocY:           zone.LocY,
	}
}

// List はリスクゾーン一覧を返す。severityパラメータで絞り込み可能。
// GET /api/zones?severity=high&limit=50
func (h *RiskZoneHandler) List(w http.ResponseWriter, r *http.Request) {
	severity := r.URL.Query().Get("severity")
	limit := parseIntParam(r, "limit", 0)

	zones, err := h.service.ListZones(r.Context(), severity, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]riskZoneResponse, 0, len(zones))
	for _, zone := range zones {
		responses = append(responses, toRiskZoneResponse(zone))
	}
	writeJSON(w, http.StatusOK, map[string]any{"zones": responses})
}

type reportZoneRequest struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	LocX        float64 `json:"loc_x"`
	LocY        float64 `json:"loc_y"`
}

// Report は新しい危険箇所の報告を受け付ける。
// POST /api/zones/report
func (h *RiskZoneHandler) Report(w http.ResponseWriter, r *http.Request) {
	var req reportZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	zone, err := h.service.ReportZone(r.Context(), riskzone.ReportInput{
		Name:        req.Name,
		Type:        req.Type,
		Description: req.Description,
		LocX:        req.LocX,
		LocY:        req.LocY,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRiskZoneResponse(zone))
}

// Confirm は既存ゾーンへの追加報告を記録する。
// POST /api/zones/{zoneID}/confirm
func (h *RiskZoneHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	zoneID := chi.URLParam(r, "zoneID")

	zone, err := h.service.ConfirmZone(r.Context(), zoneID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRiskZoneResponse(zone))
}

// parseIntParam はクエリパラメータを整数として解析する。
// 欠落または不正な値の場合はフォールバック値を返す。
func parseIntParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
