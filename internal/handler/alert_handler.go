package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/roadwatch/internal/alert"
	"github.com/hitoshi/roadwatch/internal/middleware"
	"github.com/hitoshi/roadwatch/internal/model"
)

// AlertService はアラートサービスのインターフェース。
type AlertService interface {
	ListAlerts(ctx context.Context, userID string, filter string, limit int) ([]model.AlertWithState, error)
	MarkRead(ctx context.Context, userID, alertID string) error
	MarkAllRead(ctx context.Context, userID string) error
	ReportAlert(ctx context.Context, input alert.ReportInput) (*model.Alert, error)
}

// AlertHandler はアラート関連のHTTPハンドラ。
type AlertHandler struct {
	service AlertService
}

// NewAlertHandler は新しいAlertHandlerを生成する。
func NewAlertHandler(service AlertService) *AlertHandler {
	return &AlertHandler{service: service}
}

type alertResponse struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Location    string    `json:"location"`
	Severity    string    `json:"severity"`
	IsVerified  bool      `json:"is_verified"`
	IsRead      bool      `json:"is_read"`
	PublishedAt time.Time `json:"published_at"`
}

func toAlertResponse(a model.AlertWithState) alertResponse {
	return alertResponse{
		ID:          a.ID,
		Type:        string(a.Type),
		Title:       a.Title,
		Message:     a.Message,
		Location:    a.Location,
		Severity:    string(a.Severity),
		IsVerified:  a.IsVerified,
		IsRead:      a.IsRead,
		PublishedAt: a.PublishedAt,
	}
}

// List はユーザーのアラート一覧を返す。filterパラメータで絞り込み可能。
// GET /api/alerts?filter=unread&limit=50
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	filter := r.URL.Query().Get("filter")
	limit := parseIntParam(r, "limit", 0)

	alerts, err := h.service.ListAlerts(r.Context(), userID, filter, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]alertResponse, 0, len(alerts))
	for _, a := range alerts {
		responses = append(responses, toAlertResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": responses})
}

// MarkRead はアラートを既読にする。
// POST /api/alerts/{alertID}/read
func (h *AlertHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	alertID := chi.URLParam(r, "alertID")
	if err := h.service.MarkRead(r.Context(), userID, alertID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead はユーザーの全アラートを既読にする。
// POST /api/alerts/read-all
func (h *AlertHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.MarkAllRead(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type reportAlertRequest struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Location string `json:"location"`
	Severity string `json:"severity"`
}

// Report はユーザーからのアラート報告を受け付ける。
// POST /api/alerts/report
func (h *AlertHandler) Report(w http.ResponseWriter, r *http.Request) {
	var req reportAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	created, err := h.service.ReportAlert(r.Context(), alert.ReportInput{
		Type:     req.Type,
		Title:    req.Title,
		Message:  req.Message,
		Location: req.Location,
		Severity: req.Severity,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAlertResponse(model.AlertWithState{Alert: *created}))
}
