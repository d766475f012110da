// Package alert は交通アラートの照会・報告・既読管理を提供する。
package alert

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/roadwatch/internal/model"
	"github.com/hitoshi/roadwatch/internal/repository"
)

const defaultListLimit = 50

// Sanitizer はユーザー入力テキストの無害化インターフェース。
type Sanitizer interface {
	SanitizeText(s string) string
}

// Service はアラートのサービス層。
type Service struct {
	alertRepo repository.AlertRepository
	stateRepo repository.AlertStateRepository
	sanitizer Sanitizer
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	alertRepo repository.AlertRepository,
	stateRepo repository.AlertStateRepository,
	sanitizer Sanitizer,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		alertRepo: alertRepo,
		stateRepo: stateRepo,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// ListAlerts はユーザーの既読状態付きアラート一覧を返す。
func (s *Service) ListAlerts(ctx context.Context, userID string, filter string, limit int) ([]model.AlertWithState, error) {
	f := model.AlertFilter(filter)
	if filter == "" {
		f = model.AlertFilterAll
	}
	if !model.ValidAlertFilter(f) {
		return nil, model.NewInvalidFilterError(filter)
	}
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	return s.alertRepo.ListWithState(ctx, userID, f, limit)
}

// MarkRead は指定アラートを既読にする。
func (s *Service) MarkRead(ctx context.Context, userID, alertID string) error {
	alert, err := s.alertRepo.FindByID(ctx, alertID)
	if err != nil {
		return err
	}
	if alert == nil {
		return model.NewAlertNotFoundError(alertID)
	}
	return s.stateRepo.MarkRead(ctx, userID, alertID, true)
}

// MarkAllRead はユーザーの全アラートを既読にする。
func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	return s.stateRepo.MarkAllRead(ctx, userID)
}

// ReportInput はユーザーによるアラート報告の入力。
type ReportInput struct {
	Type     string
	Title    string
	Message  string
	Location string
	Severity string
}

// ReportAlert はユーザーからのアラート報告を受け付ける。
// ユーザー報告のアラートは未検証（IsVerified=false）として作成される。
func (s *Service) ReportAlert(ctx context.Context, input ReportInput) (*model.Alert, error) {
	title := strings.TrimSpace(input.Title)
	message := strings.TrimSpace(input.Message)
	location := strings.TrimSpace(input.Location)
	if title == "" || message == "" || location == "" {
		return nil, model.NewEmptyReportFieldsError()
	}

	alertType := model.AlertType(input.Type)
	if !model.ValidAlertType(alertType) {
		return nil, model.NewInvalidAlertTypeError(input.Type)
	}
	severity := model.AlertSeverity(input.Severity)
	if input.Severity == "" {
		severity = model.AlertSeverityInfo
	}
	if !model.ValidAlertSeverity(severity) {
		return nil, model.NewInvalidSeverityError(input.Severity)
	}

	if s.sanitizer != nil {
		title = s.sanitizer.SanitizeText(title)
		message = s.sanitizer.SanitizeText(message)
		location = s.sanitizer.SanitizeText(location)
	}

	now := time.Now()
	alert := &model.Alert{
		ID:          uuid.New().String(),
		Type:        alertType,
		Title:       title,
		Message:     message,
		Location:    location,
		Severity:    severity,
		IsVerified:  false,
		PublishedAt: now,
		CreatedAt:   now,
	}

	if err := s.alertRepo.Create(ctx, alert); err != nil {
		return nil, err
	}

	s.logger.Info("ユーザー報告アラートを作成しました",
		slog.String("alert_id", alert.ID),
		slog.String("alert_type", string(alert.Type)),
		slog.String("severity", string(alert.Severity)),
	)

	return alert, nil
}
