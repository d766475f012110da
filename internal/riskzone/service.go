// Package riskzone はリスクゾーンの照会と報告の集約を提供する。
// ゾーンの深刻度は累計報告数から再計算される。
package riskzone

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/roadwatch/internal/model"
	"github.com/hitoshi/roadwatch/internal/repository"
)

// 深刻度の報告数しきい値
const (
	mediumReportThreshold = 5
	highReportThreshold   = 15
)

const defaultListLimit = 100

// Sanitizer はユーザー入力テキストの無害化インターフェース。
type Sanitizer interface {
	SanitizeText(s string) string
}

// Service はリスクゾーンのサービス層。
type Service struct {
	zoneRepo  repository.RiskZoneRepository
	sanitizer Sanitizer
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(zoneRepo repository.RiskZoneRepository, sanitizer Sanitizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{zoneRepo: zoneRepo, sanitizer: sanitizer, logger: logger}
}

// ListZones はリスクゾーン一覧を返す。severityが空の場合は全件。
func (s *Service) ListZones(ctx context.Context, severity string, limit int) ([]*model.RiskZone, error) {
	sev := model.ZoneSeverity(severity)
	if severity != "" && !model.ValidZoneSeverity(sev) {
		return nil, model.NewInvalidSeverityError(severity)
	}
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	return s.zoneRepo.List(ctx, sev, limit)
}

// ReportInput は新規ゾーン報告の入力。
type ReportInput struct {
	Name        string
	Type        string
	Description string
	LocX        float64
	LocY        float64
}

// ReportZone は新しい危険箇所の報告を受け付け、ゾーンを作成する。
// 初回報告のゾーンは深刻度lowから始まる。
func (s *Service) ReportZone(ctx context.Context, input ReportInput) (*model.RiskZone, error) {
	name := strings.TrimSpace(input.Name)
	description := strings.TrimSpace(input.Description)
	if name == "" || description == "" {
		return nil, model.NewEmptyReportFieldsError()
	}
	zoneType := model.ZoneType(input.Type)
	if !model.ValidZoneType(zoneType) {
		return nil, model.NewInvalidZoneTypeError(input.Type)
	}

	if s.sanitizer != nil {
		name = s.sanitizer.SanitizeText(name)
		description = s.sanitizer.SanitizeText(description)
	}

	now := time.Now()
	zone := &model.RiskZone{
		ID:             uuid.New().String(),
		Name:           name,
		Type:           zoneType,
		Severity:       severityForReports(1),
		Description:    description,
		Reports:        1,
		LastReportedAt: now,
		LocX:           input.LocX,
		LocY:           input.LocY,
		CreatedAt:      now,
	}

	if err := s.zoneRepo.Create(ctx, zone); err != nil {
		return nil, err
	}

	s.logger.Info("新しいリスクゾーンが報告されました",
		slog.String("zone_id", zone.ID),
		slog.String("zone_type", string(zone.Type)),
	)

	return zone, nil
}

// ConfirmZone は既存ゾーンへの追加報告を記録する。
// 報告数の加算に伴い深刻度を再計算する。
func (s *Service) ConfirmZone(ctx context.Context, zoneID string) (*model.RiskZone, error) {
	zone, err := s.zoneRepo.FindByID(ctx, zoneID)
	if err != nil {
		return nil, err
	}
	if zone == nil {
		return nil, model.NewZoneNotFoundError(zoneID)
	}

	newSeverity := severityForReports(zone.Reports + 1)
	updated, err := s.zoneRepo.AddReport(ctx, zoneID, newSeverity, time.Now())
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, model.NewZoneNotFoundError(zoneID)
	}

	if updated.Severity != zone.Severity {
		s.logger.Info("リスクゾーンの深刻度が変化しました",
			slog.String("zone_id", zoneID),
			slog.String("from", string(zone.Severity)),
			slog.String("to", string(updated.Severity)),
			slog.Int("reports", updated.Reports),
		)
	}

	return updated, nil
}

// severityForReports は累計報告数から深刻度を導出する。
func severityForReports(reports int) model.ZoneSeverity {
	switch {
	case reports >= highReportThreshold:
		return model.SeverityHigh
	case reports >= mediumReportThreshold:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}
