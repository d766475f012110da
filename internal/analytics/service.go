// Package analytics は運転統計の集計とドライバーレポートの生成を提供する。
package analytics

import (
	"context"
	"time"

	"github.com/hitoshi/roadwatch/internal/model"
	"github.com/hitoshi/roadwatch/internal/repository"
)

// レポート対象期間の既定値と上限
const (
	defaultReportDays = 7
	maxReportDays     = 90
)

// Service は運転分析のサービス層。
type Service struct {
	statsRepo repository.DriverStatsRepository
}

// NewService はServiceを生成する。
func NewService(statsRepo repository.DriverStatsRepository) *Service {
	return &Service{statsRepo: statsRepo}
}

// DriverReport は指定期間の運転統計を集計してレポートを生成する。
// OverallScoreは期間内の日次スコアの平均、ScoreChangeは期間の最初と
// 最後の日次スコアの差。挙動構成比はイベント数から百分率で導出する。
func (s *Service) DriverReport(ctx context.Context, userID string, days int) (*model.DriverReport, error) {
	if days <= 0 {
		days = defaultReportDays
	}
	if days > maxReportDays {
		days = maxReportDays
	}

	to := time.Now()
	from := to.AddDate(0, 0, -days)

	daily, err := s.statsRepo.ListDailyStats(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	speed, err := s.statsRepo.ListSpeedSamples(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	events, err := s.statsRepo.CountEventsByKind(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	report := &model.DriverReport{
		Daily:    daily,
		Speed:    speed,
		Behavior: behaviorBreakdown(events),
	}

	if len(daily) > 0 {
		sum := 0
		for _, d := range daily {
			sum += d.Score
		}
		report.OverallScore = sum / len(daily)
		report.ScoreChange = daily[len(daily)-1].Score - daily[0].Score
	}

	return report, nil
}

// behaviorBreakdown はイベント数から挙動構成比（百分率）を導出する。
// 合計が100になるよう端数は最大構成要素に寄せる。
func behaviorBreakdown(events map[model.DrivingEventKind]int) model.BehaviorBreakdown {
	smooth := events[model.EventSmooth]
	moderate := events[model.EventModerateBraking]
	harsh := events[model.EventHarsh]
	total := smooth + moderate + harsh
	if total == 0 {
		return model.BehaviorBreakdown{}
	}

	b := model.BehaviorBreakdown{
		SmoothPct:          smooth * 100 / total,
		ModerateBrakingPct: moderate * 100 / total,
		HarshPct:           harsh * 100 / total,
	}

	remainder := 100 - b.SmoothPct - b.ModerateBrakingPct - b.HarshPct
	switch {
	case smooth >= moderate && smooth >= harsh:
		b.SmoothPct += remainder
	case moderate >= harsh:
		b.ModerateBrakingPct += remainder
	default:
		b.HarshPct += remainder
	}

	return b
}
