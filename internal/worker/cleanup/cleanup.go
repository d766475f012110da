// Package cleanup は期限切れデータの自動削除ジョブを提供する。
// 期限切れセッションと、保持期間（デフォルト90日）を超過したアラートを
// 定期バッチで削除する。alert_statesはCASCADE削除で自動的に処理される。
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// SessionPurger は期限切れセッション削除のインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// AlertPurger は古いアラート削除のインターフェース。
// repository.AlertRepositoryの部分集合として定義する。
type AlertPurger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ZonePurger は報告の途絶えたリスクゾーン削除のインターフェース。
// repository.RiskZoneRepositoryの部分集合として定義する。
type ZonePurger interface {
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupJob は期限切れセッション・古いアラート・報告の途絶えたリスクゾーンの
// 自動削除ジョブ。定期実行のバッチジョブとして設計されており、
// 冪等な削除処理を保証する。
type CleanupJob struct {
	sessions           SessionPurger
	alerts             AlertPurger
	zones              ZonePurger
	logger             *slog.Logger
	AlertRetentionDays int // アラートの保持日数（デフォルト: 90）
	ZoneRetentionDays  int // 最終報告からのゾーン保持日数（デフォルト: 30）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数はアラート90日、リスクゾーン30日。
func NewCleanupJob(sessions SessionPurger, alerts AlertPurger, zones ZonePurger, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessions:           sessions,
		alerts:             alerts,
		zones:              zones,
		logger:             logger,
		AlertRetentionDays: 90,
		ZoneRetentionDays:  30,
	}
}

// Run は期限切れセッションと保持期間を超過したアラートを削除する。
// 片方が失敗してももう片方の削除は試行する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	var errs []error

	sessionCount, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		errs = append(errs, fmt.Errorf("期限切れセッションの削除に失敗: %w", err))
	}

	cutoff := time.Now().AddDate(0, 0, -j.AlertRetentionDays)
	alertCount, err := j.alerts.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("古いアラートの削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.AlertRetentionDays),
		)
		errs = append(errs, fmt.Errorf("古いアラートの削除に失敗: %w", err))
	}

	zoneCutoff := time.Now().AddDate(0, 0, -j.ZoneRetentionDays)
	zoneCount, err := j.zones.DeleteStale(ctx, zoneCutoff)
	if err != nil {
		j.logger.Error("古いリスクゾーンの削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.ZoneRetentionDays),
		)
		errs = append(errs, fmt.Errorf("古いリスクゾーンの削除に失敗: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_sessions", sessionCount),
		slog.Int64("deleted_alerts", alertCount),
		slog.Int64("deleted_zones", zoneCount),
		slog.Int("retention_days", j.AlertRetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は指定間隔のティッカーでクリーンアップジョブを定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("クリーンアップジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
