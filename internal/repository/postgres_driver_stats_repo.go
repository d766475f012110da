package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/roadwatch/internal/model"
)

// PostgresDriverStatsRepo はPostgreSQLを使用した運転統計リポジトリ。
type PostgresDriverStatsRepo struct {
	db *sql.DB
}

// NewPostgresDriverStatsRepo はPostgresDriverStatsRepoを生成する。
func NewPostgresDriverStatsRepo(db *sql.DB) *PostgresDriverStatsRepo {
	return &PostgresDriverStatsRepo{db: db}
}

// ListDailyStats は指定期間の日次スコアを日付昇順で返す。
func (r *PostgresDriverStatsRepo) ListDailyStats(ctx context.Context, userID string, from, to time.Time) ([]model.DriverDailyStat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, day, score, trips
		 FROM driver_daily_stats
		 WHERE user_id = $1 AND day >= $2 AND day <= $3
		 ORDER BY day ASC`,
		userID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("日次スコアの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var stats []model.DriverDailyStat
	for rows.Next() {
		var s model.DriverDailyStat
		if err := rows.Scan(&s.UserID, &s.Day, &s.Score, &s.Trips); err != nil {
			return nil, fmt.Errorf("日次スコアの読み取りに失敗しました: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("日次スコアの走査に失敗しました: %w", err)
	}
	return stats, nil
}

// ListSpeedSamples は指定期間の速度サンプルを計測時刻昇順で返す。
func (r *PostgresDriverStatsRepo) ListSpeedSamples(ctx context.Context, userID string, from, to time.Time) ([]model.SpeedSample, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, sampled_at, speed_kph, limit_kph
		 FROM speed_samples
		 WHERE user_id = $1 AND sampled_at >= $2 AND sampled_at <= $3
		 ORDER BY sampled_at ASC`,
		userID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("速度サンプルの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var samples []model.SpeedSample
	for rows.Next() {
		var s model.SpeedSample
		if err := rows.Scan(&s.UserID, &s.SampledAt, &s.SpeedKph, &s.LimitKph); err != nil {
			return nil, fmt.Errorf("速度サンプルの読み取りに失敗しました: %w", err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("速度サンプルの走査に失敗しました: %w", err)
	}
	return samples, nil
}

// CountEventsByKind は指定期間の運転挙動イベント数を種別ごとに返す。
func (r *PostgresDriverStatsRepo) CountEventsByKind(ctx context.Context, userID string, from, to time.Time) (map[model.DrivingEventKind]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT kind, COUNT(*)
		 FROM driving_events
		 WHERE user_id = $1 AND occurred_at >= $2 AND occurred_at <= $3
		 GROUP BY kind`,
		userID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("運転挙動イベントの集計に失敗しました: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.DrivingEventKind]int)
	for rows.Next() {
		var kind model.DrivingEventKind
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("運転挙動イベントの読み取りに失敗しました: %w", err)
		}
		counts[kind] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("運転挙動イベントの走査に失敗しました: %w", err)
	}
	return counts, nil
}

// DeleteByUserID はユーザーの全運転統計を削除する。
// 日次スコア、速度サンプル、挙動イベントを同一トランザクションで削除する。
func (r *PostgresDriverStatsRepo) DeleteByUserID(ctx context.Context, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"driver_daily_stats", "speed_samples", "driving_events"} {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE user_id = $1`, userID,
		); err != nil {
			return fmt.Errorf("運転統計の削除に失敗しました (%s): %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// compile-time interface check
var _ DriverStatsRepository = (*PostgresDriverStatsRepo)(nil)

// sql.DBがTxBeginnerを満たすことの確認
var _ TxBeginner = (*sql.DB)(nil)
