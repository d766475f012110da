// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/roadwatch/internal/model"
)

// ProfileRepository はプロファイルレコードの永続化インターフェース。
// IdPのユーザーIDをキーとする。
type ProfileRepository interface {
	// GetProfile は指定ユーザーIDのプロファイルレコードを取得する。
	// 見つからない場合はnilを返す。
	GetProfile(ctx context.Context, userID string) (*model.ProfileRecord, error)

	// SetProfile はプロファイルレコードを冪等にUPSERTする。
	SetProfile(ctx context.Context, userID string, record *model.ProfileRecord) error

	// DeleteByUserID は指定ユーザーのプロファイルレコードを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// SessionRepository はサーバーセッションの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// RiskZoneRepository はリスクゾーンデータの永続化インターフェース。
type RiskZoneRepository interface {
	// FindByID は指定IDのリスクゾーンを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.RiskZone, error)

	// List はリスクゾーン一覧を返す。severityが空でない場合は深刻度で絞り込む。
	// last_reported_at降順で返す。
	List(ctx context.Context, severity model.ZoneSeverity, limit int) ([]*model.RiskZone, error)

	// ListHighSeverity は深刻度highのゾーン一覧を返す。経路リスク算出に使用する。
	ListHighSeverity(ctx context.Context) ([]*model.RiskZone, error)

	// Create はリスクゾーンを作成する。
	Create(ctx context.Context, zone *model.RiskZone) error

	// AddReport は報告数を加算し、深刻度と最終報告日時を更新する。
	// 更新後のゾーンを返す。ゾーンが存在しない場合はnilを返す。
	AddReport(ctx context.Context, id string, severity model.ZoneSeverity, reportedAt time.Time) (*model.RiskZone, error)

	// DeleteStale は最終報告日時が指定日時より古いゾーンを削除し、削除件数を返す。
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// AlertRepository はアラートデータの永続化インターフェース。
type AlertRepository interface {
	// FindByID は指定IDのアラートを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Alert, error)

	// Create はアラートを作成する。
	Create(ctx context.Context, alert *model.Alert) error

	// UpsertBySourceGUID は外部アドバイザリ由来のアラートをsource_guidで
	// 同一性判定してUPSERTする。新規作成された場合はtrueを返す。
	UpsertBySourceGUID(ctx context.Context, alert *model.Alert) (bool, error)

	// ListWithState はアラート一覧をユーザーの既読状態とJOINして取得する。
	// published_at降順。filterに応じて未読のみ・criticalのみに絞り込む。
	ListWithState(ctx context.Context, userID string, filter model.AlertFilter, limit int) ([]model.AlertWithState, error)

	// DeleteOlderThan は指定日時より古いアラートを削除し、削除件数を返す。
	// 関連するalert_statesはCASCADE削除される。
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AlertStateRepository はユーザーごとのアラート既読状態の永続化インターフェース。
type AlertStateRepository interface {
	// MarkRead は既読状態を冪等にUPSERTする。
	MarkRead(ctx context.Context, userID, alertID string, isRead bool) error

	// MarkAllRead はユーザーの全アラートを既読にする。
	MarkAllRead(ctx context.Context, userID string) error

	// DeleteByUserID はユーザーIDに関連する全ての既読状態を削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// DriverStatsRepository は運転統計データの永続化インターフェース。
type DriverStatsRepository interface {
	// ListDailyStats は指定期間の日次スコアを日付昇順で返す。
	ListDailyStats(ctx context.Context, userID string, from, to time.Time) ([]model.DriverDailyStat, error)

	// ListSpeedSamples は指定期間の速度サンプルを計測時刻昇順で返す。
	ListSpeedSamples(ctx context.Context, userID string, from, to time.Time) ([]model.SpeedSample, error)

	// CountEventsByKind は指定期間の運転挙動イベント数を種別ごとに返す。
	CountEventsByKind(ctx context.Context, userID string, from, to time.Time) (map[model.DrivingEventKind]int, error)

	// DeleteByUserID はユーザーの全運転統計を削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
