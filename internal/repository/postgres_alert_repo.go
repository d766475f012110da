package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/roadwatch/internal/model"
)

// PostgresAlertRepo はPostgreSQLを使用したアラートリポジトリ。
type PostgresAlertRepo struct {
	db *sql.DB
}

// NewPostgresAlertRepo はPostgresAlertRepoを生成する。
func NewPostgresAlertRepo(db *sql.DB) *PostgresAlertRepo {
	return &PostgresAlertRepo{db: db}
}

const alertColumns = `id, alert_type, title, message, location, severity, is_verified, source_guid, published_at, created_at`

// FindByID は指定IDのアラートを取得する。見つからない場合はnilを返す。
func (r *PostgresAlertRepo) FindByID(ctx context.Context, id string) (*model.Alert, error) {
	alert := &model.Alert{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE id = $1`,
		id,
	).Scan(
		&alert.ID, &alert.Type, &alert.Title, &alert.Message, &alert.Location,
		&alert.Severity, &alert.IsVerified, &alert.SourceGUID,
		&alert.PublishedAt, &alert.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アラートの取得に失敗しました: %w", err)
	}

	return alert, nil
}

// Create はアラートを作成する。
func (r *PostgresAlertRepo) Create(ctx context.Context, alert *model.Alert) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO alerts (id, alert_type, title, message, location, severity, is_verified, source_guid, published_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		alert.ID, alert.Type, alert.Title, alert.Message, alert.Location,
		alert.Severity, alert.IsVerified, alert.SourceGUID,
		alert.PublishedAt, alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("アラートの作成に失敗しました: %w", err)
	}
	return nil
}

// UpsertBySourceGUID は外部アドバイザリ由来のアラートをsource_guidで
// 同一性判定してUPSERTする。新規作成された場合はtrueを返す。
// source_guidの部分一意インデックス（空文字を除く）を利用した
// INSERT ON CONFLICTで実装する。ユーザー報告（source_guid空）には使用しない。
func (r *PostgresAlertRepo) UpsertBySourceGUID(ctx context.Context, alert *model.Alert) (bool, error) {
	if alert.SourceGUID == "" {
		return false, fmt.Errorf("source_guid is required for upsert")
	}
	var inserted bool
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO alerts (id, alert_type, title, message, location, severity, is_verified, source_guid, published_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (source_guid) WHERE source_guid <> '' DO UPDATE SET
		     alert_type = EXCLUDED.alert_type,
		     title = EXCLUDED.title,
		     message = EXCLUDED.message,
		     location = EXCLUDED.location,
		     severity = EXCLUDED.severity,
		     published_at = EXCLUDED.published_at
		 RETURNING (xmax = 0)`,
		alert.ID, alert.Type, alert.Title, alert.Message, alert.Location,
		alert.Severity, alert.IsVerified, alert.SourceGUID,
		alert.PublishedAt, alert.CreatedAt,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("アラートのUPSERTに失敗しました: %w", err)
	}
	return inserted, nil
}

// ListWithState はアラート一覧をユーザーの既読状態とJOINして取得する。
// published_at降順。filterに応じて未読のみ・criticalのみに絞り込む。
func (r *PostgresAlertRepo) ListWithState(ctx context.Context, userID string, filter model.AlertFilter, limit int) ([]model.AlertWithState, error) {
	query := `
		SELECT a.id, a.alert_type, a.title, a.message, a.location, a.severity,
		       a.is_verified, a.source_guid, a.published_at, a.created_at,
		       COALESCE(s.is_read, FALSE) AS is_read
		FROM alerts a
		LEFT JOIN alert_states s ON s.alert_id = a.id AND s.user_id = $1`

	switch filter {
	case model.AlertFilterUnread:
		query += ` WHERE COALESCE(s.is_read, FALSE) = FALSE`
	case model.AlertFilterCritical:
		query += ` WHERE a.severity = 'critical'`
	}

	query += ` ORDER BY a.published_at DESC LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("アラート一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var alerts []model.AlertWithState
	for rows.Next() {
		var a model.AlertWithState
		err := rows.Scan(
			&a.ID, &a.Type, &a.Title, &a.Message, &a.Location, &a.Severity,
			&a.IsVerified, &a.SourceGUID, &a.PublishedAt, &a.CreatedAt,
			&a.IsRead,
		)
		if err != nil {
			return nil, fmt.Errorf("アラートの読み取りに失敗しました: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アラート一覧の走査に失敗しました: %w", err)
	}
	return alerts, nil
}

// DeleteOlderThan は指定日時より古いアラートを削除し、削除件数を返す。
func (r *PostgresAlertRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM alerts WHERE published_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("古いアラートの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// compile-time interface check
var _ AlertRepository = (*PostgresAlertRepo)(nil)
