package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresAlertStateRepo はPostgreSQLを使用したアラート既読状態リポジトリ。
type PostgresAlertStateRepo struct {
	db *sql.DB
}

// NewPostgresAlertStateRepo はPostgresAlertStateRepoを生成する。
func NewPostgresAlertStateRepo(db *sql.DB) *PostgresAlertStateRepo {
	return &PostgresAlertStateRepo{db: db}
}

// MarkRead は既読状態を冪等にUPSERTする。
// UNIQUE(user_id, alert_id)制約を利用したINSERT ON CONFLICTで実装する。
func (r *PostgresAlertStateRepo) MarkRead(ctx context.Context, userID, alertID string, isRead bool) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO alert_states (user_id, alert_id, is_read, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, alert_id) DO UPDATE SET
		     is_read = EXCLUDED.is_read,
		     updated_at = EXCLUDED.updated_at`,
		userID, alertID, isRead, now,
	)
	if err != nil {
		return fmt.Errorf("既読状態の更新に失敗しました: %w", err)
	}
	return nil
}

// MarkAllRead はユーザーの全アラートを既読にする。
func (r *PostgresAlertStateRepo) MarkAllRead(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO alert_states (user_id, alert_id, is_read, updated_at)
		 SELECT $1, a.id, TRUE, $2 FROM alerts a
		 ON CONFLICT (user_id, alert_id) DO UPDATE SET
		     is_read = TRUE,
		     updated_at = EXCLUDED.updated_at`,
		userID, now,
	)
	if err != nil {
		return fmt.Errorf("全件既読化に失敗しました: %w", err)
	}
	return nil
}

// DeleteByUserID はユーザーIDに関連する全ての既読状態を削除する。
func (r *PostgresAlertStateRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM alert_states WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの既読状態の削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ AlertStateRepository = (*PostgresAlertStateRepo)(nil)
