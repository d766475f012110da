package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/roadwatch/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロファイルリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// GetProfile は指定ユーザーIDのプロファイルレコードを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) GetProfile(ctx context.Context, userID string) (*model.ProfileRecord, error) {
	record := &model.ProfileRecord{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, email, full_name, account_type, avatar, created_at, updated_at
		 FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(
		&record.UserID, &record.Email, &record.FullName,
		&record.AccountType, &record.Avatar,
		&record.CreatedAt, &record.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プロファイルの取得に失敗しました: %w", err)
	}

	return record, nil
}

// SetProfile はプロファイルレコードを冪等にUPSERTする。
// 既存行がある場合、created_atは維持しupdated_atのみ更新する。
func (r *PostgresProfileRepo) SetProfile(ctx context.Context, userID string, record *model.ProfileRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, email, full_name, account_type, avatar, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id) DO UPDATE SET
		     email = EXCLUDED.email,
		     full_name = EXCLUDED.full_name,
		     account_type = EXCLUDED.account_type,
		     avatar = EXCLUDED.avatar,
		     updated_at = EXCLUDED.updated_at`,
		userID, record.Email, record.FullName, record.AccountType,
		record.Avatar, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("プロファイルの保存に失敗しました: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーのプロファイルレコードを削除する。
func (r *PostgresProfileRepo) DeleteByUserID(ctx context.Context, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM profiles WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("プロファイルの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("profile not found: %s", userID)
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
