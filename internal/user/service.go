// Package user はユーザー設定と退会処理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/roadwatch/internal/model"
	"github.com/hitoshi/roadwatch/internal/repository"
)

// AlertStateDeleter はアラート既読状態の一括削除インターフェース。
type AlertStateDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// DriverStatsDeleter は運転統計の一括削除インターフェース。
type DriverStatsDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// Sanitizer はユーザー入力テキストの無害化インターフェース。
type Sanitizer interface {
	SanitizeText(s string) string
}

// Service はユーザー管理のサービス層。
// プロファイル設定の更新と退会処理のビジネスロジックを提供する。
type Service struct {
	profileRepo  repository.ProfileRepository
	sessionRepo  repository.SessionRepository
	stateDeleter AlertStateDeleter
	statsDeleter DriverStatsDeleter
	sanitizer    Sanitizer
	logger       *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	profileRepo repository.ProfileRepository,
	sessionRepo repository.SessionRepository,
	stateDeleter AlertStateDeleter,
	statsDeleter DriverStatsDeleter,
	sanitizer Sanitizer,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		profileRepo:  profileRepo,
		sessionRepo:  sessionRepo,
		stateDeleter: stateDeleter,
		statsDeleter: statsDeleter,
		sanitizer:    sanitizer,
		logger:       logger,
	}
}

// UpdateInput はプロファイル更新の入力。空のフィールドは変更しない。
type UpdateInput struct {
	FullName    string
	AccountType string
	Avatar      string
}

// UpdateProfile はプロファイルレコードを部分更新する。
// 更新後のレコードを返す。
func (s *Service) UpdateProfile(ctx context.Context, userID string, input UpdateInput) (*model.ProfileRecord, error) {
	record, err := s.profileRepo.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロファイルの取得に失敗しました: %w", err)
	}
	if record == nil {
		return nil, model.NewUserNotFoundError()
	}

	if name := strings.TrimSpace(input.FullName); name != "" {
		if s.sanitizer != nil {
			name = s.sanitizer.SanitizeText(name)
		}
		record.FullName = name
	}
	if input.AccountType != "" {
		accountType := model.AccountType(input.AccountType)
		if !model.ValidAccountType(accountType) {
			return nil, model.NewInvalidAccountTypeError(input.AccountType)
		}
		record.AccountType = accountType
	}
	if input.Avatar != "" {
		record.Avatar = input.Avatar
	}
	record.UpdatedAt = time.Now()

	if err := s.profileRepo.SetProfile(ctx, userID, record); err != nil {
		return nil, fmt.Errorf("プロファイルの更新に失敗しました: %w", err)
	}

	s.logger.Info("プロファイルを更新しました", slog.String("user_id", userID))
	return record, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: alert_states → 運転統計 → sessions → プロファイル。
// リスクゾーンとアラート本体は共有データとして残す。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	record, err := s.profileRepo.GetProfile(ctx, userID)
	if err != nil {
		return fmt.Errorf("プロファイルの取得に失敗しました: %w", err)
	}
	if record == nil {
		return model.NewUserNotFoundError()
	}

	s.logger.Info("退会処理を開始します", slog.String("user_id", userID))

	// 1. アラート既読状態を削除
	if s.stateDeleter != nil {
		if err := s.stateDeleter.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("既読状態の削除に失敗しました: %w", err)
		}
	}

	// 2. 運転統計を削除
	if s.statsDeleter != nil {
		if err := s.statsDeleter.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("運転統計の削除に失敗しました: %w", err)
		}
	}

	// 3. セッションを削除
	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	// 4. プロファイルレコードを削除
	if err := s.profileRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("プロファイルの削除に失敗しました: %w", err)
	}

	s.logger.Info("退会処理が完了しました", slog.String("user_id", userID))
	return nil
}
