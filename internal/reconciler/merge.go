package reconciler

import (
	"github.com/hitoshi/roadwatch/internal/identity"
	"github.com/hitoshi/roadwatch/internal/model"
)

const (
	// fallbackName はIdPが表示名を提供しない場合の既定表示名。
	fallbackName = "User"
	// fallbackFederatedName はGoogle連携で表示名が欠落している場合の既定表示名。
	fallbackFederatedName = "Google User"
)

// Reconcile はユーザー射影のマージ規則を純粋関数として実装する。
//
// 優先順位:
//  1. recordが存在する場合、射影全体をレコード由来の値で置き換える。
//     レコードに欠落しているフィールドはセッション由来の値にフォールバックする。
//  2. recordが無く、既存射影が同一IDを持つ場合、既存の（より豊かな）射影を維持し、
//     IdPが表示名を提供したときのみ表示名を差し替える。サインアップ直後の
//     セッションエコーが設定済み表示名を上書きしないための規則。
//  3. それ以外は、セッションのみから楽観的射影を構築する。
//     表示名はfallbackName、アカウント種別はindividualを既定とする。
func Reconcile(prev *model.User, in *identity.Session, record *model.ProfileRecord) *model.User {
	if record != nil {
		merged := &model.User{
			ID:          in.ID,
			Email:       record.Email,
			FullName:    record.FullName,
			AccountType: record.AccountType,
			Avatar:      record.Avatar,
		}
		if merged.Email == "" {
			merged.Email = in.Email
		}
		if merged.FullName == "" {
			merged.FullName = in.DisplayName
		}
		if merged.FullName == "" {
			merged.FullName = fallbackName
		}
		if merged.AccountType == "" {
			merged.AccountType = model.AccountTypeIndividual
		}
		if merged.Avatar == "" {
			merged.Avatar = in.PhotoURL
		}
		return merged
	}

	if prev != nil && prev.ID == in.ID {
		merged := *prev
		if in.DisplayName != "" {
			merged.FullName = in.DisplayName
		}
		return &merged
	}

	basic := &model.User{
		ID:          in.ID,
		Email:       in.Email,
		FullName:    in.DisplayName,
		AccountType: model.AccountTypeIndividual,
	}
	if basic.FullName == "" {
		basic.FullName = fallbackName
	}
	return basic
}
