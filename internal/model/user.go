// Package model はドメインモデルを定義する。
package model

import "time"

// AccountType はアカウント種別を表す。
type AccountType string

const (
	// AccountTypeIndividual は個人ドライバーアカウント。
	AccountTypeIndividual AccountType = "individual"
	// AccountTypeFleet はフリート（車両群）管理アカウント。
	AccountTypeFleet AccountType = "fleet"
	// AccountTypeEnterprise はエンタープライズアカウント。
	AccountTypeEnterprise AccountType = "enterprise"
)

// ValidAccountType は既知のアカウント種別かどうかを返す。
func ValidAccountType(t AccountType) bool {
	switch t {
	case AccountTypeIndividual, AccountTypeFleet, AccountTypeEnterprise:
		return true
	}
	return false
}

// User はアプリケーション全体が参照する唯一のユーザー射影を表す。
// IDは外部IdPが発行する不変の識別子。AccountTypeはプロファイルレコードが
// ロードされるまでAccountTypeIndividualをデフォルトとする。
type User struct {
	ID          string
	Email       string
	FullName    string
	AccountType AccountType
	Avatar      string
}

// ProfileRecord はプロファイルストアに永続化されるユーザー情報を表す。
// User.IDをキーとし、初回サインアップ時または連携ログイン時に作成される。
type ProfileRecord struct {
	UserID      string
	Email       string
	FullName    string
	AccountType AccountType
	Avatar      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Session はサーバー側のログインセッションを表す。
// RefreshTokenはIdPセッションの復元（プロセス再起動後のsession-restore）に使用する。
type Session struct {
	ID           string
	UserID       string
	RefreshToken string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}
