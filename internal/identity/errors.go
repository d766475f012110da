// Package identity は外部IdP（ホスト型認証サービス）へのアダプタを提供する。
// セッションライフサイクルイベントの購読、資格情報によるサインイン、
// アカウント作成、連携サインイン、サインアウトの各操作を抽象化する。
package identity

import (
	"errors"
	"fmt"
)

// ErrorKind はIdPエラーの閉じた分類を表す。
// プロバイダーのエラーコードはこの境界で1回だけ分類され、
// 下流では文字列照合を行わない。
type ErrorKind int

const (
	// KindUnknown は分類不能なIdPエラー。
	KindUnknown ErrorKind = iota
	// KindInvalidCredentials はメールアドレス/パスワード不一致。
	KindInvalidCredentials
	// KindTooManyAttempts は試行回数超過によるレート制限。
	KindTooManyAttempts
	// KindEmailInUse はサインアップ時のメールアドレス重複。
	KindEmailInUse
	// KindWeakPassword はパスワード強度不足。
	KindWeakPassword
	// KindInvalidEmail はメールアドレス形式不正。
	KindInvalidEmail
	// KindOperationNotAllowed は当該サインイン方式の無効化。
	KindOperationNotAllowed
	// KindPopupBlocked は連携サインインの同意画面がブロックされた状態。
	KindPopupBlocked
	// KindPopupCancelled は連携サインインのユーザーによる中断。
	KindPopupCancelled
)

// AuthError はIdP由来の認証エラーを表すタグ付きエラー型。
// Codeにはプロバイダーの生エラーコードを保持する（ログ用途のみ）。
type AuthError struct {
	Kind ErrorKind
	Code string
	err  error
}

// Error はerrorインターフェースを実装する。
func (e *AuthError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity provider error (%s)", e.Code)
	}
	return "identity provider error"
}

// Unwrap は元のエラーを返す。
func (e *AuthError) Unwrap() error {
	return e.err
}

// NewAuthError はAuthErrorを生成する。
func NewAuthError(kind ErrorKind, code string, err error) *AuthError {
	return &AuthError{Kind: kind, Code: code, err: err}
}

// KindOf はエラーからErrorKindを取り出す。
// AuthErrorでない場合はKindUnknownを返す。
func KindOf(err error) ErrorKind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// classifyProviderCode はIdPのエラーコードをErrorKindに分類する。
func classifyProviderCode(code string) ErrorKind {
	switch code {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "USER_DISABLED":
		return KindInvalidCredentials
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return KindTooManyAttempts
	case "EMAIL_EXISTS":
		return KindEmailInUse
	case "WEAK_PASSWORD":
		return KindWeakPassword
	case "INVALID_EMAIL", "MISSING_EMAIL":
		return KindInvalidEmail
	case "OPERATION_NOT_ALLOWED":
		return KindOperationNotAllowed
	default:
		return KindUnknown
	}
}

// classifyOAuthCode はOAuth認可フローのエラーコードをErrorKindに分類する。
// 連携サインインの同意フロー由来のエラーに使用する。
func classifyOAuthCode(code string) ErrorKind {
	switch code {
	case "access_denied":
		return KindPopupCancelled
	case "interaction_required", "consent_required":
		return KindPopupBlocked
	case "unauthorized_client", "unsupported_response_type":
		return KindOperationNotAllowed
	default:
		return KindUnknown
	}
}
