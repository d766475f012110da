// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, traffic, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeTooManyAttempts     = "TOO_MANY_ATTEMPTS"
	ErrCodeEmailInUse          = "EMAIL_IN_USE"
	ErrCodeWeakPassword        = "WEAK_PASSWORD"
	ErrCodeInvalidEmail        = "INVALID_EMAIL"
	ErrCodeSignInNotAllowed    = "SIGNIN_NOT_ALLOWED"
	ErrCodeSignInCancelled     = "SIGNIN_CANCELLED"
	ErrCodeAuthFailed          = "AUTH_FAILED"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeInvalidAccountType  = "INVALID_ACCOUNT_TYPE"
	ErrCodeZoneNotFound        = "ZONE_NOT_FOUND"
	ErrCodeAlertNotFound       = "ALERT_NOT_FOUND"
	ErrCodeInvalidSeverity     = "INVALID_SEVERITY"
	ErrCodeInvalidZoneType     = "INVALID_ZONE_TYPE"
	ErrCodeInvalidAlertType    = "INVALID_ALERT_TYPE"
	ErrCodeInvalidFilter       = "INVALID_FILTER"
	ErrCodeMissingRouteEnds    = "MISSING_ROUTE_ENDPOINTS"
	ErrCodeEmptyReportFields   = "EMPTY_REPORT_FIELDS"
)

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewTooManyAttemptsError は試行回数超過エラーを生成する。
func NewTooManyAttemptsError() *APIError {
	return &APIError{
		Code:     ErrCodeTooManyAttempts,
		Message:  "ログイン試行回数が上限に達しました。",
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewEmailInUseError はメールアドレス重複エラーを生成する。
func NewEmailInUseError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailInUse,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewWeakPasswordError はパスワード強度不足エラーを生成する。
func NewWeakPasswordError() *APIError {
	return &APIError{
		Code:     ErrCodeWeakPassword,
		Message:  "パスワードが短すぎます。",
		Category: "validation",
		Action:   "6文字以上のパスワードを設定してください。",
	}
}

// NewInvalidEmailError はメールアドレス形式エラーを生成する。
func NewInvalidEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  "メールアドレスの形式が正しくありません。",
		Category: "validation",
		Action:   "正しいメールアドレスを入力してください。",
	}
}

// NewSignInNotAllowedError はサインイン方式無効エラーを生成する。
func NewSignInNotAllowedError() *APIError {
	return &APIError{
		Code:     ErrCodeSignInNotAllowed,
		Message:  "このサインイン方式は現在利用できません。",
		Category: "auth",
		Action:   "メールアドレスとパスワードでのログインをお試しください。",
	}
}

// NewSignInCancelledError はサインイン中断エラーを生成する。
func NewSignInCancelledError() *APIError {
	return &APIError{
		Code:     ErrCodeSignInCancelled,
		Message:  "サインインがキャンセルされました。",
		Category: "auth",
		Action:   "再度サインインをお試しください。",
	}
}

// NewAuthFailedError は原因不明の認証失敗エラーを生成する。
func NewAuthFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  "認証に失敗しました。",
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidAccountTypeError はアカウント種別が無効な場合のエラーを生成する。
func NewInvalidAccountTypeError(t string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAccountType,
		Message:  fmt.Sprintf("無効なアカウント種別です: %s", t),
		Category: "validation",
		Action:   "individual、fleet、enterprise のいずれかを指定してください。",
	}
}

// NewZoneNotFoundError はリスクゾーン未検出エラーを生成する。
func NewZoneNotFoundError(zoneID string) *APIError {
	return &APIError{
		Code:     ErrCodeZoneNotFound,
		Message:  fmt.Sprintf("指定されたリスクゾーンが見つかりません: %s", zoneID),
		Category: "traffic",
		Action:   "ゾーンIDを確認してください。",
	}
}

// NewAlertNotFoundError はアラート未検出エラーを生成する。
func NewAlertNotFoundError(alertID string) *APIError {
	return &APIError{
		Code:     ErrCodeAlertNotFound,
		Message:  fmt.Sprintf("指定されたアラートが見つかりません: %s", alertID),
		Category: "traffic",
		Action:   "アラートIDを確認してください。",
	}
}

// NewInvalidSeverityError は深刻度が無効な場合のエラーを生成する。
func NewInvalidSeverityError(s string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSeverity,
		Message:  fmt.Sprintf("無効な深刻度です: %s", s),
		Category: "validation",
		Action:   "深刻度には low、medium、high のいずれかを指定してください。",
	}
}

// NewInvalidZoneTypeError はゾーン種別が無効な場合のエラーを生成する。
func NewInvalidZoneTypeError(t string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidZoneType,
		Message:  fmt.Sprintf("無効なゾーン種別です: %s", t),
		Category: "validation",
		Action:   "accident、road_condition、weather、construction のいずれかを指定してください。",
	}
}

// NewInvalidAlertTypeError はアラート種別が無効な場合のエラーを生成する。
func NewInvalidAlertTypeError(t string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAlertType,
		Message:  fmt.Sprintf("無効なアラート種別です: %s", t),
		Category: "validation",
		Action:   "traffic、enforcement、weather、safety のいずれかを指定してください。",
	}
}

// NewInvalidFilterError は無効なフィルタエラーを生成する。
func NewInvalidFilterError(filter string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFilter,
		Message:  fmt.Sprintf("無効なフィルタです: %s", filter),
		Category: "validation",
		Action:   "フィルタには all、unread、critical のいずれかを指定してください。",
	}
}

// NewMissingRouteEndpointsError は経路端点未指定エラーを生成する。
func NewMissingRouteEndpointsError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingRouteEnds,
		Message:  "出発地と目的地の両方を指定してください。",
		Category: "validation",
		Action:   "出発地と目的地を入力してから経路を計算してください。",
	}
}

// NewEmptyReportFieldsError は報告内容未入力エラーを生成する。
func NewEmptyReportFieldsError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyReportFields,
		Message:  "報告内容に未入力の項目があります。",
		Category: "validation",
		Action:   "場所と説明をすべて入力してください。",
	}
}
