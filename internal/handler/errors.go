package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/roadwatch/internal/identity"
	"github.com/hitoshi/roadwatch/internal/model"
)

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
// IdP由来のエラーはErrorKindの分類に基づいてAPIErrorへ変換される。
func handleServiceError(w http.ResponseWriter, err error) {
	var authErr *identity.AuthError
	if errors.As(err, &authErr) {
		apiErr := identityErrorToAPIError(err)
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// identityErrorToAPIError はIdPエラーの分類をUI向けのAPIErrorへ変換する。
// 生のIdPエラーメッセージは外部に露出させない。
func identityErrorToAPIError(err error) *model.APIError {
	switch identity.KindOf(err) {
	case identity.KindInvalidCredentials:
		return model.NewInvalidCredentialsError()
	case identity.KindTooManyAttempts:
		return model.NewTooManyAttemptsError()
	case identity.KindEmailInUse:
		return model.NewEmailInUseError()
	case identity.KindWeakPassword:
		return model.NewWeakPasswordError()
	case identity.KindInvalidEmail:
		return model.NewInvalidEmailError()
	case identity.KindOperationNotAllowed, identity.KindPopupBlocked:
		return model.NewSignInNotAllowedError()
	case identity.KindPopupCancelled:
		return model.NewSignInCancelledError()
	default:
		return model.NewAuthFailedError()
	}
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeTooManyAttempts:
		return http.StatusTooManyRequests
	case model.ErrCodeEmailInUse:
		return http.StatusConflict
	case model.ErrCodeWeakPassword, model.ErrCodeInvalidEmail,
		model.ErrCodeInvalidAccountType, model.ErrCodeInvalidSeverity,
		model.ErrCodeInvalidZoneType, model.ErrCodeInvalidAlertType,
		model.ErrCodeInvalidFilter, model.ErrCodeMissingRouteEnds,
		model.ErrCodeEmptyReportFields, model.ErrCodeSignInCancelled:
		return http.StatusBadRequest
	case model.ErrCodeSignInNotAllowed:
		return http.StatusForbidden
	case model.ErrCodeAuthFailed:
		return http.StatusBadGateway
	case model.ErrCodeUserNotFound, model.ErrCodeZoneNotFound, model.ErrCodeAlertNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeUnauthorized は未認証エラーの統一レスポンスを書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	})
}

// writeInvalidRequestBody はリクエストボディ解析失敗の統一レスポンスを書き込む。
func writeInvalidRequestBody(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}
