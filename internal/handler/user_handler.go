package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/roadwatch/internal/middleware"
	"github.com/hitoshi/roadwatch/internal/model"
	"github.com/hitoshi/roadwatch/internal/user"
)

// UserService はユーザープロファイルサービスのインターフェース。
type UserService interface {
	UpdateProfile(ctx context.Context, userID string, input user.UpdateInput) (*model.ProfileRecord, error)
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler はユーザープロファイル関連のHTTPハンドラ。
type UserHandler struct {
	service UserService
}

// NewUserHandler は新しいUserHandlerを生成する。
func NewUserHandler(service UserService) *UserHandler {
	return &UserHandler{service: service}
}

type updateProfileRequest struct {
	FullName    string `json:"full_name"`
	AccountType string `json:"account_type"`
	Avatar      string `json:"avatar"`
}

// UpdateProfile はプロファイルを部分更新する。空のフィールドは変更しない。
// PATCH /api/users/me
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	record, err := h.service.UpdateProfile(r.Context(), userID, user.UpdateInput{
		FullName:    req.FullName,
		AccountType: req.AccountType,
		Avatar:      req.Avatar,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{
		ID:          record.UserID,
		Email:       record.Email,
		FullName:    record.FullName,
		AccountType: string(record.AccountType),
		Avatar:      record.Avatar,
	})
}

// Withdraw は退会処理を実行し、セッションクッキーを破棄する。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
