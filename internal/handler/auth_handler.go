package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/roadwatch/internal/middleware"
	"github.com/hitoshi/roadwatch/internal/model"
)

const (
	oauthStateCookieName = "oauth_state"
	oauthStateTTL        = 10 * time.Minute
)

// AuthService は認証サービスのインターフェース。
type AuthService interface {
	Login(ctx context.Context, email, password string) (*model.Session, *model.User, error)
	Signup(ctx context.Context, email, password, fullName string, accountType model.AccountType) (*model.Session, *model.User, error)
	GetGoogleLoginURL(state string) string
	GoogleCallbackError(code string) error
	HandleGoogleCallback(ctx context.Context, code string) (*model.Session, *model.User, error)
	Logout(ctx context.Context, sessionID string) error
	CurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラのクッキー・リダイレクト設定。
type AuthHandlerConfig struct {
	BaseURL       string // コールバック後のリダイレクト先（フロントエンドのオリジン）
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge time.Duration
}

// AuthHandler は認証関連のHTTPハンドラ。
type AuthHandler struct {
	service AuthService
	config  AuthHandlerConfig
	logger  *slog.Logger
}

// NewAuthHandler は新しいAuthHandlerを生成する。
func NewAuthHandler(service AuthService, config AuthHandlerConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
		logger:  logger,
	}
}

type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	AccountType string `json:"account_type"`
	Avatar      string `json:"avatar,omitempty"`
}

func toUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:          user.ID,
		Email:       user.Email,
		FullName:    user.FullName,
		AccountType: string(user.AccountType),
		Avatar:      user.Avatar,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login はメールアドレスとパスワードでのログインを処理する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	session, user, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, session.ID)
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

type signupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"full_name"`
	AccountType string `json:"account_type"`
}

// Signup は新規アカウント登録を処理する。
// POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	accountType := model.AccountType(req.AccountType)
	if req.AccountType == "" {
		accountType = model.AccountTypeIndividual
	}
	if !model.ValidAccountType(accountType) {
		handleServiceError(w, model.NewInvalidAccountTypeError(req.AccountType))
		return
	}

	session, user, err := h.service.Signup(r.Context(), req.Email, req.Password, req.FullName, accountType)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, session.ID)
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// GoogleLogin はGoogle OAuth認可エンドポイントへリダイレクトする。
// CSRF対策としてstateを生成し、検証用クッキーに保存する。
// GET /auth/google/login
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		handleServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    state,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   int(oauthStateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.GetGoogleLoginURL(state), http.StatusFound)
}

// GoogleCallback はGoogle OAuthコールバックを処理する。
// 認可コードをセッションに交換し、フロントエンドへリダイレクトする。
// 失敗時はエラーコードをクエリパラメータに載せてログイン画面へ戻す。
// GET /auth/google/callback
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if errCode := r.URL.Query().Get("error"); errCode != "" {
		err := h.service.GoogleCallbackError(errCode)
		h.redirectWithError(w, r, err)
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		h.logger.Warn("OAuth stateの検証に失敗しました")
		h.redirectWithError(w, r, model.NewAuthFailedError())
		return
	}
	h.clearStateCookie(w)

	session, _, err := h.service.HandleGoogleCallback(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.redirectWithError(w, r, err)
		return
	}

	h.setSessionCookie(w, session.ID)
	http.Redirect(w, r, h.config.BaseURL, http.StatusFound)
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if err := h.service.Logout(r.Context(), cookie.Value); err != nil {
			h.logger.Warn("ログアウト処理に失敗しました", slog.String("error", err.Error()))
		}
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログインユーザーを返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		writeUnauthorized(w)
		return
	}

	user, err := h.service.CurrentUser(r.Context(), cookie.Value)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   int(h.config.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// redirectWithError は認証エラーをログイン画面のクエリパラメータとして返す。
// 生のエラーメッセージではなくAPIErrorのコードのみを露出する。
func (h *AuthHandler) redirectWithError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := identityErrorToAPIError(err)
	redirect := h.config.BaseURL + "/login?error=" + url.QueryEscape(apiErr.Code)
	http.Redirect(w, r, redirect, http.StatusFound)
}

func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
