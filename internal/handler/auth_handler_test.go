package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/roadwatch/internal/identity"
	"github.com/hitoshi/roadwatch/internal/middleware"
	"github.com/hitoshi/roadwatch/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	loginFn          func(ctx context.Context, email, password string) (*model.Session, *model.User, error)
	signupFn         func(ctx context.Context, email, password, fullName string, accountType model.AccountType) (*model.Session, *model.User, error)
	googleLoginURLFn func(state string) string
	callbackErrorFn  func(code string) error
	googleCallbackFn func(ctx context.Context, code string) (*model.Session, *model.User, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	currentUserFn    func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.Session, *model.User, error) {
	return m.loginFn(ctx, email, password)
}

func (m *mockAuthService) Signup(ctx context.Context, email, password, fullName string, accountType model.AccountType) (*model.Session, *model.User, error) {
	return m.signupFn(ctx, email, password, fullName, accountType)
}

func (m *mockAuthService) GetGoogleLoginURL(state string) string {
	if m.googleLoginURLFn != nil {
		return m.googleLoginURLFn(state)
	}
	return "https://accounts.google.com/o/oauth2/v2/auth?state=" + state
}

func (m *mockAuthService) GoogleCallbackError(code string) error {
	return m.callbackErrorFn(code)
}

func (m *mockAuthService) HandleGoogleCallback(ctx context.Context, code string) (*model.Session, *model.User, error) {
	return m.googleCallbackFn(ctx, code)
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	return m.logoutFn(ctx, sessionID)
}

func (m *mockAuthService) CurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	return m.currentUserFn(ctx, sessionID)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuthHandler(service *mockAuthService) *AuthHandler {
	return NewAuthHandler(service, AuthHandlerConfig{
		BaseURL:       "https://app.example.com",
		CookieSecure:  true,
		SessionMaxAge: 24 * time.Hour,
	}, testLogger())
}

func testSession() *model.Session {
	return &model.Session{
		ID:        "sess-123",
		UserID:    "user-abc",
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
}

func testUser() *model.User {
	return &model.User{
		ID:          "user-abc",
		Email:       "driver@example.com",
		FullName:    "山田太郎",
		AccountType: model.AccountTypeIndividual,
	}
}

func findCookie(t *testing.T, res *http.Response, name string) *http.Cookie {
	t.Helper()
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// --- テスト ---

func TestLogin_Success_SetsSessionCookie(t *testing.T) {
	service := &mockAuthService{
		loginFn: func(_ context.Context, email, password string) (*model.Session, *model.User, error) {
			if email != "driver@example.com" || password != "password123" {
				t.Errorf("unexpected credentials: %s / %s", email, password)
			}
			return testSession(), testUser(), nil
		},
	}
	handler := testAuthHandler(service)

	body := `{"email":"driver@example.com","password":"password123"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	cookie := findCookie(t, rec.Result(), middleware.SessionCookieName)
	if cookie == nil {
		t.Fatal("expected session cookie to be set")
	}
	if cookie.Value != "sess-123" {
		t.Errorf("cookie value = %q, want sess-123", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
	if !cookie.Secure {
		t.Error("session cookie should be Secure")
	}

	var user userResponse
	if err := json.NewDecoder(rec.Body).Decode(&user); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if user.Email != "driver@example.com" {
		t.Errorf("email = %q, want driver@example.com", user.Email)
	}
}

func TestLogin_InvalidCredentials_Returns401WithAPIError(t *testing.T) {
	service := &mockAuthService{
		loginFn: func(_ context.Context, _, _ string) (*model.Session, *model.User, error) {
			return nil, nil, &identity.AuthError{Kind: identity.KindInvalidCredentials, Code: "INVALID_LOGIN_CREDENTIALS"}
		},
	}
	handler := testAuthHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@b.c","password":"x"}`))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	var errBody apiErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&errBody); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errBody.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("code = %q, want INVALID_CREDENTIALS", errBody.Code)
	}
	if errBody.Action == "" {
		t.Error("expected a user-facing action in the error response")
	}
}

func TestLogin_TooManyAttempts_Returns429(t *testing.T) {
	service := &mockAuthService{
		loginFn: func(_ context.Context, _, _ string) (*model.Session, *model.User, error) {
			return nil, nil, &identity.AuthError{Kind: identity.KindTooManyAttempts, Code: "TOO_MANY_ATTEMPTS_TRY_LATER"}
		},
	}
	handler := testAuthHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@b.c","password":"x"}`))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
}

func TestLogin_InvalidBody_Returns400(t *testing.T) {
	handler := testAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("not json"))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSignup_Success_Returns201(t *testing.T) {
	service := &mockAuthService{
		signupFn: func(_ context.Context, email, password, fullName string, accountType model.AccountType) (*model.Session, *model.User, error) {
			if accountType != model.AccountTypeFleet {
				t.Errorf("accountType = %q, want fleet", accountType)
			}
			return testSession(), &model.User{
				ID: "user-abc", Email: email, FullName: fullName, AccountType: accountType,
			}, nil
		},
	}
	handler := testAuthHandler(service)

	body := `{"email":"driver@example.com","password":"password123","full_name":"山田太郎","account_type":"fleet"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Signup(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if c := findCookie(t, rec.Result(), middleware.SessionCookieName); c == nil {
		t.Error("expected session cookie after signup")
	}
}

func TestSignup_EmptyAccountType_DefaultsToIndividual(t *testing.T) {
	var got model.AccountType
	service := &mockAuthService{
		signupFn: func(_ context.Context, _, _, _ string, accountType model.AccountType) (*model.Session, *model.User, error) {
			got = accountType
			return testSession(), testUser(), nil
		},
	}
	handler := testAuthHandler(service)

	body := `{"email":"driver@example.com","password":"password123","full_name":"山田太郎"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Signup(rec, req)

	if got != model.AccountTypeIndividual {
		t.Errorf("accountType = %q, want individual", got)
	}
}

func TestSignup_InvalidAccountType_Returns400(t *testing.T) {
	handler := testAuthHandler(&mockAuthService{})

	body := `{"email":"a@b.c","password":"password123","full_name":"x","account_type":"superuser"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Signup(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var errBody apiErrorResponse
	json.NewDecoder(rec.Body).Decode(&errBody)
	if errBody.Code != model.ErrCodeInvalidAccountType {
		t.Errorf("code = %q, want INVALID_ACCOUNT_TYPE", errBody.Code)
	}
}

func TestSignup_EmailInUse_Returns409(t *testing.T) {
	service := &mockAuthService{
		signupFn: func(_ context.Context, _, _, _ string, _ model.AccountType) (*model.Session, *model.User, error) {
			return nil, nil, &identity.AuthError{Kind: identity.KindEmailInUse, Code: "EMAIL_EXISTS"}
		},
	}
	handler := testAuthHandler(service)

	body := `{"email":"taken@example.com","password":"password123","full_name":"x"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Signup(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestGoogleLogin_RedirectsWithStateCookie(t *testing.T) {
	handler := testAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/auth/google/login", nil)
	rec := httptest.NewRecorder()

	handler.GoogleLogin(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}

	cookie := findCookie(t, rec.Result(), oauthStateCookieName)
	if cookie == nil {
		t.Fatal("expected oauth state cookie to be set")
	}
	location := rec.Header().Get("Location")
	if !strings.Contains(location, "state="+cookie.Value) {
		t.Errorf("redirect %q should carry state %q", location, cookie.Value)
	}
}

func TestGoogleCallback_Success_SetsSessionAndRedirects(t *testing.T) {
	service := &mockAuthService{
		googleCallbackFn: func(_ context.Context, code string) (*model.Session, *model.User, error) {
			if code != "auth-code-1" {
				t.Errorf("code = %q, want auth-code-1", code)
			}
			return testSession(), testUser(), nil
		},
	}
	handler := testAuthHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=auth-code-1&state=state-xyz", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookieName, Value: "state-xyz"})
	rec := httptest.NewRecorder()

	handler.GoogleCallback(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "https://app.example.com" {
		t.Errorf("Location = %q, want app base URL", got)
	}
	if c := findCookie(t, rec.Result(), middleware.SessionCookieName); c == nil || c.Value != "sess-123" {
		t.Error("expected session cookie after callback")
	}
}

func TestGoogleCallback_StateMismatch_RedirectsWithError(t *testing.T) {
	handler := testAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=auth-code-1&state=attacker", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookieName, Value: "state-xyz"})
	rec := httptest.NewRecorder()

	handler.GoogleCallback(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	location := rec.Header().Get("Location")
	if !strings.Contains(location, "/login?error="+model.ErrCodeAuthFailed) {
		t.Errorf("Location = %q, want login redirect with AUTH_FAILED", location)
	}
}

func TestGoogleCallback_UserCancelled_RedirectsWithCancelledCode(t *testing.T) {
	service := &mockAuthService{
		callbackErrorFn: func(code string) error {
			return &identity.AuthError{Kind: identity.KindPopupCancelled, Code: code}
		},
	}
	handler := testAuthHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?error=access_denied", nil)
	rec := httptest.NewRecorder()

	handler.GoogleCallback(rec, req)

	location := rec.Header().Get("Location")
	if !strings.Contains(location, "error="+model.ErrCodeSignInCancelled) {
		t.Errorf("Location = %q, want SIGNIN_CANCELLED error code", location)
	}
}

func TestLogout_ClearsSessionCookie(t *testing.T) {
	var loggedOut string
	service := &mockAuthService{
		logoutFn: func(_ context.Context, sessionID string) error {
			loggedOut = sessionID
			return nil
		},
	}
	handler := testAuthHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "sess-123"})
	rec := httptest.NewRecorder()

	handler.Logout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if loggedOut != "sess-123" {
		t.Errorf("logged out session = %q, want sess-123", loggedOut)
	}

	cookie := findCookie(t, rec.Result(), middleware.SessionCookieName)
	if cookie == nil || cookie.MaxAge != -1 {
		t.Error("expected session cookie to be expired")
	}
}

func TestLogout_WithoutCookie_StillSucceeds(t *testing.T) {
	handler := testAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()

	handler.Logout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}

func TestMe_ReturnsCurrentUser(t *testing.T) {
	service := &mockAuthService{
		currentUserFn: func(_ context.Context, sessionID string) (*model.User, error) {
			if sessionID != "sess-123" {
				t.Errorf("sessionID = %q, want sess-123", sessionID)
			}
			return testUser(), nil
		},
	}
	handler := testAuthHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "sess-123"})
	rec := httptest.NewRecorder()

	handler.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var user userResponse
	if err := json.NewDecoder(rec.Body).Decode(&user); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if user.ID != "user-abc" {
		t.Errorf("id = %q, want user-abc", user.ID)
	}
}

func TestMe_WithoutCookie_Returns401(t *testing.T) {
	handler := testAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rec := httptest.NewRecorder()

	handler.Me(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
