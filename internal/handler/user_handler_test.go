package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/roadwatch/internal/middleware"
	"github.com/hitoshi/roadwatch/internal/model"
	"github.com/hitoshi/roadwatch/internal/user"
)

// --- モック定義 ---

type mockUserService struct {
	updateFn   func(ctx context.Context, userID string, input user.UpdateInput) (*model.ProfileRecord, error)
	withdrawFn func(ctx context.Context, userID string) error
}

func (m *mockUserService) UpdateProfile(ctx context.Context, userID string, input user.UpdateInput) (*model.ProfileRecord, error) {
	if m.updateFn == nil {
		return &model.ProfileRecord{UserID: userID}, nil
	}
	return m.updateFn(ctx, userID, input)
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	if m.withdrawFn == nil {
		return nil
	}
	return m.withdrawFn(ctx, userID)
}

// --- テスト ---

func TestUpdateProfile_ReturnsUpdatedProfile(t *testing.T) {
	service := &mockUserService{
		updateFn: func(_ context.Context, userID string, input user.UpdateInput) (*model.ProfileRecord, error) {
			if input.FullName != "佐藤花子" {
				t.Errorf("full_name = %q, want 佐藤花子", input.FullName)
			}
			return &model.ProfileRecord{
				UserID:      userID,
				Email:       "driver@example.com",
				FullName:    input.FullName,
				AccountType: model.AccountTypeIndividual,
			}, nil
		},
	}
	handler := NewUserHandler(service)

	req := authedRequest(http.MethodPatch, "/api/users/me", `{"full_name":"佐藤花子"}`)
	rec := httptest.NewRecorder()

	handler.UpdateProfile(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var res userResponse
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if res.FullName != "佐藤花子" {
		t.Errorf("full_name = %q, want 佐藤花子", res.FullName)
	}
}

func TestUpdateProfile_InvalidAccountType_Returns400(t *testing.T) {
	service := &mockUserService{
		updateFn: func(_ context.Context, _ string, input user.UpdateInput) (*model.ProfileRecord, error) {
			return nil, model.NewInvalidAccountTypeError(input.AccountType)
		},
	}
	handler := NewUserHandler(service)

	req := authedRequest(http.MethodPatch, "/api/users/me", `{"account_type":"superuser"}`)
	rec := httptest.NewRecorder()

	handler.UpdateProfile(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUpdateProfile_WithoutUserContext_Returns401(t *testing.T) {
	handler := NewUserHandler(&mockUserService{})

	req := httptest.NewRequest(http.MethodPatch, "/api/users/me", nil)
	rec := httptest.NewRecorder()

	handler.UpdateProfile(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestWithdraw_Returns204AndClearsCookie(t *testing.T) {
	var gotUserID string
	service := &mockUserService{
		withdrawFn: func(_ context.Context, userID string) error {
			gotUserID = userID
			return nil
		},
	}
	handler := NewUserHandler(service)

	req := authedRequest(http.MethodDelete, "/api/users/me", "")
	rec := httptest.NewRecorder()

	handler.Withdraw(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if gotUserID != "user-abc" {
		t.Errorf("userID = %q, want user-abc", gotUserID)
	}

	cookie := findCookie(t, rec.Result(), middleware.SessionCookieName)
	if cookie == nil || cookie.MaxAge != -1 {
		t.Error("expected session cookie to be expired after withdrawal")
	}
}

func TestWithdraw_UserNotFound_Returns404(t *testing.T) {
	service := &mockUserService{
		withdrawFn: func(_ context.Context, _ string) error {
			return model.NewUserNotFoundError()
		},
	}
	handler := NewUserHandler(service)

	req := authedRequest(http.MethodDelete, "/api/users/me", "")
	rec := httptest.NewRecorder()

	handler.Withdraw(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
