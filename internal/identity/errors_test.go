package identity

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyProviderCode(t *testing.T) {
	tests := []struct {
		code string
		want ErrorKind
	}{
		{"EMAIL_NOT_FOUND", KindInvalidCredentials},
		{"INVALID_PASSWORD", KindInvalidCredentials},
		{"INVALID_LOGIN_CREDENTIALS", KindInvalidCredentials},
		{"USER_DISABLED", KindInvalidCredentials},
		{"TOO_MANY_ATTEMPTS_TRY_LATER", KindTooManyAttempts},
		{"EMAIL_EXISTS", KindEmailInUse},
		{"WEAK_PASSWORD", KindWeakPassword},
		{"INVALID_EMAIL", KindInvalidEmail},
		{"MISSING_EMAIL", KindInvalidEmail},
		{"OPERATION_NOT_ALLOWED", KindOperationNotAllowed},
		{"SOMETHING_NEW", KindUnknown},
		{"", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := classifyProviderCode(tt.code); got != tt.want {
				t.Errorf("classifyProviderCode(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestClassifyOAuthCode(t *testing.T) {
	tests := []struct {
		code string
		want ErrorKind
	}{
		{"access_denied", KindPopupCancelled},
		{"interaction_required", KindPopupBlocked},
		{"consent_required", KindPopupBlocked},
		{"unauthorized_client", KindOperationNotAllowed},
		{"server_error", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := classifyOAuthCode(tt.code); got != tt.want {
				t.Errorf("classifyOAuthCode(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestKindOf_WrappedAuthError(t *testing.T) {
	base := NewAuthError(KindWeakPassword, "WEAK_PASSWORD", errors.New("too short"))
	wrapped := fmt.Errorf("signup failed: %w", base)

	if got := KindOf(wrapped); got != KindWeakPassword {
		t.Errorf("KindOf(wrapped) = %v, want KindWeakPassword", got)
	}
}

func TestKindOf_PlainError_ReturnsUnknown(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Errorf("KindOf(plain) = %v, want KindUnknown", got)
	}
}

func TestAuthError_MessageDoesNotLeakRawDetail(t *testing.T) {
	err := NewAuthError(KindInvalidCredentials, "INVALID_PASSWORD", errors.New("password mismatch for user x"))

	want := "identity provider error (INVALID_PASSWORD)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	// 元エラーはUnwrap経由でのみ辿れること
	if !errors.Is(err, err.Unwrap()) {
		t.Error("expected Unwrap to expose wrapped error")
	}
}
