package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppErrorImplementsError(t *testing.T) {
	var _ error = (*AppError)(nil)
}

func TestAppErrorErrorFormat(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeNotFoundAccount,
		Message: "account not found",
	}

	expected := "not_found_account: account not found"
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	underlying := errors.New("database connection failed")
	appErr := &AppError{
		Code:    ErrCodeInternalDB,
		Message: "failed to load account",
		Err:     underlying,
	}

	if appErr.Unwrap() != underlying {
		t.Errorf("Unwrap() returned unexpected error: got %v, want %v", appErr.Unwrap(), underlying)
	}
}

func TestAppErrorErrorsAs(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeAuthSessionExpired,
		Message: "session has expired",
	}
	wrappedErr := fmt.Errorf("handler failed: %w", appErr)

	var got *AppError
	if !errors.As(wrappedErr, &got) {
		t.Fatal("errors.As failed to extract AppError from chain")
	}
	if got.Code != ErrCodeAuthSessionExpired {
		t.Errorf("extracted wrong code: %s", got.Code)
	}
}

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code   ErrorCode
		status int
	}{
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeValidationInvalidJSON, http.StatusBadRequest},
		{ErrCodeAuthSessionMissing, http.StatusUnauthorized},
		{ErrCodeAuthInvalidCreds, http.StatusUnauthorized},
		{ErrCodeWebhookCredentialsMissing, http.StatusBadRequest},
		{ErrCodeWebhookSignatureInvalid, http.StatusBadRequest},
		{ErrCodeNotFoundAccount, http.StatusNotFound},
		{ErrCodeNotFoundProject, http.StatusNotFound},
		{ErrCodeConflictEmail, http.StatusConflict},
		{ErrCodeConfigBillingDisabled, http.StatusServiceUnavailable},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrCodeUpstreamStripe, http.StatusBadGateway},
		{ErrCodeUpstreamCompute, http.StatusBadGateway},
		{ErrCodeUpstreamRateLimited, http.StatusBadGateway},
		{ErrorCode("something_unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.status {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.status)
			}
		})
	}
}
