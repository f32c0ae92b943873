package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrAlreadyExists, ErrInvalidInput, ErrUnauthorized,
		ErrServiceUnavail, ErrInvalidToken,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinels %d and %d should be distinct", i, j)
		}
	}
}

func TestAppError_ErrorString(t *testing.T) {
	inner := fmt.Errorf("dial tcp: connection refused")
	appErr := &AppError{Code: "INTERNAL_ERROR", Message: "something broke", Err: inner}
	assert.Equal(t, "INTERNAL_ERROR: something broke: dial tcp: connection refused", appErr.Error())

	bare := &AppError{Code: "NOT_FOUND", Message: "user not found"}
	assert.Equal(t, "NOT_FOUND: user not found", bare.Error())
	assert.Nil(t, bare.Unwrap())
}

func TestAlreadyExists_IsClientError(t *testing.T) {
	err := AlreadyExists("User already exists")
	require.NotNil(t, err)
	assert.Equal(t, "ALREADY_EXISTS", err.Code)
	assert.Equal(t, "User already exists", err.Message)
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.True(t, errors.Is(err, ErrAlreadyExists))
}

func TestServiceUnavailable_WrapsCause(t *testing.T) {
	cause := errors.New("i/o timeout")
	err := ServiceUnavailable("refresh token store", cause)

	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.Equal(t, "refresh token store is unavailable", err.Message)
	assert.True(t, errors.Is(err, ErrServiceUnavail))
	assert.True(t, errors.Is(err, cause))
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		code     string
		status   int
		sentinel error
	}{
		{"not found", NotFound("user", "u-1"), "NOT_FOUND", http.StatusNotFound, ErrNotFound},
		{"invalid input", InvalidInput("email is required"), "INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput},
		{"unauthorized", Unauthorized("bad token"), "UNAUTHORIZED", http.StatusUnauthorized, ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.True(t, errors.Is(tt.err, tt.sentinel))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error", Unauthorized("x"), http.StatusUnauthorized},
		{"wrapped app error", fmt.Errorf("signup: %w", InvalidInput("x")), http.StatusBadRequest},
		{"not found sentinel", fmt.Errorf("get: %w", ErrNotFound), http.StatusNotFound},
		{"already exists sentinel", ErrAlreadyExists, http.StatusBadRequest},
		{"invalid token sentinel", fmt.Errorf("verify: %w", ErrInvalidToken), http.StatusUnauthorized},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
