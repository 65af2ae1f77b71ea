package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsType(t *testing.T) {
	wrapped := fmt.Errorf("cancel appointment: %w", NewConflictError("appointment is no longer pending"))

	assert.True(t, IsType(wrapped, ErrorTypeConflict))
	assert.False(t, IsType(wrapped, ErrorTypeRejected))
	assert.False(t, IsType(fmt.Errorf("plain"), ErrorTypeConflict))
	assert.Equal(t, ErrorTypeConflict, TypeOf(wrapped))
	assert.Equal(t, ErrorTypeInternal, TypeOf(fmt.Errorf("plain")))
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"rejection is verbatim", NewRejectedError(400, "Ya existe una cita en ese horario"), "Ya existe una cita en ese horario"},
		{"validation is verbatim", NewValidationError("date is required"), "date is required"},
		{"network", NewNetworkError("GET /medicos", fmt.Errorf("dial tcp")), "could not reach the server, please try again"},
		{"expired", NewUnauthorizedError("token expired"), "your session has expired, please log in again"},
		{"stale", NewConflictError("state changed"), "the appointment changed in the meantime, please refresh"},
		{"unknown", fmt.Errorf("boom"), "unexpected error, please try again"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

func TestAppError_ErrorIncludesCause(t *testing.T) {
	err := NewNetworkError("GET /auth/me", fmt.Errorf("connection refused"))
	assert.Equal(t, "NETWORK: GET /auth/me: connection refused", err.Error())
	assert.EqualError(t, err.Unwrap(), "connection refused")
}
