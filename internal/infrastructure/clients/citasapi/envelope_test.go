package citasapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantSuccess bool
		wantData    string
		wantError   string
		wantCount   int
	}{
		{"empty body", ``, true, ``, ``, 0},
		{"full envelope", `{"success":true,"data":{"id":1},"count":1}`, true, `{"id":1}`, ``, 1},
		{"bare array", `[1,2]`, true, `[1,2]`, ``, 0},
		{"bare object", `{"id":3}`, true, `{"id":3}`, ``, 0},
		{"citas wrapper", `{"success":true,"citas":[{"id":4}]}`, true, `[{"id":4}]`, ``, 0},
		{"user wrapper kept whole", `{"user":{"id":5}}`, true, `{"user":{"id":5}}`, ``, 0},
		{"failure with error", `{"success":false,"error":"nope"}`, false, `{"success":false,"error":"nope"}`, `nope`, 0},
		{"failure with message", `{"success":false,"message":"bad date"}`, false, `{"success":false,"message":"bad date"}`, `bad date`, 0},
		{"error object", `{"error":{"message":"expired"}}`, true, `{"error":{"message":"expired"}}`, `expired`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Normalize([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, env.Success)
			assert.Equal(t, tt.wantData, string(env.Data))
			assert.Equal(t, tt.wantError, env.ErrorMessage())
			assert.Equal(t, tt.wantCount, env.Count)
		})
	}
}

func TestNormalize_InvalidJSON(t *testing.T) {
	_, err := Normalize([]byte(`<html>`))
	assert.Error(t, err)

	_, err = Normalize([]byte(`{"success":`))
	assert.Error(t, err)
}

func TestEnvelope_MessageIgnoredOnSuccess(t *testing.T) {
	env, err := Normalize([]byte(`{"success":true,"message":"Cita creada","data":{}}`))
	require.NoError(t, err)
	assert.Empty(t, env.ErrorMessage())
}
