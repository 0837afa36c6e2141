package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/clinic")
	t.Setenv("JWT_SECRET", "jwt-secret")
	t.Setenv("GATEWAY_TMN_CODE", "DEMO0001")
	t.Setenv("GATEWAY_HASH_SECRET", "hash-secret")
}

func TestParse_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "production", cfg.AppEnv)
	assert.Equal(t, "2.1.0", cfg.Gateway.Version)
	assert.Equal(t, "VND", cfg.Gateway.Currency)
	assert.Equal(t, int64(100), cfg.Gateway.AmountScale)
	assert.Equal(t, 5*time.Second, cfg.Gateway.Timeout)
	assert.False(t, cfg.Gateway.TestMode)

	ac := cfg.Gateway.Adapter()
	assert.Equal(t, "DEMO0001", ac.TmnCode)
	assert.Equal(t, 15*time.Minute, ac.ExpireAfter)

	_, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, ac.Location).Zone()
	assert.Equal(t, 7*60*60, offset)
}

func TestParse_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/clinic")
	t.Setenv("JWT_SECRET", "jwt-secret")

	_, err := Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GATEWAY_HASH_SECRET")
}

func TestParse_TestMode(t *testing.T) {
	tests := []struct {
		name    string
		appEnv  string
		wantErr error
	}{
		{name: "refused in production", appEnv: "production", wantErr: ErrTestModeInProduction},
		{name: "allowed in development", appEnv: "development"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv("APP_ENV", tc.appEnv)
			t.Setenv("GATEWAY_TEST_MODE", "true")

			cfg, err := Parse()
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, cfg.Gateway.Adapter().TestMode)
		})
	}
}

func TestParse_RejectsBadGatewaySettings(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "zero amount scale", key: "GATEWAY_AMOUNT_SCALE", value: "0"},
		{name: "offset out of range", key: "GATEWAY_UTC_OFFSET_HOURS", value: "15"},
		{name: "unparseable timeout", key: "GATEWAY_TIMEOUT", value: "soon"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tc.key, tc.value)

			_, err := Parse()
			require.Error(t, err)
		})
	}
}
