package config_test

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dom/linklearn/internal/config"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := config.LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET": "secret",
	}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, config.TimerPolicyReject, cfg.TimerPolicyWS)
	assert.Equal(t, config.TimerPolicyPreempt, cfg.TimerPolicyHTTP)
	assert.Equal(t, int64(300), cfg.SecondsPerCredit)
	assert.Equal(t, int64(10), cfg.BankCutPercent)
	assert.Equal(t, int64(1500), cfg.SignupCreditCents)
	assert.Equal(t, 60*time.Second, cfg.PresenceWindow)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiration())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFrom_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing jwt secret", map[string]string{}},
		{"unknown ws policy", map[string]string{"JWT_SECRET": "s", "TIMER_POLICY_WS": "steal"}},
		{"unknown http policy", map[string]string{"JWT_SECRET": "s", "TIMER_POLICY_HTTP": "queue"}},
		{"zero seconds per credit", map[string]string{"JWT_SECRET": "s", "CREDIT_SECONDS_PER_CREDIT": "0"}},
		{"bank cut above 100", map[string]string{"JWT_SECRET": "s", "BANK_CUT_PERCENT": "101"}},
		{"negative signup credits", map[string]string{"JWT_SECRET": "s", "SIGNUP_CREDITS_CENTS": "-1"}},
		{"zero presence window", map[string]string{"JWT_SECRET": "s", "PRESENCE_WINDOW": "0s"}},
		{"zero reconcile interval", map[string]string{"JWT_SECRET": "s", "RECONCILE_INTERVAL": "0s"}},
		{"negative sweep interval", map[string]string{"JWT_SECRET": "s", "PRESENCE_SWEEP_INTERVAL": "-1s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadFrom(context.Background(), envconfig.MapLookuper(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := config.LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":           "secret",
		"ENVIRONMENT":          "production",
		"TIMER_POLICY_WS":      "preempt",
		"CORS_ALLOWED_ORIGINS": "https://a.example,https://b.example",
		"PRESENCE_WINDOW":      "2m",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, config.TimerPolicyPreempt, cfg.TimerPolicyWS)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 2*time.Minute, cfg.PresenceWindow)
}
