package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/spectrum/internal/domain/achievement"
)

func parse(t *testing.T, vars map[string]string) *Config {
	t.Helper()
	cfg := &Config{}
	require.NoError(t, env.ParseWithOptions(cfg, env.Options{Environment: vars}))
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := parse(t, map[string]string{})
	require.NoError(t, cfg.Validate())

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.Empty(t, cfg.Database.URL)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.SweepInterval)
	assert.Equal(t, 3*time.Second, cfg.Scheduler.ActivityMinDelay)
	assert.Equal(t, 7*time.Second, cfg.Scheduler.ActivityMaxDelay)
	assert.True(t, cfg.Rating.EvaluateOnEvent)
	assert.Equal(t, achievement.DefaultThresholds(), cfg.Achievement.Thresholds())
}

func TestOverrides(t *testing.T) {
	cfg := parse(t, map[string]string{
		"APP_ENV":                          "staging",
		"DATABASE_URL":                     "postgres://localhost/spectrum",
		"REDIS_ENABLED":                    "true",
		"HTTP_WS_ALLOWED_ORIGINS":          "http://a.local,http://b.local",
		"ACHIEVEMENT_CODE_NINJA_SUBJECTS":  "Алгоритмы",
		"ACHIEVEMENT_CODE_NINJA_MIN_COUNT": "3",
		"RATING_LOCK_TIMEOUT":              "2s",
	})
	require.NoError(t, cfg.Validate())

	assert.Equal(t, EnvStaging, cfg.App.Environment)
	assert.Equal(t, []string{"http://a.local", "http://b.local"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, 2*time.Second, cfg.Rating.LockTimeout)

	th := cfg.Achievement.Thresholds()
	assert.Equal(t, []string{"Алгоритмы"}, th.CodeNinjaSubjects)
	assert.Equal(t, 3, th.CodeNinjaMinCount)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
		want string
	}{
		{"production without database", map[string]string{"APP_ENV": "production"}, "DATABASE_URL"},
		{"unknown environment", map[string]string{"APP_ENV": "qa"}, "APP_ENV"},
		{"event bus without redis", map[string]string{"REDIS_EVENT_BUS": "true"}, "REDIS_EVENT_BUS"},
		{"reversed activity delays", map[string]string{"SCHEDULER_ACTIVITY_MIN_DELAY": "10s"}, "SCHEDULER_ACTIVITY_MIN_DELAY"},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parse(t, tt.vars).Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
