package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "data/rankradar.db", cfg.Database.DSN)
	assert.Equal(t, []int{7, 14, 30}, cfg.Scoring.Windows)
	assert.Equal(t, 14, cfg.Scoring.PrimaryWindow)
	assert.Equal(t, 14, cfg.Watch.PrimaryWindow)
	assert.Equal(t, 8, cfg.Scoring.Workers)
	assert.Equal(t, "0 0 * * * *", cfg.Schedule.BatchCron)
	assert.Equal(t, 60*time.Second, cfg.Redis.ResponseTTL)
	assert.Equal(t, 21, cfg.Strategy.Phase.ValidatedAfterDays)
	assert.Equal(t, 0.25, cfg.Watch.FailRankDrop)
	assert.Equal(t, 1.0, cfg.Strategy.Velocity.MinSpanDays)
}

func TestLoad_YAMLOverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
database:
  driver: postgres
  dsn: postgres://localhost/rankradar
scoring:
  windows: [7, 30]
  primary_window: 30
  breaker_timeout: 45s
strategy:
  phase:
    early_threshold: 4.5
  velocity:
    min_span_days: 0.5
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 30, cfg.Watch.PrimaryWindow)
	assert.Equal(t, 45*time.Second, cfg.Scoring.BreakerTimeout)
	assert.Equal(t, 4.5, cfg.Strategy.Phase.EarlyThreshold)
	assert.Equal(t, 0.5, cfg.Strategy.Velocity.MinSpanDays)
	// untouched siblings keep their defaults
	assert.Equal(t, 6.0, cfg.Strategy.Phase.ValidatedThreshold)
	assert.Equal(t, 30.0, cfg.Strategy.RedFlags.ExtremePumpPoints)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SQLITE_PATH", "/tmp/rr.db")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("BATCH_CRON", "0 */30 * * * *")
	t.Setenv("SCORING_WORKERS", "3")
	t.Setenv("LOG_FORMAT", "pretty")
	t.Setenv("RUN_ON_START", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/rr.db", cfg.Database.DSN)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "0 */30 * * * *", cfg.Schedule.BatchCron)
	assert.Equal(t, 3, cfg.Scoring.Workers)
	assert.Equal(t, "pretty", cfg.Log.Format)
	assert.True(t, cfg.Schedule.RunOnStart)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("SCORING_WORKERS", "many")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeFile(t, "scoring: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := &Config{}
		c.applyDefaults()
		return c
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres"; c.Database.DSN = "" }},
		{"zero window", func(c *Config) { c.Scoring.Windows = []int{7, 0} }},
		{"primary not configured", func(c *Config) { c.Scoring.PrimaryWindow = 21 }},
		{"no workers", func(c *Config) { c.Scoring.Workers = -1 }},
		{"negative velocity span", func(c *Config) { c.Strategy.Velocity.MinSpanDays = -1 }},
		{"five-field cron", func(c *Config) { c.Schedule.BatchCron = "0 * * * *" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.modify(c)
			assert.Error(t, c.Validate())
		})
	}
}
