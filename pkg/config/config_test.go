package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port     int           `env:"TEST_CFG_PORT" envDefault:"8080"`
	LogLevel string        `env:"TEST_CFG_LOG_LEVEL" envDefault:"info"`
	Secure   bool          `env:"TEST_CFG_SECURE" envDefault:"false"`
	TTL      time.Duration `env:"TEST_CFG_TTL" envDefault:"15m"`
	Brokers  []string      `env:"TEST_CFG_BROKERS" envDefault:"a:1,b:2" envSeparator:","`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	err := Load(&cfg)

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Secure)
	assert.Equal(t, 15*time.Minute, cfg.TTL)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Brokers)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9090")
	t.Setenv("TEST_CFG_LOG_LEVEL", "debug")
	t.Setenv("TEST_CFG_SECURE", "true")
	t.Setenv("TEST_CFG_TTL", "168h")

	var cfg testConfig
	err := Load(&cfg)

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Secure)
	assert.Equal(t, 7*24*time.Hour, cfg.TTL)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("TEST_CFG_TTL", "seven days")

	var cfg testConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

type secretConfig struct {
	Secret string `env:"TEST_CFG_SECRET,notEmpty"`
}

func TestLoadFromMap_NotEmptyMissing(t *testing.T) {
	var cfg secretConfig
	err := LoadFromMap(&cfg, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEST_CFG_SECRET")
}

func TestLoadFromMap_IgnoresProcessEnv(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9999")

	var cfg testConfig
	err := LoadFromMap(&cfg, map[string]string{"TEST_CFG_LOG_LEVEL": "warn"})

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
}
