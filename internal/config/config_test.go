package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.ServerHost)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "", cfg.FrontendDistDir)
	assert.Equal(t, "", cfg.AdminUsername)
	assert.Equal(t, "", cfg.AdminPassword)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "", cfg.LogDir)
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_HOST", "192.168.1.5")
	t.Setenv("ANOVA_SERVER_PORT", "9090")
	t.Setenv("ADMIN_USERNAME", "root")
	t.Setenv("ADMIN_PASSWORD", "hunter2")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.5", cfg.ServerHost)
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "root", cfg.AdminUsername)
	assert.Equal(t, "hunter2", cfg.AdminPassword)
	assert.Equal(t, "debug", cfg.LogLevel)

	os.Unsetenv("SERVER_HOST")
	os.Unsetenv("ANOVA_SERVER_PORT")
	os.Unsetenv("ADMIN_USERNAME")
	os.Unsetenv("ADMIN_PASSWORD")
	os.Unsetenv("LOG_LEVEL")
}
