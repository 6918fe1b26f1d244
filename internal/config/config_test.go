package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", BackendMemory)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, AuthFirebase, cfg.AuthProvider)
	assert.Equal(t, 12, cfg.WeekWindow)
	assert.Equal(t, "UTC", cfg.Location().String())
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("STORE_BACKEND=memory\nPORT=9999\nWEEK_WINDOW=20\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("PORT")
		os.Unsetenv("WEEK_WINDOW")
		os.Unsetenv("STORE_BACKEND")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, 20, cfg.WeekWindow)
}

func TestValidate(t *testing.T) {
	base := Config{StoreBackend: BackendMemory, AuthProvider: AuthFirebase, WeekWindow: 4, Timezone: "UTC"}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"firestore without project", func(c *Config) { c.StoreBackend = BackendFirestore }},
		{"postgres without url", func(c *Config) { c.StoreBackend = BackendPostgres }},
		{"unknown backend", func(c *Config) { c.StoreBackend = "mongo" }},
		{"clerk without key", func(c *Config) { c.AuthProvider = AuthClerk }},
		{"zero window", func(c *Config) { c.WeekWindow = 0 }},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Base" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
