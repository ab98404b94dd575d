package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/eternity-backoffice-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("PORT", "")

	cfg := config.Load()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.True(t, cfg.AutoMigrate)
	assert.False(t, cfg.DevAuth)
	assert.Equal(t, 8*time.Hour, cfg.JWTAccessTTL)
	assert.Equal(t, 5*time.Second, cfg.MaxBackoff)
	assert.Equal(t, 2*time.Second, cfg.QueueTimeout)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("INITIAL_BACKOFF", "1s")
	t.Setenv("MAX_CONCURRENCY", "not-a-number")
	t.Setenv("DEV_AUTH", "true")
	t.Setenv("REQUEST_QUEUE_TIMEOUT", "250ms")

	cfg := config.Load()

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, time.Second, cfg.InitialBackoff)
	assert.Equal(t, 50, cfg.MaxConcurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.QueueTimeout)
	assert.True(t, cfg.DevAuth)
}

func TestLoadDotEnv_DoesNotOverrideExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nDOTENV_NEW=\"from-file\"\nexport DOTENV_EXISTING=from-file\nbroken-line\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("DOTENV_EXISTING", "from-env")
	os.Unsetenv("DOTENV_NEW")
	t.Cleanup(func() { os.Unsetenv("DOTENV_NEW") })

	require.NoError(t, config.LoadDotEnv(path))

	assert.Equal(t, "from-file", os.Getenv("DOTENV_NEW"))
	assert.Equal(t, "from-env", os.Getenv("DOTENV_EXISTING"))
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	err := config.LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
