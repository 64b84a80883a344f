package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, StoreBolt, cfg.Store.Driver)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
timezone: America/Chicago
store:
  driver: unknown
subscriptions:
  - id: uni
    url: https://example.edu/term.ics
    username: ada
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "America/Chicago", cfg.Timezone)
	assert.Equal(t, "*/15 * * * *", cfg.RefreshCron)
	assert.Equal(t, StoreBolt, cfg.Store.Driver)
	require.Len(t, cfg.Subscriptions, 1)
	assert.Equal(t, "ada", cfg.Subscriptions[0].Username)
	assert.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: 0.0.0.0:9000\ntimezone: UTC\n"), 0o600))

	t.Setenv("STUDYCAL_LISTEN", ":7070")
	t.Setenv("STUDYCAL_STORE_DRIVER", "mongo")
	t.Setenv("STUDYCAL_MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("STUDYCAL_GOOGLE_CLIENT_ID", "cid")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Listen)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, StoreMongo, cfg.Store.Driver)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Store.MongoURI)
	assert.Equal(t, "cid", cfg.Google.ClientID)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Driver = StoreMongo
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Subscriptions = []SubscriptionConfig{
		{ID: "a", URL: "https://x/a.ics", Username: "ada"},
		{ID: "a", URL: "https://x/b.ics", Username: "ada"},
	}
	assert.ErrorContains(t, cfg.Validate(), "duplicate")

	cfg.Subscriptions = []SubscriptionConfig{{ID: "a"}}
	assert.Error(t, cfg.Validate())
}

func TestLocationFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Mars/Olympus_Mons"
	assert.Equal(t, time.Local, cfg.Location())

	cfg.Timezone = "Europe/Berlin"
	assert.Equal(t, "Europe/Berlin", cfg.Location().String())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.BasicAuth = &BasicAuthConfig{Username: "admin", Password: "secret"}
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, got.BasicAuth)
	assert.Equal(t, "admin", got.BasicAuth.Username)

	_, err = Load("")
	assert.Error(t, err)
}
