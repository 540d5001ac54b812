package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "world.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
world:
  name: test
  max_y: 128
storage:
  backend: memory
generation:
  seed: 99
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.World.Name)
	assert.Equal(t, 128, cfg.World.MaxY)
	assert.Equal(t, 4, cfg.World.LoadWorkers, "незаданное поле берётся из Default")
	assert.Equal(t, int64(99), cfg.Generation.Seed)
	assert.Equal(t, "memory", cfg.Storage.Backend)
}

func TestLoad_EnvAndMissing(t *testing.T) {
	t.Setenv("WORLD_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := writeConfig(t, "storage:\n  backend: memory\n")
	t.Setenv("WORLD_CONFIG", path)
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Backend)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.World.MaxY = cfg.World.MinY
	cfg.Storage.Backend = "cassandra"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_y")
	assert.Contains(t, err.Error(), "cassandra")

	path := writeConfig(t, "server:\n  tick_interval_ms: -1\n")
	_, err = Load(path)
	assert.Error(t, err)
}

func TestMetricsPortFallback(t *testing.T) {
	s := ServerConfig{}
	t.Setenv("WORLD_METRICS_PORT", "9100")
	assert.Equal(t, 9100, s.GetMetricsPort())

	s.MetricsPort = 9200
	assert.Equal(t, 9200, s.GetMetricsPort())
}

func TestLoad_TieredAndEvents(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: tiered
  cache:
    hot_ttl_seconds: 30
    write_behind: true
events:
  backend: nats
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Storage.Cache.HotTTL())
	assert.True(t, cfg.Storage.Cache.WriteBehind)
	assert.Equal(t, 5*time.Second, cfg.Storage.Cache.WriteBehindInterval())
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Events.NATSURL)
	assert.Equal(t, time.Hour, cfg.Events.Retention())

	cfg.Events.Backend = "kafka"
	assert.ErrorContains(t, cfg.Validate(), "events: unknown backend")
}

func TestLoad_Admin(t *testing.T) {
	path := writeConfig(t, `
admin:
  enabled: true
  port: 9090
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Admin.GetPort())
	assert.Equal(t, 24*time.Hour, cfg.Admin.TokenTTL())

	cfg.Admin.Port = 0
	t.Setenv("WORLD_ADMIN_PORT", "7070")
	assert.Equal(t, 7070, cfg.Admin.GetPort())

	cfg.Admin.TokenTTLMin = 0
	assert.ErrorContains(t, cfg.Validate(), "admin: token_ttl_min")
}

func TestValidate_SQLBackends(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = "maria"
	assert.ErrorContains(t, cfg.Validate(), "maria needs a dsn")
	cfg.Storage.Maria.DSN = "world:secret@tcp(127.0.0.1:3306)/blockverse"
	assert.NoError(t, cfg.Validate())

	cfg.Storage.Backend = "mongo"
	cfg.Storage.Mongo.URI = ""
	assert.ErrorContains(t, cfg.Validate(), "mongo needs a uri")

	cfg.Storage.Backend = "tiered"
	cfg.Storage.Cache.Cold = "maria"
	assert.NoError(t, cfg.Validate())
	cfg.Storage.Cache.Cold = "redis"
	assert.ErrorContains(t, cfg.Validate(), "unknown cold tier")
}

func TestLoad_ComponentLevels(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: WARN
  components:
    generation: DEBUG
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "WARN", cfg.Logging.Level)
	assert.Equal(t, map[string]string{"generation": "DEBUG"}, cfg.Logging.Components)
}
