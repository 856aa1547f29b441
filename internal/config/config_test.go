package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CELESTIAL_CONFIG", "")
	t.Setenv("CELESTIAL_SEED", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "overworld", cfg.World.ID)
	assert.Equal(t, 50*time.Millisecond, cfg.World.TickInterval())
	assert.Equal(t, "CELESTIAL", cfg.EventBus.Stream)
	assert.True(t, cfg.Sync.UseGzipCompr)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Setenv("CELESTIAL_SEED", "")
	path := filepath.Join(t.TempDir(), "celestial.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
world:
  id: nether
  seed: -42
  ticks_per_second: 40
celestial:
  tiers_file: configs/tiers.yaml
sync:
  flush_every_ms: 250
server:
  rest_port: 9000
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "nether", cfg.World.ID)
	assert.Equal(t, int64(-42), cfg.World.Seed)
	assert.Equal(t, 25*time.Millisecond, cfg.World.TickInterval())
	assert.Equal(t, int64(3650), cfg.World.MaxCatchUpDays, "незаданные поля остаются по умолчанию")
	assert.Equal(t, "configs/tiers.yaml", cfg.Celestial.TiersFile)
	assert.Equal(t, 250*time.Millisecond, cfg.Sync.FlushInterval())
	assert.Equal(t, 9000, cfg.Server.GetRESTPort())
}

func TestLoad_SeedFromEnv(t *testing.T) {
	t.Setenv("CELESTIAL_CONFIG", "")
	t.Setenv("CELESTIAL_SEED", "1234")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(1234), cfg.World.Seed)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestPortFallback(t *testing.T) {
	t.Setenv("CELESTIAL_METRICS_PORT", "3113")
	s := ServerConfig{}
	assert.Equal(t, 3113, s.GetMetricsPort())

	t.Setenv("CELESTIAL_REST_PORT", "garbage")
	assert.Equal(t, 8088, s.GetRESTPort())
}
