package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asquebay/blueflow/internal/queue"
)

func TestLoad_ConfigYAML(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, 12.0, cfg.Throttling.CapacityPerHour)
	assert.Len(t, cfg.Menu.Items, 2)
}

func TestLoad_MergesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "valid.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPServer.Port)
	assert.Equal(t, 10*time.Second, cfg.HTTPServer.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Refresh.Interval)
	assert.Equal(t, 10, cfg.Throttling.TotalSeats)
	assert.Equal(t, queue.TwoStage, cfg.Kitchen.Mode())
	assert.Equal(t, queue.DefaultMenu(), cfg.Menu.Items)

	p := cfg.Throttling.Params()
	assert.Equal(t, 5.0, p.PrepMinutesPerItem())
	assert.Equal(t, 60.0, p.CriticalMinutes)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BLUEFLOW_STORAGE_BACKEND", "memory")
	t.Setenv("BLUEFLOW_CAPACITY_PER_HOUR", "30")
	t.Setenv("BLUEFLOW_HTTP_PORT", ":7000")

	cfg, err := Load(filepath.Join("testdata", "valid.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 30.0, cfg.Throttling.CapacityPerHour)
	assert.Equal(t, ":7000", cfg.HTTPServer.Port)
	assert.Equal(t, "5432", cfg.Postgres.Port)
}

func TestLoad_Invalid(t *testing.T) {
	for _, name := range []string{"bad_thresholds.yaml", "bad_backend.yaml", "missing.yaml"} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(filepath.Join("testdata", name))
			assert.Error(t, err)
		})
	}

	_, err := Load("")
	assert.Error(t, err)
}

func TestPostgres_MigrateURL(t *testing.T) {
	p := Postgres{User: "u", Password: "p@ss", Host: "db", Port: "5432", DBName: "orders", SSLMode: "disable"}

	assert.Equal(t, "pgx5://u:p%40ss@db:5432/orders?sslmode=disable", p.MigrateURL())
	assert.Contains(t, p.DSN(), "dbname=orders")
}
