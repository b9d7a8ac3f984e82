package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 8080
`))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "scriptsage.db", cfg.Database.Path)
	assert.Equal(t, 3, cfg.MaxRetries())
	assert.InDelta(t, 5.0, cfg.BatchRatePerSecond(), 1e-9)
	assert.Equal(t, 4, cfg.Pipeline.BatchConcurrency)
}

func TestLoadExplicitZeroSurvivesDefaults(t *testing.T) {
	// 0 means "no retries" / "no rate limit", not "use the default".
	cfg, err := Load(writeConfig(t, `
pipeline:
  maxRetries: 0
  batchRatePerSecond: 0
`))
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.MaxRetries())
	assert.Zero(t, cfg.BatchRatePerSecond())
}

func TestDSNHelpers(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
database:
  driver: mysql
  host: db.internal
  port: 3306
  user: app
  password: secret
  name: scriptsage
`))
	require.NoError(t, err)

	assert.Equal(t,
		"app:secret@tcp(db.internal:3306)/scriptsage?parseTime=true&charset=utf8mb4&loc=UTC",
		cfg.MySQLDSN())
	assert.Equal(t,
		"host=db.internal port=3306 user=app password=secret dbname=scriptsage sslmode=disable",
		cfg.PostgresDSN())
}
