package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Runtime.Workers)
	assert.Equal(t, 1, cfg.Runtime.ClientQueues)
	assert.Equal(t, 1, cfg.Server.WorkQueues)
	assert.Equal(t, "127.0.0.1:50051", cfg.Client.Target)
}

func TestLoadFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sgrpc.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[runtime]
workers = 8
client_queues = 4

[server]
port = 50055
work_queues = 2

[log]
json = true
verbosity = 2
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Runtime.Workers)
	assert.Equal(t, 4, cfg.Runtime.ClientQueues)
	assert.Equal(t, 50055, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Server.WorkQueues)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, 2, cfg.Log.Verbosity)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestValidation(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Runtime.Workers = 0
	assert.Error(t, cfg.Validate())

	cfg, _ = Load("")
	cfg.Runtime.ClientQueues = 0
	assert.Error(t, cfg.Validate())

	cfg, _ = Load("")
	cfg.Server.WorkQueues = -1
	assert.Error(t, cfg.Validate())

	cfg, _ = Load("")
	cfg.Client.Rate = -1
	assert.Error(t, cfg.Validate())
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SGRPC_RUNTIME_WORKERS", "5")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Runtime.Workers)
}
