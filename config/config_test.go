package config

import (
	"os"
	"testing"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// TestConfig_LoadYAML mirrors the teacher's
// scheduler/config/config_test.go shape: decode a YAML fixture with
// yaml.Unmarshal into a generic map, then mapstructure.Decode it into
// the typed Config, and compare field-by-field against what Load
// produces from the same file.
func TestConfig_LoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/directory.yaml"
	const doc = `
server:
  host: 127.0.0.1
  port: 7000
peer:
  host: 127.0.0.1
  base_port: 7100
replication:
  replication_factor: 2
  max_tasks: 5
data:
  peers:
    peer1:
      shared_dir: /tmp/peer1/shared
      download_dir: /tmp/peer1/downloaded
      replicated_dir: /tmp/peer1/replicated
logging:
  console: false
  dir: /tmp/logs
  file_name: directory.log
  max_size_mb: 300
  max_backups: 30
timeouts:
  control: 10s
  transfer: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	var generic map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(doc), &generic))

	var viaMapstructure Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &viaMapstructure,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	require.NoError(t, err)
	require.NoError(t, decoder.Decode(generic))

	cfg, loader, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Replication.ReplicationFactor)
	assert.Equal(t, "/tmp/peer1/shared", cfg.Data.Peers["peer1"].SharedDir)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Control)

	assert.Equal(t, viaMapstructure.Server.Host, cfg.Server.Host)
	assert.Equal(t, viaMapstructure.Replication.ReplicationFactor, cfg.Replication.ReplicationFactor)

	assert.Equal(t, 7000, loader.Get("server.port"))
	assert.Equal(t, "127.0.0.1", loader.Get("peer.host"))
}

func TestConfig_LoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, _, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Replication.ReplicationFactor)
}
