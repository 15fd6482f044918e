package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dyluth/parliament/pkg/parliament"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parliament.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidSenatorConfig(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	path := writeConfig(t, `version: "1.0"
peer:
  name: scheduler-1
  role: senator
  group: gpu-east
redis:
  url: redis://redis:6379/2
sync:
  retention: 5m
  poll_interval: 250ms
  backoff_unit: 2s
  join_attempts: 4
record:
  backend: badger
  path: /var/lib/parliament
`)

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "scheduler-1", config.Peer.Name)
	assert.Equal(t, "gpu-east", config.Peer.Group)
	assert.Equal(t, "redis://redis:6379/2", config.Redis.URL)
	assert.Equal(t, 5*time.Minute, config.Sync.Retention)
	assert.Equal(t, 250*time.Millisecond, config.Sync.PollInterval)
	assert.Equal(t, RecordBadger, config.Record.Backend)
	assert.Equal(t, DefaultHTTPAddr, config.HTTP.Addr)

	opts, err := config.Options()
	require.NoError(t, err)
	assert.Equal(t, parliament.RoleSenator, opts.Role)
	assert.Equal(t, 2*time.Second, opts.BackoffUnit)
	assert.Equal(t, 4, opts.JoinAttempts)
}

func TestLoad_ObserverSubscriptions(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	path := writeConfig(t, `version: "1.0"
peer:
  role: mass
subscriptions:
  - Task/id/42
  - Task/id/43
`)

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultGroup, config.Peer.Group)
	assert.Equal(t, RecordRedis, config.Record.Backend)

	keys, err := config.Keys()
	require.NoError(t, err)
	assert.Equal(t, []parliament.Key{
		{Class: "Task", Attr: "id", Value: "42"},
		{Class: "Task", Attr: "id", Value: "43"},
	}, keys)
}

func TestLoad_RedisURLFromEnvironment(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://env-host:6380")
	path := writeConfig(t, `version: "1.0"
peer:
  role: senator
redis:
  url: redis://file-host:6379
`)

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "redis://env-host:6380", config.Redis.URL)
}

func TestLoad_FileNotFound(t *testing.T) {
	config, err := Load("/nonexistent/parliament.yml")
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, `version: "1.0"
peer:
  - this is invalid
    yaml syntax
`)

	config, err := Load(path)
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:    "unsupported version",
			config:  Config{Version: "2.0", Peer: PeerConfig{Role: "senator"}},
			wantErr: "unsupported version: 2.0",
		},
		{
			name:    "unknown role",
			config:  Config{Version: "1.0", Peer: PeerConfig{Role: "consul"}},
			wantErr: "peer.role",
		},
		{
			name:    "senator with subscriptions",
			config:  Config{Version: "1.0", Peer: PeerConfig{Role: "senator"}, Subscriptions: []string{"Task/id/1"}},
			wantErr: "only valid for role 'mass'",
		},
		{
			name:    "malformed subscription",
			config:  Config{Version: "1.0", Peer: PeerConfig{Role: "mass"}, Subscriptions: []string{"Task-42"}},
			wantErr: "subscriptions[0]",
		},
		{
			name:    "negative join attempts",
			config:  Config{Version: "1.0", Peer: PeerConfig{Role: "senator"}, Sync: SyncConfig{JoinAttempts: -1}},
			wantErr: "join_attempts",
		},
		{
			name:    "badger without path",
			config:  Config{Version: "1.0", Peer: PeerConfig{Role: "senator"}, Record: RecordConfig{Backend: RecordBadger}},
			wantErr: "record.path is required",
		},
		{
			name:    "unknown record backend",
			config:  Config{Version: "1.0", Peer: PeerConfig{Role: "senator"}, Record: RecordConfig{Backend: "postgres"}},
			wantErr: "invalid record.backend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
