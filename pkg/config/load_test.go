package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kabili207/mesh-web-client/pkg/meshtastic"
	"github.com/kabili207/mesh-web-client/pkg/transport"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
listen_addr: ":9000"
session_secret: "s3cret"
log_level: debug
database:
  path: /var/lib/meshweb/history.db
radio:
  send_interval: 500ms
  heartbeat: 2m
auto_connect:
  - kind: tcp
    address: meshtastic.local
    name: Roof
  - kind: serial
    address: /dev/ttyACM0
mqtt:
  enabled: true
  broker: tcp://broker:1883
ignore_nodes:
  - "!deadbeef"
  - 1234
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	require.Equal(t, ":9000", cfg.ListenAddr)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "/var/lib/meshweb/history.db", cfg.Database.Path)
	require.Equal(t, 200, cfg.Database.HistoryLimit)
	require.Equal(t, 500*time.Millisecond, cfg.Radio.SendInterval)
	require.Equal(t, 2*time.Minute, cfg.Radio.Heartbeat)
	require.Equal(t, time.Minute, cfg.Radio.ConnectTimeout)

	require.Len(t, cfg.AutoConnect, 2)
	require.Equal(t, transport.KindTCP, cfg.AutoConnect[0].Kind)
	require.Equal(t, "meshtastic.local", cfg.AutoConnect[0].Address)
	require.Equal(t, "Roof", cfg.AutoConnect[0].Name)
	require.Equal(t, transport.KindSerial, cfg.AutoConnect[1].Kind)

	require.True(t, cfg.MQTT.Enabled)
	require.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	require.Equal(t, "meshweb", cfg.MQTT.Root)
	require.False(t, cfg.Influx.Enabled)

	require.Equal(t, []meshtastic.NodeID{0xdeadbeef, 1234}, cfg.IgnoreNodes)
	require.False(t, cfg.AuthEnabled())
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("MESHWEB_LISTEN_ADDR", "0.0.0.0:7000")
	t.Setenv("MESHWEB_MQTT_ROOT", "msh/test")
	t.Setenv("MESHWEB_AUTH_PASSWORD_HASH", "abc")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:7000", cfg.ListenAddr)
	require.Equal(t, "msh/test", cfg.MQTT.Root)
	require.True(t, cfg.AuthEnabled())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadBadNodeID(t *testing.T) {
	_, err := Load(writeConfig(t, "ignore_nodes: [\"!zz\"]\n"))
	require.Error(t, err)
}
