package align

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigPartialOverride(t *testing.T) {
	path := writeTempConfig(t, `options:
  delta: 0.05
  sampleSize: 1000
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 0.05, cfg.Options.Delta)
	assert.Equal(t, 1000, cfg.Options.SampleSize)
	// Absent keys keep their defaults.
	defaults := DefaultOptions()
	assert.Equal(t, defaults.OverlapEstimate, cfg.Options.OverlapEstimate)
	assert.Equal(t, defaults.Algorithm, cfg.Options.Algorithm)
	assert.Nil(t, cfg.MQTT)
}

func TestLoadConfigWithMQTT(t *testing.T) {
	path := writeTempConfig(t, `options:
  algorithm: brute
mqtt:
  broker: tcp://localhost:1883
  publishPrefix: scans
  clientId: stitcher-1
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, AlgorithmBrute, cfg.Options.Algorithm)
	require.NotNil(t, cfg.MQTT)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "scans", cfg.MQTT.PublishPrefix)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "not found")

	bad := writeTempConfig(t, "options: [not, a, map]\n")
	_, err = LoadConfig(bad)
	assert.ErrorContains(t, err, "parsing config YAML")

	invalid := writeTempConfig(t, "options:\n  delta: -1\n")
	_, err = LoadConfig(invalid)
	assert.ErrorContains(t, err, "invalid options")

	noBroker := writeTempConfig(t, "mqtt:\n  publishPrefix: scans\n")
	_, err = LoadConfig(noBroker)
	assert.ErrorContains(t, err, "mqtt.broker is required")
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	in := &Config{
		Options: DefaultOptions(),
		MQTT:    &MQTTConfig{Broker: "tcp://broker:1883", PublishPrefix: "scanstitch"},
	}
	in.Options.Seed = 42
	require.NoError(t, SaveConfig(path, in))

	out, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, in.Options, out.Options)
	assert.Equal(t, in.MQTT.Broker, out.MQTT.Broker)
}
