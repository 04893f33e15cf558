package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", config.Serial.Port)
	assert.Equal(t, 115200, config.Serial.Baud)
	assert.Equal(t, "otaa", config.Device.JoinMode)
	assert.Equal(t, 3, config.Device.DataRate)
	assert.True(t, config.Device.ADR)
	assert.Equal(t, 0.01, config.Uplink.DutyCycle)
	assert.Equal(t, 64, config.Uplink.QueueSize)
	assert.Equal(t, "0.0.0.0:8080", config.HTTP.Listen)
	assert.Empty(t, config.MQTT.Broker)
	assert.Equal(t, "info", config.Log.Level)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loragw.toml")
	content := `
[serial]
port = "/dev/ttyAMA0"
baud = 9600

[device]
join_mode = "abp"
dev_addr = "0011AABB"
data_rate = 5
adr = false

[uplink]
duty_cycle = 0.1
confirm = true

[http]
listen = "127.0.0.1:9090"
token = "secret"

[mqtt]
broker = "tcp://localhost:1883"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyAMA0", config.Serial.Port)
	assert.Equal(t, 9600, config.Serial.Baud)
	assert.Equal(t, "abp", config.Device.JoinMode)
	assert.Equal(t, "0011AABB", config.Device.DevAddr)
	assert.Equal(t, 5, config.Device.DataRate)
	assert.False(t, config.Device.ADR)
	assert.Equal(t, 0.1, config.Uplink.DutyCycle)
	assert.True(t, config.Uplink.Confirm)
	assert.Equal(t, "127.0.0.1:9090", config.HTTP.Listen)
	assert.Equal(t, "secret", config.HTTP.Token)
	assert.Equal(t, "tcp://localhost:1883", config.MQTT.Broker)

	// untouched sections keep their defaults
	assert.Equal(t, 8, config.Device.JoinRetries)
	assert.Equal(t, "loragw/uplink", config.MQTT.UplinkTopic)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("LORAGW_SERIAL_PORT", "/dev/ttyS1")
	t.Setenv("LORAGW_HTTP_TOKEN", "from-env")

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyS1", config.Serial.Port)
	assert.Equal(t, "from-env", config.HTTP.Token)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "Unknown join mode",
			content: "[device]\njoin_mode = \"magic\"\n",
		},
		{
			name:    "Data rate out of range",
			content: "[device]\ndata_rate = 6\n",
		},
		{
			name:    "Zero duty cycle",
			content: "[uplink]\nduty_cycle = 0.0\n",
		},
		{
			name:    "Duty cycle above one",
			content: "[uplink]\nduty_cycle = 1.5\n",
		},
		{
			name:    "Empty queue",
			content: "[uplink]\nqueue_size = 0\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "loragw.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/loragw.toml")
	assert.Error(t, err)
}
