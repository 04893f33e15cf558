package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full gateway configuration, loaded from a TOML file
// with environment overrides (prefix LORAGW_, dots become underscores,
// e.g. LORAGW_SERIAL_PORT).
type Config struct {
	Serial SerialConfig `mapstructure:"serial"`
	Device DeviceConfig `mapstructure:"device"`
	Uplink UplinkConfig `mapstructure:"uplink"`
	HTTP   HTTPConfig   `mapstructure:"http"`
	MQTT   MQTTConfig   `mapstructure:"mqtt"`
	Log    LogConfig    `mapstructure:"log"`
}

// SerialConfig locates the module.
type SerialConfig struct {
	Port string `mapstructure:"port"`
	Baud int    `mapstructure:"baud"`
}

// DeviceConfig is the LoRaWAN session and radio setup provisioned into
// the module at startup. Key material is passed through to the module
// verbatim and validated by the driver.
type DeviceConfig struct {
	JoinMode string `mapstructure:"join_mode"` // "otaa" or "abp"

	// OTAA identity
	DevEui string `mapstructure:"dev_eui"`
	AppEui string `mapstructure:"app_eui"`
	AppKey string `mapstructure:"app_key"`

	// ABP session
	DevAddr string `mapstructure:"dev_addr"`
	NwkSKey string `mapstructure:"nwks_key"`
	AppSKey string `mapstructure:"apps_key"`

	DataRate     int  `mapstructure:"data_rate"`
	TXPower      int  `mapstructure:"tx_power"`
	Trials       int  `mapstructure:"trials"`
	ADR          bool `mapstructure:"adr"`
	RX1Delay     int  `mapstructure:"rx1_delay"`
	RX1DROffset  int  `mapstructure:"rx1_dr_offset"`
	RX2DataRate  int  `mapstructure:"rx2_data_rate"`
	RX2Frequency int  `mapstructure:"rx2_frequency"`
	AppPort      int  `mapstructure:"app_port"`
	JoinRetries  int  `mapstructure:"join_retries"`
	JoinInterval int  `mapstructure:"join_interval"`
}

// UplinkConfig shapes the transmit queue.
type UplinkConfig struct {
	// DutyCycle is the allowed on-air fraction, e.g. 0.01 for the 1%
	// EU868 sub-bands.
	DutyCycle  float64 `mapstructure:"duty_cycle"`
	Confirm    bool    `mapstructure:"confirm"`
	QueueSize  int     `mapstructure:"queue_size"`
	MaxRetries int     `mapstructure:"max_retries"`
}

// HTTPConfig configures the REST surface. An empty token disables
// authentication.
type HTTPConfig struct {
	Listen string `mapstructure:"listen"`
	Token  string `mapstructure:"token"`
}

// MQTTConfig configures the broker bridge. An empty broker disables it.
type MQTTConfig struct {
	Broker        string `mapstructure:"broker"`
	ClientID      string `mapstructure:"client_id"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	UplinkTopic   string `mapstructure:"uplink_topic"`
	DownlinkTopic string `mapstructure:"downlink_topic"`
}

// LogConfig configures gateway logging. An empty file logs to stderr;
// otherwise output rotates under the lumberjack limits.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // "text" or "json"
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// LoadConfig reads the TOML file at path, if any, applies environment
// overrides and fills defaults for everything left unset.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("serial.port", "/dev/ttyUSB0")
	v.SetDefault("serial.baud", 115200)

	v.SetDefault("device.join_mode", "otaa")
	v.SetDefault("device.data_rate", 3)
	v.SetDefault("device.tx_power", 0)
	v.SetDefault("device.trials", 8)
	v.SetDefault("device.adr", true)
	v.SetDefault("device.rx1_delay", 1)
	v.SetDefault("device.rx1_dr_offset", 0)
	v.SetDefault("device.rx2_data_rate", 0)
	v.SetDefault("device.rx2_frequency", 869525000)
	v.SetDefault("device.app_port", 8)
	v.SetDefault("device.join_retries", 8)
	v.SetDefault("device.join_interval", 8)

	v.SetDefault("uplink.duty_cycle", 0.01)
	v.SetDefault("uplink.confirm", false)
	v.SetDefault("uplink.queue_size", 64)
	v.SetDefault("uplink.max_retries", 3)

	v.SetDefault("http.listen", "0.0.0.0:8080")
	v.SetDefault("http.token", "")

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "loragw-1")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.uplink_topic", "loragw/uplink")
	v.SetDefault("mqtt.downlink_topic", "loragw/downlink")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 20)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)

	v.SetEnvPrefix("LORAGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	switch c.Device.JoinMode {
	case "otaa", "abp":
	default:
		return fmt.Errorf("device.join_mode must be \"otaa\" or \"abp\", got %q", c.Device.JoinMode)
	}
	if c.Device.DataRate < 0 || c.Device.DataRate > 5 {
		return fmt.Errorf("device.data_rate must be 0..5, got %d", c.Device.DataRate)
	}
	if c.Uplink.DutyCycle <= 0 || c.Uplink.DutyCycle > 1 {
		return fmt.Errorf("uplink.duty_cycle must be in (0, 1], got %g", c.Uplink.DutyCycle)
	}
	if c.Uplink.QueueSize < 1 {
		return fmt.Errorf("uplink.queue_size must be at least 1, got %d", c.Uplink.QueueSize)
	}
	return nil
}
