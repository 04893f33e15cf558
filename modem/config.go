package modem

import (
	"time"

	"github.com/sirupsen/logrus"
)

func (c *Config) validate() error {
	if c.Dialer == nil {
		return ErrNoDialer
	}
	return nil
}

type Config struct {
	Dialer Dialer

	// Logger receives wire traffic at debug level and state changes at
	// info. Defaults to the logrus standard logger.
	Logger logrus.FieldLogger

	// CommandTimeout bounds how long a transaction waits for its
	// terminal reply line.
	CommandTimeout time.Duration

	// PollInterval is the sleep between polls while waiting for
	// delayed results (join outcomes, send confirmations).
	PollInterval time.Duration

	// ReceiveGrace extends the post-uplink drain window beyond the RX1
	// delay so RX2 traffic is still caught.
	ReceiveGrace time.Duration
}

func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = 2 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = 50 * time.Millisecond
	}
	if c.ReceiveGrace == 0 {
		c.ReceiveGrace = 2 * time.Second
	}
}

// ConfigBuilder assembles a Config fluently. Build validates the result
// and fills in defaults.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.Dialer = d
	return b
}

func (b *ConfigBuilder) WithLogger(l logrus.FieldLogger) *ConfigBuilder {
	b.config.Logger = l
	return b
}

func (b *ConfigBuilder) WithCommandTimeout(d time.Duration) *ConfigBuilder {
	b.config.CommandTimeout = d
	return b
}

func (b *ConfigBuilder) WithPollInterval(d time.Duration) *ConfigBuilder {
	b.config.PollInterval = d
	return b
}

func (b *ConfigBuilder) WithReceiveGrace(d time.Duration) *ConfigBuilder {
	b.config.ReceiveGrace = d
	return b
}

func (b *ConfigBuilder) Build() (Config, error) {
	if err := b.config.validate(); err != nil {
		return Config{}, err
	}
	c := b.config
	c.setDefaults()
	return c, nil
}
