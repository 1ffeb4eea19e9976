package client

import (
	"fmt"
	"time"

	env "github.com/Netflix/go-env"
)

// Version is reported by /i.
const Version = "0.3.0"

// Config holds the client settings read from the environment.
type Config struct {
	HeartbeatSeconds      int  `env:"CHAT_HEARTBEAT_SECONDS,default=20"`
	Colours               bool `env:"CHAT_COLOURS,default=true"`
	RequestTimeoutSeconds int  `env:"CHAT_REQUEST_TIMEOUT_SECONDS,default=5"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{HeartbeatSeconds: 20, Colours: true, RequestTimeoutSeconds: 5}
}

// LoadConfig reads Config from the process environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("reading client environment: %w", err)
	}
	return cfg, nil
}

// Heartbeat is the interval between heartbeat frames on the stream.
func (c Config) Heartbeat() time.Duration {
	if c.HeartbeatSeconds <= 0 {
		return time.Duration(DefaultConfig().HeartbeatSeconds) * time.Second
	}
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

// RequestTimeout bounds each registration API call.
func (c Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return time.Duration(DefaultConfig().RequestTimeoutSeconds) * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
