package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN  string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL  string `env:"RABBITMQ_URL,required=true"`
	RedisURL     string `env:"REDIS_URL,required=true"`
	MailRelayURL string `env:"MAIL_RELAY_URL,required=true"`

	RateLimitPerSec     int `env:"RATE_LIMIT_PER_SEC,default=50"`
	DispatchConcurrency int `env:"DISPATCH_CONCURRENCY,default=10"`
	SendTimeoutSecs     int `env:"SEND_TIMEOUT_SECS,default=10"`
	SweepIntervalSecs   int `env:"SWEEP_INTERVAL_SECS,default=60"`
	StalePendingSecs    int `env:"STALE_PENDING_SECS,default=300"`

	APIPort  int    `env:"API_PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutSecs) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSecs) * time.Second
}

func (c *Config) StalePendingAfter() time.Duration {
	return time.Duration(c.StalePendingSecs) * time.Second
}
