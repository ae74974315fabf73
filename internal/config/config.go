package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/magicaleks/qudata-broker/internal/domain"
)

// Config is the broker configuration file.
type Config struct {
	Server struct {
		Port   int    `yaml:"port"`
		Secret string `yaml:"secret"`
	} `yaml:"server"`

	Marketplace struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"marketplace"`

	Routing struct {
		BidTimeoutSeconds   int  `yaml:"bid_timeout_seconds"`
		PollIntervalSeconds int  `yaml:"poll_interval_seconds"`
		AutoAccept          bool `yaml:"auto_accept"`
	} `yaml:"routing"`

	// Weights left unset in the file means the stock defaults; an explicit
	// block, zeros included, is taken as written.
	Weights *domain.ScoreWeights `yaml:"weights"`

	Archive struct {
		Backend       string `yaml:"backend"` // "file", "redis" or "none"
		Dir           string `yaml:"dir"`
		RedisAddr     string `yaml:"redis_addr"`
		RedisTTLHours int    `yaml:"redis_ttl_hours"`
	} `yaml:"archive"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
}

// Load reads and validates a broker config, filling defaults for anything
// not set. API key and secret can be overridden from the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if key := os.Getenv("QUDATA_API_KEY"); key != "" {
		cfg.Marketplace.APIKey = key
	}
	if secret := os.Getenv("BROKER_SECRET"); secret != "" {
		cfg.Server.Secret = secret
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Routing.BidTimeoutSeconds == 0 {
		cfg.Routing.BidTimeoutSeconds = 60
	}
	if cfg.Routing.PollIntervalSeconds == 0 {
		cfg.Routing.PollIntervalSeconds = 2
	}
	if cfg.Weights == nil {
		defaults := domain.DefaultWeights()
		cfg.Weights = &defaults
	}
	if cfg.Archive.Backend == "" {
		cfg.Archive.Backend = "file"
	}
	if cfg.Archive.Dir == "" {
		cfg.Archive.Dir = "/var/lib/qudata-broker/routelogs"
	}
	if cfg.Archive.RedisTTLHours == 0 {
		cfg.Archive.RedisTTLHours = 72
	}
}

func validate(cfg *Config) error {
	if cfg.Marketplace.BaseURL == "" {
		return fmt.Errorf("marketplace.base_url is required")
	}
	if cfg.Routing.BidTimeoutSeconds < 1 {
		return fmt.Errorf("routing.bid_timeout_seconds must be positive")
	}
	if cfg.Routing.PollIntervalSeconds < 1 {
		return fmt.Errorf("routing.poll_interval_seconds must be positive")
	}
	switch cfg.Archive.Backend {
	case "file", "redis", "none":
	default:
		return fmt.Errorf("archive.backend must be 'file', 'redis' or 'none'")
	}
	if cfg.Archive.Backend == "redis" && cfg.Archive.RedisAddr == "" {
		return fmt.Errorf("archive.redis_addr is required for the redis backend")
	}
	for _, w := range []float64{cfg.Weights.Price, cfg.Weights.Reliability, cfg.Weights.Performance, cfg.Weights.Latency} {
		if w < 0 {
			return fmt.Errorf("score weights must not be negative")
		}
	}
	return nil
}

// BidTimeout returns the configured bid-collection window.
func (c *Config) BidTimeout() time.Duration {
	return time.Duration(c.Routing.BidTimeoutSeconds) * time.Second
}

// PollInterval returns the configured bid polling tick.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Routing.PollIntervalSeconds) * time.Second
}
