package src

import (
	"fmt"
	"net"
	"strconv"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"

	"redis_browser/pkg"
	"redis_browser/src/model"
)

type Config struct {
	LogConfig   model.LogConfig   `envconfig:""`
	StoreConfig model.StoreConfig `envconfig:""`
	UIConfig    model.UIConfig    `envconfig:""`
}

func LoadConfig() (*Config, error) {
	var config Config
	err := envconfig.Process("", &config)
	if err != nil {
		return nil, fmt.Errorf("error processing environment configuration: %w", err)
	}

	return &config, nil
}

// ConnectionConfig builds the connection settings from the store section.
// REDIS_URL overrides the discrete host, port and credential variables.
func (c *Config) ConnectionConfig() (pkg.ConnectionConfig, error) {
	sc := c.StoreConfig
	cfg := pkg.ConnectionConfig{
		Host:     sc.Host,
		Port:     sc.Port,
		Username: sc.Username,
		Password: sc.Password,
		Timeout:  sc.Timeout,
	}

	if sc.URL != "" {
		opts, err := redis.ParseURL(sc.URL)
		if err != nil {
			return pkg.ConnectionConfig{}, fmt.Errorf("%w: REDIS_URL: %v", pkg.ErrInvalidConfig, err)
		}
		host, port, err := net.SplitHostPort(opts.Addr)
		if err != nil {
			return pkg.ConnectionConfig{}, fmt.Errorf("%w: REDIS_URL address %q: %v", pkg.ErrInvalidConfig, opts.Addr, err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return pkg.ConnectionConfig{}, fmt.Errorf("%w: REDIS_URL port %q", pkg.ErrInvalidConfig, port)
		}
		cfg.Host = host
		cfg.Port = p
		cfg.Username = opts.Username
		cfg.Password = opts.Password
	}

	if err := cfg.Validate(); err != nil {
		return pkg.ConnectionConfig{}, err
	}
	return cfg, nil
}
