// Package config loads the dispatcher's YAML configuration file into a
// nested struct tree via viper, rather than flat environment variables.
package config

import (
	"fmt"
	"net"
	"os"

	"github.com/spf13/viper"

	"github.com/coursegrader/pipeline/dispatcher/internal/domain"
	"github.com/coursegrader/pipeline/shared"
)

// Config holds the full dispatcher configuration.
type Config struct {
	Server  ServerConfig      `mapstructure:"server"`
	Gitlab  GitlabConfig      `mapstructure:"gitlab"`
	Package PackageConfig     `mapstructure:"package"`
	Labs    []domain.Lab      `mapstructure:"labs"`
	AMQP    shared.AMQPConfig `mapstructure:"amqp"`
	Redis   RedisConfig       `mapstructure:"redis"`
}

type ServerConfig struct {
	IP      string `mapstructure:"ip"`
	Port    int    `mapstructure:"port"`
	BaseURL string `mapstructure:"base_url"`
}

// Addr returns the host:port pair the HTTP frontend should bind to.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.IP, fmt.Sprintf("%d", s.Port))
}

type GitlabConfig struct {
	Token       string `mapstructure:"token"`
	BaseURL     string `mapstructure:"base_url"`
	SecretToken string `mapstructure:"secret_token"`
}

type PackageConfig struct {
	Threads int    `mapstructure:"threads"`
	ZipDir  string `mapstructure:"zip_dir"`
}

// RedisConfig backs the webhook rate limiter; empty Addr disables it.
type RedisConfig struct {
	Addr            string `mapstructure:"addr"`
	RateLimitPerMin int    `mapstructure:"rate_limit_per_min"`
}

// Load reads and unmarshals the YAML file at path, then ensures the zip
// directory exists (setup_dirs in the original).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}

	if cfg.Package.ZipDir == "" {
		return nil, fmt.Errorf("config: package.zip_dir is required")
	}
	if err := os.MkdirAll(cfg.Package.ZipDir, 0o755); err != nil {
		return nil, fmt.Errorf("config: create zip dir %s: %w", cfg.Package.ZipDir, err)
	}

	return cfg, nil
}
