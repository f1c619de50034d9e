// Package config loads the tester's YAML configuration file.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/coursegrader/pipeline/shared"
)

// Config holds the full tester configuration.
type Config struct {
	AMQP   shared.AMQPConfig `mapstructure:"amqp"`
	Tester TesterConfig      `mapstructure:"tester"`
}

// TesterConfig describes how to invoke the container test harness.
type TesterConfig struct {
	DockerImage string                       `mapstructure:"docker_image"`
	DirOnHost   string                       `mapstructure:"dir_on_host"`
	DirInDocker string                       `mapstructure:"dir_in_docker"`
	Program     string                       `mapstructure:"program"`
	ExtraArgs   []string                     `mapstructure:"extra_args"`
	Env         map[string]map[string]string `mapstructure:"env"`
	TestFiles   map[string]string            `mapstructure:"test_files"`
	Parallelism int                          `mapstructure:"parallelism"`
}

// EnvFor returns the configured environment pairs for lab, or nil if none.
func (c TesterConfig) EnvFor(lab string) map[string]string {
	return c.Env[lab]
}

// Load reads and unmarshals the YAML file at path.
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

	// viper lowercases every map key, but environment variable names are
	// case-sensitive, so the env block is decoded again from the raw YAML.
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var envDoc struct {
		Tester struct {
			Env map[string]map[string]string `yaml:"env"`
		} `yaml:"tester"`
	}
	if err := yaml.Unmarshal(raw, &envDoc); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	cfg.Tester.Env = envDoc.Tester.Env

	if cfg.Tester.Parallelism <= 0 {
		return nil, fmt.Errorf("config: tester.parallelism must be positive")
	}
	return cfg, nil
}
