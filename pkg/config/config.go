package config

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration of the backend, unmarshalled from a YAML
// file. It is constructed once at startup and passed by reference to every
// component; nothing reads it through a package-level singleton.
type Config struct {
	Host        string `yaml:"host"`        // public domain name, used in alert templates
	ServerAddr  string `yaml:"serverAddr"`  // address the API endpoint binds to
	MetricsAddr string `yaml:"metricsAddr"` // address the metrics endpoint binds to

	// Region this instance probes from, recorded on every CheckResult.
	Region string `yaml:"region"`

	Auth struct {
		AccessTokenSecret string `yaml:"accessTokenSecret"`
	} `yaml:"auth"`

	Postgres struct {
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		DBName   string `yaml:"dbname"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		SSLMode  string `yaml:"sslmode"`
		TimeZone string `yaml:"timeZone"`
	} `yaml:"postgres"`

	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`

	Queue struct {
		Concurrency int `yaml:"concurrency"` // simultaneous probe jobs
		MaxAttempts int `yaml:"maxAttempts"` // job executions before giving up
	} `yaml:"queue"`

	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
	} `yaml:"smtp"`

	Telegram struct {
		BotToken string `yaml:"botToken"`
	} `yaml:"telegram"`
}

const (
	defaultConcurrency = 5
	defaultMaxAttempts = 3
)

func IsDebugMode() bool {
	return gin.Mode() == gin.DebugMode
}

// Load reads the configuration file. The path comes from PULSE_CONFIG_PATH;
// in debug mode it falls back to ./etc/debug-config.yaml, in release mode to
// the mounted /etc/config/config.yaml.
func Load() (*Config, error) {
	configPath := os.Getenv("PULSE_CONFIG_PATH")
	if configPath == "" {
		if IsDebugMode() {
			configPath = "./etc/debug-config.yaml"
		} else {
			configPath = "/etc/config/config.yaml"
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", configPath, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8088"
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = ":9091"
	}
	if c.Region == "" {
		c.Region = "us-east"
	}
	if c.Queue.Concurrency <= 0 {
		c.Queue.Concurrency = defaultConcurrency
	}
	if c.Queue.MaxAttempts <= 0 {
		c.Queue.MaxAttempts = defaultMaxAttempts
	}
	if c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = "disable"
	}
	if c.Postgres.TimeZone == "" {
		c.Postgres.TimeZone = "UTC"
	}
}
