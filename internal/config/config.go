package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Registry struct {
		Domain         string        `yaml:"domain"`
		UserAgent      string        `yaml:"userAgent"`
		ConnectTimeout time.Duration `yaml:"connectTimeout"`
		Timeout        time.Duration `yaml:"timeout"`
	} `yaml:"registry"`

	Enrich struct {
		MaxBatch     int           `yaml:"maxBatch"`
		FetchDelay   time.Duration `yaml:"fetchDelay"`
		PollInterval time.Duration `yaml:"pollInterval"` // 0 disables the background worker
	} `yaml:"enrich"`

	Agent struct {
		ServerBaseURL string        `yaml:"serverBaseURL"`
		DBPath        string        `yaml:"dbPath"`
		Timeout       time.Duration `yaml:"timeout"`
		DrainInterval time.Duration `yaml:"drainInterval"`
		MaxAttempts   int           `yaml:"maxAttempts"` // 0 = retry forever
		Origin        string        `yaml:"origin"`
	} `yaml:"agent"`
}

// Load reads a config.yaml file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Registry.Domain == "" {
		c.Registry.Domain = "dghpsh.agcontrol.gob.ar"
	}
	if c.Registry.UserAgent == "" {
		c.Registry.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	}
	if c.Registry.ConnectTimeout == 0 {
		c.Registry.ConnectTimeout = 10 * time.Second
	}
	if c.Registry.Timeout == 0 {
		c.Registry.Timeout = 30 * time.Second
	}
	if c.Enrich.MaxBatch == 0 {
		c.Enrich.MaxBatch = 20
	}
	if c.Enrich.FetchDelay == 0 {
		c.Enrich.FetchDelay = 500 * time.Millisecond
	}
	if c.Agent.Timeout == 0 {
		c.Agent.Timeout = 30 * time.Second
	}
	if c.Agent.DrainInterval == 0 {
		c.Agent.DrainInterval = 15 * time.Minute
	}
	if c.Agent.DBPath == "" {
		c.Agent.DBPath = "escaneos.db"
	}
	if c.Agent.Origin == "" {
		c.Agent.Origin = "scanner_agent"
	}
}

// Helper to build the MySQL DSN
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper to build the Postgres DSN
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
