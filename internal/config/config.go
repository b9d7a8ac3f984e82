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

	// Database selects the dedup store backend. Driver is one of
	// mysql, postgres, sqlite. The similarity index follows the driver:
	// postgres uses pgvector, everything else the in-memory index.
	Database struct {
		Driver   string `yaml:"driver"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		Path     string `yaml:"path"` // sqlite only
	} `yaml:"database"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	// OpenAI credentials; an empty apiKey selects the local heuristic
	// analyzer and deterministic embedder at startup.
	OpenAI struct {
		APIKey string `yaml:"apiKey"`
		Model  string `yaml:"model"`
	} `yaml:"openai"`

	// Pipeline tuning. MaxRetries and BatchRatePerSecond are pointers so
	// an explicit 0 (no retries, no rate limit) is distinguishable from
	// the key being absent.
	Pipeline struct {
		AnalysisTimeoutSeconds  int      `yaml:"analysisTimeoutSeconds"`
		EmbeddingTimeoutSeconds int      `yaml:"embeddingTimeoutSeconds"`
		MaxRetries              *int     `yaml:"maxRetries"`
		MaxContentBytes         int      `yaml:"maxContentBytes"`
		BatchConcurrency        int      `yaml:"batchConcurrency"`
		BatchRatePerSecond      *float64 `yaml:"batchRatePerSecond"`
	} `yaml:"pipeline"`
}

// Load reads the config.yaml file
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
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "scriptsage.db"
	}
	if c.Pipeline.AnalysisTimeoutSeconds == 0 {
		c.Pipeline.AnalysisTimeoutSeconds = 60
	}
	if c.Pipeline.EmbeddingTimeoutSeconds == 0 {
		c.Pipeline.EmbeddingTimeoutSeconds = 20
	}
	if c.Pipeline.MaxRetries == nil {
		retries := 3
		c.Pipeline.MaxRetries = &retries
	}
	if c.Pipeline.BatchConcurrency == 0 {
		c.Pipeline.BatchConcurrency = 4
	}
	if c.Pipeline.BatchRatePerSecond == nil {
		rps := 5.0
		c.Pipeline.BatchRatePerSecond = &rps
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
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
	)
}

func (c *Config) AnalysisTimeout() time.Duration {
	return time.Duration(c.Pipeline.AnalysisTimeoutSeconds) * time.Second
}

func (c *Config) EmbeddingTimeout() time.Duration {
	return time.Duration(c.Pipeline.EmbeddingTimeoutSeconds) * time.Second
}

// MaxRetries returns the retry count; an explicit 0 disables retries.
func (c *Config) MaxRetries() int {
	return *c.Pipeline.MaxRetries
}

// BatchRatePerSecond returns the shared provider rate; an explicit 0
// disables rate limiting.
func (c *Config) BatchRatePerSecond() float64 {
	return *c.Pipeline.BatchRatePerSecond
}
