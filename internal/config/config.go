// Package config loads settings from defaults, an optional YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "Asia/Tokyo"
	configPathEnv   = "BIZFEED_CONFIG"
)

type Config struct {
	LogLevel       string   `yaml:"logLevel"`
	Timezone       string   `yaml:"timezone"`
	VocabPath      string   `yaml:"vocabPath"`
	Keywords       []string `yaml:"keywords"`
	MonitoringPort string   `yaml:"monitoringPort"`

	Fetch    FetchConfig    `yaml:"fetch"`
	Scorer   ScorerConfig   `yaml:"scorer"`
	Cache    CacheConfig    `yaml:"cache"`
	Pipeline PipelineConfig `yaml:"pipeline"`

	location *time.Location
}

type FetchConfig struct {
	Scope             string        `yaml:"scope"` // jp | global
	GoogleURL         string        `yaml:"googleUrl"`
	YahooURL          string        `yaml:"yahooUrl"`
	Proxies           []string      `yaml:"proxies"`
	AttemptTimeout    time.Duration `yaml:"attemptTimeout"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	UserAgent         string        `yaml:"userAgent"`
}

type ScorerConfig struct {
	GeminiAPIKey string        `yaml:"geminiApiKey"`
	Model        string        `yaml:"model"`
	BatchSize    int           `yaml:"batchSize"`
	MaxArticles  int           `yaml:"maxArticles"`
	BatchDelay   time.Duration `yaml:"batchDelay"`
	DailyBudget  int           `yaml:"dailyBudget"` // 0 = unlimited
}

type CacheConfig struct {
	Backend     string        `yaml:"backend"` // memory | file | postgres
	FilePath    string        `yaml:"filePath"`
	DatabaseURL string        `yaml:"databaseUrl"`
	TTL         time.Duration `yaml:"ttl"`
}

type PipelineConfig struct {
	Concurrency      int           `yaml:"concurrency"`
	KeywordDelay     time.Duration `yaml:"keywordDelay"`
	LimitPerKeyword  int           `yaml:"limitPerKeyword"`
	ClusterThreshold float64       `yaml:"clusterThreshold"`
	Debug            bool          `yaml:"debug"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		LogLevel:       "info",
		Timezone:       defaultTimezone,
		MonitoringPort: "8080",
		Fetch: FetchConfig{
			Scope: "jp",
			Proxies: []string{
				"https://api.allorigins.win/raw?url=",
				"https://api.rss2json.com/v1/api.json?rss_url=",
			},
			AttemptTimeout:    8 * time.Second,
			RequestsPerSecond: 1,
		},
		Scorer: ScorerConfig{
			Model:       "gemini-1.5-flash",
			BatchSize:   5,
			MaxArticles: 20,
			BatchDelay:  time.Second,
		},
		Cache: CacheConfig{
			Backend:  "memory",
			FilePath: "news_cache.json",
			TTL:      24 * time.Hour,
		},
		Pipeline: PipelineConfig{
			Concurrency:      1,
			KeywordDelay:     time.Second,
			LimitPerKeyword:  10,
			ClusterThreshold: 0.75,
		},
	}
}

// Load reads the file named by BIZFEED_CONFIG (if any) over the defaults,
// then applies environment overrides.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(configPathEnv))
}

func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: cannot read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: cannot parse %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.bindTimezone(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnvOverrides() {
	c.Scorer.GeminiAPIKey = getEnvOrDefault("GEMINI_API_KEY", c.Scorer.GeminiAPIKey)
	c.Scorer.Model = getEnvOrDefault("GEMINI_MODEL", c.Scorer.Model)
	c.Scorer.DailyBudget = getEnvIntOrDefault("MAX_GEMINI_REQUESTS", c.Scorer.DailyBudget)

	c.Cache.Backend = getEnvOrDefault("CACHE_BACKEND", c.Cache.Backend)
	c.Cache.FilePath = getEnvOrDefault("CACHE_FILE_PATH", c.Cache.FilePath)
	c.Cache.DatabaseURL = getEnvOrDefault("DATABASE_URL", c.Cache.DatabaseURL)

	c.VocabPath = getEnvOrDefault("VOCAB_PATH", c.VocabPath)
	c.MonitoringPort = getEnvOrDefault("MONITORING_PORT", c.MonitoringPort)
	c.Timezone = getEnvOrDefault("TZ_NAME", c.Timezone)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.Pipeline.Concurrency = getEnvIntOrDefault("PIPELINE_CONCURRENCY", c.Pipeline.Concurrency)

	if v := os.Getenv("PRESET_KEYWORDS"); v != "" {
		c.Keywords = SplitKeywords(v)
	}
	if os.Getenv("DEBUG") == "true" {
		c.LogLevel = "debug"
		c.Pipeline.Debug = true
	}
}

func (c *Config) bindTimezone() error {
	tz := c.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("config: unknown timezone %q: %w", tz, err)
	}
	c.location = loc
	return nil
}

// Location is the timezone cache keys are dated in.
func (c *Config) Location() *time.Location {
	if c.location != nil {
		return c.location
	}
	if loc, err := time.LoadLocation(defaultTimezone); err == nil {
		return loc
	}
	return time.FixedZone("JST", 9*60*60)
}

func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "memory":
	case "file":
		if c.Cache.FilePath == "" {
			return fmt.Errorf("cache.filePath is required for the file backend")
		}
	case "postgres":
		if c.Cache.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("cache.backend must be 'memory', 'file' or 'postgres', got %q", c.Cache.Backend)
	}
	if c.Fetch.Scope != "jp" && c.Fetch.Scope != "global" {
		return fmt.Errorf("fetch.scope must be 'jp' or 'global'")
	}
	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("pipeline.concurrency must be at least 1")
	}
	if c.Pipeline.ClusterThreshold <= 0 || c.Pipeline.ClusterThreshold > 1 {
		return fmt.Errorf("pipeline.clusterThreshold must be in (0, 1]")
	}
	if c.Pipeline.LimitPerKeyword < 1 {
		return fmt.Errorf("pipeline.limitPerKeyword must be positive")
	}
	return nil
}

// SplitKeywords parses a comma-separated keyword list.
func SplitKeywords(s string) []string {
	var out []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// MaskSecret shows only the ends of a credential.
func MaskSecret(s string) string {
	switch {
	case s == "":
		return "not set"
	case len(s) <= 8:
		return "***"
	default:
		return s[:4] + "..." + s[len(s)-4:]
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
