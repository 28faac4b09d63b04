package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv   = "BRIEFLY_CONFIG"
	newsAPIKeyEnv   = "NEWSAPI_KEY"
	slackWebhookEnv = "SLACK_WEBHOOK_URL"
	openAIKeyEnv    = "OPENAI_API_KEY"
	postgresDSNEnv  = "POSTGRES_DSN"
	redisAddrEnv    = "REDIS_ADDR"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Dedupe    DedupeConfig    `yaml:"dedupe"`
	NewsAPI   NewsAPIConfig   `yaml:"newsapi"`
	Slack     SlackConfig     `yaml:"slack"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Sources   []SourceConfig  `yaml:"sources"`
}

// LoggingConfig selects handler format and verbosity.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// PipelineConfig tunes the aggregation run itself.
type PipelineConfig struct {
	Parallelism int `yaml:"parallelism"`
}

// SchedulerConfig defines when recurring collection runs execute.
type SchedulerConfig struct {
	CronExpression string `yaml:"cronExpression"`
}

// DedupeConfig sizes the content-hash cache and selects an optional
// persistent backend ("postgres", "redis" or empty for in-memory only).
type DedupeConfig struct {
	MaxEntries  int    `yaml:"maxEntries"`
	Store       string `yaml:"store"`
	PostgresDSN string `yaml:"postgresDsn"`
	RedisAddr   string `yaml:"redisAddr"`
}

// NewsAPIConfig wires the NewsAPI.org adapter.
type NewsAPIConfig struct {
	APIKey   string `yaml:"apiKey"`
	Language string `yaml:"language"`
}

// SlackConfig wires the digest publisher.
type SlackConfig struct {
	WebhookURL string `yaml:"webhookUrl"`
}

// OpenAIConfig defines how to contact the digest summarizer.
type OpenAIConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// SourceConfig is the YAML shape of one configured source; the registry
// validates and converts it into the domain form.
type SourceConfig struct {
	Name                  string `yaml:"name"`
	Type                  string `yaml:"type"`
	Query                 string `yaml:"query"`
	MaxItems              int    `yaml:"maxItems"`
	UpdateIntervalSeconds int    `yaml:"updateIntervalSeconds"`
	Enabled               bool   `yaml:"enabled"`
}

// Interval converts the configured seconds into a duration.
func (s SourceConfig) Interval() time.Duration {
	return time.Duration(s.UpdateIntervalSeconds) * time.Second
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

// LoadFile reads configuration from an explicit path, failing instead of
// falling back; used by the CLI --config flag.
func LoadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := defaultConfig()
	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg = mergeConfig(cfg, fileCfg)
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(newsAPIKeyEnv); v != "" {
		c.NewsAPI.APIKey = v
	}

	if v := os.Getenv(slackWebhookEnv); v != "" {
		c.Slack.WebhookURL = v
	}

	if v := os.Getenv(openAIKeyEnv); v != "" {
		c.OpenAI.APIKey = v
	}

	if v := os.Getenv(postgresDSNEnv); v != "" {
		c.Dedupe.PostgresDSN = v
	}

	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Dedupe.RedisAddr = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Pipeline.Parallelism != 0 {
		base.Pipeline.Parallelism = override.Pipeline.Parallelism
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}

	if override.Dedupe.MaxEntries != 0 {
		base.Dedupe.MaxEntries = override.Dedupe.MaxEntries
	}
	if override.Dedupe.Store != "" {
		base.Dedupe.Store = override.Dedupe.Store
	}
	if override.Dedupe.PostgresDSN != "" {
		base.Dedupe.PostgresDSN = override.Dedupe.PostgresDSN
	}
	if override.Dedupe.RedisAddr != "" {
		base.Dedupe.RedisAddr = override.Dedupe.RedisAddr
	}

	if override.NewsAPI.APIKey != "" {
		base.NewsAPI.APIKey = override.NewsAPI.APIKey
	}
	if override.NewsAPI.Language != "" {
		base.NewsAPI.Language = override.NewsAPI.Language
	}

	if override.Slack.WebhookURL != "" {
		base.Slack.WebhookURL = override.Slack.WebhookURL
	}

	if override.OpenAI.Endpoint != "" {
		base.OpenAI.Endpoint = override.OpenAI.Endpoint
	}
	if override.OpenAI.Model != "" {
		base.OpenAI.Model = override.OpenAI.Model
	}
	if override.OpenAI.APIKey != "" {
		base.OpenAI.APIKey = override.OpenAI.APIKey
	}
	if override.OpenAI.SystemPrompt != "" {
		base.OpenAI.SystemPrompt = override.OpenAI.SystemPrompt
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Pipeline:  PipelineConfig{Parallelism: 1},
		Scheduler: SchedulerConfig{CronExpression: "0 6 * * *"},
		Dedupe:    DedupeConfig{MaxEntries: 5000},
		NewsAPI:   NewsAPIConfig{Language: "en"},
		OpenAI: OpenAIConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4o-mini",
			SystemPrompt: "You summarize AI and machine learning news into a short daily digest.",
		},
		Sources: []SourceConfig{
			{
				Name:                  "arxiv-ai",
				Type:                  "arxiv",
				Query:                 "cat:cs.AI OR cat:cs.LG",
				MaxItems:              20,
				UpdateIntervalSeconds: 3600,
				Enabled:               true,
			},
			{
				Name:                  "newsapi-ai",
				Type:                  "newsapi",
				Query:                 "artificial intelligence OR machine learning",
				MaxItems:              10,
				UpdateIntervalSeconds: 3600,
				Enabled:               true,
			},
			{
				Name:                  "techcrunch-ai",
				Type:                  "rss",
				Query:                 "https://techcrunch.com/tag/artificial-intelligence/feed/",
				MaxItems:              15,
				UpdateIntervalSeconds: 1800,
				Enabled:               true,
			},
		},
	}
}
