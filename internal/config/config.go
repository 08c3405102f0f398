// Package config builds the single configuration value shared by the
// pipeline. Sources, lowest precedence first: built-in defaults, newsroom.yml
// in the working directory, a .env file next to it, and the process
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultLLMBaseURL   = "https://openrouter.ai/api/v1"
	DefaultLLMModel     = "openai/gpt-4o-mini"
	DefaultMaxTokens    = 4096
	DefaultNewsBaseURL  = "https://newsdata.io/api/1"
	DefaultMaxArticles  = 10
	DefaultNewsQuery    = "artificial intelligence OR technology"
	DefaultLanguage     = "en"
	DefaultStageTimeout = 2 * time.Minute
	DefaultAddr         = ":8080"
)

// LLMConfig configures the task-execution engine.
type LLMConfig struct {
	APIKey      string  `yaml:"apiKey,omitempty"`
	BaseURL     string  `yaml:"baseURL,omitempty"`
	Model       string  `yaml:"model,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
	MaxTokens   int     `yaml:"maxTokens,omitempty"`
}

// NewsConfig configures the news search tool.
type NewsConfig struct {
	APIKey      string `yaml:"apiKey,omitempty"`
	BaseURL     string `yaml:"baseURL,omitempty"`
	MaxArticles int    `yaml:"maxArticles,omitempty"`
	Query       string `yaml:"query,omitempty"`
	Country     string `yaml:"country,omitempty"`
	Category    string `yaml:"category,omitempty"`
	Language    string `yaml:"language,omitempty"`
}

// PipelineConfig configures the editorial supervisor and its workers.
type PipelineConfig struct {
	StageTimeout time.Duration `yaml:"stageTimeout,omitempty"`
	PromptsDir   string        `yaml:"promptsDir,omitempty"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// ServerConfig configures the A2A and metrics listeners.
type ServerConfig struct {
	Addr        string `yaml:"addr,omitempty"`
	MetricsAddr string `yaml:"metricsAddr,omitempty"`
	Tracing     bool   `yaml:"tracing,omitempty"`
}

// Config holds every setting. It is built once at startup and passed down by
// value or pointer; nothing reads it from a global.
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	News     NewsConfig     `yaml:"news"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
}

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL:   DefaultLLMBaseURL,
			Model:     DefaultLLMModel,
			MaxTokens: DefaultMaxTokens,
		},
		News: NewsConfig{
			BaseURL:     DefaultNewsBaseURL,
			MaxArticles: DefaultMaxArticles,
			Query:       DefaultNewsQuery,
			Language:    DefaultLanguage,
		},
		Pipeline: PipelineConfig{StageTimeout: DefaultStageTimeout},
		Log:      LogConfig{Level: "info", Format: "text"},
		Server:   ServerConfig{Addr: DefaultAddr},
	}
}

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

// Load builds the configuration for dir using the process environment.
func Load(dir string) (*Config, error) {
	return LoadWith(dir, os.LookupEnv)
}

// LoadWith is Load with an explicit environment lookup.
func LoadWith(dir string, lookup LookupFunc) (*Config, error) {
	cfg := Default()
	if err := loadFile(dir, cfg); err != nil {
		return nil, err
	}

	dotenv, err := readDotEnv(dir)
	if err != nil {
		return nil, err
	}
	env := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := applyEnv(cfg, env); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile overlays newsroom.yml or newsroom.yaml from dir onto cfg. A
// missing file is not an error.
func loadFile(dir string, cfg *Config) error {
	for _, name := range []string{"newsroom.yml", "newsroom.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
		return nil
	}
	return nil
}

// readDotEnv reads dir/.env without touching the process environment.
func readDotEnv(dir string) (map[string]string, error) {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return vars, nil
}

func applyEnv(cfg *Config, env LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := env(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := env(key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("LLM_API_KEY", &cfg.LLM.APIKey)
	str("LLM_BASE_URL", &cfg.LLM.BaseURL)
	str("LLM_MODEL", &cfg.LLM.Model)
	num("LLM_MAX_TOKENS", &cfg.LLM.MaxTokens)
	if v, ok := env("LLM_TEMPERATURE"); ok && strings.TrimSpace(v) != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("LLM_TEMPERATURE: %w", err))
		} else {
			cfg.LLM.Temperature = f
		}
	}

	str("NEWSDATA_API_KEY", &cfg.News.APIKey)
	num("MAX_ARTICLES_PER_FETCH", &cfg.News.MaxArticles)

	str("LOG_LEVEL", &cfg.Log.Level)
	str("PROMPTS_DIR", &cfg.Pipeline.PromptsDir)
	if v, ok := env("STAGE_TIMEOUT"); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("STAGE_TIMEOUT: %w", err))
		} else {
			cfg.Pipeline.StageTimeout = d
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: environment: %w", errors.Join(errs...))
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("llm temperature %.2f out of range [0, 2]", c.LLM.Temperature))
	}
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("llm max tokens must be positive, got %d", c.LLM.MaxTokens))
	}
	if c.News.MaxArticles <= 0 {
		errs = append(errs, fmt.Errorf("max articles per fetch must be positive, got %d", c.News.MaxArticles))
	}
	if c.Pipeline.StageTimeout <= 0 {
		errs = append(errs, fmt.Errorf("stage timeout must be positive, got %s", c.Pipeline.StageTimeout))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format %q must be text or json", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %w", errors.Join(errs...))
	}
	return nil
}
