// File: config/config.go

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/teilomillet/promptopt/utils"
)

type Config struct {
	Environment  string         `env:"APP_ENV" envDefault:"development" validate:"oneof=development staging production test"`
	LogLevel     utils.LogLevel `env:"LOG_LEVEL" envDefault:"INFO"`
	DefaultModel string         `env:"DEFAULT_MODEL" envDefault:"gpt-4" validate:"required"`
	PricingFile  string         `env:"PRICING_FILE"`

	DatabasePath string `env:"DATABASE_PATH" envDefault:"promptopt.db" validate:"required"`
	RedisURL     string `env:"REDIS_URL"`
	HTTPAddr     string `env:"HTTP_ADDR" envDefault:":8000" validate:"required"`

	Workers        int           `env:"WORKER_CONCURRENCY" envDefault:"4" validate:"min=1"`
	QueueSize      int           `env:"TASK_QUEUE_SIZE" envDefault:"256" validate:"min=1"`
	TaskSoftLimit  time.Duration `env:"TASK_SOFT_TIME_LIMIT" envDefault:"25m" validate:"gt=0"`
	TaskHardLimit  time.Duration `env:"TASK_TIME_LIMIT" envDefault:"30m" validate:"gtefield=TaskSoftLimit"`
	TaskMaxRetries int           `env:"TASK_MAX_RETRIES" envDefault:"3" validate:"min=0"`
	TaskRetryDelay time.Duration `env:"TASK_RETRY_DELAY" envDefault:"2s"`
	ResultExpiry   time.Duration `env:"RESULT_EXPIRES" envDefault:"1h" validate:"gt=0"`

	JanitorSchedule    string `env:"JANITOR_SCHEDULE" envDefault:"@every 10m"`
	UsageResetSchedule string `env:"USAGE_RESET_SCHEDULE" envDefault:"0 0 1 * *"`

	JudgeModel        string        `env:"JUDGE_MODEL"`
	JudgeTimeout      time.Duration `env:"JUDGE_TIMEOUT" envDefault:"30s" validate:"gt=0"`
	GenerationTimeout time.Duration `env:"GENERATION_TIMEOUT" envDefault:"2m" validate:"gt=0"`
	LLMRatePerMinute  int           `env:"LLM_RATE_PER_MINUTE" envDefault:"60" validate:"min=0"`
	OpenAIBaseURL     string        `env:"OPENAI_BASE_URL"`
	AnthropicBaseURL  string        `env:"ANTHROPIC_BASE_URL"`

	DefaultReductionTarget     float64 `env:"DEFAULT_TOKEN_REDUCTION_TARGET" envDefault:"0.4" validate:"gte=0.1,lte=0.9"`
	DefaultQualityThreshold    float64 `env:"DEFAULT_QUALITY_THRESHOLD" envDefault:"8.0" validate:"gte=1,lte=10"`
	MaxPromptLength            int     `env:"MAX_PROMPT_LENGTH" envDefault:"10000" validate:"min=1"`
	ServiceCostPerOptimization float64 `env:"SERVICE_COST_PER_OPTIMIZATION" envDefault:"0.01" validate:"gte=0"`

	APIKeys map[string]string
	Logger  utils.Logger
}

var validate = validator.New()

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig(options ...ConfigOption) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := &Config{
		APIKeys: make(map[string]string),
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	loadAPIKeys(cfg)
	ApplyOptions(cfg, options...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadAPIKeys(cfg *Config) {
	for _, envVar := range os.Environ() {
		key, value, found := strings.Cut(envVar, "=")
		if found && value != "" && strings.HasSuffix(strings.ToUpper(key), "_API_KEY") {
			provider := strings.TrimSuffix(strings.ToUpper(key), "_API_KEY")
			cfg.APIKeys[strings.ToLower(provider)] = value
		}
	}

	// The genai SDK reads GEMINI_API_KEY; the catalog calls that provider "google".
	if key, ok := cfg.APIKeys["gemini"]; ok {
		if _, exists := cfg.APIKeys["google"]; !exists {
			cfg.APIKeys["google"] = key
		}
	}
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// APIKey returns the key configured for a provider, if any.
func (c *Config) APIKey(provider string) (string, bool) {
	key, ok := c.APIKeys[strings.ToLower(provider)]
	return key, ok && key != ""
}

// GetLogger returns the configured logger or a stderr logger at LogLevel.
func (c *Config) GetLogger() utils.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return utils.NewLogger(c.LogLevel)
}

type ConfigOption func(*Config)

// NewConfig returns the built-in defaults without reading the environment.
func NewConfig() *Config {
	return &Config{
		Environment:                "development",
		LogLevel:                   utils.LogLevelInfo,
		DefaultModel:               "gpt-4",
		DatabasePath:               "promptopt.db",
		HTTPAddr:                   ":8000",
		Workers:                    4,
		QueueSize:                  256,
		TaskSoftLimit:              25 * time.Minute,
		TaskHardLimit:              30 * time.Minute,
		TaskMaxRetries:             3,
		TaskRetryDelay:             2 * time.Second,
		ResultExpiry:               time.Hour,
		JanitorSchedule:            "@every 10m",
		UsageResetSchedule:         "0 0 1 * *",
		JudgeTimeout:               30 * time.Second,
		GenerationTimeout:          2 * time.Minute,
		LLMRatePerMinute:           60,
		DefaultReductionTarget:     0.4,
		DefaultQualityThreshold:    8.0,
		MaxPromptLength:            10000,
		ServiceCostPerOptimization: 0.01,
		APIKeys:                    make(map[string]string),
	}
}

func SetDefaultModel(model string) ConfigOption {
	return func(c *Config) {
		c.DefaultModel = model
	}
}

func SetDatabasePath(path string) ConfigOption {
	return func(c *Config) {
		c.DatabasePath = path
	}
}

func SetRedisURL(url string) ConfigOption {
	return func(c *Config) {
		c.RedisURL = url
	}
}

func SetHTTPAddr(addr string) ConfigOption {
	return func(c *Config) {
		c.HTTPAddr = addr
	}
}

func SetWorkers(n int) ConfigOption {
	return func(c *Config) {
		if n < 1 {
			n = 1
		}
		c.Workers = n
	}
}

func SetTaskTimeLimits(soft, hard time.Duration) ConfigOption {
	return func(c *Config) {
		c.TaskSoftLimit = soft
		c.TaskHardLimit = hard
	}
}

func SetTaskRetries(maxRetries int, delay time.Duration) ConfigOption {
	return func(c *Config) {
		c.TaskMaxRetries = maxRetries
		c.TaskRetryDelay = delay
	}
}

func SetJudge(model string, timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.JudgeModel = model
		c.JudgeTimeout = timeout
	}
}

func SetServiceCost(cost float64) ConfigOption {
	return func(c *Config) {
		c.ServiceCostPerOptimization = cost
	}
}

func SetAPIKey(provider, apiKey string) ConfigOption {
	return func(c *Config) {
		if c.APIKeys == nil {
			c.APIKeys = make(map[string]string)
		}
		c.APIKeys[strings.ToLower(provider)] = apiKey
	}
}

func SetLogLevel(level utils.LogLevel) ConfigOption {
	return func(c *Config) {
		c.LogLevel = level
	}
}

func SetLogger(logger utils.Logger) ConfigOption {
	return func(c *Config) {
		c.Logger = logger
	}
}

func ApplyOptions(cfg *Config, options ...ConfigOption) {
	for _, option := range options {
		option(cfg)
	}
}
