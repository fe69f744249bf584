package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Backend    BackendConfig    `mapstructure:"backend"`
	Search     SearchConfig     `mapstructure:"search"`
	Experts    ExpertsConfig    `mapstructure:"experts"`
	Quota      QuotaConfig      `mapstructure:"quota"`
	Cache      CacheConfig      `mapstructure:"cache"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	I18n       I18nConfig       `mapstructure:"i18n"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type BackendConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	ThinkingModel   string        `mapstructure:"thinking_model"`
	VisionModel     string        `mapstructure:"vision_model"`
	DecisionTimeout time.Duration `mapstructure:"decision_timeout"`
	VisionTimeout   time.Duration `mapstructure:"vision_timeout"`
	ForwardTimeout  time.Duration `mapstructure:"forward_timeout"`
}

type SearchConfig struct {
	APIKey     string `mapstructure:"api_key"`
	EngineID   string `mapstructure:"engine_id"`
	MaxResults int    `mapstructure:"max_results"`
}

type ExpertsConfig struct {
	Directory string `mapstructure:"directory"`
}

type QuotaConfig struct {
	DailyLimit int         `mapstructure:"daily_limit"`
	Store      string      `mapstructure:"store"` // "file" or "redis"
	FilePath   string      `mapstructure:"file_path"`
	Redis      RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	MaxSize int           `mapstructure:"max_size"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Output string     `mapstructure:"output"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

type I18nConfig struct {
	DefaultLanguage string   `mapstructure:"default_language"`
	Languages       []string `mapstructure:"languages"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Environment variable overrides for secrets and deployment targets
	viper.BindEnv("backend.base_url", "OLLAMA_BASE_URL")
	viper.BindEnv("backend.thinking_model", "THINKING_MODEL")
	viper.BindEnv("backend.vision_model", "VISION_MODEL")
	viper.BindEnv("search.api_key", "GOOGLE_API_KEY")
	viper.BindEnv("search.engine_id", "GOOGLE_CSE_ID")
	viper.BindEnv("quota.redis.addr", "REDIS_ADDR")
	viper.BindEnv("quota.redis.password", "REDIS_PASSWORD")

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.addr", ":5000")
	viper.SetDefault("backend.base_url", "http://localhost:11434")
	viper.SetDefault("backend.thinking_model", "gpt-oss:20b")
	viper.SetDefault("backend.vision_model", "gemma3:4b")
	viper.SetDefault("backend.decision_timeout", 45*time.Second)
	viper.SetDefault("backend.vision_timeout", 300*time.Second)
	viper.SetDefault("backend.forward_timeout", 180*time.Second)
	viper.SetDefault("search.max_results", 5)
	viper.SetDefault("experts.directory", "prompts")
	viper.SetDefault("quota.daily_limit", 100)
	viper.SetDefault("quota.store", "file")
	viper.SetDefault("quota.file_path", "usage.json")
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.ttl", 15*time.Minute)
	viper.SetDefault("cache.max_size", 1000)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("i18n.default_language", "zh-TW")
	viper.SetDefault("i18n.languages", []string{"en", "zh-TW"})
}

func validateConfig(cfg *Config) error {
	if cfg.Backend.BaseURL == "" {
		return fmt.Errorf("backend base_url is required")
	}
	if cfg.Backend.ThinkingModel == "" {
		return fmt.Errorf("backend thinking_model is required")
	}
	switch cfg.Quota.Store {
	case "file", "redis":
	default:
		return fmt.Errorf("unsupported quota store: %s", cfg.Quota.Store)
	}
	if cfg.Quota.Store == "redis" && cfg.Quota.Redis.Addr == "" {
		return fmt.Errorf("quota redis addr is required when store is redis")
	}
	return nil
}
