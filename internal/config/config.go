package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Worker    WorkerConfig    `yaml:"worker" mapstructure:"worker"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Validator ValidatorConfig `yaml:"validator" mapstructure:"validator"`
	Email     EmailConfig     `yaml:"email" mapstructure:"email"`
	Social    SocialConfig    `yaml:"social" mapstructure:"social"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP trigger surface.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// WorkerConfig bounds a single poll-and-process invocation.
type WorkerConfig struct {
	BatchSize  int `yaml:"batch_size" mapstructure:"batch_size"`
	BudgetSecs int `yaml:"budget_secs" mapstructure:"budget_secs"`
}

// FetchConfig configures the shared HTTP fetcher.
type FetchConfig struct {
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
	PerHostRPS   float64 `yaml:"per_host_rps" mapstructure:"per_host_rps"`
	PerHostBurst int     `yaml:"per_host_burst" mapstructure:"per_host_burst"`
	MaxBodyBytes int64   `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	FetchRetries int     `yaml:"fetch_retries" mapstructure:"fetch_retries"`
}

// ValidatorConfig configures website health validation.
type ValidatorConfig struct {
	TimeoutSecs int   `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	SlowLoadMs  int64 `yaml:"slow_load_ms" mapstructure:"slow_load_ms"`
}

// EmailConfig configures the contact-email extractor.
type EmailConfig struct {
	MaxPages      int    `yaml:"max_pages" mapstructure:"max_pages"`
	MaxDepth      int    `yaml:"max_depth" mapstructure:"max_depth"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RespectRobots bool   `yaml:"respect_robots" mapstructure:"respect_robots"`
	BotName       string `yaml:"bot_name" mapstructure:"bot_name"`
}

// SocialConfig configures the social-profile extractor.
type SocialConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("worker.batch_size", 10)
	v.SetDefault("worker.budget_secs", 45)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; LeadScoutBot/1.0)")
	v.SetDefault("fetch.per_host_rps", 2.0)
	v.SetDefault("fetch.per_host_burst", 4)
	v.SetDefault("fetch.max_body_bytes", 512*1024)
	v.SetDefault("fetch.fetch_retries", 2)
	v.SetDefault("validator.timeout_secs", 10)
	v.SetDefault("validator.slow_load_ms", 5000)
	v.SetDefault("email.max_pages", 5)
	v.SetDefault("email.max_depth", 2)
	v.SetDefault("email.timeout_secs", 10)
	v.SetDefault("email.respect_robots", true)
	v.SetDefault("email.bot_name", "LeadScoutBot")
	v.SetDefault("social.timeout_secs", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
