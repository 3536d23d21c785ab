package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"openproxy/internal/logger"
	"openproxy/pkg/checker"
	"openproxy/pkg/crawler"
	"openproxy/pkg/proxy"
)

const envPrefix = "OPENPROXY"

type Config struct {
	Checker CheckerConfig `mapstructure:"checker" validate:"required"`
	Crawler CrawlerConfig `mapstructure:"crawler" validate:"required"`
	Log     LogConfig     `mapstructure:"log" validate:"required"`
}

type CheckerConfig struct {
	TestURL     string        `mapstructure:"test_url" validate:"required,url"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"required,min=10ms,max=5m"`
	Concurrency int           `mapstructure:"concurrency" validate:"required,min=1,max=10000"`
	UserAgent   string        `mapstructure:"user_agent" validate:"required,min=1"`
	GeoDBPath   string        `mapstructure:"geo_db_path"`
}

type CrawlerConfig struct {
	Timeout     time.Duration `mapstructure:"timeout" validate:"required,min=1s,max=5m"`
	UserAgent   string        `mapstructure:"user_agent" validate:"required,min=1"`
	DefaultType string        `mapstructure:"default_type" validate:"required,proxy_type"`
	Engine      string        `mapstructure:"engine" validate:"required,engine"`
	RateLimit   float64       `mapstructure:"rate_limit" validate:"min=0"`
	Sources     []string      `mapstructure:"sources" validate:"dive,source"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=console json"`
}

func setDefaults(v *viper.Viper) {
	// Checker defaults
	v.SetDefault("checker.test_url", checker.DefaultTestURL)
	v.SetDefault("checker.timeout", checker.DefaultTimeout.String())
	v.SetDefault("checker.concurrency", checker.DefaultConcurrency)
	v.SetDefault("checker.user_agent", checker.DefaultUserAgent)
	v.SetDefault("checker.geo_db_path", "")

	// Crawler defaults
	v.SetDefault("crawler.timeout", crawler.DefaultTimeout.String())
	v.SetDefault("crawler.user_agent", crawler.DefaultUserAgent)
	v.SetDefault("crawler.default_type", proxy.TypeHTTP.String())
	v.SetDefault("crawler.engine", string(crawler.EngineHTTP))
	v.SetDefault("crawler.rate_limit", 0)
	v.SetDefault("crawler.sources", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// LoadConfig merges defaults, the YAML config file and OPENPROXY_* environment
// variables, then validates the result. A .env file in the working directory
// is loaded into the environment first. An explicit configPath must exist;
// otherwise a missing config file just means defaults.
func LoadConfig(configPath string) (*Config, error) {
	log := logger.New("config")

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/openproxy")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Debug().Msg("no config file found, using defaults and environment variables")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func Validate(config *Config) error {
	validate := validator.New()
	if err := registerCustomValidators(validate); err != nil {
		return fmt.Errorf("failed to register validators: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func registerCustomValidators(validate *validator.Validate) error {
	if err := validate.RegisterValidation("proxy_type", func(fl validator.FieldLevel) bool {
		_, err := proxy.ParseType(fl.Field().String())
		return err == nil
	}); err != nil {
		return err
	}

	if err := validate.RegisterValidation("engine", func(fl validator.FieldLevel) bool {
		_, err := crawler.ParseEngine(fl.Field().String())
		return err == nil
	}); err != nil {
		return err
	}

	return validate.RegisterValidation("source", func(fl validator.FieldLevel) bool {
		_, err := crawler.SelectSources([]string{fl.Field().String()})
		return err == nil
	})
}

// SaveConfigTemplate writes the defaults to path. It refuses to overwrite an
// existing file.
func SaveConfigTemplate(path string) error {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")

	if err := v.SafeWriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config template: %w", err)
	}
	return nil
}

// PrintConfig logs the effective configuration at debug level.
func PrintConfig(config *Config) {
	log := logger.New("config")
	log.Debug().
		Str("test_url", config.Checker.TestURL).
		Dur("timeout", config.Checker.Timeout).
		Int("concurrency", config.Checker.Concurrency).
		Str("geo_db", valueOrUnset(config.Checker.GeoDBPath)).
		Msg("checker")
	log.Debug().
		Dur("timeout", config.Crawler.Timeout).
		Str("engine", config.Crawler.Engine).
		Str("default_type", config.Crawler.DefaultType).
		Float64("rate_limit", config.Crawler.RateLimit).
		Strs("sources", config.Crawler.Sources).
		Msg("crawler")
}

func valueOrUnset(s string) string {
	if s == "" {
		return "[NOT SET]"
	}
	return s
}

func (c *Config) CheckerConfig() checker.Config {
	return checker.Config{
		Timeout:     c.Checker.Timeout,
		Concurrency: c.Checker.Concurrency,
		TestURL:     c.Checker.TestURL,
		GeoDBPath:   c.Checker.GeoDBPath,
		UserAgent:   c.Checker.UserAgent,
	}
}

// CrawlerConfig converts the crawler section. The type and engine fields
// are assumed validated; unknown values fall back to the defaults.
func (c *Config) CrawlerConfig() crawler.Config {
	typ, err := proxy.ParseType(c.Crawler.DefaultType)
	if err != nil {
		typ = proxy.TypeHTTP
	}
	engine, err := crawler.ParseEngine(c.Crawler.Engine)
	if err != nil {
		engine = crawler.EngineHTTP
	}
	return crawler.Config{
		Timeout:     c.Crawler.Timeout,
		UserAgent:   c.Crawler.UserAgent,
		DefaultType: typ,
		Engine:      engine,
		RateLimit:   c.Crawler.RateLimit,
	}
}

// Sources resolves the configured source names against the built-in
// catalog. No names means every source.
func (c *Config) Sources() ([]crawler.Source, error) {
	return crawler.SelectSources(c.Crawler.Sources)
}
