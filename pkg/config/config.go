package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mcclellann/advledger/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	DB     DBConfig
	Log    LogConfig
	API    APIConfig
	Engine EngineConfig
}

// DBConfig holds the event store location.
type DBConfig struct {
	Path string
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Addr string
}

// EngineConfig holds balances calculation settings.
type EngineConfig struct {
	DailyRate            decimal.Decimal
	TrackAppliedInterest bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.path", "db.sqlite3")
	logDefaults := logger.DefaultConfig()
	v.SetDefault("log.level", logDefaults.Level)
	v.SetDefault("log.format", logDefaults.Format)
	v.SetDefault("log.output", logDefaults.Output)
	v.SetDefault("api.addr", ":8080")
	v.SetDefault("engine.daily_rate", "0.00035")
	v.SetDefault("engine.track_applied_interest", false)
}

// Load reads configuration.
// Priority (highest to lowest):
// 1. Environment variables with ADVLEDGER_ prefix (e.g., ADVLEDGER_DB_PATH)
// 2. configFile, or advledger.yaml in the working directory when configFile is empty
// 3. Built-in defaults
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("advledger")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("ADVLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	rate, err := decimal.NewFromString(v.GetString("engine.daily_rate"))
	if err != nil {
		return nil, fmt.Errorf("engine.daily_rate: %w", err)
	}

	cfg := &Config{
		DB: DBConfig{
			Path: v.GetString("db.path"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		API: APIConfig{
			Addr: v.GetString("api.addr"),
		},
		Engine: EngineConfig{
			DailyRate:            rate,
			TrackAppliedInterest: v.GetBool("engine.track_applied_interest"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.DB.Path) == "" {
		return fmt.Errorf("db.path is required")
	}
	if c.Engine.DailyRate.IsNegative() {
		return fmt.Errorf("engine.daily_rate cannot be negative")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}
