package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/example/engdrill/internal/spaced_repetition"
)

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Drill     DrillConfig     `mapstructure:"drill"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // gin mode: debug, release, test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite3 or postgres
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

// LoggingConfig holds settings for the logger.
type LoggingConfig struct {
	Directory  string `mapstructure:"directory"`
	Level      string `mapstructure:"level"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	Console    bool   `mapstructure:"console"`
}

// DrillConfig tunes ingestion, ranking and sessions.
type DrillConfig struct {
	DefaultSessionSize int                       `mapstructure:"default_session_size"`
	MaxSessionSize     int                       `mapstructure:"max_session_size"`
	SessionTTL         time.Duration             `mapstructure:"session_ttl"`
	ReviveMastered     bool                      `mapstructure:"revive_mastered"`
	SuccessThreshold   float64                   `mapstructure:"success_threshold"`
	Weights            spaced_repetition.Weights `mapstructure:"weights"`
}

// SchedulerConfig holds the background sweep settings.
type SchedulerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	AttemptRetention time.Duration `mapstructure:"attempt_retention"`
}

// setDefaults sets the default values for the configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.path", filepath.Join("data", "engdrill.db"))
	v.SetDefault("database.dsn", "")

	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size", 10) // megabytes
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 7) // days
	v.SetDefault("logging.compress", true)
	v.SetDefault("logging.console", true)

	w := spaced_repetition.DefaultWeights()
	v.SetDefault("drill.default_session_size", 5)
	v.SetDefault("drill.max_session_size", 20)
	v.SetDefault("drill.session_ttl", 24*time.Hour)
	v.SetDefault("drill.revive_mastered", false)
	v.SetDefault("drill.success_threshold", 0.8)
	v.SetDefault("drill.weights.frequency", w.Frequency)
	v.SetDefault("drill.weights.severity", w.Severity)
	v.SetDefault("drill.weights.recency", w.Recency)
	v.SetDefault("drill.weights.failed", w.Failed)
	v.SetDefault("drill.weights.due", w.Due)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.sweep_interval", time.Hour)
	v.SetDefault("scheduler.attempt_retention", 7*24*time.Hour)
}

// Load reads configuration from an optional .env file, an optional
// config/config.yaml under projectRoot and ENGDRILL_* environment variables.
// An explicit configFile replaces the yaml lookup.
func Load(projectRoot, configFile string) (*Config, error) {
	// Variables already set in the environment win over .env
	if err := godotenv.Load(filepath.Join(projectRoot, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(filepath.Join(projectRoot, "config"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("ENGDRILL") // e.g. ENGDRILL_SERVER_PORT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// It's okay if the file doesn't exist; defaults and env vars will be used.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3":
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Drill.MaxSessionSize < 1 {
		return errors.New("drill.max_session_size must be at least 1")
	}
	if c.Drill.DefaultSessionSize < 1 || c.Drill.DefaultSessionSize > c.Drill.MaxSessionSize {
		return fmt.Errorf("drill.default_session_size must be within [1, %d]", c.Drill.MaxSessionSize)
	}
	if c.Drill.SessionTTL <= 0 {
		return errors.New("drill.session_ttl must be positive")
	}
	if c.Drill.SuccessThreshold <= 0 || c.Drill.SuccessThreshold > 1 {
		return errors.New("drill.success_threshold must be within (0, 1]")
	}
	if c.Scheduler.Enabled && c.Scheduler.SweepInterval <= 0 {
		return errors.New("scheduler.sweep_interval must be positive")
	}
	return nil
}
