package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read into Settings.
const EnvPrefix = "LAIPREP"

// Settings are the runtime options of the command-line and MCP collaborators.
// They are distinct from the risk model Configuration, which is a document of
// clinical parameters.
type Settings struct {
	ConfigPath   string        `mapstructure:"config_path"`
	UseLogit     bool          `mapstructure:"use_logit"`
	LogLevel     string        `mapstructure:"log_level"`
	LogFormat    string        `mapstructure:"log_format"`
	DataDir      string        `mapstructure:"data_dir"`
	HistoryDB    string        `mapstructure:"history_db"`
	BatchWorkers int           `mapstructure:"batch_workers"`
	RateLimit    float64       `mapstructure:"rate_limit"`
	RateBurst    int           `mapstructure:"rate_burst"`
	CacheSize    int           `mapstructure:"cache_size"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

// DefaultDataDir returns the per-user directory for history and exports.
func DefaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".laiprep"
	}
	return filepath.Join(homeDir, ".laiprep")
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("config_path", "")
	v.SetDefault("use_logit", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("history_db", "")
	v.SetDefault("batch_workers", 4)
	v.SetDefault("rate_limit", 20.0)
	v.SetDefault("rate_burst", 40)
	v.SetDefault("cache_size", 8)
	v.SetDefault("cache_ttl", "10m")
}

// LoadSettings reads settings from defaults, an optional bridge.yaml settings
// file, LAIPREP_* environment variables and any flags already bound to v, in
// increasing order of precedence. A nil v uses a fresh viper instance. When
// settingsFile is empty the file is searched in the working directory,
// ./config and the data directory; a missing file is not an error.
func LoadSettings(v *viper.Viper, settingsFile string) (*Settings, error) {
	if v == nil {
		v = viper.New()
	}

	if settingsFile != "" {
		v.SetConfigFile(settingsFile)
	} else {
		v.SetConfigName("bridge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath(DefaultDataDir())
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading settings file: %w", err)
		}
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("error unmarshaling settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that settings values are usable.
func (s *Settings) Validate() error {
	if _, err := logrus.ParseLevel(s.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %s", s.LogLevel)
	}
	switch strings.ToLower(s.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s (want json or text)", s.LogFormat)
	}
	if s.BatchWorkers <= 0 {
		return fmt.Errorf("batch_workers must be positive, got %d", s.BatchWorkers)
	}
	if s.RateLimit <= 0 {
		return fmt.Errorf("rate_limit must be positive, got %g", s.RateLimit)
	}
	if s.RateBurst <= 0 {
		return fmt.Errorf("rate_burst must be positive, got %d", s.RateBurst)
	}
	if s.CacheSize <= 0 {
		return fmt.Errorf("cache_size must be positive, got %d", s.CacheSize)
	}
	return nil
}

// HistoryDBPath returns the path of the assessment history database.
func (s *Settings) HistoryDBPath() string {
	if s.HistoryDB != "" {
		return s.HistoryDB
	}
	return filepath.Join(s.DataDir, "history.db")
}

// ExportDir returns the directory for JSON exports.
func (s *Settings) ExportDir() string {
	return filepath.Join(s.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (s *Settings) EnsureDataDir() error {
	if err := os.MkdirAll(s.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(s.ExportDir(), 0755)
}

// NewLogger builds a logger writing to out with the configured level and format.
func (s *Settings) NewLogger(out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	if strings.ToLower(s.LogFormat) == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(s.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
