package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the loader reads.
const EnvPrefix = "DAYREPORT"

// appDirName is the directory created under the user config dir.
const appDirName = "dayreport"

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir := os.Getenv(EnvPrefix + "_CONFIG_DIR"); dir != "" {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Storage.DataRoot == "" {
		cfg.Storage.DataRoot = filepath.Join(cfg.Storage.ConfigRoot, "dataZip")
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if cfg.Quota.Backend == "postgres" && cfg.Database.URL == "" {
		return errors.New("config validation failed: database.url is required when quota.backend is postgres")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8765)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("storage.config_root", defaultConfigRoot())
	v.SetDefault("storage.data_root", "")

	v.SetDefault("quota.daily_limit", 120)
	v.SetDefault("quota.max_artifact_bytes", int64(200*1024*1024))
	v.SetDefault("quota.backend", "file")

	v.SetDefault("database.url", "")

	v.SetDefault("fetch.page_size", 100)
	v.SetDefault("fetch.pause_every", 10)
	v.SetDefault("fetch.pause", 100*time.Millisecond)
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.max_response_bytes", int64(50*1024*1024))
	v.SetDefault("fetch.max_pages", 10000)

	v.SetDefault("task.worker_count", 4)
	v.SetDefault("task.queue_size", 100)

	v.SetDefault("transport.max_connections", 10)
	v.SetDefault("transport.max_message_bytes", int64(10*1024*1024))
	v.SetDefault("transport.ping_interval", 30*time.Second)
	v.SetDefault("transport.allowed_origins", []string{})

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("report.format", "xlsx")
	v.SetDefault("reveal.enabled", false)
}

func defaultConfigRoot() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, appDirName)
}
