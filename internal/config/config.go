package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Storage   StorageConfig   `mapstructure:"storage"   validate:"required"`
	Quota     QuotaConfig     `mapstructure:"quota"     validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Fetch     FetchConfig     `mapstructure:"fetch"     validate:"required"`
	Task      TaskConfig      `mapstructure:"task"      validate:"required"`
	Transport TransportConfig `mapstructure:"transport" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Report    ReportConfig    `mapstructure:"report"    validate:"required"`
	Reveal    RevealConfig    `mapstructure:"reveal"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Host     string `mapstructure:"host"      validate:"required"`
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// StorageConfig locates the process-owned directories.
type StorageConfig struct {
	// ConfigRoot holds small state files such as the quota counter.
	ConfigRoot string `mapstructure:"config_root" validate:"required"`
	// DataRoot holds one directory per task with the rendered artifacts.
	DataRoot string `mapstructure:"data_root" validate:"required"`
}

// QuotaConfig sets the local artifact budget.
type QuotaConfig struct {
	DailyLimit       int    `mapstructure:"daily_limit"        validate:"required,gt=0"`
	MaxArtifactBytes int64  `mapstructure:"max_artifact_bytes" validate:"required,gt=0"`
	Backend          string `mapstructure:"backend"            validate:"required,oneof=file postgres"`
}

// DatabaseConfig contains all database-related configuration settings.
// Only used when the quota backend is postgres.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// FetchConfig tunes the paginated source retrieval.
type FetchConfig struct {
	PageSize         int           `mapstructure:"page_size"          validate:"required,gt=0"`
	PauseEvery       int           `mapstructure:"pause_every"        validate:"gte=0"`
	Pause            time.Duration `mapstructure:"pause"              validate:"gte=0"`
	Timeout          time.Duration `mapstructure:"timeout"            validate:"required,gt=0"`
	MaxResponseBytes int64         `mapstructure:"max_response_bytes" validate:"required,gt=0"`
	MaxPages         int           `mapstructure:"max_pages"          validate:"required,gt=0"`
}

// TaskConfig sizes the background worker pool.
type TaskConfig struct {
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`
	QueueSize   int `mapstructure:"queue_size"   validate:"required,gt=0"`
}

// TransportConfig bounds the subscriber connections.
type TransportConfig struct {
	MaxConnections  int           `mapstructure:"max_connections"   validate:"required,gt=0"`
	MaxMessageBytes int64         `mapstructure:"max_message_bytes" validate:"required,gt=0"`
	PingInterval    time.Duration `mapstructure:"ping_interval"     validate:"required,gt=0"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// AuthConfig enables bearer authentication when a secret is set.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
}

// ReportConfig selects the artifact format.
type ReportConfig struct {
	Format string `mapstructure:"format" validate:"required,oneof=xlsx csv"`
}

// RevealConfig controls whether validated reveal requests open the OS file manager.
type RevealConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
