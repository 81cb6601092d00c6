package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig        `mapstructure:"app"`
	Databases []DatabaseConfig `mapstructure:"databases"`
	Backup    BackupConfig     `mapstructure:"backup"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

type DatabaseConfig struct {
	Name     string `mapstructure:"name"`
	Engine   string `mapstructure:"engine"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`

	// PostgreSQL specific
	SSLMode string `mapstructure:"ssl_mode"`

	// MongoDB specific
	AuthDatabase string `mapstructure:"auth_database"`
}

type BackupConfig struct {
	Store              StoreConfig      `mapstructure:"store"`
	Compress           bool             `mapstructure:"compress"`
	RetentionHours     int              `mapstructure:"retention_hours"`
	MaxExportSizeBytes int64            `mapstructure:"max_export_size_bytes"`
	MaxConcurrentJobs  int              `mapstructure:"max_concurrent_jobs"`
	SweepInterval      time.Duration    `mapstructure:"sweep_interval"`
	TerminateGrace     time.Duration    `mapstructure:"terminate_grace"`
	Notifiers          []NotifierConfig `mapstructure:"notifiers"`
}

type StoreConfig struct {
	Type string `mapstructure:"type"`

	// local
	Path string `mapstructure:"path"`

	// AWS S3
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`

	// Google Drive
	CredentialsFile  string `mapstructure:"credentials_file"`
	FolderID         string `mapstructure:"folder_id"`
	ClientSecretFile string `mapstructure:"client_secret_file"`
	OAuthAddr        string `mapstructure:"oauth_addr"`
}

type NotifierConfig struct {
	Type    string `mapstructure:"type"`
	Enabled bool   `mapstructure:"enabled"`

	// Telegram
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("app.name", "mongovault")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("backup.store.type", "local")
	v.SetDefault("backup.store.path", "backups")
	v.SetDefault("backup.compress", true)
	v.SetDefault("backup.retention_hours", 1)
	v.SetDefault("backup.max_export_size_bytes", 512*1024*1024)
	v.SetDefault("backup.max_concurrent_jobs", 4)
	v.SetDefault("backup.sweep_interval", "5m")
	v.SetDefault("backup.terminate_grace", "5s")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Databases) == 0 {
		return fmt.Errorf("at least one database configuration is required")
	}

	for i, db := range c.Databases {
		if db.Name == "" {
			return fmt.Errorf("database[%d]: name is required", i)
		}
		if db.Engine == "" {
			return fmt.Errorf("database[%d]: engine is required", i)
		}
		if db.Host == "" {
			return fmt.Errorf("database[%d]: host is required", i)
		}
		if db.Enabled && db.Schedule == "" {
			return fmt.Errorf("database[%d]: schedule is required when enabled", i)
		}
	}

	switch c.Backup.Store.Type {
	case "local":
		if c.Backup.Store.Path == "" {
			return fmt.Errorf("backup.store.path is required for local store")
		}
	case "s3":
		if c.Backup.Store.Bucket == "" {
			return fmt.Errorf("backup.store.bucket is required for s3 store")
		}
	case "gdrive":
		if c.Backup.Store.CredentialsFile == "" || c.Backup.Store.FolderID == "" {
			return fmt.Errorf("backup.store.credentials_file and folder_id are required for gdrive store")
		}
	default:
		return fmt.Errorf("unknown store type: %s", c.Backup.Store.Type)
	}

	if c.Backup.RetentionHours <= 0 {
		return fmt.Errorf("backup.retention_hours must be positive")
	}
	if c.Backup.MaxExportSizeBytes <= 0 {
		return fmt.Errorf("backup.max_export_size_bytes must be positive")
	}
	if c.Backup.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("backup.max_concurrent_jobs must be positive")
	}

	return nil
}

func (c *Config) GetEnabledDatabases() []DatabaseConfig {
	var enabled []DatabaseConfig
	for _, db := range c.Databases {
		if db.Enabled {
			enabled = append(enabled, db)
		}
	}
	return enabled
}

func (c *Config) GetEnabledNotifiers() []NotifierConfig {
	var enabled []NotifierConfig
	for _, n := range c.Backup.Notifiers {
		if n.Enabled {
			enabled = append(enabled, n)
		}
	}
	return enabled
}
