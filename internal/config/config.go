package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents runtime configuration for the service.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Recording RecordingConfig `mapstructure:"recording"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
	Mode    string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	Params   string `mapstructure:"params"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RecordingConfig struct {
	Dir              string `mapstructure:"dir"`
	UploadTTLMinutes int    `mapstructure:"upload_ttl_minutes"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// TokenTTL returns the configured JWT lifetime.
func (c JWTConfig) TokenTTL() time.Duration {
	if c.ExpireHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.ExpireHours) * time.Hour
}

// UploadTTL returns how long an in-flight chunked upload stays claimable.
func (c RecordingConfig) UploadTTL() time.Duration {
	if c.UploadTTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.UploadTTLMinutes) * time.Minute
}

// Load reads configuration from the provided path (defaults to config.yaml in
// the working directory). A missing file is not an error; defaults and
// RIVERSIDE_* environment overrides still apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("RIVERSIDE")
	v.AutomaticEnv()

	v.SetDefault("server.address", ":5001")
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "./data/riverside.db")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.params", "parseTime=true&loc=UTC")
	v.SetDefault("jwt.secret", "dev-secret-change-me")
	v.SetDefault("jwt.expire_hours", 24)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("recording.dir", "./data/uploads")
	v.SetDefault("recording.upload_ttl_minutes", 30)
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
