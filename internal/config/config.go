package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application settings that may be sourced from files or environment variables.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Log      LogConfig      `mapstructure:"log"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig contains connection options for PostgreSQL or SQLite.
type DatabaseConfig struct {
	Driver     string `mapstructure:"driver"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Name       string `mapstructure:"name"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	SSLMode    string `mapstructure:"sslmode"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// AuthConfig 包含令牌签名与登录限流配置。
// JWTSecret 在进程启动时加载一次，之后只读。
type AuthConfig struct {
	JWTSecret                string        `mapstructure:"jwt_secret"`
	AccessTokenTTL           time.Duration `mapstructure:"access_token_ttl"`
	LoginRateLimitPerHour    int           `mapstructure:"login_rate_limit_per_hour"`
	LoginLockThreshold       int           `mapstructure:"login_lock_threshold"`
	LoginLockTTL             time.Duration `mapstructure:"login_lock_ttl"`
	CheckEmailDeliverability bool          `mapstructure:"check_email_deliverability"`
}

// RedisConfig 包含 Redis 连接配置。
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr 返回 host:port 形式的地址。
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
// 仅在 Enabled 时用于保存导出快照。
type MinIOConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Endpoint         string `mapstructure:"endpoint"`
	PublicEndpoint   string `mapstructure:"public_endpoint"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	BucketLookup     string `mapstructure:"bucket_lookup"`
	AutoCreateBucket bool   `mapstructure:"auto_create_bucket"`
}

// LogConfig 控制 slog 输出。
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DSN builds a pgx compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Load reads configuration solely from environment variables (with optional defaults).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.mode", "release")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "resumes")
	v.SetDefault("database.user", "resumes")
	v.SetDefault("database.password", "resumes")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.sqlite_path", "resumes.db")
	v.SetDefault("auth.access_token_ttl", "24h")
	v.SetDefault("auth.login_rate_limit_per_hour", 10)
	v.SetDefault("auth.login_lock_threshold", 5)
	v.SetDefault("auth.login_lock_ttl", "15m")
	v.SetDefault("auth.check_email_deliverability", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("minio.enabled", false)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.public_endpoint", "http://localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "resume-exports")
	v.SetDefault("minio.bucket_lookup", "auto")
	v.SetDefault("minio.auto_create_bucket", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                        "API_PORT",
		"api.mode":                        "GIN_MODE",
		"database.driver":                 "DATABASE_DRIVER",
		"database.host":                   "DATABASE_HOST",
		"database.port":                   "DATABASE_PORT",
		"database.name":                   "POSTGRES_DB",
		"database.user":                   "POSTGRES_USER",
		"database.password":               "POSTGRES_PASSWORD",
		"database.sslmode":                "DATABASE_SSLMODE",
		"database.sqlite_path":            "SQLITE_PATH",
		"auth.jwt_secret":                 "JWT_SECRET",
		"auth.access_token_ttl":           "ACCESS_TOKEN_TTL",
		"auth.login_rate_limit_per_hour":  "LOGIN_RATE_LIMIT_PER_HOUR",
		"auth.login_lock_threshold":       "LOGIN_LOCK_THRESHOLD",
		"auth.login_lock_ttl":             "LOGIN_LOCK_TTL",
		"auth.check_email_deliverability": "CHECK_EMAIL_DELIVERABILITY",
		"redis.host":                      "REDIS_HOST",
		"redis.port":                      "REDIS_PORT",
		"minio.enabled":                   "MINIO_ENABLED",
		"minio.endpoint":                  "MINIO_ENDPOINT",
		"minio.public_endpoint":           "MINIO_PUBLIC_ENDPOINT",
		"minio.access_key_id":             "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":         "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":                   "MINIO_USE_SSL",
		"minio.bucket":                    "MINIO_BUCKET",
		"minio.region":                    "MINIO_REGION",
		"minio.bucket_lookup":             "MINIO_BUCKET_LOOKUP",
		"minio.auto_create_bucket":        "MINIO_AUTO_CREATE_BUCKET",
		"log.level":                       "LOG_LEVEL",
		"log.format":                      "LOG_FORMAT",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

const minJWTSecretLength = 32

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.Host == "" {
			return errors.New("database host is required")
		}
		if cfg.Database.Port <= 0 {
			return errors.New("database port must be positive")
		}
		if cfg.Database.Name == "" {
			return errors.New("database name is required")
		}
		if cfg.Database.User == "" {
			return errors.New("database user is required")
		}
		if cfg.Database.Password == "" {
			return errors.New("database password is required")
		}
		if cfg.Database.SSLMode == "" {
			return errors.New("database sslmode is required")
		}
	case "sqlite":
		if strings.TrimSpace(cfg.Database.SQLitePath) == "" {
			return errors.New("sqlite path is required")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if len(cfg.Auth.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("jwt secret must be at least %d bytes", minJWTSecretLength)
	}
	if cfg.Auth.AccessTokenTTL <= 0 {
		return errors.New("access token ttl must be positive")
	}
	if cfg.Auth.LoginRateLimitPerHour <= 0 {
		return errors.New("login rate limit must be positive")
	}
	if cfg.Auth.LoginLockThreshold <= 0 {
		return errors.New("login lock threshold must be positive")
	}
	if cfg.Auth.LoginLockTTL <= 0 {
		return errors.New("login lock ttl must be positive")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.MinIO.Enabled {
		if cfg.MinIO.Endpoint == "" {
			return errors.New("minio endpoint is required")
		}
		if cfg.MinIO.PublicEndpoint == "" {
			return errors.New("minio public endpoint is required")
		}
		if cfg.MinIO.AccessKeyID == "" {
			return errors.New("minio access key id is required")
		}
		if cfg.MinIO.SecretAccessKey == "" {
			return errors.New("minio secret access key is required")
		}
		if cfg.MinIO.Bucket == "" {
			return errors.New("minio bucket is required")
		}
	}
	return nil
}
