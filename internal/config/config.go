package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrNoCredential 未配置任何 AI 密钥
var ErrNoCredential = errors.New("at least one of ai.api_key / ai.api_key_backup must be set")

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	Tracing   TracingConfig `mapstructure:"tracing"`
	Redis     RedisConfig
	AI        AIConfig
	Exam      ExamConfig
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool   `mapstructure:"-"` // 强制执行数据库迁移
	MigrateOnly  bool   `mapstructure:"-"` // 仅迁移模式（迁移后退出）
	ConfigDir    string `mapstructure:"-"` // 配置文件所在目录，用于热加载
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

// AIConfig 生成服务配置，主备两把密钥
type AIConfig struct {
	Provider        string `mapstructure:"provider"`
	BaseURL         string `mapstructure:"base_url"`
	APIKey          string `mapstructure:"api_key"`
	APIKeyBackup    string `mapstructure:"api_key_backup"`
	Model           string `mapstructure:"model"`
	CooldownSeconds int    `mapstructure:"cooldown_seconds"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	MaxOutputTokens int    `mapstructure:"max_output_tokens"`
}

func (c AIConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

func (c AIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SameCredentials 判断两份配置的密钥是否一致
func (c AIConfig) SameCredentials(other AIConfig) bool {
	return c.APIKey == other.APIKey && c.APIKeyBackup == other.APIKeyBackup
}

type ExamConfig struct {
	AnalysisLanguage    string `mapstructure:"analysis_language"`
	AnalysisOnAggregate bool   `mapstructure:"analysis_on_aggregate"`
	ArchiveReports      bool   `mapstructure:"archive_reports"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	Charset    string
	ParseTime  bool
	SQLitePath string `mapstructure:"sqlite_path"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Enabled   bool
	Host      string
	Port      int
	Password  string
	DB        int
	StatusTTL int `mapstructure:"status_ttl_seconds"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.sqlite_path", "ielts_exam.db")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.status_ttl_seconds", 60)

	v.SetDefault("ai.provider", ProviderGemini)
	v.SetDefault("ai.model", "gemini-2.5-flash")
	v.SetDefault("ai.cooldown_seconds", 300)
	v.SetDefault("ai.timeout_seconds", 120)
	v.SetDefault("ai.max_output_tokens", 8192)

	v.SetDefault("exam.analysis_language", "Vietnamese")
	v.SetDefault("exam.analysis_on_aggregate", true)
	v.SetDefault("exam.archive_reports", true)

	v.SetDefault("storage.type", StorageLocal)
	v.SetDefault("storage.local_path", "storage")

	v.SetDefault("cors.allowed_origins", []string{
		"http://localhost:3000",
		"http://localhost:3001",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:3001",
	})
	v.SetDefault("rate_limit.max_requests", 600)
	v.SetDefault("rate_limit.window_minutes", 1)
}

func LoadConfig(path string) (*Config, error) {
	// .env 中的 GEMINI_API_KEY 等变量优先加载，文件不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("EXAM")
	v.AutomaticEnv()

	setDefaults(v)

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")
	v.BindEnv("database.sqlite_path", "SQLITE_PATH")

	// Redis
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.mode", "SERVER_MODE")

	// AI
	v.BindEnv("ai.provider", "AI_PROVIDER")
	v.BindEnv("ai.base_url", "AI_BASE_URL")
	v.BindEnv("ai.api_key", "GEMINI_API_KEY", "AI_API_KEY")
	v.BindEnv("ai.api_key_backup", "GEMINI_API_KEY_BACKUP", "AI_API_KEY_BACKUP")
	v.BindEnv("ai.model", "AI_MODEL")

	// Storage / OSS
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	v.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	v.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	v.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.ConfigDir = path

	if cfg.Storage.Type == StorageLocal {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

// Validate 校验启动所需的最小配置
func (c *Config) Validate() error {
	if c.AI.APIKey == "" && c.AI.APIKeyBackup == "" {
		return ErrNoCredential
	}

	switch c.AI.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported ai.provider %q", c.AI.Provider)
	}

	switch c.Database.Driver {
	case DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}

	if c.AI.CooldownSeconds <= 0 {
		return fmt.Errorf("ai.cooldown_seconds must be positive, got %d", c.AI.CooldownSeconds)
	}

	return nil
}
