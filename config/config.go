// Package config 负责加载应用配置
// 配置来源优先级：默认值 < 配置文件 < 环境变量
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Seed     SeedConfig     `mapstructure:"seed"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // 秒
	WriteTimeout int    `mapstructure:"write_timeout"` // 秒
	EnableHTTPS  bool   `mapstructure:"enable_https"`
	EnableHTTP2  bool   `mapstructure:"enable_http2"`
	TLSCertFile  string `mapstructure:"tls_cert_file"`
	TLSKeyFile   string `mapstructure:"tls_key_file"`
}

// Address 返回 host:port 形式的监听地址
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig 数据库配置
// URL 支持 sqlite:///path、裸文件路径以及 postgres:// 连接串
type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	LogLevel        string `mapstructure:"log_level"`         // silent, error, warn, info
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// AuthConfig 登录会话配置
type AuthConfig struct {
	SecretKey    string        `mapstructure:"secret_key"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	CookieName   string        `mapstructure:"cookie_name"`
	SecureCookie bool          `mapstructure:"secure_cookie"`
}

// AuditConfig 审计日志配置
type AuditConfig struct {
	Dir         string `mapstructure:"dir"`
	FileName    string `mapstructure:"file_name"`
	MaxBytes    int64  `mapstructure:"max_bytes"`
	BackupCount int    `mapstructure:"backup_count"`
}

// ArchiveConfig 审计日志归档到对象存储的配置
type ArchiveConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Interval          time.Duration `mapstructure:"interval"`
	DeleteAfterUpload bool          `mapstructure:"delete_after_upload"`
}

// SeedConfig 首次启动时写入的初始数据
type SeedConfig struct {
	BranchName        string `mapstructure:"branch_name"`
	AcademicYear      string `mapstructure:"academic_year"`
	DeveloperUserID   string `mapstructure:"developer_user_id"`
	DeveloperPassword string `mapstructure:"developer_password"`
}

// envAliases 兼容旧部署使用的环境变量名
var envAliases = map[string]string{
	"database.url":       "DATABASE_URL",
	"auth.secret_key":    "SECRET_KEY",
	"audit.dir":          "AUDIT_LOG_DIR",
	"audit.file_name":    "AUDIT_LOG_NAME",
	"audit.max_bytes":    "AUDIT_LOG_MAX_BYTES",
	"audit.backup_count": "AUDIT_LOG_BACKUP_COUNT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 60)
	v.SetDefault("server.enable_https", false)
	v.SetDefault("server.enable_http2", true)

	v.SetDefault("database.url", "sqlite:///tis.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", 3600)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.file_path", "logs/app.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.compress", true)

	v.SetDefault("auth.secret_key", "supersecretkey")
	v.SetDefault("auth.token_ttl", "60m")
	v.SetDefault("auth.cookie_name", "access_token")
	v.SetDefault("auth.secure_cookie", false)

	v.SetDefault("audit.dir", "logs")
	v.SetDefault("audit.file_name", "system_audit.log")
	v.SetDefault("audit.max_bytes", 5*1024*1024)
	v.SetDefault("audit.backup_count", 7)

	v.SetDefault("archive.enabled", true)
	v.SetDefault("archive.interval", "10m")
	v.SetDefault("archive.delete_after_upload", false)

	v.SetDefault("seed.branch_name", "Main Branch")
	v.SetDefault("seed.academic_year", "")
	v.SetDefault("seed.developer_user_id", "developer")
	v.SetDefault("seed.developer_password", "ChangeMe123")
}

// Load 加载配置
// 配置文件路径来自 TIS_CONFIG 环境变量，未设置时尝试当前目录下的 config.yaml
func Load() (*Config, error) {
	return LoadFrom(os.Getenv("TIS_CONFIG"))
}

// LoadFrom 从指定路径加载配置，路径为空时只使用默认值和环境变量
func LoadFrom(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// 没有配置文件时使用默认值
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("TIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		if err := v.BindEnv(key, "TIS_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 60 * time.Minute
	}
	if cfg.Audit.MaxBytes <= 0 {
		cfg.Audit.MaxBytes = 5 * 1024 * 1024
	}
	if cfg.Audit.BackupCount <= 0 {
		cfg.Audit.BackupCount = 7
	}
	if cfg.Archive.Interval <= 0 {
		cfg.Archive.Interval = 10 * time.Minute
	}

	return &cfg, nil
}
