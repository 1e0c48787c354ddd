package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ayxworxfr/go_backoffice/pkg/cron"
	"github.com/ayxworxfr/go_backoffice/pkg/jwtauth"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Config 结构体用于存储所有配置
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Backend       BackendConfig       `yaml:"backend"`
	Session       SessionConfig       `yaml:"session"`
	Redis         RedisConfig         `yaml:"redis"`
	Database      DatabaseConfig      `yaml:"database"`
	Table         TableConfig         `yaml:"table"`
	Logger        LoggerConfig        `yaml:"logger"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	AuthLimit     AuthLimitConfig     `yaml:"auth_limit"`
	OpenTelemetry OpenTelemetryConfig `yaml:"opentelemetry"`
	Tasks         []cron.TaskConfig   `yaml:"tasks"`
}

// ServerConfig 存储服务器相关配置
type ServerConfig struct {
	Port         int      `yaml:"port"`
	SentinelFile string   `yaml:"sentinel_file"` // 限流规则文件，为空时不启用
	CorsOrigins  []string `yaml:"cors_origins"`
}

// BackendConfig 远端 REST API 配置
type BackendConfig struct {
	BaseURL    string `yaml:"base_url"`
	Timeout    string `yaml:"timeout"`     // 如 30s，为空时使用 HTTP 客户端默认值
	HealthPath string `yaml:"health_path"` // 健康检查路径
}

// TimeoutDuration 解析后的超时时间
func (b BackendConfig) TimeoutDuration() time.Duration {
	return parseDurationOr(b.Timeout, 30*time.Second)
}

// SessionConfig 会话配置
type SessionConfig struct {
	Driver        string `yaml:"driver"` // memory/redis/sql
	CookieName    string `yaml:"cookie_name"`
	CookieSecure  bool   `yaml:"cookie_secure"`
	Secret        string `yaml:"secret"`         // cookie 签名密钥
	EncryptionKey string `yaml:"encryption_key"` // token 加密密钥
	TTL           string `yaml:"ttl"`            // 支持 s/m/h/d/w
}

// TTLDuration 解析后的会话有效期
func (s SessionConfig) TTLDuration() time.Duration {
	if d, err := jwtauth.ParseDuration(s.TTL); err == nil {
		return d
	}
	return 7 * 24 * time.Hour
}

// RedisConfig redis 会话存储配置
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// DatabaseConfig 存储数据库相关配置
type DatabaseConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	DBName          string `yaml:"dbname"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // 以秒为单位
	ShowSQL         bool   `yaml:"show_sql"`
}

// DSN 返回 MySQL 连接串
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

// TableConfig 数据表格配置
type TableConfig struct {
	SearchDebounce  string `yaml:"search_debounce"`
	DefaultPageSize int    `yaml:"default_page_size"`
	PageSizes       []int  `yaml:"page_sizes"`
	IdleTimeout     string `yaml:"idle_timeout"` // 闲置多久后回收 loader
}

// DebounceDuration 搜索防抖时间
func (t TableConfig) DebounceDuration() time.Duration {
	return parseDurationOr(t.SearchDebounce, 500*time.Millisecond)
}

// IdleDuration loader 闲置回收时间
func (t TableConfig) IdleDuration() time.Duration {
	return parseDurationOr(t.IdleTimeout, 30*time.Minute)
}

// LoggerConfig 存储日志相关配置
type LoggerConfig struct {
	LogFile    string `yaml:"log_file"`
	Level      string `yaml:"level"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
	Console    bool   `yaml:"console"`
}

// MetricsConfig prometheus 指标配置
type MetricsConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

// AuthLimitConfig 登录、注册接口按客户端 IP 限流
type AuthLimitConfig struct {
	Enable bool     `yaml:"enable"`
	RPS    float64  `yaml:"rps"`   // 每秒补充的令牌数
	Burst  int      `yaml:"burst"` // 桶容量
	Routes []string `yaml:"routes"`
}

// Default 返回带默认值的配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Backend: BackendConfig{
			BaseURL:    "http://localhost:8000/api",
			HealthPath: "/health",
		},
		Session: SessionConfig{
			Driver:     "memory",
			CookieName: "bo_session",
			TTL:        "7d",
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "backoffice:session:",
		},
		Database: DatabaseConfig{
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: 3600, // 默认1小时
		},
		Table: TableConfig{
			SearchDebounce:  "500ms",
			DefaultPageSize: 10,
			PageSizes:       []int{10, 25, 50, 100},
			IdleTimeout:     "30m",
		},
		Logger: LoggerConfig{
			Level:   "info",
			Console: true,
		},
		Metrics: MetricsConfig{Enable: true, Path: "/metrics"},
		AuthLimit: AuthLimitConfig{
			Enable: true,
			RPS:    0.2,
			Burst:  5,
			Routes: []string{"POST /login", "POST /register"},
		},
		OpenTelemetry: NewOpenTelemetryConfig(),
	}
}

// envOverrides 可由环境变量覆盖的配置项
type envOverrides struct {
	Port          int    `env:"BACKOFFICE_PORT"`
	BackendURL    string `env:"BACKOFFICE_BACKEND_URL"`
	SessionDriver string `env:"BACKOFFICE_SESSION_DRIVER"`
	SessionSecret string `env:"BACKOFFICE_SESSION_SECRET"`
	EncryptionKey string `env:"BACKOFFICE_ENCRYPTION_KEY"`
	RedisAddr     string `env:"BACKOFFICE_REDIS_ADDR"`
	RedisPassword string `env:"BACKOFFICE_REDIS_PASSWORD"`
	DBHost        string `env:"BACKOFFICE_DB_HOST"`
	DBPassword    string `env:"BACKOFFICE_DB_PASSWORD"`
	LogLevel      string `env:"BACKOFFICE_LOG_LEVEL"`
	InstanceID    string `env:"INSTANCE_ID"`
	OtelEndpoint  string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelProtocol  string `env:"OTEL_EXPORTER_OTLP_PROTOCOL"`
}

var (
	config *Config
	once   sync.Once
)

// Load 加载并解析 YAML 配置文件，环境变量优先
func Load(filename string) (*Config, error) {
	var err error
	once.Do(func() {
		var data []byte
		if data, err = os.ReadFile(filename); err != nil {
			return
		}
		config, err = Parse(context.Background(), data, envconfig.OsLookuper())
	})
	return config, err
}

// Parse 解析配置内容并应用环境变量覆盖
func Parse(ctx context.Context, data []byte, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := applyEnv(ctx, cfg, lookuper); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(ctx context.Context, cfg *Config, lookuper envconfig.Lookuper) error {
	var ov envOverrides
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &ov,
		Lookuper: lookuper,
	}); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	setInt(&cfg.Server.Port, ov.Port)
	setString(&cfg.Backend.BaseURL, ov.BackendURL)
	setString(&cfg.Session.Driver, ov.SessionDriver)
	setString(&cfg.Session.Secret, ov.SessionSecret)
	setString(&cfg.Session.EncryptionKey, ov.EncryptionKey)
	setString(&cfg.Redis.Addr, ov.RedisAddr)
	setString(&cfg.Redis.Password, ov.RedisPassword)
	setString(&cfg.Database.Host, ov.DBHost)
	setString(&cfg.Database.Password, ov.DBPassword)
	setString(&cfg.Logger.Level, ov.LogLevel)
	setString(&cfg.OpenTelemetry.Service, ov.InstanceID)
	setString(&cfg.OpenTelemetry.Endpoint, ov.OtelEndpoint)
	setString(&cfg.OpenTelemetry.Protocol, ov.OtelProtocol)
	return nil
}

// Validate 校验必填项
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Session.Secret == "" {
		return fmt.Errorf("session.secret is required")
	}
	if _, err := jwtauth.ParseDuration(c.Session.TTL); err != nil {
		return fmt.Errorf("session.ttl: %w", err)
	}
	switch c.Session.Driver {
	case "memory", "redis", "sql":
	default:
		return fmt.Errorf("unknown session driver %q", c.Session.Driver)
	}
	if c.Session.EncryptionKey == "" {
		c.Session.EncryptionKey = c.Session.Secret
	}
	if c.Table.DefaultPageSize <= 0 {
		c.Table.DefaultPageSize = 10
	}
	if c.AuthLimit.Enable && (c.AuthLimit.RPS <= 0 || c.AuthLimit.Burst <= 0) {
		return fmt.Errorf("auth_limit.rps and auth_limit.burst must be positive")
	}
	return c.OpenTelemetry.validate()
}

// Get 返回已加载的配置
func Get() *Config {
	return config
}

func GetCronTasks() []cron.TaskConfig {
	if config != nil {
		return config.Tasks
	}
	return nil
}

func GetAppPort() int {
	if config != nil {
		return config.Server.Port
	}
	return 0
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if d, err := jwtauth.ParseDuration(s); err == nil {
		return d
	}
	return fallback
}
