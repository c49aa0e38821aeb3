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
	Env      string         `mapstructure:"env"` // 环境: development, production
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	OpenFGA  OpenFGAConfig  `mapstructure:"openfga"`
	Log      LogConfig      `mapstructure:"log"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig 运维接口(健康检查、指标)监听配置
type ServerConfig struct {
	Host      string  `mapstructure:"host"`
	Port      int     `mapstructure:"port"`
	RateLimit float64 `mapstructure:"rate_limit"` // /ops 接口每秒请求数
	Burst     int     `mapstructure:"burst"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres, sqlite
	Path            string `mapstructure:"path"`   // sqlite 文件路径
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 秒
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 秒
}

// OpenFGAConfig OpenFGA 配置
type OpenFGAConfig struct {
	APIURL   string        `mapstructure:"api_url"`
	StoreID  string        `mapstructure:"store_id"`
	ModelID  string        `mapstructure:"model_id"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error
	Format string `mapstructure:"format"` // 日志格式: json, text
	Output string `mapstructure:"output"` // 输出位置: stdout, file, both
	Dir    string `mapstructure:"dir"`
}

// WebhookConfig Webhook 推送目标
type WebhookConfig struct {
	URL      string            `mapstructure:"url"`
	Method   string            `mapstructure:"method"`
	Headers  map[string]string `mapstructure:"headers"`
	AuthType string            `mapstructure:"auth_type"` // bearer, basic, header
	AuthKey  string            `mapstructure:"auth_key"`
	Token    string            `mapstructure:"token"`
}

// NotifyConfig 通知配置
type NotifyConfig struct {
	Log          bool            `mapstructure:"log"` // 同时写入日志
	Webhooks     []WebhookConfig `mapstructure:"webhooks"`
	Workers      int             `mapstructure:"workers"`
	QueueSize    int             `mapstructure:"queue_size"`
	RateLimit    float64         `mapstructure:"rate_limit"` // 每秒请求数
	Burst        int             `mapstructure:"burst"`
	MaxRetries   int             `mapstructure:"max_retries"`
	RetryBackoff time.Duration   `mapstructure:"retry_backoff"`
	Timeout      time.Duration   `mapstructure:"timeout"`
}

// WorkflowConfig 工作流配置
type WorkflowConfig struct {
	Definitions      string `mapstructure:"definitions"`    // 工作流定义 YAML 文件
	GroupResolver    string `mapstructure:"group_resolver"` // database, openfga
	AdminGroup       string `mapstructure:"admin_group"`
	NotifyOnClaim    bool   `mapstructure:"notify_on_claim"`
	RecordProvenance bool   `mapstructure:"record_provenance"`
	HandlePrefix     string `mapstructure:"handle_prefix"`
}

// TracingConfig 链路追踪配置
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRate     float64 `mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	CollectInterval time.Duration `mapstructure:"collect_interval"`
}

// Load 加载配置,支持配置文件和环境变量
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.submission-workflow")
		// 忽略配置文件不存在的错误,使用默认值
		_ = v.ReadInConfig()
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Workflow.GroupResolver {
	case "database", "openfga":
	default:
		return fmt.Errorf("unsupported group resolver %q", c.Workflow.GroupResolver)
	}
	if c.Workflow.GroupResolver == "openfga" && c.OpenFGA.StoreID == "" {
		return fmt.Errorf("openfga.store_id is required when workflow.group_resolver is openfga")
	}
	for i, w := range c.Notify.Webhooks {
		if w.URL == "" {
			return fmt.Errorf("notify.webhooks[%d].url is required", i)
		}
	}
	return nil
}

// IsProduction 判断是否为生产环境
func IsProduction(cfg *Config) bool {
	if cfg == nil {
		return false
	}
	return cfg.Env == "production"
}

// Default 返回默认配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	v.SetDefault("env", env)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 9090)
	v.SetDefault("server.rate_limit", 5)
	v.SetDefault("server.burst", 10)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.path", "submission-workflow.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "workflow")
	v.SetDefault("database.sslmode", "disable")

	// 数据库连接池配置(根据环境设置默认值)
	if env == "production" {
		v.SetDefault("database.max_idle_conns", 20)
		v.SetDefault("database.max_open_conns", 200)
		v.SetDefault("database.conn_max_lifetime", 3600) // 1 小时
		v.SetDefault("database.conn_max_idle_time", 300) // 5 分钟
	} else {
		v.SetDefault("database.max_idle_conns", 10)
		v.SetDefault("database.max_open_conns", 100)
		v.SetDefault("database.conn_max_lifetime", 3600) // 1 小时
		v.SetDefault("database.conn_max_idle_time", 600) // 10 分钟
	}

	v.SetDefault("openfga.api_url", "http://localhost:8081")
	v.SetDefault("openfga.store_id", "")
	v.SetDefault("openfga.model_id", "")
	v.SetDefault("openfga.cache_ttl", "30s")

	if env == "production" {
		v.SetDefault("log.level", "warn")
		v.SetDefault("log.format", "json")
	} else {
		v.SetDefault("log.level", "debug")
		v.SetDefault("log.format", "text")
	}
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.dir", "logs")

	v.SetDefault("notify.log", true)
	v.SetDefault("notify.workers", 2)
	v.SetDefault("notify.queue_size", 1000)
	v.SetDefault("notify.rate_limit", 10)
	v.SetDefault("notify.burst", 5)
	v.SetDefault("notify.max_retries", 3)
	v.SetDefault("notify.retry_backoff", "1s")
	v.SetDefault("notify.timeout", "10s")

	v.SetDefault("workflow.definitions", "workflow.yaml")
	v.SetDefault("workflow.group_resolver", "database")
	v.SetDefault("workflow.admin_group", "Administrator")
	v.SetDefault("workflow.notify_on_claim", false)
	v.SetDefault("workflow.record_provenance", true)
	v.SetDefault("workflow.handle_prefix", "123456789")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("tracing.sample_rate", 1.0)

	v.SetDefault("metrics.collect_interval", "15s")
}
