package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config 应用全局配置结构体
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"db"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Log        LogConfig        `mapstructure:"log"`
	Scheduling SchedulingConfig `mapstructure:"scheduling"`
	Personnel  PersonnelConfig  `mapstructure:"personnel"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	CORS            CORSConfig    `mapstructure:"cors"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	RateLimit       int           `mapstructure:"rate_limit"` // 每个窗口内允许的请求数，0 表示关闭
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window"`
}

// CORSConfig 跨域配置
// allow_origins 含 "*" 时对任意来源放行，此时不能同时开启 allow_credentials
type CORSConfig struct {
	AllowOrigins     []string      `mapstructure:"allow_origins"`
	AllowMethods     []string      `mapstructure:"allow_methods"`
	AllowHeaders     []string      `mapstructure:"allow_headers"`
	ExposeHeaders    []string      `mapstructure:"expose_headers"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置（分布式锁、限流）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SchedulingConfig 排班引擎参数（支持热更新）
type SchedulingConfig struct {
	StandardHoursPerDay            float64       `mapstructure:"standard_hours_per_day"`
	UnderutilizedThreshold         float64       `mapstructure:"underutilized_threshold"`
	OverloadThreshold              float64       `mapstructure:"overload_threshold"`
	OptimalLower                   float64       `mapstructure:"optimal_lower"`
	OptimalUpper                   float64       `mapstructure:"optimal_upper"`
	CrossScheduleConflictDetection bool          `mapstructure:"cross_schedule_conflict_detection"`
	MaxParallelResources           int           `mapstructure:"max_parallel_resources"`
	LockTTL                        time.Duration `mapstructure:"lock_ttl"`
	LockWait                       time.Duration `mapstructure:"lock_wait"`
}

// PersonnelConfig 人员目录对接配置
type PersonnelConfig struct {
	Mode       string        `mapstructure:"mode"` // http | file
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryCount int           `mapstructure:"retry_count"`
	File       string        `mapstructure:"file"`
}

// MQTTConfig 领域事件发布配置
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := newViper(path)
	return readAndDecode(v)
}

// Watch 加载配置并监听文件变化，变更通过校验后回调 onChange。
// 校验失败的新配置会被丢弃，继续沿用旧值。
func Watch(path string, logger *zap.Logger, onChange func(*Config)) (*Config, error) {
	v := newViper(path)
	cfg, err := readAndDecode(v)
	if err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(v)
		if err != nil {
			logger.Warn("配置热更新失败，沿用旧配置", zap.String("file", e.Name), zap.Error(err))
			return
		}
		logger.Info("配置已热更新", zap.String("file", e.Name))
		onChange(next)
	})
	v.WatchConfig()

	return cfg, nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("HRS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.cors.allow_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("server.cors.allow_headers", []string{"Content-Type", "X-Requested-With", "X-Request-ID", "X-Operator-ID"})
	v.SetDefault("server.cors.expose_headers", []string{"X-Request-ID"})
	v.SetDefault("server.cors.allow_credentials", true)
	v.SetDefault("server.cors.max_age", "24h")
	v.SetDefault("server.max_body_bytes", 2<<20)
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("server.rate_limit_window", "1m")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "hr_scheduling")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)  // 60分钟
	v.SetDefault("db.conn_max_idle_time", 30) // 30分钟

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("scheduling.standard_hours_per_day", 8)
	v.SetDefault("scheduling.underutilized_threshold", 70)
	v.SetDefault("scheduling.overload_threshold", 100)
	v.SetDefault("scheduling.optimal_lower", 80)
	v.SetDefault("scheduling.optimal_upper", 95)
	v.SetDefault("scheduling.cross_schedule_conflict_detection", false)
	v.SetDefault("scheduling.max_parallel_resources", 8)
	v.SetDefault("scheduling.lock_ttl", "30s")
	v.SetDefault("scheduling.lock_wait", "10s")

	v.SetDefault("personnel.mode", "http")
	v.SetDefault("personnel.base_url", "http://localhost:8081/api/v1")
	v.SetDefault("personnel.timeout", "5s")
	v.SetDefault("personnel.retry_count", 2)
	v.SetDefault("personnel.file", "./config/personnel.yaml")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "hr-scheduling-engine")
	v.SetDefault("mqtt.topic_prefix", "hr/scheduling")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

func readAndDecode(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// ── 关键配置校验 ──
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if c.Server.CORS.AllowCredentials && slices.Contains(c.Server.CORS.AllowOrigins, "*") {
		return fmt.Errorf("配置校验失败: server.cors.allow_origins 为 * 时不能开启 allow_credentials")
	}
	return c.Scheduling.Validate()
}

// Validate 校验排班参数
func (s *SchedulingConfig) Validate() error {
	if s.StandardHoursPerDay <= 0 || s.StandardHoursPerDay > 24 {
		return fmt.Errorf("配置校验失败: scheduling.standard_hours_per_day 必须在 (0,24] 之间")
	}
	if s.UnderutilizedThreshold < 0 || s.UnderutilizedThreshold >= s.OverloadThreshold {
		return fmt.Errorf("配置校验失败: scheduling.underutilized_threshold 必须小于 overload_threshold")
	}
	if s.OptimalLower < 0 || s.OptimalLower > s.OptimalUpper {
		return fmt.Errorf("配置校验失败: scheduling.optimal_lower 不能大于 optimal_upper")
	}
	if s.MaxParallelResources < 1 {
		return fmt.Errorf("配置校验失败: scheduling.max_parallel_resources 至少为 1")
	}
	return nil
}
