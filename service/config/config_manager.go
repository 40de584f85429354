/*
 * @module service/config/config_manager
 * @description 配置管理器，负责默认配置、配置文件加载、环境变量覆盖与配置验证
 * @architecture 分层架构 - 基础设施层
 * @documentReference DESIGN.md
 * @stateFlow 默认配置 -> 配置文件(YAML/JSON) -> 环境变量覆盖 -> 配置验证 -> 配置应用
 * @rules 环境变量优先级最高；配置文件不存在时使用默认配置，解析失败时报错
 * @dependencies gopkg.in/yaml.v3, github.com/spf13/cast
 * @refs service/init.go
 */

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// ConfigManager 配置管理器
type ConfigManager struct {
	config     *AppConfig
	configLock sync.RWMutex

	// 配置文件路径，按顺序尝试
	configFilePaths []string

	lookupEnv func(string) (string, bool)
}

// AppConfig 应用配置
type AppConfig struct {
	App       AppInfo         `json:"app" yaml:"app"`
	Server    ServerConfig    `json:"server" yaml:"server"`
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	Redis     RedisConfig     `json:"redis" yaml:"redis"`
	Kafka     KafkaConfig     `json:"kafka" yaml:"kafka"`
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
	Import    ImportConfig    `json:"import" yaml:"import"`
}

// AppInfo 应用信息
type AppInfo struct {
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Environment string `json:"environment" yaml:"environment"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port         int           `json:"port" yaml:"port"`
	BaseContext  string        `json:"base_context" yaml:"base_context"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	CORS         CORSConfig    `json:"cors" yaml:"cors"`
}

// CORSConfig CORS配置
type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers" yaml:"allowed_headers"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver       string `json:"driver" yaml:"driver"` // sqlite, postgres
	SQLitePath   string `json:"sqlite_path" yaml:"sqlite_path"`
	DSN          string `json:"dsn" yaml:"dsn"` // postgres 连接串，优先于分离字段
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port" yaml:"port"`
	Database     string `json:"database" yaml:"database"`
	Username     string `json:"username" yaml:"username"`
	Password     string `json:"password" yaml:"password"`
	SSLMode      string `json:"ssl_mode" yaml:"ssl_mode"`
	Schema       string `json:"schema" yaml:"schema"`
	MaxOpenConns int    `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns" yaml:"max_idle_conns"`
}

// RedisConfig Redis配置，启用后批处理锁使用 Redis
type RedisConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// KafkaConfig Kafka配置，启用后批处理事件发布到 Kafka
type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
}

// SchedulerConfig 调度器配置
type SchedulerConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	RefreshCron string `json:"refresh_cron" yaml:"refresh_cron"`
	CleanupCron string `json:"cleanup_cron" yaml:"cleanup_cron"` // 过期上传文件清理
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
}

// ImportConfig 导入配置
type ImportConfig struct {
	MaxUploadMB    int    `json:"max_upload_mb" yaml:"max_upload_mb"`
	UploadDir      string `json:"upload_dir" yaml:"upload_dir"`
	RetentionHours int    `json:"retention_hours" yaml:"retention_hours"`

	// 每个客户端每分钟允许的导入请求数，0 表示不限流
	RateLimitPerMinute int `json:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
}

// NewConfigManager 创建配置管理器
func NewConfigManager() *ConfigManager {
	paths := []string{"config.yaml", "config.yml", "config/config.yaml", "config.json"}
	if file := os.Getenv("CONFIG_FILE"); file != "" {
		paths = append([]string{file}, paths...)
	}
	return &ConfigManager{
		configFilePaths: paths,
		lookupEnv:       os.LookupEnv,
	}
}

// LoadConfig 加载配置
func (c *ConfigManager) LoadConfig() error {
	c.configLock.Lock()
	defer c.configLock.Unlock()

	config := DefaultConfig()

	// 1. 配置文件覆盖默认值
	if err := c.loadConfigFromFile(config); err != nil {
		return err
	}

	// 2. 应用环境变量覆盖
	c.applyEnvironmentOverrides(config)

	// 3. 验证配置
	if err := validateConfig(config); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	c.config = config
	return nil
}

// GetConfig 获取完整配置
func (c *ConfigManager) GetConfig() *AppConfig {
	c.configLock.RLock()
	defer c.configLock.RUnlock()
	return c.config
}

// 从文件加载配置，没有可用文件时保持默认值
func (c *ConfigManager) loadConfigFromFile(config *AppConfig) error {
	var configPath string
	for _, path := range c.configFilePaths {
		if _, err := os.Stat(path); err == nil {
			configPath = path
			break
		}
	}
	if configPath == "" {
		return nil
	}

	configData, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(configPath))
	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(configData, config)
	case ".json":
		err = json.Unmarshal(configData, config)
	default:
		return fmt.Errorf("不支持的配置文件格式: %s", ext)
	}
	if err != nil {
		return fmt.Errorf("解析配置文件 %s 失败: %w", configPath, err)
	}
	return nil
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		App: AppInfo{
			Name:        "clientrisk-service",
			Version:     "1.0.0",
			Environment: "development",
		},
		Server: ServerConfig{
			Port:         8080,
			BaseContext:  "",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			CORS: CORSConfig{
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
			},
		},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			SQLitePath:   "clientrisk.db",
			Host:         "localhost",
			Port:         5432,
			Database:     "postgres",
			Username:     "postgres",
			SSLMode:      "disable",
			Schema:       "public",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "clientrisk.pipeline",
		},
		Scheduler: SchedulerConfig{
			Enabled:     true,
			RefreshCron: "0 0 * * * *",
			CleanupCron: "0 30 2 * * *",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Import: ImportConfig{
			MaxUploadMB:        32,
			UploadDir:          os.TempDir(),
			RetentionHours:     24,
			RateLimitPerMinute: 20,
		},
	}
}

// 应用环境变量覆盖
func (c *ConfigManager) applyEnvironmentOverrides(config *AppConfig) {
	c.overrideInt("LISTEN_PORT", &config.Server.Port)
	c.overrideString("BASE_CONTEXT", &config.Server.BaseContext)

	c.overrideString("DB_DRIVER", &config.Database.Driver)
	c.overrideString("SQLITE_PATH", &config.Database.SQLitePath)
	c.overrideString("DATABASE_URL", &config.Database.DSN)
	c.overrideString("DB_HOST", &config.Database.Host)
	c.overrideInt("DB_PORT", &config.Database.Port)
	c.overrideString("DB_USER", &config.Database.Username)
	c.overrideString("DB_PASSWORD", &config.Database.Password)
	c.overrideString("DB_NAME", &config.Database.Database)
	c.overrideString("DB_SSLMODE", &config.Database.SSLMode)
	c.overrideString("DB_SCHEMA", &config.Database.Schema)

	c.overrideBool("REDIS_ENABLED", &config.Redis.Enabled)
	c.overrideString("REDIS_ADDR", &config.Redis.Addr)
	c.overrideString("REDIS_PASSWORD", &config.Redis.Password)
	c.overrideInt("REDIS_DB", &config.Redis.DB)

	c.overrideBool("KAFKA_ENABLED", &config.Kafka.Enabled)
	if brokers, ok := c.lookupEnv("KAFKA_BROKERS"); ok && brokers != "" {
		config.Kafka.Brokers = splitList(brokers)
	}
	c.overrideString("KAFKA_TOPIC", &config.Kafka.Topic)

	c.overrideBool("SCHEDULER_ENABLED", &config.Scheduler.Enabled)
	c.overrideString("REFRESH_CRON", &config.Scheduler.RefreshCron)
	c.overrideString("CLEANUP_CRON", &config.Scheduler.CleanupCron)

	c.overrideString("LOG_LEVEL", &config.Logging.Level)

	c.overrideInt("MAX_UPLOAD_MB", &config.Import.MaxUploadMB)
	c.overrideString("UPLOAD_DIR", &config.Import.UploadDir)
	c.overrideInt("UPLOAD_RETENTION_HOURS", &config.Import.RetentionHours)
	c.overrideInt("IMPORT_RATE_LIMIT", &config.Import.RateLimitPerMinute)
}

func (c *ConfigManager) overrideString(key string, target *string) {
	if v, ok := c.lookupEnv(key); ok && v != "" {
		*target = v
	}
}

func (c *ConfigManager) overrideInt(key string, target *int) {
	v, ok := c.lookupEnv(key)
	if !ok || v == "" {
		return
	}
	if n, err := cast.ToIntE(v); err == nil {
		*target = n
	}
}

func (c *ConfigManager) overrideBool(key string, target *bool) {
	v, ok := c.lookupEnv(key)
	if !ok || v == "" {
		return
	}
	if b, err := cast.ToBoolE(v); err == nil {
		*target = b
	}
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// 验证配置
func validateConfig(config *AppConfig) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("服务器端口无效: %d", config.Server.Port)
	}

	switch config.Database.Driver {
	case "sqlite":
		if config.Database.SQLitePath == "" {
			return fmt.Errorf("sqlite 数据库路径不能为空")
		}
	case "postgres":
		if config.Database.DSN == "" && config.Database.Host == "" {
			return fmt.Errorf("数据库主机不能为空")
		}
	default:
		return fmt.Errorf("不支持的数据库驱动: %s", config.Database.Driver)
	}

	if config.Redis.Enabled && config.Redis.Addr == "" {
		return fmt.Errorf("启用 Redis 时地址不能为空")
	}
	if config.Kafka.Enabled && (len(config.Kafka.Brokers) == 0 || config.Kafka.Topic == "") {
		return fmt.Errorf("启用 Kafka 时 brokers 与 topic 不能为空")
	}
	if config.Scheduler.Enabled && config.Scheduler.RefreshCron == "" {
		return fmt.Errorf("启用调度器时 refresh_cron 不能为空")
	}
	if config.Import.MaxUploadMB <= 0 {
		return fmt.Errorf("上传大小上限无效: %d", config.Import.MaxUploadMB)
	}
	if config.Import.RateLimitPerMinute < 0 {
		return fmt.Errorf("导入限流配置无效: %d", config.Import.RateLimitPerMinute)
	}
	return nil
}
