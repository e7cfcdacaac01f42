package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	config     *Config
	configOnce sync.Once
)

// Config stores all configuration of the application
type Config struct {
	// Environment type
	EnvType string

	// Server
	ServerPort string
	GinMode    string

	// Database
	DBHost          string
	DBUser          string
	DBPassword      string
	DBName          string
	DBPort          string
	DBMigrationMode string // 数据库迁移模式: "auto"(默认), "none"(不迁移)

	// Redis
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Asterisk Manager Interface
	AMIHost            string
	AMIPort            string
	AMIUsername        string
	AMIPassword        string
	AMIDialTimeout     time.Duration
	AMIActionTimeout   time.Duration
	AMIMaxRetries      int           // 单次断线后的最大重连次数，超过后进程退出
	AMIInitialBackoff  time.Duration // 首次重连等待
	AMIMaxBackoff      time.Duration // 重连等待上限
	AMIMaxRetryElapsed time.Duration // 单次断线重连总时长上限

	// Tenant filter
	TenantContexts    []string // 允许的拨号计划上下文
	TenantQueuePrefix string   // 租户队列前缀，如 T16_

	// Event fan-out
	EventQueueSize   int // AMI 读循环与翻译协程之间的队列长度
	HubClientBuffer  int // 每个 web 客户端的发送缓冲
	WSAllowedOrigins []string

	// Hangup command
	HangupTimeout     time.Duration
	HangupMaxInFlight int

	// Reconcile sweep
	ReconcileEnabled  bool
	ReconcileSchedule string // cron 表达式
	ReconcileTimezone string
	ReconcileLockTTL  time.Duration

	// MQTT mirror
	MQTTEnabled     bool
	MQTTBrokerURL   string // MQTT服务器地址，如 tcp://broker.example.com:1883
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	MQTTQoS         int
	MQTTRetained    bool
	MQTTSSLEnabled  bool
	MQTTTopicPrefix string

	// Logging
	LogDir   string
	LogLevel string
}

// LoadConfig loads config from environment variables based on ENV_TYPE
func LoadConfig() *Config {
	// Get environment type (default to LOCAL if not set)
	envType := strings.ToUpper(getEnv("ENV_TYPE", "LOCAL"))
	prefix := ""

	switch envType {
	case "LOCAL":
		prefix = "LOCAL_"
	case "SERVER":
		prefix = "SERVER_"
	default:
		fmt.Printf("Warning: Unknown ENV_TYPE '%s', defaulting to LOCAL environment\n", envType)
		prefix = "LOCAL_"
		envType = "LOCAL"
	}

	return &Config{
		EnvType: envType,

		// Server config
		ServerPort: getEnv(prefix+"SERVER_PORT", getEnv("SERVER_PORT", "3003")),
		GinMode:    getEnv("GIN_MODE", "release"),

		// Database config - use environment-specific variables if available
		DBHost:          getEnv(prefix+"DB_HOST", getEnv("DB_HOST", "127.0.0.1")),
		DBUser:          getEnv(prefix+"DB_USER", getEnv("DB_USER", "")),
		DBPassword:      getEnv(prefix+"DB_PASSWORD", getEnv("DB_PASSWORD", "")),
		DBName:          getEnv(prefix+"DB_NAME", getEnv("DB_NAME", "ura_dprj")),
		DBPort:          getEnv(prefix+"DB_PORT", getEnv("DB_PORT", "3306")),
		DBMigrationMode: getEnv(prefix+"DB_MIGRATION_MODE", getEnv("DB_MIGRATION_MODE", "auto")),

		// Redis config
		RedisEnabled:  getEnvAsBool("REDIS_ENABLED", false),
		RedisHost:     getEnv(prefix+"REDIS_HOST", getEnv("REDIS_HOST", "localhost")),
		RedisPort:     getEnv(prefix+"REDIS_PORT", getEnv("REDIS_PORT", "6379")),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// AMI config
		AMIHost:            getEnv(prefix+"AMI_HOST", getEnv("AMI_HOST", "127.0.0.1")),
		AMIPort:            getEnv(prefix+"AMI_PORT", getEnv("AMI_PORT", "5038")),
		AMIUsername:        getEnv("AMI_USERNAME", ""),
		AMIPassword:        getEnv("AMI_PASSWORD", ""),
		AMIDialTimeout:     getEnvAsDuration("AMI_DIAL_TIMEOUT", 5*time.Second),
		AMIActionTimeout:   getEnvAsDuration("AMI_ACTION_TIMEOUT", 5*time.Second),
		AMIMaxRetries:      getEnvAsInt("AMI_MAX_RETRIES", 10),
		AMIInitialBackoff:  getEnvAsDuration("AMI_INITIAL_BACKOFF", time.Second),
		AMIMaxBackoff:      getEnvAsDuration("AMI_MAX_BACKOFF", 30*time.Second),
		AMIMaxRetryElapsed: getEnvAsDuration("AMI_MAX_RETRY_ELAPSED", 10*time.Minute),

		// Tenant config
		TenantContexts:    getEnvAsList("TENANT_CONTEXTS", []string{"T16_cos-CRC", "T16_cos-all"}),
		TenantQueuePrefix: getEnv("TENANT_QUEUE_PREFIX", "T16_"),

		// Fan-out config
		EventQueueSize:   getEnvAsInt("EVENT_QUEUE_SIZE", 4096),
		HubClientBuffer:  getEnvAsInt("HUB_CLIENT_BUFFER", 256),
		WSAllowedOrigins: getEnvAsList("WS_ALLOWED_ORIGINS", []string{"*"}),

		// Hangup config
		HangupTimeout:     getEnvAsDuration("HANGUP_TIMEOUT", 10*time.Second),
		HangupMaxInFlight: getEnvAsInt("HANGUP_MAX_IN_FLIGHT", 16),

		// Reconcile config
		ReconcileEnabled:  getEnvAsBool("RECONCILE_ENABLED", true),
		ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", "54 0 * * *"),
		ReconcileTimezone: getEnv("RECONCILE_TIMEZONE", "America/Sao_Paulo"),
		ReconcileLockTTL:  getEnvAsDuration("RECONCILE_LOCK_TTL", 10*time.Minute),

		// MQTT配置
		MQTTEnabled:     getEnvAsBool("MQTT_ENABLED", false),
		MQTTBrokerURL:   getEnv("MQTT_BROKER_URL", "tcp://localhost:1883"),
		MQTTClientID:    getEnv("MQTT_CLIENT_ID", "ura_call_bridge"),
		MQTTUsername:    getEnv("MQTT_USERNAME", ""),
		MQTTPassword:    getEnv("MQTT_PASSWORD", ""),
		MQTTQoS:         getEnvAsInt("MQTT_QOS", 0),
		MQTTRetained:    getEnvAsBool("MQTT_RETAINED", false),
		MQTTSSLEnabled:  getEnvAsBool("MQTT_SSL_ENABLED", false),
		MQTTTopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "ura/events"),

		// Logging
		LogDir:   getEnv("LOG_DIR", "logs"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// GetConfig returns the application configuration as a singleton
func GetConfig() *Config {
	configOnce.Do(func() {
		config = LoadConfig()
	})
	return config
}

// Validate checks the settings the bridge cannot run without
func (c *Config) Validate() error {
	var errs []error

	if c.AMIUsername == "" || c.AMIPassword == "" {
		errs = append(errs, errors.New("AMI_USERNAME and AMI_PASSWORD must be set"))
	}
	if c.DBUser == "" {
		errs = append(errs, errors.New("DB_USER must be set"))
	}
	if c.AMIMaxRetries < 1 {
		errs = append(errs, errors.New("AMI_MAX_RETRIES must be at least 1"))
	}
	if c.HangupMaxInFlight < 1 {
		errs = append(errs, errors.New("HANGUP_MAX_IN_FLIGHT must be at least 1"))
	}
	if c.HangupTimeout <= 0 {
		errs = append(errs, errors.New("HANGUP_TIMEOUT must be positive"))
	}
	if c.HubClientBuffer < 1 || c.EventQueueSize < 1 {
		errs = append(errs, errors.New("HUB_CLIENT_BUFFER and EVENT_QUEUE_SIZE must be positive"))
	}
	if len(c.TenantContexts) == 0 {
		errs = append(errs, errors.New("TENANT_CONTEXTS must list at least one context"))
	}
	if strings.TrimSpace(c.TenantQueuePrefix) == "" {
		errs = append(errs, errors.New("TENANT_QUEUE_PREFIX must be set"))
	}
	if c.MQTTQoS < 0 || c.MQTTQoS > 2 {
		errs = append(errs, errors.New("MQTT_QOS must be 0, 1 or 2"))
	}

	return errors.Join(errs...)
}

// GetDSN returns the database connection string
func (c *Config) GetDSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?charset=utf8mb4&parseTime=True&loc=UTC"
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// GetAMIAddr returns the Asterisk manager address
func (c *Config) GetAMIAddr() string {
	return c.AMIHost + ":" + c.AMIPort
}

// Location returns the zone used for the reconcile schedule and date filters
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ReconcileTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Helper function to get environment variable with default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variable as integer with default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variable as boolean with default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variable as duration (e.g. "10s") with default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil && value > 0 {
		return value
	}
	return defaultValue
}

// Helper function to get a comma-separated environment variable as a list
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
