package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"banking-service/internal/util"
)

var (
	globalConfig *Config
	once         sync.Once
)

// Config holds all runtime configuration, loaded once at startup.
type Config struct {
	Environment string

	Server     ServerConfig
	Logging    LoggingConfig
	RateLimit  RateLimitConfig
	Audit      AuditConfig
	Auth       AuthConfig
	Redis      RedisConfig
	Scylla     ScyllaConfig
	Kafka      KafkaConfig
	Clickhouse ClickhouseConfig
	Elastic    ElasticConfig
	KMS        KMSConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	EnableTLS   bool
	TLSPort     int
	AutoCert    bool
	AutoCertDir string
	Domain      string
	Email       string
	CertFile    string
	KeyFile     string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// PolicyConfig holds the rate and burst for one rate-limit policy.
type PolicyConfig struct {
	RatePerMinute float64
	Burst         int
}

// RateLimitConfig configures the gatekeeper's rate limiter.
type RateLimitConfig struct {
	Backend string // "memory" or "redis"

	Strict  PolicyConfig
	Default PolicyConfig
	Relaxed PolicyConfig

	CacheMaxSize int
	IdleEviction time.Duration
	RetryAfter   time.Duration

	SkipPrefixes    []string
	StaticExtensions []string
}

// AuditConfig configures the audit trail and its sinks.
type AuditConfig struct {
	QueueSize     int
	KafkaEnabled  bool
	KafkaTopic    string
	ClickhouseEnabled bool
	ClickhouseTable   string
	ElasticEnabled bool
	ElasticIndex   string
	EncryptDetails bool
}

// AuthConfig configures token verification against the identity provider.
type AuthConfig struct {
	IntrospectionURL string
	ClientID         string
	ClientSecret     string
	Timeout          time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

type ScyllaConfig struct {
	Nodes    []string
	Keyspace string
	Username string
	Password string
}

type KafkaConfig struct {
	Brokers []string
}

type ClickhouseConfig struct {
	URL      string
	Database string
	Username string
	Password string
}

type ElasticConfig struct {
	Addresses []string
	Username  string
	Password  string
}

type KMSConfig struct {
	Enabled bool
	KeyID   string
	Region  string
}

// LoadConfig reads .env (if present) and environment variables into a Config.
func LoadConfig() *Config {
	once.Do(func() {
		// .env is optional; environment variables win in production
		_ = godotenv.Load()

		globalConfig = &Config{
			Environment: util.GetEnv("ENVIRONMENT", "development"),
			Server: ServerConfig{
				Host:         util.GetEnv("SERVER_HOST", "0.0.0.0"),
				Port:         util.GetEnvInt("SERVER_PORT", 8080),
				ReadTimeout:  util.GetEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
				WriteTimeout: util.GetEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
				IdleTimeout:  util.GetEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
				EnableTLS:    util.GetEnvBool("SERVER_ENABLE_TLS", false),
				TLSPort:      util.GetEnvInt("SERVER_TLS_PORT", 8443),
				AutoCert:     util.GetEnvBool("SERVER_AUTO_CERT", false),
				AutoCertDir:  util.GetEnv("SERVER_AUTO_CERT_DIR", "/var/cache/autocert"),
				Domain:       util.GetEnv("SERVER_DOMAIN", ""),
				Email:        util.GetEnv("SERVER_ACME_EMAIL", ""),
				CertFile:     util.GetEnv("SERVER_CERT_FILE", ""),
				KeyFile:      util.GetEnv("SERVER_KEY_FILE", ""),
			},
			Logging: LoggingConfig{
				Level:  util.GetEnv("LOG_LEVEL", "info"),
				Format: util.GetEnv("LOG_FORMAT", "json"),
			},
			RateLimit: RateLimitConfig{
				Backend: util.GetEnv("RATE_LIMIT_BACKEND", "memory"),
				Strict: PolicyConfig{
					RatePerMinute: float64(util.GetEnvInt("RATE_LIMIT_STRICT_PER_MINUTE", 20)),
					Burst:         util.GetEnvInt("RATE_LIMIT_STRICT_BURST", 5),
				},
				Default: PolicyConfig{
					RatePerMinute: float64(util.GetEnvInt("RATE_LIMIT_DEFAULT_PER_MINUTE", 100)),
					Burst:         util.GetEnvInt("RATE_LIMIT_DEFAULT_BURST", 20),
				},
				Relaxed: PolicyConfig{
					RatePerMinute: float64(util.GetEnvInt("RATE_LIMIT_RELAXED_PER_MINUTE", 200)),
					Burst:         util.GetEnvInt("RATE_LIMIT_RELAXED_BURST", 50),
				},
				CacheMaxSize: util.GetEnvInt("RATE_LIMIT_CACHE_MAX_SIZE", 10000),
				IdleEviction: util.GetEnvDuration("RATE_LIMIT_IDLE_EVICTION", time.Hour),
				RetryAfter:   util.GetEnvDuration("RATE_LIMIT_RETRY_AFTER", time.Minute),
				SkipPrefixes: util.GetEnvSlice("RATE_LIMIT_SKIP_PREFIXES",
					[]string{"/health", "/swagger", "/docs", "/admin"}),
				StaticExtensions: util.GetEnvSlice("RATE_LIMIT_STATIC_EXTENSIONS",
					[]string{".css", ".js", ".ico", ".png", ".svg", ".map"}),
			},
			Audit: AuditConfig{
				QueueSize:         util.GetEnvInt("AUDIT_QUEUE_SIZE", 1024),
				KafkaEnabled:      util.GetEnvBool("AUDIT_KAFKA_ENABLED", false),
				KafkaTopic:        util.GetEnv("AUDIT_KAFKA_TOPIC", "audit-events"),
				ClickhouseEnabled: util.GetEnvBool("AUDIT_CLICKHOUSE_ENABLED", false),
				ClickhouseTable:   util.GetEnv("AUDIT_CLICKHOUSE_TABLE", "audit_events"),
				ElasticEnabled:    util.GetEnvBool("AUDIT_ELASTIC_ENABLED", false),
				ElasticIndex:      util.GetEnv("AUDIT_ELASTIC_INDEX", "audit-events"),
				EncryptDetails:    util.GetEnvBool("AUDIT_ENCRYPT_DETAILS", false),
			},
			Auth: AuthConfig{
				IntrospectionURL: util.GetEnv("AUTH_INTROSPECTION_URL", ""),
				ClientID:         util.GetEnv("AUTH_CLIENT_ID", ""),
				ClientSecret:     util.GetEnv("AUTH_CLIENT_SECRET", ""),
				Timeout:          util.GetEnvDuration("AUTH_TIMEOUT", 5*time.Second),
			},
			Redis: RedisConfig{
				Addr:     util.GetEnv("REDIS_ADDR", "localhost:6379"),
				Password: util.GetEnv("REDIS_PASSWORD", ""),
				DB:       util.GetEnvInt("REDIS_DB", 0),
				PoolSize: util.GetEnvInt("REDIS_POOL_SIZE", 10),
			},
			Scylla: ScyllaConfig{
				Nodes:    util.GetEnvSlice("SCYLLA_NODES", []string{"localhost:9042"}),
				Keyspace: util.GetEnv("SCYLLA_KEYSPACE", "banking"),
				Username: util.GetEnv("SCYLLA_USERNAME", ""),
				Password: util.GetEnv("SCYLLA_PASSWORD", ""),
			},
			Kafka: KafkaConfig{
				Brokers: util.GetEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			},
			Clickhouse: ClickhouseConfig{
				URL:      util.GetEnv("CLICKHOUSE_URL", "localhost:9000"),
				Database: util.GetEnv("CLICKHOUSE_DATABASE", "banking"),
				Username: util.GetEnv("CLICKHOUSE_USERNAME", "default"),
				Password: util.GetEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Elastic: ElasticConfig{
				Addresses: util.GetEnvSlice("ELASTIC_ADDRESSES", []string{"http://localhost:9200"}),
				Username:  util.GetEnv("ELASTIC_USERNAME", ""),
				Password:  util.GetEnv("ELASTIC_PASSWORD", ""),
			},
			KMS: KMSConfig{
				Enabled: util.GetEnvBool("KMS_ENABLED", false),
				KeyID:   util.GetEnv("KMS_KEY_ID", ""),
				Region:  util.GetEnv("KMS_REGION", "us-east-1"),
			},
		}
	})

	return globalConfig
}

// Get returns the loaded configuration, loading defaults if necessary.
func Get() *Config {
	if globalConfig == nil {
		return LoadConfig()
	}
	return globalConfig
}

// GetServerAddress returns the host:port address for the HTTP listener.
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
