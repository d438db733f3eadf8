package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName                       string `env:"APP_NAME" env-default:"fern-api"`
	AppEnv                        string `env:"APP_ENV" env-default:"production"`
	Port                          int    `env:"PORT" env-default:"3000"`
	LogLevel                      string `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool   `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int    `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int    `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int    `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"30"`
	ReadHeaderTimeoutSeconds      int    `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int    `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ShutdownTimeoutSeconds        int    `env:"HTTP_SERVER_SHUTDOWN_TIMEOUT_SECONDS" env-default:"15"`
	StartupMaxAttempts            int    `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Contact store: postgres or memory
	StoreDriver string `env:"STORE_DRIVER" env-default:"postgres"`

	// PostgreSQL. DATABASE_URL wins over the DB_* parts.
	DatabaseURL                   string        `env:"DATABASE_URL" env-default:""`
	DatabaseHost                  string        `env:"DB_HOST" env-default:""`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"fern"`
	DatabaseSSLMode               string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"30m"`
	DatabaseConnMaxIdleTime       time.Duration `env:"DB_CONN_MAX_IDLE_TIME" env-default:"30s"`
	DatabaseConnectTimeout        time.Duration `env:"DB_CONNECT_TIMEOUT" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      uint          `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Reconciliation
	ReconcileMaxRetries   int           `env:"RECONCILE_MAX_RETRIES" env-default:"3"`
	ReconcileRetryBackoff time.Duration `env:"RECONCILE_RETRY_BACKOFF" env-default:"25ms"`
	ReconcileTimeout      time.Duration `env:"RECONCILE_TIMEOUT" env-default:"10s"`

	// Identifier locks: postgres, redis or local
	LockBackend string        `env:"LOCK_BACKEND" env-default:"postgres"`
	LockTTL     time.Duration `env:"LOCK_TTL" env-default:"10s"`
	LockWait    time.Duration `env:"LOCK_WAIT" env-default:"2s"`

	// Redis
	RedisHost      string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort      int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword  string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB        int    `env:"REDIS_DB" env-default:"0"`
	RedisKeyPrefix string `env:"REDIS_LOCK_KEY_PREFIX" env-default:"fern:lock:"`

	// Kafka producer for contact events
	KafkaEnabled      bool     `env:"KAFKA_ENABLED" env-default:"false"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaOutputTopic  string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"contact-events"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	MetricsEnabled bool `env:"METRICS_ENABLED" env-default:"true"`

	// Tracing
	TracingExporter    string            `env:"TRACING_EXPORTER" env-default:"none"`
	TracingSampleRatio float64           `env:"TRACING_SAMPLE_RATIO" env-default:"1"`
	OTLPEndpoint       string            `env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:"localhost:4317"`
	OTLPProtocol       string            `env:"OTEL_EXPORTER_OTLP_PROTOCOL" env-default:"grpc"`
	OTLPInsecure       bool              `env:"OTEL_EXPORTER_OTLP_INSECURE" env-default:"true"`
	OTLPHeaders        map[string]string `env:"OTEL_EXPORTER_OTLP_HEADERS"`
}

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	LockBackendPostgres = "postgres"
	LockBackendRedis    = "redis"
	LockBackendLocal    = "local"
)

// Load reads .env when present, then the process environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// Validate checks the option sets and that postgres has somewhere to connect
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" && c.DatabaseHost == "" {
			return errors.New("DATABASE_URL environment variable is required")
		}
	case StoreDriverMemory:
		if c.LockBackend == LockBackendPostgres {
			c.LockBackend = LockBackendLocal
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q (use 'postgres' or 'memory')", c.StoreDriver)
	}

	switch c.LockBackend {
	case LockBackendPostgres, LockBackendRedis, LockBackendLocal:
	default:
		return fmt.Errorf("unsupported LOCK_BACKEND %q (use 'postgres', 'redis' or 'local')", c.LockBackend)
	}

	return nil
}

// DSN returns DATABASE_URL, or a postgres URL built from the DB_* parts
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   c.DatabaseHost + ":" + c.DatabasePort,
		Path:   "/" + c.DatabaseName,
	}
	if c.DatabaseUserName != "" {
		u.User = url.UserPassword(c.DatabaseUserName, c.DatabasePassword)
	}

	q := url.Values{}
	q.Set("sslmode", c.DatabaseSSLMode)
	if c.DatabaseConnectTimeout > 0 {
		q.Set("connect_timeout", fmt.Sprintf("%d", int(c.DatabaseConnectTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

