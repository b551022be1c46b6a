package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/orgdesk-backend/internal/clients/redis"
	"github.com/yungbote/orgdesk-backend/internal/data/db"
	"github.com/yungbote/orgdesk-backend/internal/jobs/cron"
	"github.com/yungbote/orgdesk-backend/internal/observability"
	"github.com/yungbote/orgdesk-backend/internal/platform/envutil"
	"github.com/yungbote/orgdesk-backend/internal/platform/logger"
	"github.com/yungbote/orgdesk-backend/internal/services"
)

const defaultJWTSecret = "defaultsecret"

// Config is loaded in three layers: defaults, then the YAML file named by
// CONFIG_FILE, then environment variables.
type Config struct {
	Env             string        `yaml:"env"`
	Port            string        `yaml:"port"`
	LogMode         string        `yaml:"log_mode"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`

	PostgresDSN      string        `yaml:"postgres_dsn"`
	PostgresHost     string        `yaml:"postgres_host"`
	PostgresPort     string        `yaml:"postgres_port"`
	PostgresUser     string        `yaml:"postgres_user"`
	PostgresPassword string        `yaml:"postgres_password"`
	PostgresName     string        `yaml:"postgres_name"`
	PostgresSSLMode  string        `yaml:"postgres_sslmode"`
	PostgresMaxOpen  int           `yaml:"postgres_max_open_conns"`
	PostgresMaxIdle  int           `yaml:"postgres_max_idle_conns"`
	PostgresConnLife time.Duration `yaml:"postgres_conn_max_lifetime"`

	JWTSecretKey   string        `yaml:"jwt_secret_key"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl"`

	RedisAddr          string        `yaml:"redis_addr"`
	RedisPassword      string        `yaml:"redis_password"`
	RedisDB            int           `yaml:"redis_db"`
	RedisAuditChannel  string        `yaml:"redis_audit_channel"`
	RedisKeyPrefix     string        `yaml:"redis_key_prefix"`
	MembershipCacheTTL time.Duration `yaml:"membership_cache_ttl"`

	AuditQueueSize    int           `yaml:"audit_queue_size"`
	AuditWorkers      int           `yaml:"audit_workers"`
	AuditWriteTimeout time.Duration `yaml:"audit_write_timeout"`

	IntegrityLookback  time.Duration `yaml:"integrity_lookback"`
	IntegrityTolerance int64         `yaml:"integrity_tolerance"`
	IntegrityLimit     int           `yaml:"integrity_limit"`
	IntegrityTimeout   time.Duration `yaml:"integrity_timeout"`

	CronEnabled    bool          `yaml:"cron_enabled"`
	CronInterval   time.Duration `yaml:"cron_interval"`
	CronBudget     time.Duration `yaml:"cron_budget"`
	CronReserve    time.Duration `yaml:"cron_reserve"`
	CronMinSlice   time.Duration `yaml:"cron_min_slice"`
	CronHTTPJobs   []string      `yaml:"cron_http_jobs"`
	CronSecret     string        `yaml:"cron_secret"`
	CronJobTimeout time.Duration `yaml:"cron_job_timeout"`

	MetricsEnabled bool   `yaml:"metrics_enabled"`
	MetricsAddr    string `yaml:"metrics_addr"`

	OtelEnabled     bool    `yaml:"otel_enabled"`
	OtelServiceName string  `yaml:"otel_service_name"`
	OtelEndpoint    string  `yaml:"otel_exporter_otlp_endpoint"`
	OtelInsecure    bool    `yaml:"otel_exporter_otlp_insecure"`
	OtelSampleRatio float64 `yaml:"otel_sample_ratio"`
	Version         string  `yaml:"version"`
}

func defaultConfig() Config {
	return Config{
		Env:             "development",
		Port:            "8080",
		LogMode:         "development",
		ShutdownTimeout: 15 * time.Second,

		PostgresHost:     "localhost",
		PostgresPort:     "5432",
		PostgresUser:     "postgres",
		PostgresName:     "orgdesk",
		PostgresSSLMode:  "disable",
		PostgresMaxOpen:  20,
		PostgresMaxIdle:  5,
		PostgresConnLife: 30 * time.Minute,

		JWTSecretKey:   defaultJWTSecret,
		AccessTokenTTL: time.Hour,

		RedisAuditChannel:  "audit",
		RedisKeyPrefix:     "orgdesk",
		MembershipCacheTTL: time.Minute,

		AuditQueueSize:    1024,
		AuditWorkers:      2,
		AuditWriteTimeout: 5 * time.Second,

		IntegrityLookback:  24 * time.Hour,
		IntegrityTolerance: 0,
		IntegrityLimit:     500,
		IntegrityTimeout:   30 * time.Second,

		CronEnabled:    true,
		CronInterval:   15 * time.Minute,
		CronBudget:     5 * time.Minute,
		CronReserve:    5 * time.Second,
		CronMinSlice:   time.Second,
		CronJobTimeout: 2 * time.Minute,

		MetricsEnabled: true,

		OtelServiceName: "orgdesk-backend",
		OtelSampleRatio: 1,
	}
}

func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := defaultConfig()
	if path := envutil.String("CONFIG_FILE", ""); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
		log.Info("Loaded config file", "path", path)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if cfg.JWTSecretKey == defaultJWTSecret {
		log.Warn("JWT_SECRET_KEY not set; using the development default")
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Env = envutil.String("APP_ENV", c.Env)
	c.Port = envutil.String("PORT", c.Port)
	c.LogMode = envutil.String("LOG_MODE", c.LogMode)
	c.ShutdownTimeout = envutil.Duration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
	c.CORSOrigins = envutil.CSV("CORS_ORIGINS", c.CORSOrigins)

	c.PostgresDSN = envutil.String("POSTGRES_DSN", c.PostgresDSN)
	c.PostgresHost = envutil.String("POSTGRES_HOST", c.PostgresHost)
	c.PostgresPort = envutil.String("POSTGRES_PORT", c.PostgresPort)
	c.PostgresUser = envutil.String("POSTGRES_USER", c.PostgresUser)
	c.PostgresPassword = envutil.String("POSTGRES_PASSWORD", c.PostgresPassword)
	c.PostgresName = envutil.String("POSTGRES_NAME", c.PostgresName)
	c.PostgresSSLMode = envutil.String("POSTGRES_SSLMODE", c.PostgresSSLMode)
	c.PostgresMaxOpen = envutil.Int("POSTGRES_MAX_OPEN_CONNS", c.PostgresMaxOpen)
	c.PostgresMaxIdle = envutil.Int("POSTGRES_MAX_IDLE_CONNS", c.PostgresMaxIdle)
	c.PostgresConnLife = envutil.Duration("POSTGRES_CONN_MAX_LIFETIME", c.PostgresConnLife)

	c.JWTSecretKey = envutil.String("JWT_SECRET_KEY", c.JWTSecretKey)
	c.AccessTokenTTL = envutil.Duration("ACCESS_TOKEN_TTL", c.AccessTokenTTL)

	c.RedisAddr = envutil.String("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = envutil.String("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = envutil.Int("REDIS_DB", c.RedisDB)
	c.RedisAuditChannel = envutil.String("REDIS_AUDIT_CHANNEL", c.RedisAuditChannel)
	c.RedisKeyPrefix = envutil.String("REDIS_KEY_PREFIX", c.RedisKeyPrefix)
	c.MembershipCacheTTL = envutil.Duration("MEMBERSHIP_CACHE_TTL", c.MembershipCacheTTL)

	c.AuditQueueSize = envutil.Int("AUDIT_QUEUE_SIZE", c.AuditQueueSize)
	c.AuditWorkers = envutil.Int("AUDIT_WORKERS", c.AuditWorkers)
	c.AuditWriteTimeout = envutil.Duration("AUDIT_WRITE_TIMEOUT", c.AuditWriteTimeout)

	c.IntegrityLookback = envutil.Duration("INTEGRITY_LOOKBACK", c.IntegrityLookback)
	c.IntegrityTolerance = int64(envutil.Int("INTEGRITY_TOLERANCE", int(c.IntegrityTolerance)))
	c.IntegrityLimit = envutil.Int("INTEGRITY_LIMIT", c.IntegrityLimit)
	c.IntegrityTimeout = envutil.Duration("INTEGRITY_TIMEOUT", c.IntegrityTimeout)

	c.CronEnabled = envutil.Bool("CRON_ENABLED", c.CronEnabled)
	c.CronInterval = envutil.Duration("CRON_INTERVAL", c.CronInterval)
	c.CronBudget = envutil.Duration("CRON_BUDGET", c.CronBudget)
	c.CronReserve = envutil.Duration("CRON_RESERVE", c.CronReserve)
	c.CronMinSlice = envutil.Duration("CRON_MIN_SLICE", c.CronMinSlice)
	c.CronHTTPJobs = envutil.CSV("CRON_HTTP_JOBS", c.CronHTTPJobs)
	c.CronSecret = envutil.String("CRON_SECRET", c.CronSecret)
	c.CronJobTimeout = envutil.Duration("CRON_JOB_TIMEOUT", c.CronJobTimeout)

	c.MetricsEnabled = envutil.Bool("METRICS_ENABLED", c.MetricsEnabled)
	c.MetricsAddr = envutil.String("METRICS_ADDR", c.MetricsAddr)

	c.OtelEnabled = envutil.Bool("OTEL_ENABLED", c.OtelEnabled)
	c.OtelServiceName = envutil.String("OTEL_SERVICE_NAME", c.OtelServiceName)
	c.OtelEndpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", c.OtelEndpoint)
	c.OtelInsecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", c.OtelInsecure)
	c.Version = envutil.String("APP_VERSION", c.Version)
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("config: port is required")
	}
	if c.Env == "production" && c.JWTSecretKey == defaultJWTSecret {
		return fmt.Errorf("config: JWT_SECRET_KEY must be set in production")
	}
	if c.CronBudget > 0 && c.CronReserve >= c.CronBudget {
		return fmt.Errorf("config: cron reserve %s must be below budget %s", c.CronReserve, c.CronBudget)
	}
	if _, err := cron.ParseHTTPJobs(c.CronHTTPJobs, "", 0); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (c Config) Addr() string { return ":" + strings.TrimPrefix(c.Port, ":") }

func (c Config) Postgres() db.PostgresConfig {
	return db.PostgresConfig{
		DSN:             c.PostgresDSN,
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPassword,
		Name:            c.PostgresName,
		SSLMode:         c.PostgresSSLMode,
		MaxOpenConns:    c.PostgresMaxOpen,
		MaxIdleConns:    c.PostgresMaxIdle,
		ConnMaxLifetime: c.PostgresConnLife,
	}
}

func (c Config) Redis() redis.Config {
	return redis.Config{
		Addr:         c.RedisAddr,
		Password:     c.RedisPassword,
		DB:           c.RedisDB,
		AuditChannel: c.RedisAuditChannel,
		KeyPrefix:    c.RedisKeyPrefix,
	}
}

func (c Config) AuditDispatcher() services.AuditDispatcherConfig {
	return services.AuditDispatcherConfig{
		QueueSize:    c.AuditQueueSize,
		Workers:      c.AuditWorkers,
		WriteTimeout: c.AuditWriteTimeout,
	}
}

func (c Config) AuditIntegrity() services.AuditIntegrityConfig {
	return services.AuditIntegrityConfig{
		Lookback:  c.IntegrityLookback,
		Tolerance: c.IntegrityTolerance,
		Limit:     c.IntegrityLimit,
		Timeout:   c.IntegrityTimeout,
	}
}

func (c Config) Cron() cron.Config {
	return cron.Config{
		Interval: c.CronInterval,
		Budget:   c.CronBudget,
		Reserve:  c.CronReserve,
		MinSlice: c.CronMinSlice,
	}
}

func (c Config) Otel() observability.OtelConfig {
	return observability.OtelConfig{
		Enabled:     c.OtelEnabled,
		ServiceName: c.OtelServiceName,
		Environment: c.Env,
		Version:     c.Version,
		Endpoint:    c.OtelEndpoint,
		Insecure:    c.OtelInsecure,
		SampleRatio: c.OtelSampleRatio,
	}
}
