package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Store        StoreConfig
	Postgres     PostgresConfig
	Mongo        MongoConfig
	Redis        RedisConfig
	Lock         LockConfig
	Logger       LoggerConfig
	Schedule     ScheduleConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// StoreConfig selects the roster backend.
type StoreConfig struct {
	Backend string
}

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// MongoConfig holds document store connection values.
type MongoConfig struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	ReportKey string
	ReportTTL time.Duration
}

// LockConfig selects how mutating operations are serialized.
type LockConfig struct {
	Backend       string
	KeyPrefix     string
	TTL           time.Duration
	RetryInterval time.Duration
}

const (
	LockLocal = "local"
	LockRedis = "redis"
)

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// ScheduleConfig carries the engine policies.
type ScheduleConfig struct {
	Timezone             string
	ConflictPolicy       string
	RedistributionPolicy string
	AbortOnInvalidRow    bool
	CleanupInterval      time.Duration
}

const (
	RedistributeDrop   = "drop"
	RedistributeRetain = "retain"
)

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit env file. An empty path reads .env when present.
func LoadFile(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", path, err)
		}
	} else {
		_ = godotenv.Load()
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "duty-roster"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("STORE_BACKEND", StoreMemory)),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Mongo: MongoConfig{
			URI:            os.Getenv("MONGO_URI"),
			Database:       getEnv("MONGO_DATABASE", "duty_roster"),
			Collection:     getEnv("MONGO_COLLECTION", "staff"),
			ConnectTimeout: getEnvAsDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			ReportKey: getEnv("REDIS_REPORT_KEY", "duty-roster:report:latest"),
			ReportTTL: getEnvAsDuration("REDIS_REPORT_TTL", 24*time.Hour),
		},
		Lock: LockConfig{
			Backend:       strings.ToLower(getEnv("LOCK_BACKEND", LockLocal)),
			KeyPrefix:     getEnv("LOCK_KEY_PREFIX", "duty-roster:lock:"),
			TTL:           getEnvAsDuration("LOCK_TTL", 2*time.Minute),
			RetryInterval: getEnvAsDuration("LOCK_RETRY_INTERVAL", 100*time.Millisecond),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Schedule: ScheduleConfig{
			Timezone:             getEnv("SCHEDULE_TIMEZONE", "Asia/Kolkata"),
			ConflictPolicy:       strings.ToLower(getEnv("SCHEDULE_CONFLICT_POLICY", "same_day")),
			RedistributionPolicy: strings.ToLower(getEnv("SCHEDULE_REDISTRIBUTION_POLICY", RedistributeDrop)),
			AbortOnInvalidRow:    getEnvAsBool("SCHEDULE_ABORT_ON_INVALID_ROW", true),
			CleanupInterval:      getEnvAsDuration("SCHEDULE_CLEANUP_INTERVAL", 24*time.Hour),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown backends, policies and timezones.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case StoreMemory:
	case StorePostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("STORE_BACKEND=postgres requires POSTGRES_DSN"))
		}
	case StoreMongo:
		if c.Mongo.URI == "" {
			errs = append(errs, errors.New("STORE_BACKEND=mongo requires MONGO_URI"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend))
	}
	if c.Lock.Backend != LockLocal && c.Lock.Backend != LockRedis {
		errs = append(errs, fmt.Errorf("unknown LOCK_BACKEND %q", c.Lock.Backend))
	}
	if c.Schedule.ConflictPolicy != "same_day" && c.Schedule.ConflictPolicy != "same_session" {
		errs = append(errs, fmt.Errorf("unknown SCHEDULE_CONFLICT_POLICY %q", c.Schedule.ConflictPolicy))
	}
	if c.Schedule.RedistributionPolicy != RedistributeDrop && c.Schedule.RedistributionPolicy != RedistributeRetain {
		errs = append(errs, fmt.Errorf("unknown SCHEDULE_REDISTRIBUTION_POLICY %q", c.Schedule.RedistributionPolicy))
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid SCHEDULE_TIMEZONE: %w", err))
	}
	return errors.Join(errs...)
}

// Location returns the reference timezone used to decide what "today" is.
func (s ScheduleConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
