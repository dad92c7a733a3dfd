package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Persistence drivers understood by the lead store wiring.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Env         string
	Port        int
	APIPrefix   string
	ServiceName string
	Timezone    string

	Database    DatabaseConfig
	Redis       RedisConfig
	Persistence PersistenceConfig
	JWT         JWTConfig
	Auth        AuthConfig
	CORS        CORSConfig
	Log         LogConfig
	Dashboard   DashboardConfig
	Messaging   MessagingConfig
	Seed        SeedConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// PersistenceConfig selects where the lead collection lives.
type PersistenceConfig struct {
	Driver     string
	LeadsKey   string
	SQLitePath string
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

// Credential is one entry of the fixed login list.
type Credential struct {
	Username string
	Password string
	Role     string
}

type AuthConfig struct {
	Users []Credential
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// DashboardConfig governs analytics cache tuning and staleness thresholds.
type DashboardConfig struct {
	CacheEnabled         bool
	CacheTTL             time.Duration
	OverdueThresholdDays int
	FreshThresholdDays   int
}

// MessagingConfig sizes the outbound message worker pool.
type MessagingConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// SeedConfig controls sample data generation for empty stores.
type SeedConfig struct {
	OnEmpty bool
	Count   int
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.ServiceName = v.GetString("SERVICE_NAME")
	cfg.Timezone = v.GetString("TIMEZONE")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Persistence = PersistenceConfig{
		Driver:     strings.ToLower(strings.TrimSpace(v.GetString("PERSISTENCE_DRIVER"))),
		LeadsKey:   v.GetString("LEADS_KEY"),
		SQLitePath: v.GetString("SQLITE_PATH"),
	}
	switch cfg.Persistence.Driver {
	case DriverMemory, DriverRedis, DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported PERSISTENCE_DRIVER %q", cfg.Persistence.Driver)
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 0),
	}

	users, err := parseCredentials(v.GetString("AUTH_USERS"))
	if err != nil {
		return nil, err
	}
	cfg.Auth = AuthConfig{Users: users}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Dashboard = DashboardConfig{
		CacheEnabled:         v.GetBool("ENABLE_DASHBOARD_CACHE"),
		CacheTTL:             parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
		OverdueThresholdDays: positiveOr(v.GetInt("OVERDUE_THRESHOLD_DAYS"), 5),
		FreshThresholdDays:   positiveOr(v.GetInt("FRESH_THRESHOLD_DAYS"), 1),
	}

	cfg.Messaging = MessagingConfig{
		Workers:    positiveOr(v.GetInt("MESSAGING_WORKERS"), 1),
		BufferSize: positiveOr(v.GetInt("MESSAGING_BUFFER_SIZE"), 64),
		MaxRetries: v.GetInt("MESSAGING_RETRIES"),
		RetryDelay: parseDuration(v.GetString("MESSAGING_RETRY_DELAY"), 2*time.Second),
	}

	cfg.Seed = SeedConfig{
		OnEmpty: v.GetBool("SEED_ON_EMPTY"),
		Count:   positiveOr(v.GetInt("SEED_COUNT"), 30),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("SERVICE_NAME", "leadflow-api")
	v.SetDefault("TIMEZONE", "UTC")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "leadflow")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("PERSISTENCE_DRIVER", DriverMemory)
	v.SetDefault("LEADS_KEY", "leads")
	v.SetDefault("SQLITE_PATH", "leadflow.db")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "leadflow-api")
	v.SetDefault("JWT_EXPIRATION", "0")

	v.SetDefault("AUTH_USERS", "admin1:admin@123:admin,admin2:admin2@123:admin,superadmin@123:super@123:superadmin")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_DASHBOARD_CACHE", false)
	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")
	v.SetDefault("OVERDUE_THRESHOLD_DAYS", 5)
	v.SetDefault("FRESH_THRESHOLD_DAYS", 1)

	v.SetDefault("MESSAGING_WORKERS", 1)
	v.SetDefault("MESSAGING_BUFFER_SIZE", 64)
	v.SetDefault("MESSAGING_RETRIES", 2)
	v.SetDefault("MESSAGING_RETRY_DELAY", "2s")

	v.SetDefault("SEED_ON_EMPTY", false)
	v.SetDefault("SEED_COUNT", 30)
}

// parseCredentials reads "username:password:role" entries separated by commas.
// Passwords may themselves contain colons; the role is always the last segment.
func parseCredentials(raw string) ([]Credential, error) {
	entries := splitAndTrim(raw)
	users := make([]Credential, 0, len(entries))
	for _, entry := range entries {
		first := strings.Index(entry, ":")
		last := strings.LastIndex(entry, ":")
		if first <= 0 || last == first || last == len(entry)-1 {
			return nil, fmt.Errorf("invalid AUTH_USERS entry %q", entry)
		}
		role := strings.ToLower(entry[last+1:])
		if role != "admin" && role != "superadmin" {
			return nil, fmt.Errorf("invalid role %q for user %q", role, entry[:first])
		}
		users = append(users, Credential{
			Username: entry[:first],
			Password: entry[first+1 : last],
			Role:     role,
		})
	}
	return users, nil
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
