package config

import (
	"errors"
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

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Auth     AuthConfig
	CORS     CORSConfig
	Log      LogConfig
	Planner  PlannerConfig
	Exports  ExportsConfig
	Cache    CacheConfig
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

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

// AuthConfig holds the single operator account allowed to persist plan runs.
type AuthConfig struct {
	Username     string
	PasswordHash string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// PlannerConfig carries the engine defaults applied when a request leaves a field unset.
type PlannerConfig struct {
	MaxPairOverlap      int
	MaxConflictingPairs int
	BufferPeriods       int
	PeriodMinutes       int
	ECTSCeiling         float64
	TopK                int
	MaxNodes            int
	TimeLimit           time.Duration
	MaxOptional         int

	ConflictWeight   float64
	ECTSWeight       float64
	FrequencyWeight  float64
	InstructorWeight float64

	AnnealTempFactor  float64
	AnnealCooling     float64
	AnnealMinTemp     float64
	AnnealIterations  int
	InfeasiblePenalty float64
	RepairSwaps       int

	Seeds            int
	Workers          int
	ProposalTTL      time.Duration
	QueueConcurrency int
	QueueRetries     int
}

// ExportsConfig configures rendered timetable downloads.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
}

// CacheConfig governs the Redis plan result cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

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

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.Auth = AuthConfig{
		Username:     v.GetString("PLANNER_ADMIN_USER"),
		PasswordHash: v.GetString("PLANNER_ADMIN_PASSWORD_HASH"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Planner = PlannerConfig{
		MaxPairOverlap:      v.GetInt("PLANNER_MAX_PAIR_OVERLAP"),
		MaxConflictingPairs: v.GetInt("PLANNER_MAX_CONFLICTING_PAIRS"),
		BufferPeriods:       v.GetInt("PLANNER_BUFFER_PERIODS"),
		PeriodMinutes:       v.GetInt("PLANNER_PERIOD_MINUTES"),
		ECTSCeiling:         v.GetFloat64("PLANNER_ECTS_CEILING"),
		TopK:                v.GetInt("PLANNER_TOP_K"),
		MaxNodes:            v.GetInt("PLANNER_MAX_NODES"),
		TimeLimit:           parseDuration(v.GetString("PLANNER_TIME_LIMIT"), 2*time.Second),
		MaxOptional:         v.GetInt("PLANNER_MAX_OPTIONAL"),
		ConflictWeight:      v.GetFloat64("PLANNER_WEIGHT_CONFLICT"),
		ECTSWeight:          v.GetFloat64("PLANNER_WEIGHT_ECTS"),
		FrequencyWeight:     v.GetFloat64("PLANNER_WEIGHT_FREQUENCY"),
		InstructorWeight:    v.GetFloat64("PLANNER_WEIGHT_INSTRUCTOR"),
		AnnealTempFactor:    v.GetFloat64("PLANNER_ANNEAL_TEMP_FACTOR"),
		AnnealCooling:       v.GetFloat64("PLANNER_ANNEAL_COOLING"),
		AnnealMinTemp:       v.GetFloat64("PLANNER_ANNEAL_MIN_TEMP"),
		AnnealIterations:    v.GetInt("PLANNER_ANNEAL_ITERATIONS"),
		InfeasiblePenalty:   v.GetFloat64("PLANNER_INFEASIBLE_PENALTY"),
		RepairSwaps:         v.GetInt("PLANNER_REPAIR_SWAPS"),
		Seeds:               v.GetInt("PLANNER_SEEDS"),
		Workers:             v.GetInt("PLANNER_WORKERS"),
		ProposalTTL:         parseDuration(v.GetString("PLANNER_PROPOSAL_TTL"), 30*time.Minute),
		QueueConcurrency:    v.GetInt("PLANNER_QUEUE_CONCURRENCY"),
		QueueRetries:        v.GetInt("PLANNER_QUEUE_RETRIES"),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), time.Hour),
		CleanupInterval: parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_PLAN_CACHE"),
		TTL:     parseDuration(v.GetString("PLAN_CACHE_TTL"), 10*time.Minute),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "weekly_planner")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("PLANNER_ADMIN_USER", "planner")
	v.SetDefault("PLANNER_ADMIN_PASSWORD_HASH", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PLANNER_MAX_PAIR_OVERLAP", 1)
	v.SetDefault("PLANNER_MAX_CONFLICTING_PAIRS", 2)
	v.SetDefault("PLANNER_BUFFER_PERIODS", 0)
	v.SetDefault("PLANNER_PERIOD_MINUTES", 60)
	v.SetDefault("PLANNER_ECTS_CEILING", 30)
	v.SetDefault("PLANNER_TOP_K", 5)
	v.SetDefault("PLANNER_MAX_NODES", 200000)
	v.SetDefault("PLANNER_TIME_LIMIT", "2s")
	v.SetDefault("PLANNER_MAX_OPTIONAL", 0)
	v.SetDefault("PLANNER_WEIGHT_CONFLICT", 10)
	v.SetDefault("PLANNER_WEIGHT_ECTS", 1)
	v.SetDefault("PLANNER_WEIGHT_FREQUENCY", 2)
	v.SetDefault("PLANNER_WEIGHT_INSTRUCTOR", 1)
	v.SetDefault("PLANNER_ANNEAL_TEMP_FACTOR", 1.0)
	v.SetDefault("PLANNER_ANNEAL_COOLING", 0.97)
	v.SetDefault("PLANNER_ANNEAL_MIN_TEMP", 0.001)
	v.SetDefault("PLANNER_ANNEAL_ITERATIONS", 5000)
	v.SetDefault("PLANNER_INFEASIBLE_PENALTY", 100)
	v.SetDefault("PLANNER_REPAIR_SWAPS", 3)
	v.SetDefault("PLANNER_SEEDS", 1)
	v.SetDefault("PLANNER_WORKERS", 4)
	v.SetDefault("PLANNER_PROPOSAL_TTL", "30m")
	v.SetDefault("PLANNER_QUEUE_CONCURRENCY", 2)
	v.SetDefault("PLANNER_QUEUE_RETRIES", 1)

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "1h")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")

	v.SetDefault("ENABLE_PLAN_CACHE", false)
	v.SetDefault("PLAN_CACHE_TTL", "10m")
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
