package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBAutoMigrate     bool

	Redis     RedisConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Ingest    IngestConfig
	OCR       OCRConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CacheConfig selects the dashboard cache backend ("memory" or "redis").
type CacheConfig struct {
	Backend         string
	InsightsTTLSecs int
	WarmLockTTLSecs int
}

type RateLimitConfig struct {
	Enabled      bool
	UploadRate   float64
	UploadBurst  int
	WindowPrefix string
}

// IngestConfig sizes the background dispatcher. Row limits live in ingest.yml.
type IngestConfig struct {
	Workers     int
	QueueSize   int
	PolicyPaths []string
}

type OCRConfig struct {
	Endpoint    string
	TimeoutSecs int
	Concurrency int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "taxmate"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "taxmate"),
		DBUser:            getenv("DATABASE_USER", "taxmate_user"),
		DBPassword:        getenv("DATABASE_PASSWORD", "taxmate_pass"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "taxmate.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		DBAutoMigrate:     getenvBool("DATABASE_AUTO_MIGRATE", true),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Backend:         strings.ToLower(strings.TrimSpace(getenv("DASHBOARD_CACHE_BACKEND", CacheBackendMemory))),
			InsightsTTLSecs: getenvInt("INSIGHTS_CACHE_TTL_SECONDS", 300),
			WarmLockTTLSecs: getenvInt("DASHBOARD_WARM_LOCK_TTL_SECONDS", 30),
		},
		RateLimit: RateLimitConfig{
			Enabled:      getenvBool("RATE_LIMIT_ENABLED", false),
			UploadRate:   getenvFloat("RATE_LIMIT_UPLOAD_RATE", 1),
			UploadBurst:  getenvInt("RATE_LIMIT_UPLOAD_BURST", 5),
			WindowPrefix: getenv("RATE_LIMIT_PREFIX", "taxmate"),
		},
		Ingest: IngestConfig{
			Workers:     getenvInt("INGEST_WORKERS", 4),
			QueueSize:   getenvInt("INGEST_QUEUE_SIZE", 256),
			PolicyPaths: parseList(getenv("INGEST_POLICY_PATHS", "/etc/taxmate,.")),
		},
		OCR: OCRConfig{
			Endpoint:    strings.TrimSpace(getenv("OCR_ENDPOINT", "")),
			TimeoutSecs: getenvInt("OCR_TIMEOUT_SECONDS", 30),
			Concurrency: getenvInt("OCR_CONCURRENCY", 4),
		},
	}

	return cfg
}

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewIngestPolicyHolder),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
