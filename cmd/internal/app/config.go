package app

import (
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string // json | pretty
	LogColor  bool

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Redis backs the shared rate limit counters and the change feed fan-out.
	// Empty keeps both in process.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// FeedGroup is this instance's Redis Streams consumer group; every instance must use its own.
	FeedGroup string

	TrustProxy bool

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	// RequireFingerprintKey makes startup fail without SUPREME_FINGERPRINT_KEY, so client
	// addresses are never stored as plain SHA-256 digests.
	RequireFingerprintKey bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("SUPREME_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("SUPREME_LOG_LEVEL", "info"),
		LogFormat: EnvString("SUPREME_LOG_FORMAT", "json"),
		LogColor:  EnvBool("SUPREME_LOG_COLOR", ColorDefault(os.Stdout)),

		ReadHeaderTimeout: EnvDuration("SUPREME_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("SUPREME_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("SUPREME_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("SUPREME_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("SUPREME_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("SUPREME_DATABASE_URL", ""),
		DBSchema:    EnvString("SUPREME_DB_SCHEMA", "supreme"),
		DBMaxConns:  EnvInt32("SUPREME_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("SUPREME_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("SUPREME_READINESS_REQUIRE_DB", false),

		RedisAddr:     EnvString("SUPREME_REDIS_ADDR", ""),
		RedisPassword: EnvString("SUPREME_REDIS_PASSWORD", ""),
		RedisDB:       EnvInt("SUPREME_REDIS_DB", 0),
		FeedGroup:     EnvString("SUPREME_FEED_GROUP", defaultFeedGroup()),

		TrustProxy: EnvBool("SUPREME_TRUST_PROXY", false),

		CORSAllowedOrigins:   EnvCSV("SUPREME_CORS_ALLOWED_ORIGINS", nil),
		CORSAllowCredentials: EnvBool("SUPREME_CORS_ALLOW_CREDENTIALS", false),
		CORSMaxAgeSeconds:    EnvInt("SUPREME_CORS_MAX_AGE_SECONDS", 600),

		RequireFingerprintKey: EnvBool("SUPREME_REQUIRE_FINGERPRINT_KEY", false),
	}
}

func defaultFeedGroup() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return "supreme-" + host
}

// ColorDefault enables ANSI colors when f is a terminal and NO_COLOR is unset.
func ColorDefault(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
