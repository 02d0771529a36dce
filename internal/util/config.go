package util

import (
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

//nolint:gochecknoglobals // here its ok
var once sync.Once

func init() {
	once.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("Warning: could not load .env file: %v", err)
		}
	})
}

const (
	defaultServerAddr      = "localhost:8080"
	defaultWriteTimeout    = 10 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultIdleTimeout     = 30 * time.Second
	defaultGracefulTimeout = 5 * time.Second

	defaultAccessTTL          = 30 * 24 * time.Hour
	defaultRefreshTTL         = 90 * 24 * time.Hour
	defaultSessionAbsoluteTTL = 90 * 24 * time.Hour
	defaultCookieMaxAge       = 7 * 24 * time.Hour
	defaultStoreTimeout       = 3 * time.Second

	defaultRateLimit     = 50
	defaultRateInterval  = 15 * time.Minute
	defaultRateBlockTime = 15 * time.Minute

	defaultSweepInterval = 1 * time.Hour

	JWTLeeWay = 5 * time.Second
)

type ServerConfig struct {
	ServerAddr      string
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
}

func NewServerConfig() *ServerConfig {
	addr := os.Getenv("SERVER_ADDRESS")
	if addr == "" {
		addr = defaultServerAddr
	}

	return &ServerConfig{
		ServerAddr:      addr,
		WriteTimeout:    parseDurationOrDefault("WRITE_TIMEOUT", defaultWriteTimeout),
		ReadTimeout:     parseDurationOrDefault("READ_TIMEOUT", defaultReadTimeout),
		IdleTimeout:     parseDurationOrDefault("IDLE_TIMEOUT", defaultIdleTimeout),
		GracefulTimeout: parseDurationOrDefault("GRACEFUL_TIMEOUT", defaultGracefulTimeout),
	}
}

// TokenConfig carries the two signing secrets. Both must be present and
// distinct before the process serves traffic: a refresh token signed with
// the access secret (or vice versa) must never verify.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

func NewTokenConfig() *TokenConfig {
	accessSecret := os.Getenv("ACCESS_TOKEN_SECRET")
	if accessSecret == "" {
		log.Fatal("ACCESS_TOKEN_SECRET is not set")
	}
	refreshSecret := os.Getenv("REFRESH_TOKEN_SECRET")
	if refreshSecret == "" {
		log.Fatal("REFRESH_TOKEN_SECRET is not set")
	}
	if accessSecret == refreshSecret {
		log.Fatal("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}

	return &TokenConfig{
		AccessSecret:  []byte(accessSecret),
		RefreshSecret: []byte(refreshSecret),
		AccessTTL:     parseDurationOrDefault("ACCESS_TOKEN_TTL", defaultAccessTTL),
		RefreshTTL:    parseDurationOrDefault("REFRESH_TOKEN_TTL", defaultRefreshTTL),
	}
}

// SessionConfig governs the server-side session records and the refresh
// cookie. AbsoluteTTL is a fixed ceiling stamped at creation; rotation
// never extends it. CookieMaxAge is independent of the refresh token's
// own expiry claim.
type SessionConfig struct {
	AbsoluteTTL   time.Duration
	CookieMaxAge  time.Duration
	CookieSecure  bool
	StoreTimeout  time.Duration
	SweepInterval time.Duration
}

func NewSessionConfig() *SessionConfig {
	secure := false
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			secure = b
		} else {
			log.Printf("Invalid COOKIE_SECURE: %s, defaulting to false", v)
		}
	}

	return &SessionConfig{
		AbsoluteTTL:   parseDurationOrDefault("SESSION_ABSOLUTE_TTL", defaultSessionAbsoluteTTL),
		CookieMaxAge:  parseDurationOrDefault("COOKIE_MAX_AGE", defaultCookieMaxAge),
		CookieSecure:  secure,
		StoreTimeout:  parseDurationOrDefault("STORE_TIMEOUT", defaultStoreTimeout),
		SweepInterval: parseDurationOrDefault("SESSION_SWEEP_INTERVAL", defaultSweepInterval),
	}
}

type RateLimiterConfig struct {
	Limit     int
	Interval  time.Duration
	BlockTime time.Duration
}

func NewRateLimiterConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		Limit:     parseIntOrDefault("RATE_LIMIT_LIMIT", defaultRateLimit),
		Interval:  parseDurationOrDefault("RATE_LIMIT_INTERVAL", defaultRateInterval),
		BlockTime: parseDurationOrDefault("RATE_LIMIT_BLOCK_TIME", defaultRateBlockTime),
	}
}

func GetSecurityWebhookURL() string {
	return os.Getenv("SECURITY_WEBHOOK_URL")
}

func parseDurationOrDefault(varName string, def time.Duration) time.Duration {
	if v := os.Getenv(varName); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("Invalid duration in %s: %s, using default %s", varName, v, def)
	}
	return def
}

func parseIntOrDefault(varName string, def int) int {
	if v := os.Getenv(varName); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("Invalid integer in %s: %s, using default %d", varName, v, def)
	}
	return def
}
