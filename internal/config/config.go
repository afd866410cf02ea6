package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort       string        // ex: ":8080"
	ShutdownTimeout  time.Duration // ex: 5s
	RequestTimeout   time.Duration // per-request timeout of the JSON API
	SummarizeTimeout time.Duration // per-request timeout of /api/summarize, covers every attempt

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Summaries
	GeminiAPIKey   string        // empty => summaries report "not configured"
	GeminiBaseURL  string        // API root without version, empty = public endpoint
	AttemptTimeout time.Duration // per-model attempt timeout (default: 12s)
	ModelsFile     string        // optional YAML file overriding the model chain

	// Sessions
	SessionIdleTTL time.Duration // close a user's dashboard session after this long unused
	BootstrapToken string        // optional session token issued at startup
	BootstrapUser  string        // owner of BootstrapToken
	BootstrapTTL   time.Duration // lifetime of the bootstrap session (0 = no expiry)

	// Homepage bookmarks import
	ImportFile     string        // path to a Homepage bookmarks.yaml (optional, empty = import disabled)
	ImportOwner    string        // user the imported bookmarks belong to
	ImportInterval time.Duration // interval between imports (0 = startup and manual only)

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	// Rate limiting: per client IP on every route, per owner on summaries
	RateLimitBurst      int
	RateLimitPerMin     int
	SummarizeRateBurst  int // 0 disables the per-owner summary budget
	SummarizeRatePerMin int

	AllowedHosts    []string // optional, restrict access to specific Host headers
	AllowedCIDRS    []string // optional, restrict ops endpoints to specific IPs (e.g. "1.2.3.4, 5.6.7.8")
	TrustProxy      bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
	RealtimeOrigins []string // extra origins allowed to open the realtime websocket
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:       getenv("STASH_LISTEN_PORT", ":8080"),
		ShutdownTimeout:  envDuration("STASH_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:   envDuration("STASH_REQUEST_TIMEOUT", 5*time.Second),
		SummarizeTimeout: envDuration("STASH_SUMMARIZE_TIMEOUT", 40*time.Second),

		// Logging
		LogLevel:  getenv("STASH_LOG_LEVEL", "info"),
		PrettyLog: envBool("STASH_PRETTY_LOG", true),

		// Summaries
		GeminiAPIKey:   getenv("STASH_GEMINI_API_KEY", ""),
		GeminiBaseURL:  getenv("STASH_GEMINI_BASE_URL", ""),
		AttemptTimeout: envDuration("STASH_SUMMARIZE_ATTEMPT_TIMEOUT", 12*time.Second),
		ModelsFile:     getenv("STASH_MODELS_FILE", ""),

		// Sessions
		SessionIdleTTL: envDuration("STASH_SESSION_IDLE_TTL", 30*time.Minute),
		BootstrapToken: getenv("STASH_BOOTSTRAP_TOKEN", ""),
		BootstrapUser:  getenv("STASH_BOOTSTRAP_USER", ""),
		BootstrapTTL:   envDuration("STASH_BOOTSTRAP_TTL", 0),

		// Import
		ImportFile:     getenv("STASH_IMPORT_FILE", ""),
		ImportOwner:    getenv("STASH_IMPORT_OWNER", ""),
		ImportInterval: envDuration("STASH_IMPORT_INTERVAL", 24*time.Hour),

		// Redis settings
		RedisAddr:             requireEnv("STASH_REDIS_ADDR"),
		RedisUser:             getenv("STASH_REDIS_USERNAME", "default"),
		RedisPasswordRequired: envBool("STASH_REDIS_PASSWORD_REQUIRED", true),
		RedisPassword:         getenv("STASH_REDIS_PASSWORD", ""),
		RedisDB:               requireEnvInt("STASH_REDIS_DB"),
		RedisDT:               envDuration("STASH_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               envDuration("STASH_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               envDuration("STASH_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          envDuration("STASH_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      envDuration("STASH_REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         envInt("STASH_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   envDuration("STASH_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    envDuration("STASH_REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    envInt("STASH_REDIS_WARN_THRESHOLD", 3),

		// Rate limiting
		RateLimitBurst:      envInt("STASH_RATE_LIMIT_BURST", 30),
		RateLimitPerMin:     envInt("STASH_RATE_LIMIT_PER_MIN", 120),
		SummarizeRateBurst:  envInt("STASH_SUMMARIZE_RATE_BURST", 5),
		SummarizeRatePerMin: envInt("STASH_SUMMARIZE_RATE_PER_MIN", 10),

		// Access restrictions
		AllowedHosts:    splitAndTrim(getenv("STASH_ALLOWED_HOSTS", "")),
		AllowedCIDRS:    splitAndTrim(getenv("STASH_ALLOWED_CIDRS", "")),
		TrustProxy:      envBool("STASH_TRUST_PROXY", true),
		RealtimeOrigins: splitAndTrim(getenv("STASH_REALTIME_ORIGINS", "")),
	}

	// Validate Redis password configuration
	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: STASH_REDIS_PASSWORD is required when STASH_REDIS_PASSWORD_REQUIRED=true")
	}
	if cfg.ImportFile != "" && cfg.ImportOwner == "" {
		panic("❌ FATAL: STASH_IMPORT_OWNER is required when STASH_IMPORT_FILE is set")
	}
	if (cfg.BootstrapToken == "") != (cfg.BootstrapUser == "") {
		panic("❌ FATAL: STASH_BOOTSTRAP_TOKEN and STASH_BOOTSTRAP_USER must be set together")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	const mask = "***REDACTED***"
	if c.RedisPassword != "" {
		c.RedisPassword = mask
	}
	if c.RedisUser != "" {
		c.RedisUser = mask
	}
	if c.GeminiAPIKey != "" {
		c.GeminiAPIKey = mask
	}
	if c.BootstrapToken != "" {
		c.BootstrapToken = mask
	}
	return c
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envParsed returns def when key is unset or does not parse.
func envParsed[T any](key string, def T, parse func(string) (T, error)) T {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := parse(v)
	if err != nil {
		log.Printf("[WARN] ignoring invalid %s=%q, using default %v", key, v, def)
		return def
	}
	return parsed
}

func envInt(key string, def int) int { return envParsed(key, def, strconv.Atoi) }

func envBool(key string, def bool) bool { return envParsed(key, def, strconv.ParseBool) }

func envDuration(key string, def time.Duration) time.Duration {
	return envParsed(key, def, time.ParseDuration)
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func requireEnvInt(key string) int {
	v := requireEnv(key)
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

// splitAndTrim splits a comma separated list, dropping blanks and quotes.
func splitAndTrim(s string) []string {
	var parts []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.Trim(strings.TrimSpace(part), `"'`); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
