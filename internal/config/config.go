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
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Upstream lookup services
	UserServiceURL     string        // base URL of the client-lookup service
	ServicesServiceURL string        // base URL of the service-lookup service
	UpstreamTimeout    time.Duration // per-call timeout for both lookups (default: 5s)

	// Notification queue
	KafkaBrokers []string // ex: "broker1:9092,broker2:9092"
	KafkaGroupID string   // consumer group id
	KafkaTopic   string   // notification topic

	// Notification templates
	TemplateFile           string        // path to templates.yaml (optional, empty = defaults only)
	TemplateReloadInterval time.Duration // interval to reload templates.yaml (default: 1h)

	// Dispatch log
	DispatchRetention time.Duration // TTL of dispatch log entries (default: 90 days)

	// Channel providers
	EmailProviderURL string        // endpoint of the email provider API
	EmailFrom        string        // sender address for outbound email
	SMSProviderURL   string        // endpoint of the SMS provider API
	SMSSenderID      string        // alphanumeric sender id for outbound SMS
	SenderTimeout    time.Duration // per-send timeout for channel providers (default: 10s)

	// Redis
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisMaxWait        time.Duration // Max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // Timeout for each ping attempt (ex: 5s)
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("SCHED_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("SCHED_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("SCHED_LOG_LEVEL", "info"),
		PrettyLog: mustBool("SCHED_PRETTY_LOG", false),

		// Upstream lookups
		UserServiceURL:     requireEnv("SCHED_USER_SERVICE_URL"),
		ServicesServiceURL: requireEnv("SCHED_SERVICES_SERVICE_URL"),
		UpstreamTimeout:    mustDuration("SCHED_API_TIMEOUT", 5*time.Second),

		// Queue
		KafkaBrokers: requireEnvSlice("SCHED_KAFKA_BROKERS"),
		KafkaGroupID: getenv("SCHED_KAFKA_GROUP_ID", "scheduler-notifications"),
		KafkaTopic:   getenv("SCHED_KAFKA_TOPIC", "notifications"),

		// Templates
		TemplateFile:           getenv("SCHED_TEMPLATE_FILE", ""), // Optional, empty = built-in defaults
		TemplateReloadInterval: mustDuration("SCHED_TEMPLATE_RELOAD_INTERVAL", time.Hour),

		// Dispatch log
		DispatchRetention: mustDuration("SCHED_DISPATCH_RETENTION", 90*24*time.Hour),

		// Channel providers
		EmailProviderURL: getenv("SCHED_EMAIL_PROVIDER_URL", ""),
		EmailFrom:        getenv("SCHED_EMAIL_FROM", "no-reply@example.com"),
		SMSProviderURL:   getenv("SCHED_SMS_PROVIDER_URL", ""),
		SMSSenderID:      getenv("SCHED_SMS_SENDER_ID", "FIELDOPS"),
		SenderTimeout:    mustDuration("SCHED_SENDER_TIMEOUT", 10*time.Second),

		// Redis settings
		RedisAddr:           requireEnv("SCHED_REDIS_ADDR"),
		RedisUser:           getenv("SCHED_REDIS_USERNAME", "default"),
		RedisPassword:       getenv("SCHED_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("SCHED_REDIS_DB", 0),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		if cfg.RedisPassword != "" {
			cfgCopy.RedisPassword = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func requireEnvSlice(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return splitAndTrim(v)
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
