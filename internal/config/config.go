// Package config provides runtime defaults, environment loading and
// validation for the roomchat server.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// RateLimitConfig defines the parameters for per-session message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings.
type Config struct {
	Env            string
	Port           string
	GRPCAddr       string
	SSHAddr        string
	SSHHostKey     string
	AllowedOrigins []string
	MaxMessageSize int64
	RateLimit      RateLimitConfig

	Rooms          []string
	RoomCapacity   int
	QueueSize      int
	PollInterval   time.Duration
	ReservationTTL time.Duration
}

func defaultConfig() Config {
	return Config{
		Env:        "dev",
		Port:       ":8080",
		GRPCAddr:   ":50051",
		SSHHostKey: "configs/ssh_host_rsa",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: 4096,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		Rooms:          []string{"general", "tech", "gaming", "random"},
		RoomCapacity:   20,
		QueueSize:      256,
		PollInterval:   500 * time.Millisecond,
		ReservationTTL: time.Minute,
	}
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// Sanitize replaces missing or invalid values with defaults.
func (c *Config) Sanitize() {
	def := defaultConfig()

	c.Env = strings.TrimSpace(c.Env)
	if c.Env == "" {
		c.Env = def.Env
	}
	c.Port = strings.TrimSpace(c.Port)
	if c.Port == "" {
		c.Port = def.Port
	}
	c.AllowedOrigins = parseList(strings.Join(c.AllowedOrigins, ","))
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = def.AllowedOrigins
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = def.RateLimit.Burst
	}
	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	c.Rooms = parseList(strings.Join(c.Rooms, ","))
	if len(c.Rooms) == 0 {
		c.Rooms = def.Rooms
	}
	if c.RoomCapacity <= 0 {
		c.RoomCapacity = def.RoomCapacity
	}
	if c.QueueSize <= 0 {
		c.QueueSize = def.QueueSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.ReservationTTL < 0 {
		c.ReservationTTL = def.ReservationTTL
	}
}

// Load reads an optional .env file and then the environment.
func Load(envFiles ...string) *Config {
	// A missing .env is normal outside development.
	_ = godotenv.Load(envFiles...)
	return NewConfigFromEnv()
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if env := os.Getenv("APP_ENV"); env != "" {
		cfg.Env = env
	}

	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}

	// An explicitly empty GRPC_ADDR disables the gRPC listener.
	if addr, ok := os.LookupEnv("GRPC_ADDR"); ok {
		cfg.GRPCAddr = strings.TrimSpace(addr)
	}

	if addr := os.Getenv("SSH_ADDR"); addr != "" {
		cfg.SSHAddr = addr
	}

	if key := os.Getenv("SSH_HOST_KEY"); key != "" {
		cfg.SSHHostKey = key
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseList(origins)
	}

	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.MaxMessageSize)
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseSeconds(interval, cfg.RateLimit.RefillInterval)
	}

	if rooms := os.Getenv("ROOMS"); rooms != "" {
		if parsed := parseList(rooms); len(parsed) > 0 {
			cfg.Rooms = parsed
		}
	}

	if capacity := os.Getenv("ROOM_CAPACITY"); capacity != "" {
		cfg.RoomCapacity = parseIntValue(capacity, cfg.RoomCapacity)
	}

	if size := os.Getenv("QUEUE_SIZE"); size != "" {
		cfg.QueueSize = parseIntValue(size, cfg.QueueSize)
	}

	if poll := os.Getenv("POLL_INTERVAL_MS"); poll != "" {
		if ms := parseIntValue(poll, 0); ms > 0 {
			cfg.PollInterval = time.Duration(ms) * time.Millisecond
		}
	}

	if ttl := os.Getenv("RESERVATION_TTL"); ttl != "" {
		cfg.ReservationTTL = parseTTL(ttl, cfg.ReservationTTL)
	}

	cfg.Sanitize()
	return &cfg
}

// AllowsAllOrigins reports whether "*" is among the allowed origins.
func (c *Config) AllowsAllOrigins() bool {
	for _, origin := range c.AllowedOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

func parseList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

// parseTTL accepts whole seconds; 0 disables expiry.
func parseTTL(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
