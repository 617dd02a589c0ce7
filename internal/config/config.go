package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort        = 2333
	defaultEnv         = "development"
	defaultDBHost      = "127.0.0.1"
	defaultDBPort      = 3306
	defaultDBUser      = "root"
	defaultDBPassword  = "password"
	defaultDBName      = "linkora"
	defaultDBCharset   = "utf8mb4"
	defaultRedisHost   = "localhost"
	defaultRedisPort   = 6379
	defaultRedisDB     = 0
	defaultSessionTTL  = 30 * 24 * time.Hour
	defaultMaxSessions = 5
	defaultHandshake   = 10 * time.Second
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	Env            string                `yaml:"env"` // "development" | "production"
	DSN            string                `yaml:"dsn"`
	RedisURL       string                `yaml:"redis_url"`
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	AllowedOrigins []string              `yaml:"allowed_origins"`
	JWTSecret      string                `yaml:"jwt_secret"`
	Session        SessionRuntimeConfig  `yaml:"session"`
}

type DatabaseRuntimeConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Charset  string `yaml:"charset"`
}

type RedisRuntimeConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

// SessionRuntimeConfig tunes the session service and the gateway handshake.
type SessionRuntimeConfig struct {
	TTLHours         int `yaml:"ttl_hours"`
	MaxPerUser       int `yaml:"max_per_user"`
	HandshakeTimeout int `yaml:"handshake_timeout_seconds"`
}

// Load reads the YAML config file, applies env overrides and defaults.
// A missing file is not an error: defaults plus environment apply.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// fall through to defaults
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *AppConfig) applyEnvOverrides() {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("LINKORA_ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.DSN = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
}

func (c *AppConfig) applyDefaults() {
	if c.Port <= 0 {
		c.Port = defaultPort
	}
	if strings.TrimSpace(c.Env) == "" {
		c.Env = defaultEnv
	}
	if c.Session.MaxPerUser <= 0 {
		c.Session.MaxPerUser = defaultMaxSessions
	}
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "development")
}

// SessionTTL returns the configured session lifetime.
func (c *AppConfig) SessionTTL() time.Duration {
	if c.Session.TTLHours > 0 {
		return time.Duration(c.Session.TTLHours) * time.Hour
	}
	return defaultSessionTTL
}

// MaxSessionsPerUser returns the per-user concurrent session cap.
func (c *AppConfig) MaxSessionsPerUser() int {
	return c.Session.MaxPerUser
}

// HandshakeTimeout bounds the gateway authentication handshake.
func (c *AppConfig) HandshakeTimeout() time.Duration {
	if c.Session.HandshakeTimeout > 0 {
		return time.Duration(c.Session.HandshakeTimeout) * time.Second
	}
	return defaultHandshake
}

// ResolveDSN builds the MySQL DSN from the flat or structured config.
func (c *AppConfig) ResolveDSN() string {
	if dsn := strings.TrimSpace(c.Database.DSN); dsn != "" {
		return dsn
	}
	if dsn := strings.TrimSpace(c.DSN); dsn != "" {
		return dsn
	}

	host := firstNonEmpty(c.Database.Host, defaultDBHost)
	port := c.Database.Port
	if port <= 0 {
		port = defaultDBPort
	}
	user := firstNonEmpty(c.Database.User, defaultDBUser)
	password := firstNonEmpty(c.Database.Password, defaultDBPassword)
	name := firstNonEmpty(c.Database.Name, defaultDBName)
	charset := firstNonEmpty(c.Database.Charset, defaultDBCharset)

	return fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=%s&parseTime=True&loc=Local",
		user, password, net.JoinHostPort(host, strconv.Itoa(port)), name, charset)
}

// ResolveRedisURL builds the redis URL from the flat or structured config.
func (c *AppConfig) ResolveRedisURL() string {
	if url := strings.TrimSpace(c.Redis.URL); url != "" {
		return url
	}
	if url := strings.TrimSpace(c.RedisURL); url != "" {
		return url
	}

	scheme := "redis"
	if c.Redis.TLS {
		scheme = "rediss"
	}
	host := firstNonEmpty(c.Redis.Host, defaultRedisHost)
	port := c.Redis.Port
	if port <= 0 {
		port = defaultRedisPort
	}
	db := c.Redis.DB
	if db < 0 {
		db = defaultRedisDB
	}

	auth := ""
	if c.Redis.Username != "" || c.Redis.Password != "" {
		auth = fmt.Sprintf("%s:%s@", c.Redis.Username, c.Redis.Password)
	}
	return fmt.Sprintf("%s://%s%s/%d", scheme, auth, net.JoinHostPort(host, strconv.Itoa(port)), db)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
