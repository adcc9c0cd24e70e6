package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
)

// Config holds all configuration for typestore.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Pagination PaginationConfig `yaml:"pagination"`
	Password   PasswordConfig   `yaml:"password"`

	// Types holds per-type settings keyed by type name.
	Types map[string]models.TypeSettings `yaml:"types"`
}

// LogConfig selects the logger flavor.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"` // json or console
}

// DatabaseConfig holds PostgreSQL configuration. Sessions are served from three
// pools, one per mode; the read and admin roles fall back to the read-write role.
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	Database string `yaml:"database" env:"PGDATABASE" env-default:"typestore"`
	SSLMode  string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`

	User     string `yaml:"user" env:"PGUSER" env-default:"typestore"`
	Password string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML

	ReadUser     string `yaml:"read_user" env:"TYPESTORE_READ_USER"`
	ReadPassword string `yaml:"-" env:"TYPESTORE_READ_PASSWORD"` // Secret - not in YAML

	AdminUser     string `yaml:"admin_user" env:"TYPESTORE_ADMIN_USER"`
	AdminPassword string `yaml:"-" env:"TYPESTORE_ADMIN_PASSWORD"` // Secret - not in YAML

	MaxConnections int32 `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	// FetchSize is the number of rows a streaming cursor fetches per round trip.
	FetchSize int `yaml:"fetch_size" env:"TYPESTORE_FETCH_SIZE" env-default:"100"`
}

// RedisConfig holds the optional Redis connection used to share the schema
// generation between processes. An empty host disables it.
type RedisConfig struct {
	Host          string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port          int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password      string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB            int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	GenerationKey string `yaml:"generation_key" env:"REDIS_GENERATION_KEY" env-default:"typestore:schema_generation"`
}

// PaginationConfig holds the global limits types fall back to.
type PaginationConfig struct {
	DefaultLimit int `yaml:"default_limit" env:"TYPESTORE_DEFAULT_LIMIT" env-default:"20"`
	MinLimit     int `yaml:"min_limit" env:"TYPESTORE_MIN_LIMIT" env-default:"1"`
	MaxLimit     int `yaml:"max_limit" env:"TYPESTORE_MAX_LIMIT" env-default:"1000"`
}

// PasswordConfig tunes password hashing and the strength check.
type PasswordConfig struct {
	MinStrength int    `yaml:"min_strength" env:"TYPESTORE_PASSWORD_MIN_STRENGTH" env-default:"3"`
	Time        uint32 `yaml:"time" env:"TYPESTORE_PASSWORD_TIME" env-default:"1"`
	Memory      uint32 `yaml:"memory" env:"TYPESTORE_PASSWORD_MEMORY" env-default:"65536"` // KiB
	Threads     uint8  `yaml:"threads" env:"TYPESTORE_PASSWORD_THREADS" env-default:"4"`
}

// Load reads configuration from config.yaml with environment variable overrides.
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile reads configuration from path with environment variable overrides.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadEnv reads configuration from environment variables only.
func LoadEnv(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	p := c.Pagination
	if p.MinLimit < 1 {
		return fmt.Errorf("pagination.min_limit must be at least 1")
	}
	if p.MaxLimit < p.MinLimit {
		return fmt.Errorf("pagination.max_limit (%d) is below min_limit (%d)", p.MaxLimit, p.MinLimit)
	}
	if p.DefaultLimit < p.MinLimit || p.DefaultLimit > p.MaxLimit {
		return fmt.Errorf("pagination.default_limit (%d) is outside [%d, %d]", p.DefaultLimit, p.MinLimit, p.MaxLimit)
	}
	for name, ts := range c.Types {
		l := ts.Limit
		if l.Min != 0 && l.Max != 0 && l.Max < l.Min {
			return fmt.Errorf("types.%s.limit: max (%d) is below min (%d)", name, l.Max, l.Min)
		}
	}
	if c.Database.FetchSize < 1 {
		return fmt.Errorf("database.fetch_size must be at least 1")
	}
	return nil
}

// Settings returns the per-type settings provider the engine consumes.
func (c *Config) Settings() *models.Settings {
	return &models.Settings{
		Pagination: models.LimitSettings{
			Default: c.Pagination.DefaultLimit,
			Min:     c.Pagination.MinLimit,
			Max:     c.Pagination.MaxLimit,
		},
		Types: c.Types,
	}
}

// ReadURL returns the connection URL of the read-only pool.
func (c *DatabaseConfig) ReadURL() string {
	if c.ReadUser == "" {
		return c.WriteURL()
	}
	return c.url(c.ReadUser, c.ReadPassword)
}

// WriteURL returns the connection URL of the read-write pool.
func (c *DatabaseConfig) WriteURL() string {
	return c.url(c.User, c.Password)
}

// AdminURL returns the connection URL of the administrative pool.
func (c *DatabaseConfig) AdminURL() string {
	if c.AdminUser == "" {
		return c.WriteURL()
	}
	return c.url(c.AdminUser, c.AdminPassword)
}

func (c *DatabaseConfig) url(user, password string) string {
	u := &url.URL{
		Scheme:   "postgres",
		Host:     ResolveHostForDocker(c.Host) + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	if password != "" {
		u.User = url.UserPassword(user, password)
	} else {
		u.User = url.User(user)
	}
	return u.String()
}

// Addr returns the host:port of the Redis server.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", ResolveHostForDocker(c.Host), c.Port)
}

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker reports whether /.dockerenv exists. The result is cached.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker maps a loopback host to host.docker.internal when
// running inside a container, so a database on the host machine stays reachable.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}
	if host == "localhost" || host == "127.0.0.1" {
		return "host.docker.internal"
	}
	return host
}
