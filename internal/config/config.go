// Package config assembles service settings from defaults, an optional YAML
// file named by CONFIG_FILE, and environment variables (a .env file is
// loaded first when present). Later sources win.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port        string    `yaml:"port"`
	DB          DB        `yaml:"db"`
	CORSOrigins []string  `yaml:"corsOrigins"`
	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	// Only enable behind a proxy that sets those headers.
	TrustProxy  bool      `yaml:"trustProxy"`
	RateLimit   RateLimit `yaml:"rateLimit"`
	Log         Log       `yaml:"log"`
}

type DB struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	// URL overrides the individual postgres fields when set
	URL      string `yaml:"url"`
	Path     string `yaml:"path"`
	MaxConns int    `yaml:"maxConns"`
}

// RateLimit is per client IP. RPS of 0 turns limiting off.
type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Log.File empty means stdout.
type Log struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

func Default() *Config {
	return &Config{
		Port: "3002",
		DB: DB{
			Driver:   DriverMySQL,
			Host:     "localhost",
			SSLMode:  "disable",
			Path:     "appointments.db",
			MaxConns: 10,
		},
		CORSOrigins: []string{"*"},
		RateLimit:   RateLimit{RPS: 10, Burst: 20},
		Log:         Log{MaxSizeMB: 50, MaxBackups: 3, MaxAgeDays: 28},
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"PORT":         &cfg.Port,
		"DB_DRIVER":    &cfg.DB.Driver,
		"DB_HOST":      &cfg.DB.Host,
		"DB_PORT":      &cfg.DB.Port,
		"DB_USER":      &cfg.DB.User,
		"DB_PASSWORD":  &cfg.DB.Password,
		"DB_NAME":      &cfg.DB.Name,
		"DB_SSLMODE":   &cfg.DB.SSLMode,
		"DATABASE_URL": &cfg.DB.URL,
		"DB_PATH":      &cfg.DB.Path,
		"LOG_FILE":     &cfg.Log.File,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"DB_MAX_CONNS":     &cfg.DB.MaxConns,
		"RATE_LIMIT_BURST": &cfg.RateLimit.Burst,
		"LOG_MAX_SIZE_MB":  &cfg.Log.MaxSizeMB,
		"LOG_MAX_BACKUPS":  &cfg.Log.MaxBackups,
		"LOG_MAX_AGE_DAYS": &cfg.Log.MaxAgeDays,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
	}

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
		}
		cfg.RateLimit.RPS = f
	}
	if v := os.Getenv("TRUST_PROXY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid TRUST_PROXY: %w", err)
		}
		cfg.TrustProxy = b
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.DB.Driver {
	case DriverMySQL, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	if c.DB.MaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive, got %d", c.DB.MaxConns)
	}
	if c.DB.Driver == DriverSQLite && c.DB.Path == "" {
		return fmt.Errorf("DB_PATH is required for sqlite")
	}
	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative")
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be at least 1 when limiting is on")
	}
	return nil
}

func (d DB) hostPort(fallback string) string {
	port := d.Port
	if port == "" {
		port = fallback
	}
	return net.JoinHostPort(d.Host, port)
}

// PostgresURL returns URL when set, otherwise a postgres:// URL built from
// the individual fields.
func (d DB) PostgresURL() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   d.hostPort("5432"),
		Path:   "/" + d.Name,
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
	}
	return u.String()
}

func (d DB) MySQLDSN() string {
	mc := mysql.NewConfig()
	mc.User = d.User
	mc.Passwd = d.Password
	mc.Net = "tcp"
	mc.Addr = d.hostPort("3306")
	mc.DBName = d.Name
	mc.ParseTime = true
	// report matched rows, not changed rows, so an update that rewrites the
	// same times still counts as a hit
	mc.ClientFoundRows = true
	return mc.FormatDSN()
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
