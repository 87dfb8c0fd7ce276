// Package config reads aggnav settings from the environment and an optional .env file.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"aggnav/internal/dialect"
)

// Supported warehouse drivers.
const (
	DriverSQLite = "sqlite3"
	DriverDuckDB = "duckdb"
)

const (
	defaultDBPath      = "foodmart.sqlite"
	defaultListenAddr  = ":8080"
	defaultParallelism = 4
	defaultOpenConns   = 4
	defaultRPS         = 100
	defaultBurst       = 200
)

// Config holds the settings of the engine, its warehouse and the HTTP API.
type Config struct {
	DBDriver   string // sqlite3 (default) or duckdb
	DBPath     string
	Dialect    string // derived from DBDriver when unset
	SchemaPath string // empty serves the embedded sample schema
	ReloadCron string // empty disables scheduled reloads
	ListenAddr string
	LogLevel   string
	Env        string // "production" turns insecure defaults into errors

	FormattedSQL     bool
	BatchParallelism int // concurrent segment statements per load
	MaxOpenConns     int // SQLite read pool size

	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins []string

	// Warnings are logged by the caller once its logger exists.
	Warnings []string
}

// SlogLevel maps LogLevel to an slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction reports whether ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// SQLDialect returns the dialect statements are synthesized in.
func (c *Config) SQLDialect() *dialect.Dialect {
	return dialect.Get(c.Dialect)
}

// envReader collects the first parse error so LoadFromEnv reads top to bottom.
type envReader struct {
	err error
}

func (e *envReader) str(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func (e *envReader) positiveInt(key string) int {
	v := e.str(key)
	if v == "" || e.err != nil {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		e.err = fmt.Errorf("%s must be a positive integer, got %q", key, v)
		return 0
	}
	return n
}

func (e *envReader) positiveFloat(key string) float64 {
	v := e.str(key)
	if v == "" || e.err != nil {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		e.err = fmt.Errorf("%s must be a positive number, got %q", key, v)
		return 0
	}
	return f
}

func (e *envReader) boolean(key string) bool {
	switch strings.ToLower(e.str(key)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func (e *envReader) list(key string) []string {
	var out []string
	for _, v := range strings.Split(e.str(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadFromEnv builds a Config from AGGNAV_* and server variables, applying defaults.
func LoadFromEnv() (*Config, error) {
	var env envReader
	cfg := &Config{
		DBDriver:           strings.ToLower(env.str("AGGNAV_DB_DRIVER")),
		DBPath:             env.str("AGGNAV_DB_PATH"),
		Dialect:            env.str("AGGNAV_DIALECT"),
		SchemaPath:         env.str("AGGNAV_SCHEMA_PATH"),
		ReloadCron:         env.str("AGGNAV_RELOAD_CRON"),
		ListenAddr:         env.str("LISTEN_ADDR"),
		LogLevel:           env.str("LOG_LEVEL"),
		Env:                env.str("ENV"),
		FormattedSQL:       env.boolean("AGGNAV_FORMATTED_SQL"),
		BatchParallelism:   env.positiveInt("AGGNAV_BATCH_PARALLELISM"),
		MaxOpenConns:       env.positiveInt("AGGNAV_MAX_OPEN_CONNS"),
		RateLimitRPS:       env.positiveFloat("RATE_LIMIT_RPS"),
		RateLimitBurst:     env.positiveInt("RATE_LIMIT_BURST"),
		CORSAllowedOrigins: env.list("CORS_ALLOWED_ORIGINS"),
	}
	if env.err != nil {
		return nil, env.err
	}

	switch cfg.DBDriver {
	case "", "sqlite":
		cfg.DBDriver = DriverSQLite
	case DriverSQLite, DriverDuckDB:
	default:
		return nil, fmt.Errorf("AGGNAV_DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverDuckDB, cfg.DBDriver)
	}
	if cfg.Dialect == "" {
		cfg.Dialect = DefaultDialect(cfg.DBDriver)
	}
	if dialect.Get(cfg.Dialect) == nil {
		return nil, fmt.Errorf("AGGNAV_DIALECT %q is not a known dialect", cfg.Dialect)
	}
	cfg.applyDefaults()

	if cfg.SchemaPath == "" {
		cfg.Warnings = append(cfg.Warnings, "AGGNAV_SCHEMA_PATH not set, serving the embedded sample schema")
		if cfg.ReloadCron != "" {
			cfg.Warnings = append(cfg.Warnings, "AGGNAV_RELOAD_CRON has no effect without AGGNAV_SCHEMA_PATH")
		}
	}
	if cfg.IsProduction() {
		if err := cfg.checkProduction(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DBPath == "" {
		c.DBPath = defaultDBPath
	}
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.BatchParallelism == 0 {
		c.BatchParallelism = defaultParallelism
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = defaultOpenConns
	}
	if c.RateLimitRPS == 0 {
		c.RateLimitRPS = defaultRPS
	}
	if c.RateLimitBurst == 0 {
		c.RateLimitBurst = defaultBurst
	}
	if len(c.CORSAllowedOrigins) == 0 {
		c.CORSAllowedOrigins = []string{"*"}
	}
}

func (c *Config) checkProduction() error {
	if len(c.CORSAllowedOrigins) == 1 && c.CORSAllowedOrigins[0] == "*" {
		return errors.New("CORS wildcard (*) is not allowed with ENV=production")
	}
	if c.SchemaPath == "" {
		return errors.New("AGGNAV_SCHEMA_PATH is required with ENV=production")
	}
	return nil
}

// DefaultDialect is the SQL dialect matching a warehouse driver.
func DefaultDialect(driver string) string {
	if driver == DriverDuckDB {
		return string(dialect.DuckDB)
	}
	return string(dialect.SQLite)
}

// LoadDotEnv exports KEY=VALUE lines from path for variables the environment
// does not already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		if os.Getenv(key) != "" {
			continue
		}
		if err := os.Setenv(key, stripQuotes(strings.TrimSpace(value))); err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
	}
	return scanner.Err()
}

// stripQuotes drops one pair of matching surrounding quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
