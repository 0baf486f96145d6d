package config

import "time"

// Config holds runtime settings for the tokenkeeper client.
//
// Units: RefreshThreshold and RequestTimeout are time.Duration values.
type Config struct {
	ServerURL            string
	GRPCAddr             string
	StoreBackend         string
	DBPath               string
	RedisAddr            string
	EncryptionPassphrase string
	RefreshThreshold     time.Duration
	RequestTimeout       time.Duration
	GracefulPaths        []string
	LogLevel             string
	LogFormat            string
	MetricsAddr          string
}

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// DefaultGracefulPaths are reference/lookup endpoints whose persistent 401
// is surfaced to the caller instead of forcing a logout.
var DefaultGracefulPaths = []string{
	"/equipment-types",
	"/document-types",
	"/training-types",
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.GRPCAddr = ""
	c.StoreBackend = BackendSQLite
	c.DBPath = "tokenkeeper.db"
	c.RedisAddr = "127.0.0.1:6379"
	c.RefreshThreshold = 300 * time.Second
	c.RequestTimeout = 15 * time.Second
	c.GracefulPaths = append([]string(nil), DefaultGracefulPaths...)
	c.LogLevel = "info"
	c.LogFormat = "text"
	c.MetricsAddr = ""
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
