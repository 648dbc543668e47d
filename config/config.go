// ABOUTME: Runtime configuration for kith
// ABOUTME: Layers defaults, .env, the XDG config file and KITH_* environment overrides
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendCharm  = "charm"
)

// Contact sources.
const (
	ContactsNone   = "none"
	ContactsGoogle = "google"
)

// Config holds every runtime setting.
type Config struct {
	DataDir            string        `json:"data_dir"`
	DatabasePath       string        `json:"database_path,omitempty"`
	Backend            string        `json:"backend"`
	UserID             string        `json:"user_id"`
	LeadMinutes        []int         `json:"lead_minutes"`
	PollInterval       time.Duration `json:"poll_interval"`
	WatchInterval      time.Duration `json:"watch_interval"`
	HTTPAddress        string        `json:"http_address"`
	JWTSecret          string        `json:"jwt_secret,omitempty"`
	JWTIssuer          string        `json:"jwt_issuer"`
	CharmHost          string        `json:"charm_host"`
	CharmAutoSync      bool          `json:"charm_auto_sync"`
	LogLevel           string        `json:"log_level"`
	Contacts           string        `json:"contacts"`
	GoogleClientID     string        `json:"google_client_id,omitempty"`
	GoogleClientSecret string        `json:"google_client_secret,omitempty"`
	GoogleTokenPath    string        `json:"google_token_path,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		DataDir:       filepath.Join(xdg.DataHome, "kith"),
		Backend:       BackendSQLite,
		UserID:        "local",
		LeadMinutes:   []int{60, 30, 15},
		PollInterval:  15 * time.Second,
		WatchInterval: time.Minute,
		HTTPAddress:   "127.0.0.1:7717",
		JWTIssuer:     "kith",
		CharmHost:     "charm.2389.dev",
		CharmAutoSync: true,
		LogLevel:      "info",
		Contacts:      ContactsNone,
	}
}

// Path returns the XDG path of the JSON config file.
func Path() string {
	return filepath.Join(xdg.ConfigHome, "kith", "config.json")
}

// Load builds the config from defaults, an optional .env in the working
// directory, the file at Path and KITH_* environment variables, in that order.
func Load() (Config, error) {
	_ = godotenv.Load()
	return LoadFile(Path())
}

// LoadFile is Load without the .env step, reading the file at path.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to decode config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	return cfg, cfg.Validate()
}

// Save writes cfg to path with owner-only permissions.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Validate rejects settings the rest of the program cannot use.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendCharm:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendSQLite, BackendCharm)
	}
	switch c.Contacts {
	case ContactsNone, ContactsGoogle:
	default:
		return fmt.Errorf("unknown contacts source %q (want %s or %s)", c.Contacts, ContactsNone, ContactsGoogle)
	}
	if c.PollInterval <= 0 || c.WatchInterval <= 0 {
		return fmt.Errorf("poll and watch intervals must be positive")
	}
	for _, m := range c.LeadMinutes {
		if m < 0 {
			return fmt.Errorf("lead minutes must not be negative, got %d", m)
		}
	}
	return nil
}

// DBPath resolves the SQLite file location.
func (c Config) DBPath() string {
	if c.DatabasePath != "" {
		return c.DatabasePath
	}
	return filepath.Join(c.DataDir, "kith.db")
}

// TokenPath resolves the Google token location.
func (c Config) TokenPath() string {
	if c.GoogleTokenPath != "" {
		return c.GoogleTokenPath
	}
	return filepath.Join(c.DataDir, "google-token.json")
}

func applyEnvOverrides(cfg *Config) {
	cfg.DataDir = getEnv("KITH_DATA_DIR", cfg.DataDir)
	cfg.DatabasePath = getEnv("KITH_DB_PATH", cfg.DatabasePath)
	cfg.Backend = getEnv("KITH_BACKEND", cfg.Backend)
	cfg.UserID = getEnv("KITH_USER_ID", cfg.UserID)
	cfg.HTTPAddress = getEnv("KITH_HTTP_ADDRESS", cfg.HTTPAddress)
	cfg.JWTSecret = getEnv("KITH_JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = getEnv("KITH_JWT_ISSUER", cfg.JWTIssuer)
	cfg.CharmHost = getEnv("KITH_CHARM_HOST", cfg.CharmHost)
	cfg.CharmAutoSync = getBoolEnv("KITH_CHARM_AUTO_SYNC", cfg.CharmAutoSync)
	cfg.LogLevel = getEnv("KITH_LOG_LEVEL", cfg.LogLevel)
	cfg.Contacts = getEnv("KITH_CONTACTS", cfg.Contacts)
	cfg.GoogleClientID = getEnv("GOOGLE_CLIENT_ID", cfg.GoogleClientID)
	cfg.GoogleClientSecret = getEnv("GOOGLE_CLIENT_SECRET", cfg.GoogleClientSecret)
	cfg.PollInterval = getDurationEnv("KITH_POLL_INTERVAL", cfg.PollInterval)
	cfg.WatchInterval = getDurationEnv("KITH_WATCH_INTERVAL", cfg.WatchInterval)
	if leads, ok := getIntListEnv("KITH_LEAD_MINUTES"); ok {
		cfg.LeadMinutes = leads
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntListEnv(key string) ([]int, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil, false
	}
	var out []int
	for _, part := range strings.Split(value, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}
