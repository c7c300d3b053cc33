package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Default configuration values exported for documentation and validation
const (
	DefaultAPIBaseURL      = "http://localhost:8080/api"
	DefaultStoreBackend    = StoreBackendFile
	DefaultDataDir         = "~/.vulnpilot"
	DefaultCallbackListen  = "127.0.0.1:8976"
	DefaultLoginTimeout    = 300
	DefaultRateLimit       = 5.0
	DefaultRateBurst       = 10
	DefaultLogLevel        = "info"
	DefaultMaxTokens       = 100000
	DefaultScanConcurrency = 4
	DefaultNATSSubject     = "vulnpilot.events"
)

// Token store backends.
const (
	StoreBackendFile   = "file"
	StoreBackendSQLite = "sqlite"
	StoreBackendMemory = "memory"
)

// Config represents the complete vulnpilot client configuration
type Config struct {
	API       APIConfig       `yaml:"api"`
	Storage   StorageConfig   `yaml:"storage"`
	Callback  CallbackConfig  `yaml:"callback"`
	Network   NetworkConfig   `yaml:"network"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	UI        UIConfig        `yaml:"ui"`
}

// APIConfig points the client at the backend.
type APIConfig struct {
	BaseURL   string `yaml:"base_url"` // includes the /api prefix
	UserAgent string `yaml:"user_agent"`
}

// StorageConfig selects where the session token and user cache live.
type StorageConfig struct {
	Backend   string `yaml:"backend"` // file, sqlite, memory
	DataDir   string `yaml:"data_dir"`
	TokenPath string `yaml:"token_path"` // file backend only
	DBPath    string `yaml:"db_path"`    // sqlite backend only
}

// CallbackConfig controls the loopback OAuth callback server.
type CallbackConfig struct {
	Listen         string `yaml:"listen"`
	OpenBrowser    bool   `yaml:"open_browser"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// NetworkConfig tunes outbound requests. A zero timeout leaves requests
// bounded only by the transport.
type NetworkConfig struct {
	RateLimit      float64 `yaml:"rate_limit"` // requests per second, 0 disables
	Burst          int     `yaml:"burst"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// LoggingConfig controls the JSONL run logs.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	Level   string `yaml:"level"`
}

// TelemetryConfig enables tracing and the NATS event relay.
type TelemetryConfig struct {
	Trace       bool   `yaml:"trace"`
	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`
}

// AnalysisConfig bounds repository analysis payloads and scan fan-out.
type AnalysisConfig struct {
	MaxTokens       int `yaml:"max_tokens"`
	ScanConcurrency int `yaml:"scan_concurrency"`
}

// UIConfig controls terminal rendering.
type UIConfig struct {
	NoColor bool `yaml:"no_color"`
	Width   int  `yaml:"width"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   DefaultAPIBaseURL,
			UserAgent: "vulnpilot-cli",
		},
		Storage: StorageConfig{
			Backend: DefaultStoreBackend,
			DataDir: DefaultDataDir,
		},
		Callback: CallbackConfig{
			Listen:         DefaultCallbackListen,
			OpenBrowser:    true,
			TimeoutSeconds: DefaultLoginTimeout,
		},
		Network: NetworkConfig{
			RateLimit: DefaultRateLimit,
			Burst:     DefaultRateBurst,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   DefaultLogLevel,
		},
		Telemetry: TelemetryConfig{
			NATSSubject: DefaultNATSSubject,
		},
		Analysis: AnalysisConfig{
			MaxTokens:       DefaultMaxTokens,
			ScanConcurrency: DefaultScanConcurrency,
		},
	}
}

// Load loads configuration from default locations with proper precedence:
// defaults, ~/.vulnpilot/config.yaml, ./.vulnpilot.yaml, then environment.
func Load() (*Config, error) {
	return LoadWithOverride("")
}

// LoadWithOverride behaves like Load but layers an explicit config file
// (the --config flag) between the project config and the environment.
func LoadWithOverride(explicitPath string) (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home != "" {
		userConfigPath := filepath.Join(home, ".vulnpilot", "config.yaml")
		if err := loadAndMerge(cfg, userConfigPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading user config: %w", err)
		}
	}

	projectConfigPath := filepath.Join(".", ".vulnpilot.yaml")
	if err := loadAndMerge(cfg, projectConfigPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	if explicitPath = expandHomeDir(explicitPath); explicitPath != "" {
		if err := loadAndMerge(cfg, explicitPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", explicitPath, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path only,
// ignoring the user and project files.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadAndMerge(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("VULNPILOT_API_URL")); v != "" {
		cfg.API.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("VULNPILOT_DATA_DIR")); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("VULNPILOT_STORE")); v != "" {
		cfg.Storage.Backend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("VULNPILOT_TOKEN_PATH")); v != "" {
		cfg.Storage.TokenPath = v
	}
	if v := strings.TrimSpace(os.Getenv("VULNPILOT_DB_PATH")); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv("VULNPILOT_CALLBACK_ADDR")); v != "" {
		cfg.Callback.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("VULNPILOT_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("VULNPILOT_RATE_LIMIT")); v != "" {
		if limit, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Network.RateLimit = limit
		}
	}
	if v := strings.TrimSpace(os.Getenv("VULNPILOT_NATS_URL")); v != "" {
		cfg.Telemetry.NATSURL = v
	}
	if val, ok := envBool("VULNPILOT_TRACE"); ok {
		cfg.Telemetry.Trace = val
	}
	if val, ok := envBool("VULNPILOT_OPEN_BROWSER"); ok {
		cfg.Callback.OpenBrowser = val
	}
	if os.Getenv("NO_COLOR") != "" {
		cfg.UI.NoColor = true
	}
}

func envBool(key string) (bool, bool) {
	val := os.Getenv(key)
	if val == "" {
		return false, false
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

func isLoopbackBindAddress(addr string) bool {
	host, _, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	u, err := url.Parse(strings.TrimSpace(c.API.BaseURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid api.base_url: %q (must be an absolute http(s) URL)", c.API.BaseURL)
	}

	switch c.Storage.Backend {
	case StoreBackendFile, StoreBackendSQLite, StoreBackendMemory:
	default:
		return fmt.Errorf("invalid storage.backend: %s (valid: file, sqlite, memory)", c.Storage.Backend)
	}

	if !isLoopbackBindAddress(c.Callback.Listen) {
		return fmt.Errorf("callback.listen must bind to a loopback address, got %q", c.Callback.Listen)
	}
	if c.Callback.TimeoutSeconds < 0 {
		return fmt.Errorf("callback.timeout_seconds must be >= 0")
	}
	if c.Network.RateLimit < 0 {
		return fmt.Errorf("network.rate_limit must be >= 0")
	}
	if c.Network.Burst < 0 {
		return fmt.Errorf("network.burst must be >= 0")
	}
	if c.Network.TimeoutSeconds < 0 {
		return fmt.Errorf("network.timeout_seconds must be >= 0")
	}
	if c.Analysis.MaxTokens < 0 {
		return fmt.Errorf("analysis.max_tokens must be >= 0")
	}
	if c.Analysis.ScanConcurrency < 0 {
		return fmt.Errorf("analysis.scan_concurrency must be >= 0")
	}
	return nil
}

// DataDirPath returns the expanded data directory.
func (c *Config) DataDirPath() string {
	dir := expandHomeDir(c.Storage.DataDir)
	if dir == "" {
		dir = expandHomeDir(DefaultDataDir)
	}
	return dir
}

// TokenFilePath returns where the file backend persists the session.
func (c *Config) TokenFilePath() string {
	if p := expandHomeDir(c.Storage.TokenPath); p != "" {
		return p
	}
	return filepath.Join(c.DataDirPath(), "session.json")
}

// DBFilePath returns where the sqlite backend persists the session.
func (c *Config) DBFilePath() string {
	if p := expandHomeDir(c.Storage.DBPath); p != "" {
		return p
	}
	return filepath.Join(c.DataDirPath(), "vulnpilot.db")
}

// LogDirPath returns the directory for run logs.
func (c *Config) LogDirPath() string {
	if p := expandHomeDir(c.Logging.Dir); p != "" {
		return p
	}
	return filepath.Join(c.DataDirPath(), "logs")
}

// RequestTimeout returns the per-request timeout, zero meaning none.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Network.TimeoutSeconds) * time.Second
}

// LoginTimeout returns how long `login` waits for the OAuth redirect.
func (c *Config) LoginTimeout() time.Duration {
	if c.Callback.TimeoutSeconds <= 0 {
		return time.Duration(DefaultLoginTimeout) * time.Second
	}
	return time.Duration(c.Callback.TimeoutSeconds) * time.Second
}

func expandHomeDir(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
