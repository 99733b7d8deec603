// File: internal/config/config.go

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/berrythewa/clipstack/internal/dedup"
	"github.com/berrythewa/clipstack/internal/paste"
)

// AppName names the per-user directories
const AppName = "clipstack"

// ErrInvalid wraps parse and validation failures of the preferences file
var ErrInvalid = errors.New("invalid configuration")

// ConfigPaths holds all relevant paths for the application
type ConfigPaths struct {
	BaseDir    string // Directory holding the preferences file
	ConfigFile string // Path to the preferences file
	DataDir    string // Directory for history and runtime files
	LogDir     string // Directory for log files
	TempDir    string // Directory for helper scripts
	PIDFile    string // Daemon pid file, also the single-instance lock
	SocketPath string // IPC socket
}

// Config holds the user preferences
type Config struct {
	MaxHistoryItems int           `yaml:"max_history_items" json:"max_history_items" default:"50" validate:"min=1,max=10000"`
	AutoPaste       bool          `yaml:"auto_paste" json:"auto_paste"`
	NotifyOnCopy    bool          `yaml:"notify_on_copy" json:"notify_on_copy"`
	PollInterval    time.Duration `yaml:"poll_interval" json:"poll_interval" default:"500ms" validate:"min=50ms,max=1m"`

	Storage StorageConfig `yaml:"storage" json:"storage"`
	Paste   PasteConfig   `yaml:"paste" json:"paste"`
	Dedup   dedup.Options `yaml:"dedup" json:"dedup"`
	Log     LogConfig     `yaml:"log" json:"log"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// SystemPaths is resolved at load time, never persisted
	SystemPaths ConfigPaths `yaml:"-" json:"system_paths"`
}

// StorageConfig selects the history backend
type StorageConfig struct {
	Backend string `yaml:"backend" json:"backend" default:"json" validate:"oneof=json bolt"`
	// Path overrides the backend's default file under the data dir
	Path string `yaml:"path" json:"path,omitempty"`
}

// PasteConfig tunes delivery
type PasteConfig struct {
	SettleDelay    time.Duration `yaml:"settle_delay" json:"settle_delay" default:"200ms" validate:"min=0,max=5s"`
	KeyHold        time.Duration `yaml:"key_hold" json:"key_hold" default:"30ms" validate:"min=0,max=1s"`
	AutoPasteDelay time.Duration `yaml:"auto_paste_delay" json:"auto_paste_delay" validate:"min=0,max=10s"`
	HelperTimeout  time.Duration `yaml:"helper_timeout" json:"helper_timeout" default:"3s" validate:"min=100ms,max=1m"`
	GuardTTL       time.Duration `yaml:"guard_ttl" json:"guard_ttl" default:"1500ms" validate:"min=100ms,max=1m"`

	// Strategies is the chain order; empty uses the built-in order
	Strategies []string `yaml:"strategies" json:"strategies,omitempty" validate:"dive,oneof=menu keystroke script helper responder"`
	Disabled   []string `yaml:"disabled" json:"disabled,omitempty" validate:"dive,oneof=menu keystroke script helper responder"`

	// Overrides extend the built-in per-application table, keyed by bundle id
	Overrides paste.Overrides `yaml:"overrides" json:"overrides,omitempty"`
}

// LogConfig holds logging-related configuration
type LogConfig struct {
	Level string `yaml:"level" json:"level" default:"info" validate:"oneof=debug info warn error"`
	// Format is "console", "json" or "auto" (console on a terminal)
	Format            string `yaml:"format" json:"format" default:"auto" validate:"oneof=auto console json"`
	EnableFileLogging bool   `yaml:"enable_file_logging" json:"enable_file_logging"`
}

// MetricsConfig exposes Prometheus metrics when Listen is set
type MetricsConfig struct {
	Listen string `yaml:"listen" json:"listen,omitempty" validate:"omitempty,hostname_port"`
}

// GetConfigPaths returns the platform-specific paths, creating directories
// as needed. CLIPSTACK_CONFIG_DIR and CLIPSTACK_DATA_DIR override them.
func GetConfigPaths() (*ConfigPaths, error) {
	baseDir := os.Getenv("CLIPSTACK_CONFIG_DIR")
	dataDir := os.Getenv("CLIPSTACK_DATA_DIR")

	if baseDir == "" || dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		var def string
		switch runtime.GOOS {
		case "darwin":
			def = filepath.Join(homeDir, "Library", "Application Support", AppName)
		default:
			if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
				def = filepath.Join(xdg, AppName)
			} else {
				def = filepath.Join(homeDir, ".local", "share", AppName)
			}
		}
		if dataDir == "" {
			dataDir = def
		}
		if baseDir == "" {
			if runtime.GOOS == "darwin" {
				baseDir = def
			} else if configDir, err := os.UserConfigDir(); err == nil {
				baseDir = filepath.Join(configDir, AppName)
			} else {
				baseDir = def
			}
		}
	}

	paths := &ConfigPaths{
		BaseDir:    baseDir,
		ConfigFile: filepath.Join(baseDir, "config.yaml"),
		DataDir:    dataDir,
		LogDir:     filepath.Join(dataDir, "logs"),
		TempDir:    filepath.Join(dataDir, "temp"),
		PIDFile:    filepath.Join(dataDir, AppName+".pid"),
		SocketPath: filepath.Join(dataDir, AppName+".sock"),
	}

	for _, dir := range []string{paths.BaseDir, paths.DataDir, paths.LogDir, paths.TempDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// DefaultConfig returns a new Config with default values
func DefaultConfig() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	if paths, err := GetConfigPaths(); err == nil {
		cfg.SystemPaths = *paths
	}
	return cfg
}

// Load reads the preferences file at configPath, or the default location
// when empty. A missing file is created with defaults. A file that cannot
// be parsed or fails validation yields the defaults together with an error
// wrapping ErrInvalid.
func Load(configPath string) (*Config, error) {
	paths, err := GetConfigPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config paths: %w", err)
	}
	if configPath == "" {
		configPath = paths.ConfigFile
	}
	paths.ConfigFile = configPath

	cfg, err := read(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg = defaultsOnly()
		cfg.SystemPaths = *paths
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		overrideFromEnv(cfg)
		return cfg, nil
	case err != nil:
		cfg = defaultsOnly()
		cfg.SystemPaths = *paths
		overrideFromEnv(cfg)
		return cfg, err
	}

	cfg.SystemPaths = *paths
	overrideFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		def := defaultsOnly()
		def.SystemPaths = *paths
		overrideFromEnv(def)
		return def, err
	}
	return cfg, nil
}

func defaultsOnly() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	return cfg
}

func read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, err
	}
	// keys absent from the file keep their defaults; explicit zeros stay
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field against its constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Save saves the configuration to the specified file
func (c *Config) Save(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// HistoryPath returns the history file for the configured backend
func (c *Config) HistoryPath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	name := "history.json"
	if c.Storage.Backend == "bolt" {
		name = "history.db"
	}
	return filepath.Join(c.SystemPaths.DataDir, name)
}

// overrideFromEnv overrides configuration values from environment variables
func overrideFromEnv(config *Config) {
	if val := os.Getenv("CLIPSTACK_MAX_HISTORY_ITEMS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			config.MaxHistoryItems = n
		}
	}
	if val := os.Getenv("CLIPSTACK_AUTO_PASTE"); val != "" {
		config.AutoPaste = val == "true"
	}
	if val := os.Getenv("CLIPSTACK_NOTIFY_ON_COPY"); val != "" {
		config.NotifyOnCopy = val == "true"
	}
	if val := os.Getenv("CLIPSTACK_POLL_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			config.PollInterval = d
		}
	}
	if val := os.Getenv("CLIPSTACK_STORAGE_BACKEND"); val == "json" || val == "bolt" {
		config.Storage.Backend = val
	}
	if val := os.Getenv("CLIPSTACK_LOG_LEVEL"); val != "" {
		config.Log.Level = val
	}
	if val := os.Getenv("CLIPSTACK_METRICS_LISTEN"); val != "" {
		config.Metrics.Listen = val
	}
}
