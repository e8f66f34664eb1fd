package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment variables that override scalar config keys,
// e.g. MPE_PORT or MPE_LOOKUP_RATE_LIMIT.
const EnvPrefix = "MPE"

// PathEnv names the environment variable holding the config file path.
const PathEnv = "MPE_CONFIG"

// HealthPath is the fixed liveness route. Neither metrics_path nor
// telemetry_path may use it.
const HealthPath = "/healthz"

// Default values applied when fields are absent from the config file.
const (
	DefaultPath              = "./config.yml"
	DefaultListenAddress     = "127.0.0.1"
	DefaultPort              = 9001
	DefaultMetricsPath       = "/metrics"
	DefaultTelemetryPath     = "/exporter/metrics"
	DefaultLogLevel          = "info"
	DefaultScrapeConcurrency = 4
	DefaultRCONCommand       = "list"
	DefaultRCONTimeout       = 5 * time.Second
	DefaultRCONHost          = "127.0.0.1"
	DefaultRCONPort          = 25575
	DefaultLookupBaseURL     = "https://api.mojang.com"
	DefaultLookupTimeout     = 10 * time.Second
	DefaultLookupRateLimit   = 10.0
	DefaultLookupBurst       = 10
	DefaultUserAgent         = "minecraft-exporter"
)

// Error wraps every problem found while loading configuration. It is fatal
// at startup.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("config %s: %v", e.Path, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Config is the exporter configuration. It is loaded once at startup and
// never mutated afterwards.
type Config struct {
	ListenAddress string `mapstructure:"listen_address" yaml:"listen_address"`
	Port          int    `mapstructure:"port" yaml:"port"`

	// MetricsPath serves the fleet document; TelemetryPath serves the
	// exporter's own metrics.
	MetricsPath   string `mapstructure:"metrics_path" yaml:"metrics_path"`
	TelemetryPath string `mapstructure:"telemetry_path" yaml:"telemetry_path"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// ScrapeConcurrency bounds how many player records of one server are
	// read and resolved at the same time.
	ScrapeConcurrency int `mapstructure:"scrape_concurrency" yaml:"scrape_concurrency"`

	RCON    RCONConfig   `mapstructure:"rcon" yaml:"rcon"`
	Lookup  LookupConfig `mapstructure:"lookup" yaml:"lookup"`
	Servers []Server     `mapstructure:"servers" yaml:"servers"`
}

// RCONConfig holds settings shared by every server's RCON exchange.
type RCONConfig struct {
	// Command is issued to obtain the online player list.
	Command string        `mapstructure:"command" yaml:"command"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// MarshalYAML writes the timeout in its string form so it reads back.
func (r RCONConfig) MarshalYAML() (interface{}, error) {
	return struct {
		Command string `yaml:"command"`
		Timeout string `yaml:"timeout"`
	}{r.Command, r.Timeout.String()}, nil
}

// LookupConfig configures the player name-history API.
type LookupConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// RateLimit is the sustained requests per second; zero disables throttling.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst     int     `mapstructure:"burst" yaml:"burst"`

	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
}

// MarshalYAML writes the timeout in its string form so it reads back.
func (l LookupConfig) MarshalYAML() (interface{}, error) {
	return struct {
		BaseURL   string  `yaml:"base_url"`
		Timeout   string  `yaml:"timeout"`
		RateLimit float64 `yaml:"rate_limit"`
		Burst     int     `yaml:"burst"`
		UserAgent string  `yaml:"user_agent"`
	}{l.BaseURL, l.Timeout.String(), l.RateLimit, l.Burst, l.UserAgent}, nil
}

// Server describes one managed game server.
type Server struct {
	// ServerName is the value of the "server" label on every sample.
	ServerName string `mapstructure:"server_name" yaml:"server_name"`

	// StatsRoot is the directory holding one <uuid>.json per player,
	// normally <install_root>/world/stats.
	StatsRoot string `mapstructure:"stats_root" yaml:"stats_root"`

	// InstallRoot overrides the directory measured for disk usage. When
	// empty it is derived from StatsRoot.
	InstallRoot string `mapstructure:"install_root" yaml:"install_root,omitempty"`

	ServerIP string `mapstructure:"server_ip" yaml:"server_ip"`
	RCONPort int    `mapstructure:"rcon_port" yaml:"rcon_port"`

	// RCONPassword is used literally; RCONPasswordEnv names an environment
	// variable holding the password and wins when set.
	RCONPassword    string `mapstructure:"rcon_password" yaml:"rcon_password,omitempty"`
	RCONPasswordEnv string `mapstructure:"rcon_password_env" yaml:"rcon_password_env,omitempty"`
}

// Password returns the RCON password, resolving RCONPasswordEnv first.
func (s Server) Password() string {
	if s.RCONPasswordEnv != "" {
		if v, ok := os.LookupEnv(s.RCONPasswordEnv); ok {
			return v
		}
	}
	return s.RCONPassword
}

// RCONAddress returns host:port of the server's RCON listener.
func (s Server) RCONAddress() string {
	return net.JoinHostPort(s.ServerIP, strconv.Itoa(s.RCONPort))
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.ListenAddress, strconv.Itoa(c.Port))
}

// SlogLevel maps LogLevel to a slog.Level.
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

// Default returns a Config pre-populated with default values and no servers.
func Default() *Config {
	return &Config{
		ListenAddress:     DefaultListenAddress,
		Port:              DefaultPort,
		MetricsPath:       DefaultMetricsPath,
		TelemetryPath:     DefaultTelemetryPath,
		LogLevel:          DefaultLogLevel,
		ScrapeConcurrency: DefaultScrapeConcurrency,
		RCON: RCONConfig{
			Command: DefaultRCONCommand,
			Timeout: DefaultRCONTimeout,
		},
		Lookup: LookupConfig{
			BaseURL:   DefaultLookupBaseURL,
			Timeout:   DefaultLookupTimeout,
			RateLimit: DefaultLookupRateLimit,
			Burst:     DefaultLookupBurst,
			UserAgent: DefaultUserAgent,
		},
		Servers: []Server{},
	}
}

// ResolvePath returns flagPath if set, else $MPE_CONFIG, else DefaultPath.
func ResolvePath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if p := os.Getenv(PathEnv); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads and parses the YAML config file at path. Scalar keys may be
// overridden by MPE_* environment variables. Missing optional fields are
// filled with defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	if err := v.ReadInConfig(); err != nil {
		return nil, &Error{Path: path, Err: fmt.Errorf("read file: %w", err)}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, &Error{Path: path, Err: fmt.Errorf("decode: %w", err)}
	}
	applyServerDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	return cfg, nil
}

// OpenOrCreate loads path, first writing a default config there if the file
// does not exist.
func OpenOrCreate(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Warn("config: file not found, creating a default one", "path", path)
		if err := WriteDefault(path); err != nil {
			return nil, err
		}
	}
	return Load(path)
}

// WriteDefault writes Default() to path as YAML.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return &Error{Path: path, Err: fmt.Errorf("encode default: %w", err)}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return &Error{Path: path, Err: fmt.Errorf("write default: %w", err)}
	}
	return nil
}

// setDefaults registers every scalar default with v so that AutomaticEnv can
// override keys the file does not mention.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("listen_address", d.ListenAddress)
	v.SetDefault("port", d.Port)
	v.SetDefault("metrics_path", d.MetricsPath)
	v.SetDefault("telemetry_path", d.TelemetryPath)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("scrape_concurrency", d.ScrapeConcurrency)
	v.SetDefault("rcon.command", d.RCON.Command)
	v.SetDefault("rcon.timeout", d.RCON.Timeout)
	v.SetDefault("lookup.base_url", d.Lookup.BaseURL)
	v.SetDefault("lookup.timeout", d.Lookup.Timeout)
	v.SetDefault("lookup.rate_limit", d.Lookup.RateLimit)
	v.SetDefault("lookup.burst", d.Lookup.Burst)
	v.SetDefault("lookup.user_agent", d.Lookup.UserAgent)
}

func applyServerDefaults(cfg *Config) {
	for i := range cfg.Servers {
		s := &cfg.Servers[i]
		if s.ServerIP == "" {
			s.ServerIP = DefaultRCONHost
		}
		if s.RCONPort == 0 {
			s.RCONPort = DefaultRCONPort
		}
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port %d out of range", cfg.Port)
	}
	if !strings.HasPrefix(cfg.MetricsPath, "/") {
		return fmt.Errorf("metrics_path must start with /")
	}
	if cfg.MetricsPath == HealthPath {
		return fmt.Errorf("metrics_path %q is reserved", HealthPath)
	}
	if cfg.TelemetryPath != "" {
		if !strings.HasPrefix(cfg.TelemetryPath, "/") {
			return fmt.Errorf("telemetry_path must start with /")
		}
		if cfg.TelemetryPath == cfg.MetricsPath {
			return fmt.Errorf("telemetry_path must differ from metrics_path")
		}
		if cfg.TelemetryPath == HealthPath || cfg.TelemetryPath == "/" {
			return fmt.Errorf("telemetry_path %q is reserved", cfg.TelemetryPath)
		}
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log_level %q", cfg.LogLevel)
	}
	if cfg.ScrapeConcurrency <= 0 {
		return fmt.Errorf("scrape_concurrency must be positive")
	}
	if strings.TrimSpace(cfg.RCON.Command) == "" {
		return fmt.Errorf("rcon.command is required")
	}
	if cfg.RCON.Timeout <= 0 {
		return fmt.Errorf("rcon.timeout must be positive")
	}
	u, err := url.Parse(cfg.Lookup.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("lookup.base_url %q is not an http(s) URL", cfg.Lookup.BaseURL)
	}
	if cfg.Lookup.RateLimit < 0 {
		return fmt.Errorf("lookup.rate_limit must not be negative")
	}

	seen := make(map[string]bool, len(cfg.Servers))
	for i, s := range cfg.Servers {
		if s.ServerName == "" {
			return fmt.Errorf("servers[%d]: server_name is required", i)
		}
		if seen[s.ServerName] {
			return fmt.Errorf("servers[%d]: duplicate server_name %q", i, s.ServerName)
		}
		seen[s.ServerName] = true
		if s.StatsRoot == "" {
			return fmt.Errorf("servers[%d] %q: stats_root is required", i, s.ServerName)
		}
		if s.RCONPort <= 0 || s.RCONPort > 65535 {
			return fmt.Errorf("servers[%d] %q: rcon_port %d out of range", i, s.ServerName, s.RCONPort)
		}
	}
	return nil
}
