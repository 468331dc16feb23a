package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultAPITimeout      = 30 * time.Second
	defaultResolverTimeout = 10 * time.Second
	defaultCallDelay       = 5 * time.Second
	defaultStatePath       = "dnsdrift.db"
	defaultRecordsFile     = "records.txt"
	defaultLogLevel        = "info"
	defaultLogEnv          = "prod"
	defaultMetricsAddr     = ":9090"
	defaultProbeServer     = "9.9.9.9:53"
)

// defaultResolverServices are queried in order until one returns an address.
var defaultResolverServices = []string{
	"https://checkip.amazonaws.com",
	"https://api.ipify.org",
	"https://ipv4.icanhazip.com",
}

// Pre-flight configuration errors.
var (
	ErrSecretMissing      = errors.New("api key not configured")
	ErrDesiredListMissing = errors.New("records file not found")
)

// Duration wraps time.Duration so yaml values like "5s" decode. Plain
// integers are taken as nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}
	return fmt.Errorf("invalid duration value %q", value.Value)
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

type Config struct {
	API         API           `yaml:"api"`
	RecordsFile string        `yaml:"recordsFile"`
	Resolver    Resolver      `yaml:"resolver"`
	RateLimit   RateLimit     `yaml:"ratelimit"`
	StatePath   string        `yaml:"statePath"`
	Interval    Duration      `yaml:"interval"`
	Log         Log           `yaml:"log"`
	Metrics     MetricsServer `yaml:"metrics"`
	Probe       Probe         `yaml:"probe"`
}

type API struct {
	URL     string   `yaml:"url"`
	Key     string   `yaml:"key"`
	KeyFile string   `yaml:"keyFile"`
	Timeout Duration `yaml:"timeout"`
}

type Resolver struct {
	Services []string `yaml:"services"`
	Timeout  Duration `yaml:"timeout"`
}

type RateLimit struct {
	Delay    Duration `yaml:"delay"`
	MaxCalls int      `yaml:"maxCalls"`
}

type Log struct {
	Level string `yaml:"level"`
	Env   string `yaml:"env"`
}

type MetricsServer struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type Probe struct {
	Enabled bool   `yaml:"enabled"`
	Server  string `yaml:"server"`
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		f.Close()
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := f.Close(); err != nil {
		slog.Default().Warn("fail close config file", "path", path, "error", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = Duration(defaultAPITimeout)
	}
	if len(cfg.Resolver.Services) == 0 {
		cfg.Resolver.Services = defaultResolverServices
	}
	if cfg.Resolver.Timeout == 0 {
		cfg.Resolver.Timeout = Duration(defaultResolverTimeout)
	}
	if cfg.RateLimit.Delay == 0 {
		cfg.RateLimit.Delay = Duration(defaultCallDelay)
	}
	if cfg.StatePath == "" {
		cfg.StatePath = defaultStatePath
	}
	if cfg.RecordsFile == "" {
		cfg.RecordsFile = defaultRecordsFile
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Log.Env == "" {
		cfg.Log.Env = defaultLogEnv
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = defaultMetricsAddr
	}
	if cfg.Probe.Server == "" {
		cfg.Probe.Server = defaultProbeServer
	}
}

// applyEnv overrides file values from the environment if set.
func (cfg *Config) applyEnv() {
	if url := os.Getenv("DNSDRIFT_API_URL"); url != "" {
		cfg.API.URL = url
	}
	if key := os.Getenv("DNSDRIFT_API_KEY"); key != "" {
		cfg.API.Key = key
	}
	if keyFile := os.Getenv("DNSDRIFT_API_KEY_FILE"); keyFile != "" {
		cfg.API.KeyFile = keyFile
	}
	if timeout := os.Getenv("DNSDRIFT_API_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.API.Timeout = Duration(d)
		} else {
			slog.Default().Warn("fail parse api timeout to duration from string", "timeout", timeout, "error", err)
		}
	}
	if records := os.Getenv("DNSDRIFT_RECORDS_FILE"); records != "" {
		cfg.RecordsFile = records
	}
	if services := os.Getenv("DNSDRIFT_RESOLVER_SERVICES"); services != "" {
		cfg.Resolver.Services = strings.Split(services, ",")
	}
	if timeout := os.Getenv("DNSDRIFT_RESOLVER_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.Resolver.Timeout = Duration(d)
		} else {
			slog.Default().Warn("fail parse resolver timeout to duration from string", "timeout", timeout, "error", err)
		}
	}
	if delay := os.Getenv("DNSDRIFT_RATELIMIT_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil {
			cfg.RateLimit.Delay = Duration(d)
		} else {
			slog.Default().Warn("fail parse ratelimit delay to duration from string", "delay", delay, "error", err)
		}
	}
	if maxCalls := os.Getenv("DNSDRIFT_RATELIMIT_MAX_CALLS"); maxCalls != "" {
		if n, err := strconv.Atoi(maxCalls); err == nil {
			cfg.RateLimit.MaxCalls = n
		} else {
			slog.Default().Warn("fail parse ratelimit max calls to int from string", "maxCalls", maxCalls, "error", err)
		}
	}
	if statePath := os.Getenv("DNSDRIFT_STATE_PATH"); statePath != "" {
		cfg.StatePath = statePath
	}
	if interval := os.Getenv("DNSDRIFT_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Interval = Duration(d)
		} else {
			slog.Default().Warn("fail parse interval to duration from string", "interval", interval, "error", err)
		}
	}
	if loglevel := os.Getenv("DNSDRIFT_LOG_LEVEL"); loglevel != "" {
		cfg.Log.Level = loglevel
	}
	if logenv := os.Getenv("DNSDRIFT_LOG_ENV"); logenv != "" {
		cfg.Log.Env = logenv
	}
	if addr := os.Getenv("DNSDRIFT_METRICS_ADDR"); addr != "" {
		cfg.Metrics.Addr = addr
		cfg.Metrics.Enabled = true
	}
	if server := os.Getenv("DNSDRIFT_PROBE_SERVER"); server != "" {
		cfg.Probe.Server = server
		cfg.Probe.Enabled = true
	}
}

// Key resolves the shared secret. A key file takes precedence over the
// inline value so deployments can mount the secret read-only.
func (cfg *Config) Key() (string, error) {
	if cfg.API.KeyFile != "" {
		content, err := os.ReadFile(cfg.API.KeyFile)
		if err != nil {
			return "", fmt.Errorf("read key file: %w", err)
		}
		key := strings.TrimSpace(string(content))
		if key == "" {
			return "", ErrSecretMissing
		}
		return key, nil
	}
	if cfg.API.Key == "" {
		return "", ErrSecretMissing
	}
	return cfg.API.Key, nil
}

// Validate checks everything needed before the first network call.
func (cfg *Config) Validate() error {
	if cfg.API.URL == "" {
		return errors.New("api url not configured")
	}
	if _, err := cfg.Key(); err != nil {
		return err
	}
	if _, err := os.Stat(cfg.RecordsFile); err != nil {
		return fmt.Errorf("%w: %s", ErrDesiredListMissing, cfg.RecordsFile)
	}
	if len(cfg.Resolver.Services) == 0 {
		return errors.New("no resolver services configured")
	}
	return nil
}
