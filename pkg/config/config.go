package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ArrayFlags collects a repeated float flag, e.g. -theta 0 -theta 30.
type ArrayFlags []float64

func (a *ArrayFlags) String() string {
	parts := make([]string, len(*a))
	for i, v := range *a {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func (a *ArrayFlags) Set(value string) error {
	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return err
	}
	*a = append(*a, val)
	return nil
}

// EnvPrefix prefixes every environment override, e.g. ARRAY_PORT.
const EnvPrefix = "ARRAY"

// Config holds all configuration settings for the array service
type Config struct {
	Port            string        `mapstructure:"port"`
	WorkerCount     int           `mapstructure:"workers"`
	WebhookURL      string        `mapstructure:"webhook_url"`
	EnableProfiling bool          `mapstructure:"enable_profiling"`
	ProfilingPort   string        `mapstructure:"profiling_port"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst"`
	CacheSize       int           `mapstructure:"cache_size"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	MaxElements     int           `mapstructure:"max_elements"`
	MaxSpacing      float64       `mapstructure:"max_spacing"`
	MaxAperture     float64       `mapstructure:"max_aperture"`
	MaxGridCells    int           `mapstructure:"max_grid_cells"`
	MaxGridWork     int           `mapstructure:"max_grid_work"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	TimingFile      string        `mapstructure:"timing_file"`
	LogLevel        string        `mapstructure:"log_level"`
	LogJSON         bool          `mapstructure:"log_json"`
	Quiet           bool          `mapstructure:"quiet"`
	Plots           bool          `mapstructure:"plots"`
}

var defaults = map[string]interface{}{
	"port":             "5001",
	"workers":          5,
	"webhook_url":      "",
	"enable_profiling": false,
	"profiling_port":   "6060",
	"cors_origins":     []string{"http://localhost:3000", "http://127.0.0.1:3000"},
	"rate_limit":       10.0,
	"rate_burst":       20,
	"cache_size":       128,
	"cache_ttl":        time.Hour,
	"max_elements":     1000,
	"max_spacing":      10.0,
	"max_aperture":     100.0,
	"max_grid_cells":   4_000_000,
	"max_grid_work":    1_000_000_000,
	"request_timeout":  180 * time.Second,
	"timing_file":      "array_timing_results.csv",
	"log_level":        "info",
	"log_json":         false,
	"quiet":            false,
	"plots":            true,
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads defaults, an optional config file and ARRAY_* environment
// overrides. An empty path searches for arrayserver.{yaml,json,toml} in the
// working directory and /etc/arrayserver; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("arrayserver")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/arrayserver")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	// Comma separated lists arrive as a single string from the environment.
	cfg.CORSOrigins = splitList(strings.Join(cfg.CORSOrigins, ","))
	return &cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the limits the service depends on.
func (c *Config) Validate() error {
	switch {
	case c.Port == "":
		return errors.New("port must be set")
	case c.WorkerCount <= 0:
		return fmt.Errorf("workers must be > 0, got %d", c.WorkerCount)
	case c.RateLimit < 0:
		return fmt.Errorf("rate_limit must be >= 0, got %g", c.RateLimit)
	case c.RateLimit > 0 && c.RateBurst <= 0:
		return fmt.Errorf("rate_burst must be > 0, got %d", c.RateBurst)
	case c.MaxElements <= 0:
		return fmt.Errorf("max_elements must be > 0, got %d", c.MaxElements)
	case !(c.MaxSpacing > 0):
		return fmt.Errorf("max_spacing must be > 0, got %g", c.MaxSpacing)
	case !(c.MaxAperture > 0):
		return fmt.Errorf("max_aperture must be > 0, got %g", c.MaxAperture)
	case c.MaxGridCells <= 0:
		return fmt.Errorf("max_grid_cells must be > 0, got %d", c.MaxGridCells)
	case c.MaxGridWork <= 0:
		return fmt.Errorf("max_grid_work must be > 0, got %d", c.MaxGridWork)
	case c.RequestTimeout <= 0:
		return fmt.Errorf("request_timeout must be > 0, got %s", c.RequestTimeout)
	}
	return nil
}
