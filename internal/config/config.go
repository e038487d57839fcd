// Package config loads orchestrator settings from the environment, optionally layered over a
// YAML file, and hot-reloads the public orchestrator URL when that file changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

const PathEnv = "ORCHESTRATOR_CONFIG_PATH"

type Config struct {
	HTTPAddr          string `yaml:"http_addr"`
	PostgresDSN       string `yaml:"postgres_dsn"`
	RedisAddr         string `yaml:"redis_addr"`
	IdentityKeyPrefix string `yaml:"identity_key_prefix"`

	OrchestratorURL      string        `yaml:"orchestrator_url"`
	EndpointSyncInterval time.Duration `yaml:"endpoint_sync_interval"`

	LivenessTimeout     time.Duration `yaml:"liveness_timeout"`
	OrphanSweepInterval time.Duration `yaml:"orphan_sweep_interval"`
	MaxJobsPerWorker    int           `yaml:"max_jobs_per_worker"`
	AssignmentScanLimit int           `yaml:"assignment_scan_limit"`

	DefaultPageSize int  `yaml:"default_page_size"`
	MaxPageSize     int  `yaml:"max_page_size"`
	MetricsEnabled  bool `yaml:"metrics_enabled"`

	// Path is the YAML file the values were read from, empty when env only.
	Path string `yaml:"-"`
}

func Defaults() Config {
	return Config{
		HTTPAddr:             ":8080",
		IdentityKeyPrefix:    "identity:",
		EndpointSyncInterval: time.Minute,
		LivenessTimeout:      2 * time.Minute,
		OrphanSweepInterval:  30 * time.Second,
		MaxJobsPerWorker:     1,
		AssignmentScanLimit:  100,
		DefaultPageSize:      50,
		MaxPageSize:          500,
		MetricsEnabled:       true,
	}
}

// Load reads the file named by ORCHESTRATOR_CONFIG_PATH (if set) and then the environment.
func Load() (Config, error) {
	return LoadFile(os.Getenv(PathEnv))
}

// LoadFile applies defaults, then the YAML file at path (skipped when path is empty), then
// explicit environment variables.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg.Path = path
	}

	cfg.HTTPAddr = envOr("HTTP_ADDR", cfg.HTTPAddr)
	cfg.PostgresDSN = envOr("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.RedisAddr = envOr("REDIS_ADDR", cfg.RedisAddr)
	cfg.IdentityKeyPrefix = envOr("IDENTITY_KEY_PREFIX", cfg.IdentityKeyPrefix)
	cfg.OrchestratorURL = envOr("ORCHESTRATOR_URL", cfg.OrchestratorURL)
	cfg.EndpointSyncInterval = envDurationOr("ENDPOINT_SYNC_INTERVAL", cfg.EndpointSyncInterval)
	cfg.LivenessTimeout = envDurationOr("LIVENESS_TIMEOUT", cfg.LivenessTimeout)
	cfg.OrphanSweepInterval = envDurationOr("ORPHAN_SWEEP_INTERVAL", cfg.OrphanSweepInterval)
	cfg.MaxJobsPerWorker = envIntOr("MAX_JOBS_PER_WORKER", cfg.MaxJobsPerWorker)
	cfg.AssignmentScanLimit = envIntOr("ASSIGNMENT_SCAN_LIMIT", cfg.AssignmentScanLimit)
	cfg.DefaultPageSize = envIntOr("DEFAULT_PAGE_SIZE", cfg.DefaultPageSize)
	cfg.MaxPageSize = envIntOr("MAX_PAGE_SIZE", cfg.MaxPageSize)
	cfg.MetricsEnabled = envBoolOr("METRICS_ENABLED", cfg.MetricsEnabled)

	cfg.OrchestratorURL = strings.TrimRight(strings.TrimSpace(cfg.OrchestratorURL), "/")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http_addr is empty"))
	}
	if c.EndpointSyncInterval <= 0 {
		errs = append(errs, errors.New("endpoint_sync_interval must be positive"))
	}
	if c.LivenessTimeout <= 0 {
		errs = append(errs, errors.New("liveness_timeout must be positive"))
	}
	if c.OrphanSweepInterval <= 0 {
		errs = append(errs, errors.New("orphan_sweep_interval must be positive"))
	}
	if c.MaxJobsPerWorker < 1 {
		errs = append(errs, errors.New("max_jobs_per_worker must be at least 1"))
	}
	if c.AssignmentScanLimit < 1 {
		errs = append(errs, errors.New("assignment_scan_limit must be at least 1"))
	}
	if c.DefaultPageSize < 1 || c.MaxPageSize < c.DefaultPageSize {
		errs = append(errs, fmt.Errorf("page sizes invalid: default=%d max=%d", c.DefaultPageSize, c.MaxPageSize))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// URLSource holds the current orchestrator URL; safe for concurrent use.
type URLSource struct {
	v atomic.Value
}

func NewURLSource(u string) *URLSource {
	s := &URLSource{}
	s.Set(u)
	return s
}

func (s *URLSource) Set(u string) {
	s.v.Store(strings.TrimRight(strings.TrimSpace(u), "/"))
}

func (s *URLSource) OrchestratorURL() string {
	u, _ := s.v.Load().(string)
	return u
}

func envOr(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envDurationOr(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envBoolOr(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
