package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ResolverLoader = "loader"
	ResolverCLI    = "cli"
)

type RestartConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type TracingConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Daemon holds driftwatchd settings.
type Daemon struct {
	RepoPath        string        `yaml:"repo_path"`
	DeviceName      string        `yaml:"device_name"`
	ComposeFiles    []string      `yaml:"compose_files"`
	ScanInterval    time.Duration `yaml:"scan_interval"`
	InspectTimeout  time.Duration `yaml:"inspect_timeout"`
	ScanConcurrency int           `yaml:"scan_concurrency"`
	Resolver        string        `yaml:"resolver"`
	Listen          string        `yaml:"listen"`
	Watch           bool          `yaml:"watch"`
	WatchDebounce   time.Duration `yaml:"watch_debounce"`
	Restart         RestartConfig `yaml:"restart"`
	Log             LogConfig     `yaml:"log"`
	Tracing         TracingConfig `yaml:"tracing"`
}

func DefaultDaemon() Daemon {
	return Daemon{
		ComposeFiles:    []string{"docker-compose.yml", "docker-compose.yaml"},
		ScanInterval:    5 * time.Minute,
		InspectTimeout:  10 * time.Second,
		ScanConcurrency: 4,
		Resolver:        ResolverLoader,
		Listen:          ":8080",
		WatchDebounce:   2 * time.Second,
		Restart:         RestartConfig{DBPath: "driftwatch.db"},
		Log:             LogConfig{Level: "info", Format: "text"},
	}
}

// LoadDaemon layers, from lowest to highest precedence: defaults, the YAML
// file at path (skipped when path is empty), a .env file in the working
// directory, and the process environment.
func LoadDaemon(path string) (Daemon, error) {
	cfg := DefaultDaemon()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Daemon{}, fmt.Errorf("read daemon config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Daemon{}, fmt.Errorf("parse daemon config: %w", err)
		}
	}

	dotenv, err := godotenv.Read(".env")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Daemon{}, fmt.Errorf("read .env: %w", err)
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Daemon{}, err
	}
	return cfg, nil
}

func (c *Daemon) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	seconds := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
		*dst = time.Duration(n * float64(time.Second))
		return nil
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
		*dst = b
		return nil
	}

	str("REPO_PATH", &c.RepoPath)
	str("DEVICE_NAME", &c.DeviceName)
	str("DRIFTWATCH_LISTEN", &c.Listen)
	str("DRIFTWATCH_RESOLVER", &c.Resolver)
	str("DRIFTWATCH_RESTART_DB", &c.Restart.DBPath)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("LOG_FILE", &c.Log.File)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Tracing.OTLPEndpoint)
	if v, ok := lookup("COMPOSE_FILE_NAMES"); ok && strings.TrimSpace(v) != "" {
		c.ComposeFiles = splitList(v)
	}
	if v, ok := lookup("COMPOSE_SCAN_CONCURRENCY"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse COMPOSE_SCAN_CONCURRENCY: %w", err)
		}
		c.ScanConcurrency = n
	}

	return errors.Join(
		seconds("COMPOSE_SCAN_INTERVAL", &c.ScanInterval),
		seconds("COMPOSE_INSPECT_TIMEOUT", &c.InspectTimeout),
		boolean("DRIFTWATCH_WATCH", &c.Watch),
		boolean("DRIFTWATCH_RESTART_ENABLED", &c.Restart.Enabled),
	)
}

// Validate reports every invalid setting at once.
func (c Daemon) Validate() error {
	var errs []error
	if strings.TrimSpace(c.RepoPath) == "" {
		errs = append(errs, errors.New("repo path is required (REPO_PATH or repo_path)"))
	}
	if strings.TrimSpace(c.DeviceName) == "" {
		errs = append(errs, errors.New("device name is required (DEVICE_NAME or device_name)"))
	}
	if c.ScanInterval <= 0 {
		errs = append(errs, fmt.Errorf("scan interval must be positive, got %s", c.ScanInterval))
	}
	if c.InspectTimeout <= 0 {
		errs = append(errs, fmt.Errorf("inspect timeout must be positive, got %s", c.InspectTimeout))
	}
	if c.ScanConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("scan concurrency must be positive, got %d", c.ScanConcurrency))
	}
	if len(c.ComposeFiles) == 0 {
		errs = append(errs, errors.New("at least one compose file name is required"))
	}
	switch c.Resolver {
	case ResolverLoader, ResolverCLI:
	default:
		errs = append(errs, fmt.Errorf("resolver must be %q or %q, got %q", ResolverLoader, ResolverCLI, c.Resolver))
	}
	if c.Restart.Enabled && strings.TrimSpace(c.Restart.DBPath) == "" {
		errs = append(errs, errors.New("restart db path is required when restarts are enabled"))
	}
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
