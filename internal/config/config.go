// Package config resolves taskmon settings from defaults, a YAML file,
// TASKMON_* environment variables and command-line flags, in that order.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Dicklesworthstone/taskmon/internal/aggregate"
	"github.com/Dicklesworthstone/taskmon/internal/history"
	"github.com/Dicklesworthstone/taskmon/internal/normalize"
	"github.com/Dicklesworthstone/taskmon/internal/scheduler"
)

const (
	// DefaultInterval is the polling period used when none is configured.
	DefaultInterval = 2 * time.Second
	// MinInterval is the fastest polling period accepted.
	MinInterval = 500 * time.Millisecond
)

var sortKeys = map[string]bool{"cpu": true, "mem": true, "pid": true, "name": true}

// Config carries runtime options for taskmon.
type Config struct {
	// UpdateInterval is the polling period, "2s" or milliseconds in YAML.
	UpdateInterval Duration `yaml:"update_interval"`
	// HistoryLength is the number of samples kept per series.
	HistoryLength int `yaml:"history_length"`
	// Sort is the process table order: cpu|mem|pid|name.
	Sort string `yaml:"sort"`
	// GPU enables GPU sampling.
	GPU bool `yaml:"gpu"`
	// EstimateGPU fills missing GPU utilization/temperature with flagged
	// pseudo-random estimates.
	EstimateGPU bool `yaml:"estimate_gpu"`
	// AllVolumes shows every mount when the default allow-list matches none.
	AllVolumes bool `yaml:"all_volumes"`
	// JSON prints one snapshot and exits.
	JSON bool `yaml:"json"`
	// JSONStream prints NDJSON snapshots until interrupted.
	JSONStream bool `yaml:"json_stream"`
	// LogLevel is debug|info|warn|error.
	LogLevel string `yaml:"log_level"`
	// LogFile receives logs; empty means stderr.
	LogFile string `yaml:"log_file"`

	// Path is the config file that was read, if any.
	Path string `yaml:"-"`
	// WriteConfig saves the effective configuration to Path and exits.
	WriteConfig bool `yaml:"-"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		UpdateInterval: Duration(DefaultInterval),
		HistoryLength:  history.DefaultLength,
		Sort:           "cpu",
		GPU:            true,
		EstimateGPU:    true,
		AllVolumes:     true,
		LogLevel:       "warn",
	}
}

// DefaultPath is $XDG_CONFIG_HOME/taskmon/config.yaml or its platform
// equivalent. Empty when no config dir is known.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "taskmon", "config.yaml")
}

// Load reads a YAML file over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := cfg.merge(path); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) merge(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.Path = path
	return nil
}

// Save writes c as YAML, creating parent directories.
func Save(c Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// FromFlags parses flags and environment overrides on top of the config file.
func FromFlags(args []string) (Config, error) {
	return fromArgs(args, os.Getenv)
}

func fromArgs(args []string, getenv func(string) string) (Config, error) {
	fl := Default()
	var path string
	fs := flag.NewFlagSet("taskmon", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "config file (default "+DefaultPath()+")")
	fs.Var(&fl.UpdateInterval, "interval", "refresh interval, e.g. 2s or 1500 (ms)")
	fs.IntVar(&fl.HistoryLength, "history", fl.HistoryLength, "samples kept per chart (10-360)")
	fs.StringVar(&fl.Sort, "sort", fl.Sort, "process order: cpu|mem|pid|name")
	fs.BoolVar(&fl.GPU, "gpu", fl.GPU, "enable GPU sampling")
	fs.BoolVar(&fl.EstimateGPU, "estimate-gpu", fl.EstimateGPU, "estimate missing GPU readings (flagged with ~)")
	fs.BoolVar(&fl.AllVolumes, "all-volumes", fl.AllVolumes, "show every mount when no standard volume is found")
	fs.BoolVar(&fl.JSON, "json", fl.JSON, "output one-shot JSON and exit")
	fs.BoolVar(&fl.JSONStream, "json-stream", fl.JSONStream, "stream NDJSON until interrupted")
	fs.StringVar(&fl.LogLevel, "log-level", fl.LogLevel, "log level: debug|info|warn|error")
	fs.StringVar(&fl.LogFile, "log-file", fl.LogFile, "write logs to this file instead of stderr")
	fs.BoolVar(&fl.WriteConfig, "write-config", false, "save the effective config and exit")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if path == "" {
		path = getenv("TASKMON_CONFIG")
	}
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	if err := cfg.merge(path); err != nil {
		return Config{}, err
	}
	cfg.Path = path
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "interval":
			cfg.UpdateInterval = fl.UpdateInterval
		case "history":
			cfg.HistoryLength = fl.HistoryLength
		case "sort":
			cfg.Sort = fl.Sort
		case "gpu":
			cfg.GPU = fl.GPU
		case "estimate-gpu":
			cfg.EstimateGPU = fl.EstimateGPU
		case "all-volumes":
			cfg.AllVolumes = fl.AllVolumes
		case "json":
			cfg.JSON = fl.JSON
		case "json-stream":
			cfg.JSONStream = fl.JSONStream
		case "log-level":
			cfg.LogLevel = fl.LogLevel
		case "log-file":
			cfg.LogFile = fl.LogFile
		case "write-config":
			cfg.WriteConfig = fl.WriteConfig
		}
	})

	cfg.Normalize()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("TASKMON_INTERVAL"); v != "" {
		// bare numbers in the environment are seconds
		if parsed, err := time.ParseDuration(v); err == nil {
			c.UpdateInterval = Duration(parsed)
		} else if parsed, err2 := time.ParseDuration(v + "s"); err2 == nil {
			c.UpdateInterval = Duration(parsed)
		} else {
			return fmt.Errorf("config: TASKMON_INTERVAL: %w", err)
		}
	}
	if v := getenv("TASKMON_HISTORY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: TASKMON_HISTORY: %w", err)
		}
		c.HistoryLength = n
	}
	if v := getenv("TASKMON_SORT"); v != "" {
		c.Sort = v
	}
	if v := getenv("TASKMON_GPU"); v == "0" {
		c.GPU = false
	}
	if v := getenv("TASKMON_ESTIMATE_GPU"); v == "0" {
		c.EstimateGPU = false
	}
	if v := getenv("TASKMON_ALL_VOLUMES"); v == "0" {
		c.AllVolumes = false
	}
	if v := getenv("TASKMON_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv("TASKMON_LOG_FILE"); v != "" {
		c.LogFile = v
	}
	return nil
}

// Normalize clamps numeric settings into range. Zero or negative values fall
// back to the defaults.
func (c *Config) Normalize() {
	switch d := c.UpdateInterval.Std(); {
	case d <= 0:
		c.UpdateInterval = Duration(DefaultInterval)
	case d < MinInterval:
		c.UpdateInterval = Duration(MinInterval)
	}
	c.HistoryLength = history.Clamp(c.HistoryLength)
	c.Sort = strings.ToLower(strings.TrimSpace(c.Sort))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

// Validate reports settings that cannot be clamped into shape.
func (c *Config) Validate() error {
	if !sortKeys[c.Sort] {
		return fmt.Errorf("config: sort must be cpu, mem, pid or name, got %q", c.Sort)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.JSON && c.JSONStream {
		return errors.New("config: json and json_stream are mutually exclusive")
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if c.LogLevel == "" {
		return slog.LevelWarn, nil
	}
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log_level: %w", err)
	}
	return lvl, nil
}

// Scheduler converts the settings the polling engine consumes.
func (c *Config) Scheduler() scheduler.Config {
	sc := scheduler.Config{
		UpdateInterval: c.UpdateInterval.Std(),
		HistoryLength:  c.HistoryLength,
		Volumes:        aggregate.VolumeOptions{AllowAll: c.AllVolumes},
	}
	if c.EstimateGPU {
		sc.Estimator = normalize.NewRandomEstimator(time.Now().UnixNano())
	}
	return sc
}
