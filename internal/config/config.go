package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds application configuration.
type Config struct {
	APIKey       string        `toml:"api_key"`
	BaseURL      string        `toml:"base_url"`
	Chains       []string      `toml:"chains"`
	PageSize     int           `toml:"page_size"`
	PageInterval time.Duration `toml:"page_interval"`
	PageTimeout  time.Duration `toml:"page_timeout"`

	// Dir may contain {owner}, replaced by the owner address.
	Dir          string `toml:"dir"`
	Concurrency  int    `toml:"concurrency"`
	Gateway      string `toml:"gateway"`
	MaxExtension int    `toml:"max_extension"`

	DBPath           string        `toml:"db_path"`
	StatusAddr       string        `toml:"status_addr"`
	ProgressInterval time.Duration `toml:"progress_interval"`
	Quiet            bool          `toml:"quiet"`
	LogLevel         string        `toml:"log_level"`
	LogFormat        string        `toml:"log_format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseURL:          "https://api.simplehash.com/api/v0",
		Chains:           []string{"ethereum"},
		PageSize:         50,
		PageTimeout:      30 * time.Second,
		Dir:              DefaultDir(),
		Concurrency:      8,
		Gateway:          "ipfs.io",
		MaxExtension:     5,
		DBPath:           DefaultDBPath(),
		ProgressInterval: 500 * time.Millisecond,
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// DefaultDBPath returns the default ledger path using XDG_CACHE_HOME.
func DefaultDBPath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "nftfolder", "runs.db")
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "nftfolder", "config.toml")
}

// DefaultDir returns the default destination template.
func DefaultDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "nft-folder", "{owner}")
}

// Load builds the configuration from defaults, the TOML file at path and
// NFTFOLDER_* environment variables, in that order. An empty path selects
// DefaultConfigPath, which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	if err := cfg.LoadFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the TOML file at path. Unknown keys are an error.
func (c *Config) LoadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalid, path, strings.Join(keys, ", "))
	}
	return nil
}

// ApplyEnv overlays NFTFOLDER_* variables read through getenv.
// NFTFOLDER_API_KEY falls back to SIMPLEHASH_APIKEY.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if key := getenv("NFTFOLDER_API_KEY"); key != "" {
		c.APIKey = key
	} else if key := getenv("SIMPLEHASH_APIKEY"); key != "" && c.APIKey == "" {
		c.APIKey = key
	}

	strs := map[string]*string{
		"NFTFOLDER_BASE_URL":    &c.BaseURL,
		"NFTFOLDER_DIR":         &c.Dir,
		"NFTFOLDER_GATEWAY":     &c.Gateway,
		"NFTFOLDER_DB":          &c.DBPath,
		"NFTFOLDER_STATUS_ADDR": &c.StatusAddr,
		"NFTFOLDER_LOG_LEVEL":   &c.LogLevel,
		"NFTFOLDER_LOG_FORMAT":  &c.LogFormat,
	}
	for name, dst := range strs {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}

	if v := getenv("NFTFOLDER_CHAINS"); v != "" {
		c.Chains = SplitList(v)
	}

	ints := map[string]*int{
		"NFTFOLDER_CONCURRENCY":   &c.Concurrency,
		"NFTFOLDER_PAGE_SIZE":     &c.PageSize,
		"NFTFOLDER_MAX_EXTENSION": &c.MaxExtension,
	}
	for name, dst := range ints {
		v := getenv(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalid, name, err)
		}
		*dst = n
	}

	durations := map[string]*time.Duration{
		"NFTFOLDER_PAGE_INTERVAL":     &c.PageInterval,
		"NFTFOLDER_PAGE_TIMEOUT":      &c.PageTimeout,
		"NFTFOLDER_PROGRESS_INTERVAL": &c.ProgressInterval,
	}
	for name, dst := range durations {
		v := getenv(name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalid, name, err)
		}
		*dst = d
	}
	return nil
}

// Validate checks the configuration for a run against owner.
func (c *Config) Validate(owner string) error {
	var errs []error
	if strings.TrimSpace(owner) == "" {
		errs = append(errs, errors.New("owner address is required"))
	}
	if c.APIKey == "" {
		errs = append(errs, errors.New("api key is required (NFTFOLDER_API_KEY or SIMPLEHASH_APIKEY)"))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.PageSize < 1 || c.PageSize > 50 {
		errs = append(errs, fmt.Errorf("page size must be between 1 and 50, got %d", c.PageSize))
	}
	if c.MaxExtension < 1 {
		errs = append(errs, fmt.Errorf("max extension must be at least 1, got %d", c.MaxExtension))
	}
	if c.PageInterval < 0 {
		errs = append(errs, fmt.Errorf("page interval must not be negative, got %s", c.PageInterval))
	}
	if len(c.Chains) == 0 {
		errs = append(errs, errors.New("at least one chain is required"))
	}
	if c.Dir == "" {
		errs = append(errs, errors.New("destination directory is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// ResolveDir expands a leading ~ and the {owner} placeholder.
func (c *Config) ResolveDir(owner string) string {
	dir := strings.ReplaceAll(c.Dir, "{owner}", owner)
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	return dir
}

// SplitList splits a comma separated list, dropping empty items.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
