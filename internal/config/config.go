// Package config loads botcsync.yaml. Every key is optional; missing keys
// keep their defaults and command-line flags override both.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/botcsync/internal/engine"
	"github.com/roach88/botcsync/internal/manifest"
	"github.com/roach88/botcsync/internal/wiki"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "botcsync.yaml"

// Config is the full configuration.
type Config struct {
	// DataDir holds per-character records, characters.json and the manifest.
	DataDir string `yaml:"data_dir"`
	// DistDir receives packaged output.
	DistDir string `yaml:"dist_dir"`
	// HistoryDB is the run ledger path. Empty disables history.
	HistoryDB string `yaml:"history_db"`
	// Source is recorded in the manifest.
	Source string `yaml:"source"`

	Wiki  Wiki  `yaml:"wiki"`
	Fetch Fetch `yaml:"fetch"`
}

// Wiki configures the wiki client.
type Wiki struct {
	BaseURL      string        `yaml:"base_url"`
	UserAgent    string        `yaml:"user_agent"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// Fetch configures fetch dispatch.
type Fetch struct {
	Concurrency int           `yaml:"concurrency"`
	BatchDelay  time.Duration `yaml:"batch_delay"`
}

// Default returns the built-in configuration.
func Default() *Config {
	w := wiki.DefaultConfig()
	return &Config{
		DataDir:   "data/characters",
		DistDir:   "dist",
		HistoryDB: "data/history.db",
		Source:    manifest.DefaultSource,
		Wiki: Wiki{
			BaseURL:      w.BaseURL,
			UserAgent:    w.UserAgent,
			Timeout:      w.Timeout,
			MaxRetries:   w.MaxRetries,
			RetryBackoff: w.RetryBackoff,
		},
		Fetch: Fetch{
			Concurrency: engine.DefaultConcurrency,
			BatchDelay:  engine.DefaultBatchDelay,
		},
	}
}

// Load reads the configuration at path. With an empty path DefaultFile is
// tried and its absence is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir must not be empty"))
	}
	if c.Wiki.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("wiki.timeout must be positive, got %s", c.Wiki.Timeout))
	}
	if c.Wiki.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("wiki.max_retries must not be negative, got %d", c.Wiki.MaxRetries))
	}
	if c.Fetch.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("fetch.concurrency must be at least 1, got %d", c.Fetch.Concurrency))
	}
	if c.Fetch.BatchDelay < 0 {
		errs = append(errs, fmt.Errorf("fetch.batch_delay must not be negative, got %s", c.Fetch.BatchDelay))
	}
	return errors.Join(errs...)
}

// WikiConfig returns the wiki client settings.
func (c *Config) WikiConfig() wiki.Config {
	return wiki.Config{
		BaseURL:      c.Wiki.BaseURL,
		UserAgent:    c.Wiki.UserAgent,
		Timeout:      c.Wiki.Timeout,
		MaxRetries:   c.Wiki.MaxRetries,
		RetryBackoff: c.Wiki.RetryBackoff,
	}
}
