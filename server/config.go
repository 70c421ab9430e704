package server

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lewtec/imagesprite/internal/ingest"
)

type Config struct {
	Store    ConfigStore    `yaml:"store"`
	Metadata ConfigMetadata `yaml:"metadata"`
	HTTP     ConfigHTTP     `yaml:"http"`
	Ingest   ConfigIngest   `yaml:"ingest"`
	Log      ConfigLog      `yaml:"log"`
}

type ConfigStore struct {
	Path    string `yaml:"path"`
	MaxSize int64  `yaml:"max_size"`
}

type ConfigMetadata struct {
	// Path of the classification log database. Metadata routes are
	// disabled when empty.
	Path string `yaml:"path"`
}

type ConfigHTTP struct {
	Addr string `yaml:"addr"`
	// RateLimit is the number of sprite requests per second served before
	// answering 429. Zero disables the limit.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
	// Fetchers bounds concurrent store reads within one sprite.
	Fetchers int `yaml:"fetchers"`
	// Title of the index page.
	Title string `yaml:"title"`
}

type ConfigIngest struct {
	Dir     string   `yaml:"dir"`
	Batches []string `yaml:"batches"`
	Format  string   `yaml:"format"`
	Workers int      `yaml:"workers"`
}

type ConfigLog struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func LoadConfig(filename string) (*Config, error) {
	var ret Config
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(data, &ret)
	if err != nil {
		return nil, fmt.Errorf("while parsing config %s: %w", filename, err)
	}
	ret.resolvePaths(filepath.Dir(filename))
	ret.applyDefaults()
	if err := ret.Validate(); err != nil {
		return nil, fmt.Errorf("while validating config %s: %w", filename, err)
	}
	return &ret, nil
}

// resolvePaths makes relative paths in the file relative to the file itself.
func (c *Config) resolvePaths(base string) {
	for _, p := range []*string{&c.Store.Path, &c.Metadata.Path, &c.Ingest.Dir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Store.Path == "" {
		c.Store.Path = "cifar10_train.db"
	}
	if c.Store.MaxSize == 0 {
		c.Store.MaxSize = ingest.DefaultMaxSize
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.RateLimit > 0 && c.HTTP.Burst == 0 {
		c.HTTP.Burst = max(1, int(c.HTTP.RateLimit))
	}
	if c.Ingest.Dir == "" {
		c.Ingest.Dir = "cifar-10-batches-bin"
	}
	if len(c.Ingest.Batches) == 0 {
		c.Ingest.Batches = append([]string(nil), ingest.DefaultBatches...)
	}
	if c.Ingest.Format == "" {
		c.Ingest.Format = "cifar"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Store.MaxSize < 0 {
		return fmt.Errorf("store.max_size must not be negative")
	}
	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("http.rate_limit must not be negative")
	}
	if c.HTTP.Fetchers < 0 {
		return fmt.Errorf("http.fetchers must not be negative")
	}
	if c.Ingest.Workers < 0 {
		return fmt.Errorf("ingest.workers must not be negative")
	}
	if _, err := ingest.ParseFormat(c.Ingest.Format); err != nil {
		return err
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
