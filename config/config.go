package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/xeptore/csndl/ratelimit"
)

const DefaultBaseURL = "https://chiasenhac.vn"

type Config struct {
	BaseURL   string `json:"base_url"   yaml:"base_url"`
	Quality   string `json:"quality"    yaml:"quality"`
	Threads   int    `json:"threads"    yaml:"threads"`
	OutputDir string `json:"output_dir" yaml:"output_dir"`
}

func Default() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		Quality:   "320",
		Threads:   ratelimit.DefaultTrackDownloadConcurrency,
		OutputDir: "albums",
	}
}

// Validate checks the fields that can be checked without talking to the site.
// Quality is checked against the account state during authorization.
func (cfg *Config) Validate() error {
	if cfg.BaseURL == "" {
		return errors.New("base URL is empty")
	}
	u, err := url.Parse(cfg.BaseURL)
	if nil != err {
		return fmt.Errorf("invalid base URL %q: %v", cfg.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base URL %q must use http or https scheme", cfg.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("base URL %q has no host", cfg.BaseURL)
	}

	if cfg.Quality == "" {
		return errors.New("quality is empty")
	}

	if cfg.Threads < 1 {
		return fmt.Errorf("threads must be at least 1, got %d", cfg.Threads)
	}

	if cfg.OutputDir == "" {
		return errors.New("output directory is empty")
	}

	return nil
}

// FromFile reads a YAML config file. Fields missing from the file keep their
// default values.
func FromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if nil != err {
		return nil, fmt.Errorf("failed to read config file %q: %v", filePath, err)
	}

	cfg, err := FromString(string(data))
	if nil != err {
		return nil, fmt.Errorf("failed to load config file %q: %v", filePath, err)
	}

	return cfg, nil
}

func FromString(data string) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(data), &cfg); nil != err {
		return nil, fmt.Errorf("failed to unmarshal config: %v", err)
	}

	if err := cfg.Validate(); nil != err {
		return nil, fmt.Errorf("validation failed: %v", err)
	}

	return &cfg, nil
}
