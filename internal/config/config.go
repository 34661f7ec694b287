// Package config loads the optional tsrpc.yaml project configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/shipq/tsrpc/logging"
	"github.com/shipq/tsrpc/openapi"
	"github.com/shipq/tsrpc/project"
)

// ConfigFilename is the name of the project config file.
const ConfigFilename = project.ConfigFile

// EnvFilename is loaded into the process environment before S3 settings
// are resolved.
const EnvFilename = ".env"

// Config holds the complete configuration from tsrpc.yaml.
type Config struct {
	// ConfigDir is the directory containing tsrpc.yaml, or the start
	// directory when no file was found. Relative paths resolve against it.
	ConfigDir string `yaml:"-"`
	// Found reports whether a tsrpc.yaml was read.
	Found bool `yaml:"-"`

	TSConfig string        `yaml:"tsconfig"`
	Entry    string        `yaml:"entry"`
	LogLevel string        `yaml:"log_level"`
	Output   OutputConfig  `yaml:"output"`
	OpenAPI  OpenAPIConfig `yaml:"openapi"`
	S3       S3Config      `yaml:"s3"`
	Watch    WatchConfig   `yaml:"watch"`
}

// OutputConfig selects where and how the document is written.
type OutputConfig struct {
	// Path is a file path or an s3://bucket/key URL.
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

// OpenAPIConfig holds document metadata.
type OpenAPIConfig struct {
	Title       string   `yaml:"title"`
	Version     string   `yaml:"version"`
	Description string   `yaml:"description"`
	Servers     []string `yaml:"servers"`
}

// S3Config holds settings for s3:// outputs. Credentials normally come from
// the environment.
type S3Config struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// WatchConfig tunes watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns the configuration used when no tsrpc.yaml exists.
func Default(dir string) *Config {
	return &Config{
		ConfigDir: dir,
		LogLevel:  "info",
		Output: OutputConfig{
			Path: "openapi.json",
		},
		Watch: WatchConfig{
			Debounce: 200 * time.Millisecond,
		},
	}
}

// Load reads tsrpc.yaml from the given directory (or CWD if empty).
// Returns an error if tsrpc.yaml is not found.
func Load(dir string) (*Config, error) {
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
	}

	path := filepath.Join(dir, ConfigFilename)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s not found in %s", ConfigFilename, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ConfigFilename, err)
	}

	cfg := Default(dir)
	cfg.Found = true
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse %s: %w", ConfigFilename, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Discover walks up from startDir looking for tsrpc.yaml. Without one it
// returns Default(startDir).
func Discover(startDir string) (*Config, error) {
	path, err := project.FindFileFrom(startDir, ConfigFilename)
	if errors.Is(err, os.ErrNotExist) {
		abs, absErr := filepath.Abs(startDir)
		if absErr != nil {
			return nil, absErr
		}
		return Default(abs), nil
	}
	if err != nil {
		return nil, err
	}
	return Load(filepath.Dir(path))
}

func (c *Config) validate() error {
	if c.Output.Format != "" {
		if _, err := openapi.ParseFormat(c.Output.Format); err != nil {
			return fmt.Errorf("%s: output.format: %w", ConfigFilename, err)
		}
	}
	if strings.TrimSpace(c.Output.Path) == "" {
		return fmt.Errorf("%s: output.path cannot be empty", ConfigFilename)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%s: log_level: %w", ConfigFilename, err)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("%s: watch.debounce must not be negative, got %s", ConfigFilename, c.Watch.Debounce)
	}
	for _, s := range c.OpenAPI.Servers {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s: openapi.servers must not contain empty entries", ConfigFilename)
		}
	}
	return nil
}

// Resolve returns p relative to ConfigDir unless it is absolute or an
// s3:// URL.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || strings.HasPrefix(p, "s3://") {
		return p
	}
	return filepath.Join(c.ConfigDir, p)
}

// Format returns the output format, inferred from the output path when not
// set explicitly.
func (c *Config) Format() openapi.Format {
	if f, err := openapi.ParseFormat(c.Output.Format); err == nil && c.Output.Format != "" {
		return f
	}
	return openapi.FormatForPath(c.Output.Path)
}

// Info returns the document metadata.
func (c *Config) Info() openapi.Info {
	return openapi.Info{
		Title:       c.OpenAPI.Title,
		Version:     c.OpenAPI.Version,
		Description: c.OpenAPI.Description,
	}
}

// Servers returns the configured server list.
func (c *Config) Servers() []openapi.Server {
	var servers []openapi.Server
	for _, s := range c.OpenAPI.Servers {
		servers = append(servers, openapi.Server{URL: s})
	}
	return servers
}

// LoadEnv loads .env from ConfigDir if present, without overriding
// variables already set, then fills empty S3 settings from the
// environment.
func (c *Config) LoadEnv() error {
	envPath := filepath.Join(c.ConfigDir, EnvFilename)
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	fill := func(dst *string, keys ...string) {
		if *dst != "" {
			return
		}
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	fill(&c.S3.AccessKeyID, "TSRPC_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID")
	fill(&c.S3.SecretAccessKey, "TSRPC_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY")
	fill(&c.S3.Endpoint, "TSRPC_S3_ENDPOINT")
	fill(&c.S3.Region, "AWS_REGION", "AWS_DEFAULT_REGION")
	return nil
}

// Exists checks if tsrpc.yaml exists in the given directory.
func Exists(dir string) bool {
	return project.HasConfig(dir)
}
