// Package config loads the YAML configuration of the students service and of
// the sync client.
//
// HOW CONFIG LOADING WORKS:
//  1. The path comes from the CONFIG_PATH environment variable or from a
//     --config command-line flag.
//  2. cleanenv reads the YAML file into the struct.
//  3. Any env:"..." tagged field can be overridden by that environment
//     variable; env-default fills whatever neither source set.
//
// Example config file for the service (config/local.yaml):
//
//	env: "dev"
//	storage_path: "storage/storage.db"
//	http_server:
//	  address: "localhost:8082"
//	summary:
//	  backend: "template"
package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Summary backends.
const (
	BackendTemplate = "template"
	BackendOllama   = "ollama"
)

// Config is the root configuration of the students service.
// env-required:"true" means the service refuses to start without that value.
type Config struct {
	// Env controls log format and verbosity: "dev", "staging" or "prod".
	Env string `yaml:"env" env:"ENV" env-required:"true"`

	// StoragePath is the filesystem path to the SQLite .db file.
	StoragePath string `yaml:"storage_path" env:"STORAGE_PATH" env-required:"true"`

	HTTPServer `yaml:"http_server"`

	Summary Summary `yaml:"summary"`
}

// HTTPServer holds settings specific to the HTTP server.
type HTTPServer struct {
	// Addr is the TCP address the server listens on, e.g. "localhost:8082".
	Addr string `yaml:"address" env:"HTTP_SERVER_ADDR" env-required:"true"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

// Summary selects the backend behind GET /students/{id}/summary.
type Summary struct {
	Backend string `yaml:"backend" env:"SUMMARY_BACKEND" env-default:"template"`

	// Latency delays template summaries, to mimic a model backend.
	Latency time.Duration `yaml:"latency" env:"SUMMARY_LATENCY"`

	OllamaURL string        `yaml:"ollama_url" env:"OLLAMA_URL" env-default:"http://localhost:11434"`
	Model     string        `yaml:"model" env:"OLLAMA_MODEL" env-default:"llama3"`
	Timeout   time.Duration `yaml:"timeout" env:"SUMMARY_TIMEOUT" env-default:"2m"`
}

// ClientConfig is the configuration of the sync client (students-cli).
type ClientConfig struct {
	Env    string `yaml:"env" env:"ENV" env-default:"dev"`
	Remote Remote `yaml:"remote"`
}

// Remote describes how the client reaches the students service.
type Remote struct {
	// BaseURL is the service root, e.g. "http://localhost:8082".
	BaseURL string `yaml:"base_url" env:"STUDENTS_API_URL" env-default:"http://localhost:8082"`

	Timeout    time.Duration `yaml:"timeout" env:"STUDENTS_API_TIMEOUT" env-default:"30s"`
	MaxRetries int           `yaml:"max_retries" env:"STUDENTS_API_MAX_RETRIES" env-default:"3"`
	RetryWait  time.Duration `yaml:"retry_wait" env:"STUDENTS_API_RETRY_WAIT" env-default:"200ms"`

	// SummarizeTimeout bounds a summary request, which is sent once. Keep it
	// above the service's summary.timeout.
	SummarizeTimeout time.Duration `yaml:"summarize_timeout" env:"STUDENTS_API_SUMMARIZE_TIMEOUT" env-default:"3m"`
}

// Validate checks the cross-field rules cleanenv tags cannot express.
func (c *Config) Validate() error {
	switch c.Summary.Backend {
	case BackendTemplate:
	case BackendOllama:
		if c.Summary.OllamaURL == "" || c.Summary.Model == "" {
			return errors.New("summary: ollama backend needs ollama_url and model")
		}
	default:
		return fmt.Errorf("summary: unknown backend %q", c.Summary.Backend)
	}
	return nil
}

// Validate checks the client settings.
func (c *ClientConfig) Validate() error {
	if c.Remote.BaseURL == "" {
		return errors.New("remote: base_url is required")
	}
	if c.Remote.MaxRetries < 0 {
		return errors.New("remote: max_retries must not be negative")
	}
	return nil
}

// Load reads and validates the service config at path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := readFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// LoadClient reads and validates the client config. An empty path means
// "environment and defaults only".
func LoadClient(path string) (*ClientConfig, error) {
	var cfg ClientConfig
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config.LoadClient: read env: %w", err)
		}
	} else if err := readFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config.LoadClient: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.LoadClient: %w", err)
	}
	return &cfg, nil
}

// MustLoad reads, validates, and returns the service config.
//
// The name "MustLoad" follows a Go convention: functions prefixed with
// "Must" are allowed to fatal on failure. If this returns, the config is
// valid.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "Path to the configuration YAML file")
		flag.Parse()
		configPath = *flags
	}

	if configPath == "" {
		log.Fatal("config path is not set: use --config flag or CONFIG_PATH env var")
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err.Error())
	}
	return cfg
}

func readFile(path string, cfg any) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("config file does not exist: %s", path)
	}
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}
