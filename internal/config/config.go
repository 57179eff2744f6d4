// Package config resolves the statements configuration from an optional YAML
// file, a .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Text engines.
const (
	EngineLedongthuc = "ledongthuc"
	EnginePDFCPU     = "pdfcpu"
	EngineNone       = ""
)

// Store drivers.
const (
	StoreMemory    = "memory"
	StoreSQLite    = "sqlite"
	StoreFirestore = "firestore"
)

// Config holds the full statements configuration.
type Config struct {
	Root    string `yaml:"root"`
	Output  string `yaml:"output"`
	Workers int    `yaml:"workers"`

	// TextEngine reads page text. FallbackEngine, when set, re-reads files
	// where TextEngine finds no first-page text.
	TextEngine     string `yaml:"text_engine"`
	FallbackEngine string `yaml:"fallback_engine"`

	Store  StoreConfig  `yaml:"store"`
	Server ServerConfig `yaml:"server"`
}

// StoreConfig selects where run rows are persisted.
type StoreConfig struct {
	Driver     string `yaml:"driver"` // memory | sqlite | firestore
	SQLitePath string `yaml:"sqlite_path"`
	ProjectID  string `yaml:"project_id"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port           string        `yaml:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	JobTTL         time.Duration `yaml:"job_ttl"`
}

// DefaultConfig returns the defaults used when nothing overrides them.
func DefaultConfig() *Config {
	return &Config{
		Root:       "data/raw_files",
		Output:     "data/processed/financial_data.csv",
		Workers:    1,
		TextEngine: EngineLedongthuc,
		Store: StoreConfig{
			Driver:     StoreMemory,
			SQLitePath: "data/statements.db",
		},
		Server: ServerConfig{
			Port: "8111",
			AllowedOrigins: []string{
				"http://localhost:1234",
				"http://127.0.0.1:1234",
			},
			JobTTL: time.Hour,
		},
	}
}

// Load resolves the configuration. The YAML file at path is optional when
// path is empty; a named file that does not exist is an error. The .env file
// at envFile is loaded into the environment when present, without replacing
// variables that are already set. Environment variables override the file.
func Load(path, envFile string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	str("STATEMENTS_ROOT", &c.Root)
	str("STATEMENTS_OUTPUT", &c.Output)
	str("STATEMENTS_TEXT_ENGINE", &c.TextEngine)
	str("STATEMENTS_FALLBACK_ENGINE", &c.FallbackEngine)
	str("STATEMENTS_STORE", &c.Store.Driver)
	str("STATEMENTS_SQLITE_PATH", &c.Store.SQLitePath)
	str("GOOGLE_CLOUD_PROJECT", &c.Store.ProjectID)
	str("PORT", &c.Server.Port)

	if v, ok := os.LookupEnv("STATEMENTS_WORKERS"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("STATEMENTS_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v, ok := os.LookupEnv("STATEMENTS_ALLOWED_ORIGINS"); ok {
		c.Server.AllowedOrigins = splitList(v)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("root is required")
	}
	if c.Output == "" {
		return fmt.Errorf("output is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	switch c.TextEngine {
	case EngineLedongthuc, EnginePDFCPU:
	default:
		return fmt.Errorf("unsupported text_engine %q (use %s or %s)", c.TextEngine, EngineLedongthuc, EnginePDFCPU)
	}
	switch c.FallbackEngine {
	case EngineNone, EngineLedongthuc, EnginePDFCPU:
	default:
		return fmt.Errorf("unsupported fallback_engine %q", c.FallbackEngine)
	}
	if c.FallbackEngine != EngineNone && c.FallbackEngine == c.TextEngine {
		return fmt.Errorf("fallback_engine must differ from text_engine")
	}
	switch c.Store.Driver {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite driver")
		}
	case StoreFirestore:
		if c.Store.ProjectID == "" {
			return fmt.Errorf("store.project_id (GOOGLE_CLOUD_PROJECT) is required for the firestore driver")
		}
	default:
		return fmt.Errorf("unsupported store driver %q (use memory, sqlite or firestore)", c.Store.Driver)
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}
