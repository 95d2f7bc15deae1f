// Package config loads the process-wide settings: which filings to ingest,
// where to store them and how to embed them.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"edgar_rag/pkg/core/chunk"
	"edgar_rag/pkg/models"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"

	maxEmbeddingBatch = 128
)

// Config holds every setting the CLI needs.
type Config struct {
	Tickers     []string         `yaml:"tickers"`
	StartDate   string           `yaml:"start_date"` // YYYY-MM-DD, empty for open
	EndDate     string           `yaml:"end_date"`
	FormTypes   []string         `yaml:"form_types"`
	UserAgent   string           `yaml:"user_agent"` // SEC identity, "Name email"
	DataDir     string           `yaml:"data_dir"`
	Store       StoreConfig      `yaml:"store"`
	Chunk       ChunkConfig      `yaml:"chunk"`
	Embedding   EmbeddingConfig  `yaml:"embedding"`
	Validation  ValidationConfig `yaml:"validation"`
	Logging     LoggingConfig    `yaml:"logging"`
	MetricsAddr string           `yaml:"metrics_addr"` // empty disables the /metrics listener
}

// StoreConfig selects the storage backend.
type StoreConfig struct {
	Driver      string `yaml:"driver"` // postgres, sqlite, memory
	DatabaseURL string `yaml:"database_url"`
	SQLitePath  string `yaml:"sqlite_path"`
}

// ChunkConfig holds narrative chunking settings.
type ChunkConfig struct {
	Size          int  `yaml:"size"`
	Overlap       bool `yaml:"overlap"`
	MinLength     int  `yaml:"min_length"`
	MaxPerSection int  `yaml:"max_per_section"` // 0 = no cap
}

// EmbeddingConfig holds embedding provider settings. An empty APIKey falls
// back to the provider's own variable (GEMINI_API_KEY, OPENAI_API_KEY,
// VOYAGE_API_KEY).
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // gemini, openai, voyage
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// ValidationConfig holds the accounting checks run after extraction.
type ValidationConfig struct {
	Enabled               bool    `yaml:"enabled"`
	BalanceSheetTolerance float64 `yaml:"balance_sheet_tolerance"` // percent of total assets
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Env   string `yaml:"env"`   // local, dev, prod
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Tickers:   []string{"AMZN", "GOOGL", "META", "MSFT", "ORCL"},
		StartDate: "2023-01-01",
		FormTypes: []string{string(models.Form10K), string(models.Form10Q)},
		DataDir:   filepath.Join("data", "filings"),
		Store: StoreConfig{
			Driver:     DriverPostgres,
			SQLitePath: filepath.Join("data", "edgar_rag.db"),
		},
		Chunk: ChunkConfig{
			Size:          chunk.DefaultSize,
			Overlap:       true,
			MinLength:     chunk.DefaultMinLength,
			MaxPerSection: chunk.DefaultMaxChunks,
		},
		Embedding: EmbeddingConfig{
			Provider:  "voyage",
			Dimension: 512,
			BatchSize: maxEmbeddingBatch,
		},
		Validation: ValidationConfig{Enabled: true, BalanceSheetTolerance: 0.1},
		Logging:    LoggingConfig{Env: "local"},
	}
}

// Load reads file (optional) and ./.env (optional) on top of the defaults,
// then applies environment variables.
func Load(file string) (Config, error) {
	return LoadFrom(file, ".env")
}

// LoadFrom is Load with an explicit dotenv path. The dotenv file never
// overrides variables already set in the environment.
func LoadFrom(file, envFile string) (Config, error) {
	cfg := Default()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	if file != "" {
		data, err := os.ReadFile(filepath.Clean(file))
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", file, err)
		}
		data = expandEnvVars(data)
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := lookup("EDGAR_TICKERS"); ok {
		c.Tickers = splitList(v)
	}
	if v, ok := lookup("EDGAR_FORM_TYPES"); ok {
		c.FormTypes = splitList(v)
	}
	setString(&c.StartDate, "EDGAR_START_DATE")
	setString(&c.EndDate, "EDGAR_END_DATE")
	setString(&c.UserAgent, "EDGAR_USER_AGENT")
	setString(&c.DataDir, "EDGAR_DATA_DIR")

	setString(&c.Store.Driver, "STORE_DRIVER")
	setString(&c.Store.SQLitePath, "SQLITE_PATH")
	if !setString(&c.Store.DatabaseURL, "DATABASE_URL") && c.Store.DatabaseURL == "" {
		c.Store.DatabaseURL = postgresURLFromEnv()
	}

	setString(&c.Embedding.Provider, "EMBEDDING_PROVIDER")
	setString(&c.Embedding.Model, "EMBEDDING_MODEL")
	setString(&c.Embedding.APIKey, "EMBEDDING_API_KEY")
	setString(&c.Embedding.BaseURL, "EMBEDDING_BASE_URL")
	if err := setInt(&c.Embedding.Dimension, "EMBEDDING_DIMENSION"); err != nil {
		return err
	}
	if err := setInt(&c.Embedding.BatchSize, "EMBEDDING_BATCH_SIZE"); err != nil {
		return err
	}

	if err := setBool(&c.Validation.Enabled, "VALIDATION_ENABLED"); err != nil {
		return err
	}
	if err := setFloat(&c.Validation.BalanceSheetTolerance, "BALANCE_SHEET_TOLERANCE"); err != nil {
		return err
	}

	setString(&c.Logging.Env, "LOG_ENV")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.MetricsAddr, "METRICS_ADDR")
	return nil
}

// postgresURLFromEnv composes a connection URL from POSTGRES_* variables.
// It returns "" when POSTGRES_HOST is not set.
func postgresURLFromEnv() string {
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		return ""
	}
	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + os.Getenv("POSTGRES_DB"),
	}
	if user := os.Getenv("POSTGRES_USER"); user != "" {
		if password, ok := os.LookupEnv("POSTGRES_PASSWORD"); ok {
			u.User = url.UserPassword(user, password)
		} else {
			u.User = url.User(user)
		}
	}
	return u.String()
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	start, end, err := c.Window()
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return fmt.Errorf("end_date %s is before start_date %s", c.EndDate, c.StartDate)
	}
	for _, f := range c.FormTypes {
		if models.ParseFormType(f) == models.FormUnknown {
			return fmt.Errorf("form_types: unsupported form %q", f)
		}
	}

	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("store.database_url is required for the postgres driver (set DATABASE_URL or POSTGRES_HOST)")
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("store.driver must be postgres, sqlite or memory, got %q", c.Store.Driver)
	}

	if c.Chunk.Size <= 0 {
		return fmt.Errorf("chunk.size must be positive, got %d", c.Chunk.Size)
	}
	if c.Chunk.MinLength < 0 || c.Chunk.MaxPerSection < 0 {
		return fmt.Errorf("chunk.min_length and chunk.max_per_section must not be negative")
	}

	if c.Validation.BalanceSheetTolerance < 0 {
		return fmt.Errorf("validation.balance_sheet_tolerance must not be negative, got %g", c.Validation.BalanceSheetTolerance)
	}

	switch c.Embedding.Provider {
	case "gemini", "openai", "voyage":
	default:
		return fmt.Errorf("embedding.provider must be gemini, openai or voyage, got %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.BatchSize <= 0 || c.Embedding.BatchSize > maxEmbeddingBatch {
		return fmt.Errorf("embedding.batch_size must be between 1 and %d, got %d", maxEmbeddingBatch, c.Embedding.BatchSize)
	}
	return nil
}

// Window parses StartDate and EndDate; empty bounds are zero.
func (c *Config) Window() (start, end time.Time, err error) {
	if start, err = parseDate("start_date", c.StartDate); err != nil {
		return
	}
	end, err = parseDate("end_date", c.EndDate)
	return
}

// Forms returns the configured form types.
func (c *Config) Forms() []models.FormType {
	out := make([]models.FormType, 0, len(c.FormTypes))
	for _, f := range c.FormTypes {
		if ft := models.ParseFormType(f); ft != models.FormUnknown {
			out = append(out, ft)
		}
	}
	return out
}

// ChunkOptions converts the chunk settings for the chunker.
func (c *Config) ChunkOptions() chunk.Options {
	return chunk.Options{
		Size:      c.Chunk.Size,
		Overlap:   c.Chunk.Overlap,
		MinLength: c.Chunk.MinLength,
		MaxChunks: c.Chunk.MaxPerSection,
	}
}

func parseDate(field, s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(models.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: expected YYYY-MM-DD, got %q", field, s)
	}
	return d, nil
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func setString(dst *string, name string) bool {
	v, ok := lookup(name)
	if ok {
		*dst = v
	}
	return ok
}

func setInt(dst *int, name string) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: expected an integer, got %q", name, v)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, name string) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: expected true or false, got %q", name, v)
	}
	*dst = b
	return nil
}

func setFloat(dst *float64, name string) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: expected a number, got %q", name, v)
	}
	*dst = f
	return nil
}

func splitList(s string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
