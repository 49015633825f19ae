// Package config loads the coach configuration from an optional YAML file,
// a .env file and the process environment, in that order of precedence (lowest first).
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

// Config is built once at startup and never mutated afterwards.
type Config struct {
	Gemini   GeminiConfig   `yaml:"gemini"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
}

// GeminiConfig holds inference backend settings.
type GeminiConfig struct {
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

// PipelineConfig holds per-run tuning.
type PipelineConfig struct {
	ScratchDir          string        `yaml:"scratch_dir"`
	PollInterval        time.Duration `yaml:"poll_interval"`
	PollMaxWait         time.Duration `yaml:"poll_max_wait"`
	AnalysisMaxAttempts int           `yaml:"analysis_max_attempts"`
	AnalysisBackoffStep time.Duration `yaml:"analysis_backoff_step"`
}

// StorageConfig names the persisted logs.
type StorageConfig struct {
	ExemplarFile    string `yaml:"exemplar_file"`
	FeedbackLogFile string `yaml:"feedback_log_file"`
	DailyLogFile    string `yaml:"daily_log_file"`
	EventLogFile    string `yaml:"event_log_file"`
	DBDriver        string `yaml:"db_driver"` // sqlite, mysql or none
	DBDSN           string `yaml:"db_dsn"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

const (
	DefaultModel   = "gemini-2.5-flash"
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
)

// Default returns a Config with every default filled in and no API key.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

// LoadDotEnv copies .env from the working directory into the environment
// without overriding variables that are already set. A missing file is fine.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// Load reads .env, the YAML file named by COACH_CONFIG (if set) and the environment.
func Load() (Config, error) {
	LoadDotEnv()

	cfg := Config{}
	if path := os.Getenv("COACH_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		parsed, err := parseYAML(data)
		if err != nil {
			return Config{}, err
		}
		cfg = parsed
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse unmarshals YAML bytes into a validated Config, without looking at the environment.
func Parse(data []byte) (Config, error) {
	cfg, err := parseYAML(data)
	if err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseYAML(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error
	setString(&c.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&c.Gemini.Model, "GEMINI_MODEL")
	setString(&c.Gemini.BaseURL, "GEMINI_BASE_URL")
	errs = append(errs, setDuration(&c.Gemini.HTTPTimeout, "HTTP_TIMEOUT"))

	setString(&c.Pipeline.ScratchDir, "SCRATCH_DIR")
	errs = append(errs,
		setDuration(&c.Pipeline.PollInterval, "POLL_INTERVAL"),
		setDuration(&c.Pipeline.PollMaxWait, "POLL_MAX_WAIT"),
		setInt(&c.Pipeline.AnalysisMaxAttempts, "ANALYSIS_MAX_ATTEMPTS"),
		setDuration(&c.Pipeline.AnalysisBackoffStep, "ANALYSIS_BACKOFF_STEP"),
	)

	setString(&c.Storage.ExemplarFile, "EXEMPLAR_FILE")
	setString(&c.Storage.FeedbackLogFile, "FEEDBACK_LOG_FILE")
	setString(&c.Storage.DailyLogFile, "DAILY_LOG_FILE")
	setString(&c.Storage.EventLogFile, "EVENT_LOG_FILE")
	setString(&c.Storage.DBDriver, "DB_DRIVER")
	setString(&c.Storage.DBDSN, "DB_DSN")

	setString(&c.Server.Port, "PORT")
	return errors.Join(errs...)
}

// applyDefaults fills in every unset value.
func (c *Config) applyDefaults() {
	if c.Gemini.Model == "" {
		c.Gemini.Model = DefaultModel
	}
	if c.Gemini.BaseURL == "" {
		c.Gemini.BaseURL = DefaultBaseURL
	}
	c.Gemini.BaseURL = strings.TrimRight(c.Gemini.BaseURL, "/")
	if c.Gemini.HTTPTimeout == 0 {
		c.Gemini.HTTPTimeout = 60 * time.Second
	}
	if c.Pipeline.ScratchDir == "" {
		c.Pipeline.ScratchDir = os.TempDir()
	}
	if c.Pipeline.PollInterval == 0 {
		c.Pipeline.PollInterval = 2 * time.Second
	}
	if c.Pipeline.PollMaxWait == 0 {
		c.Pipeline.PollMaxWait = 10 * time.Minute
	}
	if c.Pipeline.AnalysisMaxAttempts == 0 {
		c.Pipeline.AnalysisMaxAttempts = 3
	}
	if c.Pipeline.AnalysisBackoffStep == 0 {
		c.Pipeline.AnalysisBackoffStep = 10 * time.Second
	}
	if c.Storage.ExemplarFile == "" {
		c.Storage.ExemplarFile = "master_good_sentences.txt"
	}
	if c.Storage.FeedbackLogFile == "" {
		c.Storage.FeedbackLogFile = "all_feedback_logs.txt"
	}
	if c.Storage.DailyLogFile == "" {
		c.Storage.DailyLogFile = "daily_call_logs.txt"
	}
	if c.Storage.EventLogFile == "" {
		c.Storage.EventLogFile = "call_events.jsonl"
	}
	if c.Storage.DBDriver == "" {
		c.Storage.DBDriver = "sqlite"
	}
	if c.Storage.DBDSN == "" && c.Storage.DBDriver == "sqlite" {
		c.Storage.DBDSN = "coach.db"
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
}

// Validate checks required fields. A missing API key is fatal at startup.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Gemini.APIKey) == "" {
		errs = append(errs, errors.New("config: GEMINI_API_KEY is required"))
	}
	if c.Pipeline.PollInterval < 0 || c.Pipeline.PollMaxWait < 0 {
		errs = append(errs, errors.New("config: poll durations must be positive"))
	}
	if c.Pipeline.AnalysisMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("config: analysis_max_attempts must be >= 1, got %d", c.Pipeline.AnalysisMaxAttempts))
	}
	switch c.Storage.DBDriver {
	case "sqlite", "none":
	case "mysql":
		if c.Storage.DBDSN == "" {
			errs = append(errs, errors.New("config: db_dsn is required for mysql"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown db_driver %q", c.Storage.DBDriver))
	}
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = d
	return nil
}
