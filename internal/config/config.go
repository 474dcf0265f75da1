// Package config loads and validates the application's configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sevigo/devflow/internal/core"
	"github.com/sevigo/devflow/internal/logger"
)

// Config holds the application's configuration values.
type Config struct {
	Server   ServerConfig  `mapstructure:"server"`
	GitHub   GitHubConfig  `mapstructure:"github"`
	AI       AIConfig      `mapstructure:"ai"`
	Database DBConfig      `mapstructure:"database"`
	Review   ReviewConfig  `mapstructure:"review"`
	Logging  logger.Config `mapstructure:"logging"`
}

// ServerConfig configures the inbound HTTP server.
type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// GitHubConfig holds credentials for webhooks and the REST API. Either Token or
// the App triple (AppID, InstallationID, PrivateKeyPath) must be set.
type GitHubConfig struct {
	Token          string        `mapstructure:"token"`
	WebhookSecret  string        `mapstructure:"webhook_secret"`
	AppID          int64         `mapstructure:"app_id"`
	InstallationID int64         `mapstructure:"installation_id"`
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	APIBaseURL     string        `mapstructure:"api_base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// UsesApp reports whether GitHub App installation auth is configured.
func (g GitHubConfig) UsesApp() bool {
	return g.AppID != 0
}

// AIConfig configures the embedding and generation backends.
type AIConfig struct {
	GeminiAPIKey        string        `mapstructure:"gemini_api_key"`
	BaseURL             string        `mapstructure:"base_url"`
	GeneratorModel      string        `mapstructure:"generator_model"`
	EmbedderModel       string        `mapstructure:"embedder_model"`
	EmbeddingDimensions int           `mapstructure:"embedding_dimensions"`
	Temperature         float64       `mapstructure:"temperature"`
	GenerateTimeout     time.Duration `mapstructure:"generate_timeout"`
	EmbedTimeout        time.Duration `mapstructure:"embed_timeout"`
	MaxAttempts         int           `mapstructure:"max_attempts"`
	BaseDelay           time.Duration `mapstructure:"base_delay"`
	EmbedMaxAttempts    int           `mapstructure:"embed_max_attempts"`
	EmbedBaseDelay      time.Duration `mapstructure:"embed_base_delay"`
	ContextSnippets     int           `mapstructure:"context_snippets"`
	IndexConcurrency    int           `mapstructure:"index_concurrency"`
}

// Validate checks the AI settings for values the pipeline cannot work with.
func (a AIConfig) Validate() error {
	if a.GeminiAPIKey == "" {
		return errors.New("ai.gemini_api_key must be set")
	}
	if a.EmbeddingDimensions != core.EmbeddingDimensions {
		return fmt.Errorf("ai.embedding_dimensions must be %d to match the snippet index, got %d",
			core.EmbeddingDimensions, a.EmbeddingDimensions)
	}
	if a.MaxAttempts < 1 || a.EmbedMaxAttempts < 1 {
		return errors.New("ai.max_attempts and ai.embed_max_attempts must be at least 1")
	}
	if a.BaseDelay <= 0 || a.EmbedBaseDelay <= 0 {
		return errors.New("ai.base_delay and ai.embed_base_delay must be positive")
	}
	if a.ContextSnippets < 1 {
		return errors.New("ai.context_snippets must be at least 1")
	}
	return nil
}

// RetryBudget is the longest one review can spend in the AI backend: every
// generation and embedding attempt timing out plus every backoff wait.
func (a AIConfig) RetryBudget() time.Duration {
	return callBudget(a.MaxAttempts, a.GenerateTimeout, a.BaseDelay) +
		callBudget(a.EmbedMaxAttempts, a.EmbedTimeout, a.EmbedBaseDelay)
}

func callBudget(attempts int, timeout, baseDelay time.Duration) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	total := time.Duration(attempts) * timeout
	delay := baseDelay
	for range attempts - 1 {
		total += delay
		delay *= 2
	}
	return total
}

// DBConfig holds the Postgres connection settings.
type DBConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// ReviewConfig controls how webhook deliveries are processed. JobTimeout
// bounds one review run, inline or queued; zero leaves only the per-call
// timeouts.
type ReviewConfig struct {
	Async      bool          `mapstructure:"async"`
	MaxWorkers int           `mapstructure:"max_workers"`
	QueueSize  int           `mapstructure:"queue_size"`
	JobTimeout time.Duration `mapstructure:"job_timeout"`
}

// ConfigPathEnv names an explicit config file, overriding the config.yaml lookup.
const ConfigPathEnv = "DEVFLOW_CONFIG"

// LoadConfig reads configuration from the file named by DEVFLOW_CONFIG, or
// config.yaml (if present), and the environment.
func LoadConfig() (*Config, error) {
	return Load(os.Getenv(ConfigPathEnv))
}

// Load reads configuration from the given file, or from config.yaml in the
// working directory when path is empty. Environment variables prefixed with
// DEVFLOW_ override file values (e.g. DEVFLOW_GITHUB_TOKEN for github.token).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DEVFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that all required values are present and consistent.
func (c *Config) Validate() error {
	if c.GitHub.WebhookSecret == "" {
		return errors.New("github.webhook_secret must be set")
	}
	if c.GitHub.UsesApp() {
		if c.GitHub.InstallationID == 0 || c.GitHub.PrivateKeyPath == "" {
			return errors.New("github.installation_id and github.private_key_path must be set when github.app_id is used")
		}
	} else if c.GitHub.Token == "" {
		return errors.New("github.token must be set (or configure github.app_id)")
	}
	if err := c.AI.Validate(); err != nil {
		return err
	}
	if c.Review.Async && c.Review.MaxWorkers < 1 {
		return errors.New("review.max_workers must be at least 1 in async mode")
	}
	if c.Review.JobTimeout < 0 {
		return errors.New("review.job_timeout must not be negative")
	}
	if budget := c.AI.RetryBudget(); c.Review.JobTimeout > 0 && c.Review.JobTimeout < budget {
		return fmt.Errorf("review.job_timeout (%s) is shorter than the AI retry budget (%s)", c.Review.JobTimeout, budget)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 3*time.Minute)
	v.SetDefault("server.request_timeout", 170*time.Second)

	v.SetDefault("github.token", "")
	v.SetDefault("github.webhook_secret", "")
	v.SetDefault("github.app_id", 0)
	v.SetDefault("github.installation_id", 0)
	v.SetDefault("github.private_key_path", "")
	v.SetDefault("github.api_base_url", "")
	v.SetDefault("github.timeout", 15*time.Second)

	v.SetDefault("ai.gemini_api_key", "")
	v.SetDefault("ai.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("ai.generator_model", "gemini-2.0-flash")
	v.SetDefault("ai.embedder_model", "gemini-embedding-001")
	v.SetDefault("ai.embedding_dimensions", core.EmbeddingDimensions)
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.generate_timeout", 30*time.Second)
	v.SetDefault("ai.embed_timeout", 10*time.Second)
	v.SetDefault("ai.max_attempts", 5)
	v.SetDefault("ai.base_delay", 4*time.Second)
	v.SetDefault("ai.embed_max_attempts", 3)
	v.SetDefault("ai.embed_base_delay", 1*time.Second)
	v.SetDefault("ai.context_snippets", 3)
	v.SetDefault("ai.index_concurrency", 4)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "devflow")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 5*time.Minute)

	v.SetDefault("review.async", false)
	v.SetDefault("review.max_workers", 4)
	v.SetDefault("review.queue_size", 100)
	v.SetDefault("review.job_timeout", 5*time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file_path", "devflow.log")
}
