// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigDir is the directory name for engine configuration.
	DefaultConfigDir = ".realms"
	// DefaultConfigFile is the default config file name.
	DefaultConfigFile = "config.yaml"
	// DefaultSessionsFile is the default sessions file name.
	DefaultSessionsFile = "sessions.yaml"
)

var (
	// reNonAlphanumeric matches characters that aren't alphanumeric or underscore.
	reNonAlphanumeric = regexp.MustCompile(`[^a-z0-9_]`)
	// reMultipleUnderscores matches consecutive underscores.
	reMultipleUnderscores = regexp.MustCompile(`_+`)
)

// Config holds static infrastructure configuration (read-only after init).
type Config struct {
	LLM      LLMConfig      `yaml:"llm,omitempty"`
	Embedder EmbedderConfig `yaml:"embedder,omitempty"`
	Qdrant   QdrantConfig   `yaml:"qdrant,omitempty"`
	SQLite   SQLiteConfig   `yaml:"sqlite,omitempty"`
	Engine   EngineConfig   `yaml:"engine,omitempty"`
}

// LLMConfig holds configuration for the LLM provider.
type LLMConfig struct {
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
}

// EmbedderConfig holds configuration for the embedding provider.
type EmbedderConfig struct {
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
}

// QdrantConfig holds configuration for the Qdrant vector database.
type QdrantConfig struct {
	Host   string `yaml:"host,omitempty"`
	Port   int    `yaml:"port,omitempty"`
	APIKey string `yaml:"api_key,omitempty"`
}

// SQLiteConfig holds configuration for the SQLite ledger database.
type SQLiteConfig struct {
	// Path overrides the per-session database path when set.
	Path string `yaml:"path,omitempty"`
}

// EngineConfig holds consistency engine tunables.
type EngineConfig struct {
	// ConfidenceMargin is the minimum confidence gap for automatic
	// conflict resolution.
	ConfidenceMargin float64 `yaml:"confidence_margin,omitempty"`
	// RuleMaxDepth bounds rule derivation chains.
	RuleMaxDepth int `yaml:"rule_max_depth,omitempty"`
	// TurnTimeLimit is the per-turn watchdog timeout.
	TurnTimeLimit Duration `yaml:"turn_time_limit,omitempty"`
	// EscalationDeadline is how long an escalated conflict waits for an
	// arbiter before the forced fallback.
	EscalationDeadline Duration `yaml:"escalation_deadline,omitempty"`
	// SnapshotInterval is the auto-snapshot cadence in completed turns.
	SnapshotInterval uint64 `yaml:"snapshot_interval,omitempty"`
	// LockTimeout bounds waiting for a session's write lock.
	LockTimeout Duration `yaml:"lock_timeout,omitempty"`
}

// Duration is a time.Duration that round-trips through YAML as a string
// like "5m" or "24h".
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Embedder: EmbedderConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		Qdrant: QdrantConfig{
			Host: "localhost",
			Port: 6334,
		},
		Engine: EngineConfig{
			ConfidenceMargin:   0.2,
			RuleMaxDepth:       5,
			TurnTimeLimit:      Duration(5 * time.Minute),
			EscalationDeadline: Duration(24 * time.Hour),
			SnapshotInterval:   10,
			LockTimeout:        Duration(5 * time.Second),
		},
	}
}

// Load loads configuration from the .realms directory in the given path.
func Load(basePath string) (*Config, error) {
	configFile := filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)

	data, err := os.ReadFile(configFile)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s (run 'realms init' first)", configFile)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Start with defaults
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	cfg.applyEnvOverrides()

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = key
		}
		if c.Embedder.APIKey == "" {
			c.Embedder.APIKey = key
		}
	}
	if key := os.Getenv("QDRANT_API_KEY"); key != "" {
		if c.Qdrant.APIKey == "" {
			c.Qdrant.APIKey = key
		}
	}
}

// ConfigDir returns the path to the .realms config directory.
func ConfigDir(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir)
}

// ConfigFilePath returns the path to the config file.
func ConfigFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)
}

// SessionsFilePath returns the path to the sessions file.
func SessionsFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultSessionsFile)
}

// Exists checks if an engine config exists in the given path.
func Exists(basePath string) bool {
	configFile := filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)
	_, err := os.Stat(configFile)
	return err == nil
}

// SanitizeSessionName converts a session name to a valid collection suffix.
func SanitizeSessionName(name string) string {
	// Convert to lowercase
	name = strings.ToLower(name)

	// Replace spaces and hyphens with underscores
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")

	// Remove any characters that aren't alphanumeric or underscore
	name = reNonAlphanumeric.ReplaceAllString(name, "")

	// Remove consecutive underscores
	name = reMultipleUnderscores.ReplaceAllString(name, "_")

	// Trim leading/trailing underscores
	name = strings.Trim(name, "_")

	if name == "" {
		return "default"
	}

	return name
}

// CollectionForSession creates a vector collection name for a session.
func CollectionForSession(sessionName string) string {
	return "realms_" + SanitizeSessionName(sessionName)
}

// SQLitePathForSession returns the ledger database path for a given session.
func SQLitePathForSession(basePath, sessionName string) string {
	return filepath.Join(basePath, DefaultConfigDir, "sessions", SanitizeSessionName(sessionName), "ledger.db")
}

// SessionDir returns the directory path for a given session.
func SessionDir(basePath, sessionName string) string {
	return filepath.Join(basePath, DefaultConfigDir, "sessions", SanitizeSessionName(sessionName))
}
