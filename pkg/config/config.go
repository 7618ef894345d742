package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"gopkg.in/yaml.v3"

	"github.com/akande-ai/akande/pkg/models"
)

// AppName scopes the default config, data and log directories.
const AppName = "akande"

// DefaultSystemPrompt briefs the model before every question.
const DefaultSystemPrompt = `You are Àkàndé, a friendly and knowledgeable assistant. ` +
	`Answer the user's question as a short briefing with four sections: ` +
	`Overview, Solution, Conclusion and Recommendations. ` +
	`Keep the whole answer under 150 words, use British English ` +
	`and language a middle-school student can follow.`

// Config holds all Akande configuration.
type Config struct {
	Listen       string           `yaml:"listen" toml:"listen" env:"AKANDE_LISTEN"`
	PublicDir    string           `yaml:"public_dir" toml:"public_dir"`
	DBPath       string           `yaml:"db_path" toml:"db_path" env:"AKANDE_DB_PATH"`
	Model        string           `yaml:"model" toml:"model" env:"AKANDE_MODEL"`
	SystemPrompt string           `yaml:"system_prompt" toml:"system_prompt"`
	Timeout      time.Duration    `yaml:"timeout" toml:"timeout"`
	Providers    []ProviderConfig `yaml:"providers" toml:"providers"`
	Cache        CacheConfig      `yaml:"cache" toml:"cache"`
	Budget       BudgetConfig     `yaml:"budget" toml:"budget"`
	Session      SessionConfig    `yaml:"session" toml:"session"`
	Speech       SpeechConfig     `yaml:"speech" toml:"speech"`
	Export       ExportConfig     `yaml:"export" toml:"export"`
	Log          LogConfig        `yaml:"log" toml:"log"`

	// OpenAIKey fills the api_key of openai providers that leave it empty.
	OpenAIKey string `yaml:"-" toml:"-" env:"OPENAI_API_KEY"`
}

// ProviderConfig defines an answer provider.
// Type is "openai" (default) or "ollama".
type ProviderConfig struct {
	Name   string `yaml:"name" toml:"name"`
	Type   string `yaml:"type" toml:"type"`
	URL    string `yaml:"url" toml:"url"`
	APIKey string `yaml:"api_key" toml:"api_key"`
	// Model overrides Config.Model for this provider.
	Model string `yaml:"model" toml:"model"`
	// RPS limits requests per second to this provider; zero disables limiting.
	RPS   float64 `yaml:"rps" toml:"rps"`
	Burst int     `yaml:"burst" toml:"burst"`
}

// CacheConfig controls the answer cache.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled" toml:"enabled"`
	Backend    string        `yaml:"backend" toml:"backend"` // sqlite, postgres or memory
	DSN        string        `yaml:"dsn" toml:"dsn" env:"AKANDE_CACHE_DSN"`
	MaxEntries int           `yaml:"max_entries" toml:"max_entries"`
	TTL        time.Duration `yaml:"ttl" toml:"ttl"`
}

// BudgetConfig controls budget enforcement.
type BudgetConfig struct {
	Enabled  bool                  `yaml:"enabled" toml:"enabled"`
	Policies []models.BudgetPolicy `yaml:"policies" toml:"policies"`
}

// SessionConfig controls session detection.
type SessionConfig struct {
	GapTimeout time.Duration `yaml:"gap_timeout" toml:"gap_timeout"`
}

// SpeechConfig controls spoken answers and voice input.
type SpeechConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
	// Engine is "openai" or "piper".
	Engine      string `yaml:"engine" toml:"engine"`
	Voice       string `yaml:"voice" toml:"voice"`
	Model       string `yaml:"model" toml:"model"`
	PiperBinary string `yaml:"piper_binary" toml:"piper_binary"`
	PiperModel  string `yaml:"piper_model" toml:"piper_model"`
	// Player, when set, is run with the audio file path as its last argument.
	Player          string        `yaml:"player" toml:"player"`
	TranscribeModel string        `yaml:"transcribe_model" toml:"transcribe_model"`
	SampleRate      int           `yaml:"sample_rate" toml:"sample_rate"`
	RecordDuration  time.Duration `yaml:"record_duration" toml:"record_duration"`
}

// ExportConfig controls the dated answer artefacts.
type ExportConfig struct {
	Dir string `yaml:"dir" toml:"dir" env:"AKANDE_EXPORT_DIR"`
	PDF bool   `yaml:"pdf" toml:"pdf"`
	CSV bool   `yaml:"csv" toml:"csv"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level" env:"AKANDE_LOG_LEVEL"`
	Format string `yaml:"format" toml:"format"` // text, json or logfmt
	// Dir, when set, also writes a dated log file per run.
	Dir string `yaml:"dir" toml:"dir"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen:       ":8080",
		DBPath:       defaultDataPath("akande.db"),
		Model:        "gpt-4o-mini",
		SystemPrompt: DefaultSystemPrompt,
		Timeout:      90 * time.Second,
		Cache: CacheConfig{
			Enabled:    true,
			Backend:    "sqlite",
			MaxEntries: 1000,
		},
		Session: SessionConfig{
			GapTimeout: 30 * time.Minute,
		},
		Speech: SpeechConfig{
			Engine:          "openai",
			Voice:           "alloy",
			Model:           "tts-1",
			PiperBinary:     "piper",
			TranscribeModel: "whisper-1",
			SampleRate:      16000,
			RecordDuration:  5 * time.Second,
		},
		Export: ExportConfig{
			Dir: ".",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a config file and expands environment variables. Files ending
// in .toml are decoded as TOML, everything else as YAML. Environment
// overrides are applied last.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads path when given. Otherwise it looks for akande.yaml,
// akande.yml or akande.toml in the user config directories and falls back to
// defaults when none exists.
func LoadDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	for _, candidate := range DefaultPaths() {
		if _, err := os.Stat(candidate); err == nil {
			return Load(candidate)
		}
	}
	cfg := Default()
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultPaths lists the config files LoadDefault considers, in order.
func DefaultPaths() []string {
	dirs := []string{"."}
	if c := os.Getenv("AKANDE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}
	if scoped, err := gap.NewScope(gap.User, AppName).ConfigDirs(); err == nil {
		dirs = append(dirs, scoped...)
	}

	var paths []string
	for _, dir := range dirs {
		for _, name := range []string{"akande.yaml", "akande.yml", "akande.toml"} {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	return paths
}

// finish applies environment overrides, expands paths and fills providers.
func (c *Config) finish() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	var err error
	if c.DBPath, err = expandPath(c.DBPath); err != nil {
		return err
	}
	if c.Export.Dir, err = expandPath(c.Export.Dir); err != nil {
		return err
	}
	if c.Log.Dir, err = expandPath(c.Log.Dir); err != nil {
		return err
	}
	if c.Speech.PiperModel, err = expandPath(c.Speech.PiperModel); err != nil {
		return err
	}

	if len(c.Providers) == 0 {
		c.Providers = []ProviderConfig{{Name: "openai", Type: "openai"}}
	}
	for i := range c.Providers {
		p := &c.Providers[i]
		if p.Type == "" {
			p.Type = "openai"
		}
		if p.Name == "" {
			p.Name = p.Type
		}
		if p.Type == "openai" && p.APIKey == "" {
			p.APIKey = c.OpenAIKey
		}
	}
	return nil
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	var errs []error
	for _, p := range c.Providers {
		switch p.Type {
		case "openai":
			if !ValidAPIKey(p.APIKey) {
				errs = append(errs, fmt.Errorf("provider %q: missing or malformed API key (set OPENAI_API_KEY)", p.Name))
			}
		case "ollama":
			if p.URL == "" {
				errs = append(errs, fmt.Errorf("provider %q: url is required", p.Name))
			}
		default:
			errs = append(errs, fmt.Errorf("provider %q: unknown type %q", p.Name, p.Type))
		}
	}
	switch c.Cache.Backend {
	case "sqlite", "memory":
	case "postgres":
		if c.Cache.DSN == "" {
			errs = append(errs, errors.New("cache: postgres backend requires dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache: unknown backend %q", c.Cache.Backend))
	}
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	return errors.Join(errs...)
}

// ValidAPIKey reports whether key is plausibly an OpenAI API key.
func ValidAPIKey(key string) bool {
	return len(strings.TrimSpace(key)) > 20
}

func defaultDataPath(name string) string {
	p, err := gap.NewScope(gap.User, AppName).DataPath(name)
	if err != nil {
		return name
	}
	return p
}

func expandPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	out, err := homedir.Expand(p)
	if err != nil {
		return "", fmt.Errorf("expand path %q: %w", p, err)
	}
	return out, nil
}
