// Package config loads application configuration from config.yaml, a .env
// file, and environment variable overrides, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dndscribe/scribe/internal/logger"
)

// Config is the root application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Paths       PathsConfig       `mapstructure:"paths"`
	Whisper     WhisperConfig     `mapstructure:"whisper"`
	Diarization DiarizationConfig `mapstructure:"diarization"`
	Vocabulary  []string          `mapstructure:"vocabulary"`
	Speakers    map[string]string `mapstructure:"speakers"`
	Recap       RecapConfig       `mapstructure:"recap"`
	Wiki        WikiConfig        `mapstructure:"wiki"`
	Output      OutputConfig      `mapstructure:"output"`
	Logging     logger.Config     `mapstructure:"logging"`
}

// ServerConfig configures the web server.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// PathsConfig configures on-disk locations.
type PathsConfig struct {
	SessionsDir   string `mapstructure:"sessions_dir"`
	RecordingsDir string `mapstructure:"recordings_dir"`
}

// WhisperConfig configures the transcription sidecar.
type WhisperConfig struct {
	URL         string `mapstructure:"url"`
	Model       string `mapstructure:"model"`
	Language    string `mapstructure:"language"`
	Device      string `mapstructure:"device"`
	ComputeType string `mapstructure:"compute_type"`
	BatchSize   int    `mapstructure:"batch_size"`
}

// DiarizationConfig configures the diarization sidecar.
type DiarizationConfig struct {
	URL         string `mapstructure:"url"`
	MinSpeakers int    `mapstructure:"min_speakers"`
	MaxSpeakers int    `mapstructure:"max_speakers"`
}

// RecapConfig configures the recap LLM endpoint.
type RecapConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	BaseURL      string `mapstructure:"base_url"`
	Model        string `mapstructure:"model"`
	APIKey       string `mapstructure:"api_key"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

// WikiConfig configures the wiki push target.
type WikiConfig struct {
	URL      string `mapstructure:"url"`
	APIKey   string `mapstructure:"api_key"`
	AutoPush bool   `mapstructure:"auto_push"`
}

// OutputConfig configures transcript rendering.
type OutputConfig struct {
	Formats    []string `mapstructure:"formats"`
	Timestamps bool     `mapstructure:"timestamps"`
}

// ApplyDefaults fills in defaults for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Paths.SessionsDir == "" {
		c.Paths.SessionsDir = "sessions"
	}
	if c.Paths.RecordingsDir == "" {
		c.Paths.RecordingsDir = "recordings"
	}
	if c.Whisper.Model == "" {
		c.Whisper.Model = "large-v3"
	}
	if c.Whisper.Language == "" {
		c.Whisper.Language = "en"
	}
	if c.Whisper.Device == "" {
		c.Whisper.Device = "auto"
	}
	if c.Whisper.ComputeType == "" {
		c.Whisper.ComputeType = "float16"
	}
	if c.Whisper.BatchSize == 0 {
		c.Whisper.BatchSize = 4
	}
	if c.Recap.SystemPrompt == "" {
		c.Recap.SystemPrompt = "Summarize this D&D session transcript."
	}
	if c.Recap.Model == "" {
		c.Recap.Model = "default"
	}
	if len(c.Output.Formats) == 0 {
		c.Output.Formats = []string{"json", "txt"}
		c.Output.Timestamps = true
	}
	c.Logging.ApplyDefaults()
}

// Validate checks configuration invariants not expressible as defaults.
func (c *Config) Validate() error {
	if c.Diarization.MinSpeakers < 0 || c.Diarization.MaxSpeakers < 0 {
		return fmt.Errorf("diarization speaker counts must be non-negative")
	}
	if c.Diarization.MaxSpeakers > 0 && c.Diarization.MinSpeakers > c.Diarization.MaxSpeakers {
		return fmt.Errorf("diarization.min_speakers (%d) exceeds max_speakers (%d)",
			c.Diarization.MinSpeakers, c.Diarization.MaxSpeakers)
	}
	if c.Wiki.AutoPush && c.Wiki.URL == "" {
		return fmt.Errorf("wiki.auto_push requires wiki.url")
	}
	return nil
}

// Load reads configuration from the given file (or the first of
// ./config.yaml, ./config/config.yaml if empty), overlays a .env file when
// present, and applies SCRIBE_-prefixed environment variables.
func Load(configFile string) (*Config, error) {
	if path := findEnvFile(); path != "" {
		if err := godotenv.Load(path); err != nil {
			fmt.Fprintf(os.Stderr, "[config] warning: failed to load %s: %v\n", path, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	autoBindEnvVars(v)

	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

const envPrefix = "SCRIBE"

// autoBindEnvVars feeds SCRIBE_-prefixed environment variables to viper as
// explicit values. AutomaticEnv alone does not surface unbound keys to
// Unmarshal, so each variable is set under every possible nesting of its
// name; variants that match no config key are ignored by Unmarshal.
func autoBindEnvVars(v *viper.Viper) {
	for _, env := range os.Environ() {
		pair := strings.SplitN(env, "=", 2)
		if len(pair) != 2 || !strings.HasPrefix(pair[0], envPrefix+"_") {
			continue
		}
		key := strings.TrimPrefix(pair[0], envPrefix+"_")
		for _, variant := range envKeyVariants(key) {
			v.Set(variant, pair[1])
		}
	}
}

// envKeyVariants converts WHISPER_COMPUTE_TYPE to the nested key forms it
// could denote: whisper.compute.type, whisper.compute_type. Keys with
// underscores in the leaf name need the partially joined forms.
func envKeyVariants(envKey string) []string {
	lowerKey := strings.ToLower(envKey)
	parts := strings.Split(lowerKey, "_")
	if len(parts) <= 1 {
		return []string{lowerKey}
	}

	variants := []string{strings.ReplaceAll(lowerKey, "_", ".")}
	for i := 1; i < len(parts); i++ {
		variants = append(variants, strings.Join(parts[:i], ".")+"."+strings.Join(parts[i:], "_"))
	}
	return variants
}

func findConfigFile() string {
	for _, path := range []string{"./config.yaml", "./config.yml", "./config/config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func findEnvFile() string {
	for _, path := range []string{".env", "config/.env"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
