// Package config loads application configuration from YAML and overlays
// it on the built-in mode presets.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/membo-ai/studykit/study"
)

// Duration parses YAML duration strings like "45m" or "10s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// LoggingConfig mirrors the logger package's module level settings.
type LoggingConfig struct {
	Level   string            `yaml:"level"`
	Modules map[string]string `yaml:"modules"`
}

// RecognitionConfig tunes the voice engine.
type RecognitionConfig struct {
	Language      string   `yaml:"language"`
	Timeout       Duration `yaml:"timeout"`
	MinConfidence float64  `yaml:"min_confidence"`
	Model         string   `yaml:"model"`
}

// RedisConfig points the statistics store at a Redis instance. An empty
// Addr selects the in-memory store.
type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
	Prefix   string   `yaml:"prefix"`
}

// ModeConfig overrides parts of a mode preset. Nil fields keep the
// preset value.
type ModeConfig struct {
	SessionDuration          *Duration `yaml:"session_duration"`
	MinCards                 *int      `yaml:"min_cards"`
	MaxCards                 *int      `yaml:"max_cards"`
	AllowVoiceInput          *bool     `yaml:"allow_voice_input"`
	RequireVoice             *bool     `yaml:"require_voice"`
	ShowConfidenceButtons    *bool     `yaml:"show_confidence_buttons"`
	SchedulingEnabled        *bool     `yaml:"scheduling_enabled"`
	VoiceConfidenceThreshold *float64  `yaml:"voice_confidence_threshold"`
	AutoAdvance              *bool     `yaml:"auto_advance"`
	CardDisplayDuration      *Duration `yaml:"card_display_duration"`
	HapticFeedback           *bool     `yaml:"haptic_feedback"`
	PassThreshold            *int      `yaml:"pass_threshold"`
	QuestionsPerQuiz         *int      `yaml:"questions_per_quiz"`
}

// Config is the full application configuration.
type Config struct {
	Logging     LoggingConfig         `yaml:"logging"`
	Recognition RecognitionConfig     `yaml:"recognition"`
	Modes       map[string]ModeConfig `yaml:"modes"`
	Redis       RedisConfig           `yaml:"redis"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Recognition: RecognitionConfig{
			Language:      "en",
			Timeout:       Duration(10 * time.Second),
			MinConfidence: 0.7,
		},
	}
}

// Load reads configuration from a reader, overlaying the defaults.
// Unknown fields are rejected.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if err == io.EOF {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile reads configuration from a YAML file.
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func (c Config) validate() error {
	for name := range c.Modes {
		if !study.Mode(name).Valid() {
			return fmt.Errorf("unknown mode %q in config", name)
		}
	}
	if c.Recognition.MinConfidence < 0 || c.Recognition.MinConfidence > 1 {
		return fmt.Errorf("recognition min_confidence %.2f outside [0,1]",
			c.Recognition.MinConfidence)
	}
	if c.Recognition.Timeout < 0 {
		return fmt.Errorf("recognition timeout must not be negative")
	}
	return nil
}

// StudyConfig builds the session config for a mode: preset values with
// the file's overrides applied. The result still has to pass the study
// package's own validation at session start.
func (c Config) StudyConfig(mode study.Mode) study.Config {
	out := study.DefaultConfig(mode)
	mc, ok := c.Modes[string(mode)]
	if !ok {
		return out
	}

	if mc.SessionDuration != nil {
		out.SessionDuration = mc.SessionDuration.Std()
	}
	if mc.MinCards != nil {
		out.MinCards = *mc.MinCards
	}
	if mc.MaxCards != nil {
		out.MaxCards = *mc.MaxCards
	}
	if mc.AllowVoiceInput != nil {
		out.AllowVoiceInput = *mc.AllowVoiceInput
	}
	if mc.RequireVoice != nil {
		out.RequireVoice = *mc.RequireVoice
	}
	if mc.ShowConfidenceButtons != nil {
		out.ShowConfidenceButtons = *mc.ShowConfidenceButtons
	}
	if mc.SchedulingEnabled != nil {
		out.SchedulingEnabled = *mc.SchedulingEnabled
	}
	if mc.VoiceConfidenceThreshold != nil {
		out.VoiceConfidenceThreshold = *mc.VoiceConfidenceThreshold
	}
	if mc.AutoAdvance != nil {
		out.AutoAdvance = *mc.AutoAdvance
	}
	if mc.CardDisplayDuration != nil {
		out.CardDisplayDuration = mc.CardDisplayDuration.Std()
	}
	if mc.HapticFeedback != nil {
		out.HapticFeedback = *mc.HapticFeedback
	}
	if mc.PassThreshold != nil {
		out.PassThreshold = *mc.PassThreshold
	}
	if mc.QuestionsPerQuiz != nil {
		out.QuestionsPerQuiz = *mc.QuestionsPerQuiz
	}
	return out
}
