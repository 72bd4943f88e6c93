package study

import (
	"errors"
	"fmt"
	"time"
)

// Mode selects a session preset.
type Mode string

const (
	// ModeStandard is self-paced review with confidence buttons.
	ModeStandard Mode = "standard"

	// ModeVoice is review answered by speaking.
	ModeVoice Mode = "voice"

	// ModeQuiz is a fixed-length timed quiz.
	ModeQuiz Mode = "quiz"
)

// Valid reports whether m names a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeStandard, ModeVoice, ModeQuiz:
		return true
	}
	return false
}

const (
	// DefaultVoiceConfidenceThreshold is the transcript confidence below
	// which a voice answer is accepted but flagged.
	DefaultVoiceConfidenceThreshold = 0.8

	// DefaultPassThreshold is the lowest confidence grade that counts as
	// a correct recall.
	DefaultPassThreshold = 3

	// QuestionsPerQuiz is the fixed quiz length.
	QuestionsPerQuiz = 20
)

// Config holds the tunable behavior of one session.
type Config struct {
	SessionDuration          time.Duration
	MinCards                 int
	MaxCards                 int
	AllowVoiceInput          bool
	RequireVoice             bool
	ShowConfidenceButtons    bool
	SchedulingEnabled        bool
	VoiceConfidenceThreshold float64
	AutoAdvance              bool
	CardDisplayDuration      time.Duration
	HapticFeedback           bool
	PassThreshold            int
	QuestionsPerQuiz         int
}

// DefaultConfig returns the preset for a mode. Unknown modes get the
// standard preset.
func DefaultConfig(mode Mode) Config {
	base := Config{
		SessionDuration:          time.Hour,
		MinCards:                 10,
		MaxCards:                 50,
		ShowConfidenceButtons:    true,
		SchedulingEnabled:        true,
		VoiceConfidenceThreshold: DefaultVoiceConfidenceThreshold,
		PassThreshold:            DefaultPassThreshold,
		HapticFeedback:           true,
	}

	switch mode {
	case ModeVoice:
		base.SessionDuration = 30 * time.Minute
		base.MaxCards = 30
		base.AllowVoiceInput = true
		base.ShowConfidenceButtons = false
	case ModeQuiz:
		base.SessionDuration = 45 * time.Minute
		base.MinCards = 20
		base.QuestionsPerQuiz = QuestionsPerQuiz
		base.SchedulingEnabled = false
		base.AutoAdvance = true
		base.CardDisplayDuration = 30 * time.Second
	}
	return base
}

// ErrInvalidConfig marks a configuration rejected by Validate.
var ErrInvalidConfig = errors.New("study: invalid config")

// Validate checks the config for internally consistent values.
func (c Config) Validate() error {
	if c.SessionDuration <= 0 {
		return fmt.Errorf("%w: session duration must be positive", ErrInvalidConfig)
	}
	if c.MinCards <= 0 || c.MaxCards <= 0 {
		return fmt.Errorf("%w: card bounds must be positive", ErrInvalidConfig)
	}
	if c.MinCards > c.MaxCards {
		return fmt.Errorf("%w: min cards %d exceeds max cards %d",
			ErrInvalidConfig, c.MinCards, c.MaxCards)
	}
	if c.VoiceConfidenceThreshold < 0 || c.VoiceConfidenceThreshold > 1 {
		return fmt.Errorf("%w: voice confidence threshold %.2f outside [0,1]",
			ErrInvalidConfig, c.VoiceConfidenceThreshold)
	}
	if c.PassThreshold < MinConfidence || c.PassThreshold > MaxConfidence {
		return fmt.Errorf("%w: pass threshold %d outside confidence scale",
			ErrInvalidConfig, c.PassThreshold)
	}
	if c.RequireVoice && !c.AllowVoiceInput {
		return fmt.Errorf("%w: voice required but not allowed", ErrInvalidConfig)
	}
	if c.QuestionsPerQuiz < 0 {
		return fmt.Errorf("%w: questions per quiz must not be negative", ErrInvalidConfig)
	}
	return nil
}
