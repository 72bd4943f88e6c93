// Package study runs spaced-repetition sessions: it owns the session
// state machine, the card queue, running statistics and the voice
// fallback policy.
package study

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/membo-ai/studykit/events"
	"github.com/membo-ai/studykit/logger"
)

// Confidence grades run 1 (failed) through 5 (effortless).
const (
	MinConfidence = 1
	MaxConfidence = 5
)

var (
	// ErrSessionAlreadyActive is returned when Start overlaps a session.
	ErrSessionAlreadyActive = errors.New("study: session already active")

	// ErrNoActiveSession is returned for responses outside a session.
	ErrNoActiveSession = errors.New("study: no active session")

	// ErrInvalidResponse is returned for out-of-range confidence grades.
	// The session state is untouched.
	ErrInvalidResponse = errors.New("study: invalid response")

	// ErrInvalidMode is returned for unknown session modes.
	ErrInvalidMode = errors.New("study: invalid mode")

	// ErrVoiceUnavailable is returned when a voice-required session
	// cannot get a working recognizer.
	ErrVoiceUnavailable = errors.New("study: voice input unavailable")

	// ErrNotEnoughCards is returned when the source cannot fill the
	// mode's minimum queue.
	ErrNotEnoughCards = errors.New("study: not enough due cards")
)

// VoiceControl is the slice of the voice engine the session needs.
type VoiceControl interface {
	IsAvailable() bool
	BindSession(sessionID string)
	StopRecognition()
}

// Response is one graded answer for the current card.
type Response struct {
	Confidence      int
	VoiceTranscript string
	VoiceConfidence float64
}

// Engine runs one session at a time.
type Engine struct {
	mu sync.Mutex

	source Source
	voice  VoiceControl
	sink   StatsSink
	bus    *events.EventBus
	clock  func() time.Time

	active    bool
	sessionID string
	mode      Mode
	cfg       Config
	queue     []Card
	stats     Statistics
	lastStats Statistics
	startedAt time.Time
	em        *events.Emitter
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithVoice attaches a voice engine for voice-mode sessions.
func WithVoice(v VoiceControl) EngineOption {
	return func(e *Engine) {
		e.voice = v
	}
}

// WithBus attaches an event bus.
func WithBus(bus *events.EventBus) EngineOption {
	return func(e *Engine) {
		e.bus = bus
	}
}

// WithStatsSink attaches a statistics store.
func WithStatsSink(sink StatsSink) EngineOption {
	return func(e *Engine) {
		e.sink = sink
	}
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) EngineOption {
	return func(e *Engine) {
		e.clock = clock
	}
}

// NewEngine creates a session engine over a card source.
func NewEngine(source Source, opts ...EngineOption) *Engine {
	e := &Engine{
		source: source,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins a session in the given mode using its default preset.
func (e *Engine) Start(ctx context.Context, mode Mode) (string, error) {
	return e.StartWithConfig(ctx, mode, DefaultConfig(mode))
}

// StartWithConfig begins a session with an explicit config. When voice
// input is allowed but no recognizer is usable, the session either fails
// (RequireVoice) or falls back to button input.
func (e *Engine) StartWithConfig(ctx context.Context, mode Mode, cfg Config) (string, error) {
	if !mode.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	requested := mode
	fallback := false
	if cfg.AllowVoiceInput && (e.voice == nil || !e.voice.IsAvailable()) {
		if cfg.RequireVoice {
			return "", ErrVoiceUnavailable
		}
		// The session continues with button input; a voice session
		// becomes a standard one, and the requested mode survives
		// only in the started event.
		cfg.AllowVoiceInput = false
		cfg.ShowConfidenceButtons = true
		if mode == ModeVoice {
			mode = ModeStandard
		}
		fallback = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active {
		return "", ErrSessionAlreadyActive
	}

	limit := cfg.MaxCards
	if mode == ModeQuiz && cfg.QuestionsPerQuiz > 0 && cfg.QuestionsPerQuiz < limit {
		limit = cfg.QuestionsPerQuiz
	}
	queue, err := e.source.OrderedCards(ctx, mode, limit)
	if err != nil {
		return "", fmt.Errorf("loading card queue: %w", err)
	}
	if len(queue) < cfg.MinCards {
		return "", fmt.Errorf("%w: have %d, need %d", ErrNotEnoughCards, len(queue), cfg.MinCards)
	}

	sessionID := uuid.NewString()
	now := e.clock()

	e.active = true
	e.sessionID = sessionID
	e.mode = mode
	e.cfg = cfg
	e.queue = queue
	e.startedAt = now
	e.stats = Statistics{
		SessionID: sessionID,
		Mode:      mode,
		StartedAt: now,
	}
	e.em = events.NewEmitter(e.bus, sessionID, "")

	if e.voice != nil && cfg.AllowVoiceInput {
		e.voice.BindSession(sessionID)
	}

	logger.SessionStarted(sessionID, string(mode), len(queue),
		"requested_mode", string(requested), "fallback", fallback)
	e.em.SessionStarted(string(mode), string(requested), len(queue), fallback)
	return sessionID, nil
}

// Active reports whether a session is running.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// SessionID returns the running session's ID, empty when inactive.
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return ""
	}
	return e.sessionID
}

// CurrentCard returns the card awaiting a response.
func (e *Engine) CurrentCard() (Card, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active || len(e.queue) == 0 {
		return Card{}, false
	}
	return e.queue[0], true
}

// Remaining returns how many cards are left in the queue.
func (e *Engine) Remaining() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return 0
	}
	return len(e.queue)
}

// Stats returns the running statistics of the active session, or the
// frozen statistics of the last completed one.
func (e *Engine) Stats() Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active {
		stats := e.stats
		stats.Duration = e.clock().Sub(e.startedAt)
		return stats
	}
	return e.lastStats
}

// ProcessResponse grades the current card and advances the queue. The
// session auto-completes when the queue empties or the session clock
// runs out.
func (e *Engine) ProcessResponse(ctx context.Context, resp Response) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return ErrNoActiveSession
	}
	if resp.Confidence < MinConfidence || resp.Confidence > MaxConfidence {
		return fmt.Errorf("%w: confidence %d outside [%d,%d]",
			ErrInvalidResponse, resp.Confidence, MinConfidence, MaxConfidence)
	}

	card := e.queue[0]
	e.queue = e.queue[1:]
	now := e.clock()

	correct := resp.Confidence >= e.cfg.PassThreshold
	lowVoice := false
	if resp.VoiceTranscript != "" {
		if resp.VoiceConfidence < e.cfg.VoiceConfidenceThreshold {
			// Accepted, but the transcript may not match what was said.
			lowVoice = true
			e.stats.LowConfidenceVoice++
		} else {
			e.stats.VoiceInputsAccepted++
		}
	}
	e.stats.record(resp.Confidence, correct)

	if e.cfg.SchedulingEnabled {
		if _, err := e.source.RecordReview(ctx, card.ID, resp.Confidence, now); err != nil {
			logger.Warn("scheduling update failed", "card_id", card.ID, "error", err)
		}
	}

	e.em.SessionResponse(&events.SessionResponseData{
		CardID:             card.ID,
		Confidence:         resp.Confidence,
		Correct:            correct,
		VoiceInput:         resp.VoiceTranscript,
		VoiceConfidence:    resp.VoiceConfidence,
		LowConfidenceVoice: lowVoice,
		Remaining:          len(e.queue),
	})

	if len(e.queue) == 0 || now.Sub(e.startedAt) >= e.cfg.SessionDuration {
		e.endLocked(ctx, true)
	}
	return nil
}

// End finishes the session, freezes statistics and persists them.
// Ending an inactive engine is a no-op returning the last statistics.
func (e *Engine) End(ctx context.Context) (Statistics, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return e.lastStats, nil
	}
	e.endLocked(ctx, false)
	return e.lastStats, nil
}

func (e *Engine) endLocked(ctx context.Context, autoCompleted bool) {
	if e.voice != nil {
		e.voice.StopRecognition()
		e.voice.BindSession("")
	}

	e.stats.Duration = e.clock().Sub(e.startedAt)
	e.stats.AutoCompleted = autoCompleted
	e.lastStats = e.stats

	if e.sink != nil {
		if err := e.sink.Save(ctx, e.lastStats); err != nil {
			logger.Warn("saving session statistics failed",
				"session_id", e.sessionID, "error", err)
		} else {
			e.em.StatisticsSaved("sink")
		}
	}

	logger.SessionCompleted(e.sessionID, e.lastStats.CardsSeen, e.lastStats.Correct,
		e.lastStats.Duration, "auto_completed", autoCompleted)
	e.em.SessionCompleted(&events.SessionCompletedData{
		Mode:                string(e.mode),
		CardsSeen:           e.lastStats.CardsSeen,
		Correct:             e.lastStats.Correct,
		AverageConfidence:   e.lastStats.AverageConfidence,
		VoiceInputsAccepted: e.lastStats.VoiceInputsAccepted,
		LowConfidenceVoice:  e.lastStats.LowConfidenceVoice,
		RetentionRate:       e.lastStats.RetentionRate(),
		Duration:            e.lastStats.Duration,
		AutoCompleted:       autoCompleted,
	})

	e.active = false
	e.sessionID = ""
	e.queue = nil
	e.em = nil
	e.stats = Statistics{}
}
