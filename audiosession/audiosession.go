// Package audiosession manages the single shared claim on microphone
// hardware that voice capture depends on.
//
// A Lifecycle wraps a platform Driver and tracks a reference state:
// configuration, activation, interruptions, and route changes. Only this
// package mutates hardware activation; everything else (the voice engine
// in particular) requests activation and deactivation through it. All
// state transitions are observable through the event emitter and the
// bounded history, and none of them block callers on observer work.
package audiosession

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/membo-ai/studykit/events"
	"github.com/membo-ai/studykit/logger"
)

// Audio session categories and modes for voice capture. The values follow
// the platform vocabulary but are opaque to this package.
const (
	CategoryPlayAndRecord = "play_and_record"
	ModeSpokenAudio       = "spoken_audio"
)

// historyCap bounds the interruption/route-change history. Oldest entries
// are dropped beyond the cap.
const historyCap = 50

var (
	// ErrNotConfigured is returned by Activate before Configure succeeded.
	ErrNotConfigured = errors.New("audio session not configured")
	// ErrDriverUnavailable is returned when no Driver was provided.
	ErrDriverUnavailable = errors.New("audio driver unavailable")
)

// Driver is the platform boundary that actually touches audio hardware.
// Lifecycle serializes all calls into it.
type Driver interface {
	Configure(category, mode string) error
	Activate() error
	Deactivate() error
}

// NopDriver is a Driver that accepts every call. Useful in tests and on
// hosts without audio hardware.
type NopDriver struct{}

func (NopDriver) Configure(string, string) error { return nil }
func (NopDriver) Activate() error                { return nil }
func (NopDriver) Deactivate() error              { return nil }

// HistoryKind distinguishes entries in the bounded history.
type HistoryKind string

const (
	// HistoryInterruptionBegan records the start of an interruption.
	HistoryInterruptionBegan HistoryKind = "interruption_began"
	// HistoryInterruptionEnded records the end of an interruption.
	HistoryInterruptionEnded HistoryKind = "interruption_ended"
	// HistoryRouteChange records an audio route change.
	HistoryRouteChange HistoryKind = "route_change"
)

// HistoryEntry is one recorded interruption or route-change event.
type HistoryEntry struct {
	Kind         HistoryKind
	ShouldResume bool   // interruption_ended only
	Reason       string // route_change only
	NewRoute     string // route_change only
	At           time.Time
}

// State is a read-only snapshot of the lifecycle for diagnostics.
type State struct {
	Configured  bool
	Active      bool
	Interrupted bool
	Category    string
	Mode        string
	LastError   string
	History     []HistoryEntry
}

// Lifecycle owns the process-wide audio session state. Construct with
// NewLifecycle and share the instance between components at composition
// time; tests can hold isolated instances.
type Lifecycle struct {
	driver  Driver
	emitter *events.Emitter

	mu                sync.Mutex
	configured        bool
	active            bool
	interrupted       bool
	captureInProgress bool
	category          string
	mode              string
	lastErr           error
	history           []HistoryEntry
	resumeHandler     func()
	lostHandler       func()
}

// Option configures a Lifecycle.
type Option func(*Lifecycle)

// WithEmitter attaches an event emitter for transition observability.
func WithEmitter(em *events.Emitter) Option {
	return func(l *Lifecycle) {
		l.emitter = em
	}
}

// NewLifecycle creates a Lifecycle using the given hardware driver.
func NewLifecycle(driver Driver, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		driver:  driver,
		history: make([]HistoryEntry, 0, historyCap),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Configure sets the capture category and mode on the hardware session.
// It is idempotent: configuring an already configured session with the
// same settings is a no-op.
func (l *Lifecycle) Configure() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.driver == nil {
		return ErrDriverUnavailable
	}
	if l.configured {
		return nil
	}

	if err := l.driver.Configure(CategoryPlayAndRecord, ModeSpokenAudio); err != nil {
		l.lastErr = err
		return fmt.Errorf("configure audio session: %w", err)
	}

	l.configured = true
	l.category = CategoryPlayAndRecord
	l.mode = ModeSpokenAudio
	logger.AudioSession("configure", "category", l.category, "mode", l.mode)
	return nil
}

// Activate claims the hardware session. It is re-entrant: activating an
// already active session returns nil. The lifecycle tracks a reference
// state, not a strict lock.
func (l *Lifecycle) Activate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.driver == nil {
		return ErrDriverUnavailable
	}
	if !l.configured {
		return ErrNotConfigured
	}
	if l.active {
		return nil
	}

	if err := l.driver.Activate(); err != nil {
		l.lastErr = err
		return fmt.Errorf("activate audio session: %w", err)
	}

	l.active = true
	l.interrupted = false
	logger.AudioSession("activate")
	l.emitter.AudioActivated(l.category, l.mode)
	return nil
}

// Deactivate releases the hardware session. It always succeeds when the
// session is not active, so callers can invoke it unconditionally during
// cleanup. A driver failure is recorded and returned, but the reference
// state is cleared regardless so the claim is never considered leaked.
func (l *Lifecycle) Deactivate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return nil
	}

	l.active = false
	l.interrupted = false
	logger.AudioSession("deactivate")
	l.emitter.AudioDeactivated(l.category, l.mode)

	if l.driver == nil {
		return nil
	}
	if err := l.driver.Deactivate(); err != nil {
		l.lastErr = err
		return fmt.Errorf("deactivate audio session: %w", err)
	}
	return nil
}

// IsActive reports whether the session currently holds the hardware claim.
func (l *Lifecycle) IsActive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active && !l.interrupted
}

// SetResumeHandler registers the callback invoked when an interruption
// ends with should-resume and a capture was in progress. The handler runs
// on its own goroutine and must not call back into Lifecycle synchronously
// with blocking expectations.
func (l *Lifecycle) SetResumeHandler(fn func()) {
	l.mu.Lock()
	l.resumeHandler = fn
	l.mu.Unlock()
}

// SetLostHandler registers the callback invoked when an interruption ends
// without capture resuming while an attempt was in progress. The attempt
// cannot continue at that point: its audio source is gone. The handler
// runs on its own goroutine, like the resume handler.
func (l *Lifecycle) SetLostHandler(fn func()) {
	l.mu.Lock()
	l.lostHandler = fn
	l.mu.Unlock()
}

// SetCaptureInProgress marks whether a recognition attempt currently
// depends on the session. It controls whether an interruption-ended
// event triggers the resume handler.
func (l *Lifecycle) SetCaptureInProgress(in bool) {
	l.mu.Lock()
	l.captureInProgress = in
	l.mu.Unlock()
}

// HandleInterruptionBegan records the start of a system interruption
// (phone call, alarm). The hardware claim is considered suspended until
// the interruption ends.
func (l *Lifecycle) HandleInterruptionBegan() {
	l.mu.Lock()
	l.interrupted = true
	l.appendHistory(HistoryEntry{Kind: HistoryInterruptionBegan, At: time.Now()})
	l.mu.Unlock()

	logger.AudioSession("interruption", "began", true)
	l.emitter.AudioInterruption(true, false, false)
}

// HandleInterruptionEnded records the end of an interruption. When the
// system indicates capture should resume and an attempt was in progress,
// the session re-activates and the resume handler is notified. When
// capture does not come back, an in-progress attempt is notified through
// the lost handler instead.
func (l *Lifecycle) HandleInterruptionEnded(shouldResume bool) {
	l.mu.Lock()
	l.interrupted = false
	l.appendHistory(HistoryEntry{Kind: HistoryInterruptionEnded, ShouldResume: shouldResume, At: time.Now()})

	resumed := false
	var handler func()
	if shouldResume && l.active && l.driver != nil {
		if err := l.driver.Activate(); err != nil {
			l.lastErr = err
			logger.Warn("audio session resume failed", "error", err)
		} else {
			resumed = true
			if l.captureInProgress {
				handler = l.resumeHandler
			}
		}
	}
	if !resumed && l.captureInProgress {
		handler = l.lostHandler
	}
	l.mu.Unlock()

	logger.AudioSession("interruption", "began", false, "should_resume", shouldResume, "resumed", resumed)
	l.emitter.AudioInterruption(false, shouldResume, resumed)

	if handler != nil {
		go handler()
	}
}

// HandleRouteChange records a route change (headphones unplugged, output
// device switched) in the bounded history.
func (l *Lifecycle) HandleRouteChange(reason, newRoute string) {
	l.mu.Lock()
	l.appendHistory(HistoryEntry{Kind: HistoryRouteChange, Reason: reason, NewRoute: newRoute, At: time.Now()})
	l.mu.Unlock()

	logger.AudioSession("route_change", "reason", reason, "route", newRoute)
	l.emitter.AudioRouteChanged(reason, newRoute)
}

// Snapshot returns a copy of the current lifecycle state for diagnostics.
func (l *Lifecycle) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := State{
		Configured:  l.configured,
		Active:      l.active,
		Interrupted: l.interrupted,
		Category:    l.category,
		Mode:        l.mode,
		History:     make([]HistoryEntry, len(l.history)),
	}
	if l.lastErr != nil {
		s.LastError = l.lastErr.Error()
	}
	copy(s.History, l.history)
	return s
}

// appendHistory adds an entry, dropping the oldest beyond historyCap.
// Must be called with the lock held.
func (l *Lifecycle) appendHistory(e HistoryEntry) {
	if len(l.history) >= historyCap {
		copy(l.history, l.history[1:])
		l.history = l.history[:historyCap-1]
	}
	l.history = append(l.history, e)
}
