// Package voice coordinates microphone permission, the audio session and
// a speech-to-text provider into single-utterance recognition attempts
// with a strict state machine.
package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/membo-ai/studykit/audiosession"
	"github.com/membo-ai/studykit/events"
	"github.com/membo-ai/studykit/logger"
	"github.com/membo-ai/studykit/permission"
	"github.com/membo-ai/studykit/stt"
)

const (
	// DefaultTimeout bounds one attempt from start of capture to the
	// end of transcription.
	DefaultTimeout = 10 * time.Second

	// DefaultMinConfidence is the floor below which a transcript is
	// discarded as a non-match.
	DefaultMinConfidence = 0.7
)

var (
	// ErrNoPermission is returned when microphone access is not granted.
	ErrNoPermission = errors.New("voice: microphone permission not granted")

	// ErrAlreadyInProgress is returned when a start overlaps a live attempt.
	ErrAlreadyInProgress = errors.New("voice: recognition already in progress")

	// ErrAudioSession is returned when the audio session cannot be
	// configured or activated for capture.
	ErrAudioSession = errors.New("voice: audio session unavailable")

	// ErrTimeout is reported when an attempt exceeds its deadline.
	ErrTimeout = errors.New("voice: recognition timed out")

	// ErrCancelled marks an attempt stopped on request. It is a
	// cancellation cause, never surfaced through the error handler.
	ErrCancelled = errors.New("voice: recognition cancelled")

	// ErrRecognizerUnavailable is returned when no usable recognizer or
	// capture source is configured.
	ErrRecognizerUnavailable = errors.New("voice: recognizer unavailable")

	// ErrInvalidConfiguration is returned for settings changes outside
	// the Idle state or with out-of-range values.
	ErrInvalidConfiguration = errors.New("voice: invalid configuration")

	// ErrNoMatch is reported when a transcript's confidence falls below
	// the configured floor.
	ErrNoMatch = errors.New("voice: no confident match")
)

// Result is one accepted transcript.
type Result struct {
	AttemptID  string
	Transcript string
	Confidence float64
	Language   string
}

// ResultHandler receives accepted transcripts.
type ResultHandler func(Result)

// ErrorHandler receives terminal attempt failures.
type ErrorHandler func(attemptID string, err error)

// Engine runs one recognition attempt at a time.
type Engine struct {
	mu sync.Mutex

	transcriber stt.Transcriber
	source      stt.CaptureSource
	audio       *audiosession.Lifecycle
	perms       *permission.Gate
	bus         *events.EventBus

	config        stt.Config
	timeout       time.Duration
	minConfidence float64

	onResult ResultHandler
	onError  ErrorHandler

	state     State
	sessionID string
	attemptID string
	cancel    context.CancelCauseFunc
	release   context.CancelFunc
	done      chan struct{}
}

// Option configures the engine.
type Option func(*Engine)

// WithBus attaches an event bus for state change and transcript events.
// State change events are published synchronously while the engine holds
// its internal lock, so a synchronous state listener must not call back
// into the engine.
func WithBus(bus *events.EventBus) Option {
	return func(e *Engine) {
		e.bus = bus
	}
}

// WithTimeout overrides the per-attempt deadline.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithConfig sets the recognition config used for every attempt.
func WithConfig(cfg stt.Config) Option {
	return func(e *Engine) {
		e.config = cfg
	}
}

// WithResultHandler sets the callback for accepted transcripts.
func WithResultHandler(fn ResultHandler) Option {
	return func(e *Engine) {
		e.onResult = fn
	}
}

// WithErrorHandler sets the callback for failed attempts.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(e *Engine) {
		e.onError = fn
	}
}

// WithMinConfidence overrides the transcript confidence floor.
func WithMinConfidence(min float64) Option {
	return func(e *Engine) {
		if min >= 0 && min <= 1 {
			e.minConfidence = min
		}
	}
}

// NewEngine wires the recognition collaborators together.
func NewEngine(
	transcriber stt.Transcriber,
	source stt.CaptureSource,
	audio *audiosession.Lifecycle,
	perms *permission.Gate,
	opts ...Option,
) *Engine {
	e := &Engine{
		transcriber:   transcriber,
		source:        source,
		audio:         audio,
		perms:         perms,
		config:        stt.DefaultConfig(),
		timeout:       DefaultTimeout,
		minConfidence: DefaultMinConfidence,
		state:         StateIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.audio != nil {
		e.audio.SetLostHandler(e.captureLost)
	}
	return e
}

// IsAvailable reports whether a recognition attempt could start right
// now: a recognizer and capture source are wired, microphone permission
// is granted, and no attempt is in flight. It never prompts for
// permission; an undetermined status reads as unavailable until
// StartRecognition requests it.
func (e *Engine) IsAvailable() bool {
	if !e.hasRecognizer() {
		return false
	}
	if e.perms != nil && e.perms.CheckMicrophone() != permission.StatusGranted {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateIdle
}

func (e *Engine) hasRecognizer() bool {
	return e.transcriber != nil && e.transcriber.Available() && e.source != nil
}

// captureLost terminates a live attempt whose audio session did not come
// back after an interruption.
func (e *Engine) captureLost() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel(fmt.Errorf("%w: interrupted without resume", ErrAudioSession))
	}
}

// State returns the current lifecycle phase.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// BindSession tags subsequent attempts with a study session ID.
func (e *Engine) BindSession(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessionID = sessionID
}

// SetLanguage changes the transcription language. Only allowed while Idle.
func (e *Engine) SetLanguage(lang string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateIdle {
		return ErrInvalidConfiguration
	}
	if lang == "" {
		return ErrInvalidConfiguration
	}
	e.config.Language = lang
	return nil
}

// SetTimeout changes the per-attempt deadline. Only allowed while Idle.
func (e *Engine) SetTimeout(d time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateIdle {
		return ErrInvalidConfiguration
	}
	if d <= 0 {
		return ErrInvalidConfiguration
	}
	e.timeout = d
	return nil
}

// SetPrompt sets the vocabulary hint passed to the recognizer. Unlike
// language and timeout it may change between attempts mid-session, so
// it is allowed in any state and applies to the next attempt.
func (e *Engine) SetPrompt(prompt string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config.Prompt = prompt
}

// StartRecognition begins one recognition attempt and returns its ID.
// The transcript or failure is delivered asynchronously through the
// configured handlers and the event bus.
func (e *Engine) StartRecognition(ctx context.Context) (string, error) {
	if !e.hasRecognizer() {
		return "", ErrRecognizerUnavailable
	}
	if err := e.ensureMicrophone(ctx); err != nil {
		return "", err
	}

	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return "", ErrAlreadyInProgress
	}

	if e.audio != nil {
		if err := e.audio.Configure(); err != nil {
			_ = e.audio.Deactivate()
			e.mu.Unlock()
			return "", fmt.Errorf("%w: %v", ErrAudioSession, err)
		}
		if err := e.audio.Activate(); err != nil {
			// Leave nothing half-activated behind.
			_ = e.audio.Deactivate()
			e.mu.Unlock()
			return "", fmt.Errorf("%w: %v", ErrAudioSession, err)
		}
	}

	attemptID := uuid.NewString()
	em := events.NewEmitter(e.bus, e.sessionID, attemptID)

	tctx, release := context.WithTimeoutCause(ctx, e.timeout, ErrTimeout)
	actx, cancel := context.WithCancelCause(tctx)

	e.attemptID = attemptID
	e.cancel = cancel
	e.release = release
	e.done = make(chan struct{})
	e.setStateLocked(StateListening, "start", em)
	if e.audio != nil {
		e.audio.SetCaptureInProgress(true)
	}
	cfg := e.config
	e.mu.Unlock()

	go e.run(actx, attemptID, em, cfg)
	return attemptID, nil
}

// StopRecognition cancels any in-flight attempt and blocks until the
// engine is idle again. Stopping while idle is a no-op.
func (e *Engine) StopRecognition() {
	e.mu.Lock()
	if e.state == StateIdle || e.cancel == nil {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	done := e.done
	e.mu.Unlock()

	cancel(ErrCancelled)
	<-done
}

func (e *Engine) ensureMicrophone(ctx context.Context) error {
	if e.perms == nil {
		return nil
	}
	status := e.perms.CheckMicrophone()
	if status == permission.StatusNotDetermined {
		var err error
		status, err = e.perms.RequestMicrophone(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNoPermission, err)
		}
	}
	if status != permission.StatusGranted {
		return ErrNoPermission
	}
	return nil
}

func (e *Engine) run(ctx context.Context, attemptID string, em *events.Emitter, cfg stt.Config) {
	var (
		result Result
		runErr error
	)

	audio, err := e.source.Record(ctx)
	switch {
	case err != nil:
		runErr = attemptError(ctx, err)
	case !e.advance(attemptID, StateProcessing, "capture_complete", em):
		// Attempt is no longer current; its teardown already ran.
		return
	default:
		var res stt.Result
		res, err = e.transcriber.Transcribe(ctx, audio, cfg)
		switch {
		case err != nil:
			runErr = attemptError(ctx, err)
		case res.Confidence < e.minConfidence:
			runErr = fmt.Errorf("%w: confidence %.2f", ErrNoMatch, res.Confidence)
		default:
			result = Result{
				AttemptID:  attemptID,
				Transcript: res.Transcript,
				Confidence: res.Confidence,
				Language:   cfg.Language,
			}
		}
	}

	e.finish(attemptID, runErr, result, em)
}

// advance moves a live attempt to the next phase. It returns false when
// the attempt is no longer current.
func (e *Engine) advance(attemptID string, next State, cause string, em *events.Emitter) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.attemptID != attemptID {
		return false
	}
	e.setStateLocked(next, cause, em)
	return true
}

// finish tears an attempt down exactly once: transition to Finished,
// deactivate audio, reset to Idle, then notify handlers.
func (e *Engine) finish(attemptID string, runErr error, result Result, em *events.Emitter) {
	e.mu.Lock()
	if e.attemptID != attemptID {
		e.mu.Unlock()
		return
	}

	cause := "result"
	switch {
	case errors.Is(runErr, ErrCancelled):
		cause = "cancelled"
	case errors.Is(runErr, ErrTimeout):
		cause = "timeout"
	case runErr != nil:
		cause = "error"
	}
	e.setStateLocked(StateFinished, cause, em)

	if e.audio != nil {
		e.audio.SetCaptureInProgress(false)
		if err := e.audio.Deactivate(); err != nil {
			logger.AudioSession("deactivate_failed", "error", err)
		}
	}
	e.release()
	e.attemptID = ""
	e.cancel = nil
	e.release = nil
	done := e.done
	e.done = nil
	e.setStateLocked(StateIdle, "reset", em)
	onResult := e.onResult
	onError := e.onError
	e.mu.Unlock()

	// Unblock StopRecognition before handlers run so a handler can call
	// back into engines that stop recognition without deadlocking.
	close(done)

	switch {
	case runErr == nil:
		logger.RecognitionResult(attemptID, len(result.Transcript), result.Confidence)
		em.VoiceInput(result.Transcript, result.Confidence, result.Language)
		if onResult != nil {
			onResult(result)
		}
	case errors.Is(runErr, ErrCancelled):
		// Stopped on request. Not an error, no handler call.
	default:
		logger.RecognitionError(attemptID, runErr)
		em.RecognitionError(errorKind(runErr), runErr.Error())
		if onError != nil {
			onError(attemptID, runErr)
		}
	}
}

func (e *Engine) setStateLocked(next State, cause string, em *events.Emitter) {
	previous := e.state
	e.state = next
	logger.RecognitionState(e.attemptID, previous.String(), next.String(), "cause", cause)
	em.RecognitionStateChanged(previous.String(), next.String(), cause)
}

// attemptError maps a capture or transcription failure onto the engine's
// sentinels, consulting the attempt context for timeout and stop causes.
func attemptError(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); cause != nil {
		if errors.Is(cause, ErrTimeout) || errors.Is(cause, ErrCancelled) || errors.Is(cause, ErrAudioSession) {
			return cause
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ErrCancelled
	}
	return err
}

// errorKind buckets a terminal failure for the recognition error event.
func errorKind(err error) string {
	var te *stt.TranscriptionError
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNoMatch), errors.Is(err, stt.ErrNoSpeech):
		return "no_match"
	case errors.Is(err, ErrNoPermission):
		return "no_permission"
	case errors.Is(err, ErrAudioSession):
		return "audio_session"
	case errors.Is(err, stt.ErrRateLimited):
		return "network"
	case errors.As(err, &te):
		return "network"
	default:
		return "unknown"
	}
}
