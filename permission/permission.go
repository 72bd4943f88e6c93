// Package permission provides a cached, thread-safe gate in front of the
// platform permission prompts for microphone and notification access.
//
// Checks are synchronous cache reads and never prompt. Requests go through
// the platform Prompter exactly once per permission kind at a time:
// concurrent callers collapse into a single underlying prompt and all
// receive the same result.
package permission

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/membo-ai/studykit/events"
	"github.com/membo-ai/studykit/logger"
)

// Status is the cached authorization state of a permission.
type Status int

const (
	// StatusNotDetermined means the user has never been prompted.
	StatusNotDetermined Status = iota
	// StatusGranted means the permission is held.
	StatusGranted
	// StatusDenied means the user refused the permission.
	StatusDenied
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusNotDetermined:
		return "not_determined"
	case StatusGranted:
		return "granted"
	case StatusDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Kind names a permission the gate manages.
type Kind string

const (
	// KindMicrophone is the microphone capture permission.
	KindMicrophone Kind = "microphone"
	// KindNotifications is the notification delivery permission.
	KindNotifications Kind = "notifications"
)

// ErrPrompterUnavailable is returned when no Prompter was configured.
var ErrPrompterUnavailable = errors.New("permission prompter unavailable")

// Prompter is the platform boundary that shows the system permission
// prompt. Implementations may block until the user responds; the gate
// never calls a Prompter concurrently for the same kind.
type Prompter interface {
	// Prompt asks the user for the given permission and returns whether
	// it was granted.
	Prompt(ctx context.Context, kind Kind) (bool, error)
}

// PrompterFunc adapts a function to the Prompter interface.
type PrompterFunc func(ctx context.Context, kind Kind) (bool, error)

// Prompt implements Prompter.
func (f PrompterFunc) Prompt(ctx context.Context, kind Kind) (bool, error) {
	return f(ctx, kind)
}

// Gate caches permission state and serializes prompt requests.
// The zero value is not usable; construct with NewGate.
type Gate struct {
	prompter Prompter
	emitter  *events.Emitter

	mu    sync.RWMutex
	cache map[Kind]Status

	flight singleflight.Group
}

// Option configures a Gate.
type Option func(*Gate)

// WithEmitter attaches an event emitter; permission.updated events are
// published after each resolved request.
func WithEmitter(em *events.Emitter) Option {
	return func(g *Gate) {
		g.emitter = em
	}
}

// WithInitialStatus seeds the cache, mainly for tests and for platforms
// that expose authorization state without prompting.
func WithInitialStatus(kind Kind, status Status) Option {
	return func(g *Gate) {
		g.cache[kind] = status
	}
}

// NewGate creates a Gate backed by the given platform prompter.
func NewGate(prompter Prompter, opts ...Option) *Gate {
	g := &Gate{
		prompter: prompter,
		cache:    make(map[Kind]Status),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CheckMicrophone returns the cached microphone authorization status.
// It is a pure cache read and never prompts.
func (g *Gate) CheckMicrophone() Status {
	return g.check(KindMicrophone)
}

// CheckNotifications returns the cached notification authorization status.
func (g *Gate) CheckNotifications() Status {
	return g.check(KindNotifications)
}

func (g *Gate) check(kind Kind) Status {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cache[kind]
}

// RequestMicrophone prompts for microphone access, collapsing concurrent
// requests into one prompt. The cache is updated before returning.
func (g *Gate) RequestMicrophone(ctx context.Context) (Status, error) {
	return g.request(ctx, KindMicrophone)
}

// RequestNotifications prompts for notification access, collapsing
// concurrent requests into one prompt.
func (g *Gate) RequestNotifications(ctx context.Context) (Status, error) {
	return g.request(ctx, KindNotifications)
}

func (g *Gate) request(ctx context.Context, kind Kind) (Status, error) {
	if g.prompter == nil {
		return StatusNotDetermined, ErrPrompterUnavailable
	}

	// All concurrent callers for the same kind share one prompt and one
	// result. The shared call deliberately ignores the individual caller
	// contexts: a caller giving up must not cancel the prompt other
	// callers are waiting on.
	v, err, _ := g.flight.Do(string(kind), func() (interface{}, error) {
		granted, promptErr := g.prompter.Prompt(ctx, kind)
		if promptErr != nil {
			return StatusNotDetermined, promptErr
		}

		status := StatusDenied
		if granted {
			status = StatusGranted
		}

		g.mu.Lock()
		g.cache[kind] = status
		g.mu.Unlock()

		logger.Debug("permission resolved", "kind", string(kind), "status", status.String())
		g.emitter.PermissionUpdated(string(kind), granted)
		return status, nil
	})
	if err != nil {
		return StatusNotDetermined, err
	}
	return v.(Status), nil
}

// Invalidate drops the cached status for a kind, forcing the next check
// to report not-determined until a request resolves again. Used when the
// platform reports an external settings change.
func (g *Gate) Invalidate(kind Kind) {
	g.mu.Lock()
	delete(g.cache, kind)
	g.mu.Unlock()
}
