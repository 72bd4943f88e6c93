// Package notify schedules study reminders and delivers them through a
// platform notification boundary, gated on notification permission and
// throttled so bursts of reminders cannot spam the user.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/membo-ai/studykit/events"
	"github.com/membo-ai/studykit/logger"
	"github.com/membo-ai/studykit/permission"
)

// Notification channels.
const (
	ChannelStudyReminders = "study_reminders"
	ChannelContentUpdates = "content_updates"
	ChannelSystem         = "system_notifications"
)

var (
	// ErrUnknownChannel is returned for reminders on unknown channels.
	ErrUnknownChannel = errors.New("notify: unknown channel")

	// ErrNoPermission is returned when notification permission is not
	// granted at scheduling time.
	ErrNoPermission = errors.New("notify: notification permission not granted")

	// ErrDuplicateID is returned when a reminder ID is already pending.
	ErrDuplicateID = errors.New("notify: reminder already scheduled")
)

// Reminder is one scheduled notification.
type Reminder struct {
	ID        string
	Channel   string
	Title     string
	Body      string
	SessionID string
	At        time.Time
}

// Delivery is the platform boundary that shows a notification.
type Delivery interface {
	Deliver(ctx context.Context, r Reminder) error
}

// DeliveryFunc adapts a function to the Delivery interface.
type DeliveryFunc func(ctx context.Context, r Reminder) error

// Deliver implements Delivery.
func (f DeliveryFunc) Deliver(ctx context.Context, r Reminder) error {
	return f(ctx, r)
}

// Scheduler holds pending reminders and fires them at their time.
type Scheduler struct {
	mu sync.Mutex

	delivery Delivery
	perms    *permission.Gate
	bus      *events.EventBus
	limiter  *rate.Limiter
	clock    func() time.Time

	pending map[string]*time.Timer
	closed  bool
}

// Option configures the scheduler.
type Option func(*Scheduler)

// WithBus attaches an event bus.
func WithBus(bus *events.EventBus) Option {
	return func(s *Scheduler) {
		s.bus = bus
	}
}

// WithRateLimit overrides the delivery throttle.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(s *Scheduler) {
		s.limiter = rate.NewLimiter(r, burst)
	}
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// NewScheduler creates a reminder scheduler. The default throttle
// allows one delivery per minute with a burst of three.
func NewScheduler(delivery Delivery, perms *permission.Gate, opts ...Option) *Scheduler {
	s := &Scheduler{
		delivery: delivery,
		perms:    perms,
		limiter:  rate.NewLimiter(rate.Every(time.Minute), 3),
		clock:    time.Now,
		pending:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validChannel(ch string) bool {
	switch ch {
	case ChannelStudyReminders, ChannelContentUpdates, ChannelSystem:
		return true
	}
	return false
}

// Schedule queues a reminder for delivery at its time. Reminders in the
// past fire immediately.
func (s *Scheduler) Schedule(r Reminder) error {
	if !validChannel(r.Channel) {
		return ErrUnknownChannel
	}
	if s.perms != nil && s.perms.CheckNotifications() != permission.StatusGranted {
		return ErrNoPermission
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("notify: scheduler closed")
	}
	if _, ok := s.pending[r.ID]; ok {
		return ErrDuplicateID
	}

	delay := r.At.Sub(s.clock())
	if delay < 0 {
		delay = 0
	}
	s.pending[r.ID] = time.AfterFunc(delay, func() {
		s.fire(r)
	})

	events.NewEmitter(s.bus, r.SessionID, "").ReminderScheduled(r.At, r.Channel)
	logger.Debug("reminder scheduled",
		"reminder_id", r.ID, "channel", r.Channel, "at", r.At)
	return nil
}

// Cancel drops a pending reminder. It reports whether one was pending.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	timer, ok := s.pending[id]
	if !ok {
		return false
	}
	timer.Stop()
	delete(s.pending, id)
	return true
}

// Pending returns the number of reminders waiting to fire.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close cancels all pending reminders.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, timer := range s.pending {
		timer.Stop()
		delete(s.pending, id)
	}
}

func (s *Scheduler) fire(r Reminder) {
	s.mu.Lock()
	delete(s.pending, r.ID)
	s.mu.Unlock()

	// Permission may have been revoked since scheduling.
	if s.perms != nil && s.perms.CheckNotifications() != permission.StatusGranted {
		logger.Debug("reminder dropped, permission revoked", "reminder_id", r.ID)
		return
	}
	if !s.limiter.Allow() {
		logger.Warn("reminder dropped by throttle", "reminder_id", r.ID, "channel", r.Channel)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.delivery.Deliver(ctx, r); err != nil {
		logger.Error("reminder delivery failed", "reminder_id", r.ID, "error", err)
	}
}
