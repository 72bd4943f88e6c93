// Package scheduler orders the review queue and spaces repetitions with
// the FSRS algorithm.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sky-flux/flux"

	"github.com/membo-ai/studykit/study"
)

// ErrUnknownCard is returned for reviews of cards never added.
var ErrUnknownCard = errors.New("scheduler: unknown card")

// FSRS tracks per-card scheduling state and implements study.Source.
type FSRS struct {
	mu     sync.Mutex
	sched  *flux.Scheduler
	cards  map[string]*entry
	order  []string
	nextID int64
}

type entry struct {
	card  study.Card
	state flux.Card
}

// Option configures the scheduler.
type Option func(*flux.SchedulerConfig)

// WithDesiredRetention sets the target recall probability.
func WithDesiredRetention(r float64) Option {
	return func(cfg *flux.SchedulerConfig) {
		cfg.DesiredRetention = r
	}
}

// WithMaximumInterval caps the days between reviews.
func WithMaximumInterval(days int) Option {
	return func(cfg *flux.SchedulerConfig) {
		cfg.MaximumInterval = days
	}
}

// WithoutFuzzing disables interval fuzzing, for deterministic tests.
func WithoutFuzzing() Option {
	return func(cfg *flux.SchedulerConfig) {
		cfg.DisableFuzzing = true
	}
}

// NewFSRS creates an empty FSRS scheduler.
func NewFSRS(opts ...Option) (*FSRS, error) {
	var cfg flux.SchedulerConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	sched, err := flux.NewScheduler(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}
	return &FSRS{
		sched: sched,
		cards: make(map[string]*entry),
	}, nil
}

// AddCard registers a card for scheduling. Re-adding an ID refreshes the
// card content but keeps its scheduling state.
func (f *FSRS) AddCard(card study.Card) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.cards[card.ID]; ok {
		existing.card = card
		return
	}
	f.nextID++
	f.cards[card.ID] = &entry{
		card:  card,
		state: flux.NewCard(f.nextID),
	}
	f.order = append(f.order, card.ID)
}

// AddCards registers several cards.
func (f *FSRS) AddCards(cards ...study.Card) {
	for _, c := range cards {
		f.AddCard(c)
	}
}

// OrderedCards implements study.Source: due cards first, earliest due
// first, ties broken by insertion order.
func (f *FSRS) OrderedCards(_ context.Context, _ study.Mode, limit int) ([]study.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	type ranked struct {
		card study.Card
		due  time.Time
		pos  int
	}
	due := make([]ranked, 0, len(f.order))
	for pos, id := range f.order {
		e := f.cards[id]
		if e.state.Due.After(now) {
			continue
		}
		c := e.card
		c.Due = e.state.Due
		due = append(due, ranked{card: c, due: e.state.Due, pos: pos})
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].due.Equal(due[j].due) {
			return due[i].due.Before(due[j].due)
		}
		return due[i].pos < due[j].pos
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	out := make([]study.Card, len(due))
	for i, r := range due {
		out[i] = r.card
	}
	return out, nil
}

// RecordReview implements study.Source: it grades the card and returns
// its next due time.
func (f *FSRS) RecordReview(_ context.Context, cardID string, confidence int, now time.Time) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.cards[cardID]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", ErrUnknownCard, cardID)
	}
	updated, _ := f.sched.ReviewCard(e.state, RatingFor(confidence), now)
	e.state = updated
	return updated.Due, nil
}

// NextReviewInterval previews how far out a card would be scheduled for
// a given confidence grade, without committing the review.
func (f *FSRS) NextReviewInterval(cardID string, confidence int, now time.Time) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.cards[cardID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCard, cardID)
	}
	previews := f.sched.PreviewCard(e.state, now)
	next := previews[RatingFor(confidence)]
	return next.Due.Sub(now), nil
}

// Retrievability estimates the current recall probability of a card.
func (f *FSRS) Retrievability(cardID string, now time.Time) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.cards[cardID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCard, cardID)
	}
	return f.sched.Retrievability(e.state, now), nil
}

// RatingFor maps a 1-5 confidence grade onto FSRS ratings. Grades 3 and
// 4 both land on Good; FSRS has no slot between "some effort" and
// "effortless".
func RatingFor(confidence int) flux.Rating {
	switch {
	case confidence <= 1:
		return flux.Again
	case confidence == 2:
		return flux.Hard
	case confidence >= 5:
		return flux.Easy
	default:
		return flux.Good
	}
}
