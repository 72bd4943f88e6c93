package study

import (
	"context"
	"time"
)

// Card is one reviewable flashcard.
type Card struct {
	ID    string
	Front string
	Back  string
	Due   time.Time
}

// Source hands the engine its review queue and absorbs graded responses.
// The FSRS scheduler implements it; tests use fixed decks.
type Source interface {
	// OrderedCards returns up to limit cards in review order for a mode.
	OrderedCards(ctx context.Context, mode Mode, limit int) ([]Card, error)

	// RecordReview applies a graded response to the card's scheduling
	// state and returns the next due time.
	RecordReview(ctx context.Context, cardID string, confidence int, now time.Time) (time.Time, error)
}

// StatsSink persists frozen session statistics. Persistence failures do
// not fail the session; the engine logs and moves on.
type StatsSink interface {
	Save(ctx context.Context, stats Statistics) error
}
