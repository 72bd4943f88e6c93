package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sky-flux/flux"

	"github.com/membo-ai/studykit/study"
)

func newTestScheduler(t *testing.T) *FSRS {
	t.Helper()
	f, err := NewFSRS(WithoutFuzzing())
	if err != nil {
		t.Fatalf("failed to create scheduler: %v", err)
	}
	return f
}

func TestOrderedCardsNewCardsAreDue(t *testing.T) {
	f := newTestScheduler(t)
	f.AddCards(
		study.Card{ID: "a", Front: "bonjour", Back: "hello"},
		study.Card{ID: "b", Front: "merci", Back: "thanks"},
		study.Card{ID: "c", Front: "chat", Back: "cat"},
	)

	cards, err := f.OrderedCards(context.Background(), study.ModeStandard, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cards) != 3 {
		t.Fatalf("expected 3 due cards, got %d", len(cards))
	}
}

func TestOrderedCardsLimit(t *testing.T) {
	f := newTestScheduler(t)
	f.AddCards(
		study.Card{ID: "a"},
		study.Card{ID: "b"},
		study.Card{ID: "c"},
	)

	cards, err := f.OrderedCards(context.Background(), study.ModeStandard, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(cards))
	}
}

func TestRecordReviewPushesCardOut(t *testing.T) {
	f := newTestScheduler(t)
	f.AddCard(study.Card{ID: "a", Front: "bonjour"})

	now := time.Now()
	due, err := f.RecordReview(context.Background(), "a", 5, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !due.After(now) {
		t.Errorf("expected next due after review time, got %v", due)
	}

	// A confidently recalled card leaves the immediate queue.
	cards, err := f.OrderedCards(context.Background(), study.ModeStandard, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range cards {
		if c.ID == "a" {
			t.Error("reviewed card should no longer be due")
		}
	}
}

func TestRecordReviewUnknownCard(t *testing.T) {
	f := newTestScheduler(t)
	_, err := f.RecordReview(context.Background(), "ghost", 3, time.Now())
	if !errors.Is(err, ErrUnknownCard) {
		t.Fatalf("expected ErrUnknownCard, got %v", err)
	}
}

func TestNextReviewIntervalGrowsWithConfidence(t *testing.T) {
	f := newTestScheduler(t)
	f.AddCard(study.Card{ID: "a"})

	now := time.Now()
	fail, err := f.NextReviewInterval("a", 1, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	easy, err := f.NextReviewInterval("a", 5, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if easy <= fail {
		t.Errorf("expected easy interval (%v) to exceed fail interval (%v)", easy, fail)
	}
}

func TestRatingFor(t *testing.T) {
	cases := map[int]flux.Rating{
		0: flux.Again,
		1: flux.Again,
		2: flux.Hard,
		3: flux.Good,
		4: flux.Good,
		5: flux.Easy,
		6: flux.Easy,
	}
	for confidence, want := range cases {
		if got := RatingFor(confidence); got != want {
			t.Errorf("RatingFor(%d) = %v, want %v", confidence, got, want)
		}
	}
}

func TestAddCardKeepsSchedulingState(t *testing.T) {
	f := newTestScheduler(t)
	f.AddCard(study.Card{ID: "a", Front: "old front"})

	now := time.Now()
	due, err := f.RecordReview(context.Background(), "a", 5, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Refreshing the content must not reset the card to immediately due.
	f.AddCard(study.Card{ID: "a", Front: "new front"})
	cards, err := f.OrderedCards(context.Background(), study.ModeStandard, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cards) != 0 {
		t.Errorf("expected no due cards before %v, got %d", due, len(cards))
	}

	r, err := f.Retrievability("a", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r <= 0 || r > 1 {
		t.Errorf("retrievability out of range: %f", r)
	}
}
