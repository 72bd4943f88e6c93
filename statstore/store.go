// Package statstore persists frozen session statistics.
package statstore

import (
	"context"
	"errors"

	"github.com/membo-ai/studykit/study"
)

var (
	// ErrNotFound is returned when no record exists for a session ID.
	ErrNotFound = errors.New("statistics not found")

	// ErrInvalidID is returned for empty session IDs.
	ErrInvalidID = errors.New("invalid session ID")
)

// ListOptions filters and pages List results.
type ListOptions struct {
	// Mode restricts results to one session mode. Empty matches all.
	Mode study.Mode

	// Offset skips that many records, newest first.
	Offset int

	// Limit caps the result size. Zero means no limit.
	Limit int
}

// Store persists and queries session statistics. All implementations
// satisfy study.StatsSink.
type Store interface {
	// Save persists one frozen statistics record, keyed by session ID.
	Save(ctx context.Context, stats study.Statistics) error

	// Load returns the record for a session ID.
	Load(ctx context.Context, sessionID string) (study.Statistics, error)

	// List returns records newest first.
	List(ctx context.Context, opts ListOptions) ([]study.Statistics, error)

	// Delete removes a record.
	Delete(ctx context.Context, sessionID string) error
}
