package logger

import (
	"context"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// Context keys for common logging fields.
// These keys are used to store values in context.Context that will be
// automatically extracted and added to log entries.
const (
	// ContextKeySessionID identifies the active study session.
	ContextKeySessionID contextKey = "session_id"

	// ContextKeyAttemptID identifies a single voice recognition attempt.
	ContextKeyAttemptID contextKey = "attempt_id"

	// ContextKeyCardID identifies the card currently being reviewed.
	ContextKeyCardID contextKey = "card_id"

	// ContextKeyMode identifies the study mode ("standard", "voice", "quiz").
	ContextKeyMode contextKey = "mode"

	// ContextKeyProvider identifies the recognizer provider (e.g., "whisper").
	ContextKeyProvider contextKey = "provider"

	// ContextKeyRequestID identifies the individual bridge request.
	ContextKeyRequestID contextKey = "request_id"

	// ContextKeyCorrelationID is used for distributed tracing.
	ContextKeyCorrelationID contextKey = "correlation_id"

	// ContextKeyEnvironment identifies the deployment environment.
	ContextKeyEnvironment contextKey = "environment"
)

// allContextKeys lists all context keys that should be extracted for logging.
// This is used by the handler to iterate over all possible context values.
var allContextKeys = []contextKey{
	ContextKeySessionID,
	ContextKeyAttemptID,
	ContextKeyCardID,
	ContextKeyMode,
	ContextKeyProvider,
	ContextKeyRequestID,
	ContextKeyCorrelationID,
	ContextKeyEnvironment,
}

// WithSessionID returns a new context with the study session ID set.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}

// WithAttemptID returns a new context with the recognition attempt ID set.
func WithAttemptID(ctx context.Context, attemptID string) context.Context {
	return context.WithValue(ctx, ContextKeyAttemptID, attemptID)
}

// WithCardID returns a new context with the card ID set.
func WithCardID(ctx context.Context, cardID string) context.Context {
	return context.WithValue(ctx, ContextKeyCardID, cardID)
}

// WithMode returns a new context with the study mode set.
func WithMode(ctx context.Context, mode string) context.Context {
	return context.WithValue(ctx, ContextKeyMode, mode)
}

// WithProvider returns a new context with the recognizer provider name set.
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, ContextKeyProvider, provider)
}

// WithRequestID returns a new context with the request ID set.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// WithCorrelationID returns a new context with the correlation ID set.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, ContextKeyCorrelationID, correlationID)
}

// WithEnvironment returns a new context with the environment set.
func WithEnvironment(ctx context.Context, environment string) context.Context {
	return context.WithValue(ctx, ContextKeyEnvironment, environment)
}

// LoggingFields bundles the common logging fields for WithLoggingContext.
type LoggingFields struct {
	SessionID     string
	AttemptID     string
	CardID        string
	Mode          string
	Provider      string
	RequestID     string
	CorrelationID string
	Environment   string
}

// WithLoggingContext returns a new context with multiple logging fields set at once.
// This is a convenience function for setting multiple fields in one call.
// Only non-empty values are set.
func WithLoggingContext(ctx context.Context, fields *LoggingFields) context.Context {
	if fields == nil {
		return ctx
	}
	if fields.SessionID != "" {
		ctx = WithSessionID(ctx, fields.SessionID)
	}
	if fields.AttemptID != "" {
		ctx = WithAttemptID(ctx, fields.AttemptID)
	}
	if fields.CardID != "" {
		ctx = WithCardID(ctx, fields.CardID)
	}
	if fields.Mode != "" {
		ctx = WithMode(ctx, fields.Mode)
	}
	if fields.Provider != "" {
		ctx = WithProvider(ctx, fields.Provider)
	}
	if fields.RequestID != "" {
		ctx = WithRequestID(ctx, fields.RequestID)
	}
	if fields.CorrelationID != "" {
		ctx = WithCorrelationID(ctx, fields.CorrelationID)
	}
	if fields.Environment != "" {
		ctx = WithEnvironment(ctx, fields.Environment)
	}
	return ctx
}
