package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/membo-ai/studykit/events"
)

// spanEntry tracks an in-flight span and its context.
type spanEntry struct {
	span trace.Span
	ctx  context.Context //nolint:containedctx // needed to parent child spans
}

// pendingEnd buffers a span completion that arrived before the
// corresponding start. The EventBus dispatches each Publish in a
// separate goroutine, so completions can race ahead of starts.
type pendingEnd struct {
	errMsg string // empty means success
	attrs  []attribute.KeyValue
}

// OTelEventListener converts engine events into OTel spans in real time:
// a root span per study session and a child span per recognition attempt.
// It is safe for concurrent use and tolerates out-of-order delivery.
type OTelEventListener struct {
	tracer trace.Tracer

	mu          sync.Mutex
	sessions    map[string]*spanEntry  // sessionID → root span + ctx
	inflight    map[string]*spanEntry  // "attempt:<id>" → span + ctx
	pendingEnds map[string]*pendingEnd // buffered completions
}

// NewOTelEventListener creates a listener that creates OTel spans from
// engine events.
func NewOTelEventListener(tracer trace.Tracer) *OTelEventListener {
	return &OTelEventListener{
		tracer:      tracer,
		sessions:    make(map[string]*spanEntry),
		inflight:    make(map[string]*spanEntry),
		pendingEnds: make(map[string]*pendingEnd),
	}
}

// OnEvent handles a single engine event. It can be passed to
// EventBus.SubscribeAll.
func (l *OTelEventListener) OnEvent(evt *events.Event) {
	switch evt.Type {
	case events.EventSessionStarted:
		l.startSession(evt)
	case events.EventSessionCompleted:
		l.endSession(evt)
	case events.EventRecognitionStateChanged:
		l.handleRecognitionTransition(evt)
	case events.EventVoiceInput:
		l.handleVoiceInput(evt)
	case events.EventRecognitionError:
		l.failAttempt(evt)
	default:
		// Other events carry no span semantics.
	}
}

func (l *OTelEventListener) startSession(evt *events.Event) {
	data, ok := asPtr[events.SessionStartedData](evt.Data)
	if !ok {
		return
	}
	ctx, span := l.tracer.Start(context.Background(), "studykit.session",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("session.id", evt.SessionID),
			attribute.String("session.mode", data.Mode),
			attribute.Int("session.card_count", data.CardCount),
			attribute.Bool("session.voice_fallback", data.Fallback),
		),
	)
	l.mu.Lock()
	l.sessions[evt.SessionID] = &spanEntry{span: span, ctx: ctx}
	l.mu.Unlock()
}

func (l *OTelEventListener) endSession(evt *events.Event) {
	data, ok := asPtr[events.SessionCompletedData](evt.Data)
	if !ok {
		return
	}
	l.mu.Lock()
	ss, found := l.sessions[evt.SessionID]
	if found {
		delete(l.sessions, evt.SessionID)
	}
	l.mu.Unlock()
	if !found {
		return
	}
	ss.span.SetAttributes(
		attribute.Int("session.cards_seen", data.CardsSeen),
		attribute.Int("session.correct", data.Correct),
		attribute.Float64("session.retention_rate", data.RetentionRate),
		attribute.Int64("session.duration_ms", data.Duration.Milliseconds()),
		attribute.Bool("session.auto_completed", data.AutoCompleted),
	)
	ss.span.SetStatus(codes.Ok, "")
	ss.span.End()
}

// handleRecognitionTransition opens an attempt span on the transition
// into listening and closes it on the transition into finished.
func (l *OTelEventListener) handleRecognitionTransition(evt *events.Event) {
	data, ok := asPtr[events.RecognitionStateChangedData](evt.Data)
	if !ok || evt.AttemptID == "" {
		return
	}
	switch data.Next {
	case "listening":
		l.startSpan(evt.SessionID, attemptKey(evt.AttemptID), "studykit.recognition",
			trace.SpanKindInternal,
			attribute.String("recognition.attempt_id", evt.AttemptID),
		)
	case "finished":
		switch data.Cause {
		case "timeout", "error":
			l.failSpan(attemptKey(evt.AttemptID), data.Cause,
				attribute.String("recognition.outcome", data.Cause))
		default:
			l.endSpan(attemptKey(evt.AttemptID),
				attribute.String("recognition.outcome", data.Cause))
		}
	}
}

func (l *OTelEventListener) handleVoiceInput(evt *events.Event) {
	data, ok := asPtr[events.VoiceInputData](evt.Data)
	if !ok {
		return
	}
	l.mu.Lock()
	entry, found := l.inflight[attemptKey(evt.AttemptID)]
	l.mu.Unlock()
	if !found {
		return
	}
	entry.span.SetAttributes(
		attribute.Int("recognition.transcript_length", len(data.Transcript)),
		attribute.Float64("recognition.confidence", data.Confidence),
		attribute.String("recognition.language", data.Language),
	)
}

// failAttempt annotates a still-open attempt span with the failure kind.
// The finished transition usually closes the span before the error event
// arrives, in which case there is nothing left to annotate.
func (l *OTelEventListener) failAttempt(evt *events.Event) {
	data, ok := asPtr[events.RecognitionErrorData](evt.Data)
	if !ok || evt.AttemptID == "" {
		return
	}
	l.mu.Lock()
	entry, found := l.inflight[attemptKey(evt.AttemptID)]
	l.mu.Unlock()
	if !found {
		return
	}
	entry.span.SetAttributes(attribute.String("recognition.error_kind", data.Kind))
}

func attemptKey(attemptID string) string {
	return "attempt:" + attemptID
}

// sessionCtx returns the context for the session, so child spans parent
// correctly. Falls back to context.Background() for unknown sessions.
func (l *OTelEventListener) sessionCtx(sessionID string) context.Context {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ss, ok := l.sessions[sessionID]; ok {
		return ss.ctx
	}
	return context.Background()
}

// startSpan starts a span parented under the session root. If a
// completion was already buffered, the span is immediately ended.
func (l *OTelEventListener) startSpan(
	sessionID, key, name string, kind trace.SpanKind, attrs ...attribute.KeyValue,
) {
	parentCtx := l.sessionCtx(sessionID)
	ctx, span := l.tracer.Start(parentCtx, name,
		trace.WithSpanKind(kind),
		trace.WithAttributes(attrs...),
	)
	l.mu.Lock()
	pe, havePending := l.pendingEnds[key]
	if havePending {
		delete(l.pendingEnds, key)
	} else {
		l.inflight[key] = &spanEntry{span: span, ctx: ctx}
	}
	l.mu.Unlock()

	if havePending {
		span.SetAttributes(pe.attrs...)
		if pe.errMsg != "" {
			span.SetStatus(codes.Error, pe.errMsg)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// endSpan ends an inflight span. Completions for spans that have not
// started yet are buffered until startSpan sees them.
func (l *OTelEventListener) endSpan(key string, attrs ...attribute.KeyValue) {
	l.mu.Lock()
	entry, ok := l.inflight[key]
	if ok {
		delete(l.inflight, key)
	} else {
		l.pendingEnds[key] = &pendingEnd{attrs: attrs}
	}
	l.mu.Unlock()
	if !ok {
		return
	}
	entry.span.SetAttributes(attrs...)
	entry.span.SetStatus(codes.Ok, "")
	entry.span.End()
}

// failSpan ends an inflight span with an error status, buffering the
// failure when the span has not started yet.
func (l *OTelEventListener) failSpan(key, errMsg string, attrs ...attribute.KeyValue) {
	l.mu.Lock()
	entry, ok := l.inflight[key]
	if ok {
		delete(l.inflight, key)
	} else {
		l.pendingEnds[key] = &pendingEnd{errMsg: errMsg, attrs: attrs}
	}
	l.mu.Unlock()
	if !ok {
		return
	}
	entry.span.SetAttributes(attrs...)
	entry.span.SetStatus(codes.Error, errMsg)
	entry.span.End()
}

// asPtr extracts event data as a pointer, handling both value and
// pointer payloads.
func asPtr[T any](data any) (*T, bool) {
	if p, ok := data.(*T); ok {
		return p, true
	}
	if v, ok := data.(T); ok {
		return &v, true
	}
	return nil, false
}
