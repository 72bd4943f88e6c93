package events

import "time"

// Emitter provides helpers for publishing engine events with shared metadata.
type Emitter struct {
	bus       *EventBus
	sessionID string
	attemptID string
}

// NewEmitter creates a new event emitter.
func NewEmitter(bus *EventBus, sessionID, attemptID string) *Emitter {
	return &Emitter{
		bus:       bus,
		sessionID: sessionID,
		attemptID: attemptID,
	}
}

// WithAttempt returns a copy of the emitter bound to a recognition attempt ID.
func (e *Emitter) WithAttempt(attemptID string) *Emitter {
	if e == nil {
		return nil
	}
	return &Emitter{bus: e.bus, sessionID: e.sessionID, attemptID: attemptID}
}

// emit publishes an event with shared context fields.
func (e *Emitter) emit(eventType EventType, data EventData) {
	if e == nil || e.bus == nil {
		return
	}

	e.bus.Publish(&Event{
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: e.sessionID,
		AttemptID: e.attemptID,
		Data:      data,
	})
}

// emitSync publishes an event synchronously, preserving caller ordering.
func (e *Emitter) emitSync(eventType EventType, data EventData) {
	if e == nil || e.bus == nil {
		return
	}

	e.bus.PublishSync(&Event{
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: e.sessionID,
		AttemptID: e.attemptID,
		Data:      data,
	})
}

// SessionStarted emits the session.started event.
func (e *Emitter) SessionStarted(mode, requestedMode string, cardCount int, fallback bool) {
	e.emit(EventSessionStarted, SessionStartedData{
		Mode:          mode,
		RequestedMode: requestedMode,
		CardCount:     cardCount,
		Fallback:      fallback,
	})
}

// SessionResponse emits the session.response event.
func (e *Emitter) SessionResponse(data *SessionResponseData) {
	if data == nil {
		return
	}
	e.emit(EventSessionResponse, data)
}

// SessionCompleted emits the session.completed event.
func (e *Emitter) SessionCompleted(data *SessionCompletedData) {
	if data == nil {
		return
	}
	e.emit(EventSessionCompleted, data)
}

// RecognitionStateChanged emits the recognition.state_changed event.
// Delivery is synchronous so observers see before/after pairs in order.
func (e *Emitter) RecognitionStateChanged(previous, next, cause string) {
	e.emitSync(EventRecognitionStateChanged, RecognitionStateChangedData{
		Previous: previous,
		Next:     next,
		Cause:    cause,
	})
}

// VoiceInput emits the recognition.voice_input event.
func (e *Emitter) VoiceInput(transcript string, confidence float64, language string) {
	e.emit(EventVoiceInput, VoiceInputData{
		Transcript: transcript,
		Confidence: confidence,
		Language:   language,
	})
}

// RecognitionError emits the recognition.error event.
func (e *Emitter) RecognitionError(kind, message string) {
	e.emit(EventRecognitionError, RecognitionErrorData{
		Kind:    kind,
		Message: message,
	})
}

// AudioActivated emits the audio.activated event.
func (e *Emitter) AudioActivated(category, mode string) {
	e.emit(EventAudioActivated, AudioStateData{Category: category, Mode: mode})
}

// AudioDeactivated emits the audio.deactivated event.
func (e *Emitter) AudioDeactivated(category, mode string) {
	e.emit(EventAudioDeactivated, AudioStateData{Category: category, Mode: mode})
}

// AudioInterruption emits the audio.interruption event.
func (e *Emitter) AudioInterruption(began, shouldResume, resumed bool) {
	e.emit(EventAudioInterruption, AudioInterruptionData{
		Began:        began,
		ShouldResume: shouldResume,
		Resumed:      resumed,
	})
}

// AudioRouteChanged emits the audio.route_changed event.
func (e *Emitter) AudioRouteChanged(reason, newRoute string) {
	e.emit(EventAudioRouteChanged, AudioRouteChangedData{
		Reason:   reason,
		NewRoute: newRoute,
	})
}

// PermissionUpdated emits the permission.updated event.
func (e *Emitter) PermissionUpdated(kind string, granted bool) {
	e.emit(EventPermissionUpdated, PermissionUpdatedData{
		Kind:    kind,
		Granted: granted,
	})
}

// StatisticsSaved emits the statistics.saved event.
func (e *Emitter) StatisticsSaved(store string) {
	e.emit(EventStatisticsSaved, StatisticsSavedData{Store: store})
}

// ReminderScheduled emits the reminder.scheduled event.
func (e *Emitter) ReminderScheduled(at time.Time, channel string) {
	e.emit(EventReminderScheduled, ReminderScheduledData{At: at, Channel: channel})
}
