package events

import (
	"time"
)

// EventType identifies the type of event emitted by the engines.
type EventType string

const (
	// EventSessionStarted marks a study session start.
	EventSessionStarted EventType = "session.started"
	// EventSessionResponse marks a processed card response.
	EventSessionResponse EventType = "session.response"
	// EventSessionCompleted marks session completion with frozen statistics.
	EventSessionCompleted EventType = "session.completed"

	// EventRecognitionStateChanged marks a voice engine state transition.
	EventRecognitionStateChanged EventType = "recognition.state_changed"
	// EventVoiceInput marks a delivered transcript with recognizer confidence.
	EventVoiceInput EventType = "recognition.voice_input"
	// EventRecognitionError marks a failed recognition attempt.
	EventRecognitionError EventType = "recognition.error"

	// EventAudioActivated marks audio session activation.
	EventAudioActivated EventType = "audio.activated"
	// EventAudioDeactivated marks audio session deactivation.
	EventAudioDeactivated EventType = "audio.deactivated"
	// EventAudioInterruption marks an audio interruption begin or end.
	EventAudioInterruption EventType = "audio.interruption"
	// EventAudioRouteChanged marks an audio route change.
	EventAudioRouteChanged EventType = "audio.route_changed"

	// EventPermissionUpdated marks a permission cache update after a request.
	EventPermissionUpdated EventType = "permission.updated"

	// EventStatisticsSaved marks session statistics persisted to the sink.
	EventStatisticsSaved EventType = "statistics.saved"

	// EventReminderScheduled marks a study reminder handed to the scheduler.
	EventReminderScheduled EventType = "reminder.scheduled"
)

// EventData is a marker interface for event payloads.
type EventData interface {
	eventData()
}

// Event represents an engine event delivered to listeners.
type Event struct {
	Type      EventType
	Timestamp time.Time
	SessionID string
	AttemptID string
	Data      EventData
}

// baseEventData provides a shared marker implementation for all event payloads.
type baseEventData struct{}

func (baseEventData) eventData() {}

// SessionStartedData contains data for session start events.
type SessionStartedData struct {
	baseEventData
	Mode          string
	RequestedMode string // differs from Mode when voice fell back to standard
	CardCount     int
	Fallback      bool
}

// SessionResponseData contains data for processed card responses.
type SessionResponseData struct {
	baseEventData
	CardID             string
	Confidence         int
	Correct            bool
	VoiceInput         string
	VoiceConfidence    float64
	LowConfidenceVoice bool
	Remaining          int
}

// SessionCompletedData contains the frozen statistics of a completed session.
type SessionCompletedData struct {
	baseEventData
	Mode                 string
	CardsSeen            int
	Correct              int
	AverageConfidence    float64
	VoiceInputsAccepted  int
	LowConfidenceVoice   int
	RetentionRate        float64
	Duration             time.Duration
	AutoCompleted        bool
}

// RecognitionStateChangedData carries the before/after pair of a transition.
type RecognitionStateChangedData struct {
	baseEventData
	Previous string
	Next     string
	Cause    string
}

// VoiceInputData contains a delivered transcript.
type VoiceInputData struct {
	baseEventData
	Transcript string
	Confidence float64
	Language   string
}

// RecognitionErrorData contains data for recognition failures.
type RecognitionErrorData struct {
	baseEventData
	Kind    string
	Message string
}

// AudioStateData contains data for activation/deactivation events.
type AudioStateData struct {
	baseEventData
	Category string
	Mode     string
}

// AudioInterruptionData contains data for interruption events.
type AudioInterruptionData struct {
	baseEventData
	Began        bool
	ShouldResume bool
	Resumed      bool
}

// AudioRouteChangedData contains data for route change events.
type AudioRouteChangedData struct {
	baseEventData
	Reason   string
	NewRoute string
}

// PermissionUpdatedData contains data for permission cache updates.
type PermissionUpdatedData struct {
	baseEventData
	Kind    string // "microphone" or "notifications"
	Granted bool
}

// StatisticsSavedData contains data for persisted statistics.
type StatisticsSavedData struct {
	baseEventData
	Store string
}

// ReminderScheduledData contains data for scheduled study reminders.
type ReminderScheduledData struct {
	baseEventData
	At      time.Time
	Channel string
}
