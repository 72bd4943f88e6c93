package prometheus

import (
	"github.com/membo-ai/studykit/events"
)

// MetricsListener records engine events as Prometheus metrics.
// It implements the events.Listener signature and should be registered
// with an EventBus using SubscribeAll.
type MetricsListener struct{}

// NewMetricsListener creates a new MetricsListener.
func NewMetricsListener() *MetricsListener {
	return &MetricsListener{}
}

// Handle processes an event and records relevant metrics.
func (l *MetricsListener) Handle(event *events.Event) {
	switch event.Type {
	case events.EventSessionStarted:
		l.handleSessionStarted(event)
	case events.EventSessionCompleted:
		l.handleSessionCompleted(event)
	case events.EventSessionResponse:
		l.handleSessionResponse(event)
	case events.EventRecognitionStateChanged:
		l.handleRecognitionStateChanged(event)
	case events.EventRecognitionError:
		l.handleRecognitionError(event)
	case events.EventAudioActivated:
		RecordAudioTransition("activated")
	case events.EventAudioDeactivated:
		RecordAudioTransition("deactivated")
	case events.EventAudioInterruption:
		l.handleAudioInterruption(event)
	case events.EventReminderScheduled:
		l.handleReminderScheduled(event)
	default:
		// Ignore events that don't have metrics
	}
}

func (l *MetricsListener) handleSessionStarted(event *events.Event) {
	if data, ok := event.Data.(events.SessionStartedData); ok {
		RecordSessionStart(data.Mode, data.Fallback)
	}
}

func (l *MetricsListener) handleSessionCompleted(event *events.Event) {
	if data, ok := event.Data.(*events.SessionCompletedData); ok {
		RecordSessionEnd(data.Mode, data.Duration.Seconds(), data.RetentionRate)
	}
}

func (l *MetricsListener) handleSessionResponse(event *events.Event) {
	if data, ok := event.Data.(*events.SessionResponseData); ok {
		RecordResponse(data.Correct)
		if data.VoiceInput != "" {
			RecordVoiceInput(data.LowConfidenceVoice)
		}
	}
}

func (l *MetricsListener) handleRecognitionStateChanged(event *events.Event) {
	data, ok := event.Data.(events.RecognitionStateChangedData)
	if !ok {
		return
	}
	// The transition into Finished carries the attempt outcome.
	if data.Next == "finished" {
		RecordRecognitionAttempt(data.Cause)
	}
}

func (l *MetricsListener) handleRecognitionError(event *events.Event) {
	if data, ok := event.Data.(events.RecognitionErrorData); ok {
		RecordRecognitionError(data.Kind)
	}
}

func (l *MetricsListener) handleAudioInterruption(event *events.Event) {
	data, ok := event.Data.(events.AudioInterruptionData)
	if !ok {
		return
	}
	switch {
	case data.Began:
		RecordAudioInterruption("began")
	case data.Resumed:
		RecordAudioInterruption("resumed")
	default:
		RecordAudioInterruption("ended")
	}
}

func (l *MetricsListener) handleReminderScheduled(event *events.Event) {
	if data, ok := event.Data.(events.ReminderScheduledData); ok {
		RecordReminderScheduled(data.Channel)
	}
}

// Listener returns an events.Listener function for EventBus registration.
func (l *MetricsListener) Listener() events.Listener {
	return l.Handle
}
