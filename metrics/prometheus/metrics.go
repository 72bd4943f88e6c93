// Package prometheus exposes study, recognition and audio metrics.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "studykit"

var (
	// sessionsActive is a gauge of currently running study sessions.
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active study sessions",
		},
	)

	// sessionsTotal is a counter of started sessions.
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of started study sessions",
		},
		[]string{"mode", "fallback"}, // fallback: true when voice fell back to buttons
	)

	// sessionDuration is a histogram of completed session length in seconds.
	sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Histogram of completed session duration in seconds",
			Buckets:   []float64{30, 60, 120, 300, 600, 900, 1800, 2700, 3600},
		},
		[]string{"mode"},
	)

	// sessionRetention is a histogram of per-session retention rates.
	sessionRetention = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_retention_rate",
			Help:      "Histogram of per-session retention rates",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
		[]string{"mode"},
	)

	// responsesTotal is a counter of graded card responses.
	responsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Total number of graded card responses",
		},
		[]string{"result"}, // result: correct, incorrect
	)

	// voiceInputsTotal is a counter of voice answers by acceptance.
	voiceInputsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_inputs_total",
			Help:      "Total number of voice answers",
		},
		[]string{"quality"}, // quality: accepted, low_confidence
	)

	// recognitionAttemptsTotal is a counter of recognition attempts.
	recognitionAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_attempts_total",
			Help:      "Total number of voice recognition attempts",
		},
		[]string{"outcome"}, // outcome: result, timeout, cancelled, error
	)

	// recognitionErrorsTotal is a counter of recognition failures by kind.
	recognitionErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_errors_total",
			Help:      "Total number of recognition failures",
		},
		[]string{"kind"}, // kind: timeout, no_match, no_permission, network, unknown
	)

	// audioActivationsTotal is a counter of audio session transitions.
	audioActivationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_activations_total",
			Help:      "Total number of audio session activations and deactivations",
		},
		[]string{"action"}, // action: activated, deactivated
	)

	// audioInterruptionsTotal is a counter of audio interruptions.
	audioInterruptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_interruptions_total",
			Help:      "Total number of audio session interruptions",
		},
		[]string{"phase"}, // phase: began, ended, resumed
	)

	// remindersScheduledTotal is a counter of scheduled study reminders.
	remindersScheduledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_scheduled_total",
			Help:      "Total number of scheduled study reminders",
		},
		[]string{"channel"},
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		sessionsActive,
		sessionsTotal,
		sessionDuration,
		sessionRetention,
		responsesTotal,
		voiceInputsTotal,
		recognitionAttemptsTotal,
		recognitionErrorsTotal,
		audioActivationsTotal,
		audioInterruptionsTotal,
		remindersScheduledTotal,
	}
)

// RecordSessionStart records a session start.
func RecordSessionStart(mode string, fallback bool) {
	sessionsActive.Inc()
	label := "false"
	if fallback {
		label = "true"
	}
	sessionsTotal.WithLabelValues(mode, label).Inc()
}

// RecordSessionEnd records a session completion.
func RecordSessionEnd(mode string, durationSeconds, retentionRate float64) {
	sessionsActive.Dec()
	sessionDuration.WithLabelValues(mode).Observe(durationSeconds)
	sessionRetention.WithLabelValues(mode).Observe(retentionRate)
}

// RecordResponse records a graded card response.
func RecordResponse(correct bool) {
	result := "incorrect"
	if correct {
		result = "correct"
	}
	responsesTotal.WithLabelValues(result).Inc()
}

// RecordVoiceInput records a voice answer.
func RecordVoiceInput(lowConfidence bool) {
	quality := "accepted"
	if lowConfidence {
		quality = "low_confidence"
	}
	voiceInputsTotal.WithLabelValues(quality).Inc()
}

// RecordRecognitionAttempt records the outcome of a recognition attempt.
func RecordRecognitionAttempt(outcome string) {
	recognitionAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordRecognitionError records a recognition failure.
func RecordRecognitionError(kind string) {
	recognitionErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordAudioTransition records an audio session activation or deactivation.
func RecordAudioTransition(action string) {
	audioActivationsTotal.WithLabelValues(action).Inc()
}

// RecordAudioInterruption records an interruption phase.
func RecordAudioInterruption(phase string) {
	audioInterruptionsTotal.WithLabelValues(phase).Inc()
}

// RecordReminderScheduled records a scheduled reminder.
func RecordReminderScheduled(channel string) {
	remindersScheduledTotal.WithLabelValues(channel).Inc()
}
