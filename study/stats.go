package study

import "time"

// Statistics accumulates over a session and freezes at End.
type Statistics struct {
	SessionID           string
	Mode                Mode
	CardsSeen           int
	Correct             int
	AverageConfidence   float64
	VoiceInputsAccepted int
	LowConfidenceVoice  int
	StartedAt           time.Time
	Duration            time.Duration
	AutoCompleted       bool
}

// RetentionRate is the share of seen cards recalled correctly.
func (s Statistics) RetentionRate() float64 {
	if s.CardsSeen == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.CardsSeen)
}

// record folds one graded response into the running aggregates.
func (s *Statistics) record(confidence int, correct bool) {
	s.AverageConfidence = (s.AverageConfidence*float64(s.CardsSeen) + float64(confidence)) /
		float64(s.CardsSeen+1)
	s.CardsSeen++
	if correct {
		s.Correct++
	}
}
