package voice

// State is a phase of the recognition lifecycle. Attempts move
// Idle -> Listening -> Processing -> Finished and settle back on Idle.
// Stopping or failing from any live phase goes straight to Finished.
type State int

const (
	// StateIdle means no recognition attempt is in flight.
	StateIdle State = iota

	// StateListening means audio capture is running.
	StateListening

	// StateProcessing means captured audio is being transcribed.
	StateProcessing

	// StateFinished is the terminal phase of an attempt, observed only
	// inside transition events; the engine resets to Idle immediately.
	StateFinished
)

// String returns the lowercase name used in events and logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}
