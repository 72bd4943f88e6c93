// Package stt abstracts speech-to-text recognizers behind a single
// interface so the voice engine can use any provider interchangeably.
package stt

import (
	"context"
)

const (
	// Default audio settings.
	DefaultSampleRate = 16000
	DefaultChannels   = 1
	DefaultBitDepth   = 16

	// Common audio formats.
	FormatPCM = "pcm"
	FormatWAV = "wav"
	FormatMP3 = "mp3"
)

// Result is one finished transcription. Confidence is the recognizer's
// own certainty in [0,1]; providers that report none use 1.
type Result struct {
	Transcript string
	Confidence float64
}

// Recognizer captures and transcribes one utterance at a time.
// This interface abstracts different STT providers (OpenAI Whisper,
// on-device recognizers, etc.).
type Recognizer interface {
	// Name returns the provider identifier (for logging/debugging).
	Name() string

	// Available reports whether recognizer hardware/service is usable.
	Available() bool

	// Recognize captures one utterance and transcribes it. It blocks
	// until a terminal speech segment, an error, or ctx cancellation.
	Recognize(ctx context.Context, config Config) (Result, error)
}

// Transcriber turns already-captured audio into text. Recognizers that
// separate capture from transcription implement both interfaces; the
// voice engine drives them as two phases so it can report listening and
// processing separately.
type Transcriber interface {
	Name() string
	Available() bool
	Transcribe(ctx context.Context, audio []byte, config Config) (Result, error)
}

// CaptureSource is the platform boundary that records one utterance of
// raw audio. Implementations return when the speaker finishes or the
// context is canceled.
type CaptureSource interface {
	Record(ctx context.Context) ([]byte, error)
}

// CaptureFunc adapts a function to the CaptureSource interface.
type CaptureFunc func(ctx context.Context) ([]byte, error)

// Record implements CaptureSource.
func (f CaptureFunc) Record(ctx context.Context) ([]byte, error) {
	return f(ctx)
}

// Config configures one recognition attempt.
type Config struct {
	// Format is the captured audio format ("pcm", "wav", "mp3").
	// Default: "pcm"
	Format string

	// SampleRate is the audio sample rate in Hz.
	// Default: 16000
	SampleRate int

	// Channels is the number of audio channels (1=mono, 2=stereo).
	// Default: 1
	Channels int

	// BitDepth is the bits per sample for PCM audio.
	// Default: 16
	BitDepth int

	// Language is the expected transcription language (e.g., "en", "es").
	Language string

	// Model is the STT model to use (provider-specific).
	Model string

	// Prompt guides transcription toward domain vocabulary
	// (provider-specific). The study engine passes the card front here.
	Prompt string
}

// DefaultConfig returns sensible defaults for recognition.
func DefaultConfig() Config {
	return Config{
		Format:     FormatPCM,
		SampleRate: DefaultSampleRate,
		Channels:   DefaultChannels,
		BitDepth:   DefaultBitDepth,
		Language:   "en",
	}
}
