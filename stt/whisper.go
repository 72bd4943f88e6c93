package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/membo-ai/studykit/logger"
)

const (
	whisperBaseURL            = "https://api.openai.com/v1"
	whisperTranscribeEndpoint = "/audio/transcriptions"

	// ModelWhisper1 is the OpenAI Whisper model for transcription.
	ModelWhisper1 = "whisper-1"

	// Default timeout for transcription requests.
	defaultWhisperTimeout = 60 * time.Second

	// HTTP status code threshold for server errors.
	whisperServerErrorThreshold = 500
)

// WhisperRecognizer implements Recognizer using a platform CaptureSource
// for audio and OpenAI's Whisper API for transcription.
type WhisperRecognizer struct {
	apiKey  string
	baseURL string
	client  *http.Client
	model   string
	source  CaptureSource
}

// WhisperOption configures the Whisper recognizer.
type WhisperOption func(*WhisperRecognizer)

// WithWhisperBaseURL sets a custom base URL (for testing or proxies).
func WithWhisperBaseURL(url string) WhisperOption {
	return func(r *WhisperRecognizer) {
		r.baseURL = url
	}
}

// WithWhisperClient sets a custom HTTP client.
func WithWhisperClient(client *http.Client) WhisperOption {
	return func(r *WhisperRecognizer) {
		r.client = client
	}
}

// WithWhisperModel sets the STT model to use.
func WithWhisperModel(model string) WhisperOption {
	return func(r *WhisperRecognizer) {
		r.model = model
	}
}

// NewWhisper creates a Whisper-backed recognizer. Requests go through an
// OTel-instrumented transport so transcription calls show up as spans.
func NewWhisper(apiKey string, source CaptureSource, opts ...WhisperOption) *WhisperRecognizer {
	r := &WhisperRecognizer{
		apiKey:  apiKey,
		baseURL: whisperBaseURL,
		client: &http.Client{
			Timeout:   defaultWhisperTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		model:  ModelWhisper1,
		source: source,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the provider identifier.
func (r *WhisperRecognizer) Name() string {
	return "openai-whisper"
}

// Available reports whether the recognizer can be used: it needs both a
// capture source and an API key.
func (r *WhisperRecognizer) Available() bool {
	return r.source != nil && r.apiKey != ""
}

// Recognize captures one utterance from the source and transcribes it.
//
//nolint:gocritic // hugeParam: Config passed by value to satisfy Recognizer interface
func (r *WhisperRecognizer) Recognize(ctx context.Context, config Config) (Result, error) {
	if r.source == nil {
		return Result{}, NewTranscriptionError(r.Name(), "", "no capture source", nil, false)
	}

	audio, err := r.source.Record(ctx)
	if err != nil {
		return Result{}, NewTranscriptionError(r.Name(), "", "audio capture failed", err, false)
	}
	if len(audio) == 0 {
		return Result{}, ErrEmptyAudio
	}

	return r.Transcribe(ctx, audio, config)
}

// Transcribe sends already-captured audio to the Whisper API.
//
//nolint:gocritic // hugeParam: see Recognize
func (r *WhisperRecognizer) Transcribe(ctx context.Context, audio []byte, config Config) (Result, error) {
	if len(audio) == 0 {
		return Result{}, ErrEmptyAudio
	}
	// Apply defaults
	format := config.Format
	if format == "" {
		format = FormatPCM
	}
	sampleRate := config.SampleRate
	if sampleRate == 0 {
		sampleRate = DefaultSampleRate
	}
	channels := config.Channels
	if channels == 0 {
		channels = DefaultChannels
	}
	bitDepth := config.BitDepth
	if bitDepth == 0 {
		bitDepth = DefaultBitDepth
	}

	// PCM needs to be wrapped as WAV for Whisper
	audioData := audio
	filename := "audio." + format
	if format == FormatPCM {
		audioData = WrapPCMAsWAV(audio, sampleRate, channels, bitDepth)
		filename = "audio.wav"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audioData); err != nil {
		return Result{}, fmt.Errorf("failed to write audio data: %w", err)
	}

	model := config.Model
	if model == "" {
		model = r.model
	}
	if err := writer.WriteField("model", model); err != nil {
		return Result{}, fmt.Errorf("failed to write model field: %w", err)
	}

	// verbose_json carries per-segment log probabilities, which is the
	// only confidence signal Whisper reports.
	if err := writer.WriteField("response_format", "verbose_json"); err != nil {
		return Result{}, fmt.Errorf("failed to write response_format field: %w", err)
	}

	if config.Language != "" {
		if err := writer.WriteField("language", config.Language); err != nil {
			return Result{}, fmt.Errorf("failed to write language field: %w", err)
		}
	}

	if config.Prompt != "" {
		if err := writer.WriteField("prompt", config.Prompt); err != nil {
			return Result{}, fmt.Errorf("failed to write prompt field: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return Result{}, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		r.baseURL+whisperTranscribeEndpoint,
		&buf,
	)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	logger.ProviderRequest(r.Name(), http.MethodPost, req.URL.String(), nil)

	resp, err := r.client.Do(req)
	if err != nil {
		return Result{}, NewTranscriptionError(r.Name(), "", "request failed", err, true)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Result{}, r.handleError(resp.StatusCode, body)
	}

	var result struct {
		Text     string `json:"text"`
		Segments []struct {
			AvgLogprob float64 `json:"avg_logprob"`
		} `json:"segments"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return Result{}, fmt.Errorf("failed to parse response: %w", err)
	}

	return Result{
		Transcript: result.Text,
		Confidence: confidenceFromSegments(result.Segments),
	}, nil
}

// confidenceFromSegments converts Whisper's average log probabilities to a
// [0,1] confidence. With no segments the provider reported nothing and we
// default to full confidence.
func confidenceFromSegments(segments []struct {
	AvgLogprob float64 `json:"avg_logprob"`
}) float64 {
	if len(segments) == 0 {
		return 1
	}
	sum := 0.0
	for _, s := range segments {
		sum += s.AvgLogprob
	}
	c := math.Exp(sum / float64(len(segments)))
	if c > 1 {
		c = 1
	}
	return c
}

// handleError processes an error response from the Whisper API.
func (r *WhisperRecognizer) handleError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &errResp); err != nil {
		return NewTranscriptionError(
			r.Name(),
			fmt.Sprintf("%d", statusCode),
			string(body),
			nil,
			statusCode >= whisperServerErrorThreshold,
		)
	}

	retryable := statusCode == http.StatusTooManyRequests ||
		statusCode >= whisperServerErrorThreshold

	var cause error
	switch statusCode {
	case http.StatusTooManyRequests:
		cause = ErrRateLimited
	case http.StatusUnauthorized:
		cause = fmt.Errorf("invalid API key")
	case http.StatusBadRequest:
		if errResp.Error.Code == "audio_too_short" {
			cause = ErrAudioTooShort
		}
	}

	return NewTranscriptionError(
		r.Name(),
		errResp.Error.Code,
		errResp.Error.Message,
		cause,
		retryable,
	)
}
