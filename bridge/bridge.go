// Package bridge exposes the engines to application frontends as a
// JSON command protocol: validated inbound commands dispatched to the
// study and voice engines, and the event bus streamed outbound over
// WebSocket.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/membo-ai/studykit/config"
	"github.com/membo-ai/studykit/errcode"
	"github.com/membo-ai/studykit/logger"
	"github.com/membo-ai/studykit/statstore"
	"github.com/membo-ai/studykit/study"
	"github.com/membo-ai/studykit/voice"
)

// Command is one inbound request. ID is echoed on the response so
// callers can match replies on a multiplexed connection.
type Command struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is the reply to a single Command.
type Response struct {
	ID     string          `json:"id"`
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorBody      `json:"error,omitempty"`
}

// ErrorBody carries the outward error taxonomy across the boundary.
type ErrorBody struct {
	Code    errcode.Code `json:"code"`
	Message string       `json:"message"`
}

// VoiceEngine is the recognition surface the bridge drives.
// *voice.Engine satisfies it.
type VoiceEngine interface {
	IsAvailable() bool
	State() voice.State
	StartRecognition(ctx context.Context) (string, error)
	StopRecognition()
	SetLanguage(lang string) error
	SetTimeout(d time.Duration) error
}

// Bridge dispatches validated commands to the engines.
type Bridge struct {
	study   *study.Engine
	voice   VoiceEngine
	store   statstore.Store
	cfg     config.Config
	schemas *schemaSet
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithVoice attaches the voice engine. Without it, voice commands
// report SERVICE_UNAVAILABLE.
func WithVoice(v VoiceEngine) Option {
	return func(b *Bridge) { b.voice = v }
}

// WithStore attaches a statistics store for the query commands.
func WithStore(s statstore.Store) Option {
	return func(b *Bridge) { b.store = s }
}

// WithConfig supplies mode presets used by startStudySession.
func WithConfig(cfg config.Config) Option {
	return func(b *Bridge) { b.cfg = cfg }
}

// New creates a Bridge over the study engine.
func New(studyEngine *study.Engine, opts ...Option) *Bridge {
	b := &Bridge{
		study:   studyEngine,
		cfg:     config.Default(),
		schemas: newSchemaSet(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Dispatch validates and executes one command. It never returns an
// error; failures are encoded in the Response.
func (b *Bridge) Dispatch(ctx context.Context, cmd Command) Response {
	result, err := b.dispatch(ctx, cmd)
	if err != nil {
		code := codeFor(err)
		logger.DebugContext(ctx, "command failed",
			"method", cmd.Method, "code", string(code), "error", err)
		return Response{ID: cmd.ID, Error: &ErrorBody{Code: code, Message: err.Error()}}
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return Response{ID: cmd.ID, Error: &ErrorBody{
			Code:    errcode.CodeInternal,
			Message: "encoding result: " + err.Error(),
		}}
	}
	return Response{ID: cmd.ID, OK: true, Result: raw}
}

func (b *Bridge) dispatch(ctx context.Context, cmd Command) (any, error) {
	if err := b.schemas.validate(cmd.Method, cmd.Params); err != nil {
		return nil, err
	}

	switch cmd.Method {
	case "startStudySession":
		return b.startStudySession(ctx, cmd.Params)
	case "submitCardResponse":
		return b.submitCardResponse(ctx, cmd.Params)
	case "endStudySession":
		return b.endStudySession(ctx)
	case "getSessionState":
		return b.getSessionState(), nil
	case "startVoiceRecognition":
		return b.startVoiceRecognition(ctx)
	case "stopVoiceRecognition":
		return b.stopVoiceRecognition()
	case "getRecognitionState":
		return b.getRecognitionState(), nil
	case "isVoiceAvailable":
		return b.isVoiceAvailable(), nil
	case "setRecognitionLanguage":
		return b.setRecognitionLanguage(cmd.Params)
	case "setRecognitionTimeout":
		return b.setRecognitionTimeout(cmd.Params)
	case "listStatistics":
		return b.listStatistics(ctx, cmd.Params)
	case "getStatistics":
		return b.getStatistics(ctx, cmd.Params)
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownMethod, cmd.Method)
	}
}

type startSessionParams struct {
	Mode string `json:"mode"`
}

type sessionStartedResult struct {
	SessionID string `json:"sessionId"`
	Mode      string `json:"mode"`
	Remaining int    `json:"remaining"`
}

func (b *Bridge) startStudySession(ctx context.Context, params json.RawMessage) (any, error) {
	var p startSessionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedParams, err)
	}

	mode := study.Mode(p.Mode)
	sessionID, err := b.study.StartWithConfig(ctx, mode, b.cfg.StudyConfig(mode))
	if err != nil {
		return nil, err
	}
	return sessionStartedResult{
		SessionID: sessionID,
		Mode:      string(b.study.Stats().Mode),
		Remaining: b.study.Remaining(),
	}, nil
}

type cardResponseParams struct {
	Confidence      int     `json:"confidence"`
	VoiceTranscript string  `json:"voiceTranscript"`
	VoiceConfidence float64 `json:"voiceConfidence"`
}

type cardResponseResult struct {
	Remaining     int  `json:"remaining"`
	SessionActive bool `json:"sessionActive"`
}

func (b *Bridge) submitCardResponse(ctx context.Context, params json.RawMessage) (any, error) {
	var p cardResponseParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedParams, err)
	}

	err := b.study.ProcessResponse(ctx, study.Response{
		Confidence:      p.Confidence,
		VoiceTranscript: p.VoiceTranscript,
		VoiceConfidence: p.VoiceConfidence,
	})
	if err != nil {
		return nil, err
	}
	return cardResponseResult{
		Remaining:     b.study.Remaining(),
		SessionActive: b.study.Active(),
	}, nil
}

func (b *Bridge) endStudySession(ctx context.Context) (any, error) {
	stats, err := b.study.End(ctx)
	if err != nil {
		return nil, err
	}
	return statisticsJSON(stats), nil
}

type sessionStateResult struct {
	Active    bool      `json:"active"`
	SessionID string    `json:"sessionId,omitempty"`
	Mode      string    `json:"mode,omitempty"`
	Remaining int       `json:"remaining"`
	Card      *cardJSON `json:"card,omitempty"`
}

type cardJSON struct {
	ID    string `json:"id"`
	Front string `json:"front"`
	Back  string `json:"back"`
}

func (b *Bridge) getSessionState() sessionStateResult {
	out := sessionStateResult{Active: b.study.Active()}
	if !out.Active {
		return out
	}
	out.SessionID = b.study.SessionID()
	out.Mode = string(b.study.Stats().Mode)
	out.Remaining = b.study.Remaining()
	if card, ok := b.study.CurrentCard(); ok {
		out.Card = &cardJSON{ID: card.ID, Front: card.Front, Back: card.Back}
	}
	return out
}

type recognitionStartedResult struct {
	AttemptID string `json:"attemptId"`
}

func (b *Bridge) startVoiceRecognition(ctx context.Context) (any, error) {
	if b.voice == nil {
		return nil, errVoiceNotConfigured
	}
	attemptID, err := b.voice.StartRecognition(ctx)
	if err != nil {
		return nil, err
	}
	return recognitionStartedResult{AttemptID: attemptID}, nil
}

func (b *Bridge) stopVoiceRecognition() (any, error) {
	if b.voice == nil {
		return nil, errVoiceNotConfigured
	}
	b.voice.StopRecognition()
	return struct{}{}, nil
}

type recognitionStateResult struct {
	State     string `json:"state"`
	Available bool   `json:"available"`
}

func (b *Bridge) getRecognitionState() recognitionStateResult {
	if b.voice == nil {
		return recognitionStateResult{State: voice.StateIdle.String()}
	}
	return recognitionStateResult{
		State:     b.voice.State().String(),
		Available: b.voice.IsAvailable(),
	}
}

func (b *Bridge) isVoiceAvailable() any {
	available := b.voice != nil && b.voice.IsAvailable()
	return struct {
		Available bool `json:"available"`
	}{Available: available}
}

func (b *Bridge) setRecognitionLanguage(params json.RawMessage) (any, error) {
	if b.voice == nil {
		return nil, errVoiceNotConfigured
	}
	var p struct {
		Language string `json:"language"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedParams, err)
	}
	if err := b.voice.SetLanguage(p.Language); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

func (b *Bridge) setRecognitionTimeout(params json.RawMessage) (any, error) {
	if b.voice == nil {
		return nil, errVoiceNotConfigured
	}
	var p struct {
		TimeoutMs int `json:"timeoutMs"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedParams, err)
	}
	if err := b.voice.SetTimeout(time.Duration(p.TimeoutMs) * time.Millisecond); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

type listStatisticsParams struct {
	Mode   string `json:"mode"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
}

func (b *Bridge) listStatistics(ctx context.Context, params json.RawMessage) (any, error) {
	if b.store == nil {
		return nil, errStoreNotConfigured
	}
	var p listStatisticsParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", errMalformedParams, err)
		}
	}

	records, err := b.store.List(ctx, statstore.ListOptions{
		Mode:   study.Mode(p.Mode),
		Offset: p.Offset,
		Limit:  p.Limit,
	})
	if err != nil {
		return nil, err
	}

	out := make([]statisticsBody, len(records))
	for i, rec := range records {
		out[i] = statisticsJSON(rec)
	}
	return struct {
		Sessions []statisticsBody `json:"sessions"`
	}{Sessions: out}, nil
}

func (b *Bridge) getStatistics(ctx context.Context, params json.RawMessage) (any, error) {
	if b.store == nil {
		return nil, errStoreNotConfigured
	}
	var p struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedParams, err)
	}

	stats, err := b.store.Load(ctx, p.SessionID)
	if err != nil {
		return nil, err
	}
	return statisticsJSON(stats), nil
}

// statisticsBody is the outward shape of a frozen statistics record.
type statisticsBody struct {
	SessionID           string  `json:"sessionId"`
	Mode                string  `json:"mode"`
	CardsSeen           int     `json:"cardsSeen"`
	Correct             int     `json:"correct"`
	AverageConfidence   float64 `json:"averageConfidence"`
	RetentionRate       float64 `json:"retentionRate"`
	VoiceInputsAccepted int     `json:"voiceInputsAccepted"`
	LowConfidenceVoice  int     `json:"lowConfidenceVoice"`
	StartedAt           string  `json:"startedAt"`
	DurationMs          int64   `json:"durationMs"`
	AutoCompleted       bool    `json:"autoCompleted"`
}

func statisticsJSON(stats study.Statistics) statisticsBody {
	return statisticsBody{
		SessionID:           stats.SessionID,
		Mode:                string(stats.Mode),
		CardsSeen:           stats.CardsSeen,
		Correct:             stats.Correct,
		AverageConfidence:   stats.AverageConfidence,
		RetentionRate:       stats.RetentionRate(),
		VoiceInputsAccepted: stats.VoiceInputsAccepted,
		LowConfidenceVoice:  stats.LowConfidenceVoice,
		StartedAt:           stats.StartedAt.UTC().Format(time.RFC3339),
		DurationMs:          stats.Duration.Milliseconds(),
		AutoCompleted:       stats.AutoCompleted,
	}
}
