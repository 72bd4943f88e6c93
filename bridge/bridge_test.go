package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/membo-ai/studykit/errcode"
	"github.com/membo-ai/studykit/statstore"
	"github.com/membo-ai/studykit/study"
	"github.com/membo-ai/studykit/voice"
)

// fixedDeck serves a static card queue and counts review recordings.
type fixedDeck struct {
	cards   []study.Card
	reviews int
}

func (d *fixedDeck) OrderedCards(_ context.Context, _ study.Mode, limit int) ([]study.Card, error) {
	if limit > 0 && limit < len(d.cards) {
		return d.cards[:limit], nil
	}
	return d.cards, nil
}

func (d *fixedDeck) RecordReview(_ context.Context, _ string, _ int, now time.Time) (time.Time, error) {
	d.reviews++
	return now.Add(24 * time.Hour), nil
}

func newDeck(n int) *fixedDeck {
	d := &fixedDeck{}
	for i := 0; i < n; i++ {
		d.cards = append(d.cards, study.Card{
			ID:    "card-" + string(rune('a'+i)),
			Front: "front",
			Back:  "back",
		})
	}
	return d
}

// stubVoice records configuration calls and returns canned values.
type stubVoice struct {
	available bool
	state     voice.State
	startErr  error
	attemptID string
	language  string
	timeout   time.Duration
	stops     int
}

func (v *stubVoice) IsAvailable() bool  { return v.available }
func (v *stubVoice) State() voice.State { return v.state }

func (v *stubVoice) StartRecognition(context.Context) (string, error) {
	if v.startErr != nil {
		return "", v.startErr
	}
	return v.attemptID, nil
}

func (v *stubVoice) StopRecognition() { v.stops++ }

func (v *stubVoice) SetLanguage(lang string) error {
	v.language = lang
	return nil
}

func (v *stubVoice) SetTimeout(d time.Duration) error {
	v.timeout = d
	return nil
}

func dispatch(t *testing.T, b *Bridge, method string, params string) Response {
	t.Helper()
	var raw json.RawMessage
	if params != "" {
		raw = json.RawMessage(params)
	}
	return b.Dispatch(context.Background(), Command{ID: "req-1", Method: method, Params: raw})
}

func mustResult(t *testing.T, resp Response, out any) {
	t.Helper()
	if !resp.OK {
		t.Fatalf("expected success, got error %+v", resp.Error)
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
}

func wantCode(t *testing.T, resp Response, code errcode.Code) {
	t.Helper()
	if resp.OK {
		t.Fatalf("expected error %s, got success %s", code, string(resp.Result))
	}
	if resp.Error.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, resp.Error.Code, resp.Error.Message)
	}
}

func TestDispatchSessionLifecycle(t *testing.T) {
	deck := newDeck(12)
	b := New(study.NewEngine(deck))

	var started sessionStartedResult
	mustResult(t, dispatch(t, b, "startStudySession", `{"mode":"standard"}`), &started)
	if started.SessionID == "" || started.Mode != "standard" {
		t.Fatalf("unexpected start result %+v", started)
	}
	if started.Remaining != 12 {
		t.Errorf("expected 12 remaining, got %d", started.Remaining)
	}

	var state sessionStateResult
	mustResult(t, dispatch(t, b, "getSessionState", ""), &state)
	if !state.Active || state.Card == nil || state.Card.Front != "front" {
		t.Fatalf("unexpected state %+v", state)
	}

	var answered cardResponseResult
	mustResult(t, dispatch(t, b, "submitCardResponse", `{"confidence":4}`), &answered)
	if answered.Remaining != 11 || !answered.SessionActive {
		t.Fatalf("unexpected response result %+v", answered)
	}

	var stats statisticsBody
	mustResult(t, dispatch(t, b, "endStudySession", ""), &stats)
	if stats.CardsSeen != 1 || stats.Correct != 1 {
		t.Fatalf("unexpected statistics %+v", stats)
	}
	if stats.SessionID != started.SessionID {
		t.Errorf("statistics for wrong session: %s", stats.SessionID)
	}
}

func TestDispatchValidation(t *testing.T) {
	b := New(study.NewEngine(newDeck(12)))

	tests := []struct {
		name   string
		method string
		params string
		want   errcode.Code
	}{
		{"unknown method", "fetchTheMoon", "", errcode.CodeBadRequest},
		{"bad mode", "startStudySession", `{"mode":"cramming"}`, errcode.CodeValidation},
		{"missing mode", "startStudySession", `{}`, errcode.CodeValidation},
		{"confidence too high", "submitCardResponse", `{"confidence":9}`, errcode.CodeValidation},
		{"confidence wrong type", "submitCardResponse", `{"confidence":"three"}`, errcode.CodeValidation},
		{"unknown field", "endStudySession", `{"force":true}`, errcode.CodeValidation},
		{"timeout too small", "setRecognitionTimeout", `{"timeoutMs":500}`, errcode.CodeValidation},
		{"not json", "startStudySession", `{"mode"`, errcode.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantCode(t, dispatch(t, b, tt.method, tt.params), tt.want)
		})
	}
}

func TestDispatchEngineErrors(t *testing.T) {
	b := New(study.NewEngine(newDeck(12)))

	wantCode(t, dispatch(t, b, "submitCardResponse", `{"confidence":3}`), errcode.CodeBadRequest)

	// Ending an inactive engine is a no-op, mirroring the engine contract.
	var stats statisticsBody
	mustResult(t, dispatch(t, b, "endStudySession", ""), &stats)
	if stats.CardsSeen != 0 {
		t.Fatalf("expected empty statistics, got %+v", stats)
	}

	mustResult(t, dispatch(t, b, "startStudySession", `{"mode":"standard"}`), &sessionStartedResult{})
	wantCode(t, dispatch(t, b, "startStudySession", `{"mode":"standard"}`), errcode.CodeBadRequest)
}

func TestDispatchVoiceCommands(t *testing.T) {
	v := &stubVoice{available: true, attemptID: "att-1"}
	b := New(study.NewEngine(newDeck(12)), WithVoice(v))

	var started recognitionStartedResult
	mustResult(t, dispatch(t, b, "startVoiceRecognition", ""), &started)
	if started.AttemptID != "att-1" {
		t.Fatalf("unexpected attempt id %q", started.AttemptID)
	}

	mustResult(t, dispatch(t, b, "stopVoiceRecognition", ""), &struct{}{})
	if v.stops != 1 {
		t.Errorf("expected 1 stop, got %d", v.stops)
	}

	mustResult(t, dispatch(t, b, "setRecognitionLanguage", `{"language":"fr-FR"}`), &struct{}{})
	if v.language != "fr-FR" {
		t.Errorf("expected language fr-FR, got %q", v.language)
	}

	mustResult(t, dispatch(t, b, "setRecognitionTimeout", `{"timeoutMs":5000}`), &struct{}{})
	if v.timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", v.timeout)
	}

	var state recognitionStateResult
	mustResult(t, dispatch(t, b, "getRecognitionState", ""), &state)
	if state.State != "idle" || !state.Available {
		t.Fatalf("unexpected recognition state %+v", state)
	}

	var avail struct {
		Available bool `json:"available"`
	}
	mustResult(t, dispatch(t, b, "isVoiceAvailable", ""), &avail)
	if !avail.Available {
		t.Error("expected voice available")
	}
}

func TestDispatchVoiceErrors(t *testing.T) {
	t.Run("no engine configured", func(t *testing.T) {
		b := New(study.NewEngine(newDeck(12)))
		wantCode(t, dispatch(t, b, "startVoiceRecognition", ""), errcode.CodeUnavailable)
	})

	t.Run("permission denied", func(t *testing.T) {
		v := &stubVoice{startErr: voice.ErrNoPermission}
		b := New(study.NewEngine(newDeck(12)), WithVoice(v))
		wantCode(t, dispatch(t, b, "startVoiceRecognition", ""), errcode.CodeForbidden)
	})

	t.Run("already in progress", func(t *testing.T) {
		v := &stubVoice{startErr: voice.ErrAlreadyInProgress}
		b := New(study.NewEngine(newDeck(12)), WithVoice(v))
		wantCode(t, dispatch(t, b, "startVoiceRecognition", ""), errcode.CodeBadRequest)
	})
}

func TestDispatchStatisticsCommands(t *testing.T) {
	store := statstore.NewMemoryStore()
	saved := study.Statistics{
		SessionID: "sess-1",
		Mode:      study.ModeVoice,
		CardsSeen: 10,
		Correct:   8,
		StartedAt: time.Now().Add(-time.Hour),
		Duration:  9 * time.Minute,
	}
	if err := store.Save(context.Background(), saved); err != nil {
		t.Fatal(err)
	}

	b := New(study.NewEngine(newDeck(12)), WithStore(store))

	var stats statisticsBody
	mustResult(t, dispatch(t, b, "getStatistics", `{"sessionId":"sess-1"}`), &stats)
	if stats.Correct != 8 || stats.RetentionRate != 0.8 {
		t.Fatalf("unexpected statistics %+v", stats)
	}

	wantCode(t, dispatch(t, b, "getStatistics", `{"sessionId":"missing"}`), errcode.CodeNotFound)

	var list struct {
		Sessions []statisticsBody `json:"sessions"`
	}
	mustResult(t, dispatch(t, b, "listStatistics", `{"mode":"voice"}`), &list)
	if len(list.Sessions) != 1 || list.Sessions[0].SessionID != "sess-1" {
		t.Fatalf("unexpected list %+v", list)
	}

	t.Run("no store configured", func(t *testing.T) {
		b := New(study.NewEngine(newDeck(12)))
		wantCode(t, dispatch(t, b, "listStatistics", ""), errcode.CodeUnavailable)
	})
}

func TestCodeFor(t *testing.T) {
	tests := []struct {
		err  error
		want errcode.Code
	}{
		{study.ErrVoiceUnavailable, errcode.CodeUnavailable},
		{study.ErrNotEnoughCards, errcode.CodeBadRequest},
		{voice.ErrTimeout, errcode.CodeTimeout},
		{voice.ErrAudioSession, errcode.CodeInternal},
		{statstore.ErrNotFound, errcode.CodeNotFound},
		{context.DeadlineExceeded, errcode.CodeTimeout},
		{errors.New("boom"), errcode.CodeInternal},
	}
	for _, tt := range tests {
		if got := codeFor(tt.err); got != tt.want {
			t.Errorf("codeFor(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
