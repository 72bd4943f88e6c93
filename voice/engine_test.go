package voice

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/membo-ai/studykit/audiosession"
	"github.com/membo-ai/studykit/permission"
	"github.com/membo-ai/studykit/stt"
)

type countingDriver struct {
	mu           sync.Mutex
	configures   int
	activates    int
	deactivates  int
	configureErr error
	activateErr  error
}

func (d *countingDriver) Configure(string, string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.configures++
	return d.configureErr
}

func (d *countingDriver) Activate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.activates++
	return d.activateErr
}

func (d *countingDriver) Deactivate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deactivates++
	return nil
}

func (d *countingDriver) counts() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.activates, d.deactivates
}

type fakeTranscriber struct {
	result stt.Result
	err    error
}

func (f *fakeTranscriber) Name() string     { return "fake" }
func (f *fakeTranscriber) Available() bool  { return true }
func (f *fakeTranscriber) Transcribe(_ context.Context, _ []byte, _ stt.Config) (stt.Result, error) {
	return f.result, f.err
}

func grantedGate() *permission.Gate {
	return permission.NewGate(nil,
		permission.WithInitialStatus(permission.KindMicrophone, permission.StatusGranted))
}

func instantCapture() stt.CaptureSource {
	return stt.CaptureFunc(func(_ context.Context) ([]byte, error) {
		return make([]byte, 320), nil
	})
}

// blockingCapture records until the context ends.
func blockingCapture() stt.CaptureSource {
	return stt.CaptureFunc(func(ctx context.Context) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
}

func TestStartRecognitionDeliversResult(t *testing.T) {
	driver := &countingDriver{}
	audio := audiosession.NewLifecycle(driver)
	results := make(chan Result, 1)

	engine := NewEngine(
		&fakeTranscriber{result: stt.Result{Transcript: "bonjour", Confidence: 0.92}},
		instantCapture(),
		audio,
		grantedGate(),
		WithResultHandler(func(r Result) { results <- r }),
	)

	attemptID, err := engine.StartRecognition(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attemptID == "" {
		t.Fatal("expected non-empty attempt ID")
	}

	select {
	case r := <-results:
		if r.Transcript != "bonjour" {
			t.Errorf("expected transcript bonjour, got %q", r.Transcript)
		}
		if r.AttemptID != attemptID {
			t.Errorf("result carries attempt %q, want %q", r.AttemptID, attemptID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
	}

	if got := engine.State(); got != StateIdle {
		t.Errorf("expected Idle after result, got %v", got)
	}
	activates, deactivates := driver.counts()
	if activates != 1 || deactivates != 1 {
		t.Errorf("expected one activate and one deactivate, got %d/%d", activates, deactivates)
	}
}

func TestStartRecognitionNoPermission(t *testing.T) {
	engine := NewEngine(
		&fakeTranscriber{},
		instantCapture(),
		audiosession.NewLifecycle(&countingDriver{}),
		permission.NewGate(nil,
			permission.WithInitialStatus(permission.KindMicrophone, permission.StatusDenied)),
	)

	_, err := engine.StartRecognition(context.Background())
	if !errors.Is(err, ErrNoPermission) {
		t.Fatalf("expected ErrNoPermission, got %v", err)
	}
}

func TestStartRecognitionUnavailable(t *testing.T) {
	engine := NewEngine(nil, instantCapture(), nil, grantedGate())
	_, err := engine.StartRecognition(context.Background())
	if !errors.Is(err, ErrRecognizerUnavailable) {
		t.Fatalf("expected ErrRecognizerUnavailable, got %v", err)
	}
}

func TestStartRecognitionAudioFailure(t *testing.T) {
	driver := &countingDriver{activateErr: errors.New("hardware busy")}
	engine := NewEngine(
		&fakeTranscriber{},
		instantCapture(),
		audiosession.NewLifecycle(driver),
		grantedGate(),
	)

	_, err := engine.StartRecognition(context.Background())
	if !errors.Is(err, ErrAudioSession) {
		t.Fatalf("expected ErrAudioSession, got %v", err)
	}
	if got := engine.State(); got != StateIdle {
		t.Errorf("expected Idle after activation failure, got %v", got)
	}
}

func TestStartRecognitionConfigureFailure(t *testing.T) {
	driver := &countingDriver{configureErr: errors.New("category rejected")}
	audio := audiosession.NewLifecycle(driver)
	engine := NewEngine(
		&fakeTranscriber{},
		instantCapture(),
		audio,
		grantedGate(),
	)

	_, err := engine.StartRecognition(context.Background())
	if !errors.Is(err, ErrAudioSession) {
		t.Fatalf("expected ErrAudioSession, got %v", err)
	}
	if got := engine.State(); got != StateIdle {
		t.Errorf("expected Idle after configure failure, got %v", got)
	}
	if audio.IsActive() {
		t.Error("audio session left active after configure failure")
	}
}

func TestIsAvailableRequiresPermission(t *testing.T) {
	engine := NewEngine(
		&fakeTranscriber{},
		instantCapture(),
		audiosession.NewLifecycle(&countingDriver{}),
		permission.NewGate(nil,
			permission.WithInitialStatus(permission.KindMicrophone, permission.StatusDenied)),
	)
	if engine.IsAvailable() {
		t.Error("available with microphone permission denied")
	}

	engine = NewEngine(
		&fakeTranscriber{},
		instantCapture(),
		audiosession.NewLifecycle(&countingDriver{}),
		permission.NewGate(nil,
			permission.WithInitialStatus(permission.KindMicrophone, permission.StatusNotDetermined)),
	)
	if engine.IsAvailable() {
		t.Error("available before the permission prompt was answered")
	}

	engine = NewEngine(
		&fakeTranscriber{},
		instantCapture(),
		audiosession.NewLifecycle(&countingDriver{}),
		grantedGate(),
	)
	if !engine.IsAvailable() {
		t.Error("unavailable with recognizer wired and permission granted")
	}
}

func TestIsAvailableFalseDuringAttempt(t *testing.T) {
	engine := NewEngine(
		&fakeTranscriber{},
		blockingCapture(),
		audiosession.NewLifecycle(&countingDriver{}),
		grantedGate(),
	)

	if _, err := engine.StartRecognition(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if engine.IsAvailable() {
		t.Error("available while an attempt is in flight")
	}

	engine.StopRecognition()
	if !engine.IsAvailable() {
		t.Error("unavailable after the attempt was stopped")
	}
}

func TestConcurrentStartsOneWins(t *testing.T) {
	gateOpen := make(chan struct{})
	capture := stt.CaptureFunc(func(ctx context.Context) ([]byte, error) {
		<-gateOpen
		return make([]byte, 320), nil
	})

	engine := NewEngine(
		&fakeTranscriber{result: stt.Result{Transcript: "x", Confidence: 1}},
		capture,
		audiosession.NewLifecycle(&countingDriver{}),
		grantedGate(),
	)

	const starters = 8
	var started, rejected atomic.Int32
	var wg sync.WaitGroup
	for range starters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.StartRecognition(context.Background())
			switch {
			case err == nil:
				started.Add(1)
			case errors.Is(err, ErrAlreadyInProgress):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if started.Load() != 1 {
		t.Errorf("expected exactly one successful start, got %d", started.Load())
	}
	if rejected.Load() != starters-1 {
		t.Errorf("expected %d rejections, got %d", starters-1, rejected.Load())
	}

	close(gateOpen)
	engine.StopRecognition()
}

func TestStopRecognitionWhileIdle(t *testing.T) {
	driver := &countingDriver{}
	engine := NewEngine(
		&fakeTranscriber{},
		instantCapture(),
		audiosession.NewLifecycle(driver),
		grantedGate(),
	)

	engine.StopRecognition()

	activates, deactivates := driver.counts()
	if activates != 0 || deactivates != 0 {
		t.Errorf("idle stop should not touch the audio session, got %d/%d", activates, deactivates)
	}
	if got := engine.State(); got != StateIdle {
		t.Errorf("expected Idle, got %v", got)
	}
}

func TestStopRecognitionCancelsAttempt(t *testing.T) {
	driver := &countingDriver{}
	errs := make(chan error, 1)
	engine := NewEngine(
		&fakeTranscriber{},
		blockingCapture(),
		audiosession.NewLifecycle(driver),
		grantedGate(),
		WithErrorHandler(func(_ string, err error) { errs <- err }),
	)

	if _, err := engine.StartRecognition(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	engine.StopRecognition()

	if got := engine.State(); got != StateIdle {
		t.Errorf("expected Idle after stop, got %v", got)
	}
	select {
	case err := <-errs:
		t.Errorf("cancellation should not reach the error handler, got %v", err)
	default:
	}
	activates, deactivates := driver.counts()
	if activates != 1 || deactivates != 1 {
		t.Errorf("expected one activate and one deactivate, got %d/%d", activates, deactivates)
	}
}

func TestRecognitionTimeout(t *testing.T) {
	driver := &countingDriver{}
	errs := make(chan error, 1)
	engine := NewEngine(
		&fakeTranscriber{},
		blockingCapture(),
		audiosession.NewLifecycle(driver),
		grantedGate(),
		WithTimeout(50*time.Millisecond),
		WithErrorHandler(func(_ string, err error) { errs <- err }),
	)

	if _, err := engine.StartRecognition(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case err := <-errs:
		if !errors.Is(err, ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for timeout error")
	}
	if got := engine.State(); got != StateIdle {
		t.Errorf("expected Idle after timeout, got %v", got)
	}
	_, deactivates := driver.counts()
	if deactivates != 1 {
		t.Errorf("expected one deactivate, got %d", deactivates)
	}
}

func TestUnresumedInterruptionFailsAttempt(t *testing.T) {
	driver := &countingDriver{}
	audio := audiosession.NewLifecycle(driver)
	errs := make(chan error, 1)
	engine := NewEngine(
		&fakeTranscriber{},
		blockingCapture(),
		audio,
		grantedGate(),
		WithTimeout(5*time.Second),
		WithErrorHandler(func(_ string, err error) { errs <- err }),
	)

	if _, err := engine.StartRecognition(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	audio.HandleInterruptionBegan()
	audio.HandleInterruptionEnded(false)

	select {
	case err := <-errs:
		if !errors.Is(err, ErrAudioSession) {
			t.Errorf("expected ErrAudioSession, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for attempt failure")
	}
	if got := engine.State(); got != StateIdle {
		t.Errorf("expected Idle after lost interruption, got %v", got)
	}
}

func TestLowConfidenceRejected(t *testing.T) {
	errs := make(chan error, 1)
	engine := NewEngine(
		&fakeTranscriber{result: stt.Result{Transcript: "mumble", Confidence: 0.3}},
		instantCapture(),
		audiosession.NewLifecycle(&countingDriver{}),
		grantedGate(),
		WithErrorHandler(func(_ string, err error) { errs <- err }),
	)

	if _, err := engine.StartRecognition(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case err := <-errs:
		if !errors.Is(err, ErrNoMatch) {
			t.Errorf("expected ErrNoMatch, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for rejection")
	}
}

func TestConfigurationLockedWhileActive(t *testing.T) {
	engine := NewEngine(
		&fakeTranscriber{},
		blockingCapture(),
		audiosession.NewLifecycle(&countingDriver{}),
		grantedGate(),
	)

	if err := engine.SetLanguage("es"); err != nil {
		t.Fatalf("SetLanguage while idle: %v", err)
	}
	if err := engine.SetTimeout(5 * time.Second); err != nil {
		t.Fatalf("SetTimeout while idle: %v", err)
	}
	if err := engine.SetTimeout(0); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration for zero timeout, got %v", err)
	}

	if _, err := engine.StartRecognition(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer engine.StopRecognition()

	if err := engine.SetLanguage("fr"); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration mid-attempt, got %v", err)
	}
	if err := engine.SetTimeout(time.Second); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration mid-attempt, got %v", err)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateIdle:       "idle",
		StateListening:  "listening",
		StateProcessing: "processing",
		StateFinished:   "finished",
		State(99):       "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
