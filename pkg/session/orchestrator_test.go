package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rabbittyjenny-sketch/soulweaver/pkg/live"
	"github.com/rabbittyjenny-sketch/soulweaver/pkg/playback"
	"github.com/rabbittyjenny-sketch/soulweaver/pkg/tools"
	"github.com/rabbittyjenny-sketch/soulweaver/pkg/transcript"
)

type fakeTransport struct {
	mu            sync.Mutex
	handlers      live.Handlers
	connects      int
	disconnects   int
	lastCfg       live.SessionConfig
	connectErr    error
	sendErr       error
	frames        []string
	toolResponses [][]live.FunctionResponse
}

func (f *fakeTransport) SetHandlers(h live.Handlers) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = h
}

func (f *fakeTransport) Connect(ctx context.Context, cfg live.SessionConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	f.lastCfg = cfg
	return f.connectErr
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
}

func (f *fakeTransport) SendAudioFrame(data string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakeTransport) SendToolResponse(responses []live.FunctionResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toolResponses = append(f.toolResponses, responses)
	return nil
}

type fakeCapture struct {
	mu       sync.Mutex
	running  bool
	startErr error
	starts   int
	onFrame  func(string)
}

func (f *fakeCapture) OnFrame(fn func(data string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onFrame = fn
}

func (f *fakeCapture) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	f.running = true
	return nil
}

func (f *fakeCapture) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
}

func (f *fakeCapture) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

type fakePlayback struct {
	mu       sync.Mutex
	enqueued [][]byte
	stops    int
}

func (f *fakePlayback) Enqueue(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, pcm)
	return nil
}

func (f *fakePlayback) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakePlayback) OnVolume(fn func(playback.Volume)) {}

type fixture struct {
	transport *fakeTransport
	capture   *fakeCapture
	playback  *fakePlayback
	orch      *Orchestrator
	statuses  []Status
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	reg := tools.NewRegistry()
	reg.Register(tools.Tool{
		Name:    "get_daily_prediction",
		Enabled: true,
		Handler: func(args map[string]any) (string, error) {
			return "sunny", nil
		},
	})

	f := &fixture{
		transport: &fakeTransport{},
		capture:   &fakeCapture{},
		playback:  &fakePlayback{},
	}
	f.orch = New(f.transport, f.capture, f.playback, transcript.NewStore(), tools.NewDispatcher(reg, nil), nil)
	f.orch.OnStatus(func(s Status) { f.statuses = append(f.statuses, s) })
	return f
}

func (f *fixture) connectAndOpen(t *testing.T) {
	t.Helper()
	f.orch.SetConfig(live.SessionConfig{Model: "m"})
	if err := f.orch.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	f.transport.handlers.OnOpen()
}

func TestConnect_RequiresConfig(t *testing.T) {
	f := newFixture(t)

	err := f.orch.Connect(context.Background())
	if !errors.Is(err, ErrConfigNotSet) {
		t.Errorf("Expected ErrConfigNotSet, got %v", err)
	}
	if f.orch.Status() != StatusDisconnected {
		t.Errorf("Status must stay disconnected, got %s", f.orch.Status())
	}
	if f.transport.connects != 0 {
		t.Error("Transport must not be dialed without a config")
	}
}

func TestConnect_HappyPath(t *testing.T) {
	f := newFixture(t)
	f.orch.SetConfig(live.SessionConfig{Model: "m", Voice: "Zephyr"})

	if err := f.orch.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if f.orch.Status() != StatusConnecting {
		t.Errorf("Expected connecting before open, got %s", f.orch.Status())
	}
	if f.transport.disconnects != 1 {
		t.Errorf("Expected force-disconnect before dialing, got %d", f.transport.disconnects)
	}
	if f.transport.lastCfg.Voice != "Zephyr" {
		t.Errorf("Config not passed through: %+v", f.transport.lastCfg)
	}
	if f.capture.IsRunning() {
		t.Error("Capture must not run before the session opens")
	}

	f.transport.handlers.OnOpen()

	if f.orch.Status() != StatusConnected {
		t.Errorf("Expected connected after open, got %s", f.orch.Status())
	}
	if !f.capture.IsRunning() {
		t.Error("Capture must start once connected, unmuted and configured")
	}

	want := []Status{StatusConnecting, StatusConnected}
	if len(f.statuses) != len(want) {
		t.Fatalf("Unexpected status sequence: %v", f.statuses)
	}
	for i := range want {
		if f.statuses[i] != want[i] {
			t.Errorf("Status %d: expected %s, got %s", i, want[i], f.statuses[i])
		}
	}
}

func TestConnect_NoOpWhileConnectedOrConnecting(t *testing.T) {
	f := newFixture(t)
	f.connectAndOpen(t)

	if err := f.orch.Connect(context.Background()); err != nil {
		t.Errorf("Connect while connected must be a no-op, got %v", err)
	}
	if f.transport.connects != 1 {
		t.Errorf("Expected a single transport dial, got %d", f.transport.connects)
	}
}

func TestConnect_FailureSetsErrorStatus(t *testing.T) {
	f := newFixture(t)
	f.transport.connectErr = errors.New("dial refused")
	f.orch.SetConfig(live.SessionConfig{Model: "m"})

	if err := f.orch.Connect(context.Background()); err == nil {
		t.Fatal("Expected connect error")
	}
	if f.orch.Status() != StatusError {
		t.Errorf("Expected error status, got %s", f.orch.Status())
	}

	f.orch.ResetStatus()
	if f.orch.Status() != StatusDisconnected {
		t.Errorf("Expected disconnected after reset, got %s", f.orch.Status())
	}

	// ResetStatus outside the error state is a no-op.
	f.orch.ResetStatus()
	if f.orch.Status() != StatusDisconnected {
		t.Errorf("Unexpected status after second reset: %s", f.orch.Status())
	}
}

func TestConnect_TransportGuardErrorsAreSwallowed(t *testing.T) {
	f := newFixture(t)
	f.transport.connectErr = live.ErrAlreadyConnected
	f.orch.SetConfig(live.SessionConfig{Model: "m"})

	if err := f.orch.Connect(context.Background()); err != nil {
		t.Errorf("Guard errors must not surface, got %v", err)
	}
	if f.orch.Status() == StatusError {
		t.Error("Guard errors must not set error status")
	}
}

func TestMuteGatesCapture(t *testing.T) {
	f := newFixture(t)
	f.connectAndOpen(t)

	f.orch.SetMuted(true)
	if f.capture.IsRunning() {
		t.Error("Capture must stop when muted")
	}
	if !f.orch.Muted() {
		t.Error("Expected muted state")
	}

	f.orch.SetMuted(false)
	if !f.capture.IsRunning() {
		t.Error("Capture must resume when unmuted")
	}
}

func TestMuteWhileDisconnected(t *testing.T) {
	f := newFixture(t)

	f.orch.SetMuted(true)
	if f.capture.IsRunning() {
		t.Error("Capture must never run while disconnected")
	}
	if !f.orch.Muted() {
		t.Error("Mute state is tracked even while disconnected")
	}
}

func TestClearConfigStopsCapture(t *testing.T) {
	f := newFixture(t)
	f.connectAndOpen(t)

	f.orch.ClearConfig()
	if f.capture.IsRunning() {
		t.Error("Capture must stop when the config is withdrawn")
	}
	if f.orch.ConfigReady() {
		t.Error("Expected config not ready after clear")
	}

	// Republishing restarts capture while still connected.
	f.orch.SetConfig(live.SessionConfig{Model: "m"})
	if !f.capture.IsRunning() {
		t.Error("Capture must resume once a config is published again")
	}
}

func TestInterruptedFlushesPlaybackOnly(t *testing.T) {
	f := newFixture(t)
	f.connectAndOpen(t)

	f.transport.handlers.OnInterrupted()

	if f.playback.stops != 1 {
		t.Errorf("Expected one playback flush, got %d", f.playback.stops)
	}
	if f.orch.Status() != StatusConnected {
		t.Errorf("Interruption must not change status, got %s", f.orch.Status())
	}
	if !f.capture.IsRunning() {
		t.Error("Interruption must not stop capture")
	}
}

func TestServerCloseLeavesConnected(t *testing.T) {
	f := newFixture(t)
	f.connectAndOpen(t)
	f.orch.SetMuted(true)

	f.transport.handlers.OnClose()

	if f.orch.Status() != StatusDisconnected {
		t.Errorf("Expected disconnected after server close, got %s", f.orch.Status())
	}
	if f.capture.IsRunning() {
		t.Error("Capture must stop on close")
	}
	if f.orch.Muted() {
		t.Error("Mute must reset when the session ends")
	}
}

func TestServerErrorSetsErrorStatus(t *testing.T) {
	f := newFixture(t)
	f.connectAndOpen(t)

	f.transport.handlers.OnError(errors.New("read failed"))

	if f.orch.Status() != StatusError {
		t.Errorf("Expected error status, got %s", f.orch.Status())
	}
	if f.capture.IsRunning() {
		t.Error("Capture must stop on transport error")
	}
}

func TestDisconnect(t *testing.T) {
	f := newFixture(t)
	f.connectAndOpen(t)
	f.orch.SetMuted(true)

	f.orch.Disconnect()

	if f.orch.Status() != StatusDisconnected {
		t.Errorf("Expected disconnected, got %s", f.orch.Status())
	}
	if f.playback.stops == 0 {
		t.Error("Disconnect must flush playback")
	}
	if f.capture.IsRunning() {
		t.Error("Disconnect must stop capture")
	}
	if f.orch.Muted() {
		t.Error("Disconnect must reset mute")
	}

	// Idempotent.
	f.orch.Disconnect()
}

func TestAudioEventsReachPlayback(t *testing.T) {
	f := newFixture(t)
	f.connectAndOpen(t)

	f.transport.handlers.OnAudio([]byte{1, 0, 2, 0})

	if len(f.playback.enqueued) != 1 {
		t.Fatalf("Expected 1 enqueued chunk, got %d", len(f.playback.enqueued))
	}
}

func TestCapturedFramesReachTransport(t *testing.T) {
	f := newFixture(t)
	f.connectAndOpen(t)

	f.capture.onFrame("AAAA")
	f.capture.onFrame("BBBB")

	if len(f.transport.frames) != 2 {
		t.Fatalf("Expected 2 forwarded frames, got %d", len(f.transport.frames))
	}
	if f.transport.frames[0] != "AAAA" || f.transport.frames[1] != "BBBB" {
		t.Errorf("Frames out of order: %v", f.transport.frames)
	}
}

func TestCapturedFrameDropOnSendFailure(t *testing.T) {
	f := newFixture(t)
	f.connectAndOpen(t)
	f.transport.sendErr = live.ErrNotConnected

	// Must not panic; the frame is dropped.
	f.capture.onFrame("AAAA")

	if len(f.transport.frames) != 0 {
		t.Errorf("Expected dropped frame, got %v", f.transport.frames)
	}
}

func TestToolCallRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.connectAndOpen(t)

	f.transport.handlers.OnToolCall(live.ToolCallRequest{FunctionCalls: []live.FunctionCall{
		{ID: "1", Name: "get_daily_prediction", Args: map[string]any{"sign": "leo"}},
		{ID: "2", Name: "unknown_tool"},
	}})

	if len(f.transport.toolResponses) != 1 {
		t.Fatalf("Expected one aggregated response message, got %d", len(f.transport.toolResponses))
	}
	responses := f.transport.toolResponses[0]
	if len(responses) != 2 {
		t.Fatalf("Expected one response per call, got %d", len(responses))
	}
	if responses[0].ID != "1" || responses[1].ID != "2" {
		t.Errorf("Responses out of order: %+v", responses)
	}
	if got := responses[0].Response["result"]; got != "sunny" {
		t.Errorf("Unexpected tool result: %v", got)
	}

	// The request is recorded on the conversation log.
	turns := f.orch.Log().Turns()
	if len(turns) != 1 || turns[0].ToolUseRequest == nil {
		t.Fatalf("Expected a logged turn with the tool request, got %+v", turns)
	}
}

func TestTranscriptionEventsReachLog(t *testing.T) {
	f := newFixture(t)
	f.connectAndOpen(t)

	f.transport.handlers.OnInputTranscription("hi", false)
	f.transport.handlers.OnInputTranscription("hi there", true)
	f.transport.handlers.OnOutputTranscription("hello", false)
	f.transport.handlers.OnContent(live.ContentDelta{Text: " friend"})
	f.transport.handlers.OnTurnComplete()

	turns := f.orch.Log().Turns()
	if len(turns) != 2 {
		t.Fatalf("Expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != transcript.RoleUser || turns[0].Text != "hi there" || !turns[0].IsFinal {
		t.Errorf("Unexpected user turn: %+v", turns[0])
	}
	if turns[1].Role != transcript.RoleAgent || !turns[1].IsFinal {
		t.Errorf("Unexpected agent turn: %+v", turns[1])
	}
}

func TestCaptureStartFailureKeepsSession(t *testing.T) {
	f := newFixture(t)
	f.capture.startErr = errors.New("device busy")
	f.connectAndOpen(t)

	// The session stays connected even if the microphone cannot start.
	if f.orch.Status() != StatusConnected {
		t.Errorf("Expected connected despite capture failure, got %s", f.orch.Status())
	}
	if f.capture.IsRunning() {
		t.Error("Capture must not be running after a failed start")
	}
}
