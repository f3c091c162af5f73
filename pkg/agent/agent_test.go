package agent

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rabbittyjenny-sketch/soulweaver/internal/config"
	"github.com/rabbittyjenny-sketch/soulweaver/pkg/astro"
	"github.com/rabbittyjenny-sketch/soulweaver/pkg/audioio"
	"github.com/rabbittyjenny-sketch/soulweaver/pkg/capture"
	"github.com/rabbittyjenny-sketch/soulweaver/pkg/live"
	"github.com/rabbittyjenny-sketch/soulweaver/pkg/playback"
	"github.com/rabbittyjenny-sketch/soulweaver/pkg/profile"
	"github.com/rabbittyjenny-sketch/soulweaver/pkg/session"
	"github.com/rabbittyjenny-sketch/soulweaver/pkg/tools"
	"github.com/rabbittyjenny-sketch/soulweaver/pkg/transcript"
)

type recordingTransport struct {
	mu          sync.Mutex
	lastCfg     live.SessionConfig
	connects    int
	disconnects int
}

func (r *recordingTransport) SetHandlers(h live.Handlers) {}

func (r *recordingTransport) Connect(ctx context.Context, cfg live.SessionConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connects++
	r.lastCfg = cfg
	return nil
}

func (r *recordingTransport) Disconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnects++
}

func (r *recordingTransport) SendAudioFrame(data string) error                  { return nil }
func (r *recordingTransport) SendToolResponse(rs []live.FunctionResponse) error { return nil }

type testAgent struct {
	agent     *Agent
	orch      *session.Orchestrator
	transport *recordingTransport
	registry  *tools.Registry
	path      string
}

func newTestAgent(t *testing.T) *testAgent {
	t.Helper()

	path := filepath.Join(t.TempDir(), "profile.json")
	app := config.App{
		Model:       config.DefaultModel,
		Voice:       config.DefaultVoice,
		ProfilePath: path,
	}

	captureCfg := audioio.DefaultCaptureConfig()
	captureCfg.Backend = audioio.BackendMock
	playbackCfg := audioio.DefaultPlaybackConfig()
	playbackCfg.Backend = audioio.BackendMock

	registry := tools.NewRegistry()
	registry.Register(astro.DailyPredictionTool())

	transport := &recordingTransport{}
	orch := session.New(
		transport,
		capture.NewRecorder(audioio.NewMockSource(captureCfg, nil), nil),
		playback.NewStreamer(audioio.NewMockSink(playbackCfg, nil), nil),
		transcript.NewStore(),
		tools.NewDispatcher(registry, nil),
		nil,
	)

	return &testAgent{
		agent:     New(app, orch, registry, profile.NewStore(path), nil),
		orch:      orch,
		transport: transport,
		registry:  registry,
		path:      path,
	}
}

// publishedConfig connects through the orchestrator to observe the latest
// configuration handed to the transport.
func (ta *testAgent) publishedConfig(t *testing.T) live.SessionConfig {
	t.Helper()
	if err := ta.orch.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	ta.orch.Disconnect()

	ta.transport.mu.Lock()
	defer ta.transport.mu.Unlock()
	return ta.transport.lastCfg
}

func TestStart_WithoutProfile(t *testing.T) {
	ta := newTestAgent(t)

	if err := ta.agent.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if ta.agent.Profile() != nil {
		t.Error("Expected no active profile")
	}
	if ta.orch.ConfigReady() {
		t.Error("Config must not be published without a profile")
	}
}

func TestCompleteOnboarding_PublishesPersonalizedConfig(t *testing.T) {
	ta := newTestAgent(t)

	rec := &profile.Record{
		Email:      "maya@example.com",
		Name:       "Maya",
		DOB:        "1995-07-21",
		BirthTime:  "04:30",
		BirthPlace: "Bangkok",
	}
	if err := ta.agent.CompleteOnboarding(rec); err != nil {
		t.Fatalf("CompleteOnboarding failed: %v", err)
	}

	if !ta.orch.ConfigReady() {
		t.Fatal("Expected config to be published")
	}
	if got := ta.agent.Profile(); got == nil || got.Name != "Maya" {
		t.Errorf("Unexpected active profile: %+v", got)
	}

	cfg := ta.publishedConfig(t)
	if cfg.Model != config.DefaultModel || cfg.Voice != config.DefaultVoice {
		t.Errorf("Unexpected model/voice: %q/%q", cfg.Model, cfg.Voice)
	}
	if !cfg.TranscribeInput || !cfg.TranscribeOutput {
		t.Error("Expected transcription enabled on both directions")
	}
	if !strings.Contains(cfg.SystemInstruction, "Maya") {
		t.Error("Expected personalized system instruction")
	}
	if len(cfg.Tools) != 1 || cfg.Tools[0].Name != "get_daily_prediction" {
		t.Errorf("Unexpected tool declarations: %+v", cfg.Tools)
	}

	// The record is persisted for the next start.
	saved, err := profile.NewStore(ta.path).Load()
	if err != nil || saved == nil || saved.Name != "Maya" {
		t.Errorf("Expected persisted profile, got %+v, %v", saved, err)
	}
}

func TestStart_WithExistingProfile(t *testing.T) {
	ta := newTestAgent(t)

	rec := &profile.Record{Name: "Maya", DOB: "1995-07-21"}
	if err := profile.NewStore(ta.path).Save(rec); err != nil {
		t.Fatal(err)
	}

	if err := ta.agent.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !ta.orch.ConfigReady() {
		t.Error("Expected config published for the persisted profile")
	}
	if got := ta.agent.Profile(); got == nil || got.Name != "Maya" {
		t.Errorf("Unexpected active profile: %+v", got)
	}
}

func TestReset(t *testing.T) {
	ta := newTestAgent(t)

	if err := ta.agent.CompleteOnboarding(&profile.Record{Name: "Maya"}); err != nil {
		t.Fatal(err)
	}
	ta.orch.Log().AppendTranscription(transcript.RoleUser, "hello", true)

	if err := ta.agent.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	if ta.agent.Profile() != nil {
		t.Error("Expected no active profile after reset")
	}
	if ta.orch.ConfigReady() {
		t.Error("Expected config withdrawn after reset")
	}
	if ta.orch.Log().Len() != 0 {
		t.Error("Expected conversation log cleared")
	}
	if ta.transport.disconnects == 0 {
		t.Error("Expected transport disconnect on reset")
	}

	rec, err := profile.NewStore(ta.path).Load()
	if err != nil || rec != nil {
		t.Errorf("Expected profile deleted, got %+v, %v", rec, err)
	}

	// Reset without a profile is still safe.
	if err := ta.agent.Reset(); err != nil {
		t.Errorf("Second Reset failed: %v", err)
	}
}

func TestRefreshConfig(t *testing.T) {
	ta := newTestAgent(t)

	// No-op without a profile.
	ta.agent.RefreshConfig()
	if ta.orch.ConfigReady() {
		t.Error("Refresh without a profile must not publish a config")
	}

	if err := ta.agent.CompleteOnboarding(&profile.Record{Name: "Maya"}); err != nil {
		t.Fatal(err)
	}

	// Disabling a tool takes effect on the next refresh.
	ta.registry.SetEnabled("get_daily_prediction", false)
	ta.agent.RefreshConfig()

	cfg := ta.publishedConfig(t)
	if len(cfg.Tools) != 0 {
		t.Errorf("Expected no tool declarations after disable, got %+v", cfg.Tools)
	}
}
