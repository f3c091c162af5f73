// Package agent assembles the session configuration from the user profile,
// the system prompt and the enabled tools, and publishes it to the session
// orchestrator. It is the embedding entry point for the voice agent.
package agent

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/rabbittyjenny-sketch/soulweaver/internal/config"
	"github.com/rabbittyjenny-sketch/soulweaver/internal/log"
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

// Agent owns the profile lifecycle and keeps the orchestrator's
// configuration in sync with it.
type Agent struct {
	app      config.App
	orch     *session.Orchestrator
	registry *tools.Registry
	profiles *profile.Store
	logger   *slog.Logger

	mu      sync.Mutex
	current *profile.Record
}

// New creates an agent over an existing orchestrator and registry.
func New(app config.App, orch *session.Orchestrator, registry *tools.Registry, profiles *profile.Store, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		app:      app,
		orch:     orch,
		registry: registry,
		profiles: profiles,
		logger:   logger,
	}
}

// NewSession builds the full stack for embedding: transport, audio
// pipelines, conversation log, dispatcher, orchestrator and agent.
func NewSession(app config.App, logger *slog.Logger) (*Agent, *session.Orchestrator, error) {
	if logger == nil {
		log.Init(app.LogLevel)
		logger = log.L()
	}

	source, err := audioio.NewSource(audioio.DefaultCaptureConfig(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("agent: capture device: %w", err)
	}
	sink, err := audioio.NewSink(audioio.DefaultPlaybackConfig(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("agent: playback device: %w", err)
	}

	registry := tools.NewRegistry()
	registry.Register(astro.DailyPredictionTool())

	orch := session.New(
		live.NewClient(app.GeminiAPIKey, live.WithLogger(logger)),
		capture.NewRecorder(source, logger),
		playback.NewStreamer(sink, logger),
		transcript.NewStore(),
		tools.NewDispatcher(registry, logger),
		logger,
	)

	a := New(app, orch, registry, profile.NewStore(app.ProfilePath), logger)
	return a, orch, nil
}

// Start loads the persisted profile, if any, and publishes the session
// configuration for it. Without a profile the orchestrator stays
// config-not-ready and the microphone cannot be enabled.
func (a *Agent) Start() error {
	rec, err := a.profiles.Load()
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.current = rec
	a.mu.Unlock()

	if rec == nil {
		a.logger.Info("no active profile, onboarding required")
		return nil
	}

	a.publish(rec)
	return nil
}

// CompleteOnboarding persists the record and publishes a configuration
// personalized for it.
func (a *Agent) CompleteOnboarding(rec *profile.Record) error {
	if err := a.profiles.Save(rec); err != nil {
		return err
	}

	a.mu.Lock()
	a.current = rec
	a.mu.Unlock()

	a.publish(rec)
	return nil
}

// Reset disconnects, deletes the profile, clears the conversation log and
// withdraws the configuration.
func (a *Agent) Reset() error {
	a.orch.Disconnect()

	if err := a.profiles.Delete(); err != nil {
		return err
	}

	a.mu.Lock()
	a.current = nil
	a.mu.Unlock()

	a.orch.Log().Clear()
	a.orch.ClearConfig()

	a.logger.Info("agent reset")
	return nil
}

// Profile returns the active profile record, or nil.
func (a *Agent) Profile() *profile.Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// RefreshConfig republishes the configuration, picking up tool-enablement
// or voice changes. No-op without an active profile.
func (a *Agent) RefreshConfig() {
	a.mu.Lock()
	rec := a.current
	a.mu.Unlock()

	if rec == nil {
		return
	}
	a.publish(rec)
}

func (a *Agent) publish(rec *profile.Record) {
	cfg := live.SessionConfig{
		Model:             a.app.Model,
		ResponseModality:  "AUDIO",
		Voice:             a.app.Voice,
		SystemInstruction: astro.PersonalizedPrompt(rec),
		TranscribeInput:   true,
		TranscribeOutput:  true,
		Tools:             a.registry.Declarations(),
	}
	a.orch.SetConfig(cfg)

	a.logger.Debug("session config published",
		"model", cfg.Model,
		"voice", cfg.Voice,
		"tools", len(cfg.Tools),
	)
}
