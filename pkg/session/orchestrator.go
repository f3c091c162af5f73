// Package session ties the Live transport, the audio pipelines, the
// conversation log and the tool dispatcher together behind a single
// connection state machine.
//
// Audio capture runs if and only if the session is connected, unmuted and
// a session configuration has been published. Any transition breaking that
// conjunction stops capture immediately.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/rabbittyjenny-sketch/soulweaver/pkg/live"
	"github.com/rabbittyjenny-sketch/soulweaver/pkg/playback"
	"github.com/rabbittyjenny-sketch/soulweaver/pkg/tools"
	"github.com/rabbittyjenny-sketch/soulweaver/pkg/transcript"
)

// ErrConfigNotSet is returned by Connect before any config was published.
var ErrConfigNotSet = errors.New("session: config has not been set")

// Status is the externally visible connection status.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// Transport is the slice of the Live client the orchestrator drives.
type Transport interface {
	SetHandlers(h live.Handlers)
	Connect(ctx context.Context, cfg live.SessionConfig) error
	Disconnect()
	SendAudioFrame(data string) error
	SendToolResponse(responses []live.FunctionResponse) error
}

// Capture is the slice of the audio recorder the orchestrator drives.
type Capture interface {
	OnFrame(fn func(data string))
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
}

// Playback is the slice of the audio streamer the orchestrator drives.
type Playback interface {
	Enqueue(pcm []byte) error
	Stop()
	OnVolume(fn func(playback.Volume))
}

// Orchestrator is the top-level session state machine.
type Orchestrator struct {
	transport  Transport
	recorder   Capture
	streamer   Playback
	log        *transcript.Store
	dispatcher *tools.Dispatcher
	logger     *slog.Logger

	mu          sync.Mutex
	status      Status
	muted       bool
	config      *live.SessionConfig
	configReady bool
	onStatus    func(Status)
}

// New wires an orchestrator over its collaborators and installs the
// transport event handlers. All protocol events are handled synchronously
// in delivery order on the transport's event goroutine.
func New(transport Transport, recorder Capture, streamer Playback, log *transcript.Store, dispatcher *tools.Dispatcher, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		transport:  transport,
		recorder:   recorder,
		streamer:   streamer,
		log:        log,
		dispatcher: dispatcher,
		logger:     logger,
		status:     StatusDisconnected,
	}

	recorder.OnFrame(o.sendFrame)

	transport.SetHandlers(live.Handlers{
		OnOpen:  o.handleOpen,
		OnClose: o.handleClose,
		OnError: o.handleError,
		OnAudio: o.handleAudio,
		OnInterrupted: func() {
			// Discard in-flight agent audio; status is unchanged.
			o.streamer.Stop()
		},
		OnInputTranscription: func(text string, isFinal bool) {
			o.log.AppendTranscription(transcript.RoleUser, text, isFinal)
		},
		OnOutputTranscription: func(text string, isFinal bool) {
			o.log.AppendTranscription(transcript.RoleAgent, text, isFinal)
		},
		OnContent: func(delta live.ContentDelta) {
			o.log.AppendContent(delta)
		},
		OnToolCall:     o.handleToolCall,
		OnTurnComplete: o.log.CompleteTurn,
	})

	return o
}

// OnStatus sets the status-change callback.
func (o *Orchestrator) OnStatus(fn func(Status)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onStatus = fn
}

// OnVolume sets the playback metering callback.
func (o *Orchestrator) OnVolume(fn func(playback.Volume)) {
	o.streamer.OnVolume(fn)
}

// Status returns the current connection status.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Log returns the conversation log store.
func (o *Orchestrator) Log() *transcript.Store {
	return o.log
}

// SetConfig publishes a session configuration. Capture is gated on a
// config having been published at least once, which keeps the microphone
// off until a system prompt and tool payload exist.
func (o *Orchestrator) SetConfig(cfg live.SessionConfig) {
	o.mu.Lock()
	o.config = &cfg
	o.configReady = true
	o.updateCaptureLocked()
	o.mu.Unlock()
}

// ClearConfig withdraws the configuration (e.g., user data was reset).
// Capture stops immediately if it was running.
func (o *Orchestrator) ClearConfig() {
	o.mu.Lock()
	o.config = nil
	o.configReady = false
	o.updateCaptureLocked()
	o.mu.Unlock()
}

// ConfigReady reports whether a configuration has been published.
func (o *Orchestrator) ConfigReady() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.configReady
}

// Connect opens the session with the latest published configuration.
// A connect while connecting or connected is a silent no-op; a connect
// before any config was published fails with ErrConfigNotSet.
func (o *Orchestrator) Connect(ctx context.Context) error {
	o.mu.Lock()
	if o.status == StatusConnecting || o.status == StatusConnected {
		o.mu.Unlock()
		return nil
	}
	if o.config == nil {
		o.mu.Unlock()
		return ErrConfigNotSet
	}
	cfg := *o.config
	o.mu.Unlock()

	o.setStatus(StatusConnecting)

	// Force-disconnect any still-open prior transport so two live
	// sessions never race.
	o.transport.Disconnect()

	if err := o.transport.Connect(ctx, cfg); err != nil {
		if errors.Is(err, live.ErrAlreadyConnecting) || errors.Is(err, live.ErrAlreadyConnected) {
			return nil
		}
		o.setStatus(StatusError)
		return err
	}
	return nil
}

// Disconnect closes the session and synchronously stops both audio
// pipelines. Idempotent. No late event may resurrect state afterwards.
func (o *Orchestrator) Disconnect() {
	o.transport.Disconnect()
	o.streamer.Stop()

	o.mu.Lock()
	o.muted = false
	changed := o.status != StatusDisconnected
	o.status = StatusDisconnected
	o.updateCaptureLocked()
	fn := o.onStatus
	o.mu.Unlock()

	if changed && fn != nil {
		fn(StatusDisconnected)
	}
}

// ResetStatus clears an error status back to disconnected. No-op in any
// other state; there is no automatic retry.
func (o *Orchestrator) ResetStatus() {
	o.mu.Lock()
	if o.status != StatusError {
		o.mu.Unlock()
		return
	}
	o.status = StatusDisconnected
	fn := o.onStatus
	o.mu.Unlock()

	if fn != nil {
		fn(StatusDisconnected)
	}
}

// SetMuted toggles the microphone. Muting while disconnected has no
// effect on capture; capture never runs while disconnected.
func (o *Orchestrator) SetMuted(muted bool) {
	o.mu.Lock()
	o.muted = muted
	o.updateCaptureLocked()
	o.mu.Unlock()
}

// Muted reports the current mute state.
func (o *Orchestrator) Muted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.muted
}

// sendFrame forwards one captured frame to the transport in capture order.
func (o *Orchestrator) sendFrame(data string) {
	if err := o.transport.SendAudioFrame(data); err != nil {
		// The capture gate should prevent this; drop the frame.
		o.logger.Debug("dropping audio frame", "error", err)
	}
}

func (o *Orchestrator) handleOpen() {
	o.mu.Lock()
	o.status = StatusConnected
	o.updateCaptureLocked()
	fn := o.onStatus
	o.mu.Unlock()

	if fn != nil {
		fn(StatusConnected)
	}
}

func (o *Orchestrator) handleClose() {
	o.leaveConnected(StatusDisconnected)
}

func (o *Orchestrator) handleError(err error) {
	o.logger.Error("live session error", "error", err)
	o.leaveConnected(StatusError)
}

// leaveConnected transitions out of the connected state: capture stops,
// mute resets, status changes.
func (o *Orchestrator) leaveConnected(to Status) {
	o.mu.Lock()
	o.status = to
	o.muted = false
	o.updateCaptureLocked()
	fn := o.onStatus
	o.mu.Unlock()

	if fn != nil {
		fn(to)
	}
}

func (o *Orchestrator) handleAudio(pcm []byte) {
	if err := o.streamer.Enqueue(pcm); err != nil {
		o.logger.Warn("playback enqueue failed", "error", err)
	}
}

// handleToolCall attaches the request to the log, executes every function
// call and sends the aggregated response so the model's turn is never left
// waiting.
func (o *Orchestrator) handleToolCall(req live.ToolCallRequest) {
	o.log.AttachToolCall(req)

	responses := o.dispatcher.Dispatch(req)
	if len(responses) == 0 {
		return
	}
	if err := o.transport.SendToolResponse(responses); err != nil {
		o.logger.Warn("tool response send failed", "error", err)
	}
}

// updateCaptureLocked enforces the capture gate: running exactly when
// connected, unmuted and config-ready.
func (o *Orchestrator) updateCaptureLocked() {
	should := o.status == StatusConnected && !o.muted && o.configReady

	if should && !o.recorder.IsRunning() {
		if err := o.recorder.Start(context.Background()); err != nil {
			o.logger.Error("capture start failed", "error", err)
		}
		return
	}
	if !should && o.recorder.IsRunning() {
		o.recorder.Stop()
	}
}

// setStatus transitions status and notifies, outside the lock.
func (o *Orchestrator) setStatus(s Status) {
	o.mu.Lock()
	if o.status == s {
		o.mu.Unlock()
		return
	}
	o.status = s
	fn := o.onStatus
	o.mu.Unlock()

	if fn != nil {
		fn(s)
	}
}
