// Package capture acquires microphone input and emits fixed-cadence
// base64-encoded PCM16 frames ready for the Live realtime input channel.
package capture

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rabbittyjenny-sketch/soulweaver/pkg/audioio"
)

// TargetSampleRate is the rate the Live service expects for input audio.
const TargetSampleRate = 16000

// Recorder wraps an audio source and emits base64 frames at the source's
// chunk cadence. It exclusively holds the microphone while running; at
// most one Recorder may run at a time system-wide.
type Recorder struct {
	source audioio.Source
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	onFrame func(data string)
}

// NewRecorder creates a recorder on top of the given source.
func NewRecorder(source audioio.Source, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{source: source, logger: logger}
}

// OnFrame sets the frame-ready callback. Call before Start.
func (r *Recorder) OnFrame(fn func(data string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFrame = fn
}

// Start begins acquiring microphone input. Idempotent while running.
// If the device cannot be acquired the error wraps
// audioio.ErrDeviceUnavailable and no frames are emitted.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}

	if err := r.source.Start(ctx); err != nil {
		return fmt.Errorf("capture: %w", err)
	}

	r.running = true
	r.stopCh = make(chan struct{})

	go r.forwardLoop(r.source.Stream(), r.stopCh, r.onFrame)

	r.logger.Debug("capture started", "backend", r.source.Name())

	return nil
}

// Stop releases the input device and halts emission.
// Safe to call when already stopped.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}

	r.running = false
	close(r.stopCh)
	_ = r.source.Stop()

	r.logger.Debug("capture stopped")
}

// IsRunning reports whether the microphone is currently held.
func (r *Recorder) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// forwardLoop resamples each chunk to the target rate, encodes it and
// invokes the frame callback in capture order.
func (r *Recorder) forwardLoop(stream <-chan audioio.AudioChunk, stop <-chan struct{}, onFrame func(string)) {
	for {
		select {
		case <-stop:
			return
		case chunk, ok := <-stream:
			if !ok {
				return
			}
			if onFrame == nil {
				continue
			}

			samples := chunk.Samples
			if chunk.SampleRate != TargetSampleRate {
				samples = audioio.Resample(samples, chunk.SampleRate, TargetSampleRate)
			}
			if len(samples) == 0 {
				continue
			}

			onFrame(base64.StdEncoding.EncodeToString(audioio.SamplesToBytes(samples)))
		}
	}
}
