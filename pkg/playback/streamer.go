// Package playback buffers PCM byte chunks and schedules them for gapless,
// in-order playback, with live volume metering and immediate flush-and-stop
// on interruption.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbittyjenny-sketch/soulweaver/pkg/audioio"
)

// DefaultMeterInterval is how often the volume callback fires while the
// streamer is active.
const DefaultMeterInterval = 50 * time.Millisecond

// Volume is one metering sample over the currently playing audio.
type Volume struct {
	RMS  float64
	Peak float64
}

// Streamer accepts PCM chunks and plays them contiguously on a Sink.
// The output device is acquired lazily on the first Enqueue and held for
// the streamer's lifetime.
type Streamer struct {
	sink          audioio.Sink
	logger        *slog.Logger
	meterInterval time.Duration

	mu       sync.Mutex
	cond     *sync.Cond
	started  bool
	closed   bool
	queue    [][]int16
	epoch    int
	playing  []int16
	lastPlay time.Time

	onVolume func(Volume)
	stopCh   chan struct{}
}

// Option configures a Streamer.
type Option func(*Streamer)

// WithMeterInterval overrides the volume metering interval.
func WithMeterInterval(d time.Duration) Option {
	return func(s *Streamer) { s.meterInterval = d }
}

// NewStreamer creates a streamer on top of the given sink.
func NewStreamer(sink audioio.Sink, logger *slog.Logger, opts ...Option) *Streamer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Streamer{
		sink:          sink,
		logger:        logger,
		meterInterval: DefaultMeterInterval,
		stopCh:        make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnVolume sets the metering callback. It fires at a fixed interval,
// independent of chunk boundaries, with zero volume when idle.
func (s *Streamer) OnVolume(fn func(Volume)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onVolume = fn
}

// Enqueue appends PCM16 bytes after all previously enqueued audio.
// The first call acquires the output device.
func (s *Streamer) Enqueue(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("playback: streamer closed")
	}

	if !s.started {
		if err := s.sink.Start(context.Background()); err != nil {
			return fmt.Errorf("playback: %w", err)
		}
		s.started = true
		go s.playLoop()
		go s.meterLoop()
	}

	s.queue = append(s.queue, audioio.BytesToSamples(pcm))
	s.cond.Signal()
	return nil
}

// Stop immediately discards all buffered and scheduled-but-unplayed audio
// and halts output. The streamer stays usable; the next Enqueue resumes
// playback. Safe to call when already stopped or never started.
func (s *Streamer) Stop() {
	s.mu.Lock()
	s.queue = nil
	s.epoch++
	s.playing = nil
	started := s.started
	s.mu.Unlock()

	if started {
		if err := s.sink.Clear(); err != nil {
			s.logger.Warn("playback: clear failed", "error", err)
		}
	}
}

// Close releases the output device. The streamer cannot be reused.
func (s *Streamer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.queue = nil
	s.cond.Broadcast()
	close(s.stopCh)
	started := s.started
	s.mu.Unlock()

	if started {
		return s.sink.Close()
	}
	return nil
}

// playLoop pops chunks in arrival order and writes them to the sink.
// Sink writes block on the device buffer, which is what keeps playback
// gapless and sequential.
func (s *Streamer) playLoop() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}

		samples := s.queue[0]
		s.queue = s.queue[1:]
		epoch := s.epoch
		s.playing = samples
		s.lastPlay = time.Now()
		s.mu.Unlock()

		chunk := audioio.AudioChunk{
			Samples:    samples,
			SampleRate: s.sink.Config().SampleRate,
			Channels:   s.sink.Config().Channels,
		}

		s.mu.Lock()
		stale := epoch != s.epoch
		s.mu.Unlock()
		if stale {
			// Flushed while we were dequeuing; drop the chunk.
			continue
		}

		if err := s.sink.Write(context.Background(), chunk); err != nil {
			s.logger.Warn("playback: write failed", "error", err)
		}
	}
}

// meterLoop publishes a volume sample at a fixed interval, computed from
// the most recently scheduled chunk.
func (s *Streamer) meterLoop() {
	ticker := time.NewTicker(s.meterInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.mu.Lock()
			fn := s.onVolume
			window := s.playing
			rate := s.sink.Config().SampleRate
			// The window counts as playing for its own duration after it
			// was handed to the device, plus a tick of slack.
			windowDur := time.Duration(float64(len(window)) / float64(rate) * float64(time.Second))
			fresh := time.Since(s.lastPlay) < windowDur+2*s.meterInterval || len(s.queue) > 0
			s.mu.Unlock()

			if fn == nil {
				continue
			}

			var v Volume
			if len(window) > 0 && fresh {
				v = Volume{RMS: audioio.RMS(window), Peak: audioio.Peak(window)}
			}
			fn(v)
		}
	}
}
