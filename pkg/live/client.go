// Package live implements the client side of the Gemini Live bidirectional
// streaming protocol: one logical websocket session accepting audio frames
// and tool responses, emitting typed server events in delivery order.
package live

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// DefaultEndpoint is the Gemini Live websocket endpoint.
	DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// InputMimeType describes the audio frames sent upstream.
	InputMimeType = "audio/pcm;rate=16000"

	handshakeTimeout = 10 * time.Second
)

// Common errors returned by the client.
var (
	ErrAlreadyConnecting = errors.New("live: connect already in progress")
	ErrAlreadyConnected  = errors.New("live: already connected")
	ErrNotConnected      = errors.New("live: not connected")
)

type state int

const (
	stateDisconnected state = iota
	stateConnecting
	stateConnected
)

// Handlers groups the typed event callbacks, one per protocol event kind.
// Handlers are invoked synchronously from a single goroutine, in the order
// the server produced the events.
type Handlers struct {
	OnOpen                func()
	OnClose               func()
	OnError               func(err error)
	OnAudio               func(pcm []byte)
	OnInterrupted         func()
	OnInputTranscription  func(text string, isFinal bool)
	OnOutputTranscription func(text string, isFinal bool)
	OnContent             func(delta ContentDelta)
	OnToolCall            func(req ToolCallRequest)
	OnTurnComplete        func()
}

// Client owns the single logical connection to the Live service.
type Client struct {
	apiKey   string
	endpoint string
	logger   *slog.Logger

	mu         sync.Mutex
	st         state
	generation string
	ws         *websocket.Conn
	handlers   Handlers

	// writeMu serializes websocket writes; gorilla allows one writer.
	writeMu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the Live websocket endpoint (used by tests).
func WithEndpoint(url string) Option {
	return func(c *Client) { c.endpoint = url }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a Live client. The API key is appended to the endpoint
// as a query parameter, the authentication scheme the Live API uses.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:   apiKey,
		endpoint: DefaultEndpoint,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetHandlers installs the event callbacks. Call before Connect.
func (c *Client) SetHandlers(h Handlers) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = h
}

// Generation returns the token identifying the current session.
// Events from superseded sessions are never delivered.
func (c *Client) Generation() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// IsConnected reports whether the session is open and ready for Send.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st == stateConnected
}

// Connect opens one logical session and sends the setup message.
// It fails with ErrAlreadyConnecting or ErrAlreadyConnected if a previous
// connect has not settled. Any still-open prior socket is force-closed
// first so two live sessions never race.
func (c *Client) Connect(ctx context.Context, cfg SessionConfig) error {
	c.mu.Lock()
	switch c.st {
	case stateConnecting:
		c.mu.Unlock()
		return ErrAlreadyConnecting
	case stateConnected:
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.st = stateConnecting
	gen := uuid.NewString()
	c.generation = gen
	prior := c.ws
	c.ws = nil
	handlers := c.handlers
	c.mu.Unlock()

	// Disconnect-before-reconnect: a superseded socket must not outlive us.
	if prior != nil {
		_ = prior.Close()
	}

	url := c.endpoint
	if c.apiKey != "" {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url = fmt.Sprintf("%s%skey=%s", url, sep, c.apiKey)
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	header := make(http.Header)
	header.Set("Content-Type", "application/json")

	ws, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		c.settle(gen, stateDisconnected)
		return fmt.Errorf("live: dial: %w", err)
	}

	c.mu.Lock()
	if c.generation != gen {
		// A disconnect raced the dial; drop the fresh socket.
		c.mu.Unlock()
		_ = ws.Close()
		return ErrNotConnected
	}
	c.ws = ws
	c.mu.Unlock()

	if err := c.writeJSON(ws, cfg.setupPayload()); err != nil {
		_ = ws.Close()
		c.settle(gen, stateDisconnected)
		return fmt.Errorf("live: setup: %w", err)
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		_ = ws.Close()
		return ErrNotConnected
	}
	c.st = stateConnected
	c.mu.Unlock()

	c.logger.Info("live session connected", "generation", gen)

	if handlers.OnOpen != nil {
		handlers.OnOpen()
	}

	go c.readLoop(ws, gen, handlers)

	return nil
}

// Disconnect closes the session. Idempotent; no events are delivered after
// it returns, late reads from the old socket are dropped by generation.
func (c *Client) Disconnect() {
	c.mu.Lock()
	ws := c.ws
	c.ws = nil
	c.st = stateDisconnected
	c.generation = ""
	c.mu.Unlock()

	if ws != nil {
		_ = ws.Close()
	}
}

// SendAudioFrame sends one base64-encoded PCM16 frame.
// Returns ErrNotConnected if the session is not open.
func (c *Client) SendAudioFrame(data string) error {
	ws, err := c.connectedSocket()
	if err != nil {
		return err
	}

	msg := map[string]any{
		"realtime_input": map[string]any{
			"media_chunks": []map[string]any{
				{
					"data":      data,
					"mime_type": InputMimeType,
				},
			},
		},
	}
	return c.writeJSON(ws, msg)
}

// SendAudio is a convenience wrapper encoding raw PCM16 bytes.
func (c *Client) SendAudio(pcm []byte) error {
	return c.SendAudioFrame(base64.StdEncoding.EncodeToString(pcm))
}

// SendToolResponse sends one aggregated tool response message.
func (c *Client) SendToolResponse(responses []FunctionResponse) error {
	ws, err := c.connectedSocket()
	if err != nil {
		return err
	}

	msg := map[string]any{
		"tool_response": map[string]any{
			"function_responses": responses,
		},
	}
	return c.writeJSON(ws, msg)
}

func (c *Client) connectedSocket() (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st != stateConnected || c.ws == nil {
		return nil, ErrNotConnected
	}
	return c.ws, nil
}

func (c *Client) writeJSON(ws *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteJSON(v)
}

// settle moves the state machine out of connecting if this attempt still
// owns the session.
func (c *Client) settle(gen string, to state) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation == gen {
		c.st = to
	}
}

// current reports whether gen still identifies the live session.
func (c *Client) current(gen string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation == gen
}

func (c *Client) readLoop(ws *websocket.Conn, gen string, h Handlers) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !c.current(gen) {
				// Superseded or explicitly disconnected; stay silent.
				return
			}

			c.mu.Lock()
			c.st = stateDisconnected
			c.ws = nil
			c.mu.Unlock()

			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				if h.OnClose != nil {
					h.OnClose()
				}
			} else {
				c.logger.Warn("live session read failed", "error", err)
				if h.OnError != nil {
					h.OnError(err)
				}
			}
			return
		}

		if !c.current(gen) {
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("live: unparseable server message", "error", err)
			continue
		}

		c.dispatch(&msg, h)
	}
}

// dispatch fans one server message out to the typed handlers, preserving
// the order the fields appear in a model turn: audio and text first, then
// transcriptions, then turn completion.
func (c *Client) dispatch(msg *serverMessage, h Handlers) {
	if msg.SetupComplete != nil {
		c.logger.Debug("live session setup complete")
		return
	}

	if msg.ToolCall != nil {
		if h.OnToolCall != nil {
			h.OnToolCall(*msg.ToolCall)
		}
		return
	}

	if msg.ToolCallCancellation != nil {
		c.logger.Debug("live: tool call cancelled", "ids", msg.ToolCallCancellation.IDs)
		return
	}

	sc := msg.ServerContent
	if sc == nil {
		return
	}

	if sc.Interrupted {
		if h.OnInterrupted != nil {
			h.OnInterrupted()
		}
		return
	}

	if sc.ModelTurn != nil {
		var textParts []string
		for _, part := range sc.ModelTurn.Parts {
			if part.InlineData != nil && strings.HasPrefix(part.InlineData.MimeType, "audio/pcm") {
				pcm, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
				if err == nil && len(pcm) > 0 && h.OnAudio != nil {
					h.OnAudio(pcm)
				}
				continue
			}
			if part.Text != "" {
				textParts = append(textParts, part.Text)
			}
		}

		var chunks []GroundingChunk
		if sc.GroundingMetadata != nil {
			chunks = sc.GroundingMetadata.GroundingChunks
		}
		if (len(textParts) > 0 || len(chunks) > 0) && h.OnContent != nil {
			h.OnContent(ContentDelta{
				Text:            strings.Join(textParts, " "),
				GroundingChunks: chunks,
			})
		}
	}

	if sc.InputTranscription != nil && h.OnInputTranscription != nil {
		h.OnInputTranscription(sc.InputTranscription.Text, sc.InputTranscription.Finished)
	}

	if sc.OutputTranscription != nil && h.OnOutputTranscription != nil {
		h.OnOutputTranscription(sc.OutputTranscription.Text, sc.OutputTranscription.Finished)
	}

	if sc.TurnComplete && h.OnTurnComplete != nil {
		h.OnTurnComplete()
	}
}
