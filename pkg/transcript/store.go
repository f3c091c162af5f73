// Package transcript folds the unordered stream of Live server events into
// an ordered, human-readable conversation log.
//
// Transcription events carry cumulative snapshots and replace the open
// turn's text; content events carry incremental deltas and append to it.
// This is a documented protocol assumption, not a heuristic.
package transcript

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rabbittyjenny-sketch/soulweaver/pkg/live"
)

// Role attributes a turn to one side of the conversation.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Turn is one utterance-unit in the conversation log.
// A turn is open while IsFinal is false; once final it is never mutated.
type Turn struct {
	ID        string
	Role      Role
	Text      string
	IsFinal   bool
	Timestamp time.Time

	// ToolUseRequest is set at most once, on agent turns only.
	ToolUseRequest *live.ToolCallRequest

	// GroundingChunks is strictly append-only.
	GroundingChunks []live.GroundingChunk
}

// Store owns the conversation log. All mutation goes through the narrow
// API below; at most one turn per role is open at any time.
type Store struct {
	mu    sync.Mutex
	turns []Turn
	now   func() time.Time
}

// NewStore creates an empty conversation log.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// AppendTranscription folds a cumulative transcription snapshot into the
// log. If the most recent turn of the role is open its text is replaced
// wholesale; otherwise a new turn is appended.
func (s *Store) AppendTranscription(role Role, text string, isFinal bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t := s.openTurnLocked(role); t != nil {
		t.Text = text
		t.IsFinal = isFinal
		return
	}

	s.appendLocked(Turn{Role: role, Text: text, IsFinal: isFinal})
}

// AppendContent folds an incremental content delta into the trailing open
// agent turn, appending text and citations; if no agent turn is open a new
// one is opened.
func (s *Store) AppendContent(delta live.ContentDelta) {
	if delta.Text == "" && len(delta.GroundingChunks) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t := s.openTurnLocked(RoleAgent); t != nil {
		t.Text += delta.Text
		t.GroundingChunks = append(t.GroundingChunks, delta.GroundingChunks...)
		return
	}

	s.appendLocked(Turn{
		Role:            RoleAgent,
		Text:            delta.Text,
		GroundingChunks: delta.GroundingChunks,
	})
}

// AttachToolCall attaches a tool-call request to the trailing open agent
// turn without altering its text, opening an empty agent turn if none is
// open.
func (s *Store) AttachToolCall(req live.ToolCallRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t := s.openTurnLocked(RoleAgent); t != nil {
		t.ToolUseRequest = &req
		return
	}

	s.appendLocked(Turn{Role: RoleAgent, ToolUseRequest: &req})
}

// CompleteTurn marks the trailing turn final if it is open. No-op on an
// empty log or an already-final trailing turn.
func (s *Store) CompleteTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.turns) == 0 {
		return
	}
	s.turns[len(s.turns)-1].IsFinal = true
}

// Clear resets the log to empty.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
}

// Turns returns a copy of the log in order.
func (s *Store) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns in the log.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// openTurnLocked returns the most recent turn of the role if it is open.
// Only the trailing turn per role is ever considered; older turns are
// immutable history.
func (s *Store) openTurnLocked(role Role) *Turn {
	for i := len(s.turns) - 1; i >= 0; i-- {
		if s.turns[i].Role != role {
			continue
		}
		if s.turns[i].IsFinal {
			return nil
		}
		return &s.turns[i]
	}
	return nil
}

func (s *Store) appendLocked(t Turn) {
	t.ID = uuid.NewString()
	t.Timestamp = s.now()
	s.turns = append(s.turns, t)
}
