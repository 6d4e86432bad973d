package chat

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrorPrefix is prepended to the content of a turn whose request failed.
const ErrorPrefix = "Error: "

var (
	ErrEmptyMessage      = errors.New("message is empty")
	ErrBusy              = errors.New("a request is already in flight")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// transitions lists the allowed status changes. Same-state moves are always allowed.
var transitions = map[Status][]Status{
	StatusIdle:      {StatusSubmitted},
	StatusSubmitted: {StatusStreaming, StatusIdle},
	StatusStreaming: {StatusIdle},
}

// Store holds the ordered transcript and the request status.
// It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	turns    []Turn
	status   Status
	inFlight string
}

// NewStore returns an empty, idle store.
func NewStore() *Store {
	return &Store{}
}

// AppendUserTurn appends a user turn followed by an empty assistant turn
// answered by model, and claims the single flight. It returns the assistant
// turn id, which is the target for streamed deltas.
func (s *Store) AppendUserTurn(text, model string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Busy() {
		return "", ErrBusy
	}

	user := newTurn(RoleUser, text)
	assistant := newTurn(RoleAssistant, "")
	assistant.Model = model
	s.turns = append(s.turns, user, assistant)
	s.status = StatusSubmitted
	s.inFlight = assistant.ID
	return assistant.ID, nil
}

// AppendDelta appends text to the assistant turn with the given id.
// Unknown ids and user turns are ignored.
func (s *Store) AppendDelta(turnID, text string) {
	if text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexLocked(turnID); i >= 0 && s.turns[i].Role == RoleAssistant {
		s.turns[i].Content += text
	}
}

// SetError replaces the content of the assistant turn with an error message.
func (s *Store) SetError(turnID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexLocked(turnID); i >= 0 && s.turns[i].Role == RoleAssistant {
		s.turns[i].Content = ErrorPrefix + message
		s.turns[i].Failed = true
	}
}

// Clear empties the transcript. It is rejected while a request is in flight.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Busy() {
		return ErrBusy
	}
	s.turns = nil
	return nil
}

// SetStatus moves the request lifecycle to next.
func (s *Store) SetStatus(next Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setStatusLocked(next)
}

// FinishFlight returns the store to idle, but only when turnID is still the
// in-flight turn. It reports whether it did anything.
func (s *Store) FinishFlight(turnID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight == "" || s.inFlight != turnID {
		return false
	}
	_ = s.setStatusLocked(StatusIdle)
	return true
}

// BeginStreaming moves submitted to streaming for the in-flight turn.
// Any other state is left alone.
func (s *Store) BeginStreaming(turnID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight != turnID || s.status != StatusSubmitted {
		return false
	}
	s.status = StatusStreaming
	return true
}

func (s *Store) setStatusLocked(next Status) error {
	if next == s.status {
		return nil
	}
	allowed := false
	for _, candidate := range transitions[s.status] {
		if candidate == next {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.status, next)
	}
	s.status = next
	if next == StatusIdle {
		s.inFlight = ""
	}
	return nil
}

func (s *Store) indexLocked(turnID string) int {
	// The target is almost always the last turn.
	for i := len(s.turns) - 1; i >= 0; i-- {
		if s.turns[i].ID == turnID {
			return i
		}
	}
	return -1
}

// Status returns the current request status.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// InFlight returns the id of the assistant turn being streamed, or "".
func (s *Store) InFlight() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Len returns the number of turns.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Turns returns a copy of the transcript.
func (s *Store) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Turn returns the turn with the given id.
func (s *Store) Turn(turnID string) (Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexLocked(turnID); i >= 0 {
		return s.turns[i], true
	}
	return Turn{}, false
}

// Context returns the turns worth sending back to the model as history.
// Failed turns and empty assistant placeholders are left out.
func (s *Store) Context() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Turn, 0, len(s.turns))
	for _, t := range s.turns {
		if t.Failed {
			continue
		}
		if t.Role == RoleAssistant && t.Content == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}
