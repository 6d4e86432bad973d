package session

import (
	"context"
	"strings"

	"github.com/samsaffron/orchat/internal/chat"
	"github.com/samsaffron/orchat/internal/llm"
)

// Update is a change pushed to the caller while a reply streams in.
// It is one of UpdateDelta, UpdateError or UpdateDone.
type Update interface {
	isUpdate()
}

// UpdateDelta carries text appended to the assistant turn.
type UpdateDelta struct {
	TurnID string
	Text   string
}

// UpdateError reports that the assistant turn now holds an error message.
type UpdateError struct {
	TurnID  string
	Message string
}

// UpdateDone is the last update of a flight. The channel closes after it.
type UpdateDone struct {
	TurnID    string
	Cancelled bool
}

func (UpdateDelta) isUpdate() {}
func (UpdateError) isUpdate() {}
func (UpdateDone) isUpdate()  {}

// Submit sends text with the conversation so far and streams the reply into
// the transcript. Callers must drain the returned channel until it is closed.
func (s *Session) Submit(ctx context.Context, text string) (<-chan Update, error) {
	credential := s.Credential()
	if credential == "" {
		s.requestCredential()
		return nil, llm.ErrCredentialMissing
	}
	if strings.TrimSpace(text) == "" {
		return nil, chat.ErrEmptyMessage
	}

	model, ok := s.SelectedModel()
	if !ok {
		return nil, llm.ErrNoModel
	}

	history := toMessages(s.store.Context())
	turnID, err := s.store.AppendUserTurn(text, model.ID)
	if err != nil {
		return nil, err
	}

	flightCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.flight = turnID
	s.mu.Unlock()

	s.logger.Debug("submitting message", "model", model.ID, "history", len(history))

	stream, err := s.client.Send(flightCtx, llm.Request{
		History:    history,
		Text:       text,
		Credential: credential,
		Model:      model.ID,
	})
	if err != nil {
		s.store.SetError(turnID, err.Error())
		s.finish(turnID)
		return nil, err
	}

	updates := make(chan Update, 16)
	go s.pump(flightCtx, turnID, stream, updates)
	return updates, nil
}

// Cancel aborts the in-flight request. Text received so far stays in the
// transcript. It reports whether there was anything to cancel.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	cancel, turnID := s.cancel, s.flight
	s.cancel = nil
	s.flight = ""
	s.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	s.store.FinishFlight(turnID)
	s.logger.Debug("request cancelled", "turn", turnID)
	return true
}

func (s *Session) pump(ctx context.Context, turnID string, stream llm.Stream, updates chan<- Update) {
	defer close(updates)
	defer stream.Close()

	for {
		ev, err := stream.Recv()
		if err != nil {
			break
		}

		var update Update
		if !s.apply(turnID, ev) {
			break
		}
		switch ev.Type {
		case llm.EventDelta:
			update = UpdateDelta{TurnID: turnID, Text: ev.Text}
		case llm.EventFailure:
			s.logger.Debug("request failed", "turn", turnID, "error", ev.Text)
			update = UpdateError{TurnID: turnID, Message: chat.ErrorPrefix + ev.Text}
		default:
			continue
		}

		select {
		case updates <- update:
		case <-ctx.Done():
		}
	}

	cancelled := ctx.Err() != nil
	s.finish(turnID)
	updates <- UpdateDone{TurnID: turnID, Cancelled: cancelled}
}

// apply writes ev into the transcript while the flight is still owned by
// turnID. It returns false once the flight was cancelled or replaced.
func (s *Session) apply(turnID string, ev llm.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flight != turnID {
		return false
	}
	switch ev.Type {
	case llm.EventDelta:
		s.store.BeginStreaming(turnID)
		s.store.AppendDelta(turnID, ev.Text)
	case llm.EventFailure:
		s.store.SetError(turnID, ev.Text)
	}
	return true
}

// finish releases the cancel handle and returns the store to idle, but only
// for the flight that still owns them.
func (s *Session) finish(turnID string) {
	s.mu.Lock()
	if s.flight == turnID {
		s.cancel()
		s.cancel = nil
		s.flight = ""
	}
	s.mu.Unlock()

	s.store.FinishFlight(turnID)
}

func toMessages(turns []chat.Turn) []llm.Message {
	out := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		role := llm.RoleUser
		if t.Role == chat.RoleAssistant {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: t.Content})
	}
	return out
}
