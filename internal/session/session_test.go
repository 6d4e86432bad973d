package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/samsaffron/orchat/internal/chat"
	"github.com/samsaffron/orchat/internal/credentials"
	"github.com/samsaffron/orchat/internal/llm"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeStream replays events from a channel and ends when its context does.
type fakeStream struct {
	ctx    context.Context
	events chan llm.Event
}

func (s *fakeStream) Recv() (llm.Event, error) {
	select {
	case ev, ok := <-s.events:
		if !ok {
			return llm.Event{}, io.EOF
		}
		return ev, nil
	case <-s.ctx.Done():
		return llm.Event{}, io.EOF
	}
}

func (s *fakeStream) Close() error { return nil }

type fakeClient struct {
	mu       sync.Mutex
	models   []llm.ModelDescriptor
	requests []llm.Request
	streams  []*fakeStream
	sendErr  error
}

func (c *fakeClient) Send(ctx context.Context, req llm.Request) (llm.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if c.sendErr != nil {
		return nil, c.sendErr
	}
	s := &fakeStream{ctx: ctx, events: make(chan llm.Event, 8)}
	c.streams = append(c.streams, s)
	return s, nil
}

func (c *fakeClient) FreeModels(ctx context.Context, credential string, limit int) []llm.ModelDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.ModelDescriptor, len(c.models))
	copy(out, c.models)
	return out
}

func (c *fakeClient) lastStream(t *testing.T) *fakeStream {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.streams) == 0 {
		t.Fatal("no stream was opened")
	}
	return c.streams[len(c.streams)-1]
}

func (c *fakeClient) requestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

var testModels = []llm.ModelDescriptor{
	{ID: "meta/llama:free", Name: "Llama"},
	{ID: "google/gemma:free", Name: "Gemma"},
}

func newTestSession(t *testing.T, client *fakeClient, credential string) *Session {
	t.Helper()
	s, err := New(context.Background(), Options{
		Slot:   credentials.NewMemorySlot(credential),
		Client: client,
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	s.RefreshModels(context.Background())
	return s
}

func drain(t *testing.T, updates <-chan Update) []Update {
	t.Helper()
	var out []Update
	timeout := time.After(5 * time.Second)
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return out
			}
			out = append(out, u)
		case <-timeout:
			t.Fatal("timed out waiting for updates")
		}
	}
}

func TestNewCredentialSources(t *testing.T) {
	client := &fakeClient{}
	ctx := context.Background()

	s, err := New(ctx, Options{Slot: credentials.NewMemorySlot("sk-stored"), Client: client, Credential: "sk-env"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if s.Credential() != "sk-stored" {
		t.Fatalf("credential=%q, want stored key", s.Credential())
	}

	s, err = New(ctx, Options{Slot: credentials.NewMemorySlot(""), Client: client, Credential: " sk-env "})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if s.Credential() != "sk-env" {
		t.Fatalf("credential=%q, want env fallback", s.Credential())
	}

	if _, err := New(ctx, Options{Client: client}); err == nil {
		t.Fatal("expected error without a slot")
	}
}

func TestRefreshModelsSelection(t *testing.T) {
	tests := []struct {
		name      string
		models    []llm.ModelDescriptor
		preferred string
		wantID    string
		wantOK    bool
	}{
		{"first entry", testModels, "", "meta/llama:free", true},
		{"preferred present", testModels, "google/gemma:free", "google/gemma:free", true},
		{"preferred missing", testModels, "other/model:free", "meta/llama:free", true},
		{"empty catalog", nil, "", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := New(context.Background(), Options{
				Slot:           credentials.NewMemorySlot("sk-test"),
				Client:         &fakeClient{models: tc.models},
				PreferredModel: tc.preferred,
			})
			if err != nil {
				t.Fatalf("New error: %v", err)
			}
			s.RefreshModels(context.Background())
			got, ok := s.SelectedModel()
			if ok != tc.wantOK || got.ID != tc.wantID {
				t.Fatalf("selected=%q (%v), want %q (%v)", got.ID, ok, tc.wantID, tc.wantOK)
			}
		})
	}
}

func TestRefreshKeepsExistingSelection(t *testing.T) {
	client := &fakeClient{models: testModels}
	s := newTestSession(t, client, "sk-test")
	if err := s.SelectModel("google/gemma:free"); err != nil {
		t.Fatalf("SelectModel error: %v", err)
	}
	s.RefreshModels(context.Background())
	if got, _ := s.SelectedModel(); got.ID != "google/gemma:free" {
		t.Fatalf("selected=%q, want google/gemma:free", got.ID)
	}
}

func TestSelectUnknownModel(t *testing.T) {
	s := newTestSession(t, &fakeClient{models: testModels}, "sk-test")
	err := s.SelectModel("nope/nope")
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("err=%v, want ErrUnknownModel", err)
	}
	if got, _ := s.SelectedModel(); got.ID != "meta/llama:free" {
		t.Fatalf("selection changed to %q", got.ID)
	}
}

func TestSubmitWithoutCredentialSignals(t *testing.T) {
	for _, text := range []string{"hello", "   "} {
		t.Run(fmt.Sprintf("%q", text), func(t *testing.T) {
			client := &fakeClient{models: testModels}
			s := newTestSession(t, client, "")

			updates, err := s.Submit(context.Background(), text)
			if !errors.Is(err, llm.ErrCredentialMissing) {
				t.Fatalf("err=%v, want ErrCredentialMissing", err)
			}
			if updates != nil {
				t.Fatal("expected no update channel")
			}
			select {
			case <-s.CredentialRequests():
			default:
				t.Fatal("expected a credential request signal")
			}
			if client.requestCount() != 0 {
				t.Fatalf("requests=%d, want 0", client.requestCount())
			}
			if len(s.Transcript()) != 0 {
				t.Fatalf("transcript grew to %d turns", len(s.Transcript()))
			}
			if s.Status() != chat.StatusIdle {
				t.Fatalf("status=%s, want idle", s.Status())
			}
		})
	}
}

func TestSubmitWithoutModel(t *testing.T) {
	s := newTestSession(t, &fakeClient{}, "sk-test")
	if _, err := s.Submit(context.Background(), "hello"); !errors.Is(err, llm.ErrNoModel) {
		t.Fatalf("err=%v, want ErrNoModel", err)
	}
}

func TestSubmitEmptyIsNoop(t *testing.T) {
	client := &fakeClient{models: testModels}
	s := newTestSession(t, client, "sk-test")
	if _, err := s.Submit(context.Background(), "  \n\t"); !errors.Is(err, chat.ErrEmptyMessage) {
		t.Fatalf("err=%v, want ErrEmptyMessage", err)
	}
	if len(s.Transcript()) != 0 || client.requestCount() != 0 {
		t.Fatal("empty input changed state")
	}
}

func TestSubmitStreamsIntoTranscript(t *testing.T) {
	client := &fakeClient{models: testModels}
	s := newTestSession(t, client, "sk-test")

	updates, err := s.Submit(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	stream := client.lastStream(t)
	stream.events <- llm.Event{Type: llm.EventDelta, Text: "Hel"}
	stream.events <- llm.Event{Type: llm.EventDelta, Text: "lo"}
	close(stream.events)

	got := drain(t, updates)
	if len(got) != 3 {
		t.Fatalf("updates=%d, want 3: %#v", len(got), got)
	}
	done, ok := got[2].(UpdateDone)
	if !ok || done.Cancelled {
		t.Fatalf("last update=%#v, want UpdateDone not cancelled", got[2])
	}

	turns := s.Transcript()
	if len(turns) != 2 {
		t.Fatalf("turns=%d, want 2", len(turns))
	}
	if turns[0].Role != chat.RoleUser || turns[0].Content != "hi" {
		t.Fatalf("user turn=%+v", turns[0])
	}
	if turns[1].Role != chat.RoleAssistant || turns[1].Content != "Hello" {
		t.Fatalf("assistant content=%q, want %q", turns[1].Content, "Hello")
	}
	if turns[1].Model != "meta/llama:free" {
		t.Fatalf("assistant model=%q, want meta/llama:free", turns[1].Model)
	}
	if s.Status() != chat.StatusIdle {
		t.Fatalf("status=%s, want idle", s.Status())
	}

	// The next request carries the finished exchange as history.
	updates, err = s.Submit(context.Background(), "again")
	if err != nil {
		t.Fatalf("second Submit error: %v", err)
	}
	close(client.lastStream(t).events)
	drain(t, updates)

	client.mu.Lock()
	req := client.requests[1]
	client.mu.Unlock()
	if len(req.History) != 2 || req.History[1].Content != "Hello" || req.History[1].Role != llm.RoleAssistant {
		t.Fatalf("history=%+v", req.History)
	}
	if req.Text != "again" || req.Model != "meta/llama:free" || req.Credential != "sk-test" {
		t.Fatalf("request=%+v", req)
	}
}

func TestSubmitWhileBusy(t *testing.T) {
	client := &fakeClient{models: testModels}
	s := newTestSession(t, client, "sk-test")

	updates, err := s.Submit(context.Background(), "first")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if _, err := s.Submit(context.Background(), "second"); !errors.Is(err, chat.ErrBusy) {
		t.Fatalf("err=%v, want ErrBusy", err)
	}
	if err := s.Clear(); !errors.Is(err, chat.ErrBusy) {
		t.Fatalf("Clear err=%v, want ErrBusy", err)
	}
	if client.requestCount() != 1 {
		t.Fatalf("requests=%d, want 1", client.requestCount())
	}

	close(client.lastStream(t).events)
	drain(t, updates)
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear after finish: %v", err)
	}
	if len(s.Transcript()) != 0 {
		t.Fatal("transcript not cleared")
	}
}

func TestCancelMidStream(t *testing.T) {
	client := &fakeClient{models: testModels}
	s := newTestSession(t, client, "sk-test")

	updates, err := s.Submit(context.Background(), "tell me a story")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	stream := client.lastStream(t)
	stream.events <- llm.Event{Type: llm.EventDelta, Text: "Once upon"}

	first := <-updates
	if d, ok := first.(UpdateDelta); !ok || d.Text != "Once upon" {
		t.Fatalf("first update=%#v", first)
	}
	if s.Status() != chat.StatusStreaming {
		t.Fatalf("status=%s, want streaming", s.Status())
	}

	if !s.Cancel() {
		t.Fatal("Cancel reported nothing to cancel")
	}
	if s.Status() != chat.StatusIdle {
		t.Fatalf("status=%s, want idle right after cancel", s.Status())
	}
	stream.events <- llm.Event{Type: llm.EventDelta, Text: " a time"}

	rest := drain(t, updates)
	done, ok := rest[len(rest)-1].(UpdateDone)
	if !ok || !done.Cancelled {
		t.Fatalf("last update=%#v, want cancelled UpdateDone", rest[len(rest)-1])
	}

	turns := s.Transcript()
	if turns[1].Content != "Once upon" {
		t.Fatalf("assistant content=%q, want partial text only", turns[1].Content)
	}
	if turns[1].Failed {
		t.Fatal("cancelled turn marked as failed")
	}
	if s.Cancel() {
		t.Fatal("second Cancel should report nothing to cancel")
	}
}

func TestCancelBeforeFirstDelta(t *testing.T) {
	client := &fakeClient{models: testModels}
	s := newTestSession(t, client, "sk-test")

	updates, err := s.Submit(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if s.Status() != chat.StatusSubmitted {
		t.Fatalf("status=%s, want submitted", s.Status())
	}
	s.Cancel()
	drain(t, updates)

	if s.Status() != chat.StatusIdle {
		t.Fatalf("status=%s, want idle", s.Status())
	}
	if got := s.Transcript()[1].Content; got != "" {
		t.Fatalf("assistant content=%q, want empty", got)
	}
}

func TestFailureBecomesErrorTurn(t *testing.T) {
	client := &fakeClient{models: testModels}
	s := newTestSession(t, client, "sk-test")

	updates, err := s.Submit(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	stream := client.lastStream(t)
	stream.events <- llm.Event{Type: llm.EventFailure, Text: "bad key"}
	close(stream.events)

	got := drain(t, updates)
	e, ok := got[0].(UpdateError)
	if !ok || e.Message != "Error: bad key" {
		t.Fatalf("first update=%#v, want UpdateError", got[0])
	}

	turn := s.Transcript()[1]
	if turn.Content != "Error: bad key" || !turn.Failed {
		t.Fatalf("turn=%+v", turn)
	}

	// Failed replies are not sent back as history.
	updates, err = s.Submit(context.Background(), "retry")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	close(client.lastStream(t).events)
	drain(t, updates)

	client.mu.Lock()
	history := client.requests[1].History
	client.mu.Unlock()
	if len(history) != 1 || history[0].Content != "hi" {
		t.Fatalf("history=%+v, want only the user turn", history)
	}
}

func TestSendErrorRecordedOnTurn(t *testing.T) {
	client := &fakeClient{models: testModels, sendErr: errors.New("boom")}
	s := newTestSession(t, client, "sk-test")

	if _, err := s.Submit(context.Background(), "hi"); err == nil {
		t.Fatal("expected error")
	}
	if s.Status() != chat.StatusIdle {
		t.Fatalf("status=%s, want idle", s.Status())
	}
	if got := s.Transcript()[1].Content; got != "Error: boom" {
		t.Fatalf("content=%q", got)
	}
}

func TestSaveAndClearCredential(t *testing.T) {
	client := &fakeClient{models: testModels}
	slot := credentials.NewMemorySlot("")
	s, err := New(context.Background(), Options{Slot: slot, Client: client})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	ctx := context.Background()

	if err := s.SaveCredential(ctx, "   "); !errors.Is(err, llm.ErrCredentialMissing) {
		t.Fatalf("err=%v, want ErrCredentialMissing", err)
	}
	if err := s.SaveCredential(ctx, " sk-or-new \n"); err != nil {
		t.Fatalf("SaveCredential error: %v", err)
	}
	if stored, _ := slot.Load(ctx); stored != "sk-or-new" {
		t.Fatalf("stored=%q", stored)
	}
	if len(s.Models()) != 2 {
		t.Fatalf("models=%d, want catalog refreshed", len(s.Models()))
	}

	if err := s.ClearCredential(ctx); err != nil {
		t.Fatalf("ClearCredential error: %v", err)
	}
	if s.HasCredential() || len(s.Models()) != 0 {
		t.Fatal("credential or catalog survived clear")
	}
	if _, ok := s.SelectedModel(); ok {
		t.Fatal("selection survived clear")
	}
	if stored, _ := slot.Load(ctx); stored != "" {
		t.Fatalf("slot still holds %q", stored)
	}
}
