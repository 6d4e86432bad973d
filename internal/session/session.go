// Package session ties the credential slot, model catalog, transcript store
// and streaming client together for one interactive chat.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samsaffron/orchat/internal/chat"
	"github.com/samsaffron/orchat/internal/credentials"
	"github.com/samsaffron/orchat/internal/llm"
)

// ErrUnknownModel is returned when selecting a model that is not in the catalog.
var ErrUnknownModel = errors.New("model is not in the catalog")

const defaultCatalogTimeout = 10 * time.Second

// Client is the subset of the OpenRouter client a session needs.
type Client interface {
	Send(ctx context.Context, req llm.Request) (llm.Stream, error)
	FreeModels(ctx context.Context, credential string, limit int) []llm.ModelDescriptor
}

// Options configures a Session.
type Options struct {
	Slot   credentials.Slot
	Client Client

	// Credential is used when the slot is empty, typically from config or env.
	Credential string
	// PreferredModel is selected after a catalog refresh when it is present.
	PreferredModel string
	ModelLimit     int
	CatalogTimeout time.Duration
	Logger         *slog.Logger
}

// Session is the state of one chat: credential, catalog, selection,
// transcript and the cancel handle of the in-flight request.
type Session struct {
	slot           credentials.Slot
	client         Client
	store          *chat.Store
	logger         *slog.Logger
	preferred      string
	modelLimit     int
	catalogTimeout time.Duration

	credentialRequests chan struct{}

	mu         sync.Mutex
	credential string
	models     []llm.ModelDescriptor
	selected   string
	cancel     context.CancelFunc
	flight     string
}

// New builds a Session and reads the stored credential once.
func New(ctx context.Context, opts Options) (*Session, error) {
	if opts.Slot == nil {
		return nil, fmt.Errorf("session: credential slot is required")
	}
	if opts.Client == nil {
		return nil, fmt.Errorf("session: client is required")
	}

	s := &Session{
		slot:               opts.Slot,
		client:             opts.Client,
		store:              chat.NewStore(),
		logger:             opts.Logger,
		preferred:          strings.TrimSpace(opts.PreferredModel),
		modelLimit:         opts.ModelLimit,
		catalogTimeout:     opts.CatalogTimeout,
		credentialRequests: make(chan struct{}, 1),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.modelLimit <= 0 {
		s.modelLimit = llm.DefaultModelLimit
	}
	if s.catalogTimeout <= 0 {
		s.catalogTimeout = defaultCatalogTimeout
	}

	stored, err := s.slot.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	s.credential = strings.TrimSpace(stored)
	if s.credential == "" {
		s.credential = strings.TrimSpace(opts.Credential)
	}
	return s, nil
}

// Credential returns the in-memory API key.
func (s *Session) Credential() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential
}

func (s *Session) HasCredential() bool {
	return s.Credential() != ""
}

// SaveCredential persists key and refreshes the catalog with it.
func (s *Session) SaveCredential(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return llm.ErrCredentialMissing
	}
	if err := s.slot.Save(ctx, key); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}

	s.mu.Lock()
	s.credential = key
	s.mu.Unlock()

	s.RefreshModels(ctx)
	return nil
}

// ClearCredential removes the stored key and forgets the catalog.
func (s *Session) ClearCredential(ctx context.Context) error {
	if err := s.slot.Delete(ctx); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = ""
	s.models = nil
	s.selected = ""
	return nil
}

// CredentialRequests signals whenever a submit was refused for lack of a key.
// Signals coalesce: at most one is pending at a time.
func (s *Session) CredentialRequests() <-chan struct{} {
	return s.credentialRequests
}

func (s *Session) requestCredential() {
	select {
	case s.credentialRequests <- struct{}{}:
	default:
	}
}

// RefreshModels reloads the free model catalog. Nothing is selected when the
// catalog comes back empty.
func (s *Session) RefreshModels(ctx context.Context) []llm.ModelDescriptor {
	ctx, cancel := context.WithTimeout(ctx, s.catalogTimeout)
	defer cancel()

	models := s.client.FreeModels(ctx, s.Credential(), s.modelLimit)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.models = models
	if s.selected == "" && len(models) > 0 {
		s.selected = models[0].ID
		if s.preferred != "" && indexOf(models, s.preferred) >= 0 {
			s.selected = s.preferred
		}
	}
	s.logger.Debug("model catalog refreshed", "count", len(models), "selected", s.selected)

	out := make([]llm.ModelDescriptor, len(models))
	copy(out, models)
	return out
}

// Models returns the current catalog.
func (s *Session) Models() []llm.ModelDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]llm.ModelDescriptor, len(s.models))
	copy(out, s.models)
	return out
}

// SelectModel makes id the model used by the next submit.
func (s *Session) SelectModel(id string) error {
	id = strings.TrimSpace(id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if indexOf(s.models, id) < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}
	s.selected = id
	return nil
}

// SelectedModel returns the selected model, if any.
func (s *Session) SelectedModel() (llm.ModelDescriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected == "" {
		return llm.ModelDescriptor{}, false
	}
	if i := indexOf(s.models, s.selected); i >= 0 {
		return s.models[i], true
	}
	return llm.ModelDescriptor{ID: s.selected, Name: s.selected}, true
}

// Transcript returns a copy of the conversation so far.
func (s *Session) Transcript() []chat.Turn {
	return s.store.Turns()
}

// Status reports the request lifecycle state.
func (s *Session) Status() chat.Status {
	return s.store.Status()
}

// Clear empties the transcript. It returns chat.ErrBusy while a request is in flight.
func (s *Session) Clear() error {
	return s.store.Clear()
}

// Close cancels any in-flight request.
func (s *Session) Close() error {
	s.Cancel()
	return nil
}

func indexOf(models []llm.ModelDescriptor, id string) int {
	for i, m := range models {
		if m.ID == id {
			return i
		}
	}
	return -1
}
