package chat

import (
	"context"

	chatstore "github.com/samsaffron/orchat/internal/chat"
	"github.com/samsaffron/orchat/internal/llm"
	"github.com/samsaffron/orchat/internal/session"
)

// Backend is the session surface the chat UI drives. *session.Session
// implements it.
type Backend interface {
	Submit(ctx context.Context, text string) (<-chan session.Update, error)
	Cancel() bool
	Clear() error
	Transcript() []chatstore.Turn
	Status() chatstore.Status

	HasCredential() bool
	SaveCredential(ctx context.Context, key string) error
	ClearCredential(ctx context.Context) error
	CredentialRequests() <-chan struct{}

	Models() []llm.ModelDescriptor
	RefreshModels(ctx context.Context) []llm.ModelDescriptor
	SelectModel(id string) error
	SelectedModel() (llm.ModelDescriptor, bool)
}

var _ Backend = (*session.Session)(nil)
