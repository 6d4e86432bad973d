package chat

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message in the transcript.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	// Model is the model that answered an assistant turn.
	Model     string    `json:"model,omitempty"`
	Failed    bool      `json:"failed,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newTurn(role Role, content string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// Status is the lifecycle state of the active request.
type Status int

const (
	StatusIdle Status = iota
	StatusSubmitted
	StatusStreaming
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusSubmitted:
		return "submitted"
	case StatusStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// Busy reports whether a request is in flight.
func (s Status) Busy() bool {
	return s != StatusIdle
}
