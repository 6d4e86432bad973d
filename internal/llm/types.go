package llm

// Role of a message on the wire.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one role/content pair sent as conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request describes a single chat-completion exchange.
type Request struct {
	History    []Message
	Text       string
	Credential string
	Model      string
}

// EventType identifies the kind of stream event.
type EventType int

const (
	// EventDelta carries a fragment of assistant text.
	EventDelta EventType = iota
	// EventFailure is terminal; Text holds a human-readable message.
	EventFailure
)

func (t EventType) String() string {
	switch t {
	case EventDelta:
		return "delta"
	case EventFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Event is a single item produced by a Stream.
type Event struct {
	Type EventType
	Text string
	Err  error
}

// Stream is a finite, non-restartable sequence of events.
// Recv returns io.EOF once the sequence has ended, including after cancellation.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// ModelInfo is a catalog entry as returned by the models endpoint.
type ModelInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	Description   string `json:"description,omitempty"`
	ContextLength int    `json:"context_length,omitempty"`
}

// ModelDescriptor is a selectable model.
type ModelDescriptor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
