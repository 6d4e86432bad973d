package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// ChatRequest is a chat completion request as received by FakeOpenRouter.
type ChatRequest struct {
	Model    string `json:"model"`
	Stream   bool   `json:"stream"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Authorization string `json:"-"`
}

// FakeOpenRouter is an httptest server speaking the subset of the OpenRouter
// API orchat uses: GET /models and streaming POST /chat/completions.
type FakeOpenRouter struct {
	*httptest.Server

	// Models is the JSON body served by /models.
	Models string
	// Chat handles /chat/completions after the request was recorded.
	// The default replies with Deltas as SSE data lines.
	Chat   http.HandlerFunc
	Deltas []string

	mu       sync.Mutex
	requests []ChatRequest
}

// NewFakeOpenRouter starts a server that is closed when the test ends.
func NewFakeOpenRouter(t *testing.T) *FakeOpenRouter {
	t.Helper()
	f := &FakeOpenRouter{
		Models: `{"data":[{"id":"paid/model","name":"Paid"},{"id":"meta/llama:free","name":"Llama"},{"id":"google/gemma:free"}]}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, f.Models)
	})
	mux.HandleFunc("POST /chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req.Authorization = r.Header.Get("Authorization")
		f.mu.Lock()
		f.requests = append(f.requests, req)
		handler := f.Chat
		f.mu.Unlock()

		if handler != nil {
			handler(w, r)
			return
		}
		WriteSSE(w, f.Deltas...)
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// Requests returns the chat requests received so far.
func (f *FakeOpenRouter) Requests() []ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ChatRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// WriteSSE writes one data line per delta followed by the [DONE] sentinel.
func WriteSSE(w http.ResponseWriter, deltas ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, d := range deltas {
		payload, _ := json.Marshal(map[string]any{
			"choices": []any{map[string]any{"delta": map[string]string{"content": d}}},
		})
		fmt.Fprintf(w, "data: %s\n\n", payload)
		if fl, ok := w.(http.Flusher); ok {
			fl.Flush()
		}
	}
	io.WriteString(w, "data: [DONE]\n\n")
}
