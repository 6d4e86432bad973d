package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFreeModelsFiltersAndCaps(t *testing.T) {
	var entries []string
	entries = append(entries, `{"id":"openai/gpt-4o","name":"GPT-4o"}`)
	entries = append(entries, `{"id":"meta/llama:free"}`)
	for i := 0; i < 25; i++ {
		entries = append(entries, fmt.Sprintf(`{"id":"vendor/model-%02d:free","name":"Model %02d"}`, i, i))
	}

	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		fmt.Fprintf(w, `{"data":[%s]}`, strings.Join(entries, ","))
	}))
	defer server.Close()

	models := newTestClient(server.URL).FreeModels(context.Background(), "sk-or-test", DefaultModelLimit)
	if len(models) != 20 {
		t.Fatalf("len=%d, want 20", len(models))
	}
	if auth != "Bearer sk-or-test" {
		t.Fatalf("authorization=%q", auth)
	}
	if models[0].ID != "meta/llama:free" || models[0].Name != "meta/llama:free" {
		t.Fatalf("first=%+v, want id used as name", models[0])
	}
	if models[1].Name != "Model 00" {
		t.Fatalf("second name=%q, want %q", models[1].Name, "Model 00")
	}
	for _, m := range models {
		if !strings.HasSuffix(m.ID, FreeSuffix) {
			t.Fatalf("non-free model %q in result", m.ID)
		}
	}
}

func TestFreeModelsFailureYieldsEmpty(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":{"message":"bad key"}}`},
		{name: "bad json", status: http.StatusOK, body: `{"data":`},
		{name: "no free models", status: http.StatusOK, body: `{"data":[{"id":"openai/gpt-4o"}]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			defer server.Close()

			models := newTestClient(server.URL).FreeModels(context.Background(), "k", 0)
			if models == nil || len(models) != 0 {
				t.Fatalf("models=%v, want empty non-nil slice", models)
			}
		})
	}
}

func TestListModelsReturnsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"No auth credentials found"}}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).ListModels(context.Background(), "")
	if err == nil || err.Error() != "No auth credentials found" {
		t.Fatalf("err=%v, want API message", err)
	}
}

func TestFilterModels(t *testing.T) {
	models := []ModelDescriptor{
		{ID: "meta-llama/llama-3.3-70b-instruct:free", Name: "Llama 3.3 70B"},
		{ID: "google/gemma-3-27b-it:free", Name: "Gemma 3 27B"},
		{ID: "deepseek/deepseek-r1:free", Name: "DeepSeek R1"},
	}

	if got := FilterModels(models, ""); len(got) != len(models) {
		t.Fatalf("empty query returned %d models", len(got))
	}
	got := FilterModels(models, "gemma")
	if len(got) != 1 || got[0].ID != "google/gemma-3-27b-it:free" {
		t.Fatalf("FilterModels(gemma)=%+v", got)
	}
	if got := FilterModels(models, "zzzz"); len(got) != 0 {
		t.Fatalf("FilterModels(zzzz)=%+v, want none", got)
	}
}
