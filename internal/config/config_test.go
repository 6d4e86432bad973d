package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	want := Defaults()
	if cfg.BaseURL != want.BaseURL {
		t.Fatalf("base_url=%q, want %q", cfg.BaseURL, want.BaseURL)
	}
	if cfg.AppTitle != "AI Chat Demo" || cfg.AppURL != "http://localhost:5174" {
		t.Fatalf("app info=%q/%q", cfg.AppURL, cfg.AppTitle)
	}
	if cfg.MaxModels != 20 {
		t.Fatalf("max_models=%d, want 20", cfg.MaxModels)
	}
	if cfg.CatalogTimeout != 10*time.Second {
		t.Fatalf("catalog_timeout=%s, want 10s", cfg.CatalogTimeout)
	}
	if cfg.ResolvedAPIKey != "" {
		t.Fatalf("api key=%q, want empty", cfg.ResolvedAPIKey)
	}
}

func TestLoadFileOverridesAndEnvKey(t *testing.T) {
	t.Setenv("MY_OR_KEY", "sk-or-from-env")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `base_url: https://gateway.example.com/api/v1/
model: meta/llama:free
max_models: 5
catalog_timeout: 3s
api_key: ${MY_OR_KEY}
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if cfg.BaseURL != "https://gateway.example.com/api/v1" {
		t.Fatalf("base_url=%q", cfg.BaseURL)
	}
	if cfg.Model != "meta/llama:free" || cfg.MaxModels != 5 {
		t.Fatalf("model=%q max_models=%d", cfg.Model, cfg.MaxModels)
	}
	if cfg.CatalogTimeout != 3*time.Second {
		t.Fatalf("catalog_timeout=%s, want 3s", cfg.CatalogTimeout)
	}
	if cfg.ResolvedAPIKey != "sk-or-from-env" {
		t.Fatalf("resolved key=%q", cfg.ResolvedAPIKey)
	}
}

func TestLoadFallsBackToOpenRouterEnv(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("OPENROUTER_API_KEY", "sk-or-fallback")
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.ResolvedAPIKey != "sk-or-fallback" {
		t.Fatalf("resolved key=%q, want fallback", cfg.ResolvedAPIKey)
	}
}

func TestSaveNeverWritesKey(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Defaults()
	cfg.Model = "google/gemma:free"
	cfg.APIKey = "sk-or-secret"
	cfg.ResolvedAPIKey = "sk-or-secret"
	if err := Save(&cfg); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	path, _ := GetConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved config: %v", err)
	}
	if strings.Contains(string(data), "sk-or-secret") {
		t.Fatalf("saved config contains the API key:\n%s", data)
	}
	if !strings.Contains(string(data), "google/gemma:free") {
		t.Fatalf("saved config missing model:\n%s", data)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Model != cfg.Model {
		t.Fatalf("reloaded model=%q, want %q", loaded.Model, cfg.Model)
	}
}

func TestResolveValue(t *testing.T) {
	t.Setenv("ORCHAT_TEST_VALUE", "resolved")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"literal", "sk-or-literal", "sk-or-literal"},
		{"braced env", "${ORCHAT_TEST_VALUE}", "resolved"},
		{"bare env", "$ORCHAT_TEST_VALUE", "resolved"},
		{"unset env", "${ORCHAT_TEST_UNSET}", ""},
		{"trims", "  spaced  ", "spaced"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveValue(tc.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("ResolveValue(%q)=%q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestResolveValueCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	got, err := ResolveValue("$(echo sk-or-cmd)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "sk-or-cmd" {
		t.Fatalf("got %q, want %q", got, "sk-or-cmd")
	}
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("ORCHAT_TEST_KEY", "sk-or-env")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"literal", "sk-or-literal", "sk-or-literal", nil},
		{"env", "$ORCHAT_TEST_KEY", "sk-or-env", nil},
		{"bearer prefix", "Bearer sk-or-pasted", "sk-or-pasted", nil},
		{"lowercase bearer", "bearer  sk-or-pasted", "sk-or-pasted", nil},
		{"srv rejected", "srv://_openrouter._tcp.example.com", "", ErrSRVNotAllowed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveAPIKey(tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err=%v, want %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Fatalf("ResolveAPIKey(%q)=%q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestResolveBaseURL(t *testing.T) {
	t.Setenv("ORCHAT_TEST_BASE", "http://127.0.0.1:8080/api/v1/")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"empty", "", "", false},
		{"https", "https://openrouter.ai/api/v1/", "https://openrouter.ai/api/v1", false},
		{"env", "${ORCHAT_TEST_BASE}", "http://127.0.0.1:8080/api/v1", false},
		{"no scheme", "openrouter.ai/api/v1", "", true},
		{"wrong scheme", "ftp://openrouter.ai", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveBaseURL(tc.input)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err=%v, wantErr %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Fatalf("ResolveBaseURL(%q)=%q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestLoadFileRejectsSRVKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("api_key: srv://_openrouter._tcp.example.com\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OPENROUTER_API_KEY", "")

	_, err := LoadFile(path)
	if !errors.Is(err, ErrSRVNotAllowed) {
		t.Fatalf("err=%v, want ErrSRVNotAllowed", err)
	}
}

func TestSetValueKeepsOtherEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	original := "# my settings\napi_key: ${ORCHAT_TEST_SECRET}\nmodel: meta/llama:free # current\nmax_models: 5\n"
	if err := os.WriteFile(path, []byte(original), 0600); err != nil {
		t.Fatal(err)
	}

	if err := SetValue(path, "model", "google/gemma:free"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	for _, want := range []string{"# my settings", "api_key: ${ORCHAT_TEST_SECRET}", "model: google/gemma:free", "max_models: 5"} {
		if !strings.Contains(got, want) {
			t.Fatalf("config=%q, missing %q", got, want)
		}
	}
	if strings.Contains(got, "meta/llama:free") {
		t.Fatalf("config=%q still holds the old model", got)
	}
}

func TestSetValueCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := SetValue(path, "model", "google/gemma:free"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Model != "google/gemma:free" {
		t.Fatalf("model=%q, want google/gemma:free", cfg.Model)
	}
}
