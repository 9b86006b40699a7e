package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"shortline/internal/quota"
	"shortline/internal/services"
)

func scriptResponse(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"message": map[string]any{"content": content},
				},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(scriptResponse(t, `{"ok":true}`))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckCodeFence(t *testing.T) {
	server := httptest.NewServer(scriptResponse(t, "```json\n{\"ok\":true}\n```"))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientDraftScript(t *testing.T) {
	const payload = `{"title":"Five Deep Sea Facts","description":"Facts about the deep sea.",` +
		`"tags":["ocean","facts"],"scenes":[{"narration":"The deep sea hides giants.",` +
		`"query":"deep sea submarine","seconds":6}]}`
	server := httptest.NewServer(scriptResponse(t, payload))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	script, err := client.DraftScript(context.Background(), "deep sea facts", "")
	if err != nil {
		t.Fatalf("DraftScript returned error: %v", err)
	}
	if script.Title != "Five Deep Sea Facts" {
		t.Fatalf("unexpected title %q", script.Title)
	}
	if len(script.Scenes) != 1 || script.Scenes[0].Query != "deep sea submarine" {
		t.Fatalf("unexpected scenes %#v", script.Scenes)
	}
}

func TestClientDraftScriptAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	_, err := client.DraftScript(context.Background(), "topic", "")
	if !errors.Is(err, services.ErrAuth) {
		t.Fatalf("expected auth marker, got %v", err)
	}
}

func TestClientDraftScriptQuotaCarriesResource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	_, err := client.DraftScript(context.Background(), "topic", "")
	if !errors.Is(err, services.ErrQuota) {
		t.Fatalf("expected quota marker, got %v", err)
	}
	resource, ok := services.Resource(err)
	if !ok || resource != quota.ResourceLLM {
		t.Fatalf("expected llm resource tag, got %q ok=%v", resource, ok)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		scriptResponse(t, `{"ok":true}`)(w, r)
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }))
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if len(slept) != 2 {
		t.Fatalf("expected 2 backoff sleeps, got %d", len(slept))
	}
}

func TestDecodeModelJSONExtractsEmbeddedObject(t *testing.T) {
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeModelJSON("Sure! Here is the JSON: {\"ok\": true}", &parsed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !parsed.OK {
		t.Fatal("expected ok=true")
	}
}
