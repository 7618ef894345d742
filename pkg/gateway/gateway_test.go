package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/akande-ai/akande/pkg/config"
	"github.com/akande-ai/akande/pkg/models"
)

func openAIUpstream(t *testing.T, status int, answer string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-provider" {
			t.Error("expected provider API key in upstream request")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = io.WriteString(w, `{"error":{"message":"upstream failure","type":"server_error"}}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-123",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": answer},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIAsk(t *testing.T) {
	var seen struct {
		Model    string `json:"model"`
		Messages []models.ChatMessage
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&seen)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":" Paris. "},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	g := NewOpenAI("primary", "sk-provider", srv.URL+"/v1", "")
	resp, err := g.Ask(context.Background(), Request{
		Question:     "What is the capital of France?",
		Model:        "gpt-4o-mini",
		SystemPrompt: "be brief",
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "Paris." {
		t.Errorf("expected trimmed answer, got %q", resp.Answer)
	}
	if resp.Provider != "primary" {
		t.Errorf("expected provider primary, got %s", resp.Provider)
	}
	if seen.Model != "gpt-4o-mini" {
		t.Errorf("expected request model gpt-4o-mini, got %s", seen.Model)
	}
	if len(seen.Messages) != 2 || seen.Messages[0].Role != "system" || seen.Messages[1].Content != "What is the capital of France?" {
		t.Errorf("unexpected messages: %+v", seen.Messages)
	}
}

func TestOpenAIErrors(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusTooManyRequests, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		srv := openAIUpstream(t, tt.status, "", nil)
		g := NewOpenAI("p", "sk-provider", srv.URL+"/v1", "gpt-4o-mini")
		_, err := g.Ask(context.Background(), Request{Question: "hi"})

		var gerr *Error
		if !errors.As(err, &gerr) {
			t.Fatalf("status %d: expected *Error, got %v", tt.status, err)
		}
		if gerr.Status != tt.status {
			t.Errorf("status %d: got status %d", tt.status, gerr.Status)
		}
		if gerr.Retryable != tt.retryable {
			t.Errorf("status %d: retryable = %v, want %v", tt.status, gerr.Retryable, tt.retryable)
		}
	}
}

func TestOpenAIEmptyAnswer(t *testing.T) {
	srv := openAIUpstream(t, http.StatusOK, "   ", nil)
	g := NewOpenAI("p", "sk-provider", srv.URL+"/v1", "gpt-4o-mini")
	_, err := g.Ask(context.Background(), Request{Question: "hi"})
	if !errors.Is(err, ErrEmptyAnswer) {
		t.Errorf("expected ErrEmptyAnswer, got %v", err)
	}
}

func TestNetworkErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	g := NewOpenAI("down", "sk-provider", url+"/v1", "gpt-4o-mini")
	_, err := g.Ask(context.Background(), Request{Question: "hi"})
	if !IsRetryable(err) {
		t.Errorf("expected retryable network error, got %v", err)
	}
}

func TestCancelledContextIsNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	g := NewOllama("local", srv.URL, "llama3")
	_, err := g.Ask(ctx, Request{Question: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if IsRetryable(err) {
		t.Errorf("deadline errors must not fall through the chain: %v", err)
	}
}

func TestOllamaAsk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req models.OllamaChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Stream {
			t.Error("expected non-streaming request")
		}
		if req.Model != "llama3" {
			t.Errorf("expected pinned model llama3, got %s", req.Model)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.OllamaChatResponse{
			Model:   "llama3",
			Message: models.ChatMessage{Role: "assistant", Content: "Paris."},
			Done:    true,
		})
	}))
	defer srv.Close()

	g := NewOllama("local", srv.URL, "llama3")
	resp, err := g.Ask(context.Background(), Request{Question: "capital of france", Model: "gpt-4o"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "Paris." || resp.Model != "llama3" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestOllamaErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"model \"nope\" not found"}`)
	}))
	defer srv.Close()

	_, err := NewOllama("local", srv.URL, "nope").Ask(context.Background(), Request{Question: "hi"})
	var gerr *Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if gerr.Status != http.StatusNotFound || gerr.Retryable {
		t.Errorf("unexpected error: %+v", gerr)
	}
}

func TestChainFallsOverOn5xx(t *testing.T) {
	var badCalls, goodCalls atomic.Int32
	bad := openAIUpstream(t, http.StatusBadGateway, "", &badCalls)
	good := openAIUpstream(t, http.StatusOK, "Paris.", &goodCalls)

	chain := NewChain(log.New(io.Discard),
		NewOpenAI("bad", "sk-provider", bad.URL+"/v1", "gpt-4o-mini"),
		NewOpenAI("good", "sk-provider", good.URL+"/v1", "gpt-4o-mini"),
	)
	resp, err := chain.Ask(context.Background(), Request{Question: "capital of france"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Provider != "good" || resp.Answer != "Paris." {
		t.Errorf("unexpected response: %+v", resp)
	}
	if badCalls.Load() != 1 || goodCalls.Load() != 1 {
		t.Errorf("calls bad=%d good=%d", badCalls.Load(), goodCalls.Load())
	}
	if chain.Name() != "bad,good" {
		t.Errorf("unexpected chain name %q", chain.Name())
	}
}

func TestChainStopsOn4xx(t *testing.T) {
	var goodCalls atomic.Int32
	bad := openAIUpstream(t, http.StatusBadRequest, "", nil)
	good := openAIUpstream(t, http.StatusOK, "Paris.", &goodCalls)

	chain := NewChain(log.New(io.Discard),
		NewOpenAI("bad", "sk-provider", bad.URL+"/v1", "gpt-4o-mini"),
		NewOpenAI("good", "sk-provider", good.URL+"/v1", "gpt-4o-mini"),
	)
	_, err := chain.Ask(context.Background(), Request{Question: "hi"})
	var gerr *Error
	if !errors.As(err, &gerr) || gerr.Provider != "bad" {
		t.Fatalf("expected error from bad provider, got %v", err)
	}
	if goodCalls.Load() != 0 {
		t.Error("chain must not fall over on client errors")
	}
}

func TestChainAllFail(t *testing.T) {
	a := openAIUpstream(t, http.StatusInternalServerError, "", nil)
	b := openAIUpstream(t, http.StatusServiceUnavailable, "", nil)

	chain := NewChain(log.New(io.Discard),
		NewOpenAI("a", "sk-provider", a.URL+"/v1", "m"),
		NewOpenAI("b", "sk-provider", b.URL+"/v1", "m"),
	)
	_, err := chain.Ask(context.Background(), Request{Question: "hi"})
	var gerr *Error
	if !errors.As(err, &gerr) || gerr.Provider != "b" {
		t.Errorf("expected last provider's error, got %v", err)
	}
}

func TestLimited(t *testing.T) {
	srv := openAIUpstream(t, http.StatusOK, "ok", nil)
	g := NewLimited(NewOpenAI("p", "sk-provider", srv.URL+"/v1", "m"), 0.001, 1)

	if _, err := g.Ask(context.Background(), Request{Question: "hi"}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := g.Ask(ctx, Request{Question: "hi"})
	var gerr *Error
	if !errors.As(err, &gerr) || gerr.Retryable {
		t.Errorf("expected non-retryable limiter error, got %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Providers = []config.ProviderConfig{{Name: "only", Type: "openai", APIKey: "sk-provider"}}
	g, err := FromConfig(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := g.(*OpenAI); !ok {
		t.Errorf("expected single OpenAI gateway, got %T", g)
	}

	cfg.Providers = append(cfg.Providers, config.ProviderConfig{Name: "local", Type: "ollama", URL: "http://localhost:11434", RPS: 2})
	g, err = FromConfig(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if g.Name() != "only,local" {
		t.Errorf("unexpected chain name %q", g.Name())
	}

	cfg.Providers = []config.ProviderConfig{{Name: "x", Type: "carrier-pigeon"}}
	if _, err := FromConfig(cfg, nil); err == nil {
		t.Error("expected error for unknown provider type")
	}
}

var errRefused = errors.New("refused")

type fakeGuard struct {
	refuse   map[string]bool
	seen     []string
	released atomic.Int32
}

func (g *fakeGuard) Reserve(_ context.Context, provider string) (func(), error) {
	g.seen = append(g.seen, provider)
	if g.refuse[provider] {
		return nil, errRefused
	}
	return func() { g.released.Add(1) }, nil
}

func TestGuardedChainSkipsRefusedMember(t *testing.T) {
	var firstCalls atomic.Int32
	first := openAIUpstream(t, http.StatusOK, "from first", &firstCalls)
	second := openAIUpstream(t, http.StatusOK, "from second", nil)

	guard := &fakeGuard{refuse: map[string]bool{"first": true}}
	g := WithGuard(NewChain(log.New(io.Discard),
		NewOpenAI("first", "sk-provider", first.URL+"/v1", "m"),
		NewLimited(NewOpenAI("second", "sk-provider", second.URL+"/v1", "m"), 100, 1),
	), guard)

	if g.Name() != "first,second" {
		t.Errorf("unexpected name %q", g.Name())
	}
	resp, err := g.Ask(context.Background(), Request{Question: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Provider != "second" || firstCalls.Load() != 0 {
		t.Errorf("expected refused member to be skipped, got %+v (first calls %d)", resp, firstCalls.Load())
	}
	if len(guard.seen) != 2 || guard.seen[0] != "first" || guard.seen[1] != "second" {
		t.Errorf("guard saw %v", guard.seen)
	}

	if guard.released.Load() != 0 {
		t.Error("slot released before the caller was done")
	}
	resp.Release()
	if guard.released.Load() != 1 {
		t.Errorf("released %d slots, want 1", guard.released.Load())
	}
}

func TestGuardedReleasesOnFailure(t *testing.T) {
	srv := openAIUpstream(t, http.StatusBadRequest, "", nil)
	guard := &fakeGuard{}
	g := WithGuard(NewOpenAI("p", "sk-provider", srv.URL+"/v1", "m"), guard)

	if _, err := g.Ask(context.Background(), Request{Question: "hi"}); err == nil {
		t.Fatal("expected error")
	}
	if guard.released.Load() != 1 {
		t.Errorf("failed call should free its slot, released %d", guard.released.Load())
	}

	guard.refuse = map[string]bool{"p": true}
	_, err := g.Ask(context.Background(), Request{Question: "hi"})
	if !errors.Is(err, errRefused) || !IsRetryable(err) {
		t.Errorf("expected retryable refusal, got %v", err)
	}
}
