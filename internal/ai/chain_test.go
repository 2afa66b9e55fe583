package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/protocolzero/codepolice/internal/config"
)

type scriptedProvider struct {
	name  string
	err   error
	reply string
	calls int
}

func (s *scriptedProvider) Name() string                       { return s.name }
func (s *scriptedProvider) IsAvailable(_ context.Context) bool { return s.err == nil }
func (s *scriptedProvider) Complete(_ context.Context, _ CompletionRequest) (string, error) {
	s.calls++
	return s.reply, s.err
}

func TestChainFailsOverAndOpensCircuit(t *testing.T) {
	primary := &scriptedProvider{name: "primary", err: &StatusError{Provider: "primary", Code: 503}}
	backup := &scriptedProvider{name: "backup", reply: "ok"}
	chain := NewChain([]Provider{primary, backup})

	for i := 0; i < failureThreshold+2; i++ {
		out, err := chain.Complete(context.Background(), CompletionRequest{Prompt: "p"})
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if out != "ok" {
			t.Fatalf("call %d: out = %q", i, out)
		}
	}
	if primary.calls != failureThreshold {
		t.Fatalf("primary called %d times, want %d before circuit opens", primary.calls, failureThreshold)
	}
	if name, fallback := chain.CurrentProvider(); name != "backup" || !fallback {
		t.Fatalf("CurrentProvider = %q, %v", name, fallback)
	}
}

func TestChainAuthErrorOpensImmediately(t *testing.T) {
	primary := &scriptedProvider{name: "primary", err: &StatusError{Provider: "primary", Code: 401}}
	backup := &scriptedProvider{name: "backup", reply: "ok"}
	chain := NewChain([]Provider{primary, backup})

	for i := 0; i < 2; i++ {
		if _, err := chain.Complete(context.Background(), CompletionRequest{}); err != nil {
			t.Fatalf("Complete: %v", err)
		}
	}
	if primary.calls != 1 {
		t.Fatalf("primary called %d times after auth failure, want 1", primary.calls)
	}
}

func TestChainAllFail(t *testing.T) {
	chain := NewChain([]Provider{
		&scriptedProvider{name: "a", err: errors.New("boom")},
		&scriptedProvider{name: "b", err: errors.New("bang")},
	})
	if _, err := chain.Complete(context.Background(), CompletionRequest{}); err == nil {
		t.Fatal("expected error when every provider fails")
	}
}

func TestAnthropicCompleteSendsTemperature(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"  {\"fixes\":[]}  "}]}`))
	}))
	defer srv.Close()

	p := NewAnthropic(config.AIConfig{AnthropicKey: "k"})
	p.endpoint = srv.URL
	out, err := p.Complete(context.Background(), CompletionRequest{System: "s", Prompt: "u", Temperature: 0.4})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"fixes":[]}` {
		t.Fatalf("out = %q", out)
	}
	if got.Temperature != 0.4 || got.System != "s" || got.MaxTokens != defaultMaxTokens {
		t.Fatalf("request = %+v", got)
	}
}

func TestAnthropicStatusErrorIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewAnthropic(config.AIConfig{AnthropicKey: "k"})
	p.endpoint = srv.URL
	_, err := p.Complete(context.Background(), CompletionRequest{})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusTooManyRequests {
		t.Fatalf("err = %v, want StatusError 429", err)
	}
	if !isRetriableError(err) {
		t.Fatal("429 should be retriable")
	}
}
