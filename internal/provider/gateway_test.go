package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/langexam/grader/internal/model"
)

type chatCall struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// fakeBackend is an OpenAI-compatible chat/completions endpoint driven by a
// per-request respond function.
type fakeBackend struct {
	srv     *httptest.Server
	calls   []chatCall
	respond func(call chatCall) (status int, content string)
}

func newFakeBackend(t *testing.T, respond func(call chatCall) (status int, content string)) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{respond: respond}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var call chatCall
		if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
			t.Errorf("decode chat request: %v", err)
		}
		fb.calls = append(fb.calls, call)

		status, content := fb.respond(call)
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error": {"message": "backend unavailable", "type": "server_error"}}`))
			return
		}
		writeChatResponse(w, content)
	})
	fb.srv = httptest.NewServer(mux)
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBackend) baseURL() string {
	return fb.srv.URL + "/v1"
}

func writeChatResponse(w http.ResponseWriter, content string) {
	resp := map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"model":  "test",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func alwaysOK(content string) func(chatCall) (int, string) {
	return func(chatCall) (int, string) { return http.StatusOK, content }
}

func alwaysFail() func(chatCall) (int, string) {
	return func(chatCall) (int, string) { return http.StatusInternalServerError, "" }
}

func testGateway(configs ...model.ProviderConfig) *Gateway {
	return NewGateway(NewRegistry(configs, nil), Options{})
}

func TestGenerateUnavailableWithoutKey(t *testing.T) {
	gw := testGateway()
	_, err := gw.Generate(context.Background(), "p", model.ProviderConfig{ID: "openai", Model: "gpt-4o"})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("keyless hosted provider: got %v, want ErrProviderUnavailable", err)
	}
}

func TestGenerateUnconfiguredProvider(t *testing.T) {
	gw := testGateway()
	_, err := gw.Generate(context.Background(), "p", model.ProviderConfig{ID: "openai", APIKey: "k"})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("empty model list: got %v, want ErrProviderUnavailable", err)
	}
}

func TestGenerateLocalProviderNeedsNoKey(t *testing.T) {
	fb := newFakeBackend(t, alwaysOK("graded"))
	gw := testGateway()

	res, err := gw.Generate(context.Background(), "p", model.ProviderConfig{
		ID: LocalProviderID, Model: "llama3.2", BaseURL: fb.baseURL(),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "graded" || res.Provider != LocalProviderID || res.Model != "llama3.2" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestGenerateModelFallback(t *testing.T) {
	fb := newFakeBackend(t, func(call chatCall) (int, string) {
		if call.Model == "primary" {
			return http.StatusInternalServerError, ""
		}
		return http.StatusOK, "from backup"
	})
	gw := testGateway()

	res, err := gw.Generate(context.Background(), "p", model.ProviderConfig{
		ID: LocalProviderID, Model: "primary", BaseURL: fb.baseURL(),
		FallbackModels: []string{"backup"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Model != "backup" {
		t.Errorf("ModelUsed = %q, want backup", res.Model)
	}
	if len(fb.calls) != 2 {
		t.Errorf("got %d calls, want 2 (primary then backup)", len(fb.calls))
	}
}

func TestGenerateEmptyContentIsFailure(t *testing.T) {
	fb := newFakeBackend(t, alwaysOK(""))
	gw := testGateway()

	_, err := gw.Generate(context.Background(), "p", model.ProviderConfig{
		ID: LocalProviderID, Model: "m", BaseURL: fb.baseURL(),
	})
	if !errors.Is(err, ErrAllModelsFailed) {
		t.Errorf("empty content: got %v, want ErrAllModelsFailed", err)
	}
}

func TestGenerateAllModelsFailed(t *testing.T) {
	fb := newFakeBackend(t, alwaysFail())
	gw := testGateway()

	_, err := gw.Generate(context.Background(), "p", model.ProviderConfig{
		ID: LocalProviderID, Model: "m1", BaseURL: fb.baseURL(),
		FallbackModels: []string{"m2", "m3"},
	})
	if !errors.Is(err, ErrAllModelsFailed) {
		t.Fatalf("got %v, want ErrAllModelsFailed", err)
	}
	if len(fb.calls) != 3 {
		t.Errorf("got %d calls, want 3 (every model tried once, no retries)", len(fb.calls))
	}
}

func TestGenerateWithFallbackPrefersRequestedProvider(t *testing.T) {
	first := newFakeBackend(t, alwaysOK("from first"))
	second := newFakeBackend(t, alwaysOK("from second"))

	gw := testGateway(
		model.ProviderConfig{ID: "openai", APIKey: "k", Model: "m", BaseURL: first.baseURL()},
		model.ProviderConfig{ID: LocalProviderID, Model: "m", BaseURL: second.baseURL()},
	)

	res, err := gw.GenerateWithFallback(context.Background(), "p", LocalProviderID)
	if err != nil {
		t.Fatalf("GenerateWithFallback: %v", err)
	}
	if res.Provider != LocalProviderID {
		t.Errorf("ProviderUsed = %q, want the preferred provider", res.Provider)
	}
	if len(first.calls) != 0 {
		t.Errorf("non-preferred provider was called %d times before the preferred one succeeded", len(first.calls))
	}
}

func TestGenerateWithFallbackStopsAtFirstSuccess(t *testing.T) {
	first := newFakeBackend(t, alwaysOK("from first"))
	second := newFakeBackend(t, alwaysOK("from second"))

	gw := testGateway(
		model.ProviderConfig{ID: "openai", APIKey: "k", Model: "m", BaseURL: first.baseURL()},
		model.ProviderConfig{ID: LocalProviderID, Model: "m", BaseURL: second.baseURL()},
	)

	res, err := gw.GenerateWithFallback(context.Background(), "p", "openai")
	if err != nil {
		t.Fatalf("GenerateWithFallback: %v", err)
	}
	if res.Text != "from first" {
		t.Errorf("Text = %q, want the first provider's response", res.Text)
	}
	if len(second.calls) != 0 {
		t.Errorf("provider beyond the first success was called %d times", len(second.calls))
	}
}

func TestGenerateWithFallbackWalksProviders(t *testing.T) {
	first := newFakeBackend(t, alwaysFail())
	second := newFakeBackend(t, alwaysOK("rescued"))

	gw := testGateway(
		model.ProviderConfig{ID: "openai", APIKey: "k", Model: "m", BaseURL: first.baseURL()},
		model.ProviderConfig{ID: LocalProviderID, Model: "m", BaseURL: second.baseURL()},
	)

	res, err := gw.GenerateWithFallback(context.Background(), "p", "openai")
	if err != nil {
		t.Fatalf("GenerateWithFallback: %v", err)
	}
	if res.Text != "rescued" || res.Provider != LocalProviderID {
		t.Errorf("unexpected result %+v", res)
	}
	if len(first.calls) != 1 {
		t.Errorf("failing provider called %d times, want 1", len(first.calls))
	}
}

func TestGenerateWithFallbackAllExhausted(t *testing.T) {
	first := newFakeBackend(t, alwaysFail())
	second := newFakeBackend(t, alwaysFail())

	gw := testGateway(
		model.ProviderConfig{ID: "openai", APIKey: "k", Model: "m", BaseURL: first.baseURL()},
		model.ProviderConfig{ID: LocalProviderID, Model: "m", BaseURL: second.baseURL()},
	)

	_, err := gw.GenerateWithFallback(context.Background(), "p", "openai")
	if !errors.Is(err, ErrAllProvidersFailed) {
		t.Errorf("got %v, want ErrAllProvidersFailed", err)
	}
}

func TestGenerateWithFallbackSkipsUnavailable(t *testing.T) {
	backend := newFakeBackend(t, alwaysOK("ok"))

	gw := testGateway(
		// No API key and not local: must be skipped, not attempted.
		model.ProviderConfig{ID: "openai", Model: "m", BaseURL: "http://127.0.0.1:1"},
		model.ProviderConfig{ID: LocalProviderID, Model: "m", BaseURL: backend.baseURL()},
	)

	res, err := gw.GenerateWithFallback(context.Background(), "p", "openai")
	if err != nil {
		t.Fatalf("GenerateWithFallback: %v", err)
	}
	if res.Provider != LocalProviderID {
		t.Errorf("ProviderUsed = %q, want local", res.Provider)
	}
}
