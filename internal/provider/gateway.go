// Package provider abstracts one or more OpenAI-compatible text-generation
// backends behind a uniform generate contract with two-level fallback:
// model-within-provider, then provider-within-system.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/langexam/grader/internal/model"
)

// LocalProviderID identifies the self-hosted backend (Ollama, LM Studio,
// vLLM and the like). It is always considered available: local servers
// accept any API key.
const LocalProviderID = "local"

// Result is a successful generation.
type Result struct {
	Text     string
	Provider string
	Model    string
}

// Gateway drives generation calls against the registry's providers.
type Gateway struct {
	registry    *Registry
	temperature float32
	maxTokens   int
	timeout     time.Duration
}

// Options tune the gateway; zero values select the defaults.
type Options struct {
	Temperature float32       // default 0.3
	MaxTokens   int           // completion budget per call, default 2000
	Timeout     time.Duration // per-attempt timeout, default 120s
}

// NewGateway creates a gateway over the given registry.
func NewGateway(reg *Registry, opts Options) *Gateway {
	if opts.Temperature == 0 {
		opts.Temperature = 0.3
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 2000
	}
	if opts.Timeout == 0 {
		opts.Timeout = 120 * time.Second
	}
	return &Gateway{
		registry:    reg,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		timeout:     opts.Timeout,
	}
}

// callOutcome is the normalized result of one chat-completion attempt.
// External payloads are mapped onto this tagged form before any decision
// logic sees them.
type callOutcome struct {
	kind    outcomeKind
	content string // success only
	status  int    // httpError only
	detail  string
}

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeEmpty
	outcomeHTTPError
	outcomeTransportError
)

// available reports whether the provider may be attempted at all.
func available(cfg model.ProviderConfig) bool {
	if !cfg.Configured() {
		return false
	}
	return cfg.APIKey != "" || cfg.ID == LocalProviderID
}

// Generate walks the provider's ordered model list and returns the first
// non-empty success. There is no retry of a failed model; resilience comes
// from trying the next one.
func (g *Gateway) Generate(ctx context.Context, prompt string, cfg model.ProviderConfig) (Result, error) {
	if !available(cfg) {
		return Result{}, fmt.Errorf("%w: %s", ErrProviderUnavailable, cfg.ID)
	}

	for _, modelName := range cfg.Models() {
		out := g.callModel(ctx, cfg, modelName, prompt)
		switch out.kind {
		case outcomeSuccess:
			return Result{Text: out.content, Provider: cfg.ID, Model: modelName}, nil
		case outcomeEmpty:
			slog.Warn("model returned empty content", "provider", cfg.ID, "model", modelName)
		case outcomeHTTPError:
			slog.Warn("model returned error status",
				"provider", cfg.ID, "model", modelName, "status", out.status, "detail", out.detail)
		case outcomeTransportError:
			slog.Warn("model call failed", "provider", cfg.ID, "model", modelName, "error", out.detail)
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
	}

	return Result{}, fmt.Errorf("%w: %s", ErrAllModelsFailed, cfg.ID)
}

// GenerateWithFallback tries the preferred provider first, then every other
// available provider in registration order. It stops at the first success
// and fails only when every provider has been exhausted.
func (g *Gateway) GenerateWithFallback(ctx context.Context, prompt, preferred string) (Result, error) {
	configs := g.registry.ResolveAll()

	ordered := make([]model.ProviderConfig, 0, len(configs))
	for _, cfg := range configs {
		if cfg.ID == preferred {
			ordered = append([]model.ProviderConfig{cfg}, ordered...)
		} else {
			ordered = append(ordered, cfg)
		}
	}

	var lastErr error
	for _, cfg := range ordered {
		if !available(cfg) {
			slog.Debug("skipping unavailable provider", "provider", cfg.ID)
			continue
		}
		res, err := g.Generate(ctx, prompt, cfg)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		lastErr = err
		slog.Warn("provider exhausted, trying next", "provider", cfg.ID, "error", err)
	}

	if lastErr != nil {
		return Result{}, fmt.Errorf("%w: last error: %v", ErrAllProvidersFailed, lastErr)
	}
	return Result{}, fmt.Errorf("%w: no provider configured", ErrAllProvidersFailed)
}

// callModel issues one chat-completion request and maps the response onto a
// callOutcome.
func (g *Gateway) callModel(ctx context.Context, cfg model.ProviderConfig, modelName, prompt string) callOutcome {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(config)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return callOutcome{kind: outcomeHTTPError, status: apiErr.HTTPStatusCode, detail: apiErr.Message}
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return callOutcome{kind: outcomeHTTPError, status: reqErr.HTTPStatusCode, detail: reqErr.Error()}
		}
		return callOutcome{kind: outcomeTransportError, detail: err.Error()}
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return callOutcome{kind: outcomeEmpty}
	}
	return callOutcome{kind: outcomeSuccess, content: resp.Choices[0].Message.Content}
}
