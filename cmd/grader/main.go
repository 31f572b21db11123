package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/langexam/grader/internal/handler"
	"github.com/langexam/grader/internal/model"
	"github.com/langexam/grader/internal/orchestrator"
	"github.com/langexam/grader/internal/provider"
	"github.com/langexam/grader/internal/store"
)

func main() {
	_ = godotenv.Load()
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "grader",
		Short: "AI grading orchestration service for speaking and writing exams",
	}

	serve := serveCmd()
	root.AddCommand(serve, gradeCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addProviderFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("preferred-provider", "openai", "Provider tried first (openai, openrouter, local)")
	f.Int("max-context-tokens", orchestrator.DefaultMaxContextTokens, "Provider context window in tokens")
	f.Int("reserved-tokens", orchestrator.DefaultReservedTokens, "Tokens reserved for the completion")
	f.Duration("chunk-delay", 0, "Delay between chunk grading calls (e.g. 2s)")

	f.String("openai-key", "", "OpenAI API key")
	f.String("openai-model", "gpt-4o-mini", "OpenAI model")
	f.String("openai-url", "", "OpenAI-compatible base URL override")
	f.StringSlice("openai-fallback-models", nil, "OpenAI fallback models, in order")

	f.String("openrouter-key", "", "OpenRouter API key")
	f.String("openrouter-model", "", "OpenRouter model")
	f.String("openrouter-url", "https://openrouter.ai/api/v1", "OpenRouter base URL")
	f.StringSlice("openrouter-fallback-models", nil, "OpenRouter fallback models, in order")

	f.String("local-model", "llama3.2", "Self-hosted model name")
	f.String("local-url", "http://localhost:11434/v1", "Self-hosted OpenAI-compatible base URL")
	f.StringSlice("local-fallback-models", nil, "Self-hosted fallback models, in order")

	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP grading server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "grader.db", "SQLite database path")
	addProviderFlags(cmd)
	return cmd
}

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade a single session from a JSON request file",
		RunE:  runGrade,
	}
	f := cmd.Flags()
	f.StringP("input", "i", "-", "Grading request JSON file (- for stdin)")
	addProviderFlags(cmd)
	return cmd
}

func setupLogging(v *viper.Viper) {
	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("GRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("grader")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/grader")
	v.AddConfigPath("/etc/grader")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// providerDefaults builds the environment-default provider configurations.
// Slice order is the provider-fallback order.
func providerDefaults(v *viper.Viper) []model.ProviderConfig {
	return []model.ProviderConfig{
		{
			ID:             "openai",
			APIKey:         v.GetString("openai-key"),
			Model:          v.GetString("openai-model"),
			BaseURL:        v.GetString("openai-url"),
			FallbackModels: v.GetStringSlice("openai-fallback-models"),
		},
		{
			ID:             "openrouter",
			APIKey:         v.GetString("openrouter-key"),
			Model:          v.GetString("openrouter-model"),
			BaseURL:        v.GetString("openrouter-url"),
			FallbackModels: v.GetStringSlice("openrouter-fallback-models"),
		},
		{
			ID:             provider.LocalProviderID,
			Model:          v.GetString("local-model"),
			BaseURL:        v.GetString("local-url"),
			FallbackModels: v.GetStringSlice("local-fallback-models"),
		},
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	registry := provider.NewRegistry(providerDefaults(v), db)
	gateway := provider.NewGateway(registry, provider.Options{
		MaxTokens: v.GetInt("reserved-tokens"),
	})
	orch := orchestrator.New(gateway, orchestrator.FixedDelay(v.GetDuration("chunk-delay")))

	h := handler.New(db, orch, handler.Config{
		MaxContextTokens:  v.GetInt("max-context-tokens"),
		ReservedTokens:    v.GetInt("reserved-tokens"),
		PreferredProvider: v.GetString("preferred-provider"),
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"preferred_provider", v.GetString("preferred-provider"),
		"max_context_tokens", v.GetInt("max-context-tokens"),
		"reserved_tokens", v.GetInt("reserved-tokens"),
	)
	return http.ListenAndServe(addr, r)
}

// runGrade is the admin-triggered variant: grade one request from a file
// and print the outcome, no server or database involved.
func runGrade(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	path := v.GetString("input")
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = os.ReadFile("/dev/stdin")
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}

	var req model.GradingRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("parse request: %w", err)
	}
	if _, err := model.ParseExamType(string(req.ExamType)); err != nil {
		return err
	}
	if req.MaxContextTokens <= 0 {
		req.MaxContextTokens = v.GetInt("max-context-tokens")
	}
	if req.ReservedTokens <= 0 {
		req.ReservedTokens = v.GetInt("reserved-tokens")
	}
	if req.Provider == "" {
		req.Provider = v.GetString("preferred-provider")
	}

	registry := provider.NewRegistry(providerDefaults(v), nil)
	gateway := provider.NewGateway(registry, provider.Options{
		MaxTokens: v.GetInt("reserved-tokens"),
	})
	orch := orchestrator.New(gateway, orchestrator.FixedDelay(v.GetDuration("chunk-delay")))

	outcome := orch.Grade(context.Background(), req)

	out, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
