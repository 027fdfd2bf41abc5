package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/peai-backend/internal/observability"
	"github.com/yungbote/peai-backend/internal/platform/anthropic"
	"github.com/yungbote/peai-backend/internal/platform/gemini"
	"github.com/yungbote/peai-backend/internal/platform/logger"
	"github.com/yungbote/peai-backend/internal/platform/openai"
)

const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	defaultTimeout = 120 * time.Second
)

// Backend is a concrete provider client. It satisfies pei.Generator.
type Backend interface {
	Generate(ctx context.Context, prompt, systemInstruction string) (string, error)
	Provider() string
	Model() string
}

type Config struct {
	Provider        string
	Timeout         time.Duration
	Temperature     *float64
	MaxOutputTokens int

	GeminiAPIKey    string
	GeminiModel     string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	AnthropicAPIKey string
	AnthropicModel  string
}

// NewBackend builds the provider named in cfg.Provider (gemini by default).
func NewBackend(ctx context.Context, log *logger.Logger, cfg Config) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderGemini:
		var temp *float32
		if cfg.Temperature != nil {
			t := float32(*cfg.Temperature)
			temp = &t
		}
		return gemini.NewClient(ctx, log, gemini.Config{
			APIKey:          cfg.GeminiAPIKey,
			Model:           cfg.GeminiModel,
			Temperature:     temp,
			MaxOutputTokens: cfg.MaxOutputTokens,
		})
	case ProviderOpenAI:
		return openai.NewClient(log, openai.Config{
			APIKey:          cfg.OpenAIAPIKey,
			BaseURL:         cfg.OpenAIBaseURL,
			Model:           cfg.OpenAIModel,
			Temperature:     cfg.Temperature,
			MaxOutputTokens: cfg.MaxOutputTokens,
			Timeout:         cfg.Timeout,
		})
	case ProviderAnthropic:
		return anthropic.NewClient(log, anthropic.Config{
			APIKey:          cfg.AnthropicAPIKey,
			Model:           cfg.AnthropicModel,
			Temperature:     cfg.Temperature,
			MaxOutputTokens: cfg.MaxOutputTokens,
			Timeout:         cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown GENAI_PROVIDER %q", cfg.Provider)
	}
}

// TokenCounter estimates prompt and output sizes for metrics.
type TokenCounter interface {
	Count(text string) int
}

type kindKey struct{}

// WithKind tags ctx with the generation kind ("plan" or "adaptation") for metrics.
func WithKind(ctx context.Context, kind string) context.Context {
	return context.WithValue(ctx, kindKey{}, kind)
}

func kindFrom(ctx context.Context) string {
	if v, ok := ctx.Value(kindKey{}).(string); ok && v != "" {
		return v
	}
	return "unknown"
}

// Instrumented bounds each call with a timeout and records latency, outcome
// and token estimates. It makes exactly one backend call per Generate.
type Instrumented struct {
	backend Backend
	log     *logger.Logger
	metrics *observability.Metrics
	counter TokenCounter
	timeout time.Duration
}

func NewInstrumented(backend Backend, baseLog *logger.Logger, metrics *observability.Metrics, counter TokenCounter, timeout time.Duration) *Instrumented {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Instrumented{
		backend: backend,
		log:     baseLog.With("service", "Generator", "provider", backend.Provider(), "model", backend.Model()),
		metrics: metrics,
		counter: counter,
		timeout: timeout,
	}
}

func (g *Instrumented) Generate(ctx context.Context, prompt, systemInstruction string) (string, error) {
	kind := kindFrom(ctx)
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	out, err := g.backend.Generate(callCtx, prompt, systemInstruction)
	dur := time.Since(start)

	outcome := "ok"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	promptTokens, outputTokens := 0, 0
	if g.counter != nil {
		promptTokens = g.counter.Count(systemInstruction) + g.counter.Count(prompt)
		outputTokens = g.counter.Count(out)
	}
	g.metrics.ObserveGeneration(kind, g.backend.Provider(), outcome, dur, promptTokens, outputTokens)

	if err != nil {
		g.log.Warn("Generation failed", "kind", kind, "outcome", outcome, "duration_ms", dur.Milliseconds(), "error", err)
		return "", err
	}
	g.log.Debug("Generation done", "kind", kind, "duration_ms", dur.Milliseconds(), "prompt_tokens", promptTokens, "output_tokens", outputTokens)
	return out, nil
}
