// Package inference is the boundary to the generative model used by the
// fallback path. The model only ever sees the prompt it is given.
package inference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledgerq/internal/config"
	"ledgerq/internal/log"
)

// ErrTimeout is returned when a generation exceeds its time budget.
var ErrTimeout = errors.New("inference: generation timed out")

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int, timeout time.Duration) (string, error)
}

// Func adapts a plain function to Generator.
type Func func(ctx context.Context, prompt string, maxTokens int) (string, error)

// Generate calls f under the timeout.
func (f Func) Generate(ctx context.Context, prompt string, maxTokens int, timeout time.Duration) (string, error) {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()
	out, err := f(ctx, prompt, maxTokens)
	return out, timeoutErr(ctx, err)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// timeoutErr folds deadline failures into ErrTimeout.
func timeoutErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// FromConfig builds the configured generator. Provider "none" returns nil,
// which disables the fallback path.
func FromConfig(cfg *config.Config, logger *log.Logger) (Generator, error) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentInference)
	switch cfg.InferenceProvider {
	case config.ProviderNone, "":
		logger.Info("Fallback inference disabled")
		return nil, nil
	case config.ProviderOllama:
		logger.Info("Using Ollama for fallback inference", log.FieldProvider, config.ProviderOllama, "model", cfg.OllamaModel)
		return NewOllama(cfg.OllamaURL, cfg.OllamaModel, nil), nil
	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, errors.New("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
		logger.Info("Using Anthropic for fallback inference", log.FieldProvider, config.ProviderAnthropic, "model", cfg.AnthropicModel)
		return NewAnthropic(cfg.AnthropicAPIKey, cfg.AnthropicModel), nil
	}
	return nil, fmt.Errorf("unknown inference provider %q", cfg.InferenceProvider)
}
