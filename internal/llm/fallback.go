package llm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/queryd/internal/config"
)

// FallbackChain tries an ordered list of generators until one succeeds.
type FallbackChain struct {
	generators []Generator
	logger     *zap.Logger
}

// NewFallbackChain builds a chain from the primary and fallback provider
// configurations.
func NewFallbackChain(ctx context.Context, cfg config.GenerationConfig, logger *zap.Logger) (*FallbackChain, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	providers := append([]config.ProviderConfig{cfg.Primary}, cfg.Fallbacks...)
	generators := make([]Generator, 0, len(providers))
	for i, p := range providers {
		g, err := NewGenerator(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("provider %d (%s): %w", i, p.Provider, err)
		}
		generators = append(generators, g)
	}
	return NewFallbackChainFrom(generators, logger), nil
}

// NewFallbackChainFrom builds a chain from already-constructed generators.
func NewFallbackChainFrom(generators []Generator, logger *zap.Logger) *FallbackChain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackChain{generators: generators, logger: logger}
}

// Generate runs the prompt through the chain. The first success wins; a
// retryable failure tries the next provider. When every provider fails the
// call returns ErrGenerationFailed wrapping the last error, which the caller
// surfaces as a per-question failure rather than a request failure.
func (c *FallbackChain) Generate(ctx context.Context, prompt string) (string, error) {
	if len(c.generators) == 0 {
		return "", fmt.Errorf("%w: no providers configured", ErrGenerationFailed)
	}

	var lastErr error
	for _, g := range c.generators {
		out, err := g.Generate(ctx, prompt)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return "", err
		}
		if !retryable(err) {
			break
		}
		c.logger.Warn("generation provider failed, trying next",
			zap.String("provider", g.Name()),
			zap.Error(err),
		)
	}
	return "", fmt.Errorf("%w: %v", ErrGenerationFailed, lastErr)
}
