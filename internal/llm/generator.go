// Package llm provides text generation with an ordered provider fallback
// chain.
//
// Providers are configured as an ordered list: the primary is tried first
// and retryable failures (unavailable, rate limited, timed out) fall through
// to the next entry. Model selection is plain configuration, not code.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/queryd/internal/config"
)

// Generator produces a completion for a prompt.
type Generator interface {
	// Name identifies the provider and model for logging and provenance.
	Name() string
	// Generate returns the completion text. Failures are classified into
	// the package error taxonomy.
	Generate(ctx context.Context, prompt string) (string, error)
}

// langchainGenerator backs Generator with a langchaingo model.
type langchainGenerator struct {
	name    string
	model   llms.Model
	timeout time.Duration
	limiter *rate.Limiter
}

// NewGenerator creates a Generator from provider configuration.
func NewGenerator(ctx context.Context, cfg config.ProviderConfig) (Generator, error) {
	var model llms.Model
	var err error

	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{openai.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		if cfg.APIKey.IsSet() {
			opts = append(opts, openai.WithToken(cfg.APIKey.Value()))
		}
		model, err = openai.New(opts...)
	case "googleai":
		opts := []googleai.Option{googleai.WithDefaultModel(cfg.Model)}
		if cfg.APIKey.IsSet() {
			opts = append(opts, googleai.WithAPIKey(cfg.APIKey.Value()))
		}
		model, err = googleai.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s client: %w", cfg.Provider, err)
	}

	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &langchainGenerator{
		name:    cfg.Provider + "/" + cfg.Model,
		model:   model,
		timeout: timeout,
		// Client-side throttle to keep burst traffic under provider quotas.
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}, nil
}

// Name implements Generator.
func (g *langchainGenerator) Name() string {
	return g.name
}

// Generate implements Generator.
func (g *langchainGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt, llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("%s: %w", g.name, classify(err))
	}
	return out, nil
}
