package llm

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGenerator fails with err until it succeeds with out.
type fakeGenerator struct {
	name  string
	out   string
	err   error
	calls atomic.Int64
}

func (f *fakeGenerator) Name() string { return f.name }

func (f *fakeGenerator) Generate(context.Context, string) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

func TestFallbackChain_PrimarySucceeds(t *testing.T) {
	primary := &fakeGenerator{name: "primary", out: "answer"}
	backup := &fakeGenerator{name: "backup", out: "other"}
	chain := NewFallbackChainFrom([]Generator{primary, backup}, nil)

	out, err := chain.Generate(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
	assert.Equal(t, int64(0), backup.calls.Load())
}

func TestFallbackChain_FallsThroughOnRetryable(t *testing.T) {
	for _, failure := range []error{ErrRateLimited, ErrProviderUnavailable, ErrTimeout} {
		primary := &fakeGenerator{name: "primary", err: failure}
		backup := &fakeGenerator{name: "backup", out: "recovered"}
		chain := NewFallbackChainFrom([]Generator{primary, backup}, nil)

		out, err := chain.Generate(context.Background(), "q")
		require.NoError(t, err, failure.Error())
		assert.Equal(t, "recovered", out)
		assert.Equal(t, int64(1), primary.calls.Load())
	}
}

func TestFallbackChain_AllFail(t *testing.T) {
	a := &fakeGenerator{name: "a", err: ErrRateLimited}
	b := &fakeGenerator{name: "b", err: ErrProviderUnavailable}
	chain := NewFallbackChainFrom([]Generator{a, b}, nil)

	_, err := chain.Generate(context.Background(), "q")
	require.ErrorIs(t, err, ErrGenerationFailed)
}

func TestFallbackChain_CancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	primary := &fakeGenerator{name: "primary", err: context.Canceled}
	backup := &fakeGenerator{name: "backup", out: "never"}
	chain := NewFallbackChainFrom([]Generator{primary, backup}, nil)

	_, err := chain.Generate(ctx, "q")
	require.Error(t, err)
	assert.Equal(t, int64(0), backup.calls.Load())
}

func TestFallbackChain_NoProviders(t *testing.T) {
	chain := NewFallbackChainFrom(nil, nil)
	_, err := chain.Generate(context.Background(), "q")
	require.ErrorIs(t, err, ErrGenerationFailed)
}

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify(errString("HTTP 429 too many requests")), ErrRateLimited)
	assert.ErrorIs(t, classify(errString("rate limit exceeded")), ErrRateLimited)
	assert.ErrorIs(t, classify(errString("request timeout")), ErrTimeout)
	assert.ErrorIs(t, classify(context.DeadlineExceeded), ErrTimeout)
	assert.ErrorIs(t, classify(errString("connection refused")), ErrProviderUnavailable)
	assert.NoError(t, classify(nil))
}

type errString string

func (e errString) Error() string { return string(e) }
