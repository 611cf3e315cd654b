package resilience

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/knowledge-engine/pkg/llm"
)

type flakyEmbedder struct {
	failures int
	calls    int
}

func (f *flakyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, &net.DNSError{Err: "no such host", Name: "api.example.com"}
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{0.1, 0.2}
	}
	return vectors, nil
}

func (f *flakyEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *flakyEmbedder) Dimension() int { return 2 }
func (f *flakyEmbedder) Name() string   { return "flaky" }

func fastRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestResilientEmbeddingProvider_RetriesTransientFailure(t *testing.T) {
	inner := &flakyEmbedder{failures: 2}
	p := NewResilientEmbeddingProvider(inner, fastRetryConfig(), nil)

	vectors, err := p.Embed(context.Background(), []string{"hello"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, 3, inner.calls)
}

func TestResilientEmbeddingProvider_DelegatesMetadata(t *testing.T) {
	p := NewResilientEmbeddingProvider(&flakyEmbedder{}, nil, nil)
	assert.Equal(t, 2, p.Dimension())
	assert.Equal(t, "flaky-resilient", p.Name())
}

func TestGetEmbeddingProviderStats(t *testing.T) {
	p := NewResilientEmbeddingProvider(&flakyEmbedder{}, fastRetryConfig(), nil)

	stats := GetEmbeddingProviderStats(p)
	require.NotNil(t, stats)
	assert.Equal(t, "closed", stats.State)
	assert.Equal(t, 0, stats.Failures)

	// 未经包装的供应商没有统计
	var bare llm.EmbeddingProvider = &flakyEmbedder{}
	assert.Nil(t, GetEmbeddingProviderStats(bare))
}
