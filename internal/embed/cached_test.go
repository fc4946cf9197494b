package embed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	embedCalls int
	batchCalls int
	err        error
	gate       chan struct{}
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.embedCalls++
	if c.gate != nil {
		<-c.gate
	}
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text))}, nil
}

func (c *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	c.batchCalls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (c *countingEmbedder) ModelName() string { return "counting" }

func TestCachedEmbedder_CachesQueries(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 2)
	ctx := context.Background()

	v1, err := c.Embed(ctx, "abc")
	require.NoError(t, err)
	v2, err := c.Embed(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, inner.embedCalls)
	assert.Equal(t, 1, c.Len())
}

func TestCachedEmbedder_Evicts(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 1)
	ctx := context.Background()

	_, _ = c.Embed(ctx, "a")
	_, _ = c.Embed(ctx, "b")
	_, _ = c.Embed(ctx, "a")
	assert.Equal(t, 3, inner.embedCalls)
}

func TestCachedEmbedder_ErrorsNotCached(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("boom")}
	c := NewCachedEmbedder(inner, 4)

	_, err := c.Embed(context.Background(), "q")
	require.Error(t, err)
	assert.Zero(t, c.Len())
}

func TestCachedEmbedder_BatchPassesThrough(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 4)

	for range 2 {
		_, err := c.EmbedBatch(context.Background(), []string{"a", "bb"})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, inner.batchCalls)
	assert.Zero(t, c.Len())
	assert.Equal(t, "counting", c.ModelName())
}

func TestCachedEmbedder_CoalescesConcurrentQueries(t *testing.T) {
	inner := &countingEmbedder{gate: make(chan struct{})}
	c := NewCachedEmbedder(inner, 4)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vec, err := c.Embed(context.Background(), "same query")
			assert.NoError(t, err)
			assert.Equal(t, []float32{10}, vec)
		}()
	}
	// Let the callers pile up behind the first provider call.
	time.Sleep(50 * time.Millisecond)
	close(inner.gate)
	wg.Wait()

	assert.Equal(t, 1, inner.embedCalls)
}
