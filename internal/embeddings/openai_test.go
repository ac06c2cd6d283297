package embeddings

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dementia-mcp/internal/config"
	engerr "dementia-mcp/internal/errors"
)

func testService() *OpenAIService {
	cfg := config.DefaultConfig().OpenAI
	cfg.APIKey = "sk-test"
	return NewOpenAIService(&cfg)
}

func TestClamp(t *testing.T) {
	svc := testService()

	long := strings.Repeat("a", 4000)
	assert.Len(t, svc.clamp(long), 1020)
	assert.Equal(t, "short", svc.clamp("short"))
}

func TestEmbed_EmptyInputRejected(t *testing.T) {
	svc := testService()
	_, err := svc.Embed(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, engerr.KindValidation, engerr.KindOf(err))
}

func TestCacheRoundTrip(t *testing.T) {
	svc := testService()

	key := svc.cacheKey("preview text")
	assert.Nil(t, svc.fromCache(key))

	svc.toCache(key, []float32{0.1, 0.2})
	got := svc.fromCache(key)
	require.NotNil(t, got)
	assert.Equal(t, []float32{0.1, 0.2}, got)

	// Cached copy is isolated from caller mutation.
	got[0] = 99
	assert.Equal(t, float32(0.1), svc.fromCache(key)[0])
}

func TestCacheKey_DependsOnModel(t *testing.T) {
	svc := testService()
	k1 := svc.cacheKey("text")
	svc.cfg.EmbeddingModel = "other-model"
	assert.NotEqual(t, k1, svc.cacheKey("text"))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Hour)
	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, rl.Wait(ctx), context.DeadlineExceeded)
}

func TestRateLimiter_Refill(t *testing.T) {
	rl := NewRateLimiter(1, 5*time.Millisecond)
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())
	time.Sleep(10 * time.Millisecond)
	assert.True(t, rl.Allow())
}
