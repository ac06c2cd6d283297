// Package embeddings provides the embedding collaborator used by semantic
// search and lock enrichment. The embedding path is an enhancement: failures
// surface as external_degraded and never gate writes.
package embeddings

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"dementia-mcp/internal/config"
	engerr "dementia-mcp/internal/errors"
)

// Service generates embedding vectors for short texts (callers pass
// previews, not raw content).
type Service interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	HealthCheck(ctx context.Context) error
}

// OpenAIService implements Service against the OpenAI embeddings API.
type OpenAIService struct {
	client  *openai.Client
	cfg     *config.OpenAIConfig
	limiter *RateLimiter

	cacheMu sync.RWMutex
	cache   map[string][]float32
}

// NewOpenAIService creates the embedding service.
func NewOpenAIService(cfg *config.OpenAIConfig) *OpenAIService {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	rpm := cfg.RateLimitRPM
	if rpm <= 0 {
		rpm = 60
	}

	return &OpenAIService{
		client:  openai.NewClientWithConfig(clientCfg),
		cfg:     cfg,
		limiter: NewRateLimiter(rpm, time.Minute/time.Duration(rpm)),
		cache:   make(map[string][]float32),
	}
}

// Dimensions returns the vector width requested from the model.
func (s *OpenAIService) Dimensions() int {
	return s.cfg.EmbeddingDimensions
}

// Embed generates an embedding for a single text.
func (s *OpenAIService) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, engerr.Validation("embedding input must not be empty")
	}
	text = s.clamp(text)

	key := s.cacheKey(text)
	if cached := s.fromCache(key); cached != nil {
		return cached, nil
	}

	vectors, err := s.request(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	s.toCache(key, vectors[0])
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts, serving cached entries
// without an API call.
func (s *OpenAIService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, engerr.Validation("embedding batch must not be empty")
	}

	results := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if text == "" {
			continue
		}
		clamped := s.clamp(text)
		if cached := s.fromCache(s.cacheKey(clamped)); cached != nil {
			results[i] = cached
			continue
		}
		missing = append(missing, clamped)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return results, nil
	}

	vectors, err := s.request(ctx, missing)
	if err != nil {
		return nil, err
	}
	for i, vec := range vectors {
		results[missingIdx[i]] = vec
		s.toCache(s.cacheKey(missing[i]), vec)
	}
	return results, nil
}

// HealthCheck embeds a trivial probe text.
func (s *OpenAIService) HealthCheck(ctx context.Context) error {
	_, err := s.Embed(ctx, "health check")
	return err
}

func (s *OpenAIService) request(ctx context.Context, inputs []string) ([][]float32, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, engerr.ExternalDegraded("embedding", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.RequestTimeoutSecs)*time.Second)
	defer cancel()

	resp, err := s.client.CreateEmbeddings(reqCtx, openai.EmbeddingRequest{
		Input:      inputs,
		Model:      openai.EmbeddingModel(s.cfg.EmbeddingModel),
		Dimensions: s.cfg.EmbeddingDimensions,
	})
	if err != nil {
		return nil, engerr.ExternalDegraded("embedding", err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, engerr.ExternalDegraded("embedding",
			fmt.Errorf("expected %d embeddings, got %d", len(inputs), len(resp.Data)))
	}

	out := make([][]float32, len(resp.Data))
	for i := range resp.Data {
		out[i] = resp.Data[i].Embedding
	}
	return out, nil
}

// clamp truncates the input to the configured byte bound before sending.
func (s *OpenAIService) clamp(text string) string {
	maxChars := s.cfg.EmbeddingMaxChars
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	return text[:maxChars]
}

func (s *OpenAIService) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(s.cfg.EmbeddingModel + "|" + text))
	return fmt.Sprintf("%x", sum)
}

func (s *OpenAIService) fromCache(key string) []float32 {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	if vec, ok := s.cache[key]; ok {
		out := make([]float32, len(vec))
		copy(out, vec)
		return out
	}
	return nil
}

const maxCacheEntries = 1000

func (s *OpenAIService) toCache(key string, vec []float32) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if len(s.cache) >= maxCacheEntries {
		evicted := 0
		for k := range s.cache {
			delete(s.cache, k)
			evicted++
			if evicted >= maxCacheEntries/10 {
				break
			}
		}
	}
	stored := make([]float32, len(vec))
	copy(stored, vec)
	s.cache[key] = stored
}

// RateLimiter is a token-bucket limiter for API calls.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
}

// NewRateLimiter creates a limiter holding maxTokens, refilling one token
// every refillRate.
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow consumes a token if one is available.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if refill := int(now.Sub(rl.lastRefill) / rl.refillRate); refill > 0 {
		rl.tokens += refill
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefill = now
	}
	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or the context ends.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		if rl.Allow() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}
