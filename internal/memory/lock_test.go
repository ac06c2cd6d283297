package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dementia-mcp/internal/config"
	"dementia-mcp/internal/embeddings"
	engerr "dementia-mcp/internal/errors"
	"dementia-mcp/internal/session"
	"dementia-mcp/internal/storage"
)

// recordingEmbedder counts Embed calls so tests can assert whether the
// enrichment path ran.
type recordingEmbedder struct {
	calls int
}

func (r *recordingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	r.calls++
	return []float32{0.5, 0.5}, nil
}

func (r *recordingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.5, 0.5}
	}
	return out, nil
}

func (r *recordingEmbedder) Dimensions() int { return 2 }

func (r *recordingEmbedder) HealthCheck(ctx context.Context) error { return nil }

func newTestEngineWithEmbedder(t *testing.T, embedder embeddings.Service) *Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.URL = "postgres://localhost:5432/dementia_test?sslmode=disable"
	adapter, err := storage.NewAdapter(&cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })
	return NewEngine(adapter, storage.NewSchemas(adapter), &stubSessions{}, session.NewProjectCache(), embedder, nil, cfg)
}

func TestPrepareLock_EmptyContent(t *testing.T) {
	engine := newTestEngine(t, &stubSessions{})

	p, err := engine.prepareLock(context.Background(), LockRequest{Topic: "placeholder"})
	require.NoError(t, err)
	assert.Empty(t, p.preview)
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		p.hash)
	assert.Equal(t, PriorityReference, p.priority)
	assert.Empty(t, p.concepts)
}

func TestPrepareLock_EmptyContentSkipsEmbedding(t *testing.T) {
	embedder := &recordingEmbedder{}
	engine := newTestEngineWithEmbedder(t, embedder)

	p, err := engine.prepareLock(context.Background(), LockRequest{Topic: "placeholder"})
	require.NoError(t, err)
	assert.Nil(t, p.embedding)
	assert.Zero(t, embedder.calls)

	p, err = engine.prepareLock(context.Background(), LockRequest{Topic: "notes", Content: "refresh tokens rotate hourly"})
	require.NoError(t, err)
	assert.NotNil(t, p.embedding)
	assert.Equal(t, 1, embedder.calls)
}

func TestPrepareLock_RequiresTopic(t *testing.T) {
	engine := newTestEngine(t, &stubSessions{})

	_, err := engine.prepareLock(context.Background(), LockRequest{Content: "something"})
	require.Error(t, err)
	assert.True(t, engerr.IsKind(err, engerr.KindValidation))
}

func TestBatchLockContexts_ConflictingItemProject(t *testing.T) {
	engine := newTestEngine(t, &stubSessions{})

	_, err := engine.BatchLockContexts(context.Background(), []LockRequest{
		{Topic: "auth", Content: "token layout", Project: "beta"},
	}, "alpha")
	require.Error(t, err)
	assert.True(t, engerr.IsKind(err, engerr.KindValidation))
	assert.Contains(t, err.Error(), "conflicts")
}
