package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dementia-mcp/internal/config"
	engerr "dementia-mcp/internal/errors"
	"dementia-mcp/internal/session"
	"dementia-mcp/internal/storage"
)

// stubSessions is a canned session.Store for paths that never reach the
// database.
type stubSessions struct {
	session *session.Session
	err     error
}

func (s *stubSessions) Create(ctx context.Context, id, projectName string) (*session.Session, error) {
	return s.session, s.err
}

func (s *stubSessions) Get(ctx context.Context, id string) (*session.Session, error) {
	return s.session, s.err
}

func (s *stubSessions) UpdateProject(ctx context.Context, id, projectName string) error {
	return s.err
}

func (s *stubSessions) Touch(ctx context.Context, id string) error { return nil }

func (s *stubSessions) UpdateSummary(ctx context.Context, id string, summary *session.Summary) error {
	return s.err
}

func (s *stubSessions) CleanupExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, s.err
}

// newTestEngine builds an engine over a lazily-opened pool. The tests using
// it only exercise paths that return before any statement runs.
func newTestEngine(t *testing.T, sessions session.Store) *Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.URL = "postgres://localhost:5432/dementia_test?sslmode=disable"
	adapter, err := storage.NewAdapter(&cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })
	return NewEngine(adapter, storage.NewSchemas(adapter), sessions, session.NewProjectCache(), nil, nil, cfg)
}

func TestGetLastHandover_CurrentSession(t *testing.T) {
	summary := &session.Summary{
		WorkDone:  []string{"implemented auth flow"},
		ToolsUsed: []string{"lock_context"},
		NextSteps: []string{"wire refresh tokens"},
	}
	lastActive := time.Now().UTC().Add(-10 * time.Minute)
	engine := newTestEngine(t, &stubSessions{session: &session.Session{
		ID:          "s1",
		ProjectName: "alpha",
		LastActive:  lastActive,
		Summary:     summary,
	}})

	ctx := session.WithSessionID(context.Background(), "s1")
	handover, err := engine.GetLastHandover(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, HandoverCurrent, handover.Status)
	assert.Equal(t, summary, handover.Summary)
	assert.Equal(t, lastActive, handover.CreatedAt)
	assert.InDelta(t, 0.17, handover.HoursAgo, 0.02)
	assert.Empty(t, handover.Narrative)
}

func TestGetLastHandover_ReservedProject(t *testing.T) {
	engine := newTestEngine(t, &stubSessions{})

	ctx := session.WithSessionID(context.Background(), "s1")
	_, err := engine.GetLastHandover(ctx, "system")
	require.Error(t, err)
	assert.True(t, engerr.IsKind(err, engerr.KindValidation))
}

func TestSleep_RequiresSession(t *testing.T) {
	engine := newTestEngine(t, &stubSessions{})

	_, err := engine.Sleep(context.Background(), SleepRequest{Project: "alpha"})
	require.Error(t, err)
	assert.True(t, engerr.IsKind(err, engerr.KindValidation))
}

func TestWakeUp_RequiresSession(t *testing.T) {
	engine := newTestEngine(t, &stubSessions{})

	_, err := engine.WakeUp(context.Background(), "alpha")
	require.Error(t, err)
	assert.True(t, engerr.IsKind(err, engerr.KindValidation))
}

func TestNarrate_NoCompleter(t *testing.T) {
	engine := newTestEngine(t, &stubSessions{})

	assert.Empty(t, engine.narrate(context.Background(), &session.Summary{
		WorkDone: []string{"anything"},
	}))
}
