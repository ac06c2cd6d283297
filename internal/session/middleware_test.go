package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	engerr "dementia-mcp/internal/errors"
)

// MockStore mocks the durable session store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Create(ctx context.Context, id, projectName string) (*Session, error) {
	args := m.Called(ctx, id, projectName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *MockStore) Get(ctx context.Context, id string) (*Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *MockStore) UpdateProject(ctx context.Context, id, projectName string) error {
	return m.Called(ctx, id, projectName).Error(0)
}

func (m *MockStore) Touch(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockStore) UpdateSummary(ctx context.Context, id string, summary *Summary) error {
	return m.Called(ctx, id, summary).Error(0)
}

func (m *MockStore) CleanupExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func passthrough(captured *string) ToolHandler {
	return func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		if captured != nil {
			*captured = SessionID(ctx)
		}
		return map[string]interface{}{"ok": true}, nil
	}
}

func TestWrap_GatesPendingSession(t *testing.T) {
	store := &MockStore{}
	store.On("Get", mock.Anything, "s1").
		Return(&Session{ID: "s1", ProjectName: PendingProject}, nil)
	store.On("Touch", mock.Anything, "s1").Return(nil)

	mw := NewMiddleware(store, NewProjectCache())
	handler := mw.Wrap("lock_context", passthrough(nil))

	_, err := handler(WithSessionID(context.Background(), "s1"), map[string]interface{}{})
	require.Error(t, err)
	assert.Equal(t, engerr.KindProjectNotSelected, engerr.KindOf(err))
}

func TestWrap_WhitelistBypassesGate(t *testing.T) {
	store := &MockStore{}
	store.On("Get", mock.Anything, "s1").
		Return(&Session{ID: "s1", ProjectName: PendingProject}, nil)
	store.On("Touch", mock.Anything, "s1").Return(nil)

	mw := NewMiddleware(store, NewProjectCache())

	for _, tool := range []string{"list_projects", "create_project", "select_project_for_session", "switch_project", "memory_health"} {
		handler := mw.Wrap(tool, passthrough(nil))
		_, err := handler(WithSessionID(context.Background(), "s1"), map[string]interface{}{})
		assert.NoError(t, err, "tool %s should be whitelisted", tool)
	}
}

func TestWrap_CreatesMissingSession(t *testing.T) {
	store := &MockStore{}
	store.On("Get", mock.Anything, "fresh").
		Return(nil, engerr.NotFound("session not found"))
	store.On("Create", mock.Anything, "fresh", PendingProject).
		Return(&Session{ID: "fresh", ProjectName: PendingProject}, nil)
	store.On("Touch", mock.Anything, "fresh").Return(nil)

	mw := NewMiddleware(store, NewProjectCache())
	handler := mw.Wrap("list_projects", passthrough(nil))

	_, err := handler(WithSessionID(context.Background(), "fresh"), map[string]interface{}{})
	require.NoError(t, err)
	store.AssertCalled(t, "Create", mock.Anything, "fresh", PendingProject)
}

func TestWrap_SynthesizesSessionID(t *testing.T) {
	store := &MockStore{}
	store.On("Get", mock.Anything, mock.Anything).
		Return(nil, engerr.NotFound("session not found"))
	store.On("Create", mock.Anything, mock.Anything, PendingProject).
		Return(&Session{ID: "any", ProjectName: PendingProject}, nil)
	store.On("Touch", mock.Anything, mock.Anything).Return(nil)

	mw := NewMiddleware(store, NewProjectCache())

	var seen string
	handler := mw.Wrap("list_projects", passthrough(&seen))
	_, err := handler(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	assert.NotEmpty(t, seen, "handler must see a published session id")
}

func TestWrap_SessionIDFromParams(t *testing.T) {
	store := &MockStore{}
	store.On("Get", mock.Anything, "from-params").
		Return(&Session{ID: "from-params", ProjectName: "alpha"}, nil)
	store.On("Touch", mock.Anything, "from-params").Return(nil)

	mw := NewMiddleware(store, NewProjectCache())

	var seen string
	handler := mw.Wrap("recall_context", passthrough(&seen))
	_, err := handler(context.Background(), map[string]interface{}{"session_id": "from-params"})
	require.NoError(t, err)
	assert.Equal(t, "from-params", seen)
}

func TestWrap_ReconcilesCacheFromRow(t *testing.T) {
	store := &MockStore{}
	store.On("Get", mock.Anything, "s2").
		Return(&Session{ID: "s2", ProjectName: "alpha_1"}, nil)
	store.On("Touch", mock.Anything, "s2").Return(nil)

	cache := NewProjectCache()
	mw := NewMiddleware(store, cache)
	handler := mw.Wrap("recall_context", passthrough(nil))

	_, err := handler(WithSessionID(context.Background(), "s2"), map[string]interface{}{})
	require.NoError(t, err)

	project, ok := cache.Get("s2")
	assert.True(t, ok)
	assert.Equal(t, "alpha_1", project)
}

func TestWrap_TouchAfterDispatch(t *testing.T) {
	store := &MockStore{}
	store.On("Get", mock.Anything, "s3").
		Return(&Session{ID: "s3", ProjectName: "alpha"}, nil)
	store.On("Touch", mock.Anything, "s3").Return(nil)

	mw := NewMiddleware(store, NewProjectCache())
	handler := mw.Wrap("recall_context", passthrough(nil))

	_, err := handler(WithSessionID(context.Background(), "s3"), map[string]interface{}{})
	require.NoError(t, err)
	store.AssertCalled(t, "Touch", mock.Anything, "s3")
}

func TestSessionHasProject(t *testing.T) {
	assert.False(t, (&Session{ProjectName: PendingProject}).HasProject())
	assert.False(t, (&Session{}).HasProject())
	assert.True(t, (&Session{ProjectName: "alpha"}).HasProject())
}
