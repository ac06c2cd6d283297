package memory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerr "dementia-mcp/internal/errors"
)

func TestSanitizeProjectName(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"lowercase passthrough", "myproject", "myproject"},
		{"mixed case", "MyProject", "myproject"},
		{"spaces become underscores", "My Cool Project", "my_cool_project"},
		{"special characters", "proj@2024!v2", "proj_2024_v2"},
		{"runs collapse", "a---b___c", "a_b_c"},
		{"edges stripped", "--project--", "project"},
		{"digits kept", "svc42", "svc42"},
		{"unicode replaced", "café", "caf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeProjectName(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeProjectName_Truncates(t *testing.T) {
	got, err := SanitizeProjectName(strings.Repeat("a", 64))
	require.NoError(t, err)
	assert.Len(t, got, 32)
}

func TestSanitizeProjectName_Idempotent(t *testing.T) {
	for _, raw := range []string{"My Cool Project", "a---b", strings.Repeat("ab ", 30), "x"} {
		once, err := SanitizeProjectName(raw)
		require.NoError(t, err)
		twice, err := SanitizeProjectName(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, "sanitize must be idempotent for %q", raw)
	}
}

func TestSchemaName(t *testing.T) {
	engine := newTestEngine(t, &stubSessions{})
	assert.Equal(t, "dementia_alpha_1", engine.SchemaName("alpha_1"))
}

func TestSanitizeProjectName_Empty(t *testing.T) {
	for _, raw := range []string{"", "---", "@@@", "  "} {
		_, err := SanitizeProjectName(raw)
		require.Error(t, err, "raw %q", raw)
		assert.Equal(t, engerr.KindValidation, engerr.KindOf(err))
	}
}
