package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerr "dementia-mcp/internal/errors"
)

func TestTranslatePlaceholders(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "single placeholder",
			input: "SELECT * FROM context_locks WHERE label = ?",
			want:  "SELECT * FROM context_locks WHERE label = $1",
		},
		{
			name:  "multiple placeholders numbered in order",
			input: "INSERT INTO memory_entries (id, category, content) VALUES (?, ?, ?)",
			want:  "INSERT INTO memory_entries (id, category, content) VALUES ($1, $2, $3)",
		},
		{
			name:  "question mark inside string literal untouched",
			input: "SELECT * FROM t WHERE content = 'what?' AND label = ?",
			want:  "SELECT * FROM t WHERE content = 'what?' AND label = $1",
		},
		{
			name:  "escaped quote inside literal",
			input: "SELECT 'it''s a question?' WHERE a = ?",
			want:  "SELECT 'it''s a question?' WHERE a = $1",
		},
		{
			name:  "quoted identifier untouched",
			input: `SELECT "odd?col" FROM t WHERE x = ?`,
			want:  `SELECT "odd?col" FROM t WHERE x = $1`,
		},
		{
			name:  "line comment untouched",
			input: "SELECT 1 -- why? because\nWHERE a = ?",
			want:  "SELECT 1 -- why? because\nWHERE a = $1",
		},
		{
			name:  "block comment untouched",
			input: "SELECT /* really? */ 1 WHERE a = ?",
			want:  "SELECT /* really? */ 1 WHERE a = $1",
		},
		{
			name:  "pure dollar style passes through",
			input: "SELECT * FROM t WHERE a = $1 AND b = $2",
			want:  "SELECT * FROM t WHERE a = $1 AND b = $2",
		},
		{
			name:  "no placeholders",
			input: "SELECT now()",
			want:  "SELECT now()",
		},
		{
			name:  "more than nine placeholders",
			input: "VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			want:  "VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TranslatePlaceholders(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTranslatePlaceholders_MixedStylesRejected(t *testing.T) {
	_, err := TranslatePlaceholders("SELECT * FROM t WHERE a = ? AND b = $1")
	require.Error(t, err)
	assert.Equal(t, engerr.KindValidation, engerr.KindOf(err))
}

func TestTranslatePlaceholders_DollarInLiteralNotMixed(t *testing.T) {
	got, err := TranslatePlaceholders("SELECT '$1 is cheap' WHERE a = ?")
	require.NoError(t, err)
	assert.Equal(t, "SELECT '$1 is cheap' WHERE a = $1", got)
}
