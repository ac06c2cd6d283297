package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dementia-mcp/internal/storage"
)

func TestParseTextArray(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseTextArray("{a,b}"))
	assert.Equal(t, []string{}, parseTextArray("{}"))
	assert.Equal(t, []string{"one two", "three"}, parseTextArray(`{"one two",three}`))
	assert.Equal(t, []string{`he said "hi"`}, parseTextArray(`{"he said \"hi\""}`))
	assert.Nil(t, parseTextArray("not an array"))
}

func TestParseFloatArray(t *testing.T) {
	assert.Equal(t, []float32{0.5, -1, 2.25}, parseFloatArray("{0.5,-1,2.25}"))
	assert.Nil(t, parseFloatArray("{}"))
	assert.Nil(t, parseFloatArray("{a,b}"))
	assert.Nil(t, parseFloatArray(""))
}

func TestFloats64(t *testing.T) {
	assert.Nil(t, floats64(nil))
	assert.Equal(t, []float64{0.5, 1}, floats64([]float32{0.5, 1}))
}

func TestScanLock(t *testing.T) {
	now := time.Now()
	row := storage.Row{
		"id":            "0b74cbb3-6f6e-4f84-9d97-9f8a9b3f1111",
		"session_id":    "sess-1",
		"label":         "api",
		"version_major": int64(2),
		"version_minor": int64(3),
		"content":       "full content",
		"content_hash":  HashContent("full content"),
		"preview":       "full content",
		"key_concepts":  "{content,full}",
		"priority":      PriorityImportant,
		"metadata":      `{"tags":["x"]}`,
		"locked_at":     now,
		"last_accessed": now,
		"access_count":  int64(4),
		"embedding":     "{0.1,0.2}",
	}

	lock := scanLock(row)
	assert.Equal(t, "api", lock.Label)
	assert.Equal(t, "2.3", lock.Version.String())
	assert.Equal(t, []string{"content", "full"}, lock.KeyConcepts)
	assert.Equal(t, PriorityImportant, lock.Priority)
	assert.Equal(t, int64(4), lock.AccessCount)
	require.NotNil(t, lock.LastAccess)
	assert.Equal(t, []float32{0.1, 0.2}, lock.Embedding)
	require.NotNil(t, lock.Metadata)
	assert.Contains(t, lock.Metadata, "tags")
}

func TestScanLock_NullableFields(t *testing.T) {
	lock := scanLock(storage.Row{
		"id":            "x",
		"label":         "bare",
		"version_major": int64(1),
		"version_minor": int64(0),
		"last_accessed": nil,
		"embedding":     nil,
	})
	assert.Nil(t, lock.LastAccess)
	assert.Nil(t, lock.Embedding)
	assert.Equal(t, "1.0", lock.Version.String())
}
