package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerr "dementia-mcp/internal/errors"
)

func TestDecodeArgs_WeakTyping(t *testing.T) {
	var args struct {
		Topic string `json:"topic"`
		Limit int    `json:"limit"`
		Force bool   `json:"force"`
	}
	// JSON numbers arrive as float64 and booleans sometimes as strings.
	err := decodeArgs(map[string]interface{}{
		"topic": "api",
		"limit": float64(5),
		"force": "true",
	}, &args)
	require.NoError(t, err)
	assert.Equal(t, "api", args.Topic)
	assert.Equal(t, 5, args.Limit)
	assert.True(t, args.Force)
}

func TestDecodeArgs_IgnoresUnknownKeys(t *testing.T) {
	var args struct {
		Topic string `json:"topic"`
	}
	err := decodeArgs(map[string]interface{}{"topic": "api", "session_id": "s1"}, &args)
	require.NoError(t, err)
	assert.Equal(t, "api", args.Topic)
}

func TestDecodeArgs_NestedStructs(t *testing.T) {
	var args struct {
		Contexts []lockArgs `json:"contexts"`
	}
	err := decodeArgs(map[string]interface{}{
		"contexts": []interface{}{
			map[string]interface{}{"topic": "a", "content": "x", "tags": []interface{}{"t1"}},
		},
	}, &args)
	require.NoError(t, err)
	require.Len(t, args.Contexts, 1)
	assert.Equal(t, "a", args.Contexts[0].Topic)
	assert.Equal(t, []string{"t1"}, args.Contexts[0].Tags)
}

func TestDecodeArgs_TypeMismatch(t *testing.T) {
	var args struct {
		Limit int `json:"limit"`
	}
	err := decodeArgs(map[string]interface{}{"limit": map[string]interface{}{}}, &args)
	require.Error(t, err)
	assert.Equal(t, engerr.KindValidation, engerr.KindOf(err))
}
