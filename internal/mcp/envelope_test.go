package mcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerr "dementia-mcp/internal/errors"
)

func TestSuccessEnvelope_MergesObjects(t *testing.T) {
	envelope := successEnvelope(map[string]interface{}{"project": "alpha", "count": 2})

	assert.Equal(t, true, envelope["success"])
	assert.Equal(t, "alpha", envelope["project"])
	assert.NotEmpty(t, envelope["timestamp"])
}

func TestSuccessEnvelope_StructResult(t *testing.T) {
	type result struct {
		Label string `json:"label"`
	}
	envelope := successEnvelope(result{Label: "api"})
	assert.Equal(t, "api", envelope["label"])
}

func TestSuccessEnvelope_ScalarResult(t *testing.T) {
	envelope := successEnvelope(42)
	assert.Equal(t, float64(42), envelope["result"])
}

func TestSuccessEnvelope_NilResult(t *testing.T) {
	envelope := successEnvelope(nil)
	assert.Equal(t, true, envelope["success"])
	assert.NotContains(t, envelope, "result")
}

func TestSuccessEnvelope_ResultCannotOverrideSuccess(t *testing.T) {
	envelope := successEnvelope(map[string]interface{}{"success": false})
	assert.Equal(t, true, envelope["success"])
}

func TestSuccessEnvelope_AlwaysSerializable(t *testing.T) {
	envelope := successEnvelope(map[string]interface{}{
		"bad": func() {},
	})
	_, err := json.Marshal(envelope)
	require.NoError(t, err)
}

func TestErrorEnvelope(t *testing.T) {
	err := engerr.Validation("topic must not be empty").WithContext("tool", "lock_context")
	envelope := errorEnvelope(err)

	assert.Equal(t, false, envelope["success"])
	assert.Equal(t, string(engerr.KindValidation), envelope["error_type"])
	assert.Contains(t, envelope["error"], "topic must not be empty")
	require.Contains(t, envelope, "context")

	_, merr := json.Marshal(envelope)
	require.NoError(t, merr)
}

func TestErrorEnvelope_PlainError(t *testing.T) {
	envelope := errorEnvelope(assert.AnError)
	assert.Equal(t, string(engerr.KindInternal), envelope["error_type"])
}
