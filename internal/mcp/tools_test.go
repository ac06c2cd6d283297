package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectProjectResultShape(t *testing.T) {
	envelope := successEnvelope(selectProjectResult("Alpha-1", "dementia_alpha_1"))

	assert.Equal(t, true, envelope["success"])
	assert.Equal(t, "Alpha-1", envelope["project"])
	assert.Equal(t, "dementia_alpha_1", envelope["schema"])
	assert.NotEmpty(t, envelope["timestamp"])
}
