package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("2.7")
	require.NoError(t, err)
	assert.Equal(t, Version{Major: 2, Minor: 7}, v)
	assert.Equal(t, "2.7", v.String())
}

func TestParseVersion_Invalid(t *testing.T) {
	for _, raw := range []string{"", "1", "1.2.3", "a.b", "1.-1", "-1.0", "1.", ".1"} {
		_, err := ParseVersion(raw)
		assert.Error(t, err, "raw %q", raw)
	}
}

func TestVersionCompare(t *testing.T) {
	assert.Equal(t, 0, Version{1, 0}.Compare(Version{1, 0}))
	assert.Equal(t, -1, Version{1, 0}.Compare(Version{1, 1}))
	assert.Equal(t, 1, Version{2, 0}.Compare(Version{1, 9}))
	assert.Equal(t, -1, Version{1, 9}.Compare(Version{2, 0}))
}

func TestVersionNextMinor(t *testing.T) {
	assert.Equal(t, Version{1, 1}, Version{1, 0}.NextMinor())
	assert.Equal(t, Version{3, 10}, Version{3, 9}.NextMinor())
}
