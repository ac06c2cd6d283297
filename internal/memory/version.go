package memory

import (
	"fmt"
	"strconv"
	"strings"

	engerr "dementia-mcp/internal/errors"
)

// Version is a semantic "M.m" context version. Stored as two integers;
// stringified at the boundary.
type Version struct {
	Major int
	Minor int
}

// FirstVersion is the version assigned to the first lock of a label.
var FirstVersion = Version{Major: 1, Minor: 0}

// ParseVersion parses "M.m" with non-negative integer components.
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return Version{}, engerr.Validationf("invalid version %q, expected M.m", s)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil || major < 0 {
		return Version{}, engerr.Validationf("invalid version %q, expected M.m", s)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil || minor < 0 {
		return Version{}, engerr.Validationf("invalid version %q, expected M.m", s)
	}
	return Version{Major: major, Minor: minor}, nil
}

// String renders the canonical "M.m" form.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compare orders versions component-wise: -1, 0 or 1.
func (v Version) Compare(o Version) int {
	if v.Major != o.Major {
		if v.Major < o.Major {
			return -1
		}
		return 1
	}
	if v.Minor != o.Minor {
		if v.Minor < o.Minor {
			return -1
		}
		return 1
	}
	return 0
}

// NextMinor increments the minor component.
func (v Version) NextMinor() Version {
	return Version{Major: v.Major, Minor: v.Minor + 1}
}
