// Package version reports the library version and compares release versions.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Current is the version of this library, reported by every accessory
// delegate's version property.
const Current = "1.0.0"

// Release is a parsed "major.minor.patch" version.
type Release struct {
	Major uint16
	Minor uint16
	Patch uint16
}

// Parse parses a "major.minor.patch" version. A leading "v" is accepted and
// a missing patch component defaults to zero.
func Parse(s string) (Release, error) {
	parts := strings.Split(strings.TrimPrefix(s, "v"), ".")
	if len(parts) < 2 || len(parts) > 3 {
		return Release{}, fmt.Errorf("invalid version %q: expected major.minor.patch", s)
	}
	var nums [3]uint16
	for i, p := range parts {
		if p == "" {
			return Release{}, fmt.Errorf("invalid version %q: empty component", s)
		}
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return Release{}, fmt.Errorf("invalid version %q: bad component %q", s, p)
		}
		nums[i] = uint16(n)
	}
	return Release{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// MustParse is Parse that panics on error.
func MustParse(s string) Release {
	r, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return r
}

// String returns the version as "major.minor.patch".
func (r Release) String() string {
	return fmt.Sprintf("%d.%d.%d", r.Major, r.Minor, r.Patch)
}

// Compare returns -1, 0 or 1 as r is older than, equal to or newer than other.
func (r Release) Compare(other Release) int {
	a := [3]uint16{r.Major, r.Minor, r.Patch}
	b := [3]uint16{other.Major, other.Minor, other.Patch}
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

// Satisfies reports whether r can be used where min is required: same major
// version and not older.
func (r Release) Satisfies(min Release) bool {
	return r.Major == min.Major && r.Compare(min) >= 0
}
