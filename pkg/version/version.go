package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	Major = 0
	Minor = 1
	Patch = 0
)

var ErrInvalidVersion = errors.New("invalid version")

type Version struct {
	Major int
	Minor int
	Patch int
}

func Current() Version {
	return Version{Major: Major, Minor: Minor, Patch: Patch}
}

// String gives the version of the running binary
func String() string {
	return Current().String()
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Parse accepts "x.y.z" with an optional leading "v".
func Parse(s string) (Version, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")

	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("%w: %q (expected x.y.z)", ErrInvalidVersion, s)
	}

	var nums [3]int
	for i, name := range []string{"major", "minor", "patch"} {
		n, err := strconv.Atoi(parts[i])
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("%w: %q (invalid %s)", ErrInvalidVersion, s, name)
		}
		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) Compare(other Version) int {
	for _, d := range [3]int{v.Major - other.Major, v.Minor - other.Minor, v.Patch - other.Patch} {
		switch {
		case d < 0:
			return -1
		case d > 0:
			return 1
		}
	}
	return 0
}

// Compatible reports whether a file written for other can be read by v.
func (v Version) Compatible(other Version) bool {
	return v.Major == other.Major && v.Compare(other) >= 0
}
