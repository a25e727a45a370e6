package supportlib

import (
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-semver/semver"
)

// DefaultTagPrefix is the prefix DCMTK puts in front of release tags.
const DefaultTagPrefix = "DCMTK-"

// ErrInvalidTag is returned when a tag does not carry a numeric-dotted version.
var ErrInvalidTag = errors.New("invalid release tag")

// Release is a DCMTK release identified by its numeric-dotted version.
type Release struct {
	// Version is the numeric-dotted form, e.g. "3.6.7".
	Version string
}

// ParseTag strips prefix and surrounding whitespace from tag and validates
// the remainder as MAJOR.MINOR.PATCH.
func ParseTag(tag, prefix string) (Release, error) {
	raw := strings.TrimSpace(tag)
	if raw == "" {
		return Release{}, fmt.Errorf("empty tag: %w", ErrInvalidTag)
	}

	raw = strings.TrimPrefix(raw, prefix)

	parsed, err := semver.NewVersion(raw)
	if err != nil {
		return Release{}, fmt.Errorf("tag %q: %w: %w", tag, ErrInvalidTag, err)
	}

	if len(parsed.PreRelease) > 0 || parsed.Metadata != "" {
		return Release{}, fmt.Errorf("tag %q is not numeric-dotted: %w", tag, ErrInvalidTag)
	}

	return Release{Version: parsed.String()}, nil
}

// Dotless returns the version with all dots removed, e.g. "367".
// The vendor uses this form in download folder names.
func (r Release) Dotless() string {
	return strings.ReplaceAll(r.Version, ".", "")
}

// String implements fmt.Stringer.
func (r Release) String() string {
	return r.Version
}
