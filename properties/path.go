package properties

import (
	"fmt"
	"strings"
)

// Defaults reserved member holding the fallback values of a group.
const Defaults = "defaults"

// Path addresses a node within the store.
type Path []string

// P convience constructor for paths.
func P(segments ...string) Path {
	return Path(segments)
}

// Append returns a new path with the segments appended, the receiver is never modified.
func (t Path) Append(segments ...string) Path {
	dup := make(Path, 0, len(t)+len(segments))
	dup = append(dup, t...)
	return append(dup, segments...)
}

// Clone the path.
func (t Path) Clone() Path {
	return t.Append()
}

// Member returns the [group, defaults, ...] form of the path when the path
// is eligible for default inheritance.
func (t Path) Member() (fallback Path, ok bool) {
	if len(t) < 3 || t[1] == Defaults {
		return nil, false
	}

	fallback = t.Clone()
	fallback[1] = Defaults
	return fallback, true
}

func (t Path) String() string {
	escaped := make([]string, 0, len(t))
	for _, s := range t {
		escaped = append(escaped, escapeSegment(s))
	}

	return strings.Join(escaped, ".")
}

func (t Path) validate() error {
	if len(t) == 0 {
		return InvalidPath{Path: t, Reason: "empty path"}
	}

	for i, s := range t {
		if s == "" {
			return InvalidPath{Path: t, Reason: fmt.Sprintf("segment %d is empty", i)}
		}
	}

	return nil
}

// ParsePath parses the dotted form of a path, see Path.String.
func ParsePath(s string) (p Path, err error) {
	if p, err = splitEscaped(s, '.', unescape); err != nil {
		return p, err
	}

	return p, p.validate()
}
