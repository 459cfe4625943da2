package properties

import (
	"fmt"

	"github.com/pkg/errors"
)

// MissingProperty the path does not resolve to a node, even after default resolution.
type MissingProperty struct {
	Path Path
}

func (t MissingProperty) Error() string {
	return fmt.Sprintf("missing property: %s", t.Path)
}

// InvalidPath the path can never resolve, e.g. a prefix of it is a value.
type InvalidPath struct {
	Path   Path
	Reason string
}

func (t InvalidPath) Error() string {
	return fmt.Sprintf("invalid property path '%s': %s", t.Path, t.Reason)
}

// IsMissing checks if the error is a MissingProperty.
func IsMissing(err error) bool {
	var m MissingProperty
	return errors.As(err, &m)
}

// IsInvalidPath checks if the error is an InvalidPath.
func IsInvalidPath(err error) bool {
	var m InvalidPath
	return errors.As(err, &m)
}
