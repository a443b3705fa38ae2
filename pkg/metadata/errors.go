package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotConnected is returned when a provider has no live connection.
var ErrNotConnected = errors.New("metadata provider is not connected")

// ErrCancelled wraps the context error of a cancelled request.
var ErrCancelled = errors.New("metadata request cancelled")

// ObjectNotFoundError is returned when a named child does not exist.
type ObjectNotFoundError struct {
	Parent []string // qualified name of the container searched
	Name   string
}

func (e *ObjectNotFoundError) Error() string {
	if len(e.Parent) == 0 {
		return fmt.Sprintf("object %q not found", e.Name)
	}
	return fmt.Sprintf("object %q not found in %s", e.Name, strings.Join(e.Parent, "."))
}

// CheckContext returns ErrCancelled wrapping ctx.Err() once ctx is done.
// Providers call it before every fetch and between iterations.
func CheckContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return nil
}

// IsNotFound reports whether err is an *ObjectNotFoundError.
func IsNotFound(err error) bool {
	var nf *ObjectNotFoundError
	return errors.As(err, &nf)
}
