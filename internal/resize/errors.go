package resize

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnreadable means the source is missing, inaccessible or cannot be decoded.
	ErrSourceUnreadable = errors.New("source unreadable")
	// ErrUnsupportedFormat means neither the source format nor the fallback can be encoded.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrWriteFailure means the output could not be written.
	ErrWriteFailure = errors.New("filesystem write failure")
	// ErrInvalidGeometry means the requested size resolves to a degenerate geometry.
	ErrInvalidGeometry = errors.New("invalid geometry")
)

// OperationError is returned by Resize. Err wraps one of the sentinel errors
// above together with the underlying cause.
type OperationError struct {
	Path string
	Err  error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("resize %s: %v", e.Path, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

func opError(path string, kind, cause error) error {
	if cause == nil {
		return &OperationError{Path: path, Err: kind}
	}
	return &OperationError{Path: path, Err: fmt.Errorf("%w: %w", kind, cause)}
}
