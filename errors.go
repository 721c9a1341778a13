package wld

import (
	"errors"
	"fmt"
)

// Errors returned by buffers, renderers and surfaces.
var (
	// ErrNotMapped is returned by Unmap on a buffer with no outstanding Map.
	ErrNotMapped = errors.New("wld: buffer not mapped")

	// ErrDestroyed is returned when a buffer is used after its last reference
	// was dropped.
	ErrDestroyed = errors.New("wld: buffer destroyed")

	// ErrNoSocket is returned by Swap on a surface that has no buffer socket.
	ErrNoSocket = errors.New("wld: surface has no buffer socket")

	// ErrForeignBuffer is returned when a buffer does not belong to the
	// surface or backend it is handed to.
	ErrForeignBuffer = errors.New("wld: foreign buffer")

	// ErrNoTarget is returned by drawing operations on a renderer with no
	// target buffer.
	ErrNoTarget = errors.New("wld: renderer has no target")

	// ErrInvalidSize is returned for zero or negative buffer dimensions.
	ErrInvalidSize = errors.New("wld: invalid buffer size")

	// ErrUnsupportedFormat is returned for pixel formats a backend cannot
	// allocate or present.
	ErrUnsupportedFormat = errors.New("wld: unsupported format")

	// ErrNoBackendAvailable is returned when no registered backend could
	// create a context.
	ErrNoBackendAvailable = errors.New("wld: no backend available")
)

// UnsupportedObjectError is returned when no exporter or importer handles an
// object type.
type UnsupportedObjectError struct {
	Type ObjectType
}

func (e *UnsupportedObjectError) Error() string {
	return fmt.Sprintf("wld: unsupported object type %v", e.Type)
}

// BackendNotFoundError indicates a named backend is not registered.
type BackendNotFoundError struct {
	Name string
}

func (e *BackendNotFoundError) Error() string {
	return "wld: backend not found: " + e.Name
}

// BackendUnavailableError indicates a backend exists but is not available.
type BackendUnavailableError struct {
	Name string
}

func (e *BackendUnavailableError) Error() string {
	return "wld: backend unavailable: " + e.Name
}

// ValidateSize returns ErrInvalidSize unless width and height are positive.
func ValidateSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	return nil
}

// ValidateLayout checks the dimensions, format and row pitch of a buffer
// described by a caller, as on import.
func ValidateLayout(width, height int, format Format, pitch int) error {
	if err := ValidateSize(width, height); err != nil {
		return err
	}
	bpp := format.BytesPerPixel()
	if bpp == 0 {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}
	if pitch < width*bpp {
		return fmt.Errorf("%w: pitch %d for %d pixels of %v", ErrInvalidSize, pitch, width, format)
	}
	return nil
}
