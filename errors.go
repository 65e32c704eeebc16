package memstream

import "github.com/pkg/errors"

// Error kinds surfaced to callers. Errors that originate in this package match
// exactly one of these via errors.Is. Errors from a destination writer, an
// IterateChunks callback or a canceled context are returned as they are (or
// wrapped) and match none of them.
var (
	// ErrClosed is returned by operations on a closed stream.
	ErrClosed = errors.New("stream is closed")

	// ErrOutOfRange is returned for negative counts, negative capacities
	// and invalid seek origins.
	ErrOutOfRange = errors.New("argument out of range")

	// ErrCapacityBelowLength is returned when setting capacity below the
	// current length.
	ErrCapacityBelowLength = errors.New("capacity below current length")

	// ErrSeekBeforeBegin is returned when the computed position would be
	// negative.
	ErrSeekBeforeBegin = errors.New("seek before begin")

	// ErrStreamTooLong is returned when capacity, length or position would
	// exceed the maximum stream length.
	ErrStreamTooLong = errors.New("stream too long")

	// ErrUnsupportedInMode is returned for operations not available in the
	// stream's current mode.
	ErrUnsupportedInMode = errors.New("operation not supported in this mode")

	// ErrSettingsLocked is returned when changing a one-shot global after
	// it has been latched.
	ErrSettingsLocked = errors.New("settings locked")

	// ErrOutOfMemory is returned when buffer acquisition failed. The
	// triggering operation is rolled back and the stream left unchanged.
	ErrOutOfMemory = errors.New("out of memory")
)
