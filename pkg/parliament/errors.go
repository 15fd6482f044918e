package parliament

import "errors"

var (
	// ErrNavigation reports a path segment that does not exist on the object graph.
	ErrNavigation = errors.New("path navigation failed")

	// ErrDurableWrite reports that the system of record refused or failed a write.
	ErrDurableWrite = errors.New("durable write failed")

	// ErrStale is returned by recorders when the stored value no longer matches
	// the value the writer expected to replace.
	ErrStale = errors.New("stale write")

	// ErrNoArchive reports an operation on a key with no local archive.
	ErrNoArchive = errors.New("archive not found")

	// ErrUnknownPurpose reports an envelope whose purpose has no handler.
	ErrUnknownPurpose = errors.New("unknown envelope purpose")

	// ErrUnknownTrigger reports a CREATE_ARCHIVE naming an unregistered trigger.
	ErrUnknownTrigger = errors.New("unknown archive trigger")
)

// IsNavigation returns true if err is (or wraps) ErrNavigation.
func IsNavigation(err error) bool {
	return errors.Is(err, ErrNavigation)
}
