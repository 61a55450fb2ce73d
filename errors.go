package codepush

import (
	"errors"
	"io"

	"github.com/hashicorp/go-multierror"
)

// ErrDestinationUnavailable is returned when the extraction destination
// cannot be created or used as a directory. The caller should treat this
// as a configuration problem, not a fault in the package itself.
var ErrDestinationUnavailable = errors.New("destination unavailable")

// ErrUnsafeEntryPath is returned when an entry's path, once normalized,
// would resolve outside the destination root. The package should be
// rejected; retrying will not help.
var ErrUnsafeEntryPath = errors.New("unsafe entry path")

// closeAll closes the given resources in reverse order of acquisition,
// skipping nils. Failures are collected rather than short-circuiting so
// that every resource gets its Close call; the caller decides whether
// the combined result outranks an error it already holds.
func closeAll(closers ...io.Closer) error {
	var result *multierror.Error
	for i := len(closers) - 1; i >= 0; i-- {
		if closers[i] == nil {
			continue
		}
		if err := closers[i].Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
