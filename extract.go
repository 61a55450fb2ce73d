package codepush

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// ensureDestination makes sure destination exists and is a directory,
// creating it (with any missing parents) if absent. A non-directory
// already occupying the path is replaced; if it cannot be, the
// destination is unusable.
func ensureDestination(destination string) error {
	info, err := os.Stat(destination)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// fall through to MkdirAll below
	case err != nil:
		return fmt.Errorf("%w: %s: %v", ErrDestinationUnavailable, destination, err)
	case info.IsDir():
		return nil
	default:
		if err := os.Remove(destination); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrDestinationUnavailable, destination, err)
		}
	}
	if err := os.MkdirAll(destination, 0755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDestinationUnavailable, destination, err)
	}
	return nil
}

// resolveEntryPath joins an entry's relative name onto the destination
// root, normalizing separators. To avoid zip slip (writing outside of
// the destination), the resolved path must remain strictly nested in
// the destination, or we bail.
func resolveEntryPath(destination, name string) (string, error) {
	target := filepath.Join(destination, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(destination)+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafeEntryPath, name)
	}
	return target, nil
}

type seekReaderAt interface {
	io.ReaderAt
	io.Seeker
}

// readerAtFrom adapts a package source to the random access the zip
// format requires for its central directory. Sources that already
// support it are used directly; forward-only streams are spooled to a
// temporary file in a single bounded-buffer pass, so peak memory stays
// flat regardless of package size. The returned release func must be
// called when reading is finished; spool cleanup failures are logged,
// never surfaced.
func readerAtFrom(source io.Reader, log logrus.FieldLogger) (io.ReaderAt, int64, func(), error) {
	if sra, ok := source.(seekReaderAt); ok {
		size, err := streamSize(sra)
		if err != nil {
			return nil, 0, nil, fmt.Errorf("sizing package stream: %w", err)
		}
		return sra, size, func() {}, nil
	}

	spool, err := os.CreateTemp("", "update-package-*")
	if err != nil {
		return nil, 0, nil, fmt.Errorf("spooling package: %w", err)
	}
	release := func() { releaseSpool(spool, log) }

	size, err := io.CopyBuffer(spool, source, make([]byte, writeBufferSize))
	if err != nil {
		release()
		return nil, 0, nil, fmt.Errorf("spooling package: %w", err)
	}
	return spool, size, release, nil
}

func releaseSpool(spool *os.File, log logrus.FieldLogger) {
	if err := spool.Close(); err != nil {
		log.WithField("path", spool.Name()).WithError(err).Warn("closing spool file")
	}
	if err := os.Remove(spool.Name()); err != nil {
		log.WithField("path", spool.Name()).WithError(err).Warn("removing spool file")
	}
}

// streamSize reports the total size of the stream, restoring the
// current read position before returning.
func streamSize(s io.Seeker) (int64, error) {
	cur, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	end, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := s.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}
	return end, nil
}
