package codepush

import (
	"context"
	"io"
)

// Extractor can materialize an update package on the local file system.
type Extractor interface {
	// Extract reads the package from sourceArchive and writes its
	// entries under the destination directory.
	//
	// Context cancellation must be honored.
	Extract(ctx context.Context, sourceArchive io.Reader, destination string) error
}

// Archiver can create a new update package.
type Archiver interface {
	// Archive writes the directory tree rooted at root to output as
	// an update package.
	//
	// Context cancellation must be honored.
	Archive(ctx context.Context, output io.Writer, root string) error
}
