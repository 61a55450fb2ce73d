package codepush

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	szip "github.com/STARRY-S/zip"
	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"
	"golang.org/x/text/encoding/ianaindex"
)

func init() {
	// Non-standard (but registered) compression methods some zip tools
	// emit. Without these, entries using them fail with ErrAlgorithm
	// instead of extracting.
	zip.RegisterDecompressor(ZipMethodBzip2, func(r io.Reader) io.ReadCloser {
		bz2r, err := bzip2.NewReader(r, nil)
		if err != nil {
			return errorReadCloser(err)
		}
		return bz2r
	})
	zip.RegisterDecompressor(ZipMethodZstd, func(r io.Reader) io.ReadCloser {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return errorReadCloser(err)
		}
		return zr.IOReadCloser()
	})
	zip.RegisterDecompressor(ZipMethodXz, func(r io.Reader) io.ReadCloser {
		xr, err := xz.NewReader(r)
		if err != nil {
			return errorReadCloser(err)
		}
		return io.NopCloser(xr)
	})
}

// Additional compression methods not offered by the zip packages.
// See https://pkware.cachefly.net/webdocs/casestudies/APPNOTE.TXT, section 4.4.5.
const (
	ZipMethodBzip2 = 12
	ZipMethodZstd  = 93
	ZipMethodXz    = 95
)

// Zip reads and writes update packages, which are standard
// deflate-based zip containers.
type Zip struct {
	// Compression method for packages being created. Deflate is
	// assumed if zero, since storing an update uncompressed doesn't
	// make sense in our use cases.
	Compression uint16

	// TextEncoding is the IANA name of the character encoding used to
	// decode entry names that are not flagged as UTF-8. If empty,
	// names are taken as-is.
	TextEncoding string

	// Logger receives diagnostics for best-effort operations, such as
	// restoring an entry's modification time or releasing a spool
	// file. Those failures are never returned to the caller. If nil,
	// the logrus standard logger is used.
	Logger logrus.FieldLogger
}

func (Zip) Name() string { return ".zip" }

func (z Zip) Match(filename string, stream io.Reader) (MatchResult, error) {
	var mr MatchResult

	// match filename
	if strings.Contains(strings.ToLower(filename), z.Name()) {
		mr.ByName = true
	}

	// match file header
	buf, err := readAtMost(stream, len(zipHeader))
	if err != nil {
		return mr, err
	}
	mr.ByStream = bytes.Equal(buf, zipHeader)

	return mr, nil
}

// Extract materializes the package read from sourceArchive under the
// destination directory, creating it (and any missing ancestors of
// nested entries) as needed. Entries are processed in a single forward
// pass in archive order; the first substantive failure aborts the pass
// and is returned after resources are released. A half-extracted
// destination may remain in that case, but the caller is always told.
//
// Entry paths that would resolve outside destination are rejected with
// ErrUnsafeEntryPath. A destination that cannot be created or used as a
// directory is reported as ErrDestinationUnavailable. Anything else is
// the underlying I/O cause, wrapped.
func (z Zip) Extract(ctx context.Context, sourceArchive io.Reader, destination string) error {
	if err := ctx.Err(); err != nil {
		return err // honor context cancellation
	}

	if err := ensureDestination(destination); err != nil {
		return err
	}

	sra, size, release, err := readerAtFrom(sourceArchive, z.log())
	if err != nil {
		return err
	}
	defer release()

	zr, err := zip.NewReader(sra, size)
	if err != nil {
		return fmt.Errorf("reading package: %w", err)
	}

	// klauspost's flate in place of the stock decompressor. Deflate is
	// pre-registered package-wide, so the swap has to be per reader.
	zr.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := z.extractEntry(f, destination); err != nil {
			return err
		}
	}

	return nil
}

func (z Zip) extractEntry(f *zip.File, destination string) error {
	name, err := z.entryName(f)
	if err != nil {
		return err
	}

	target, err := resolveEntryPath(destination, name)
	if err != nil {
		return err
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(target, 0755); err != nil {
			return fmt.Errorf("%s: making directory: %w", name, err)
		}
	} else {
		if err := z.writeEntryFile(f, name, target); err != nil {
			return err
		}
	}

	// Metadata only; data integrity is unaffected if this fails.
	if mt := f.Modified; mt.Unix() > 0 {
		if err := os.Chtimes(target, mt, mt); err != nil {
			z.log().WithField("path", target).WithError(err).
				Warn("restoring entry modification time")
		}
	}

	return nil
}

func (z Zip) writeEntryFile(f *zip.File, name, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("%s: making directory for file: %w", name, err)
	}

	in, err := f.Open()
	if err != nil {
		return fmt.Errorf("%s: opening entry: %w", name, err)
	}

	out, err := os.Create(target)
	if err != nil {
		if cerr := closeAll(in); cerr != nil {
			z.log().WithField("entry", name).WithError(cerr).Warn("releasing entry reader")
		}
		return fmt.Errorf("%s: creating file: %w", name, err)
	}

	_, err = io.CopyBuffer(out, in, make([]byte, writeBufferSize))
	cerr := closeAll(out, in)
	if err != nil {
		// The copy failure is the substantive one; close failures
		// during cleanup must not mask it.
		if cerr != nil {
			z.log().WithField("entry", name).WithError(cerr).Warn("releasing entry resources")
		}
		return fmt.Errorf("%s: writing file: %w", name, err)
	}
	if cerr != nil {
		return fmt.Errorf("%s: closing file: %w", name, cerr)
	}
	return nil
}

func (z Zip) entryName(f *zip.File) (string, error) {
	if z.TextEncoding == "" || !f.NonUTF8 {
		return f.Name, nil
	}
	enc, err := ianaindex.IANA.Encoding(z.TextEncoding)
	if err != nil {
		return "", fmt.Errorf("%s: unknown text encoding %s: %w", f.Name, z.TextEncoding, err)
	}
	if enc == nil {
		// the index knows the name but has no decoder for it
		return "", fmt.Errorf("%s: unsupported text encoding %s", f.Name, z.TextEncoding)
	}
	name, err := enc.NewDecoder().String(f.Name)
	if err != nil {
		return "", fmt.Errorf("%s: decoding entry name: %w", f.Name, err)
	}
	return name, nil
}

// Archive writes the directory tree rooted at root to output as an
// update package. Entry names are slash-separated paths relative to
// root; directory entries are emitted explicitly and modification
// times are preserved.
func (z Zip) Archive(ctx context.Context, output io.Writer, root string) error {
	zw := szip.NewWriter(output)
	zw.RegisterCompressor(szip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})

	err := filepath.WalkDir(root, func(fpath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err // honor context cancellation
		}

		rel, err := filepath.Rel(root, fpath)
		if err != nil {
			return fmt.Errorf("%s: resolving name in package: %w", fpath, err)
		}
		if rel == "." {
			return nil // the root itself is implied
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("%s: stating file: %w", fpath, err)
		}

		hdr, err := szip.FileInfoHeader(info)
		if err != nil {
			return fmt.Errorf("%s: creating header: %w", fpath, err)
		}
		hdr.Name = filepath.ToSlash(rel)
		if d.IsDir() {
			hdr.Name += "/"
			hdr.Method = szip.Store
		} else {
			hdr.Method = z.method()
		}

		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("%s: writing header: %w", hdr.Name, err)
		}
		if d.IsDir() {
			return nil
		}

		in, err := os.Open(fpath)
		if err != nil {
			return fmt.Errorf("%s: opening file: %w", fpath, err)
		}
		_, err = io.CopyBuffer(w, in, make([]byte, writeBufferSize))
		cerr := closeAll(in)
		if err != nil {
			return fmt.Errorf("%s: writing data: %w", hdr.Name, err)
		}
		if cerr != nil {
			return fmt.Errorf("%s: closing file: %w", fpath, cerr)
		}
		return nil
	})

	cerr := zw.Close()
	if err != nil {
		return err
	}
	if cerr != nil {
		return fmt.Errorf("closing package: %w", cerr)
	}
	return nil
}

func (z Zip) method() uint16 {
	if z.Compression == 0 {
		return szip.Deflate
	}
	return z.Compression
}

func (z Zip) log() logrus.FieldLogger {
	if z.Logger != nil {
		return z.Logger
	}
	return logrus.StandardLogger()
}

// errorReadCloser turns a decompressor construction failure into an
// ordinary read error, so a corrupt entry surfaces through the copy
// loop instead of a nil reader.
func errorReadCloser(err error) io.ReadCloser {
	return io.NopCloser(errorReader{err})
}

type errorReader struct {
	err error
}

func (er errorReader) Read([]byte) (int, error) { return 0, er.err }

// magic number at the beginning of zip files
var zipHeader = []byte("PK\x03\x04")

// Interface guards
var (
	_ Extractor = (*Zip)(nil)
	_ Archiver  = (*Zip)(nil)
)
