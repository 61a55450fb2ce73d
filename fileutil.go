package codepush

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// writeBufferSize bounds the intermediate buffer used for all copy
// loops, so peak memory stays flat regardless of file size.
const writeBufferSize = 8 * 1024

// FileExists reports whether a file or directory exists at name.
func FileExists(name string) bool {
	_, err := os.Stat(name)
	return !os.IsNotExist(err)
}

// CopyDirectoryContents recursively copies everything under source
// into destination, creating destination (and any nested directories)
// as needed. Files already present in destination are overwritten on
// name collision.
func CopyDirectoryContents(source, destination string) error {
	if err := os.MkdirAll(destination, 0755); err != nil {
		return fmt.Errorf("%s: making directory: %w", destination, err)
	}

	entries, err := os.ReadDir(source)
	if err != nil {
		return fmt.Errorf("%s: listing directory: %w", source, err)
	}

	for _, entry := range entries {
		src := filepath.Join(source, entry.Name())
		dst := filepath.Join(destination, entry.Name())
		if entry.IsDir() {
			if err := CopyDirectoryContents(src, dst); err != nil {
				return err
			}
			continue
		}
		if err := copyFileContents(src, dst); err != nil {
			return err
		}
	}
	return nil
}

func copyFileContents(source, destination string) error {
	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("%s: opening file: %w", source, err)
	}

	out, err := os.Create(destination)
	if err != nil {
		closeSilently(in, source)
		return fmt.Errorf("%s: creating file: %w", destination, err)
	}

	_, err = io.CopyBuffer(out, in, make([]byte, writeBufferSize))
	cerr := closeAll(out, in)
	if err != nil {
		return fmt.Errorf("%s: copying file: %w", destination, err)
	}
	if cerr != nil {
		return fmt.Errorf("%s: closing file: %w", destination, cerr)
	}
	return nil
}

// MoveFile moves a file from source to destination, falling back to a
// copy-then-delete when a rename isn't possible (for example across
// file systems).
func MoveFile(source, destination string) error {
	if err := os.Rename(source, destination); err == nil {
		return nil
	}
	if err := copyFileContents(source, destination); err != nil {
		return err
	}
	if err := os.Remove(source); err != nil {
		return fmt.Errorf("%s: removing original after copy: %w", source, err)
	}
	return nil
}

// DeleteDirectory removes path and everything under it.
func DeleteDirectory(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("%s: deleting directory: %w", path, err)
	}
	return nil
}

// DeleteFileSilently removes path on a best-effort basis: a failed
// delete is logged, not returned, so callers cleaning up staging
// leftovers never fail their primary operation over it.
func DeleteFileSilently(path string) {
	if err := os.Remove(path); err != nil {
		logrus.WithField("path", path).WithError(err).Warn("deleting file")
	}
}

// ReadFileToString reads the file at path into a string.
func ReadFileToString(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%s: reading file: %w", path, err)
	}
	return string(content), nil
}

// WriteStringToFile writes content to path, truncating any existing
// file and creating missing parent directories.
func WriteStringToFile(content, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%s: making directory for file: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("%s: writing file: %w", path, err)
	}
	return nil
}

func closeSilently(c io.Closer, path string) {
	if err := c.Close(); err != nil {
		logrus.WithField("path", path).WithError(err).Warn("closing file")
	}
}
