package codepush

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEntryPath(t *testing.T) {
	destination := filepath.Join("tmp", "out")

	for _, tc := range []struct {
		name   string
		entry  string
		want   string
		unsafe bool
	}{
		{name: "simple file", entry: "a.txt", want: filepath.Join(destination, "a.txt")},
		{name: "nested file", entry: "a/b/c.txt", want: filepath.Join(destination, "a", "b", "c.txt")},
		{name: "trailing slash dir", entry: "a/", want: filepath.Join(destination, "a")},
		{name: "redundant segments", entry: "a/./b.txt", want: filepath.Join(destination, "a", "b.txt")},
		{name: "internal dotdot staying inside", entry: "a/../b.txt", want: filepath.Join(destination, "b.txt")},
		{name: "absolute path neutralized", entry: "/etc/passwd", want: filepath.Join(destination, "etc", "passwd")},
		{name: "parent escape", entry: "../evil.txt", unsafe: true},
		{name: "deep parent escape", entry: "a/../../evil.txt", unsafe: true},
		{name: "bare dotdot", entry: "..", unsafe: true},
		{name: "dot resolves to root itself", entry: ".", unsafe: true},
		{name: "empty name", entry: "", unsafe: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			target, err := resolveEntryPath(destination, tc.entry)
			if tc.unsafe {
				require.ErrorIs(t, err, ErrUnsafeEntryPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, target)
		})
	}
}

func TestEnsureDestination(t *testing.T) {
	t.Run("creates missing nested directories", func(t *testing.T) {
		destination := filepath.Join(t.TempDir(), "a", "b", "out")
		require.NoError(t, ensureDestination(destination))
		info, err := os.Stat(destination)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("existing directory is fine", func(t *testing.T) {
		destination := t.TempDir()
		require.NoError(t, ensureDestination(destination))
	})

	t.Run("replaces occupying file", func(t *testing.T) {
		destination := filepath.Join(t.TempDir(), "out")
		require.NoError(t, os.WriteFile(destination, []byte("x"), 0644))
		require.NoError(t, ensureDestination(destination))
		info, err := os.Stat(destination)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("file as ancestor", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "blocker")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
		err := ensureDestination(filepath.Join(blocker, "out"))
		require.ErrorIs(t, err, ErrDestinationUnavailable)
	})
}

func TestStreamSize(t *testing.T) {
	r := bytes.NewReader([]byte("0123456789"))

	// partially consumed stream: size is still the total, and the read
	// position is restored
	buf := make([]byte, 3)
	_, err := io.ReadFull(r, buf)
	require.NoError(t, err)

	size, err := streamSize(r)
	require.NoError(t, err)
	assert.Equal(t, int64(10), size)

	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "3456789", string(rest))
}

func TestReaderAtFromSpoolsForwardOnlyStreams(t *testing.T) {
	payload := []byte("forward only payload")
	sra, size, release, err := readerAtFrom(forwardOnly{bytes.NewReader(payload)}, Zip{}.log())
	require.NoError(t, err)
	defer release()

	assert.Equal(t, int64(len(payload)), size)

	got := make([]byte, 7)
	_, err = sra.ReadAt(got, 13)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}
