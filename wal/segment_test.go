package wal

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamSegment(t *testing.T) {
	datadir, err := ioutil.TempDir("", "wal-segment")
	require.NoError(t, err)
	defer os.RemoveAll(datadir)

	path := filepath.Join(datadir, "segment.log")
	content := []byte("0123456789abcdef")
	require.NoError(t, ioutil.WriteFile(path, content, 0650))
	fd, err := os.Open(path)
	require.NoError(t, err)
	defer fd.Close()

	t.Run("should keep cursors independent over one shared handle", func(t *testing.T) {
		a := newSharedSegment(fd)
		b := newSharedSegment(fd)
		_, err := a.Seek(0, io.SeekStart)
		require.NoError(t, err)
		_, err = b.Seek(10, io.SeekStart)
		require.NoError(t, err)

		buf := make([]byte, 4)
		_, err = io.ReadFull(a, buf)
		require.NoError(t, err)
		require.Equal(t, []byte("0123"), buf)

		_, err = io.ReadFull(b, buf)
		require.NoError(t, err)
		require.Equal(t, []byte("abcd"), buf)

		_, err = io.ReadFull(a, buf)
		require.NoError(t, err)
		require.Equal(t, []byte("4567"), buf)
	})
	t.Run("should support seeking from the end", func(t *testing.T) {
		s := newSharedSegment(fd)
		pos, err := s.Seek(-6, io.SeekEnd)
		require.NoError(t, err)
		require.Equal(t, int64(10), pos)
	})
	t.Run("should clamp the cursor at zero", func(t *testing.T) {
		s := newSharedSegment(fd)
		pos, err := s.Seek(-20, io.SeekCurrent)
		require.NoError(t, err)
		require.Equal(t, int64(0), pos)
	})
	t.Run("should reject an invalid whence", func(t *testing.T) {
		s := newSharedSegment(fd)
		_, err := s.Seek(0, 42)
		require.Error(t, err)
	})
	t.Run("should not move the cursor on a zero-length read", func(t *testing.T) {
		s := newSharedSegment(fd)
		_, err := s.Seek(3, io.SeekStart)
		require.NoError(t, err)
		n, err := s.Read(nil)
		require.NoError(t, err)
		require.Equal(t, 0, n)
		require.Equal(t, int64(3), s.Position())
	})
	t.Run("should not move the cursor on ReadAt", func(t *testing.T) {
		s := newSharedSegment(fd)
		buf := make([]byte, 2)
		_, err := s.ReadAt(buf, 10)
		require.NoError(t, err)
		require.Equal(t, []byte("ab"), buf)
		require.Equal(t, int64(0), s.Position())
	})
	t.Run("should surface EOF past the end of file", func(t *testing.T) {
		s := newSharedSegment(fd)
		_, err := s.Seek(100, io.SeekStart)
		require.NoError(t, err)
		_, err = s.Read(make([]byte, 1))
		require.Equal(t, io.EOF, err)
	})
	t.Run("should not close a shared handle", func(t *testing.T) {
		s := newSharedSegment(fd)
		require.NoError(t, s.Close())
		buf := make([]byte, 1)
		_, err := fd.ReadAt(buf, 0)
		require.NoError(t, err)
	})
	t.Run("should close an owned handle exactly once", func(t *testing.T) {
		own, err := os.Open(path)
		require.NoError(t, err)
		s := newOwnedSegment(own)
		require.NoError(t, s.Close())
		require.NoError(t, s.Close())
	})
}
