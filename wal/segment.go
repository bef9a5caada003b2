package wal

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// StreamSegment is an independently positioned view over a file handle.
// Reads go through ReadAt with a private cursor, so several segments may
// share one handle without clobbering each other's position or the writer's
// append cursor.
//
// A segment wrapping the writer's handle does not own it and must not close
// it; a segment holding its own descriptor releases it on Close.
type StreamSegment struct {
	fd   *os.File
	pos  int64
	owns bool
}

func newSharedSegment(fd *os.File) *StreamSegment {
	return &StreamSegment{fd: fd}
}

func newOwnedSegment(fd *os.File) *StreamSegment {
	return &StreamSegment{fd: fd, owns: true}
}

// Seek repositions this segment's cursor only. The cursor never goes below
// zero; seeking past the end of file is allowed and surfaces as io.EOF on
// the next read. io.SeekEnd resolves against the on-disk size, which
// excludes bytes still sitting in the writer's buffer: it can lag behind
// Storage.Size until the writer flushes.
func (s *StreamSegment) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = s.pos + offset
	case io.SeekEnd:
		info, err := s.fd.Stat()
		if err != nil {
			return s.pos, err
		}
		next = info.Size() + offset
	default:
		return s.pos, errors.New("invalid whence")
	}
	if next < 0 {
		next = 0
	}
	s.pos = next
	return s.pos, nil
}

func (s *StreamSegment) Position() int64 {
	return s.pos
}

// Read fills p from the current cursor and advances it. A zero-length read
// succeeds without moving the cursor.
func (s *StreamSegment) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := s.fd.ReadAt(p, s.pos)
	s.pos += int64(n)
	return n, err
}

// ReadAt reads at an absolute offset without touching the cursor.
func (s *StreamSegment) ReadAt(p []byte, off int64) (int, error) {
	return s.fd.ReadAt(p, off)
}

// Sync forces the underlying descriptor's view of the file to stable
// storage. Only meaningful for independently opened descriptors; a shared
// view covers durability through the writer's own flush.
func (s *StreamSegment) Sync() error {
	if !s.owns {
		return nil
	}
	return fdatasync(s.fd)
}

func (s *StreamSegment) Close() error {
	if !s.owns || s.fd == nil {
		return nil
	}
	err := s.fd.Close()
	s.fd = nil
	return err
}
