package wal

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/voltdata/raftwal/wal/stats"
	"go.uber.org/zap"
)

var (
	ErrStorageClosed     = errors.New("storage is closed")
	ErrSessionOutOfRange = errors.New("session is out of range")
)

const defaultBufferSize = 4096

// CachePopulator pre-warms reader-side state for a session. The engine calls
// it through Storage.Populate and mandates nothing beyond the invocation; a
// nil populator is a no-op.
type CachePopulator interface {
	PopulateCache(ctx context.Context, session Session, r *StreamSegment) error
}

type Options struct {
	// BufferSize sizes the writer's in-process buffer.
	BufferSize int
	// Readers fixes the reader-pool size. With one reader the pool wraps the
	// writer handle; with more, each slot opens its own read-only descriptor.
	Readers int
	// Logger defaults to a nop logger.
	Logger *zap.Logger
	// Populator is the optional cache-population hook.
	Populator CachePopulator
}

func (o Options) withDefaults() Options {
	if o.BufferSize <= 0 {
		o.BufferSize = defaultBufferSize
	}
	if o.Readers < 1 {
		o.Readers = 1
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Storage owns one exclusive read-write handle (the writer) and a fixed pool
// of StreamSegment readers over the same file.
//
// The writer path is deliberately unsynchronized: the caller must serialize
// all Write and Flush calls, the way a consensus layer serializes appends.
// Reads are safe concurrently as long as no two of them share a session.
type Storage struct {
	path      string
	logger    *zap.Logger
	populator CachePopulator

	fd     *os.File
	writer *bufio.Writer
	size   int64

	readers []*StreamSegment

	closeOnce sync.Once
	closed    int32
}

// OpenStorage opens or creates the file at path and pre-allocates the reader
// pool. The pool never grows after construction.
func OpenStorage(path string, opts Options) (*Storage, error) {
	opts = opts.withDefaults()
	fd, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0650)
	if err != nil {
		return nil, err
	}
	size, err := fd.Seek(0, io.SeekEnd)
	if err != nil {
		fd.Close()
		return nil, err
	}
	adviseSequential(fd)
	s := &Storage{
		path:      path,
		logger:    opts.Logger,
		populator: opts.Populator,
		fd:        fd,
		writer:    bufio.NewWriterSize(fd, opts.BufferSize),
		size:      size,
	}
	if opts.Readers == 1 {
		// A single reader cannot race itself: wrap the writer handle instead
		// of paying for a second descriptor.
		s.readers = []*StreamSegment{newSharedSegment(fd)}
	} else {
		s.readers = make([]*StreamSegment, opts.Readers)
		for i := range s.readers {
			rfd, err := os.OpenFile(path, os.O_RDONLY, 0650)
			if err != nil {
				s.releaseHandles()
				return nil, errors.Wrapf(err, "failed to open reader %d", i)
			}
			adviseRandom(rfd)
			s.readers[i] = newOwnedSegment(rfd)
		}
	}
	s.logger.Debug("storage opened",
		zap.String("path", path),
		zap.Int("readers", opts.Readers),
		zap.Int64("size", size))
	return s, nil
}

// isClosed is read from reader goroutines while Close may run concurrently,
// the one interleaving the single-writer contract does not rule out.
func (s *Storage) isClosed() bool {
	return atomic.LoadInt32(&s.closed) == 1
}

// Name returns the path of the underlying writer file.
func (s *Storage) Name() string {
	return s.path
}

// Size returns the writer-file size in bytes, counting bytes already issued
// to the writer but not necessarily flushed or fsynced yet.
func (s *Storage) Size() int64 {
	return s.size
}

// Write appends p at the end of the file through the writer buffer. Callers
// must serialize Write calls.
func (s *Storage) Write(p []byte) (int, error) {
	if s.isClosed() {
		return 0, ErrStorageClosed
	}
	n, err := s.writer.Write(p)
	s.size += int64(n)
	return n, err
}

// Flush drains the writer buffer and forces the bytes to stable storage.
// Everything written before the call is durable once it returns.
func (s *Storage) Flush() error {
	if s.isClosed() {
		return ErrStorageClosed
	}
	start := time.Now()
	if err := s.writer.Flush(); err != nil {
		return err
	}
	if err := fdatasync(s.fd); err != nil {
		return err
	}
	stats.ObserveFlush(start)
	return nil
}

// FlushContext is the cancellable form of Flush. An already-cancelled
// context returns without touching the file.
func (s *Storage) FlushContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Flush()
}

// FlushSession syncs the descriptor bound to session, letting an independent
// reader observe bytes made durable out-of-band. A shared-handle pool has
// nothing to sync.
func (s *Storage) FlushSession(ctx context.Context, session Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r, err := s.SessionReader(session)
	if err != nil {
		return err
	}
	return r.Sync()
}

// SessionReader returns the StreamSegment bound to the session's slot.
func (s *Storage) SessionReader(session Session) (*StreamSegment, error) {
	if s.isClosed() {
		return nil, ErrStorageClosed
	}
	if session < 0 || int(session) >= len(s.readers) {
		return nil, errors.Wrapf(ErrSessionOutOfRange, "session %d of %d readers", session, len(s.readers))
	}
	return s.readers[session], nil
}

// Populate invokes the configured cache populator for a session.
func (s *Storage) Populate(ctx context.Context, session Session) error {
	r, err := s.SessionReader(session)
	if err != nil {
		return err
	}
	if s.populator == nil {
		return nil
	}
	return s.populator.PopulateCache(ctx, session, r)
}

// truncate cuts the file at size and repositions the writer. Used by
// recovery to drop a torn tail; never called concurrently with reads.
func (s *Storage) truncate(size int64) error {
	if s.isClosed() {
		return ErrStorageClosed
	}
	if err := s.writer.Flush(); err != nil {
		return err
	}
	if err := s.fd.Truncate(size); err != nil {
		return err
	}
	if _, err := s.fd.Seek(size, io.SeekStart); err != nil {
		return err
	}
	s.writer.Reset(s.fd)
	s.size = size
	return nil
}

// Close releases every reader handle, then the writer handle. Closing twice
// is a no-op; every other operation fails with ErrStorageClosed afterwards.
func (s *Storage) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.releaseHandles()
	})
	return err
}

// Shutdown is the cancellable form of Close. Both funnel into the same
// idempotent release path.
func (s *Storage) Shutdown(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Close()
}

func (s *Storage) releaseHandles() error {
	atomic.StoreInt32(&s.closed, 1)
	var firstErr error
	if err := s.writer.Flush(); err != nil {
		firstErr = err
	}
	for _, r := range s.readers {
		if r == nil {
			continue
		}
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.fd.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		s.logger.Error("storage release failed", zap.String("path", s.path), zap.Error(firstErr))
	} else {
		s.logger.Debug("storage closed", zap.String("path", s.path))
	}
	return firstErr
}
