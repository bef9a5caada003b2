package wal

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrNoSnapshot              = errors.New("no snapshot stored")
	ErrSnapshotIndexRegression = errors.New("snapshot index must not decrease")
)

// SnapshotFile holds exactly one [header][payload] pair and is rewritten
// wholesale on each compaction, never appended to.
type SnapshotFile struct {
	storage *Storage
	logger  *zap.Logger
	meta    SnapshotMetadata
	valid   bool
}

// OpenSnapshot opens the snapshot file at path and decodes its header, if
// one is stored. An empty or freshly created file is valid and simply holds
// no snapshot yet.
func OpenSnapshot(path string, opts Options) (*SnapshotFile, error) {
	opts = opts.withDefaults()
	storage, err := OpenStorage(path, opts)
	if err != nil {
		return nil, err
	}
	s := &SnapshotFile{storage: storage, logger: opts.Logger}
	if storage.Size() > 0 {
		r, err := storage.SessionReader(0)
		if err != nil {
			storage.Close()
			return nil, err
		}
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			storage.Close()
			return nil, err
		}
		buf := make([]byte, SnapshotMetadataSize)
		m, err := readSnapshotMetadata(r, buf)
		if err != nil {
			storage.Close()
			return nil, errors.Wrap(err, "failed to decode snapshot header")
		}
		s.meta = m
		s.valid = true
	}
	return s, nil
}

// Write replaces the stored snapshot wholesale: the file is truncated, one
// header+payload pair is written and forced to stable storage. The subsumed
// index must not decrease across rewrites.
func (s *SnapshotFile) Write(index int64, e LogEntry) (SnapshotMetadata, error) {
	if s.valid && index < s.meta.Index {
		return SnapshotMetadata{}, errors.Wrapf(ErrSnapshotIndexRegression, "index %d, stored %d", index, s.meta.Index)
	}
	payload := e.Payload()
	m := NewSnapshotMetadata(e, index, int64(len(payload)))
	if err := s.storage.truncate(0); err != nil {
		return SnapshotMetadata{}, err
	}
	buf := make([]byte, SnapshotMetadataSize)
	m.put(buf)
	if _, err := s.storage.Write(buf); err != nil {
		return SnapshotMetadata{}, errors.Wrap(err, "failed to write snapshot header")
	}
	if _, err := s.storage.Write(payload); err != nil {
		return SnapshotMetadata{}, errors.Wrap(err, "failed to write snapshot payload")
	}
	if err := s.storage.Flush(); err != nil {
		return SnapshotMetadata{}, err
	}
	s.meta = m
	s.valid = true
	s.logger.Debug("snapshot written",
		zap.String("path", s.storage.Name()),
		zap.Int64("index", index),
		zap.Int64("payload_size", m.Record.Length))
	return m, nil
}

// Metadata returns the stored snapshot header. ErrNoSnapshot when the file
// holds none.
func (s *SnapshotFile) Metadata() (SnapshotMetadata, error) {
	if !s.valid {
		return SnapshotMetadata{}, ErrNoSnapshot
	}
	return s.meta, nil
}

// ReadPayload reads the snapshot payload through the session's segment.
func (s *SnapshotFile) ReadPayload(session Session) ([]byte, error) {
	if !s.valid {
		return nil, ErrNoSnapshot
	}
	r, err := s.storage.SessionReader(session)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, s.meta.Record.Length)
	if s.meta.Record.Length == 0 {
		return payload, nil
	}
	if _, err := r.ReadAt(payload, s.meta.Record.Offset); err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *SnapshotFile) Name() string {
	return s.storage.Name()
}

func (s *SnapshotFile) Storage() *Storage {
	return s.storage
}

func (s *SnapshotFile) Close() error {
	return s.storage.Close()
}

func (s *SnapshotFile) Shutdown(ctx context.Context) error {
	return s.storage.Shutdown(ctx)
}
