package wal

import (
	"io"

	"github.com/pkg/errors"
	"github.com/voltdata/raftwal/wal/stats"
	"go.uber.org/zap"
)

var (
	ErrNoIndex           = errors.New("log has no index")
	ErrOrdinalOutOfRange = errors.New("ordinal is out of range")
)

type LogOptions struct {
	Options
	// IndexSlots enables the mmap'd ordinal index sidecar when > 0. An
	// indexed log refuses appends past IndexSlots; entries beyond capacity
	// already on disk stay readable by offset but are not ordinal-indexed.
	// Reopening with a different slot count requires removing the sidecar
	// first.
	IndexSlots int64
}

// LogFile is an append-only sequence of [header][payload] records over a
// Storage. Opening the file replays it from byte zero and drops any torn
// tail left by a crash.
//
// Append inherits the storage's single-writer contract: the caller
// serializes appends and flushes, reads go through sessions.
type LogFile struct {
	storage *Storage
	logger  *zap.Logger
	index   *Index
	count   int64
}

func OpenLog(path string, opts LogOptions) (*LogFile, error) {
	opts.Options = opts.Options.withDefaults()
	storage, err := OpenStorage(path, opts.Options)
	if err != nil {
		return nil, err
	}
	l := &LogFile{storage: storage, logger: opts.Logger}
	if opts.IndexSlots > 0 {
		idx, err := openIndex(path+".index", opts.IndexSlots)
		if err == ErrIndexDoesNotExist || err == ErrIndexCorrupt {
			idx, err = createIndex(path+".index", opts.IndexSlots)
		}
		if err != nil {
			storage.Close()
			return nil, errors.Wrap(err, "failed to open log index")
		}
		l.index = idx
	}
	if err := l.recover(); err != nil {
		l.Close()
		return nil, err
	}
	stats.SetLogSize(l.storage.Size())
	return l, nil
}

// recover scans the file from byte zero, counts intact records, rebuilds the
// index slots and truncates at the first record that does not round-trip.
func (l *LogFile) recover() error {
	r, err := l.storage.SessionReader(0)
	if err != nil {
		return err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return err
	}
	d := NewDecoder(r)
	var pos int64
	for {
		m, _, err := d.Decode()
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF || err == ErrCorruptedHeader || err == ErrPayloadTooBig {
			l.logger.Warn("torn record found, truncating log",
				zap.String("path", l.storage.Name()),
				zap.Int64("position", pos),
				zap.Error(err))
			break
		}
		if err != nil {
			return err
		}
		if m.Offset != pos+EntryMetadataSize {
			l.logger.Warn("entry offset does not match its position, truncating log",
				zap.String("path", l.storage.Name()),
				zap.Int64("position", pos))
			break
		}
		if l.index != nil && l.count < l.index.Slots() {
			if err := l.index.writePosition(l.count, pos); err != nil {
				return err
			}
		}
		l.count++
		pos = m.Offset + m.Length
	}
	if l.index != nil && l.count > l.index.Slots() {
		l.logger.Warn("log holds more entries than index slots, tail entries are not ordinal-indexed",
			zap.String("path", l.storage.Name()),
			zap.Int64("count", l.count),
			zap.Int64("slots", l.index.Slots()))
	}
	if pos != l.storage.Size() {
		return l.storage.truncate(pos)
	}
	return nil
}

// Append writes the header then the payload sequentially at the end of the
// file. Durability requires a subsequent Flush. A refused append issues no
// bytes: the capacity check runs before anything reaches the writer.
func (l *LogFile) Append(e LogEntry) (EntryMetadata, error) {
	if l.index != nil && l.count >= l.index.Slots() {
		return EntryMetadata{}, ErrIndexFull
	}
	payload := e.Payload()
	headerOffset := l.storage.Size()
	m := NewEntryMetadata(e, headerOffset+EntryMetadataSize, int64(len(payload)))
	if _, err := writeEntryMetadata(m, l.storage); err != nil {
		return EntryMetadata{}, errors.Wrap(err, "failed to write entry header")
	}
	if _, err := l.storage.Write(payload); err != nil {
		return EntryMetadata{}, errors.Wrap(err, "failed to write entry payload")
	}
	if l.index != nil {
		if err := l.index.writePosition(l.count, headerOffset); err != nil {
			return EntryMetadata{}, err
		}
	}
	l.count++
	stats.IncAppendedEntries(EntryMetadataSize + len(payload))
	stats.SetLogSize(l.storage.Size())
	return m, nil
}

// ReadMetadata decodes the header at headerOffset through the session's
// segment.
func (l *LogFile) ReadMetadata(session Session, headerOffset int64) (EntryMetadata, error) {
	r, err := l.storage.SessionReader(session)
	if err != nil {
		return EntryMetadata{}, err
	}
	if _, err := r.Seek(headerOffset, io.SeekStart); err != nil {
		return EntryMetadata{}, err
	}
	buf := make([]byte, EntryMetadataSize)
	return readEntryMetadata(r, buf)
}

// ReadPayload reads the payload range a header describes, without moving the
// session's cursor. A zero-length payload returns an empty slice.
func (l *LogFile) ReadPayload(session Session, m EntryMetadata) ([]byte, error) {
	r, err := l.storage.SessionReader(session)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, m.Length)
	if m.Length == 0 {
		return payload, nil
	}
	if _, err := r.ReadAt(payload, m.Offset); err != nil {
		return nil, err
	}
	return payload, nil
}

func (l *LogFile) ReadEntry(session Session, headerOffset int64) (EntryMetadata, []byte, error) {
	m, err := l.ReadMetadata(session, headerOffset)
	if err != nil {
		return EntryMetadata{}, nil, err
	}
	payload, err := l.ReadPayload(session, m)
	if err != nil {
		return EntryMetadata{}, nil, err
	}
	stats.IncReadEntries()
	return m, payload, nil
}

// ReadOrdinal resolves the nth entry through the index, then reads it.
func (l *LogFile) ReadOrdinal(session Session, ordinal int64) (EntryMetadata, []byte, error) {
	headerOffset, err := l.Position(ordinal)
	if err != nil {
		return EntryMetadata{}, nil, err
	}
	return l.ReadEntry(session, headerOffset)
}

// Position returns the header byte offset of the nth entry.
func (l *LogFile) Position(ordinal int64) (int64, error) {
	if l.index == nil {
		return 0, ErrNoIndex
	}
	if ordinal < 0 || ordinal >= l.count {
		return 0, ErrOrdinalOutOfRange
	}
	return l.index.readPosition(ordinal)
}

// Count returns the number of intact entries in the file.
func (l *LogFile) Count() int64 {
	return l.count
}

func (l *LogFile) Size() int64 {
	return l.storage.Size()
}

func (l *LogFile) Name() string {
	return l.storage.Name()
}

// Storage exposes the underlying storage for flush, session and populate
// operations.
func (l *LogFile) Storage() *Storage {
	return l.storage
}

// Flush makes every appended byte durable, index slots included.
func (l *LogFile) Flush() error {
	if err := l.storage.Flush(); err != nil {
		return err
	}
	if l.index != nil {
		return l.index.Sync()
	}
	return nil
}

func (l *LogFile) Close() error {
	err := l.storage.Close()
	if l.index != nil {
		if indexErr := l.index.Close(); err == nil {
			err = indexErr
		}
	}
	return err
}
