package wal

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

var encoding = binary.BigEndian

const (
	// EntryMetadataSize is the serialized width of an entry header.
	EntryMetadataSize = 8 + 8 + 8 + 8
	// SnapshotMetadataSize is the serialized width of a snapshot header.
	SnapshotMetadataSize = 8 + EntryMetadataSize
)

var (
	ErrInvalidBufferSize = errors.New("invalid buffer size")
	ErrPayloadTooBig     = errors.New("payload is too big")
	ErrCorruptedHeader   = errors.New("header corrupted")

	// MaxPayloadSize bounds the payload length a decoded header may claim.
	MaxPayloadSize int64 = 1 << 30
)

// EntryMetadata is the fixed header written immediately before each log
// entry payload. All fields are signed 64-bit integers, big-endian on disk.
type EntryMetadata struct {
	Term      int64
	Timestamp int64
	Length    int64
	Offset    int64
}

// NewEntryMetadata builds a header from a loggable entry and caller-supplied
// placement. It performs no I/O.
func NewEntryMetadata(e LogEntry, offset, length int64) EntryMetadata {
	return EntryMetadata{
		Term:      e.Term(),
		Timestamp: e.Timestamp().UTC().UnixNano(),
		Length:    length,
		Offset:    offset,
	}
}

func (m EntryMetadata) put(buf []byte) {
	encoding.PutUint64(buf[0:8], uint64(m.Term))
	encoding.PutUint64(buf[8:16], uint64(m.Timestamp))
	encoding.PutUint64(buf[16:24], uint64(m.Length))
	encoding.PutUint64(buf[24:32], uint64(m.Offset))
}

func decodeEntryMetadata(buf []byte) EntryMetadata {
	return EntryMetadata{
		Term:      int64(encoding.Uint64(buf[0:8])),
		Timestamp: int64(encoding.Uint64(buf[8:16])),
		Length:    int64(encoding.Uint64(buf[16:24])),
		Offset:    int64(encoding.Uint64(buf[24:32])),
	}
}

func writeEntryMetadata(m EntryMetadata, w io.Writer) (int, error) {
	buf := make([]byte, EntryMetadataSize)
	m.put(buf)
	return w.Write(buf)
}

// readEntryMetadata decodes one entry header from r. buf must be
// EntryMetadataSize bytes long and is reused across calls.
func readEntryMetadata(r io.Reader, buf []byte) (EntryMetadata, error) {
	if len(buf) != EntryMetadataSize {
		return EntryMetadata{}, ErrInvalidBufferSize
	}
	_, err := io.ReadFull(r, buf)
	if err != nil {
		return EntryMetadata{}, err
	}
	m := decodeEntryMetadata(buf)
	if m.Length < 0 || m.Offset < 0 {
		return EntryMetadata{}, ErrCorruptedHeader
	}
	if m.Length > MaxPayloadSize {
		return EntryMetadata{}, ErrPayloadTooBig
	}
	return m, nil
}

// SnapshotMetadata is the fixed header of a snapshot file: the highest log
// index the snapshot subsumes, plus the header of its own payload.
type SnapshotMetadata struct {
	Index  int64
	Record EntryMetadata
}

// NewSnapshotMetadata builds a snapshot header. The embedded record offset is
// always SnapshotMetadataSize: the payload begins right after the header.
func NewSnapshotMetadata(e LogEntry, index, length int64) SnapshotMetadata {
	return SnapshotMetadata{
		Index:  index,
		Record: NewEntryMetadata(e, SnapshotMetadataSize, length),
	}
}

func (m SnapshotMetadata) put(buf []byte) {
	encoding.PutUint64(buf[0:8], uint64(m.Index))
	m.Record.put(buf[8:])
}

func readSnapshotMetadata(r io.Reader, buf []byte) (SnapshotMetadata, error) {
	if len(buf) != SnapshotMetadataSize {
		return SnapshotMetadata{}, ErrInvalidBufferSize
	}
	_, err := io.ReadFull(r, buf)
	if err != nil {
		return SnapshotMetadata{}, err
	}
	m := SnapshotMetadata{
		Index:  int64(encoding.Uint64(buf[0:8])),
		Record: decodeEntryMetadata(buf[8:]),
	}
	if m.Record.Length < 0 || m.Record.Offset != SnapshotMetadataSize {
		return SnapshotMetadata{}, ErrCorruptedHeader
	}
	if m.Record.Length > MaxPayloadSize {
		return SnapshotMetadata{}, ErrPayloadTooBig
	}
	return m, nil
}
