package wal

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEntryMetadata(t *testing.T) {
	t.Run("should round-trip every field bit-identically", func(t *testing.T) {
		quadruples := []EntryMetadata{
			{Term: 0, Timestamp: 0, Length: 0, Offset: 0},
			{Term: 1, Timestamp: 1587399093000000000, Length: 42, Offset: EntryMetadataSize},
			{Term: 1<<62 - 1, Timestamp: 1, Length: MaxPayloadSize, Offset: 1 << 40},
		}
		for _, in := range quadruples {
			buf := bytes.NewBuffer(nil)
			n, err := writeEntryMetadata(in, buf)
			require.NoError(t, err)
			require.Equal(t, EntryMetadataSize, n)

			out, err := readEntryMetadata(buf, make([]byte, EntryMetadataSize))
			require.NoError(t, err)
			require.Equal(t, in, out)
		}
	})
	t.Run("should build headers from a loggable entry without I/O", func(t *testing.T) {
		at := time.Date(2020, time.April, 20, 16, 11, 33, 0, time.UTC)
		e := Record{EntryTerm: 7, EntryTime: at, Data: []byte("test")}
		m := NewEntryMetadata(e, 96, int64(len(e.Data)))
		require.Equal(t, int64(7), m.Term)
		require.Equal(t, at.UnixNano(), m.Timestamp)
		require.Equal(t, int64(4), m.Length)
		require.Equal(t, int64(96), m.Offset)
	})
	t.Run("should reject a wrongly sized buffer", func(t *testing.T) {
		_, err := readEntryMetadata(bytes.NewBuffer(nil), make([]byte, 8))
		require.Equal(t, ErrInvalidBufferSize, err)
	})
	t.Run("should reject a header claiming a negative range", func(t *testing.T) {
		m := EntryMetadata{Term: 1, Timestamp: 1, Length: -1, Offset: 0}
		buf := bytes.NewBuffer(nil)
		_, err := writeEntryMetadata(m, buf)
		require.NoError(t, err)
		_, err = readEntryMetadata(buf, make([]byte, EntryMetadataSize))
		require.Equal(t, ErrCorruptedHeader, err)
	})
	t.Run("should reject a header claiming an oversized payload", func(t *testing.T) {
		m := EntryMetadata{Length: MaxPayloadSize + 1}
		buf := bytes.NewBuffer(nil)
		_, err := writeEntryMetadata(m, buf)
		require.NoError(t, err)
		_, err = readEntryMetadata(buf, make([]byte, EntryMetadataSize))
		require.Equal(t, ErrPayloadTooBig, err)
	})
}

func TestSnapshotMetadata(t *testing.T) {
	t.Run("should place the payload right after the header", func(t *testing.T) {
		e := NewRecord(3, []byte("snapshot"))
		m := NewSnapshotMetadata(e, 120, int64(len(e.Data)))
		require.Equal(t, int64(120), m.Index)
		require.Equal(t, int64(SnapshotMetadataSize), m.Record.Offset)
		require.Equal(t, int64(8), m.Record.Length)
	})
	t.Run("should round-trip through its binary form", func(t *testing.T) {
		e := NewRecord(3, []byte("snapshot"))
		in := NewSnapshotMetadata(e, 120, int64(len(e.Data)))
		buf := make([]byte, SnapshotMetadataSize)
		in.put(buf)
		out, err := readSnapshotMetadata(bytes.NewReader(buf), make([]byte, SnapshotMetadataSize))
		require.NoError(t, err)
		require.Equal(t, in, out)
	})
	t.Run("should reject a record offset not matching the layout", func(t *testing.T) {
		in := SnapshotMetadata{Index: 1, Record: EntryMetadata{Offset: 12, Length: 1}}
		buf := make([]byte, SnapshotMetadataSize)
		in.put(buf)
		_, err := readSnapshotMetadata(bytes.NewReader(buf), make([]byte, SnapshotMetadataSize))
		require.Equal(t, ErrCorruptedHeader, err)
	})
}
