// Package wal implements a durable, segment-free write-ahead log storage
// engine: fixed binary entry and snapshot headers, one buffered sequential
// writer and a fixed pool of independently positioned readers per file.
//
// The writer path is unsynchronized on purpose; callers (typically a
// consensus layer) serialize appends and flushes, while concurrent reads are
// routed through non-overlapping sessions.
package wal
