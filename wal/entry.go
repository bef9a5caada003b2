package wal

import "time"

// LogEntry is the loggable-record capability consumed by the engine: a term,
// a creation time and a payload. The consensus layer supplies its own
// implementation; Record is enough for embedding callers and tests.
type LogEntry interface {
	Term() int64
	Timestamp() time.Time
	Payload() []byte
}

type Record struct {
	EntryTerm int64
	EntryTime time.Time
	Data      []byte
}

func NewRecord(term int64, payload []byte) Record {
	return Record{EntryTerm: term, EntryTime: time.Now().UTC(), Data: payload}
}

func (r Record) Term() int64          { return r.EntryTerm }
func (r Record) Timestamp() time.Time { return r.EntryTime }
func (r Record) Payload() []byte      { return r.Data }
