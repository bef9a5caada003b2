package wal

import "context"

// Session identifies which reader-pool slot a logical reader currently owns.
// The engine trusts that at most one reader holds a given session at any
// instant; SessionPool enforces that for callers that need an allocator.
type Session int

// SessionPool issues non-overlapping sessions for a pool of `readers` slots.
// Acquire blocks until a slot is free or the context is cancelled; Release
// returns a slot once its reader has fully completed.
type SessionPool struct {
	slots chan Session
}

func NewSessionPool(readers int) *SessionPool {
	if readers < 1 {
		readers = 1
	}
	slots := make(chan Session, readers)
	for i := 0; i < readers; i++ {
		slots <- Session(i)
	}
	return &SessionPool{slots: slots}
}

func (p *SessionPool) Acquire(ctx context.Context) (Session, error) {
	select {
	case s := <-p.slots:
		return s, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (p *SessionPool) Release(s Session) {
	p.slots <- s
}
