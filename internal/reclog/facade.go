package reclog

import (
	"errors"
	"sync"
)

// ErrInvalid is returned by Log.ResolveSeek when the requested record
// index or intra-record offset is out of range. Handlers treat this as
// SeekInvalid: swallow it, leave the cursor untouched, and append nothing.
var ErrInvalid = errors.New("reclog: invalid seek target")

// Log wraps a Store with the single mutex (LOG_LOCK in the spec's terms)
// that serializes every mutation and read. Every exported method acquires
// the lock on entry and releases it on every exit path, including error
// paths — there is exactly one lock here and it is never held across a
// network call by the caller (callers copy bytes out under the lock and
// send them after releasing it; see internal/server).
type Log struct {
	mu    sync.Mutex
	store *Store
}

// NewLog returns a facade over a fresh Store of the given capacity.
func NewLog(capacity int) *Log {
	return &Log{store: NewStore(capacity)}
}

// AppendRecord appends rec to the underlying store. rec must already end in
// '\n' — the facade does not validate framing, only the connection handler
// does (see internal/server).
func (l *Log) AppendRecord(rec []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.store.Append(rec)
}

// ReadAt returns up to max bytes starting at byte offset cursor within the
// current resident window, never past the end of the record that holds
// cursor, along with how far the cursor should advance.
// cursor is always interpreted relative to the window's current start
// (policy A from the spec): eviction reshuffles what a given numeric cursor
// points at rather than invalidating it. If cursor is at or past the end of
// the window, ReadAt returns (nil, 0): end-of-stream, not an error.
func (l *Log) ReadAt(cursor uint64, max int) (data []byte, advance uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, intra, ok := l.store.FindByByteOffset(cursor)
	if !ok {
		return nil, 0
	}
	avail := len(rec) - intra
	n := avail
	if n > max {
		n = max
	}
	out := make([]byte, n)
	copy(out, rec[intra:intra+n])
	return out, uint64(n)
}

// ResolveSeek translates a (record index, intra-record offset) control
// command into an absolute byte offset. It fails with ErrInvalid if the
// record index is out of range or the intra-record offset is not strictly
// less than that record's size.
func (l *Log) ResolveSeek(writeCmd, writeCmdOffset uint64) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if writeCmd > uint64(^uint(0)>>1) {
		return 0, ErrInvalid
	}
	rec, ok := l.store.GetByIndex(int(writeCmd))
	if !ok {
		return 0, ErrInvalid
	}
	if writeCmdOffset >= uint64(len(rec)) {
		return 0, ErrInvalid
	}
	base, ok := l.store.ByteOffsetOf(int(writeCmd))
	if !ok {
		// Can't happen: GetByIndex just succeeded for the same index.
		return 0, ErrInvalid
	}
	return base + writeCmdOffset, nil
}

// TotalBytes returns the current size of the resident window.
func (l *Log) TotalBytes() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.TotalBytes()
}

// Clear empties the store. Used by the supervisor on shutdown.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.store.Clear()
}
