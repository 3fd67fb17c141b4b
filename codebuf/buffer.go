// Package codebuf implements the append-only 32-bit-item arena that backs
// every IR node in the ir package. It is the sole long-lived allocation of
// a compiled function: nodes never live as separate heap objects, only as
// offsets into a Buffer.
//
// Growth is paged: fixed-size pages are appended lazily so that reused
// pages from a prior compilation don't need to be freed and reallocated,
// just kept as they are and re-indexed from offset 0.
package codebuf

const pageSize = 1024

// Buffer is a growable array of 32-bit items with stable offsets: once
// written, an item's location never moves except via Truncate.
type Buffer struct {
	pages    [][pageSize]uint32
	length   int
	poisoned bool

	// limit caps the number of items the buffer will ever hold; 0 means
	// unlimited. It exists so that the out-of-memory failure mode can be
	// exercised deterministically in tests without depending on actually
	// exhausting process memory.
	limit int
}

// New returns an empty Buffer with no capacity limit.
func New() *Buffer {
	return &Buffer{}
}

// NewLimited returns an empty Buffer that poisons itself instead of
// growing past limit items.
func NewLimited(limit int) *Buffer {
	return &Buffer{limit: limit}
}

// Len returns the number of items appended so far.
func (b *Buffer) Len() int { return b.length }

// Poisoned reports whether a prior Append failed to grow the buffer. Once
// poisoned, all further Append/AppendItems calls are no-ops that return an
// invalid offset; At and Patch on previously-written offsets remain valid.
func (b *Buffer) Poisoned() bool { return b.poisoned }

// Reset clears the buffer for reuse by the next compilation, retaining the
// underlying page storage.
func (b *Buffer) Reset() {
	b.length = 0
	b.poisoned = false
}

func (b *Buffer) grow(upto int) bool {
	if b.limit > 0 && upto > b.limit {
		return false
	}
	for upto > len(b.pages)*pageSize {
		b.pages = append(b.pages, [pageSize]uint32{})
	}
	return true
}

// Append writes a single item and returns its offset, or -1 if the buffer
// is poisoned.
func (b *Buffer) Append(item uint32) int {
	if b.poisoned {
		return -1
	}
	off := b.length
	if !b.grow(off + 1) {
		b.poisoned = true
		return -1
	}
	b.pages[off/pageSize][off%pageSize] = item
	b.length = off + 1
	return off
}

// AppendItems writes a sequence of items and returns the offset of the
// first one, or -1 if the buffer is poisoned or the write cannot complete.
// On partial failure the buffer is truncated back to its pre-call length,
// so a failed AppendItems never leaves a half-written node visible.
func (b *Buffer) AppendItems(items ...uint32) int {
	if b.poisoned {
		return -1
	}
	start := b.length
	for _, it := range items {
		if b.Append(it) < 0 {
			b.Truncate(start)
			b.poisoned = true
			return -1
		}
	}
	return start
}

// At reads the item at offset off. It panics if off is out of range, since
// an out-of-range read is always a caller bug (offsets are minted by this
// same buffer and never move).
func (b *Buffer) At(off int) uint32 {
	if off < 0 || off >= b.length {
		panic("codebuf: At: offset out of range")
	}
	return b.pages[off/pageSize][off%pageSize]
}

// Patch overwrites the item already written at offset off. Patch never
// fails: the slot already exists, so no growth is needed.
func (b *Buffer) Patch(off int, item uint32) {
	if off < 0 || off >= b.length {
		panic("codebuf: Patch: offset out of range")
	}
	b.pages[off/pageSize][off%pageSize] = item
}

// Truncate rolls the buffer back to length n, discarding everything
// appended since. It is the sole backward-moving operation, used to unwind
// a speculative write sequence after a later allocation in the same
// construction fails.
func (b *Buffer) Truncate(n int) {
	if n < 0 || n > b.length {
		panic("codebuf: Truncate: n out of range")
	}
	b.length = n
}
