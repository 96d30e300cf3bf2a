package txn

import "sync"

// cell is a versioned memory location. Its value is replaced on commit and
// never mutated in place. locked is set while a committer installs a new value;
// readers that see it abort their attempt.
type cell struct {
	id uint64

	mu      sync.RWMutex
	version uint64
	value   any
	locked  bool
}

func (c *cell) load() (value any, version uint64, locked bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.version, c.locked
}

// Cell is a typed handle on a versioned memory location. All access from
// concurrent code goes through a transaction.
type Cell[T any] struct {
	c *cell
}

// NewCell allocates a cell holding v. A cell created inside a transaction only
// becomes reachable to others once the value that references it is committed.
func NewCell[T any](m *Manager, v T) *Cell[T] {
	return &Cell[T]{c: &cell{id: m.cellIDs.Inc(), value: v}}
}

func (x *Cell[T]) ID() uint64 { return x.c.id }

// Get reads the cell inside tx.
func (x *Cell[T]) Get(tx *Tx) T {
	v, _ := tx.get(x.c).(T)
	return v
}

// Set buffers a new value in tx; it becomes visible to others on commit.
func (x *Cell[T]) Set(tx *Tx, v T) {
	tx.set(x.c, v)
}

// Load returns the last committed value without a transaction. It is meant for
// single-threaded phases such as startup and for tests.
func (x *Cell[T]) Load() T {
	v, _, _ := x.c.load()
	t, _ := v.(T)
	return t
}

// Version is the commit version that installed the current value.
func (x *Cell[T]) Version() uint64 {
	_, ver, _ := x.c.load()
	return ver
}
