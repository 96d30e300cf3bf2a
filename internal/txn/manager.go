package txn

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"go.uber.org/atomic"
)

// ErrRetry, returned by a transaction body, blocks the transaction until one of
// the cells it read changes and then runs the body again.
var ErrRetry = errors.New("txn: retry when read set changes")

// Manager runs transactions over the cells it created. It owns the version
// clock: every committed writing transaction gets the next version, so commit
// versions are contiguous and follow the serialization order.
type Manager struct {
	clock   atomic.Uint64
	cellIDs atomic.Uint64
	latches *latches

	mu      sync.Mutex
	changed chan struct{}

	commits         atomic.Uint64
	readOnlyCommits atomic.Uint64
	conflicts       atomic.Uint64
	blockingRetries atomic.Uint64
}

// NewManager returns a Manager whose clock starts at version start; the first
// writing commit gets start+1.
func NewManager(start uint64) *Manager {
	m := &Manager{
		latches: newLatches(),
		changed: make(chan struct{}),
	}
	m.clock.Store(start)
	return m
}

// Version returns the latest commit version.
func (m *Manager) Version() uint64 { return m.clock.Load() }

// Commit describes a successful Run.
type Commit struct {
	// Version is the commit version, or 0 if the transaction wrote nothing.
	Version uint64
	// ReadVersion is the version of the state the committed attempt observed.
	ReadVersion uint64
	// Attempts counts executions of the body, including the successful one.
	Attempts int
}

func (c Commit) ReadOnly() bool { return c.Version == 0 }

// Stats are cumulative counters for the Manager's lifetime.
type Stats struct {
	Commits         uint64
	ReadOnlyCommits uint64
	Conflicts       uint64
	BlockingRetries uint64
}

func (m *Manager) Stats() Stats {
	return Stats{
		Commits:         m.commits.Load(),
		ReadOnlyCommits: m.readOnlyCommits.Load(),
		Conflicts:       m.conflicts.Load(),
		BlockingRetries: m.blockingRetries.Load(),
	}
}

// Run executes fn as one atomic, isolated transaction.
//
// fn must not have side effects outside the cells it touches: it may run any
// number of times. An attempt that observes a concurrent commit is discarded and
// re-run from scratch; callers never see that. If fn returns ErrRetry the
// transaction waits for a change to its read set. Any other error aborts the
// transaction with no effect and is returned as is.
func (m *Manager) Run(ctx context.Context, fn func(tx *Tx) error) (Commit, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Commit{Attempts: attempt - 1}, err
		}

		tx := m.begin()
		aborted, err := tx.run(fn)
		if aborted {
			m.conflicts.Inc()
			runtime.Gosched()
			continue
		}

		if errors.Is(err, ErrRetry) {
			m.blockingRetries.Inc()
			if werr := m.waitForChange(ctx, tx); werr != nil {
				return Commit{Attempts: attempt}, werr
			}
			continue
		}
		if err != nil {
			return Commit{ReadVersion: tx.readVersion, Attempts: attempt}, err
		}

		wv, ok := tx.commit()
		if !ok {
			m.conflicts.Inc()
			continue
		}
		if wv == 0 {
			m.readOnlyCommits.Inc()
		} else {
			m.commits.Inc()
			m.notify()
		}
		return Commit{Version: wv, ReadVersion: tx.readVersion, Attempts: attempt}, nil
	}
}

func (tx *Tx) run(fn func(tx *Tx) error) (aborted bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(conflict); ok {
				aborted = true
				return
			}
			panic(r)
		}
	}()
	return false, fn(tx)
}

func (m *Manager) changedCh() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changed
}

// notify wakes every transaction blocked in waitForChange.
func (m *Manager) notify() {
	m.mu.Lock()
	close(m.changed)
	m.changed = make(chan struct{})
	m.mu.Unlock()
}

func (m *Manager) waitForChange(ctx context.Context, tx *Tx) error {
	for {
		// grab the channel before checking so a commit in between is not missed
		ch := m.changedCh()
		if tx.readSetChanged() {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
