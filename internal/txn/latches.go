package txn

import "sync"

// latches serialize commits that touch the same cells. A committing
// transaction holds an exclusive latch on every cell it writes and a shared
// latch on every cell it only read, and takes all of them in one step, so two
// committers can never deadlock. Transactions that touch disjoint cells never
// wait on each other.
//
// A latch is tracked by a WaitGroup that is released once its last holder is
// gone; threads that find a latch taken wait on it and then try again.
type latches struct {
	latchMap   map[uint64]*latch
	latchGuard sync.Mutex
}

type latch struct {
	readers int
	writer  bool
	wg      *sync.WaitGroup
}

func newLatches() *latches {
	return &latches{latchMap: make(map[uint64]*latch)}
}

// acquire takes every requested latch, or none. When any latch conflicts it
// returns the WaitGroup to wait on before retrying.
func (l *latches) acquire(shared, exclusive []uint64) *sync.WaitGroup {
	l.latchGuard.Lock()
	defer l.latchGuard.Unlock()

	for _, key := range exclusive {
		if lt, ok := l.latchMap[key]; ok {
			return lt.wg
		}
	}
	for _, key := range shared {
		if lt, ok := l.latchMap[key]; ok && lt.writer {
			return lt.wg
		}
	}

	for _, key := range exclusive {
		wg := new(sync.WaitGroup)
		wg.Add(1)
		l.latchMap[key] = &latch{writer: true, wg: wg}
	}
	for _, key := range shared {
		if lt, ok := l.latchMap[key]; ok {
			lt.readers++
			continue
		}
		wg := new(sync.WaitGroup)
		wg.Add(1)
		l.latchMap[key] = &latch{readers: 1, wg: wg}
	}
	return nil
}

// release gives back latches taken together by one acquire call and wakes
// the threads waiting on any latch that became free.
func (l *latches) release(shared, exclusive []uint64) {
	l.latchGuard.Lock()
	defer l.latchGuard.Unlock()

	for _, key := range exclusive {
		lt := l.latchMap[key]
		delete(l.latchMap, key)
		lt.wg.Done()
	}
	for _, key := range shared {
		lt := l.latchMap[key]
		lt.readers--
		if lt.readers == 0 {
			delete(l.latchMap, key)
			lt.wg.Done()
		}
	}
}

// wait blocks until all latches are held. It may block for an unbounded time
// while conflicting commits are in flight.
func (l *latches) wait(shared, exclusive []uint64) {
	for {
		wg := l.acquire(shared, exclusive)
		if wg == nil {
			return
		}
		wg.Wait()
	}
}
