package txn

// conflict is the panic value used to abandon an attempt that read an
// inconsistent state. Run recovers it and starts the body again.
type conflict struct{}

var errConflict = conflict{}

// Tx is one attempt of a transaction body. It observes the committed state as
// of readVersion; reads of anything newer abort the attempt.
type Tx struct {
	m           *Manager
	readVersion uint64
	reads       map[*cell]uint64
	writes      map[*cell]any
}

func (m *Manager) begin() *Tx {
	return &Tx{
		m:           m,
		readVersion: m.clock.Load(),
		reads:       make(map[*cell]uint64),
		writes:      make(map[*cell]any),
	}
}

// ReadVersion is the commit version whose state this attempt observes.
func (tx *Tx) ReadVersion() uint64 { return tx.readVersion }

func (tx *Tx) get(c *cell) any {
	if v, ok := tx.writes[c]; ok {
		return v
	}
	v, ver, locked := c.load()
	if locked || ver > tx.readVersion {
		panic(errConflict)
	}
	if prev, seen := tx.reads[c]; seen && prev != ver {
		panic(errConflict)
	}
	tx.reads[c] = ver
	return v
}

func (tx *Tx) set(c *cell, v any) {
	tx.writes[c] = v
}

// readSetChanged reports whether any cell read by tx got a new version.
func (tx *Tx) readSetChanged() bool {
	for c, ver := range tx.reads {
		_, cur, _ := c.load()
		if cur != ver {
			return true
		}
	}
	return false
}

// commit validates the read set and installs the write set. It returns the new
// commit version, 0 for a read-only attempt, and false when validation failed.
func (tx *Tx) commit() (uint64, bool) {
	if len(tx.writes) == 0 {
		// every read was already checked against readVersion
		return 0, true
	}

	exclusive := make([]uint64, 0, len(tx.writes))
	for c := range tx.writes {
		exclusive = append(exclusive, c.id)
	}
	shared := make([]uint64, 0, len(tx.reads))
	for c := range tx.reads {
		if _, w := tx.writes[c]; !w {
			shared = append(shared, c.id)
		}
	}

	tx.m.latches.wait(shared, exclusive)
	defer tx.m.latches.release(shared, exclusive)

	for c := range tx.writes {
		c.mu.Lock()
		c.locked = true
		c.mu.Unlock()
	}

	valid := true
	for c, ver := range tx.reads {
		_, cur, locked := c.load()
		_, own := tx.writes[c]
		if cur != ver || (locked && !own) {
			valid = false
			break
		}
	}
	if !valid {
		for c := range tx.writes {
			c.mu.Lock()
			c.locked = false
			c.mu.Unlock()
		}
		return 0, false
	}

	wv := tx.m.clock.Inc()
	for c, v := range tx.writes {
		c.mu.Lock()
		c.value = v
		c.version = wv
		c.locked = false
		c.mu.Unlock()
	}
	return wv, true
}
