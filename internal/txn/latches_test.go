package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLatches_Exclusive(t *testing.T) {
	l := newLatches()

	wg := l.acquire(nil, []uint64{1, 2})
	assert.Nil(t, wg)

	// exclusive latches can only be held once
	assert.NotNil(t, l.acquire(nil, []uint64{2}))
	assert.NotNil(t, l.acquire([]uint64{1}, nil))

	// nothing was taken by the failed attempts
	assert.Nil(t, l.acquire(nil, []uint64{3}))

	l.release(nil, []uint64{1, 2})
	assert.Nil(t, l.acquire(nil, []uint64{1}))
}

func TestLatches_SharedAllowsOtherReaders(t *testing.T) {
	l := newLatches()

	assert.Nil(t, l.acquire([]uint64{9}, []uint64{1}))
	assert.Nil(t, l.acquire([]uint64{9}, []uint64{2}))

	wg := l.acquire(nil, []uint64{9})
	assert.NotNil(t, wg)

	l.release([]uint64{9}, []uint64{1})
	assert.NotNil(t, l.acquire(nil, []uint64{9}))

	l.release([]uint64{9}, []uint64{2})
	wg.Wait() // the last reader is gone
	assert.Nil(t, l.acquire(nil, []uint64{9}))
}
