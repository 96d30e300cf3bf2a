package bx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLittleEndianReadWrite checks the byte order of the plain helpers.
func TestLittleEndianReadWrite(t *testing.T) {
	b := make([]byte, 8)

	PutU16(b, 0x1234)
	assert.Equal(t, []byte{0x34, 0x12}, b[:2])
	assert.Equal(t, uint16(0x1234), U16(b))

	PutU32(b, 0x01020304)
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, b[:4])
	assert.Equal(t, uint32(0x01020304), U32(b))

	PutU64(b, 0x0102030405060708)
	assert.Equal(t, []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}, b)
	assert.Equal(t, uint64(0x0102030405060708), U64(b))
}

func TestWriterReader(t *testing.T) {
	buf := make([]byte, 1+2+4+8+3)
	w := NewWriter(buf)
	w.U8(7)
	w.U16(0x0A0B)
	w.U32(0xDEADBEEF)
	w.U64(42)
	w.Bytes([]byte("abc"))
	require.Equal(t, len(buf), w.Off())

	r := NewReader(buf)
	assert.Equal(t, uint8(7), r.U8())
	assert.Equal(t, uint16(0x0A0B), r.U16())
	assert.Equal(t, uint32(0xDEADBEEF), r.U32())
	assert.Equal(t, uint64(42), r.U64())
	assert.Equal(t, []byte("abc"), r.Rest())
	assert.NoError(t, r.Err())
}

func TestReaderShort(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	assert.Equal(t, uint16(0x0201), r.U16())
	assert.Equal(t, uint32(0), r.U32())
	assert.ErrorIs(t, r.Err(), ErrShort)

	// stays failed
	assert.Equal(t, uint8(0), r.U8())
	assert.Nil(t, r.Rest())
}
