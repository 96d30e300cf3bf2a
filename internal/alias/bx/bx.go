// stand for bytes helper
package bx

import (
	"encoding/binary"
	"errors"
)

var LE = binary.LittleEndian

// ErrShort is reported by Reader when a field runs past the end of the buffer.
var ErrShort = errors.New("bx: short buffer")

func U16(b []byte) uint16 { return LE.Uint16(b) }
func U32(b []byte) uint32 { return LE.Uint32(b) }
func U64(b []byte) uint64 { return LE.Uint64(b) }

func PutU16(b []byte, v uint16) { LE.PutUint16(b, v) }
func PutU32(b []byte, v uint32) { LE.PutUint32(b, v) }
func PutU64(b []byte, v uint64) { LE.PutUint64(b, v) }

// Writer fills a preallocated buffer front to back.
type Writer struct {
	buf []byte
	off int
}

func NewWriter(buf []byte) *Writer { return &Writer{buf: buf} }

func (w *Writer) U8(v uint8)   { w.buf[w.off] = v; w.off++ }
func (w *Writer) U16(v uint16) { PutU16(w.buf[w.off:], v); w.off += 2 }
func (w *Writer) U32(v uint32) { PutU32(w.buf[w.off:], v); w.off += 4 }
func (w *Writer) U64(v uint64) { PutU64(w.buf[w.off:], v); w.off += 8 }
func (w *Writer) Bytes(b []byte) {
	copy(w.buf[w.off:], b)
	w.off += len(b)
}

// Off is the number of bytes written so far.
func (w *Writer) Off() int { return w.off }

// Reader consumes fixed-width fields. After the first short read every getter
// returns zero and Err reports ErrShort.
type Reader struct {
	buf []byte
	off int
	err error
}

func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

func (r *Reader) take(n int) []byte {
	if r.err != nil || r.off+n > len(r.buf) {
		r.err = ErrShort
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) U8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *Reader) U16() uint16 {
	if b := r.take(2); b != nil {
		return U16(b)
	}
	return 0
}

func (r *Reader) U32() uint32 {
	if b := r.take(4); b != nil {
		return U32(b)
	}
	return 0
}

func (r *Reader) U64() uint64 {
	if b := r.take(8); b != nil {
		return U64(b)
	}
	return 0
}

// Rest returns the unread remainder.
func (r *Reader) Rest() []byte {
	if r.err != nil {
		return nil
	}
	b := r.buf[r.off:]
	r.off = len(r.buf)
	return b
}

func (r *Reader) Err() error { return r.err }
