package novamemwire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

const (
	// MaxFrameSize limits memory usage on malformed/hostile input.
	MaxFrameSize = 8 << 20 // 8 MiB

	headerSize = 4
)

// ReadFrame reads a single length-prefixed JSON frame into v.
func ReadFrame(r io.Reader, v any) error {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	switch {
	case n == 0:
		return fmt.Errorf("novamemwire: empty frame")
	case n > MaxFrameSize:
		return fmt.Errorf("novamemwire: frame too large: %d > %d", n, MaxFrameSize)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return err
	}
	if err := json.Unmarshal(buf, v); err != nil {
		return fmt.Errorf("novamemwire: bad json: %w", err)
	}
	return nil
}

// WriteFrame writes v as one length-prefixed JSON frame, header and body in
// a single write.
func WriteFrame(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("novamemwire: marshal: %w", err)
	}
	if len(b) > MaxFrameSize {
		return fmt.Errorf("novamemwire: json too large: %d > %d", len(b), MaxFrameSize)
	}

	frame := make([]byte, headerSize+len(b))
	binary.BigEndian.PutUint32(frame, uint32(len(b)))
	copy(frame[headerSize:], b)
	_, err = w.Write(frame)
	return err
}
