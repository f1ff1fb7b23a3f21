package wire

import (
	"encoding/binary"
	"errors"
)

// ErrTruncatedPayload is returned when decoding runs past the end of the
// payload buffer.
var ErrTruncatedPayload = errors.New("wire: truncated payload")

// Encoder builds a payload buffer incrementally, matching the teacher's
// preference for small purpose-built builders over a generic reflection
// based codec.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// String appends a length-prefixed string. An empty string encodes a
// missing value (length 0), per spec.md §4.2.
func (e *Encoder) String(s string) *Encoder {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	e.buf = append(e.buf, lenBuf[:]...)
	e.buf = append(e.buf, s...)
	return e
}

// Uint32 appends a raw big-endian uint32 (used for counts and flags).
func (e *Encoder) Uint32(v uint32) *Encoder {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	e.buf = append(e.buf, buf[:]...)
	return e
}

// Bool appends a flag as a single byte.
func (e *Encoder) Bool(v bool) *Encoder {
	if v {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
	return e
}

// Bytes appends raw bytes (already length-prefixed or fixed size by
// convention, e.g. a nested message).
func (e *Encoder) Bytes(b []byte) *Encoder {
	e.buf = append(e.buf, b...)
	return e
}

// Int32 appends a signed value (used for Status.Progress, which ranges
// -1..100).
func (e *Encoder) Int32(v int32) *Encoder {
	return e.Uint32(uint32(v))
}

// Payload returns the accumulated buffer.
func (e *Encoder) Payload() []byte {
	return e.buf
}

// Decoder walks a payload buffer sequentially.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder wraps buf for sequential decoding.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// String reads the next length-prefixed string.
func (d *Decoder) String() (string, error) {
	if d.pos+4 > len(d.buf) {
		return "", ErrTruncatedPayload
	}

	n := binary.BigEndian.Uint32(d.buf[d.pos : d.pos+4])
	d.pos += 4

	if d.pos+int(n) > len(d.buf) {
		return "", ErrTruncatedPayload
	}

	s := string(d.buf[d.pos : d.pos+int(n)])
	d.pos += int(n)
	return s, nil
}

// Uint32 reads the next raw big-endian uint32.
func (d *Decoder) Uint32() (uint32, error) {
	if d.pos+4 > len(d.buf) {
		return 0, ErrTruncatedPayload
	}

	v := binary.BigEndian.Uint32(d.buf[d.pos : d.pos+4])
	d.pos += 4
	return v, nil
}

// Int32 reads the next signed value.
func (d *Decoder) Int32() (int32, error) {
	v, err := d.Uint32()
	return int32(v), err
}

// Bool reads the next flag byte.
func (d *Decoder) Bool() (bool, error) {
	if d.pos+1 > len(d.buf) {
		return false, ErrTruncatedPayload
	}

	v := d.buf[d.pos] != 0
	d.pos++
	return v, nil
}

// Remaining reports whether unconsumed bytes remain.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}
