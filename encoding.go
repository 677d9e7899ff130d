package modbus

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrOverflow is returned by Encoder methods when a value cannot be
// represented in the wire format being written (e.g. a byte count or
// register count past 255/65535).
var ErrOverflow = errors.New("modbus: encode overflow")

// DecodeError reports why a Decoder could not produce a value. Missing is
// distinguished from an outright invalid encoding so callers reading off a
// streaming connection know whether to wait for more bytes or give up.
type DecodeError struct {
	Missing bool   // true if the cursor ran out of bytes
	Reason  string // human-readable cause, set when !Missing
}

func (e *DecodeError) Error() string {
	if e.Missing {
		return "modbus: missing data"
	}
	return fmt.Sprintf("modbus: invalid data: %s", e.Reason)
}

func errMissingData() error {
	return &DecodeError{Missing: true}
}

func errInvalidData(reason string) error {
	return &DecodeError{Reason: reason}
}

// IsMissingData reports whether err is a DecodeError signalling that more
// bytes are needed before decoding can proceed.
func IsMissingData(err error) bool {
	var de *DecodeError
	return errors.As(err, &de) && de.Missing
}

// Encoder is an append-only, cursor-free write buffer used to build PDU
// and message bodies.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an Encoder with no bytes written yet.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the bytes written so far.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// WriteU8 appends a single byte.
func (e *Encoder) WriteU8(v uint8) {
	e.buf = append(e.buf, v)
}

// WriteU16 appends v as two big-endian bytes.
func (e *Encoder) WriteU16(v uint16) {
	e.buf = append(e.buf, byte(v>>8), byte(v))
}

// WriteBytes appends raw bytes verbatim.
func (e *Encoder) WriteBytes(b []byte) {
	e.buf = append(e.buf, b...)
}

// WriteRegisters appends each register as a big-endian u16.
func (e *Encoder) WriteRegisters(regs []uint16) {
	for _, r := range regs {
		e.WriteU16(r)
	}
}

// WriteBools packs bits LSB-first: bit i of output byte k corresponds to
// input[k*8+i]. Trailing bits in the last byte are zero.
func (e *Encoder) WriteBools(bools []bool) {
	byteCount := len(bools) / 8
	if len(bools)%8 != 0 {
		byteCount++
	}

	packed := make([]byte, byteCount)
	for i, b := range bools {
		if b {
			packed[i/8] |= 1 << (uint(i) % 8)
		}
	}

	e.buf = append(e.buf, packed...)
}

// WriteByteLen appends the count n as a single byte, failing with
// ErrOverflow if it does not fit in a byte.
func (e *Encoder) WriteByteLen(n int) error {
	if n > 0xff {
		return ErrOverflow
	}
	e.WriteU8(uint8(n))
	return nil
}

// Decoder is a read-side cursor over a fixed byte slice.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder returns a Decoder positioned at the start of buf.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

// Position returns the current cursor offset.
func (d *Decoder) Position() int {
	return d.pos
}

// ReadU8 reads a single byte.
func (d *Decoder) ReadU8() (uint8, error) {
	if d.Remaining() < 1 {
		return 0, errMissingData()
	}
	v := d.buf[d.pos]
	d.pos++
	return v, nil
}

// ReadU16 reads two big-endian bytes.
func (d *Decoder) ReadU16() (uint16, error) {
	if d.Remaining() < 2 {
		return 0, errMissingData()
	}
	v := binary.BigEndian.Uint16(d.buf[d.pos : d.pos+2])
	d.pos += 2
	return v, nil
}

// ReadBytes reads exactly n raw bytes.
func (d *Decoder) ReadBytes(n int) ([]byte, error) {
	if d.Remaining() < n {
		return nil, errMissingData()
	}
	v := d.buf[d.pos : d.pos+n]
	d.pos += n
	return v, nil
}

// ReadRemainder reads every byte left in the cursor.
func (d *Decoder) ReadRemainder() []byte {
	v := d.buf[d.pos:]
	d.pos = len(d.buf)
	return v
}

// ReadRegisters reads count big-endian u16 registers.
func (d *Decoder) ReadRegisters(count int) ([]uint16, error) {
	if d.Remaining() < count*2 {
		return nil, errMissingData()
	}
	regs := make([]uint16, count)
	for i := range regs {
		regs[i], _ = d.ReadU16()
	}
	return regs, nil
}

// ReadBools unpacks quantity bits, LSB-first, from the next
// ceil(quantity/8) bytes.
func (d *Decoder) ReadBools(quantity int) ([]bool, error) {
	byteCount := quantity / 8
	if quantity%8 != 0 {
		byteCount++
	}

	raw, err := d.ReadBytes(byteCount)
	if err != nil {
		return nil, err
	}

	bools := make([]bool, quantity)
	for i := range bools {
		bools[i] = (raw[i/8]>>(uint(i)%8))&0x01 == 0x01
	}
	return bools, nil
}
