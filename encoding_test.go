package modbus

import (
	"testing"
)

func TestEncoderWriteU16(t *testing.T) {
	e := NewEncoder()
	e.WriteU16(0x4321)

	out := e.Bytes()
	if len(out) != 2 {
		t.Fatalf("expected 2 bytes, got %v", len(out))
	}
	if out[0] != 0x43 || out[1] != 0x21 {
		t.Errorf("expected {0x43, 0x21}, got {0x%02x, 0x%02x}", out[0], out[1])
	}
}

func TestEncoderWriteBools(t *testing.T) {
	e := NewEncoder()
	e.WriteBools([]bool{true, false, true, false, true, false, true, false, true})

	out := e.Bytes()
	if len(out) != 2 {
		t.Fatalf("expected 2 bytes, got %v", len(out))
	}
	if out[0] != 0x55 {
		t.Errorf("expected first byte 0x55, got 0x%02x", out[0])
	}
	if out[1] != 0x01 {
		t.Errorf("expected second byte 0x01, got 0x%02x", out[1])
	}
}

func TestEncoderWriteByteLenOverflow(t *testing.T) {
	e := NewEncoder()
	if err := e.WriteByteLen(256); err != ErrOverflow {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
}

func TestDecoderRoundTrip(t *testing.T) {
	e := NewEncoder()
	e.WriteU8(0x42)
	e.WriteU16(0x1234)
	e.WriteBytes([]byte{0xaa, 0xbb})
	e.WriteRegisters([]uint16{1, 2, 3})

	d := NewDecoder(e.Bytes())

	u8, err := d.ReadU8()
	if err != nil || u8 != 0x42 {
		t.Fatalf("ReadU8: got (%v, %v), expected (0x42, nil)", u8, err)
	}

	u16, err := d.ReadU16()
	if err != nil || u16 != 0x1234 {
		t.Fatalf("ReadU16: got (%v, %v), expected (0x1234, nil)", u16, err)
	}

	raw, err := d.ReadBytes(2)
	if err != nil || raw[0] != 0xaa || raw[1] != 0xbb {
		t.Fatalf("ReadBytes: got (%v, %v)", raw, err)
	}

	regs, err := d.ReadRegisters(3)
	if err != nil {
		t.Fatalf("ReadRegisters: %v", err)
	}
	if regs[0] != 1 || regs[1] != 2 || regs[2] != 3 {
		t.Errorf("expected [1 2 3], got %v", regs)
	}

	if d.Remaining() != 0 {
		t.Errorf("expected 0 bytes remaining, got %v", d.Remaining())
	}
}

func TestDecoderMissingData(t *testing.T) {
	d := NewDecoder([]byte{0x01})

	if _, err := d.ReadU16(); !IsMissingData(err) {
		t.Errorf("expected a missing-data error, got %v", err)
	}
}

func TestDecoderReadBools(t *testing.T) {
	d := NewDecoder([]byte{0x55, 0x01})

	bools, err := d.ReadBools(9)
	if err != nil {
		t.Fatalf("ReadBools: %v", err)
	}

	expected := []bool{true, false, true, false, true, false, true, false, true}
	if len(bools) != len(expected) {
		t.Fatalf("expected %v bools, got %v", len(expected), len(bools))
	}
	for i := range expected {
		if bools[i] != expected[i] {
			t.Errorf("bit %v: expected %v, got %v", i, expected[i], bools[i])
		}
	}
}
