package modbus

import (
	"reflect"
	"testing"
)

func TestReadRequestRoundTrip(t *testing.T) {
	req := &ReadRequest{Address: 3, Quantity: 4}
	decoded, err := DecodeReadRequest(req.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *decoded != *req {
		t.Errorf("expected %+v, got %+v", req, decoded)
	}
}

func TestBitsResponseRoundTrip(t *testing.T) {
	values := []bool{true, false, true, false, true, false, true, false, true, false}
	resp := &BitsResponse{Values: values}

	body, err := resp.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeBitsResponse(body, len(values))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(decoded.Values, values) {
		t.Errorf("expected %v, got %v", values, decoded.Values)
	}
}

func TestRegistersResponseRoundTrip(t *testing.T) {
	values := []uint16{3, 4, 5, 6}
	resp := &RegistersResponse{Values: values}

	body, err := resp.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeRegistersResponse(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(decoded.Values, values) {
		t.Errorf("expected %v, got %v", values, decoded.Values)
	}
}

func TestRegistersResponseRejectsOddByteCount(t *testing.T) {
	// byte count 3 is odd: illegal regardless of what follows.
	if _, err := DecodeRegistersResponse([]byte{0x03, 0x00, 0x01, 0x00}); err == nil {
		t.Error("expected an error for an odd byte count")
	}
}

func TestWriteSingleCoilEncoding(t *testing.T) {
	on := &WriteSingleCoil{Address: 7, Value: true}
	raw := on.Encode()
	if raw[2] != 0xff || raw[3] != 0x00 {
		t.Errorf("expected coil-on wire value 0xff00, got % x", raw[2:4])
	}

	off := &WriteSingleCoil{Address: 7, Value: false}
	raw = off.Encode()
	if raw[2] != 0x00 || raw[3] != 0x00 {
		t.Errorf("expected coil-off wire value 0x0000, got % x", raw[2:4])
	}
}

func TestWriteSingleCoilRejectsBadValue(t *testing.T) {
	body := []byte{0x00, 0x07, 0x12, 0x34}
	if _, err := DecodeWriteSingleCoil(body); err == nil {
		t.Error("expected an error for a coil value that is neither 0xff00 nor 0x0000")
	}
}

func TestWriteMultipleCoilsRequestRejectsBadByteCount(t *testing.T) {
	req := &WriteMultipleCoilsRequest{Address: 0, Values: []bool{true, true, true, true, true, true, true, true, true}}
	body, err := req.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	// corrupt the byte count field (offset 4) to disagree with ceil(9/8)=2
	body[4] = 1
	if _, err := DecodeWriteMultipleCoilsRequest(body); err == nil {
		t.Error("expected an error when byte count disagrees with ceil(quantity/8)")
	}
}

func TestWriteMultipleRegistersRequestRejectsBadByteCount(t *testing.T) {
	req := &WriteMultipleRegistersRequest{Address: 0, Values: []uint16{1, 2, 3}}
	body, err := req.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	body[4] = 4 // should be 6 (3*2)
	if _, err := DecodeWriteMultipleRegistersRequest(body); err == nil {
		t.Error("expected an error when byte count disagrees with quantity*2")
	}
}

func TestMaskWriteApply(t *testing.T) {
	m := &MaskWriteRegister{Address: 100, AndMask: 0xf0, OrMask: 0x03}

	got := m.ApplyMask(0xac) // 0b1010_1100
	want := uint16(0xa3)     // 0b1010_0011, per the testable mask-write scenario
	if got != want {
		t.Errorf("expected 0x%04x, got 0x%04x", want, got)
	}
}

func TestMaskWriteRegisterRoundTrip(t *testing.T) {
	m := &MaskWriteRegister{Address: 100, AndMask: 0xf0, OrMask: 0x03}
	decoded, err := DecodeMaskWriteRegister(m.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *decoded != *m {
		t.Errorf("expected %+v, got %+v", m, decoded)
	}
}
