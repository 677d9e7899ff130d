package modbus

import (
	"bytes"
	"testing"
)

func TestMessageFrameRoundTrip(t *testing.T) {
	msg := &Message{
		TransactionID: 0x0102,
		ProtocolID:    0,
		UnitID:        1,
		FunctionCode:  FuncReadHoldingRegisters,
		Body:          []byte{0x00, 0x03, 0x00, 0x04},
	}

	raw, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, n, err := DecodeMessage(raw)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if n != len(raw) {
		t.Errorf("expected to consume %v bytes, consumed %v", len(raw), n)
	}

	if decoded.TransactionID != msg.TransactionID {
		t.Errorf("transaction id: expected %v, got %v", msg.TransactionID, decoded.TransactionID)
	}
	if decoded.ProtocolID != msg.ProtocolID {
		t.Errorf("protocol id: expected %v, got %v", msg.ProtocolID, decoded.ProtocolID)
	}
	if decoded.UnitID != msg.UnitID {
		t.Errorf("unit id: expected %v, got %v", msg.UnitID, decoded.UnitID)
	}
	if decoded.FunctionCode != msg.FunctionCode {
		t.Errorf("function code: expected %v, got %v", msg.FunctionCode, decoded.FunctionCode)
	}
	if !bytes.Equal(decoded.Body, msg.Body) {
		t.Errorf("body: expected % x, got % x", msg.Body, decoded.Body)
	}
}

func TestMessageDecodeMissingData(t *testing.T) {
	msg := &Message{FunctionCode: FuncReadCoils, Body: []byte{0x00, 0x00, 0x00, 0x0a}}
	raw, _ := msg.Encode()

	// feed only the header plus one body byte: should ask for more data,
	// never report a terminal decode error.
	_, _, err := DecodeMessage(raw[:mbapHeaderLength+1])
	if !IsMissingData(err) {
		t.Errorf("expected a missing-data error on a truncated frame, got %v", err)
	}
}

func TestMessageDecodeRejectsOversizedLength(t *testing.T) {
	// MBAP header (through the function code) with a length field claiming a body far past
	// what MsgMaxLength allows.
	raw := []byte{0x00, 0x01, 0x00, 0x00, 0xff, 0xff, 0x01, 0x03}

	_, _, err := DecodeMessage(raw)
	if err == nil || IsMissingData(err) {
		t.Errorf("expected a terminal decode error for an oversized length field, got %v", err)
	}
}

func TestMessageEncodeOverflow(t *testing.T) {
	msg := &Message{Body: make([]byte, 0x10000)}
	if _, err := msg.Encode(); err != ErrOverflow {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
}
