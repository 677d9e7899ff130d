package modbus

// Message is one MBAP-framed MODBUS TCP unit: header fields plus an opaque
// PDU body (function code + payload, already encoded).
type Message struct {
	TransactionID uint16
	ProtocolID    uint16
	UnitID        uint8
	FunctionCode  FunctionCode
	Body          []byte
}

// Encode serialises m as transaction_id, protocol_id, length, unit_id,
// function_code, body. The length field covers unit_id, function_code and
// body (len(Body)+2). Bodies that would make the length field overflow a
// u16 fail with ErrOverflow.
func (m *Message) Encode() ([]byte, error) {
	if len(m.Body)+2 > 0xffff {
		return nil, ErrOverflow
	}

	e := NewEncoder()
	e.WriteU16(m.TransactionID)
	e.WriteU16(m.ProtocolID)
	e.WriteU16(uint16(len(m.Body) + 2))
	e.WriteU8(m.UnitID)
	e.WriteU8(uint8(m.FunctionCode))
	e.WriteBytes(m.Body)

	return e.Bytes(), nil
}

// DecodeMessage decodes a single Message from buf. It returns a
// missing-data DecodeError if buf does not yet hold a complete header or
// body (the caller should read more bytes and retry), and an
// invalid-data DecodeError if the length field is malformed (byte_length
// > MsgMaxLength-6, i.e. the frame would exceed MsgMaxLength). decodedLen
// reports how many bytes of buf were consumed on success.
func DecodeMessage(buf []byte) (msg *Message, decodedLen int, err error) {
	d := NewDecoder(buf)

	txnID, err := d.ReadU16()
	if err != nil {
		return nil, 0, err
	}
	protocolID, err := d.ReadU16()
	if err != nil {
		return nil, 0, err
	}
	byteLength, err := d.ReadU16()
	if err != nil {
		return nil, 0, err
	}

	// byteLength covers unit_id + function_code + body; the frame on the
	// wire is txn_id+protocol_id+length (6 bytes) + byteLength, so reject
	// anything that would push the total past MsgMaxLength, and anything
	// too short to even carry unit_id + function_code.
	if int(byteLength) > MsgMaxLength-6 || byteLength < 2 {
		return nil, 0, errInvalidData("message length out of range")
	}

	unitID, err := d.ReadU8()
	if err != nil {
		return nil, 0, err
	}
	functionCode, err := d.ReadU8()
	if err != nil {
		return nil, 0, err
	}

	bodyLen := int(byteLength) - 2
	body, err := d.ReadBytes(bodyLen)
	if err != nil {
		return nil, 0, err
	}

	msg = &Message{
		TransactionID: txnID,
		ProtocolID:    protocolID,
		UnitID:        unitID,
		FunctionCode:  FunctionCode(functionCode),
		Body:          append([]byte(nil), body...),
	}

	return msg, d.Position(), nil
}
