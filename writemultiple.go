package modbus

// WriteMultipleCoilsRequest is the request body for WriteMultipleCoils.
type WriteMultipleCoilsRequest struct {
	Address uint16
	Values  []bool
}

// Encode writes address, quantity, byte count, then the packed bits.
func (w *WriteMultipleCoilsRequest) Encode() ([]byte, error) {
	packed := NewEncoder()
	packed.WriteBools(w.Values)

	e := NewEncoder()
	e.WriteU16(w.Address)
	if len(w.Values) > 0xffff {
		return nil, ErrOverflow
	}
	e.WriteU16(uint16(len(w.Values)))
	if err := e.WriteByteLen(packed.Len()); err != nil {
		return nil, err
	}
	e.WriteBytes(packed.Bytes())

	return e.Bytes(), nil
}

// DecodeWriteMultipleCoilsRequest decodes a WriteMultipleCoilsRequest body,
// rejecting it when the declared byte count does not equal
// ceil(quantity/8).
func DecodeWriteMultipleCoilsRequest(body []byte) (*WriteMultipleCoilsRequest, error) {
	d := NewDecoder(body)

	addr, err := d.ReadU16()
	if err != nil {
		return nil, err
	}
	quantity, err := d.ReadU16()
	if err != nil {
		return nil, err
	}
	byteCount, err := d.ReadU8()
	if err != nil {
		return nil, err
	}

	expected := int(quantity) / 8
	if quantity%8 != 0 {
		expected++
	}
	if int(byteCount) != expected {
		return nil, errInvalidData("byte count does not match ceil(quantity/8)")
	}

	values, err := d.ReadBools(int(quantity))
	if err != nil {
		return nil, err
	}
	if d.Remaining() != 0 {
		return nil, errInvalidData("trailing bytes in write multiple coils request")
	}

	return &WriteMultipleCoilsRequest{Address: addr, Values: values}, nil
}

// WriteMultipleRegistersRequest is the request body for
// WriteMultipleHoldingRegisters.
type WriteMultipleRegistersRequest struct {
	Address uint16
	Values  []uint16
}

// Encode writes address, quantity, byte count, then the registers.
func (w *WriteMultipleRegistersRequest) Encode() ([]byte, error) {
	e := NewEncoder()
	e.WriteU16(w.Address)
	if len(w.Values) > 0xffff {
		return nil, ErrOverflow
	}
	e.WriteU16(uint16(len(w.Values)))
	if err := e.WriteByteLen(len(w.Values) * 2); err != nil {
		return nil, err
	}
	e.WriteRegisters(w.Values)

	return e.Bytes(), nil
}

// DecodeWriteMultipleRegistersRequest decodes a
// WriteMultipleRegistersRequest body, rejecting it when the declared byte
// count does not equal quantity*2.
func DecodeWriteMultipleRegistersRequest(body []byte) (*WriteMultipleRegistersRequest, error) {
	d := NewDecoder(body)

	addr, err := d.ReadU16()
	if err != nil {
		return nil, err
	}
	quantity, err := d.ReadU16()
	if err != nil {
		return nil, err
	}
	byteCount, err := d.ReadU8()
	if err != nil {
		return nil, err
	}

	if int(byteCount) != int(quantity)*2 {
		return nil, errInvalidData("byte count does not match quantity*2")
	}

	values, err := d.ReadRegisters(int(quantity))
	if err != nil {
		return nil, err
	}
	if d.Remaining() != 0 {
		return nil, errInvalidData("trailing bytes in write multiple registers request")
	}

	return &WriteMultipleRegistersRequest{Address: addr, Values: values}, nil
}

// WriteMultipleResponse is the shared response shape for
// WriteMultipleCoils and WriteMultipleHoldingRegisters: the base address
// and quantity are echoed back unchanged.
type WriteMultipleResponse struct {
	Address  uint16
	Quantity uint16
}

// Encode writes address then quantity.
func (w *WriteMultipleResponse) Encode() []byte {
	e := NewEncoder()
	e.WriteU16(w.Address)
	e.WriteU16(w.Quantity)
	return e.Bytes()
}

// DecodeWriteMultipleResponse decodes a WriteMultipleResponse body.
func DecodeWriteMultipleResponse(body []byte) (*WriteMultipleResponse, error) {
	d := NewDecoder(body)

	addr, err := d.ReadU16()
	if err != nil {
		return nil, err
	}
	quantity, err := d.ReadU16()
	if err != nil {
		return nil, err
	}
	if d.Remaining() != 0 {
		return nil, errInvalidData("trailing bytes in write multiple response")
	}

	return &WriteMultipleResponse{Address: addr, Quantity: quantity}, nil
}
