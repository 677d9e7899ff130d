package modbus

// ReadRequest is the request body shared by ReadCoils, ReadDiscreteInputs,
// ReadHoldingRegisters and ReadInputRegisters: a base address and an item
// count.
type ReadRequest struct {
	Address  uint16
	Quantity uint16
}

// Encode writes address then quantity, big-endian.
func (r *ReadRequest) Encode() []byte {
	e := NewEncoder()
	e.WriteU16(r.Address)
	e.WriteU16(r.Quantity)
	return e.Bytes()
}

// DecodeReadRequest decodes a ReadRequest body.
func DecodeReadRequest(body []byte) (*ReadRequest, error) {
	d := NewDecoder(body)

	addr, err := d.ReadU16()
	if err != nil {
		return nil, err
	}
	qty, err := d.ReadU16()
	if err != nil {
		return nil, err
	}
	if d.Remaining() != 0 {
		return nil, errInvalidData("trailing bytes in read request")
	}

	return &ReadRequest{Address: addr, Quantity: qty}, nil
}

// BitsResponse is the response body for ReadCoils and ReadDiscreteInputs: a
// byte count followed by that many bytes of LSB-first packed bits.
type BitsResponse struct {
	Values []bool
}

// Encode writes the byte count then the packed bits. It fails with
// ErrOverflow if the packed length does not fit in a byte.
func (r *BitsResponse) Encode() ([]byte, error) {
	packed := NewEncoder()
	packed.WriteBools(r.Values)

	e := NewEncoder()
	if err := e.WriteByteLen(packed.Len()); err != nil {
		return nil, err
	}
	e.WriteBytes(packed.Bytes())

	return e.Bytes(), nil
}

// DecodeBitsResponse decodes a BitsResponse body. quantity is the number
// of logical bits the caller expects (carried out-of-band by the request
// that prompted this response); on decode-only (no known request) pass
// quantity <= 0 to assume byteCount*8 bits.
func DecodeBitsResponse(body []byte, quantity int) (*BitsResponse, error) {
	d := NewDecoder(body)

	byteCount, err := d.ReadU8()
	if err != nil {
		return nil, err
	}

	if quantity <= 0 {
		quantity = int(byteCount) * 8
	}

	expectedByteCount := quantity / 8
	if quantity%8 != 0 {
		expectedByteCount++
	}
	if int(byteCount) != expectedByteCount {
		return nil, errInvalidData("byte count does not match expected quantity")
	}

	values, err := d.ReadBools(quantity)
	if err != nil {
		return nil, err
	}
	if d.Remaining() != 0 {
		return nil, errInvalidData("trailing bytes in bits response")
	}

	return &BitsResponse{Values: values}, nil
}

// RegistersResponse is the response body for ReadHoldingRegisters and
// ReadInputRegisters: a byte count (always even) followed by that many
// bytes of big-endian u16 registers.
type RegistersResponse struct {
	Values []uint16
}

// Encode writes the byte count then the registers. Fails with ErrOverflow
// if 2*len(Values) does not fit in a byte.
func (r *RegistersResponse) Encode() ([]byte, error) {
	e := NewEncoder()
	if err := e.WriteByteLen(len(r.Values) * 2); err != nil {
		return nil, err
	}
	e.WriteRegisters(r.Values)
	return e.Bytes(), nil
}

// DecodeRegistersResponse decodes a RegistersResponse body.
func DecodeRegistersResponse(body []byte) (*RegistersResponse, error) {
	d := NewDecoder(body)

	byteCount, err := d.ReadU8()
	if err != nil {
		return nil, err
	}
	if byteCount%2 != 0 {
		return nil, errInvalidData("odd byte count in registers response")
	}

	values, err := d.ReadRegisters(int(byteCount) / 2)
	if err != nil {
		return nil, err
	}
	if d.Remaining() != 0 {
		return nil, errInvalidData("trailing bytes in registers response")
	}

	return &RegistersResponse{Values: values}, nil
}
