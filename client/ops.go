package mbclient

import (
	"context"

	"github.com/fieldbus-go/modbus"
)

// SetUnitID changes the unit id placed on subsequent requests.
func (c *Client) SetUnitID(unitID uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unitID = unitID
}

func rangeError(addr, quantity uint16, max int, label string) error {
	if quantity == 0 {
		return &ArgumentsOutOfRangeError{Reason: label + ": quantity is 0"}
	}
	if int(quantity) > max {
		return &ArgumentsOutOfRangeError{Reason: label + ": quantity exceeds the maximum"}
	}
	if uint32(addr)+uint32(quantity)-1 > 0xffff {
		return &ArgumentsOutOfRangeError{Reason: label + ": end address is past 0xffff"}
	}
	return nil
}

// ReadCoils reads quantity coils starting at addr (function code 1).
func (c *Client) ReadCoils(ctx context.Context, addr, quantity uint16) ([]bool, error) {
	return c.readBits(ctx, addr, quantity, modbus.FuncReadCoils, modbus.ReadCoilsMaxLength)
}

// ReadDiscreteInputs reads quantity discrete inputs starting at addr
// (function code 2).
func (c *Client) ReadDiscreteInputs(ctx context.Context, addr, quantity uint16) ([]bool, error) {
	return c.readBits(ctx, addr, quantity, modbus.FuncReadDiscreteInputs, modbus.ReadDiscreteInputsMaxLength)
}

func (c *Client) readBits(ctx context.Context, addr, quantity uint16, fc modbus.FunctionCode, max int) ([]bool, error) {
	if err := rangeError(addr, quantity, max, fc.String()); err != nil {
		return nil, err
	}

	req := &modbus.ReadRequest{Address: addr, Quantity: quantity}
	res, err := c.sendRequest(ctx, c.currentUnitID(), fc, req.Encode())
	if err != nil {
		return nil, err
	}

	bits, err := modbus.DecodeBitsResponse(res.Body, int(quantity))
	if err != nil {
		return nil, &InvalidResponseError{Reason: err.Error()}
	}
	return bits.Values, nil
}

// ReadHoldingRegisters reads quantity holding registers starting at addr
// (function code 3).
func (c *Client) ReadHoldingRegisters(ctx context.Context, addr, quantity uint16) ([]uint16, error) {
	return c.readRegisters(ctx, addr, quantity, modbus.FuncReadHoldingRegisters, modbus.ReadHoldingRegistersMaxLength)
}

// ReadInputRegisters reads quantity input registers starting at addr
// (function code 4).
func (c *Client) ReadInputRegisters(ctx context.Context, addr, quantity uint16) ([]uint16, error) {
	return c.readRegisters(ctx, addr, quantity, modbus.FuncReadInputRegisters, modbus.ReadInputRegistersMaxLength)
}

func (c *Client) readRegisters(ctx context.Context, addr, quantity uint16, fc modbus.FunctionCode, max int) ([]uint16, error) {
	if err := rangeError(addr, quantity, max, fc.String()); err != nil {
		return nil, err
	}

	req := &modbus.ReadRequest{Address: addr, Quantity: quantity}
	res, err := c.sendRequest(ctx, c.currentUnitID(), fc, req.Encode())
	if err != nil {
		return nil, err
	}

	regs, err := modbus.DecodeRegistersResponse(res.Body)
	if err != nil {
		return nil, &InvalidResponseError{Reason: err.Error()}
	}
	if len(regs.Values) != int(quantity) {
		return nil, &InvalidResponseError{Reason: "register count does not match the request"}
	}
	return regs.Values, nil
}

// WriteSingleCoil writes a single coil (function code 5).
func (c *Client) WriteSingleCoil(ctx context.Context, addr uint16, value bool) error {
	req := &modbus.WriteSingleCoil{Address: addr, Value: value}
	res, err := c.sendRequest(ctx, c.currentUnitID(), modbus.FuncWriteSingleCoil, req.Encode())
	if err != nil {
		return err
	}

	echoed, err := modbus.DecodeWriteSingleCoil(res.Body)
	if err != nil {
		return &InvalidResponseError{Reason: err.Error()}
	}
	if echoed.Address != addr || echoed.Value != value {
		return &InvalidResponseError{Reason: "write single coil response does not echo the request"}
	}
	return nil
}

// WriteSingleHoldingRegister writes a single holding register (function
// code 6).
func (c *Client) WriteSingleHoldingRegister(ctx context.Context, addr, value uint16) error {
	req := &modbus.WriteSingleRegister{Address: addr, Value: value}
	res, err := c.sendRequest(ctx, c.currentUnitID(), modbus.FuncWriteSingleHoldingRegister, req.Encode())
	if err != nil {
		return err
	}

	echoed, err := modbus.DecodeWriteSingleRegister(res.Body)
	if err != nil {
		return &InvalidResponseError{Reason: err.Error()}
	}
	if echoed.Address != addr || echoed.Value != value {
		return &InvalidResponseError{Reason: "write single register response does not echo the request"}
	}
	return nil
}

// WriteMultipleCoils writes multiple coils starting at addr (function code
// 15).
func (c *Client) WriteMultipleCoils(ctx context.Context, addr uint16, values []bool) error {
	if err := rangeError(addr, uint16(len(values)), modbus.WriteMultipleCoilsMaxLength, "write multiple coils"); err != nil {
		return err
	}

	req := &modbus.WriteMultipleCoilsRequest{Address: addr, Values: values}
	body, err := req.Encode()
	if err != nil {
		return &ArgumentsOutOfRangeError{Reason: err.Error()}
	}

	res, err := c.sendRequest(ctx, c.currentUnitID(), modbus.FuncWriteMultipleCoils, body)
	if err != nil {
		return err
	}

	return checkMultipleEcho(res.Body, addr, uint16(len(values)))
}

// WriteMultipleHoldingRegisters writes multiple holding registers starting
// at addr (function code 16).
func (c *Client) WriteMultipleHoldingRegisters(ctx context.Context, addr uint16, values []uint16) error {
	if err := rangeError(addr, uint16(len(values)), modbus.WriteMultipleRegistersMaxLength, "write multiple holding registers"); err != nil {
		return err
	}

	req := &modbus.WriteMultipleRegistersRequest{Address: addr, Values: values}
	body, err := req.Encode()
	if err != nil {
		return &ArgumentsOutOfRangeError{Reason: err.Error()}
	}

	res, err := c.sendRequest(ctx, c.currentUnitID(), modbus.FuncWriteMultipleHoldingRegisters, body)
	if err != nil {
		return err
	}

	return checkMultipleEcho(res.Body, addr, uint16(len(values)))
}

func checkMultipleEcho(body []byte, addr, quantity uint16) error {
	echoed, err := modbus.DecodeWriteMultipleResponse(body)
	if err != nil {
		return &InvalidResponseError{Reason: err.Error()}
	}
	if echoed.Address != addr || echoed.Quantity != quantity {
		return &InvalidResponseError{Reason: "write multiple response does not echo the request"}
	}
	return nil
}

// MaskWriteHoldingRegister applies (current & andMask) | (orMask &^
// andMask) to the holding register at addr (function code 22).
func (c *Client) MaskWriteHoldingRegister(ctx context.Context, addr, andMask, orMask uint16) error {
	req := &modbus.MaskWriteRegister{Address: addr, AndMask: andMask, OrMask: orMask}
	res, err := c.sendRequest(ctx, c.currentUnitID(), modbus.FuncMaskWriteHoldingRegister, req.Encode())
	if err != nil {
		return err
	}

	echoed, err := modbus.DecodeMaskWriteRegister(res.Body)
	if err != nil {
		return &InvalidResponseError{Reason: err.Error()}
	}
	if *echoed != *req {
		return &InvalidResponseError{Reason: "mask write response does not echo the request"}
	}
	return nil
}

// MEI issues a raw Modbus Encapsulated Interface request (function code
// 43) and returns the peer's opaque reply data for sub-function meiType.
func (c *Client) MEI(ctx context.Context, meiType uint8, data []byte) ([]byte, error) {
	req := &modbus.MEIRequest{Type: meiType, Data: data}
	res, err := c.sendRequest(ctx, c.currentUnitID(), modbus.FuncMEI, req.Encode())
	if err != nil {
		return nil, err
	}

	decoded, err := modbus.DecodeMEIResponse(res.Body)
	if err != nil {
		return nil, &InvalidResponseError{Reason: err.Error()}
	}
	if decoded.Type != meiType {
		return nil, &InvalidResponseError{Reason: "MEI response type does not match the request"}
	}
	return decoded.Data, nil
}

func (c *Client) currentUnitID() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unitID
}
