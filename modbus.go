// Package modbus implements the wire format of the MODBUS Application
// Protocol (MBAP) over TCP: the codec primitives, message framing,
// per-function PDUs and the Read Device Identification sub-protocol shared
// by the client and server packages.
package modbus

import (
	"errors"
	"fmt"
)

// FunctionCode identifies the MODBUS operation carried by a PDU. It is a
// tagged 8-bit value rather than a closed Go enum: unknown codes survive a
// decode/encode round trip and compare equal by their numeric value alone,
// so a peer using a function code this package does not know about is never
// silently coerced into a known one.
type FunctionCode uint8

// Known function codes.
const (
	FuncReadCoils                   FunctionCode = 0x01
	FuncReadDiscreteInputs          FunctionCode = 0x02
	FuncReadHoldingRegisters        FunctionCode = 0x03
	FuncReadInputRegisters          FunctionCode = 0x04
	FuncWriteSingleCoil              FunctionCode = 0x05
	FuncWriteSingleHoldingRegister   FunctionCode = 0x06
	FuncWriteMultipleCoils           FunctionCode = 0x0f
	FuncWriteMultipleHoldingRegisters FunctionCode = 0x10
	FuncMaskWriteHoldingRegister      FunctionCode = 0x16
	FuncMEI                          FunctionCode = 0x2b
)

// exceptionBit marks a function code as carrying an exception reply body.
const exceptionBit FunctionCode = 0x80

// IsException reports whether fc carries an exception reply, i.e. whether
// it is the request's function code OR'd with 0x80.
func (fc FunctionCode) IsException() bool {
	return fc&exceptionBit != 0
}

// AsException returns fc with the exception bit set, matching the function
// code a server places in an exception reply to a request carrying fc.
func (fc FunctionCode) AsException() FunctionCode {
	return fc | exceptionBit
}

// WithoutException strips the exception bit, recovering the request
// function code an exception reply corresponds to.
func (fc FunctionCode) WithoutException() FunctionCode {
	return fc &^ exceptionBit
}

func (fc FunctionCode) String() string {
	switch fc.WithoutException() {
	case FuncReadCoils:
		return "read coils"
	case FuncReadDiscreteInputs:
		return "read discrete inputs"
	case FuncReadHoldingRegisters:
		return "read holding registers"
	case FuncReadInputRegisters:
		return "read input registers"
	case FuncWriteSingleCoil:
		return "write single coil"
	case FuncWriteSingleHoldingRegister:
		return "write single holding register"
	case FuncWriteMultipleCoils:
		return "write multiple coils"
	case FuncWriteMultipleHoldingRegisters:
		return "write multiple holding registers"
	case FuncMaskWriteHoldingRegister:
		return "mask write holding register"
	case FuncMEI:
		return "encapsulated interface"
	default:
		return fmt.Sprintf("function code 0x%02x", uint8(fc))
	}
}

// ExceptionCode is the single-byte body of an exception reply. Like
// FunctionCode, it is an open tagged value: codes this package does not
// name are preserved and reported as such rather than collapsed to a
// generic failure.
type ExceptionCode uint8

// Known exception codes.
const (
	ExIllegalFunction                  ExceptionCode = 0x01
	ExIllegalDataAddress               ExceptionCode = 0x02
	ExIllegalDataValue                 ExceptionCode = 0x03
	ExServerDeviceFailure              ExceptionCode = 0x04
	ExAcknowledge                      ExceptionCode = 0x05
	ExServerDeviceBusy                 ExceptionCode = 0x06
	ExMemoryParityError                ExceptionCode = 0x08
	ExGatewayPathUnavailable           ExceptionCode = 0x0a
	ExGatewayTargetFailedToRespond     ExceptionCode = 0x0b
)

func (e ExceptionCode) Error() string {
	switch e {
	case ExIllegalFunction:
		return "illegal function"
	case ExIllegalDataAddress:
		return "illegal data address"
	case ExIllegalDataValue:
		return "illegal data value"
	case ExServerDeviceFailure:
		return "server device failure"
	case ExAcknowledge:
		return "request acknowledged"
	case ExServerDeviceBusy:
		return "server device busy"
	case ExMemoryParityError:
		return "memory parity error"
	case ExGatewayPathUnavailable:
		return "gateway path unavailable"
	case ExGatewayTargetFailedToRespond:
		return "gateway target device failed to respond"
	default:
		return fmt.Sprintf("exception code 0x%02x", uint8(e))
	}
}

// ModbusException wraps an ExceptionCode as an error value returned by a
// request handler, so handlers can simply `return nil, modbus.ModbusException(modbus.ExIllegalDataAddress)`
// instead of reaching for a sentinel per code.
type ModbusException ExceptionCode

func (e ModbusException) Error() string {
	return ExceptionCode(e).Error()
}

// Code returns the underlying exception code.
func (e ModbusException) Code() ExceptionCode {
	return ExceptionCode(e)
}

// Protocol-level constants (§6).
const (
	ReadCoilsMaxLength            = 2000
	ReadDiscreteInputsMaxLength   = 2000
	ReadHoldingRegistersMaxLength = 125
	ReadInputRegistersMaxLength   = 125
	WriteMultipleCoilsMaxLength   = 1968
	WriteMultipleRegistersMaxLength = 123

	// MsgMaxLength is the largest MBAP frame (header + body) DecodeMessage
	// accepts. Message.Encode does not check it; it only rejects bodies
	// whose length field would overflow a u16.
	MsgMaxLength = 260

	// mbapHeaderLength is transaction_id + protocol_id + length + unit_id
	// + function_code: 2+2+2+1+1.
	mbapHeaderLength = 8
)

// DeviceIDCode selects the granularity of a Read Device Identification
// request (§3, §4.5).
type DeviceIDCode uint8

const (
	DeviceIDBasic      DeviceIDCode = 0x01
	DeviceIDRegular     DeviceIDCode = 0x02
	DeviceIDExtended    DeviceIDCode = 0x03
	DeviceIDIndividual  DeviceIDCode = 0x04
)

// ConformityLevel reports how much of the device identification object
// space a server exposes (§6).
type ConformityLevel uint8

const (
	ConformityBasicStream                ConformityLevel = 0x01
	ConformityRegularStream              ConformityLevel = 0x02
	ConformityExtendedStream             ConformityLevel = 0x03
	ConformityBasicStreamAndIndividual    ConformityLevel = 0x81
	ConformityRegularStreamAndIndividual  ConformityLevel = 0x82
	ConformityExtendedStreamAndIndividual ConformityLevel = 0x83
)

// MEI sub-function types carried by function code 43.
const (
	MEITypeReadDeviceIdentification uint8 = 0x0e
)

// Well-known device identification object ids (§3).
const (
	ObjVendorName          uint8 = 0x00
	ObjProductCode         uint8 = 0x01
	ObjMajorMinorRevision  uint8 = 0x02
	ObjVendorURL           uint8 = 0x03
	ObjProductName         uint8 = 0x04
	ObjModelName           uint8 = 0x05
	ObjUserApplicationName uint8 = 0x06
)

// ErrProtocolError signals a frame that cannot be reconciled with the
// MBAP wire format (a length field above MsgMaxLength-6 or below 2). A
// truncated frame is not one: it is read as missing data and waited on. It
// is terminal for the connection it was read from.
// Protocol id validation is a response-level concern handled by mbclient's
// checkResponse, not the wire decoder, since §3's invariant is that every
// frame carries protocol id 0 and a non-zero value is simply never valid
// rather than a second protocol to dispatch on.
var ErrProtocolError = errors.New("modbus: protocol error")
