package mbserver

import "github.com/fieldbus-go/modbus"

// CoilsRequest is passed to HandleCoils for both the read-coils (0x01)
// function code and the two coil-write function codes (0x05, 0x0f); a
// single-coil write arrives here as a one-element Args slice.
type CoilsRequest struct {
	ClientAddr string
	UnitID     uint8
	Addr       uint16
	Quantity   uint16
	IsWrite    bool
	Args       []bool
}

// DiscreteInputsRequest is passed to HandleDiscreteInputs (0x02), a
// read-only function code.
type DiscreteInputsRequest struct {
	ClientAddr string
	UnitID     uint8
	Addr       uint16
	Quantity   uint16
}

// HoldingRegistersRequest is passed to HandleHoldingRegisters for the
// read-holding-registers (0x03) function code and both holding-register
// write function codes (0x06, 0x10); a single-register write arrives here
// as a one-element Args slice. It is also used internally by the
// dispatcher to read-modify-write a register for MaskWriteHoldingRegister
// (0x16).
type HoldingRegistersRequest struct {
	ClientAddr string
	UnitID     uint8
	Addr       uint16
	Quantity   uint16
	IsWrite    bool
	Args       []uint16
}

// InputRegistersRequest is passed to HandleInputRegisters (0x04), a
// read-only function code.
type InputRegistersRequest struct {
	ClientAddr string
	UnitID     uint8
	Addr       uint16
	Quantity   uint16
}

// DeviceIdentificationRequest is passed to HandleDeviceIdentification. The
// handler returns the device's full identification set; the dispatcher
// performs the paging arithmetic over it (see deviceid.go).
type DeviceIdentificationRequest struct {
	ClientAddr   string
	UnitID       uint8
	DeviceIDCode modbus.DeviceIDCode
	ObjectID     uint8
}

// MEIRequestCtx is passed to HandleMEI for any MEI sub-function other than
// Read Device Identification, which is routed to HandleDeviceIdentification
// instead.
type MEIRequestCtx struct {
	ClientAddr string
	UnitID     uint8
	Type       uint8
	Data       []byte
}

// RequestHandler is the collaborator contract a caller implements to back
// a Server with actual register/coil storage. Every hook is fallible with
// a modbus.ModbusException; any other non-nil error is translated to
// ServerDeviceFailure.
type RequestHandler interface {
	// AcceptConnection is consulted on every new TCP connection before it
	// is admitted. Returning false rejects and closes the connection.
	AcceptConnection(clientAddr string) bool

	// MaxConcurrentConnections bounds how many connections the server
	// admits at once. 0 means unbounded.
	MaxConcurrentConnections() uint

	// MaxConcurrentRequests bounds how many in-flight requests a single
	// connection may have outstanding. 0 means unbounded.
	MaxConcurrentRequests() uint

	// Disconnected is called once a connection's pump has returned, after
	// the socket is closed.
	Disconnected(clientAddr string)

	HandleCoils(*CoilsRequest) ([]bool, error)
	HandleDiscreteInputs(*DiscreteInputsRequest) ([]bool, error)
	HandleHoldingRegisters(*HoldingRegistersRequest) ([]uint16, error)
	HandleInputRegisters(*InputRegistersRequest) ([]uint16, error)
	HandleDeviceIdentification(*DeviceIdentificationRequest) (*modbus.DeviceIdentification, error)
	HandleMEI(*MEIRequestCtx) ([]byte, error)
}

// BaseHandler is an embeddable RequestHandler that accepts every
// connection with generous defaults and answers every data hook with
// IllegalFunction. Embed it and override only the hooks a given device
// actually serves.
type BaseHandler struct{}

func (BaseHandler) AcceptConnection(clientAddr string) bool { return true }
func (BaseHandler) MaxConcurrentConnections() uint          { return 100 }
func (BaseHandler) MaxConcurrentRequests() uint             { return 10 }
func (BaseHandler) Disconnected(clientAddr string)          {}

func (BaseHandler) HandleCoils(*CoilsRequest) ([]bool, error) {
	return nil, modbus.ModbusException(modbus.ExIllegalFunction)
}

func (BaseHandler) HandleDiscreteInputs(*DiscreteInputsRequest) ([]bool, error) {
	return nil, modbus.ModbusException(modbus.ExIllegalFunction)
}

func (BaseHandler) HandleHoldingRegisters(*HoldingRegistersRequest) ([]uint16, error) {
	return nil, modbus.ModbusException(modbus.ExIllegalFunction)
}

func (BaseHandler) HandleInputRegisters(*InputRegistersRequest) ([]uint16, error) {
	return nil, modbus.ModbusException(modbus.ExIllegalFunction)
}

func (BaseHandler) HandleDeviceIdentification(*DeviceIdentificationRequest) (*modbus.DeviceIdentification, error) {
	return nil, modbus.ModbusException(modbus.ExIllegalFunction)
}

func (BaseHandler) HandleMEI(*MEIRequestCtx) ([]byte, error) {
	return nil, modbus.ModbusException(modbus.ExIllegalFunction)
}
