package mbserver

import "github.com/fieldbus-go/modbus"

// handle decodes req's body for its function code, validates it,
// invokes the appropriate RequestHandler hook, and returns the Message to
// write back: either a normal reply or an exception reply. It never
// returns nil.
func (s *Server) handle(clientAddr string, req *modbus.Message) *modbus.Message {
	switch req.FunctionCode {
	case modbus.FuncReadCoils:
		return s.handleReadBits(clientAddr, req, modbus.ReadCoilsMaxLength, true)
	case modbus.FuncReadDiscreteInputs:
		return s.handleReadBits(clientAddr, req, modbus.ReadDiscreteInputsMaxLength, false)
	case modbus.FuncReadHoldingRegisters:
		return s.handleReadRegisters(clientAddr, req, modbus.ReadHoldingRegistersMaxLength, true)
	case modbus.FuncReadInputRegisters:
		return s.handleReadRegisters(clientAddr, req, modbus.ReadInputRegistersMaxLength, false)
	case modbus.FuncWriteSingleCoil:
		return s.handleWriteSingleCoil(clientAddr, req)
	case modbus.FuncWriteSingleHoldingRegister:
		return s.handleWriteSingleRegister(clientAddr, req)
	case modbus.FuncWriteMultipleCoils:
		return s.handleWriteMultipleCoils(clientAddr, req)
	case modbus.FuncWriteMultipleHoldingRegisters:
		return s.handleWriteMultipleRegisters(clientAddr, req)
	case modbus.FuncMaskWriteHoldingRegister:
		return s.handleMaskWriteRegister(clientAddr, req)
	case modbus.FuncMEI:
		return s.handleMEI(clientAddr, req)
	default:
		return exceptionReply(req, modbus.ExIllegalFunction)
	}
}

func (s *Server) handleReadBits(clientAddr string, req *modbus.Message, maxLen int, isCoils bool) *modbus.Message {
	rr, err := modbus.DecodeReadRequest(req.Body)
	if err != nil {
		return exceptionReply(req, modbus.ExServerDeviceFailure)
	}
	if rr.Quantity == 0 || int(rr.Quantity) > maxLen {
		return exceptionReply(req, modbus.ExIllegalDataValue)
	}
	if uint32(rr.Address)+uint32(rr.Quantity)-1 > 0xffff {
		return exceptionReply(req, modbus.ExIllegalDataAddress)
	}

	var values []bool
	if isCoils {
		values, err = s.handler.HandleCoils(&CoilsRequest{
			ClientAddr: clientAddr,
			UnitID:     req.UnitID,
			Addr:       rr.Address,
			Quantity:   rr.Quantity,
		})
	} else {
		values, err = s.handler.HandleDiscreteInputs(&DiscreteInputsRequest{
			ClientAddr: clientAddr,
			UnitID:     req.UnitID,
			Addr:       rr.Address,
			Quantity:   rr.Quantity,
		})
	}
	if err != nil {
		return exceptionReply(req, asException(err))
	}
	if len(values) != int(rr.Quantity) {
		s.logger.Errorf("handler returned %v bools, expected %v", len(values), rr.Quantity)
		return exceptionReply(req, modbus.ExServerDeviceFailure)
	}

	body, err := (&modbus.BitsResponse{Values: values}).Encode()
	if err != nil {
		return exceptionReply(req, modbus.ExServerDeviceFailure)
	}
	return reply(req, body)
}

func (s *Server) handleReadRegisters(clientAddr string, req *modbus.Message, maxLen int, isHolding bool) *modbus.Message {
	rr, err := modbus.DecodeReadRequest(req.Body)
	if err != nil {
		return exceptionReply(req, modbus.ExServerDeviceFailure)
	}
	if rr.Quantity == 0 || int(rr.Quantity) > maxLen {
		return exceptionReply(req, modbus.ExIllegalDataValue)
	}
	if uint32(rr.Address)+uint32(rr.Quantity)-1 > 0xffff {
		return exceptionReply(req, modbus.ExIllegalDataAddress)
	}

	var values []uint16
	if isHolding {
		values, err = s.handler.HandleHoldingRegisters(&HoldingRegistersRequest{
			ClientAddr: clientAddr,
			UnitID:     req.UnitID,
			Addr:       rr.Address,
			Quantity:   rr.Quantity,
		})
	} else {
		values, err = s.handler.HandleInputRegisters(&InputRegistersRequest{
			ClientAddr: clientAddr,
			UnitID:     req.UnitID,
			Addr:       rr.Address,
			Quantity:   rr.Quantity,
		})
	}
	if err != nil {
		return exceptionReply(req, asException(err))
	}
	if len(values) != int(rr.Quantity) {
		s.logger.Errorf("handler returned %v registers, expected %v", len(values), rr.Quantity)
		return exceptionReply(req, modbus.ExServerDeviceFailure)
	}

	body, err := (&modbus.RegistersResponse{Values: values}).Encode()
	if err != nil {
		return exceptionReply(req, modbus.ExServerDeviceFailure)
	}
	return reply(req, body)
}

func (s *Server) handleWriteSingleCoil(clientAddr string, req *modbus.Message) *modbus.Message {
	w, err := modbus.DecodeWriteSingleCoil(req.Body)
	if err != nil {
		return exceptionReply(req, modbus.ExServerDeviceFailure)
	}

	_, err = s.handler.HandleCoils(&CoilsRequest{
		ClientAddr: clientAddr,
		UnitID:     req.UnitID,
		Addr:       w.Address,
		Quantity:   1,
		IsWrite:    true,
		Args:       []bool{w.Value},
	})
	if err != nil {
		return exceptionReply(req, asException(err))
	}

	return reply(req, w.Encode())
}

func (s *Server) handleWriteSingleRegister(clientAddr string, req *modbus.Message) *modbus.Message {
	w, err := modbus.DecodeWriteSingleRegister(req.Body)
	if err != nil {
		return exceptionReply(req, modbus.ExServerDeviceFailure)
	}

	_, err = s.handler.HandleHoldingRegisters(&HoldingRegistersRequest{
		ClientAddr: clientAddr,
		UnitID:     req.UnitID,
		Addr:       w.Address,
		Quantity:   1,
		IsWrite:    true,
		Args:       []uint16{w.Value},
	})
	if err != nil {
		return exceptionReply(req, asException(err))
	}

	return reply(req, w.Encode())
}

func (s *Server) handleWriteMultipleCoils(clientAddr string, req *modbus.Message) *modbus.Message {
	w, err := modbus.DecodeWriteMultipleCoilsRequest(req.Body)
	if err != nil {
		return exceptionReply(req, modbus.ExServerDeviceFailure)
	}
	if len(w.Values) == 0 || len(w.Values) > modbus.WriteMultipleCoilsMaxLength {
		return exceptionReply(req, modbus.ExIllegalDataValue)
	}
	if uint32(w.Address)+uint32(len(w.Values))-1 > 0xffff {
		return exceptionReply(req, modbus.ExIllegalDataAddress)
	}

	_, err = s.handler.HandleCoils(&CoilsRequest{
		ClientAddr: clientAddr,
		UnitID:     req.UnitID,
		Addr:       w.Address,
		Quantity:   uint16(len(w.Values)),
		IsWrite:    true,
		Args:       w.Values,
	})
	if err != nil {
		return exceptionReply(req, asException(err))
	}

	resp := &modbus.WriteMultipleResponse{Address: w.Address, Quantity: uint16(len(w.Values))}
	return reply(req, resp.Encode())
}

func (s *Server) handleWriteMultipleRegisters(clientAddr string, req *modbus.Message) *modbus.Message {
	w, err := modbus.DecodeWriteMultipleRegistersRequest(req.Body)
	if err != nil {
		return exceptionReply(req, modbus.ExServerDeviceFailure)
	}
	if len(w.Values) == 0 || len(w.Values) > modbus.WriteMultipleRegistersMaxLength {
		return exceptionReply(req, modbus.ExIllegalDataValue)
	}
	if uint32(w.Address)+uint32(len(w.Values))-1 > 0xffff {
		return exceptionReply(req, modbus.ExIllegalDataAddress)
	}

	_, err = s.handler.HandleHoldingRegisters(&HoldingRegistersRequest{
		ClientAddr: clientAddr,
		UnitID:     req.UnitID,
		Addr:       w.Address,
		Quantity:   uint16(len(w.Values)),
		IsWrite:    true,
		Args:       w.Values,
	})
	if err != nil {
		return exceptionReply(req, asException(err))
	}

	resp := &modbus.WriteMultipleResponse{Address: w.Address, Quantity: uint16(len(w.Values))}
	return reply(req, resp.Encode())
}

// handleMaskWriteRegister reads the current register through the same
// HandleHoldingRegisters hook a plain read uses, applies the mask
// arithmetic itself, and writes the result back through the same hook a
// plain write uses: the handler never sees mask semantics directly.
func (s *Server) handleMaskWriteRegister(clientAddr string, req *modbus.Message) *modbus.Message {
	m, err := modbus.DecodeMaskWriteRegister(req.Body)
	if err != nil {
		return exceptionReply(req, modbus.ExServerDeviceFailure)
	}

	current, err := s.handler.HandleHoldingRegisters(&HoldingRegistersRequest{
		ClientAddr: clientAddr,
		UnitID:     req.UnitID,
		Addr:       m.Address,
		Quantity:   1,
	})
	if err != nil {
		return exceptionReply(req, asException(err))
	}
	if len(current) != 1 {
		s.logger.Errorf("handler returned %v registers reading for mask write, expected 1", len(current))
		return exceptionReply(req, modbus.ExServerDeviceFailure)
	}

	newValue := m.ApplyMask(current[0])

	_, err = s.handler.HandleHoldingRegisters(&HoldingRegistersRequest{
		ClientAddr: clientAddr,
		UnitID:     req.UnitID,
		Addr:       m.Address,
		Quantity:   1,
		IsWrite:    true,
		Args:       []uint16{newValue},
	})
	if err != nil {
		return exceptionReply(req, asException(err))
	}

	return reply(req, m.Encode())
}

func (s *Server) handleMEI(clientAddr string, req *modbus.Message) *modbus.Message {
	mei, err := modbus.DecodeMEIRequest(req.Body)
	if err != nil {
		return exceptionReply(req, modbus.ExServerDeviceFailure)
	}

	if mei.Type != modbus.MEITypeReadDeviceIdentification {
		data, err := s.handler.HandleMEI(&MEIRequestCtx{
			ClientAddr: clientAddr,
			UnitID:     req.UnitID,
			Type:       mei.Type,
			Data:       mei.Data,
		})
		if err != nil {
			return exceptionReply(req, asException(err))
		}
		resp := &modbus.MEIResponse{Type: mei.Type, Data: data}
		return reply(req, resp.Encode())
	}

	return s.handleReadDeviceIdentification(clientAddr, req, mei)
}
