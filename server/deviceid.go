package mbserver

import "github.com/fieldbus-go/modbus"

// frameBudget is the total MBAP frame size (§8 concrete scenario 6) a
// Read Device Identification page must fit within.
const frameBudget = modbus.MsgMaxLength

// starterOverhead is MBAP(8) + MEI type byte(1) + the fixed RDI response
// header(5: device_id_code, conformity_level, more_follows, next_object_id,
// object_count) + one object header(2: id, len) for the requested object
// itself.
const starterOverhead = 8 + 1 + 5 + 2

// perObjectOverhead is the id/len header each subsequent object adds.
const perObjectOverhead = 2

func (s *Server) handleReadDeviceIdentification(clientAddr string, req *modbus.Message, mei *modbus.MEIRequest) *modbus.Message {
	rdiReq, err := modbus.DecodeReadDeviceIdentificationRequest(mei.Data)
	if err != nil {
		return exceptionReply(req, modbus.ExServerDeviceFailure)
	}

	maxObjectID, ok := modbus.MaxObjectID(rdiReq.DeviceIDCode)
	if rdiReq.DeviceIDCode != modbus.DeviceIDIndividual && !ok {
		return exceptionReply(req, modbus.ExIllegalDataValue)
	}

	di, err := s.handler.HandleDeviceIdentification(&DeviceIdentificationRequest{
		ClientAddr:   clientAddr,
		UnitID:       req.UnitID,
		DeviceIDCode: rdiReq.DeviceIDCode,
		ObjectID:     rdiReq.ObjectID,
	})
	if err != nil {
		return exceptionReply(req, asException(err))
	}

	first, ok := di.Get(rdiReq.ObjectID)
	if !ok {
		return exceptionReply(req, modbus.ExIllegalDataAddress)
	}

	page := &modbus.ReadDeviceIdentificationResponse{
		DeviceIDCode:    rdiReq.DeviceIDCode,
		ConformityLevel: modbus.ConformityExtendedStreamAndIndividual,
	}
	page.AddObject(rdiReq.ObjectID, first)

	if rdiReq.DeviceIDCode == modbus.DeviceIDIndividual {
		page.MoreFollows = false
		page.NextObjectID = 0
	} else {
		budget := starterOverhead + len(first)
		if budget > frameBudget {
			return exceptionReply(req, modbus.ExIllegalDataValue)
		}

		nextObjectID := uint8(0)
		for id := int(rdiReq.ObjectID) + 1; id <= int(maxObjectID); id++ {
			payload, present := di.Get(uint8(id))
			if !present {
				continue
			}
			budget += perObjectOverhead + len(payload)
			if budget > frameBudget {
				nextObjectID = uint8(id)
				break
			}
			page.AddObject(uint8(id), payload)
		}

		page.NextObjectID = nextObjectID
		page.MoreFollows = nextObjectID != 0
	}

	body, err := page.Encode()
	if err != nil {
		return exceptionReply(req, modbus.ExServerDeviceFailure)
	}

	resp := &modbus.MEIResponse{Type: modbus.MEITypeReadDeviceIdentification, Data: body}
	return reply(req, resp.Encode())
}
