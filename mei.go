package modbus

// MEIRequest is the request body for the MEI function code (43): a
// sub-function type byte followed by an opaque remainder specific to that
// sub-function.
type MEIRequest struct {
	Type uint8
	Data []byte
}

// Encode writes Type then Data verbatim.
func (m *MEIRequest) Encode() []byte {
	e := NewEncoder()
	e.WriteU8(m.Type)
	e.WriteBytes(m.Data)
	return e.Bytes()
}

// DecodeMEIRequest decodes an MEIRequest body.
func DecodeMEIRequest(body []byte) (*MEIRequest, error) {
	d := NewDecoder(body)
	typ, err := d.ReadU8()
	if err != nil {
		return nil, err
	}
	return &MEIRequest{Type: typ, Data: d.ReadRemainder()}, nil
}

// MEIResponse mirrors MEIRequest for the reply direction.
type MEIResponse struct {
	Type uint8
	Data []byte
}

// Encode writes Type then Data verbatim.
func (m *MEIResponse) Encode() []byte {
	e := NewEncoder()
	e.WriteU8(m.Type)
	e.WriteBytes(m.Data)
	return e.Bytes()
}

// DecodeMEIResponse decodes an MEIResponse body.
func DecodeMEIResponse(body []byte) (*MEIResponse, error) {
	d := NewDecoder(body)
	typ, err := d.ReadU8()
	if err != nil {
		return nil, err
	}
	return &MEIResponse{Type: typ, Data: d.ReadRemainder()}, nil
}

// ReadDeviceIdentificationRequest is the MEI sub-function 0x0e request
// payload.
type ReadDeviceIdentificationRequest struct {
	DeviceIDCode DeviceIDCode
	ObjectID     uint8
}

// Encode writes device_id_code then object_id.
func (r *ReadDeviceIdentificationRequest) Encode() []byte {
	e := NewEncoder()
	e.WriteU8(uint8(r.DeviceIDCode))
	e.WriteU8(r.ObjectID)
	return e.Bytes()
}

// DecodeReadDeviceIdentificationRequest decodes the MEI sub-function data
// bytes into a ReadDeviceIdentificationRequest.
func DecodeReadDeviceIdentificationRequest(data []byte) (*ReadDeviceIdentificationRequest, error) {
	d := NewDecoder(data)

	code, err := d.ReadU8()
	if err != nil {
		return nil, err
	}
	objectID, err := d.ReadU8()
	if err != nil {
		return nil, err
	}
	if d.Remaining() != 0 {
		return nil, errInvalidData("trailing bytes in read device identification request")
	}

	return &ReadDeviceIdentificationRequest{
		DeviceIDCode: DeviceIDCode(code),
		ObjectID:     objectID,
	}, nil
}

// deviceObject is one id/payload pair as it appears on the wire, kept in
// encounter order so paging responses preserve id ordering.
type deviceObject struct {
	ID      uint8
	Payload []byte
}

// ReadDeviceIdentificationResponse is the MEI sub-function 0x0e response
// payload: a page of the device identification object set.
type ReadDeviceIdentificationResponse struct {
	DeviceIDCode    DeviceIDCode
	ConformityLevel ConformityLevel
	MoreFollows     bool
	NextObjectID    uint8
	Objects         []deviceObject
}

// AddObject appends an object to the page in wire order.
func (r *ReadDeviceIdentificationResponse) AddObject(id uint8, payload []byte) {
	r.Objects = append(r.Objects, deviceObject{ID: id, Payload: payload})
}

// Encode writes device_id_code, conformity_level, more_follows,
// next_object_id, object_count, then each object as id/len/payload.
func (r *ReadDeviceIdentificationResponse) Encode() ([]byte, error) {
	e := NewEncoder()
	e.WriteU8(uint8(r.DeviceIDCode))
	e.WriteU8(uint8(r.ConformityLevel))
	if r.MoreFollows {
		e.WriteU8(0xff)
	} else {
		e.WriteU8(0x00)
	}
	e.WriteU8(r.NextObjectID)
	if err := e.WriteByteLen(len(r.Objects)); err != nil {
		return nil, err
	}

	for _, obj := range r.Objects {
		e.WriteU8(obj.ID)
		if err := e.WriteByteLen(len(obj.Payload)); err != nil {
			return nil, err
		}
		e.WriteBytes(obj.Payload)
	}

	return e.Bytes(), nil
}

// DecodeReadDeviceIdentificationResponse decodes the MEI sub-function data
// bytes into a ReadDeviceIdentificationResponse.
func DecodeReadDeviceIdentificationResponse(data []byte) (*ReadDeviceIdentificationResponse, error) {
	d := NewDecoder(data)

	code, err := d.ReadU8()
	if err != nil {
		return nil, err
	}
	conformity, err := d.ReadU8()
	if err != nil {
		return nil, err
	}
	moreFollowsByte, err := d.ReadU8()
	if err != nil {
		return nil, err
	}
	if moreFollowsByte != 0x00 && moreFollowsByte != 0xff {
		return nil, errInvalidData("more_follows is neither 0x00 nor 0xff")
	}
	nextObjectID, err := d.ReadU8()
	if err != nil {
		return nil, err
	}
	objectCount, err := d.ReadU8()
	if err != nil {
		return nil, err
	}

	resp := &ReadDeviceIdentificationResponse{
		DeviceIDCode:    DeviceIDCode(code),
		ConformityLevel: ConformityLevel(conformity),
		MoreFollows:     moreFollowsByte == 0xff,
		NextObjectID:    nextObjectID,
	}

	for i := 0; i < int(objectCount); i++ {
		id, err := d.ReadU8()
		if err != nil {
			return nil, err
		}
		length, err := d.ReadU8()
		if err != nil {
			return nil, err
		}
		payload, err := d.ReadBytes(int(length))
		if err != nil {
			return nil, err
		}
		resp.AddObject(id, append([]byte(nil), payload...))
	}

	if d.Remaining() != 0 {
		return nil, errInvalidData("trailing bytes in read device identification response")
	}

	return resp, nil
}

// MaxObjectID returns the highest object id a streaming device id code
// covers: 0x02 for Basic, 0x7f for Regular, 0xff for Extended. Individual
// has no range (callers request exactly one id) and is rejected here.
func MaxObjectID(code DeviceIDCode) (uint8, bool) {
	switch code {
	case DeviceIDBasic:
		return 0x02, true
	case DeviceIDRegular:
		return 0x7f, true
	case DeviceIDExtended:
		return 0xff, true
	default:
		return 0, false
	}
}

// DeviceIdentification is the logical, merged view of a device's
// identification object set (§3), populated by stitching together every
// page of a Read Device Identification exchange.
type DeviceIdentification struct {
	// Mandatory: always present, possibly empty.
	VendorName         string
	ProductCode        string
	MajorMinorRevision string

	// Optional: nil if the device does not expose them.
	VendorURL           *string
	ProductName         *string
	ModelName           *string
	UserApplicationName *string

	// Objects holds every id not covered by the named fields above,
	// i.e. ids 7 and up (vendor-private).
	Objects map[uint8][]byte
}

// NewDeviceIdentification returns an empty view with an initialised
// Objects map.
func NewDeviceIdentification() *DeviceIdentification {
	return &DeviceIdentification{Objects: make(map[uint8][]byte)}
}

// Set records the payload for id, routing well-known ids 0-6 to their
// named field and anything else into Objects.
func (di *DeviceIdentification) Set(id uint8, payload []byte) {
	s := string(payload)
	switch id {
	case ObjVendorName:
		di.VendorName = s
	case ObjProductCode:
		di.ProductCode = s
	case ObjMajorMinorRevision:
		di.MajorMinorRevision = s
	case ObjVendorURL:
		di.VendorURL = &s
	case ObjProductName:
		di.ProductName = &s
	case ObjModelName:
		di.ModelName = &s
	case ObjUserApplicationName:
		di.UserApplicationName = &s
	default:
		if di.Objects == nil {
			di.Objects = make(map[uint8][]byte)
		}
		di.Objects[id] = payload
	}
}

// Get returns the byte representation of id and whether it is present.
// Ids 0-2 are always present (possibly empty); ids 3-6 are present iff the
// corresponding optional field is non-nil; ids 7+ are looked up in
// Objects.
func (di *DeviceIdentification) Get(id uint8) ([]byte, bool) {
	switch id {
	case ObjVendorName:
		return []byte(di.VendorName), true
	case ObjProductCode:
		return []byte(di.ProductCode), true
	case ObjMajorMinorRevision:
		return []byte(di.MajorMinorRevision), true
	case ObjVendorURL:
		if di.VendorURL == nil {
			return nil, false
		}
		return []byte(*di.VendorURL), true
	case ObjProductName:
		if di.ProductName == nil {
			return nil, false
		}
		return []byte(*di.ProductName), true
	case ObjModelName:
		if di.ModelName == nil {
			return nil, false
		}
		return []byte(*di.ModelName), true
	case ObjUserApplicationName:
		if di.UserApplicationName == nil {
			return nil, false
		}
		return []byte(*di.UserApplicationName), true
	default:
		payload, ok := di.Objects[id]
		return payload, ok
	}
}
