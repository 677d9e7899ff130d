package mbclient

import (
	"context"

	"github.com/fieldbus-go/modbus"
)

// maxDeviceIDPages bounds the Read Device Identification paging loop so a
// misbehaving peer that never clears more_follows cannot hang the caller
// forever.
const maxDeviceIDPages = 255

// ReadDeviceIdentification drives the Read Device Identification MEI
// sub-protocol (function code 43, sub-function 14) to completion, paging
// with device_id_code Extended starting at object id 0 until the peer
// clears more_follows, and merges every page's objects into one
// modbus.DeviceIdentification.
func (c *Client) ReadDeviceIdentification(ctx context.Context) (*modbus.DeviceIdentification, error) {
	di := modbus.NewDeviceIdentification()

	var nextObjectID uint8
	for page := 0; ; page++ {
		if page >= maxDeviceIDPages {
			return nil, &InvalidResponseError{Reason: "device identification paging exceeded the iteration bound"}
		}

		req := &modbus.ReadDeviceIdentificationRequest{
			DeviceIDCode: modbus.DeviceIDExtended,
			ObjectID:     nextObjectID,
		}
		meiReq := &modbus.MEIRequest{Type: modbus.MEITypeReadDeviceIdentification, Data: req.Encode()}

		res, err := c.sendRequest(ctx, c.currentUnitID(), modbus.FuncMEI, meiReq.Encode())
		if err != nil {
			return nil, err
		}

		meiRes, err := modbus.DecodeMEIResponse(res.Body)
		if err != nil {
			return nil, &InvalidResponseError{Reason: err.Error()}
		}
		if meiRes.Type != modbus.MEITypeReadDeviceIdentification {
			return nil, &InvalidResponseError{Reason: "MEI response type does not match the device identification request"}
		}

		pageRes, err := modbus.DecodeReadDeviceIdentificationResponse(meiRes.Data)
		if err != nil {
			return nil, &InvalidResponseError{Reason: err.Error()}
		}

		for _, obj := range pageRes.Objects {
			di.Set(obj.ID, obj.Payload)
		}

		if !pageRes.MoreFollows {
			break
		}
		nextObjectID = pageRes.NextObjectID
	}

	return di, nil
}
