package band

import "errors"

// ErrChannelDoesNotExist is returned when a LinkADRReq channel-mask
// references a channel index outside of the region's uplink channel plan.
var ErrChannelDoesNotExist = errors.New("lorawan/band: channel does not exist")
