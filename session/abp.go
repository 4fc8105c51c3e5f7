package session

import (
	"time"

	"github.com/lora-edge/macd"
)

// InstallABP installs a Session directly from pre-shared ABP credentials,
// bypassing the OTAA join procedure. This mirrors how network-server-side
// implementations treat ABP and OTAA devices uniformly once a Session
// record exists: everything downstream (codec, maccommand, scheduler)
// only ever looks at Session, never at how it came to exist.
func InstallABP(devAddr lorawan.DevAddr, nwkSKey, appSKey lorawan.AES128Key, region string, enabledChannels []int) Session {
	return Session{
		DevAddr:         devAddr,
		NwkSKey:         nwkSKey,
		AppSKey:         appSKey,
		Region:          region,
		FCntUp:          0,
		NFCntDown:       0,
		AFCntDown:       0,
		EnabledChannels: enabledChannels,
		NbTrans:         1,
		JoinedAt:        time.Now(),
	}
}
