package lorawan

import (
	"crypto/aes"

	"github.com/pkg/errors"
)

// SessionKeys holds the symmetric keys derived from a successful OTAA join.
// For LoRaWAN 1.0.x, FNwkSIntKey == SNwkSIntKey == NwkSEncKey == NwkSKey, so
// a single NwkSKey field covers all three 1.1 roles.
type SessionKeys struct {
	NwkSKey AES128Key
	AppSKey AES128Key
}

// DeriveSessionKeys1_0 derives the 1.0.x session keys from the NwkKey
// (== AppKey for 1.0 compatibility, spec.md §3) and the join transaction
// parameters, grounded on the teacher's join-server KDF:
//
//	NwkSKey = aes128_encrypt(NwkKey, 0x01 | JoinNonce | NetID | DevNonce | pad16)
//	AppSKey = aes128_encrypt(NwkKey, 0x02 | JoinNonce | NetID | DevNonce | pad16)
func DeriveSessionKeys1_0(nwkKey AES128Key, netID NetID, joinNonce JoinNonce, devNonce DevNonce) (SessionKeys, error) {
	var keys SessionKeys

	nwkSKey, err := deriveKey(nwkKey, 0x01, netID, joinNonce, devNonce)
	if err != nil {
		return keys, errors.Wrap(err, "lorawan: derive NwkSKey")
	}
	appSKey, err := deriveKey(nwkKey, 0x02, netID, joinNonce, devNonce)
	if err != nil {
		return keys, errors.Wrap(err, "lorawan: derive AppSKey")
	}

	keys.NwkSKey = nwkSKey
	keys.AppSKey = appSKey
	return keys, nil
}

func deriveKey(nwkKey AES128Key, typ byte, netID NetID, joinNonce JoinNonce, devNonce DevNonce) (AES128Key, error) {
	var key AES128Key

	b := make([]byte, 16)
	b[0] = typ

	jn, err := joinNonce.MarshalBinary()
	if err != nil {
		return key, err
	}
	copy(b[1:4], jn)

	nid, err := netID.MarshalBinary()
	if err != nil {
		return key, err
	}
	copy(b[4:7], nid)

	dn, err := devNonce.MarshalBinary()
	if err != nil {
		return key, err
	}
	copy(b[7:9], dn)
	// b[9:16] stays zero padding

	block, err := aes.NewCipher(nwkKey[:])
	if err != nil {
		return key, err
	}
	block.Encrypt(key[:], b)
	return key, nil
}
