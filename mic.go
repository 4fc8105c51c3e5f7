package lorawan

import (
	"encoding/binary"

	"github.com/jacobsa/crypto/cmac"
	"github.com/pkg/errors"
)

// computeJoinMIC computes the MIC of a join-request or (plaintext)
// join-accept: CMAC(key, MHDR || MACPayload)[0:4].
func computeJoinMIC(mhdr MHDR, macPayload []byte, key AES128Key) (MIC, error) {
	var mic MIC

	hash, err := cmac.New(key[:])
	if err != nil {
		return mic, errors.Wrap(err, "lorawan: init cmac")
	}
	if _, err := hash.Write(append([]byte{byte(mhdr)}, macPayload...)); err != nil {
		return mic, errors.Wrap(err, "lorawan: write cmac")
	}

	sum := hash.Sum(nil)
	if len(sum) < 4 {
		return mic, errors.New("lorawan: cmac returned less than 4 bytes")
	}
	copy(mic[:], sum[0:4])
	return mic, nil
}

// computeDataMIC computes the MIC of a 1.0.4 data frame using the classic
// B0-block construction: CMAC(NwkSKey, B0 || MHDR || MACPayload)[0:4].
// dir is 0 for uplink, 1 for downlink.
func computeDataMIC(mhdr MHDR, macPayload []byte, devAddr DevAddr, fCntFull uint32, dir byte, nwkSKey AES128Key) (MIC, error) {
	var mic MIC

	msg := append([]byte{byte(mhdr)}, macPayload...)

	b0 := make([]byte, 16)
	b0[0] = 0x49
	b0[5] = dir

	addr, err := devAddr.MarshalBinary()
	if err != nil {
		return mic, err
	}
	for i := 0; i < 4; i++ {
		b0[6+i] = addr[3-i]
	}

	binary.LittleEndian.PutUint32(b0[10:14], fCntFull)
	b0[15] = byte(len(msg))

	hash, err := cmac.New(nwkSKey[:])
	if err != nil {
		return mic, errors.Wrap(err, "lorawan: init cmac")
	}
	if _, err := hash.Write(b0); err != nil {
		return mic, errors.Wrap(err, "lorawan: write cmac b0")
	}
	if _, err := hash.Write(msg); err != nil {
		return mic, errors.Wrap(err, "lorawan: write cmac msg")
	}

	sum := hash.Sum(nil)
	if len(sum) < 4 {
		return mic, errors.New("lorawan: cmac returned less than 4 bytes")
	}
	copy(mic[:], sum[0:4])
	return mic, nil
}
