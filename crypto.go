package lorawan

import (
	"crypto/aes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// encryptFRMPayload implements the LoRaWAN FRMPayload cipher: a CTR-mode
// stream built from AES-128 encrypting a sequence of Ai blocks and XOR-ing
// them with the payload. It is its own inverse. dir is 0 for uplink, 1 for
// downlink, matching the B0 convention used for the MIC (mic.go).
func encryptFRMPayload(key AES128Key, dir byte, devAddr DevAddr, fCntFull uint32, data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errors.Wrap(err, "lorawan: new cipher")
	}

	addr, err := devAddr.MarshalBinary()
	if err != nil {
		return nil, err
	}

	a := make([]byte, 16)
	a[0] = 0x01
	a[5] = dir
	for i := 0; i < 4; i++ {
		a[6+i] = addr[3-i]
	}
	binary.LittleEndian.PutUint32(a[10:14], fCntFull)

	s := make([]byte, 16)
	nBlocks := (len(out) + 15) / 16
	for i := 0; i < nBlocks; i++ {
		a[15] = byte(i + 1)
		block.Encrypt(s, a)

		offset := i * 16
		end := offset + 16
		if end > len(out) {
			end = len(out)
		}
		for j := offset; j < end; j++ {
			out[j] ^= s[j-offset]
		}
	}

	return out, nil
}

// encryptJoinAccept encrypts a join-accept MACPayload; decryptJoinAccept
// is its inverse. The network encrypts with the AppKey/NwkKey using AES
// decrypt (not encrypt) so that an end-device can recover the plaintext
// with a single AES-encrypt pass; this is the standard LoRaWAN inversion.
func encryptJoinAccept(key AES128Key, data []byte) ([]byte, error) {
	if len(data)%16 != 0 {
		return nil, errors.New("lorawan: join-accept plaintext must be a multiple of 16 bytes")
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errors.Wrap(err, "lorawan: new cipher")
	}

	out := make([]byte, len(data))
	for i := 0; i < len(data)/16; i++ {
		offset := i * 16
		block.Decrypt(out[offset:offset+16], data[offset:offset+16])
	}
	return out, nil
}

// decryptJoinAccept recovers the plaintext join-accept MACPayload+MIC that
// the network encrypted with encryptJoinAccept.
func decryptJoinAccept(key AES128Key, data []byte) ([]byte, error) {
	if len(data)%16 != 0 {
		return nil, errors.New("lorawan: join-accept ciphertext must be a multiple of 16 bytes")
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errors.Wrap(err, "lorawan: new cipher")
	}

	out := make([]byte, len(data))
	for i := 0; i < len(data)/16; i++ {
		offset := i * 16
		block.Encrypt(out[offset:offset+16], data[offset:offset+16])
	}
	return out, nil
}
