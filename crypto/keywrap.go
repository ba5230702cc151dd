// Package crypto holds key-material handling that sits outside the
// consensus-critical path: wrapping a signing key for storage on disk.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"encoding/binary"
	"errors"
)

// rfc3394IV is the fixed initial value from RFC 3394 §2.2.3; surviving
// unwrap intact is the scheme's integrity check.
var rfc3394IV = [8]byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6}

// AESKeyWrapRFC3394 wraps plaintext key material with AES-256 in the
// RFC 3394 / NIST SP 800-38F key-wrap mode. kek must be 32 bytes; keyIn
// must be a multiple of 8 bytes in the 16..4096 range. The result is 8
// bytes longer than keyIn.
func AESKeyWrapRFC3394(kek, keyIn []byte) ([]byte, error) {
	aesBlock, err := kwCipher(kek)
	if err != nil {
		return nil, err
	}
	if len(keyIn) < 16 || len(keyIn) > 4096 || len(keyIn)%8 != 0 {
		return nil, errors.New("keywrap: keyIn must be 16..4096 bytes and a multiple of 8")
	}

	// Single working buffer laid out A || R1 || ... || Rn, so the wrapped
	// output is the buffer itself once the rounds finish.
	blocks := len(keyIn) / 8
	buf := make([]byte, 8+len(keyIn))
	copy(buf[:8], rfc3394IV[:])
	copy(buf[8:], keyIn)

	var scratch [16]byte
	for round := 0; round < 6; round++ {
		for i := 1; i <= blocks; i++ {
			copy(scratch[:8], buf[:8])
			copy(scratch[8:], buf[i*8:i*8+8])
			aesBlock.Encrypt(scratch[:], scratch[:])

			counter := uint64(round*blocks + i)
			binary.BigEndian.PutUint64(buf[:8], binary.BigEndian.Uint64(scratch[:8])^counter)
			copy(buf[i*8:i*8+8], scratch[8:])
		}
	}
	return buf, nil
}

// AESKeyUnwrapRFC3394 inverts AESKeyWrapRFC3394, returning the plaintext
// key material. kek must be 32 bytes; wrapped must be a multiple of 8
// bytes in the 24..4104 range. Fails if the recovered initial value does
// not match, which covers both a wrong kek and tampered ciphertext.
func AESKeyUnwrapRFC3394(kek, wrapped []byte) ([]byte, error) {
	aesBlock, err := kwCipher(kek)
	if err != nil {
		return nil, err
	}
	if len(wrapped) < 24 || len(wrapped) > 4104 || len(wrapped)%8 != 0 {
		return nil, errors.New("keywrap: wrapped must be 24..4104 bytes and a multiple of 8")
	}

	blocks := len(wrapped)/8 - 1
	buf := make([]byte, len(wrapped))
	copy(buf, wrapped)

	var scratch [16]byte
	for round := 5; round >= 0; round-- {
		for i := blocks; i >= 1; i-- {
			counter := uint64(round*blocks + i)
			binary.BigEndian.PutUint64(scratch[:8], binary.BigEndian.Uint64(buf[:8])^counter)
			copy(scratch[8:], buf[i*8:i*8+8])
			aesBlock.Decrypt(scratch[:], scratch[:])

			copy(buf[:8], scratch[:8])
			copy(buf[i*8:i*8+8], scratch[8:])
		}
	}

	if subtle.ConstantTimeCompare(buf[:8], rfc3394IV[:]) != 1 {
		return nil, errors.New("keywrap: integrity check failed")
	}
	return buf[8:], nil
}

func kwCipher(kek []byte) (cipher.Block, error) {
	if len(kek) != 32 {
		return nil, errors.New("keywrap: kek must be 32 bytes (AES-256)")
	}
	return aes.NewCipher(kek)
}
