package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestAESKWRoundtrip(t *testing.T) {
	kek := make([]byte, 32)
	for i := range kek {
		kek[i] = byte(i * 3)
	}
	for _, size := range []int{16, 32, 64} {
		key := bytes.Repeat([]byte{0x5A}, size)
		wrapped, err := AESKeyWrapRFC3394(kek, key)
		if err != nil {
			t.Fatalf("wrap %d bytes: %v", size, err)
		}
		if len(wrapped) != size+8 {
			t.Fatalf("wrapped length = %d, want %d", len(wrapped), size+8)
		}
		got, err := AESKeyUnwrapRFC3394(kek, wrapped)
		if err != nil {
			t.Fatalf("unwrap %d bytes: %v", size, err)
		}
		if !bytes.Equal(got, key) {
			t.Fatalf("unwrap of %d-byte key did not restore the plaintext", size)
		}
	}
}

// TestAESKWKnownAnswer pins the implementation to the RFC 3394 §4.3 test
// vector (128 bits of key data under a 256-bit KEK).
func TestAESKWKnownAnswer(t *testing.T) {
	kek, _ := hex.DecodeString("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	keyData, _ := hex.DecodeString("00112233445566778899aabbccddeeff")
	want, _ := hex.DecodeString("64e8c3f9ce0f5ba263e9777905818a2a93c8191e7d6e8ae7")

	wrapped, err := AESKeyWrapRFC3394(kek, keyData)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(wrapped, want) {
		t.Fatalf("wrap = %x, want %x", wrapped, want)
	}
	plain, err := AESKeyUnwrapRFC3394(kek, wrapped)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(plain, keyData) {
		t.Fatalf("unwrap = %x, want %x", plain, keyData)
	}
}

func TestAESKWRejectsBadKEKLength(t *testing.T) {
	_, err := AESKeyWrapRFC3394(bytes.Repeat([]byte{0x11}, 16), bytes.Repeat([]byte{0x22}, 32))
	if err == nil {
		t.Fatal("expected an error for a 16-byte kek")
	}
}

func TestAESKWUnwrapDetectsTampering(t *testing.T) {
	kek := bytes.Repeat([]byte{0x11}, 32)
	keyIn := bytes.Repeat([]byte{0x22}, 32)
	wrapped, err := AESKeyWrapRFC3394(kek, keyIn)
	if err != nil {
		t.Fatal(err)
	}
	wrapped[0] ^= 0xFF
	if _, err := AESKeyUnwrapRFC3394(kek, wrapped); err == nil {
		t.Fatal("expected integrity check to fail on tampered input")
	}
}
