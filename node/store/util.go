package store

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

func putUint64LE(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }
func getUint64LE(b []byte) uint64    { return binary.LittleEndian.Uint64(b) }

func hex32(b32 [32]byte) string { return hex.EncodeToString(b32[:]) }

func parseHex32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("parseHex32: %w", err)
	}
	if len(b) != 32 {
		return out, fmt.Errorf("parseHex32: expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
