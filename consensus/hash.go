package consensus

import "crypto/sha256"

// Hash is the single SHA-256 entry point used everywhere a digest is
// needed, so the algorithm can be swapped in one place.
func Hash(b []byte) [32]byte {
	return sha256.Sum256(b)
}

// HeaderHash is SHA-256(EncodeHeader(h)).
func HeaderHash(h Header) [32]byte {
	return Hash(EncodeHeader(h))
}
