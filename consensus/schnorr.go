package consensus

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// ParseXOnlyPubKey validates that k is a valid x-only secp256k1 curve
// point, returning the decompressed point on success.
func ParseXOnlyPubKey(k [32]byte) (*btcec.PublicKey, error) {
	return schnorr.ParsePubKey(k[:])
}

// IsValidXOnlyPubKey reports whether k decodes to a point on the curve.
func IsValidXOnlyPubKey(k [32]byte) bool {
	_, err := ParseXOnlyPubKey(k)
	return err == nil
}

// VerifySchnorr verifies a BIP340 Schnorr signature over messageHash using
// the x-only public key pubkeyXOnly. Any parse or verification failure
// (bad point, malformed signature, mismatched digest) returns false.
func VerifySchnorr(pubkeyXOnly [32]byte, messageHash [32]byte, sig [64]byte) bool {
	pk, err := schnorr.ParsePubKey(pubkeyXOnly[:])
	if err != nil {
		return false
	}
	s, err := schnorr.ParseSignature(sig[:])
	if err != nil {
		return false
	}
	return s.Verify(messageHash[:], pk)
}

// Keypair is the caller-supplied signing material used for offline signing
// of outgoing transactions and rename operations; it never appears in any
// consensus-critical encoding.
type Keypair struct {
	priv *btcec.PrivateKey
}

// GenerateKeypair produces a new secp256k1 signing key.
func GenerateKeypair() (*Keypair, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return &Keypair{priv: priv}, nil
}

// KeypairFromBytes reconstructs a Keypair from a 32-byte scalar.
func KeypairFromBytes(sk [32]byte) *Keypair {
	priv, _ := btcec.PrivKeyFromBytes(sk[:])
	return &Keypair{priv: priv}
}

// Bytes returns the 32-byte scalar backing k, for callers that need to
// persist or wrap it (see cmd/ledger-keymgr's keystore).
func (k *Keypair) Bytes() [32]byte {
	var out [32]byte
	b := k.priv.Serialize()
	copy(out[:], b)
	return out
}

// XOnlyPubKey returns the 32-byte x-only public key for k.
func (k *Keypair) XOnlyPubKey() [32]byte {
	var out [32]byte
	pub := k.priv.PubKey()
	copy(out[:], schnorr.SerializePubKey(pub))
	return out
}

// Sign produces a BIP340 Schnorr signature over messageHash.
func (k *Keypair) Sign(messageHash [32]byte) ([64]byte, error) {
	var out [64]byte
	sig, err := schnorr.Sign(k.priv, messageHash[:])
	if err != nil {
		return out, err
	}
	copy(out[:], sig.Serialize())
	return out, nil
}
