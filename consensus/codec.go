package consensus

import "encoding/binary"

// EncodeHeader serializes h into the canonical 80-byte header encoding:
// prev_block_hash || merkle_root || time_le8 || nonce_le8.
func EncodeHeader(h Header) []byte {
	out := make([]byte, 0, HeaderSize)
	out = append(out, h.PrevBlockHash[:]...)
	out = append(out, h.MerkleRoot[:]...)
	var tmp8 [8]byte
	binary.LittleEndian.PutUint64(tmp8[:], h.Time)
	out = append(out, tmp8[:]...)
	binary.LittleEndian.PutUint64(tmp8[:], h.Nonce)
	out = append(out, tmp8[:]...)
	return out
}

// EncodeAddress serializes a into its tagged wire form: 0x00||key[32] for a
// key address, 0x01||len_u8||utf8 for a name address. Panics if a name's
// length exceeds MaxNameLength; callers must reject that earlier.
func EncodeAddress(a Address) []byte {
	switch a.Tag {
	case AddressKey:
		out := make([]byte, 0, 33)
		out = append(out, byte(AddressKey))
		out = append(out, a.Key[:]...)
		return out
	case AddressName:
		if len(a.Name) > MaxNameLength {
			panic("consensus: name address exceeds max length")
		}
		out := make([]byte, 0, 2+len(a.Name))
		out = append(out, byte(AddressName))
		out = append(out, byte(len(a.Name)))
		out = append(out, a.Name...)
		return out
	default:
		panic("consensus: unknown address tag")
	}
}

// EncodeTxn serializes t using its actual signature bytes. This is the
// encoding committed to by the Merkle tree.
func EncodeTxn(t *Txn) []byte {
	return encodeTxn(t, t.Signature)
}

// EncodeTxnSigMessage serializes t with the signature field zeroed; this is
// the message that the sender's Schnorr signature covers.
func EncodeTxnSigMessage(t *Txn) []byte {
	return encodeTxn(t, [64]byte{})
}

func encodeTxn(t *Txn, sig [64]byte) []byte {
	out := EncodeAddress(t.Sender)
	out = append(out, byte(len(t.Receivers)))
	var tmp8 [8]byte
	for _, r := range t.Receivers {
		out = append(out, EncodeAddress(r.Addr)...)
		binary.LittleEndian.PutUint64(tmp8[:], r.Amount)
		out = append(out, tmp8[:]...)
	}
	out = append(out, sig[:]...)
	binary.LittleEndian.PutUint64(tmp8[:], t.Fee)
	out = append(out, tmp8[:]...)
	return out
}

// EncodeRename serializes op using its actual signature bytes.
func EncodeRename(op *RenameOp) []byte {
	return encodeRename(op, op.Sig)
}

// EncodeRenameSigMessage serializes op with Sig zeroed; this is the message
// the signer's Schnorr signature covers.
func EncodeRenameSigMessage(op *RenameOp) []byte {
	return encodeRename(op, [64]byte{})
}

func encodeRename(op *RenameOp, sig [64]byte) []byte {
	if len(op.NewName) > MaxNameLength {
		panic("consensus: rename name exceeds max length")
	}
	out := make([]byte, 0, 32+64+1+len(op.NewName)+8)
	out = append(out, op.PK[:]...)
	out = append(out, sig[:]...)
	out = append(out, byte(len(op.NewName)))
	out = append(out, op.NewName...)
	var tmp8 [8]byte
	binary.LittleEndian.PutUint64(tmp8[:], op.Fee)
	out = append(out, tmp8[:]...)
	return out
}

// TxnSize returns len(EncodeTxn(t)); signature and fee are fixed-width so
// this is independent of their actual values.
func TxnSize(t *Txn) int { return len(EncodeTxn(t)) }

// RenameSize returns len(EncodeRename(op)).
func RenameSize(op *RenameOp) int { return len(EncodeRename(op)) }

// BlockSize computes the on-wire framed size: the header plus two 4-byte
// counts (modeling wire framing, never themselves emitted by an encoder)
// plus every encoded txn and rename.
func BlockSize(b *Block) int {
	n := HeaderSize + 4
	for i := range b.Txns {
		n += TxnSize(&b.Txns[i])
	}
	n += 4
	for i := range b.NameChanges {
		n += RenameSize(&b.NameChanges[i])
	}
	return n
}
