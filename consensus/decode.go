package consensus

import (
	"encoding/binary"
	"fmt"
)

// DecodeHeader parses the canonical 80-byte header encoding produced by
// EncodeHeader. It is the inverse used by external storage to reload a
// persisted header.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) != HeaderSize {
		return Header{}, fmt.Errorf("consensus: header must be %d bytes, got %d", HeaderSize, len(b))
	}
	var h Header
	copy(h.PrevBlockHash[:], b[0:32])
	copy(h.MerkleRoot[:], b[32:64])
	h.Time = binary.LittleEndian.Uint64(b[64:72])
	h.Nonce = binary.LittleEndian.Uint64(b[72:80])
	return h, nil
}

// decodeAddress parses one EncodeAddress-encoded value from the front of
// b, returning the Address and the number of bytes consumed.
func decodeAddress(b []byte) (Address, int, error) {
	if len(b) < 1 {
		return Address{}, 0, fmt.Errorf("consensus: truncated address tag")
	}
	switch AddressTag(b[0]) {
	case AddressKey:
		if len(b) < 33 {
			return Address{}, 0, fmt.Errorf("consensus: truncated key address")
		}
		var k [32]byte
		copy(k[:], b[1:33])
		return KeyAddress(k), 33, nil
	case AddressName:
		if len(b) < 2 {
			return Address{}, 0, fmt.Errorf("consensus: truncated name address length")
		}
		n := int(b[1])
		if len(b) < 2+n {
			return Address{}, 0, fmt.Errorf("consensus: truncated name address bytes")
		}
		return NameAddress(string(b[2 : 2+n])), 2 + n, nil
	default:
		return Address{}, 0, fmt.Errorf("consensus: unrecognized address tag 0x%02x", b[0])
	}
}

// DecodeTxn parses one EncodeTxn-encoded value from the front of b,
// returning the Txn and the number of bytes consumed.
func DecodeTxn(b []byte) (Txn, int, error) {
	var t Txn
	off := 0

	sender, n, err := decodeAddress(b[off:])
	if err != nil {
		return Txn{}, 0, fmt.Errorf("consensus: txn sender: %w", err)
	}
	t.Sender = sender
	off += n

	if len(b) < off+1 {
		return Txn{}, 0, fmt.Errorf("consensus: truncated receiver count")
	}
	count := int(b[off])
	off++

	t.Receivers = make([]Receiver, 0, count)
	for i := 0; i < count; i++ {
		addr, n, err := decodeAddress(b[off:])
		if err != nil {
			return Txn{}, 0, fmt.Errorf("consensus: txn receiver %d: %w", i, err)
		}
		off += n
		if len(b) < off+8 {
			return Txn{}, 0, fmt.Errorf("consensus: truncated receiver amount")
		}
		amount := binary.LittleEndian.Uint64(b[off : off+8])
		off += 8
		t.Receivers = append(t.Receivers, Receiver{Addr: addr, Amount: amount})
	}

	if len(b) < off+64+8 {
		return Txn{}, 0, fmt.Errorf("consensus: truncated txn signature/fee")
	}
	copy(t.Signature[:], b[off:off+64])
	off += 64
	t.Fee = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8

	return t, off, nil
}

// DecodeRename parses one EncodeRename-encoded value from the front of b,
// returning the RenameOp and the number of bytes consumed.
func DecodeRename(b []byte) (RenameOp, int, error) {
	var op RenameOp
	if len(b) < 32+64+1 {
		return RenameOp{}, 0, fmt.Errorf("consensus: truncated rename header")
	}
	off := 0
	copy(op.PK[:], b[off:off+32])
	off += 32
	copy(op.Sig[:], b[off:off+64])
	off += 64
	nameLen := int(b[off])
	off++
	if len(b) < off+nameLen+8 {
		return RenameOp{}, 0, fmt.Errorf("consensus: truncated rename name/fee")
	}
	op.NewName = string(b[off : off+nameLen])
	off += nameLen
	op.Fee = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	return op, off, nil
}
