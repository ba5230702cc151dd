package store

import (
	"encoding/binary"
	"fmt"

	"github.com/handlechain/ledgercore/consensus"
)

// encodeUndoRecord serializes a consensus.UndoRecord for the undo bucket.
// Layout: displaced_time u64le | displaced_block_size u64le |
// previous_header 80 | txn_count u32le | txns | name_undo_count u32le |
// name_undos, where each name undo is has_owner u8 | owner[32] (zeroed
// when absent) | name_len u8 | name | fee u64le.
func encodeUndoRecord(u consensus.UndoRecord) ([]byte, error) {
	if len(u.Txns) > 0xffffffff || len(u.NameUndos) > 0xffffffff {
		return nil, fmt.Errorf("undo: too many items")
	}

	out := make([]byte, 0, 8+8+consensus.HeaderSize+4+4)
	var tmp8 [8]byte
	binary.LittleEndian.PutUint64(tmp8[:], u.DisplacedTime)
	out = append(out, tmp8[:]...)
	binary.LittleEndian.PutUint64(tmp8[:], u.DisplacedBlockSize)
	out = append(out, tmp8[:]...)
	out = append(out, consensus.EncodeHeader(u.PreviousHeader)...)

	var tmp4 [4]byte
	binary.LittleEndian.PutUint32(tmp4[:], uint32(len(u.Txns)))
	out = append(out, tmp4[:]...)
	for i := range u.Txns {
		out = append(out, consensus.EncodeTxn(&u.Txns[i])...)
	}

	binary.LittleEndian.PutUint32(tmp4[:], uint32(len(u.NameUndos)))
	out = append(out, tmp4[:]...)
	for _, nu := range u.NameUndos {
		if len(nu.Name) > consensus.MaxNameLength {
			return nil, fmt.Errorf("undo: name too long")
		}
		if nu.OldOwner != nil {
			out = append(out, 1)
			out = append(out, nu.OldOwner[:]...)
		} else {
			out = append(out, 0)
			out = append(out, make([]byte, 32)...)
		}
		out = append(out, byte(len(nu.Name)))
		out = append(out, nu.Name...)
		binary.LittleEndian.PutUint64(tmp8[:], nu.Fee)
		out = append(out, tmp8[:]...)
	}

	return out, nil
}

func decodeUndoRecord(b []byte) (*consensus.UndoRecord, error) {
	if len(b) < 8+8+consensus.HeaderSize+4 {
		return nil, fmt.Errorf("undo: truncated")
	}
	off := 0
	u := &consensus.UndoRecord{}

	u.DisplacedTime = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	u.DisplacedBlockSize = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8

	header, err := consensus.DecodeHeader(b[off : off+consensus.HeaderSize])
	if err != nil {
		return nil, fmt.Errorf("undo: previous header: %w", err)
	}
	u.PreviousHeader = header
	off += consensus.HeaderSize

	readU32 := func() (uint32, error) {
		if len(b) < off+4 {
			return 0, fmt.Errorf("undo: truncated count")
		}
		v := binary.LittleEndian.Uint32(b[off : off+4])
		off += 4
		return v, nil
	}

	txnCount, err := readU32()
	if err != nil {
		return nil, err
	}
	u.Txns = make([]consensus.Txn, 0, txnCount)
	for i := uint32(0); i < txnCount; i++ {
		t, n, err := consensus.DecodeTxn(b[off:])
		if err != nil {
			return nil, fmt.Errorf("undo: txn %d: %w", i, err)
		}
		off += n
		u.Txns = append(u.Txns, t)
	}

	nameUndoCount, err := readU32()
	if err != nil {
		return nil, err
	}
	u.NameUndos = make([]consensus.NameUndo, 0, nameUndoCount)
	for i := uint32(0); i < nameUndoCount; i++ {
		if len(b) < off+1+32+1 {
			return nil, fmt.Errorf("undo: name undo %d truncated", i)
		}
		hasOwner := b[off] == 1
		off++
		var owner [32]byte
		copy(owner[:], b[off:off+32])
		off += 32
		nameLen := int(b[off])
		off++
		if len(b) < off+nameLen+8 {
			return nil, fmt.Errorf("undo: name undo %d name/fee truncated", i)
		}
		name := string(b[off : off+nameLen])
		off += nameLen
		fee := binary.LittleEndian.Uint64(b[off : off+8])
		off += 8

		nu := consensus.NameUndo{Name: name, Fee: fee}
		if hasOwner {
			o := owner
			nu.OldOwner = &o
		}
		u.NameUndos = append(u.NameUndos, nu)
	}

	if off != len(b) {
		return nil, fmt.Errorf("undo: trailing bytes")
	}
	return u, nil
}
