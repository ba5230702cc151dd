package store

import (
	"encoding/binary"
	"fmt"

	"github.com/handlechain/ledgercore/consensus"
)

// encodeBlock frames a Block for on-disk storage: the consensus package
// deliberately has no Block-level encoder (the txn/rename counts exist
// only in its size accounting), so storage owns its own framing:
// header || txn_count_u32le || txns || rename_count_u32le || renames,
// each component using the canonical consensus codec.
func encodeBlock(b *consensus.Block) []byte {
	out := make([]byte, 0, consensus.HeaderSize+8+consensus.BlockSize(b))
	out = append(out, consensus.EncodeHeader(b.Header)...)

	var tmp4 [4]byte
	binary.LittleEndian.PutUint32(tmp4[:], uint32(len(b.Txns)))
	out = append(out, tmp4[:]...)
	for i := range b.Txns {
		out = append(out, consensus.EncodeTxn(&b.Txns[i])...)
	}

	binary.LittleEndian.PutUint32(tmp4[:], uint32(len(b.NameChanges)))
	out = append(out, tmp4[:]...)
	for i := range b.NameChanges {
		out = append(out, consensus.EncodeRename(&b.NameChanges[i])...)
	}
	return out
}

func decodeBlock(b []byte) (*consensus.Block, error) {
	if len(b) < consensus.HeaderSize+4 {
		return nil, fmt.Errorf("block: truncated header")
	}
	off := 0
	header, err := consensus.DecodeHeader(b[off : off+consensus.HeaderSize])
	if err != nil {
		return nil, fmt.Errorf("block: header: %w", err)
	}
	off += consensus.HeaderSize

	readU32 := func() (uint32, error) {
		if len(b) < off+4 {
			return 0, fmt.Errorf("block: truncated count")
		}
		v := binary.LittleEndian.Uint32(b[off : off+4])
		off += 4
		return v, nil
	}

	txnCount, err := readU32()
	if err != nil {
		return nil, err
	}
	txns := make([]consensus.Txn, 0, txnCount)
	for i := uint32(0); i < txnCount; i++ {
		t, n, err := consensus.DecodeTxn(b[off:])
		if err != nil {
			return nil, fmt.Errorf("block: txn %d: %w", i, err)
		}
		off += n
		txns = append(txns, t)
	}

	renameCount, err := readU32()
	if err != nil {
		return nil, err
	}
	renames := make([]consensus.RenameOp, 0, renameCount)
	for i := uint32(0); i < renameCount; i++ {
		op, n, err := consensus.DecodeRename(b[off:])
		if err != nil {
			return nil, fmt.Errorf("block: rename %d: %w", i, err)
		}
		off += n
		renames = append(renames, op)
	}

	if off != len(b) {
		return nil, fmt.Errorf("block: trailing bytes")
	}
	return &consensus.Block{Header: header, Txns: txns, NameChanges: renames}, nil
}
