package main

import (
	"encoding/hex"
	"fmt"

	"github.com/handlechain/ledgercore/consensus"
)

// The JSON DTOs below mirror the consensus package's domain types with
// hex-encoded fixed-size fields, for the JSON request/response wire format
// this tool speaks on stdin/stdout.

type AddressJSON struct {
	Key  string `json:"key,omitempty"`
	Name string `json:"name,omitempty"`
}

func (a AddressJSON) toDomain() (consensus.Address, error) {
	if a.Name != "" {
		if len(a.Name) > consensus.MaxNameLength {
			return consensus.Address{}, fmt.Errorf("address name exceeds %d bytes", consensus.MaxNameLength)
		}
		return consensus.NameAddress(a.Name), nil
	}
	key, err := decodeKey32(a.Key)
	if err != nil {
		return consensus.Address{}, fmt.Errorf("address key: %w", err)
	}
	return consensus.KeyAddress(key), nil
}

func addressFromDomain(a consensus.Address) AddressJSON {
	if a.Tag == consensus.AddressName {
		return AddressJSON{Name: a.Name}
	}
	return AddressJSON{Key: hex.EncodeToString(a.Key[:])}
}

type ReceiverJSON struct {
	Addr   AddressJSON `json:"addr"`
	Amount uint64      `json:"amount"`
}

type TxnJSON struct {
	Sender    AddressJSON    `json:"sender"`
	Receivers []ReceiverJSON `json:"receivers"`
	Signature string         `json:"signature,omitempty"`
	Fee       uint64         `json:"fee"`
}

func (t TxnJSON) toDomain() (consensus.Txn, error) {
	sender, err := t.Sender.toDomain()
	if err != nil {
		return consensus.Txn{}, err
	}
	receivers := make([]consensus.Receiver, 0, len(t.Receivers))
	for i, r := range t.Receivers {
		addr, err := r.Addr.toDomain()
		if err != nil {
			return consensus.Txn{}, fmt.Errorf("receiver[%d]: %w", i, err)
		}
		receivers = append(receivers, consensus.Receiver{Addr: addr, Amount: r.Amount})
	}
	var sig [64]byte
	if t.Signature != "" {
		s, err := decodeSig64(t.Signature)
		if err != nil {
			return consensus.Txn{}, fmt.Errorf("signature: %w", err)
		}
		sig = s
	}
	return consensus.Txn{Sender: sender, Receivers: receivers, Signature: sig, Fee: t.Fee}, nil
}

func txnFromDomain(t *consensus.Txn) TxnJSON {
	receivers := make([]ReceiverJSON, 0, len(t.Receivers))
	for _, r := range t.Receivers {
		receivers = append(receivers, ReceiverJSON{Addr: addressFromDomain(r.Addr), Amount: r.Amount})
	}
	return TxnJSON{
		Sender:    addressFromDomain(t.Sender),
		Receivers: receivers,
		Signature: hex.EncodeToString(t.Signature[:]),
		Fee:       t.Fee,
	}
}

type RenameJSON struct {
	PK      string `json:"pk"`
	Sig     string `json:"sig,omitempty"`
	NewName string `json:"new_name"`
	Fee     uint64 `json:"fee"`
}

func (r RenameJSON) toDomain() (consensus.RenameOp, error) {
	if len(r.NewName) > consensus.MaxNameLength {
		return consensus.RenameOp{}, fmt.Errorf("new_name exceeds %d bytes", consensus.MaxNameLength)
	}
	pk, err := decodeKey32(r.PK)
	if err != nil {
		return consensus.RenameOp{}, fmt.Errorf("pk: %w", err)
	}
	var sig [64]byte
	if r.Sig != "" {
		s, err := decodeSig64(r.Sig)
		if err != nil {
			return consensus.RenameOp{}, fmt.Errorf("sig: %w", err)
		}
		sig = s
	}
	return consensus.RenameOp{PK: pk, Sig: sig, NewName: r.NewName, Fee: r.Fee}, nil
}

func renameFromDomain(op *consensus.RenameOp) RenameJSON {
	return RenameJSON{
		PK:      hex.EncodeToString(op.PK[:]),
		Sig:     hex.EncodeToString(op.Sig[:]),
		NewName: op.NewName,
		Fee:     op.Fee,
	}
}

type HeaderJSON struct {
	PrevBlockHash string `json:"prev_block_hash"`
	MerkleRoot    string `json:"merkle_root"`
	Time          uint64 `json:"time"`
	Nonce         uint64 `json:"nonce"`
}

func (h HeaderJSON) toDomain() (consensus.Header, error) {
	prev, err := decodeKey32(h.PrevBlockHash)
	if err != nil {
		return consensus.Header{}, fmt.Errorf("prev_block_hash: %w", err)
	}
	root, err := decodeKey32(h.MerkleRoot)
	if err != nil {
		return consensus.Header{}, fmt.Errorf("merkle_root: %w", err)
	}
	return consensus.Header{PrevBlockHash: prev, MerkleRoot: root, Time: h.Time, Nonce: h.Nonce}, nil
}

func headerFromDomain(h consensus.Header) HeaderJSON {
	return HeaderJSON{
		PrevBlockHash: hex.EncodeToString(h.PrevBlockHash[:]),
		MerkleRoot:    hex.EncodeToString(h.MerkleRoot[:]),
		Time:          h.Time,
		Nonce:         h.Nonce,
	}
}

type BlockJSON struct {
	Header      HeaderJSON   `json:"header"`
	Txns        []TxnJSON    `json:"txns"`
	NameChanges []RenameJSON `json:"name_changes,omitempty"`
}

func (b BlockJSON) toDomain() (consensus.Block, error) {
	header, err := b.Header.toDomain()
	if err != nil {
		return consensus.Block{}, err
	}
	txns := make([]consensus.Txn, 0, len(b.Txns))
	for i, tj := range b.Txns {
		t, err := tj.toDomain()
		if err != nil {
			return consensus.Block{}, fmt.Errorf("txns[%d]: %w", i, err)
		}
		txns = append(txns, t)
	}
	renames := make([]consensus.RenameOp, 0, len(b.NameChanges))
	for i, rj := range b.NameChanges {
		op, err := rj.toDomain()
		if err != nil {
			return consensus.Block{}, fmt.Errorf("name_changes[%d]: %w", i, err)
		}
		renames = append(renames, op)
	}
	return consensus.Block{Header: header, Txns: txns, NameChanges: renames}, nil
}

type AccountJSON struct {
	Key     string `json:"key"`
	Balance uint64 `json:"balance"`
}

type NameEntryJSON struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

type ChainStateJSON struct {
	Accounts          []AccountJSON   `json:"accounts"`
	Names             []NameEntryJSON `json:"names"`
	Difficulty        string          `json:"difficulty"`
	Height            uint64          `json:"height"`
	Last720Times      []uint64        `json:"last_720_times"`
	Last100BlockSizes []uint64        `json:"last_100_block_sizes"`
	PreviousHeader    HeaderJSON      `json:"previous_header"`
}

func (s ChainStateJSON) toDomain() (*consensus.ChainState, error) {
	difficulty, err := decodeKey32(s.Difficulty)
	if err != nil {
		return nil, fmt.Errorf("difficulty: %w", err)
	}
	prevHeader, err := s.PreviousHeader.toDomain()
	if err != nil {
		return nil, fmt.Errorf("previous_header: %w", err)
	}
	state := consensus.NewChainState(difficulty, prevHeader)
	state.Height = s.Height

	for i, a := range s.Accounts {
		key, err := decodeKey32(a.Key)
		if err != nil {
			return nil, fmt.Errorf("accounts[%d]: %w", i, err)
		}
		state.Accounts[key] = a.Balance
	}
	for i, n := range s.Names {
		key, err := decodeKey32(n.Key)
		if err != nil {
			return nil, fmt.Errorf("names[%d]: %w", i, err)
		}
		state.Names[n.Name] = key
	}
	if err := copyWindow(state.Last720Times[:], s.Last720Times); err != nil {
		return nil, fmt.Errorf("last_720_times: %w", err)
	}
	if err := copyWindow(state.Last100BlockSizes[:], s.Last100BlockSizes); err != nil {
		return nil, fmt.Errorf("last_100_block_sizes: %w", err)
	}
	return state, nil
}

func copyWindow(dst []uint64, src []uint64) error {
	if len(src) == 0 {
		return nil
	}
	if len(src) != len(dst) {
		return fmt.Errorf("expected %d elements, got %d", len(dst), len(src))
	}
	copy(dst, src)
	return nil
}

func chainStateFromDomain(s *consensus.ChainState) ChainStateJSON {
	accounts := make([]AccountJSON, 0, len(s.Accounts))
	for k, bal := range s.Accounts {
		accounts = append(accounts, AccountJSON{Key: hex.EncodeToString(k[:]), Balance: bal})
	}
	names := make([]NameEntryJSON, 0, len(s.Names))
	for name, k := range s.Names {
		names = append(names, NameEntryJSON{Name: name, Key: hex.EncodeToString(k[:])})
	}
	return ChainStateJSON{
		Accounts:          accounts,
		Names:             names,
		Difficulty:        hex.EncodeToString(s.Difficulty[:]),
		Height:            s.Height,
		Last720Times:      append([]uint64(nil), s.Last720Times[:]...),
		Last100BlockSizes: append([]uint64(nil), s.Last100BlockSizes[:]...),
		PreviousHeader:    headerFromDomain(s.PreviousHeader),
	}
}

type NameUndoJSON struct {
	OldOwner string `json:"old_owner,omitempty"`
	Name     string `json:"name"`
	Fee      uint64 `json:"fee"`
}

type UndoJSON struct {
	DisplacedTime      uint64         `json:"displaced_time"`
	DisplacedBlockSize uint64         `json:"displaced_block_size"`
	PreviousHeader     HeaderJSON     `json:"previous_header"`
	Txns               []TxnJSON      `json:"txns"`
	NameUndos          []NameUndoJSON `json:"name_undos"`
}

func undoFromDomain(u *consensus.UndoRecord) UndoJSON {
	txns := make([]TxnJSON, 0, len(u.Txns))
	for i := range u.Txns {
		txns = append(txns, txnFromDomain(&u.Txns[i]))
	}
	nameUndos := make([]NameUndoJSON, 0, len(u.NameUndos))
	for _, nu := range u.NameUndos {
		nj := NameUndoJSON{Name: nu.Name, Fee: nu.Fee}
		if nu.OldOwner != nil {
			nj.OldOwner = hex.EncodeToString(nu.OldOwner[:])
		}
		nameUndos = append(nameUndos, nj)
	}
	return UndoJSON{
		DisplacedTime:      u.DisplacedTime,
		DisplacedBlockSize: u.DisplacedBlockSize,
		PreviousHeader:     headerFromDomain(u.PreviousHeader),
		Txns:               txns,
		NameUndos:          nameUndos,
	}
}

func (u UndoJSON) toDomain() (*consensus.UndoRecord, error) {
	prevHeader, err := u.PreviousHeader.toDomain()
	if err != nil {
		return nil, fmt.Errorf("previous_header: %w", err)
	}
	txns := make([]consensus.Txn, 0, len(u.Txns))
	for i, tj := range u.Txns {
		t, err := tj.toDomain()
		if err != nil {
			return nil, fmt.Errorf("txns[%d]: %w", i, err)
		}
		txns = append(txns, t)
	}
	nameUndos := make([]consensus.NameUndo, 0, len(u.NameUndos))
	for i, nj := range u.NameUndos {
		var oldOwner *[32]byte
		if nj.OldOwner != "" {
			k, err := decodeKey32(nj.OldOwner)
			if err != nil {
				return nil, fmt.Errorf("name_undos[%d].old_owner: %w", i, err)
			}
			oldOwner = &k
		}
		nameUndos = append(nameUndos, consensus.NameUndo{OldOwner: oldOwner, Name: nj.Name, Fee: nj.Fee})
	}
	return &consensus.UndoRecord{
		DisplacedTime:      u.DisplacedTime,
		DisplacedBlockSize: u.DisplacedBlockSize,
		PreviousHeader:     prevHeader,
		Txns:               txns,
		NameUndos:          nameUndos,
	}, nil
}

func decodeKey32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

func decodeSig64(s string) ([64]byte, error) {
	var out [64]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != 64 {
		return out, fmt.Errorf("expected 64 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
