// Package consensus implements the ledger validation and state-transition
// core for an account-model, proof-of-work chain with a human-readable
// naming layer: canonical encoding, block/transaction validation, coinbase
// economics, and reversible state application.
package consensus

const (
	HeaderSize = 80

	DefaultCoinbase  uint64 = 200_000_000_000
	TxnFeePerByte    uint64 = 400_000
	RenameFeePerByte uint64 = 100_000_000

	RollingTimesWindow = 720
	RollingSizesWindow = 100

	MaxNameLength         = 255
	BlockSizeHardFloor    = 20_000
	CoinbaseFreeAllowance = 10_000
)

// Header is the 80-byte block header committed to by the header hash and
// the proof-of-work check.
type Header struct {
	PrevBlockHash [32]byte
	MerkleRoot    [32]byte
	Time          uint64
	Nonce         uint64
}

// AddressTag discriminates the two Address variants on the wire.
type AddressTag byte

const (
	AddressKey  AddressTag = 0x00
	AddressName AddressTag = 0x01
)

// Address is a tagged union: either a raw x-only key, or a human-readable
// name that must be resolved through ChainState.Names before use.
type Address struct {
	Tag  AddressTag
	Key  [32]byte
	Name string
}

// KeyAddress builds a key-variant Address.
func KeyAddress(k [32]byte) Address {
	return Address{Tag: AddressKey, Key: k}
}

// NameAddress builds a name-variant Address.
func NameAddress(name string) Address {
	return Address{Tag: AddressName, Name: name}
}

// Receiver pairs a destination Address with the amount it is credited.
type Receiver struct {
	Addr   Address
	Amount uint64
}

// Txn is an ordinary (non-coinbase) or coinbase transaction. The signature
// covers the encoding with Signature zeroed; see EncodeTxnSigMessage.
type Txn struct {
	Sender    Address
	Receivers []Receiver
	Signature [64]byte
	Fee       uint64
}

// RenameOp atomically transfers ownership of a human-readable name to PK,
// paid for by the incoming owner. Sig covers the encoding with Sig zeroed;
// see EncodeRenameSigMessage.
type RenameOp struct {
	PK      [32]byte
	Sig     [64]byte
	NewName string
	Fee     uint64
}

// Block is a candidate unit of the chain. Txns[0] is always the coinbase.
type Block struct {
	Header      Header
	Txns        []Txn
	NameChanges []RenameOp
}

// ChainState is the rolling, mutable view of the ledger that Validate reads
// and Apply/Revert mutate. Accounts never holds a zero-balance entry.
type ChainState struct {
	Accounts          map[[32]byte]uint64
	Names             map[string][32]byte
	Difficulty        [32]byte
	Height            uint64
	Last720Times      [RollingTimesWindow]uint64
	Last100BlockSizes [RollingSizesWindow]uint64
	PreviousHeader    Header
}

// NewChainState returns a zero-value, genesis-ready ChainState: empty
// accounts/names, fully-zeroed rolling windows (satisfying the "always
// full" invariant), height 0.
func NewChainState(difficulty [32]byte, previousHeader Header) *ChainState {
	return &ChainState{
		Accounts:       make(map[[32]byte]uint64),
		Names:          make(map[string][32]byte),
		Difficulty:     difficulty,
		PreviousHeader: previousHeader,
	}
}

// NameUndo records enough information to reverse one RenameOp: the name's
// prior owner (nil if the name was newly created by this op).
type NameUndo struct {
	OldOwner *[32]byte
	Name     string
	Fee      uint64
}

// UndoRecord is everything Revert needs to exactly invert one Apply call.
type UndoRecord struct {
	DisplacedTime      uint64
	DisplacedBlockSize uint64
	PreviousHeader     Header
	Txns               []Txn
	NameUndos          []NameUndo
}
