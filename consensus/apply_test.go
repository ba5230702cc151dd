package consensus

import (
	"reflect"
	"testing"
)

func TestApplyThenRevertRestoresState(t *testing.T) {
	block, state, _ := buildGenesisAndBlock(t)

	if err := ValidateBlock(block, state); err != nil {
		t.Fatalf("precondition: block must validate, got: %v", err)
	}

	before := snapshotState(state)

	undo := ApplyBlock(block, state)
	if reflect.DeepEqual(snapshotState(state), before) {
		t.Fatalf("ApplyBlock left state unchanged; the test fixture is not exercising a mutation")
	}

	RevertBlock(undo, state)
	after := snapshotState(state)

	if !reflect.DeepEqual(before, after) {
		t.Fatalf("revert(apply(block, state)) != state\nbefore: %+v\nafter:  %+v", before, after)
	}
}

func TestApplyCreditsCoinbaseAndSpendsSender(t *testing.T) {
	block, state, kp := buildGenesisAndBlock(t)
	pub := kp.XOnlyPubKey()
	startingBalance := state.Accounts[pub]

	if err := ValidateBlock(block, state); err != nil {
		t.Fatalf("block must validate: %v", err)
	}
	ApplyBlock(block, state)

	spendTxn := &block.Txns[1]
	wantBalance := startingBalance - mustSpendOf(spendTxn) + block.Txns[0].Receivers[0].Amount
	if state.Accounts[pub] != wantBalance {
		t.Fatalf("sender/coinbase-recipient balance = %d, want %d", state.Accounts[pub], wantBalance)
	}

	zeroKeyBalance := state.Accounts[[32]byte{}]
	if zeroKeyBalance != spendTxn.Receivers[0].Amount {
		t.Fatalf("receiver balance = %d, want %d", zeroKeyBalance, spendTxn.Receivers[0].Amount)
	}

	if state.Height != 1 {
		t.Fatalf("height = %d, want 1", state.Height)
	}
	if state.PreviousHeader != block.Header {
		t.Fatalf("previous_header was not updated to the applied block's header")
	}
}

func TestApplyRemovesZeroBalanceAccounts(t *testing.T) {
	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	pub := kp.XOnlyPubKey()

	state := NewChainState(maxDifficulty, Header{Time: 1000})
	state.Names["GitMonke"] = pub
	state.Accounts[pub] = 0 // set precisely below after computing the fee

	spend := Txn{
		Sender:    NameAddress("GitMonke"),
		Receivers: []Receiver{{Addr: KeyAddress([32]byte{1}), Amount: 0}},
	}
	if err := FinalizeTxn(&spend, kp); err != nil {
		t.Fatalf("FinalizeTxn: %v", err)
	}
	state.Accounts[pub] = spend.Fee // exactly enough to pay the fee, nothing more

	coinbase := Txn{
		Sender:    KeyAddress([32]byte{}),
		Receivers: []Receiver{{Addr: NameAddress("GitMonke"), Amount: 0}},
	}
	block := &Block{Txns: []Txn{coinbase, spend}}
	blockSize := uint64(BlockSize(block))
	median := MedianBlockSize(state.Last100BlockSizes)
	block.Txns[0].Receivers[0].Amount = CalcCoinbase(blockSize, median) + spend.Fee
	finishHeader(block, state, state.PreviousHeader.Time+1)

	if err := ValidateBlock(block, state); err != nil {
		t.Fatalf("block must validate: %v", err)
	}
	ApplyBlock(block, state)

	if _, ok := state.Accounts[pub]; ok {
		t.Fatalf("account whose balance is fully spent down to zero must be removed, found entry")
	}
}

func TestApplyAndRevertRename(t *testing.T) {
	payer, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	claimant, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	payerKey := payer.XOnlyPubKey()
	claimantKey := claimant.XOnlyPubKey()

	state := NewChainState(maxDifficulty, Header{Time: 1000})
	state.Accounts[payerKey] = 1_000_000_000_000

	credit := Txn{
		Sender:    KeyAddress(payerKey),
		Receivers: []Receiver{{Addr: KeyAddress(claimantKey), Amount: 900_000_000_000}},
	}
	if err := FinalizeTxn(&credit, payer); err != nil {
		t.Fatalf("FinalizeTxn: %v", err)
	}
	rename := RenameOp{PK: claimantKey, NewName: "freshname"}
	if err := FinalizeRename(&rename, claimant); err != nil {
		t.Fatalf("FinalizeRename: %v", err)
	}

	coinbase := Txn{
		Sender:    KeyAddress([32]byte{}),
		Receivers: []Receiver{{Addr: KeyAddress(payerKey), Amount: 0}},
	}
	block := &Block{Txns: []Txn{coinbase, credit}, NameChanges: []RenameOp{rename}}
	blockSize := uint64(BlockSize(block))
	median := MedianBlockSize(state.Last100BlockSizes)
	block.Txns[0].Receivers[0].Amount = CalcCoinbase(blockSize, median) + credit.Fee
	finishHeader(block, state, state.PreviousHeader.Time+1)

	if err := ValidateBlock(block, state); err != nil {
		t.Fatalf("block must validate: %v", err)
	}

	before := snapshotState(state)
	undo := ApplyBlock(block, state)

	if state.Names["freshname"] != claimantKey {
		t.Fatalf("rename did not take effect")
	}
	if state.Accounts[claimantKey] != 900_000_000_000-rename.Fee {
		t.Fatalf("rename fee was not debited from the new owner")
	}

	RevertBlock(undo, state)
	if _, ok := state.Names["freshname"]; ok {
		t.Fatalf("reverting a rename that created a new name must remove the name entirely")
	}
	if !reflect.DeepEqual(snapshotState(state), before) {
		t.Fatalf("revert did not restore pre-apply state")
	}
}

// snapshot is a structural copy of ChainState used to compare before/after
// application without aliasing the live maps.
type snapshot struct {
	Accounts          map[[32]byte]uint64
	Names             map[string][32]byte
	Difficulty        [32]byte
	Height            uint64
	Last720Times      [RollingTimesWindow]uint64
	Last100BlockSizes [RollingSizesWindow]uint64
	PreviousHeader    Header
}

func snapshotState(state *ChainState) snapshot {
	return snapshot{
		Accounts:          cloneAccounts(state.Accounts),
		Names:             cloneNames(state.Names),
		Difficulty:        state.Difficulty,
		Height:            state.Height,
		Last720Times:      state.Last720Times,
		Last100BlockSizes: state.Last100BlockSizes,
		PreviousHeader:    state.PreviousHeader,
	}
}
