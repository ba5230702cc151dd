package consensus

import "testing"

func TestCalcCoinbaseTable(t *testing.T) {
	cases := []struct {
		blockSize, median uint64
		want              uint64
	}{
		{10_000, 80, 200_000_000_000},
		{10_001, 80, 200_000_000_000},
		{10_081, 80, 195_031_250_000},
		{28_912, 10_000, 2_367_488_000},
		{183_928, 100_000, 13_594_983_000},
		{10_160, 80, 0},
	}
	for _, c := range cases {
		got := CalcCoinbase(c.blockSize, c.median)
		if got != c.want {
			t.Errorf("CalcCoinbase(%d, %d) = %d, want %d", c.blockSize, c.median, got, c.want)
		}
	}
}

func TestBlockSizeExceedsCeiling(t *testing.T) {
	cases := []struct {
		size, median uint64
		want         bool
	}{
		{20_000, 1, false},
		{20_001, 1, true},
		{19_000, 1, false},
		{40_000, 20_000, false},
		{40_001, 20_000, true},
	}
	for _, c := range cases {
		got := BlockSizeExceedsCeiling(c.size, c.median)
		if got != c.want {
			t.Errorf("BlockSizeExceedsCeiling(%d, %d) = %v, want %v", c.size, c.median, got, c.want)
		}
	}
}

func TestTxnFeeFloorScalesWithSize(t *testing.T) {
	small := &Txn{Sender: KeyAddress([32]byte{1}), Receivers: []Receiver{{Addr: KeyAddress([32]byte{2}), Amount: 1}}}
	big := &Txn{Sender: NameAddress("a-much-longer-sender-name-than-any-key-address"), Receivers: []Receiver{{Addr: KeyAddress([32]byte{2}), Amount: 1}}}

	if TxnFeeFloor(big) <= TxnFeeFloor(small) {
		t.Fatalf("expected larger-encoded txn to have a higher fee floor")
	}
	if TxnFeeFloor(small) != uint64(TxnSize(small))*TxnFeePerByte {
		t.Fatalf("fee floor does not match size * TxnFeePerByte")
	}
}

func TestRenameFeeFloorScalesWithSize(t *testing.T) {
	op := &RenameOp{PK: [32]byte{1}, NewName: "short"}
	if RenameFeeFloor(op) != uint64(RenameSize(op))*RenameFeePerByte {
		t.Fatalf("fee floor does not match size * RenameFeePerByte")
	}
}
