package consensus

import "testing"

func TestPushNewestTimeAndOldestInverse(t *testing.T) {
	state := NewChainState([32]byte{}, Header{})
	for i := uint64(1); i <= RollingTimesWindow; i++ {
		PushNewestTime(state, i)
	}
	if state.Last720Times[RollingTimesWindow-1] != RollingTimesWindow {
		t.Fatalf("newest value not at top index")
	}
	if state.Last720Times[0] != 1 {
		t.Fatalf("oldest retained value not at index 0")
	}

	displaced := PushNewestTime(state, 1000)
	if displaced != 1 {
		t.Fatalf("expected displaced value 1, got %d", displaced)
	}

	PushOldestTime(state, displaced)
	if state.Last720Times[0] != 1 {
		t.Fatalf("push_oldest did not restore displaced value at index 0")
	}
	if state.Last720Times[RollingTimesWindow-1] != RollingTimesWindow-1+1 {
		t.Fatalf("push_oldest did not shift window back correctly")
	}
}

func TestPushNewestBlockSizeRoundTrip(t *testing.T) {
	state := NewChainState([32]byte{}, Header{})
	var before [RollingSizesWindow]uint64
	for i := range before {
		before[i] = uint64(i)
	}
	state.Last100BlockSizes = before

	displaced := PushNewestBlockSize(state, 999)
	PushOldestBlockSize(state, displaced)

	if state.Last100BlockSizes != before {
		t.Fatalf("push_newest followed by push_oldest did not restore window")
	}
}

func TestMedianBlockSizeIsUpperMiddle(t *testing.T) {
	var window [RollingSizesWindow]uint64
	for i := range window {
		window[i] = uint64(i)
	}
	if got := MedianBlockSize(window); got != 50 {
		t.Fatalf("MedianBlockSize = %d, want 50", got)
	}

	for i := range window {
		window[i] = 7
	}
	if got := MedianBlockSize(window); got != 7 {
		t.Fatalf("MedianBlockSize of constant window = %d, want 7", got)
	}
}
