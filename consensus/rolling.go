package consensus

import "sort"

// pushNewest shifts every element one slot toward index 0, losing
// window[0], writes v at the top index, and returns the displaced value.
func pushNewest(window []uint64, v uint64) uint64 {
	displaced := window[0]
	copy(window, window[1:])
	window[len(window)-1] = v
	return displaced
}

// pushOldest is the inverse of pushNewest: shifts every element one slot
// toward the top, losing window[top], and writes v at index 0.
func pushOldest(window []uint64, v uint64) {
	copy(window[1:], window)
	window[0] = v
}

// PushNewestTime records the newest block time, returning the time it
// displaced.
func PushNewestTime(state *ChainState, t uint64) uint64 {
	return pushNewest(state.Last720Times[:], t)
}

// PushOldestTime is the inverse of PushNewestTime, used by Revert.
func PushOldestTime(state *ChainState, t uint64) {
	pushOldest(state.Last720Times[:], t)
}

// PushNewestBlockSize records the newest block size, returning the size it
// displaced.
func PushNewestBlockSize(state *ChainState, size uint64) uint64 {
	return pushNewest(state.Last100BlockSizes[:], size)
}

// PushOldestBlockSize is the inverse of PushNewestBlockSize, used by Revert.
func PushOldestBlockSize(state *ChainState, size uint64) {
	pushOldest(state.Last100BlockSizes[:], size)
}

// MedianBlockSize returns the element at sorted index 50 of the last 100
// block sizes: the upper of the two middle values, deterministic, no
// averaging.
func MedianBlockSize(window [RollingSizesWindow]uint64) uint64 {
	sorted := make([]uint64, RollingSizesWindow)
	copy(sorted, window[:])
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[50]
}
