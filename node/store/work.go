package store

import (
	"fmt"
	"math/big"
)

// WorkFromTarget converts a 32-byte difficulty target into the expected
// number of hash attempts a header meeting it represents,
// floor(2^256 / target). This is the quantity summed into each block's
// cumulative chainwork for fork comparison. The target is read as an
// unsigned big-endian integer; an all-zero target has no defined work.
func WorkFromTarget(target [32]byte) (*big.Int, error) {
	denom := new(big.Int).SetBytes(target[:])
	if denom.Sign() == 0 {
		return nil, fmt.Errorf("work: zero target has no defined work")
	}
	numer := new(big.Int).Lsh(big.NewInt(1), 256)
	return numer.Quo(numer, denom), nil
}
