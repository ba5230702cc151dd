package consensus

import "fmt"

// addU64 adds a and b, reporting an error instead of silently wrapping on
// overflow.
func addU64(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, fmt.Errorf("u64 addition overflow")
	}
	return sum, nil
}

// spendOf computes a transaction's total debit: receiver amounts plus fee.
func spendOf(t *Txn) (uint64, error) {
	total := t.Fee
	for _, r := range t.Receivers {
		var err error
		total, err = addU64(total, r.Amount)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// mustSpendOf is spendOf for contexts (Apply/Revert) operating on an
// already-validated block, where overflow is a programmer error.
func mustSpendOf(t *Txn) uint64 {
	v, err := spendOf(t)
	if err != nil {
		panic(err)
	}
	return v
}
