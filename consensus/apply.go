package consensus

// ApplyBlock mutates state to reflect block and returns an UndoRecord that
// RevertBlock can later use to exactly invert the mutation. The caller must
// have already confirmed ValidateBlock(block, state) == nil; ApplyBlock does
// not re-validate.
func ApplyBlock(block *Block, state *ChainState) *UndoRecord {
	undo := &UndoRecord{
		PreviousHeader: state.PreviousHeader,
		Txns:           make([]Txn, len(block.Txns)),
		NameUndos:      make([]NameUndo, 0, len(block.NameChanges)),
	}
	copy(undo.Txns, block.Txns)

	for i := 1; i < len(block.Txns); i++ {
		t := &block.Txns[i]
		senderKey := mustResolveAddress(t.Sender, state)
		debitAccount(state, senderKey, mustSpendOf(t))
		for _, r := range t.Receivers {
			key := mustResolveAddress(r.Addr, state)
			creditAccount(state, key, r.Amount)
		}
	}

	coinbase := &block.Txns[0]
	coinbaseKey := mustResolveAddress(coinbase.Receivers[0].Addr, state)
	creditAccount(state, coinbaseKey, coinbase.Receivers[0].Amount)

	for i := range block.NameChanges {
		op := &block.NameChanges[i]

		var oldOwner *[32]byte
		if prev, ok := state.Names[op.NewName]; ok {
			prevCopy := prev
			oldOwner = &prevCopy
		}
		undo.NameUndos = append(undo.NameUndos, NameUndo{
			OldOwner: oldOwner,
			Name:     op.NewName,
			Fee:      op.Fee,
		})

		debitAccount(state, op.PK, op.Fee)
		state.Names[op.NewName] = op.PK
	}

	blockSize := uint64(BlockSize(block))
	undo.DisplacedBlockSize = PushNewestBlockSize(state, blockSize)
	undo.DisplacedTime = PushNewestTime(state, block.Header.Time)

	state.PreviousHeader = block.Header
	state.Height++

	return undo
}

// RevertBlock inverts the mutation ApplyBlock(block, state) made, given the
// UndoRecord it returned. state must be exactly the post-Apply state; it is
// mutated in place back to its pre-Apply form.
func RevertBlock(undo *UndoRecord, state *ChainState) {
	state.Height--
	state.PreviousHeader = undo.PreviousHeader

	PushOldestTime(state, undo.DisplacedTime)
	PushOldestBlockSize(state, undo.DisplacedBlockSize)

	for i := len(undo.NameUndos) - 1; i >= 0; i-- {
		nu := undo.NameUndos[i]
		pk := state.Names[nu.Name]

		if nu.OldOwner == nil {
			delete(state.Names, nu.Name)
		} else {
			state.Names[nu.Name] = *nu.OldOwner
		}

		creditAccount(state, pk, nu.Fee)
	}

	coinbase := &undo.Txns[0]
	coinbaseKey := mustResolveAddress(coinbase.Receivers[0].Addr, state)
	debitAccount(state, coinbaseKey, coinbase.Receivers[0].Amount)

	for i := len(undo.Txns) - 1; i >= 1; i-- {
		t := &undo.Txns[i]
		for j := len(t.Receivers) - 1; j >= 0; j-- {
			r := t.Receivers[j]
			key := mustResolveAddress(r.Addr, state)
			debitAccount(state, key, r.Amount)
		}
		senderKey := mustResolveAddress(t.Sender, state)
		creditAccount(state, senderKey, mustSpendOf(t))
	}
}

// creditAccount adds amount to key's balance, creating the entry if
// needed. A zero-amount credit to an absent key is a no-op: it must not
// create a zero-balance entry.
func creditAccount(state *ChainState, key [32]byte, amount uint64) {
	if amount == 0 {
		if _, ok := state.Accounts[key]; !ok {
			return
		}
	}
	state.Accounts[key] += amount
}

// debitAccount subtracts amount from key's balance, removing the entry if
// the result is zero. Used by both apply's sender/rename debits and
// revert's inverse credits-turned-debits.
func debitAccount(state *ChainState, key [32]byte, amount uint64) {
	state.Accounts[key] -= amount
	if state.Accounts[key] == 0 {
		delete(state.Accounts, key)
	}
}
