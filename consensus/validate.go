package consensus

import "bytes"

// ValidateBlock checks block against the rolling chain state and returns
// nil if and only if block may be handed to Apply. Checks run in the
// order documented here; the first failure short-circuits the rest.
func ValidateBlock(block *Block, state *ChainState) error {
	if len(block.Txns) < 1 {
		return blockErr("no transactions; coinbase mandatory")
	}

	headerHash := HeaderHash(block.Header)
	if !meetsDifficulty(headerHash, state.Difficulty) {
		return blockErr("difficulty not met")
	}

	if block.Header.Time < state.PreviousHeader.Time {
		return blockErr("Block time is less than previous block time")
	}

	if err := validateNameLengths(block); err != nil {
		return err
	}

	root := MerkleRoot(block.Txns, block.NameChanges)
	if root != block.Header.MerkleRoot {
		return blockErr("merkle root mismatch")
	}

	prevHash := HeaderHash(state.PreviousHeader)
	if prevHash != block.Header.PrevBlockHash {
		return blockErr("previous block hash mismatch")
	}

	blockSize := uint64(BlockSize(block))
	median := MedianBlockSize(state.Last100BlockSizes)
	if BlockSizeExceedsCeiling(blockSize, median) {
		return blockErr("block size exceeds ceiling")
	}

	// workingAccounts mirrors the balance changes Apply will make, so that
	// rename fee affordability (checked further below) can see funds a
	// sender just received in this same block.
	workingAccounts := cloneAccounts(state.Accounts)
	cumulativeSpend := make(map[[32]byte]uint64, len(block.Txns))
	var sumFees uint64

	for i := 1; i < len(block.Txns); i++ {
		t := &block.Txns[i]

		senderKey, err := resolveAddress(t.Sender, state)
		if err != nil {
			return err
		}

		if !IsValidXOnlyPubKey(senderKey) {
			return txnErr("sender key is not a valid curve point")
		}

		msgHash := Hash(EncodeTxnSigMessage(t))
		if !VerifySchnorr(senderKey, msgHash, t.Signature) {
			return txnErr("transaction signature is invalid")
		}

		bal, ok := state.Accounts[senderKey]
		if !ok {
			return txnErr("sender has no account balance")
		}

		if len(t.Receivers) < 1 || len(t.Receivers) > 255 {
			return txnErr("transaction must have between 1 and 255 receivers")
		}

		if t.Fee < TxnFeeFloor(t) {
			return txnErr("transaction fee is below the per-byte floor")
		}

		spend, err := spendOf(t)
		if err != nil {
			return txnErr("transaction spend overflows")
		}

		newCumulative, err := addU64(cumulativeSpend[senderKey], spend)
		if err != nil {
			return txnErr("cumulative spend overflows")
		}
		if newCumulative > bal {
			return txnErr("transaction overspends the sender's balance")
		}
		cumulativeSpend[senderKey] = newCumulative

		sumFees, err = addU64(sumFees, t.Fee)
		if err != nil {
			return txnErr("aggregate fee overflows")
		}

		workingAccounts[senderKey] -= spend
		if workingAccounts[senderKey] == 0 {
			delete(workingAccounts, senderKey)
		}
		for _, r := range t.Receivers {
			key, err := resolveAddress(r.Addr, state)
			if err != nil {
				return err
			}
			workingAccounts[key] += r.Amount
		}
	}

	coinbase := &block.Txns[0]
	if len(coinbase.Receivers) != 1 {
		return txnErr("coinbase must have exactly one receiver")
	}
	coinbaseLimit, err := addU64(CalcCoinbase(blockSize, median), sumFees)
	if err != nil {
		return txnErr("coinbase bound overflows")
	}
	if coinbase.Receivers[0].Amount > coinbaseLimit {
		return txnErr("Coinbase amount is invalid")
	}
	{
		key, err := resolveAddress(coinbase.Receivers[0].Addr, state)
		if err != nil {
			return err
		}
		workingAccounts[key] += coinbase.Receivers[0].Amount
	}

	namesWorking := cloneNames(state.Names)
	for i := range block.NameChanges {
		op := &block.NameChanges[i]

		if !IsValidXOnlyPubKey(op.PK) {
			return txnErr("rename public key is not a valid curve point")
		}

		signer, exists := namesWorking[op.NewName]
		if !exists {
			signer = op.PK
		}

		msgHash := Hash(EncodeRenameSigMessage(op))
		if !VerifySchnorr(signer, msgHash, op.Sig) {
			return txnErr("rename signature is invalid")
		}

		if op.Fee < RenameFeeFloor(op) {
			return txnErr("rename fee is below the per-byte floor")
		}

		if workingAccounts[op.PK] < op.Fee {
			return txnErr("rename's new owner cannot cover the rename fee")
		}

		workingAccounts[op.PK] -= op.Fee
		if workingAccounts[op.PK] == 0 {
			delete(workingAccounts, op.PK)
		}
		namesWorking[op.NewName] = op.PK
	}

	return nil
}

// validateNameLengths rejects any block whose encoding would panic inside
// EncodeAddress or encodeRename, so that Encode/MerkleRoot/signature-message
// construction can run below assuming every name already fits MaxNameLength.
func validateNameLengths(block *Block) error {
	for i := range block.Txns {
		t := &block.Txns[i]
		if err := validateAddressLength(t.Sender); err != nil {
			return err
		}
		for _, r := range t.Receivers {
			if err := validateAddressLength(r.Addr); err != nil {
				return err
			}
		}
	}
	for i := range block.NameChanges {
		if len(block.NameChanges[i].NewName) > MaxNameLength {
			return txnErr("rename name exceeds maximum length")
		}
	}
	return nil
}

func validateAddressLength(a Address) error {
	if a.Tag == AddressName && len(a.Name) > MaxNameLength {
		return txnErr("name address exceeds maximum length")
	}
	return nil
}

// meetsDifficulty reports hash <= target, compared lexicographically from
// the most significant byte (index 0) to the least (index 31).
func meetsDifficulty(hash, target [32]byte) bool {
	return bytes.Compare(hash[:], target[:]) <= 0
}

func cloneAccounts(m map[[32]byte]uint64) map[[32]byte]uint64 {
	out := make(map[[32]byte]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneNames(m map[string][32]byte) map[string][32]byte {
	out := make(map[string][32]byte, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
