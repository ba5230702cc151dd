package store

import (
	"fmt"
	"math/big"

	"github.com/handlechain/ledgercore/consensus"

	"go.uber.org/zap"
)

// ApplyTip validates and applies a block that directly extends the current
// tip, persisting the resulting chain state, block, undo record, and index
// entry. The manifest's tip pointer advances to the new block.
func (d *DB) ApplyTip(chainID [32]byte, block *consensus.Block) error {
	if d == nil || d.manifest == nil {
		return fmt.Errorf("store: chain not initialized")
	}
	if want := hex32(chainID); d.manifest.ChainIDHex != want {
		return fmt.Errorf("store: chain id mismatch: have %s, want %s", d.manifest.ChainIDHex, want)
	}

	state, err := d.LoadChainState()
	if err != nil {
		return err
	}
	tipHash := consensus.HeaderHash(state.PreviousHeader)
	parentIdx, ok, err := d.GetIndex(tipHash)
	if err != nil {
		return err
	}
	var parentWork *big.Int
	if !ok {
		// Height-0 case: previous header is the zero header and has no
		// index entry of its own.
		parentWork = new(big.Int)
	} else {
		parentWork = parentIdx.CumulativeWork
	}

	blockHeight := state.Height
	if err := consensus.ValidateBlock(block, state); err != nil {
		return err
	}
	base := cloneChainStateForDiff(state)
	undo := consensus.ApplyBlock(block, state)

	blockHash := consensus.HeaderHash(block.Header)
	blockWork, err := WorkFromTarget(state.Difficulty)
	if err != nil {
		return err
	}
	cumWork := new(big.Int).Add(parentWork, blockWork)

	if err := d.PutHeader(blockHash, block.Header); err != nil {
		return err
	}
	if err := d.PutBlock(blockHash, block); err != nil {
		return err
	}
	if err := d.PutUndo(blockHash, *undo); err != nil {
		return err
	}
	if err := d.PutIndex(blockHash, BlockIndexEntry{
		Height:         blockHeight,
		PrevHash:       tipHash,
		CumulativeWork: cumWork,
		Status:         BlockStatusValid,
	}); err != nil {
		return err
	}

	if err := d.persistChainStateDiff(base, state, blockHash, cumWork); err != nil {
		return err
	}
	d.log.Info("tip extended",
		zap.String("block_hash", hex32(blockHash)),
		zap.Uint64("height", blockHeight),
	)
	return nil
}

// ReorgToTip disconnects the current applied tip down to the common
// ancestor with newTipHash, then connects forward along newTipHash's
// chain, reapplying each block in order. Both directions run entirely
// in-memory against a single ChainState loaded once, and are persisted as
// one diff against the original on-disk state.
func (d *DB) ReorgToTip(chainID [32]byte, newTipHash [32]byte) error {
	if d == nil || d.manifest == nil {
		return fmt.Errorf("store: chain not initialized")
	}
	if want := hex32(chainID); d.manifest.ChainIDHex != want {
		return fmt.Errorf("store: chain id mismatch: have %s, want %s", d.manifest.ChainIDHex, want)
	}

	oldTipHash, err := parseHex32(d.manifest.TipHashHex)
	if err != nil {
		return err
	}
	if oldTipHash == newTipHash {
		return nil
	}

	forkHash, err := d.findForkPoint(oldTipHash, newTipHash)
	if err != nil {
		return err
	}
	d.log.Warn("chain reorg triggered",
		zap.String("old_tip", hex32(oldTipHash)),
		zap.String("new_tip", hex32(newTipHash)),
		zap.String("fork_point", hex32(forkHash)),
	)

	state, err := d.LoadChainState()
	if err != nil {
		return err
	}
	base := cloneChainStateForDiff(state)

	// Disconnect: walk back from oldTipHash to forkHash, reverting each
	// block in reverse application order.
	disconnectPath, err := d.pathFromAncestor(forkHash, oldTipHash)
	if err != nil {
		return err
	}
	for i := len(disconnectPath) - 1; i >= 0; i-- {
		h := disconnectPath[i]
		undo, ok, err := d.GetUndo(h)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("reorg: missing undo record for %x", h)
		}
		consensus.RevertBlock(undo, state)
	}

	// Connect: walk forward from forkHash to newTipHash, validating and
	// applying each block in order.
	connectPath, err := d.pathFromAncestor(forkHash, newTipHash)
	if err != nil {
		return err
	}
	forkIdx, forkOk, err := d.GetIndex(forkHash)
	if err != nil {
		return err
	}
	cumWork := new(big.Int)
	if forkOk {
		cumWork = new(big.Int).Set(forkIdx.CumulativeWork)
	}
	prevHash := forkHash
	for _, h := range connectPath {
		block, ok, err := d.GetBlock(h)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("reorg: missing block body for %x", h)
		}
		blockHeight := state.Height
		if err := consensus.ValidateBlock(block, state); err != nil {
			idx, ok2, _ := d.GetIndex(h)
			if ok2 {
				idx.Status = BlockStatusInvalid
				_ = d.PutIndex(h, *idx)
			}
			d.log.Error("block failed revalidation during reorg connect", zap.String("block_hash", hex32(h)), zap.Error(err))
			return fmt.Errorf("reorg: block %x failed revalidation: %w", h, err)
		}
		undo := consensus.ApplyBlock(block, state)
		if err := d.PutUndo(h, *undo); err != nil {
			return err
		}
		blockWork, err := WorkFromTarget(state.Difficulty)
		if err != nil {
			return err
		}
		cumWork = new(big.Int).Add(cumWork, blockWork)
		if err := d.PutIndex(h, BlockIndexEntry{
			Height:         blockHeight,
			PrevHash:       prevHash,
			CumulativeWork: cumWork,
			Status:         BlockStatusValid,
		}); err != nil {
			return err
		}
		prevHash = h
	}

	if err := d.persistChainStateDiff(base, state, newTipHash, cumWork); err != nil {
		return err
	}
	d.log.Info("chain reorg complete",
		zap.String("new_tip", hex32(newTipHash)),
		zap.Int("disconnected", len(disconnectPath)),
		zap.Int("connected", len(connectPath)),
	)
	return nil
}

func (d *DB) findForkPoint(oldTip, newTip [32]byte) ([32]byte, error) {
	a, b := oldTip, newTip

	ha, ok, err := d.GetIndex(a)
	if err != nil {
		return [32]byte{}, err
	}
	if !ok {
		return [32]byte{}, fmt.Errorf("reorg: index missing for old tip %x", a)
	}
	hb, ok, err := d.GetIndex(b)
	if err != nil {
		return [32]byte{}, err
	}
	if !ok {
		return [32]byte{}, fmt.Errorf("reorg: index missing for new tip %x", b)
	}

	for ha.Height > hb.Height {
		a = ha.PrevHash
		ha, ok, err = d.GetIndex(a)
		if err != nil {
			return [32]byte{}, err
		}
		if !ok {
			return [32]byte{}, fmt.Errorf("reorg: index missing for ancestor %x", a)
		}
	}
	for hb.Height > ha.Height {
		b = hb.PrevHash
		hb, ok, err = d.GetIndex(b)
		if err != nil {
			return [32]byte{}, err
		}
		if !ok {
			return [32]byte{}, fmt.Errorf("reorg: index missing for ancestor %x", b)
		}
	}
	for a != b {
		a = ha.PrevHash
		b = hb.PrevHash
		ha, ok, err = d.GetIndex(a)
		if err != nil {
			return [32]byte{}, err
		}
		if !ok {
			return [32]byte{}, fmt.Errorf("reorg: index missing for ancestor %x", a)
		}
		hb, ok, err = d.GetIndex(b)
		if err != nil {
			return [32]byte{}, err
		}
		if !ok {
			return [32]byte{}, fmt.Errorf("reorg: index missing for ancestor %x", b)
		}
	}
	return a, nil
}

// pathFromAncestor returns the hashes from ancestor's child up to tip,
// ascending height (ancestor itself excluded).
func (d *DB) pathFromAncestor(ancestor, tip [32]byte) ([][32]byte, error) {
	if ancestor == tip {
		return nil, nil
	}
	cur := tip
	out := make([][32]byte, 0, 16)
	for cur != ancestor {
		out = append(out, cur)
		idx, ok, err := d.GetIndex(cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("reorg: index missing for %x", cur)
		}
		cur = idx.PrevHash
		if cur == ([32]byte{}) && idx.Height != 0 {
			return nil, fmt.Errorf("reorg: walked off the chain before reaching ancestor %x", ancestor)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
