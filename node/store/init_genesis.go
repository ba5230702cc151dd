package store

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/handlechain/ledgercore/consensus"

	"go.uber.org/zap"
)

// InitGenesis initializes an empty chain DB by validating and applying the
// genesis block against a fresh ChainState seeded with difficulty, then
// persisting the resulting accounts/names, block, header, index, undo, and
// manifest entries.
//
// The genesis block's header.PrevBlockHash must equal
// consensus.HeaderHash(consensus.Header{}) (the hash of the all-zero
// header), since genesis validates against a ChainState whose
// PreviousHeader is the zero value.
func (d *DB) InitGenesis(chainID [32]byte, genesis *consensus.Block, difficulty [32]byte) error {
	if d == nil {
		return fmt.Errorf("db: nil")
	}
	if d.manifest != nil {
		return fmt.Errorf("chain already initialized (manifest exists)")
	}
	if genesis == nil {
		return fmt.Errorf("genesis block required")
	}

	state := consensus.NewChainState(difficulty, consensus.Header{})
	if err := consensus.ValidateBlock(genesis, state); err != nil {
		return fmt.Errorf("genesis block failed validation: %w", err)
	}
	base := cloneChainStateForDiff(state)
	undo := consensus.ApplyBlock(genesis, state)

	headerHash := consensus.HeaderHash(genesis.Header)
	work, err := WorkFromTarget(difficulty)
	if err != nil {
		return err
	}

	index := BlockIndexEntry{
		Height:         0,
		PrevHash:       [32]byte{},
		CumulativeWork: new(big.Int).Set(work),
		Status:         BlockStatusValid,
	}

	if err := d.PutHeader(headerHash, genesis.Header); err != nil {
		return err
	}
	if err := d.PutBlock(headerHash, genesis); err != nil {
		return err
	}
	if err := d.PutIndex(headerHash, index); err != nil {
		return err
	}
	if err := d.PutUndo(headerHash, *undo); err != nil {
		return err
	}

	d.manifest = &Manifest{ChainIDHex: hex.EncodeToString(chainID[:])}
	if err := d.persistChainStateDiff(base, state, headerHash, work); err != nil {
		return err
	}
	d.log.Info("genesis initialized",
		zap.String("chain_id", hex.EncodeToString(chainID[:])),
		zap.String("block_hash", hex32(headerHash)),
		zap.Int("accounts", len(state.Accounts)),
	)
	return nil
}

// cloneChainStateForDiff returns a shallow snapshot of state's accounts and
// names maps, used as the "before" side of persistChainStateDiff.
func cloneChainStateForDiff(state *consensus.ChainState) *consensus.ChainState {
	accounts := make(map[[32]byte]uint64, len(state.Accounts))
	for k, v := range state.Accounts {
		accounts[k] = v
	}
	names := make(map[string][32]byte, len(state.Names))
	for k, v := range state.Names {
		names[k] = v
	}
	return &consensus.ChainState{Accounts: accounts, Names: names}
}
