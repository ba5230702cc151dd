package store

import (
	"testing"

	"github.com/handlechain/ledgercore/consensus"
)

// maxDifficulty is a target every header hash trivially satisfies, so
// these tests never need to grind a nonce.
var maxDifficulty = func() [32]byte {
	var d [32]byte
	for i := range d {
		d[i] = 0xFF
	}
	return d
}()

// buildGenesisBlock constructs a single-coinbase genesis block funding pub, whose header links back to the all-zero header as InitGenesis
// requires.
func buildGenesisBlock(t *testing.T, pub [32]byte) *consensus.Block {
	t.Helper()
	coinbase := consensus.Txn{
		Sender:    consensus.KeyAddress([32]byte{}),
		Receivers: []consensus.Receiver{{Addr: consensus.KeyAddress(pub), Amount: 0}},
	}
	block := &consensus.Block{Txns: []consensus.Txn{coinbase}}
	blockSize := uint64(consensus.BlockSize(block))
	block.Txns[0].Receivers[0].Amount = consensus.CalcCoinbase(blockSize, 0)
	block.Header = consensus.Header{
		PrevBlockHash: consensus.HeaderHash(consensus.Header{}),
		MerkleRoot:    consensus.MerkleRoot(block.Txns, nil),
		Time:          1,
	}
	return block
}

func TestInitGenesisPersistsAccountsAndManifest(t *testing.T) {
	kp, err := consensus.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	pub := kp.XOnlyPubKey()
	genesis := buildGenesisBlock(t, pub)

	db, err := Open(t.TempDir(), "aa")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	var chainID [32]byte
	chainID[0] = 0xaa
	if err := db.InitGenesis(chainID, genesis, maxDifficulty); err != nil {
		t.Fatalf("InitGenesis: %v", err)
	}

	bal, err := db.GetAccount(pub)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if bal != genesis.Txns[0].Receivers[0].Amount {
		t.Fatalf("balance = %d, want %d", bal, genesis.Txns[0].Receivers[0].Amount)
	}

	state, err := db.LoadChainState()
	if err != nil {
		t.Fatalf("LoadChainState: %v", err)
	}
	if state.Height != 1 {
		t.Fatalf("height = %d, want 1", state.Height)
	}
	if state.PreviousHeader != genesis.Header {
		t.Fatalf("previous_header was not persisted correctly")
	}

	headerHash := consensus.HeaderHash(genesis.Header)
	if db.Manifest().TipHashHex != hex32(headerHash) {
		t.Fatalf("manifest tip hash mismatch")
	}

	gotBlock, ok, err := db.GetBlock(headerHash)
	if err != nil || !ok {
		t.Fatalf("GetBlock: ok=%v err=%v", ok, err)
	}
	if gotBlock.Header != genesis.Header || len(gotBlock.Txns) != 1 {
		t.Fatalf("stored block does not round trip: %+v", gotBlock)
	}
}

func TestInitGenesisRejectsSecondCall(t *testing.T) {
	kp, _ := consensus.GenerateKeypair()
	genesis := buildGenesisBlock(t, kp.XOnlyPubKey())

	db, err := Open(t.TempDir(), "bb")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	var chainID [32]byte
	if err := db.InitGenesis(chainID, genesis, maxDifficulty); err != nil {
		t.Fatalf("InitGenesis: %v", err)
	}
	if err := db.InitGenesis(chainID, genesis, maxDifficulty); err == nil {
		t.Fatalf("expected error re-initializing an already-initialized chain")
	}
}

func TestInitGenesisRejectsInvalidBlock(t *testing.T) {
	kp, _ := consensus.GenerateKeypair()
	genesis := buildGenesisBlock(t, kp.XOnlyPubKey())
	genesis.Header.PrevBlockHash[0] ^= 0xFF // break the zero-header linkage

	db, err := Open(t.TempDir(), "cc")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	var chainID [32]byte
	if err := db.InitGenesis(chainID, genesis, maxDifficulty); err == nil {
		t.Fatalf("expected genesis validation failure")
	}
}
