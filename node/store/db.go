// Package store persists the consensus package's ChainState, blocks, and
// undo history to a bbolt-backed key/value store, and implements the
// disconnect/connect procedure needed to move the applied tip across a
// chain reorganization. It is the storage collaborator that the
// validation/state-transition engine itself stays free of.
package store

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/handlechain/ledgercore/consensus"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var (
	bucketHeaders  = []byte("headers_by_hash")
	bucketBlocks   = []byte("blocks_by_hash")
	bucketIndex    = []byte("block_index_by_hash")
	bucketUndo     = []byte("undo_by_block_hash")
	bucketAccounts = []byte("accounts_by_key")
	bucketNames    = []byte("keys_by_name")
)

type BlockStatus byte

const (
	BlockStatusUnknown  BlockStatus = 0
	BlockStatusValid    BlockStatus = 1
	BlockStatusInvalid  BlockStatus = 2
	BlockStatusOrphaned BlockStatus = 3
)

type BlockIndexEntry struct {
	Height         uint64
	PrevHash       [32]byte
	CumulativeWork *big.Int // non-negative
	Status         BlockStatus
}

// DB is a chain's on-disk state: block/header/undo history in bbolt,
// account balances and name ownership in their own buckets, and a
// crash-safe JSON manifest carrying the rolling windows and tip pointer.
type DB struct {
	chainDir string
	db       *bolt.DB
	manifest *Manifest
	log      *zap.Logger
}

func Open(datadir string, chainIDHex string) (*DB, error) {
	if datadir == "" {
		return nil, fmt.Errorf("datadir required")
	}
	if chainIDHex == "" {
		return nil, fmt.Errorf("chain_id_hex required")
	}

	chainDir := ChainDir(datadir, chainIDHex)
	if err := ensureDir(chainDir); err != nil {
		return nil, err
	}
	if err := ensureDir(filepath.Join(chainDir, "db")); err != nil {
		return nil, err
	}

	path := filepath.Join(chainDir, "db", "kv.db")
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open bbolt: %w", err)
	}

	d := &DB{chainDir: chainDir, db: bdb, log: zap.NewNop()}

	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketHeaders, bucketBlocks, bucketIndex, bucketUndo, bucketAccounts, bucketNames} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	m, err := readManifest(chainDir)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil // uninitialized chain; caller must InitGenesis.
		}
		_ = bdb.Close()
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if m.SchemaVersion > SchemaVersionV1 {
		_ = bdb.Close()
		return nil, fmt.Errorf("manifest schema_version %d > supported %d", m.SchemaVersion, SchemaVersionV1)
	}
	d.manifest = m
	return d, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) ChainDir() string { return d.chainDir }

// SetLogger replaces the DB's structured logger, used for chain-event
// logging during genesis init, tip extension, and reorgs. Open defaults to
// a no-op logger, so this is optional.
func (d *DB) SetLogger(l *zap.Logger) {
	if d == nil || l == nil {
		return
	}
	d.log = l
}

func (d *DB) Manifest() *Manifest {
	if d == nil {
		return nil
	}
	return d.manifest
}

func (d *DB) setManifest(m *Manifest) error {
	if d == nil {
		return fmt.Errorf("db: nil")
	}
	if err := writeManifestAtomic(d.chainDir, m); err != nil {
		return err
	}
	d.manifest = m
	return nil
}

func (d *DB) PutHeader(hash [32]byte, header consensus.Header) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHeaders).Put(hash[:], consensus.EncodeHeader(header))
	})
}

func (d *DB) GetHeader(hash [32]byte) (*consensus.Header, bool, error) {
	var out *consensus.Header
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketHeaders).Get(hash[:])
		if v == nil {
			return nil
		}
		h, err := consensus.DecodeHeader(v)
		if err != nil {
			return err
		}
		out = &h
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if out == nil {
		return nil, false, nil
	}
	return out, true, nil
}

func (d *DB) PutBlock(hash [32]byte, block *consensus.Block) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlocks).Put(hash[:], encodeBlock(block))
	})
}

func (d *DB) GetBlock(hash [32]byte) (*consensus.Block, bool, error) {
	var out *consensus.Block
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBlocks).Get(hash[:])
		if v == nil {
			return nil
		}
		b, err := decodeBlock(v)
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if out == nil {
		return nil, false, nil
	}
	return out, true, nil
}

func (d *DB) PutIndex(hash [32]byte, e BlockIndexEntry) error {
	b, err := encodeIndexEntry(e)
	if err != nil {
		return err
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIndex).Put(hash[:], b)
	})
}

func (d *DB) GetIndex(hash [32]byte) (*BlockIndexEntry, bool, error) {
	var out *BlockIndexEntry
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketIndex).Get(hash[:])
		if v == nil {
			return nil
		}
		e, err := decodeIndexEntry(v)
		if err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if out == nil {
		return nil, false, nil
	}
	return out, true, nil
}

func (d *DB) PutUndo(blockHash [32]byte, u consensus.UndoRecord) error {
	val, err := encodeUndoRecord(u)
	if err != nil {
		return err
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUndo).Put(blockHash[:], val)
	})
}

func (d *DB) GetUndo(blockHash [32]byte) (*consensus.UndoRecord, bool, error) {
	var out *consensus.UndoRecord
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketUndo).Get(blockHash[:])
		if v == nil {
			return nil
		}
		u, err := decodeUndoRecord(v)
		if err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if out == nil {
		return nil, false, nil
	}
	return out, true, nil
}

// GetAccount returns a key's persisted balance. A missing entry is a zero
// balance, matching ChainState's account-positivity invariant.
func (d *DB) GetAccount(key [32]byte) (uint64, error) {
	var bal uint64
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketAccounts).Get(key[:])
		if v == nil {
			return nil
		}
		if len(v) != 8 {
			return fmt.Errorf("accounts: malformed entry for %x", key)
		}
		bal = getUint64LE(v)
		return nil
	})
	return bal, err
}

// GetName returns the key a registered name currently resolves to.
func (d *DB) GetName(name string) ([32]byte, bool, error) {
	var key [32]byte
	var ok bool
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketNames).Get([]byte(name))
		if v == nil {
			return nil
		}
		if len(v) != 32 {
			return fmt.Errorf("names: malformed entry for %q", name)
		}
		copy(key[:], v)
		ok = true
		return nil
	})
	return key, ok, err
}

// LoadChainState reconstructs the full in-memory ChainState from the
// manifest plus the accounts/names buckets.
func (d *DB) LoadChainState() (*consensus.ChainState, error) {
	if d.manifest == nil {
		return nil, fmt.Errorf("store: chain not initialized")
	}
	state, err := chainStateFromManifest(d.manifest)
	if err != nil {
		return nil, err
	}
	err = d.db.View(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketAccounts).ForEach(func(k, v []byte) error {
			if len(k) != 32 || len(v) != 8 {
				return fmt.Errorf("accounts: malformed entry")
			}
			var key [32]byte
			copy(key[:], k)
			state.Accounts[key] = getUint64LE(v)
			return nil
		}); err != nil {
			return err
		}
		return tx.Bucket(bucketNames).ForEach(func(k, v []byte) error {
			if len(v) != 32 {
				return fmt.Errorf("names: malformed entry")
			}
			var key [32]byte
			copy(key[:], v)
			state.Names[string(k)] = key
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// persistChainStateDiff writes the account/name mutations accumulated by
// an apply or revert pass against base into the accounts/names buckets,
// and commits a fresh manifest for after.
func (d *DB) persistChainStateDiff(base, after *consensus.ChainState, tipHash [32]byte, work *big.Int) error {
	err := d.db.Update(func(tx *bolt.Tx) error {
		ab := tx.Bucket(bucketAccounts)
		for key, bal := range after.Accounts {
			if baseBal, ok := base.Accounts[key]; ok && baseBal == bal {
				continue
			}
			var tmp [8]byte
			putUint64LE(tmp[:], bal)
			if err := ab.Put(key[:], tmp[:]); err != nil {
				return err
			}
		}
		for key := range base.Accounts {
			if _, ok := after.Accounts[key]; !ok {
				if err := ab.Delete(key[:]); err != nil {
					return err
				}
			}
		}

		nb := tx.Bucket(bucketNames)
		for name, key := range after.Names {
			if baseKey, ok := base.Names[name]; ok && baseKey == key {
				continue
			}
			if err := nb.Put([]byte(name), key[:]); err != nil {
				return err
			}
		}
		for name := range base.Names {
			if _, ok := after.Names[name]; !ok {
				if err := nb.Delete([]byte(name)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	m := manifestFromChainState(d.manifest.ChainIDHex, after)
	m.TipHashHex = hex32(tipHash)
	m.TipCumulativeWorkDec = work.Text(10)
	return d.setManifest(&m)
}

func encodeIndexEntry(e BlockIndexEntry) ([]byte, error) {
	if e.CumulativeWork == nil || e.CumulativeWork.Sign() < 0 {
		return nil, fmt.Errorf("index: cumulative_work required")
	}
	work := e.CumulativeWork.Bytes()
	if len(work) > 0xffff {
		return nil, fmt.Errorf("index: cumulative_work too large")
	}
	// Layout:
	// height u64le | prev_hash 32 | status u8 | work_len u16le | work_bytes
	out := make([]byte, 8+32+1+2+len(work))
	putUint64LE(out[0:8], e.Height)
	copy(out[8:40], e.PrevHash[:])
	out[40] = byte(e.Status)
	out[41] = byte(len(work))
	out[42] = byte(len(work) >> 8)
	copy(out[43:], work)
	return out, nil
}

func decodeIndexEntry(b []byte) (*BlockIndexEntry, error) {
	if len(b) < 8+32+1+2 {
		return nil, fmt.Errorf("index: truncated")
	}
	height := getUint64LE(b[0:8])
	var prev [32]byte
	copy(prev[:], b[8:40])
	status := BlockStatus(b[40])
	workLen := int(b[41]) | int(b[42])<<8
	if 43+workLen != len(b) {
		return nil, fmt.Errorf("index: bad work len")
	}
	work := new(big.Int).SetBytes(b[43:])
	return &BlockIndexEntry{
		Height:         height,
		PrevHash:       prev,
		CumulativeWork: work,
		Status:         status,
	}, nil
}
