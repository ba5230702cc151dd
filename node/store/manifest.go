package store

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/handlechain/ledgercore/consensus"
)

const SchemaVersionV1 uint32 = 1

// Manifest is the crash-safe commit point for a chain: everything needed
// to reconstruct a consensus.ChainState without replaying every block from
// genesis. Accounts and names themselves live in their own buckets; this
// carries the rolling windows, previous header, and difficulty that
// ChainState also holds directly.
type Manifest struct {
	SchemaVersion uint32 `json:"schema_version"`
	ChainIDHex    string `json:"chain_id_hex"`

	TipHashHex           string `json:"tip_hash"`
	TipHeight            uint64 `json:"tip_height"`
	TipCumulativeWorkDec string `json:"tip_cumulative_work"`

	DifficultyHex     string `json:"difficulty"`
	PreviousHeaderHex string `json:"previous_header"`
	Last720TimesHex   string `json:"last_720_times"`
	Last100SizesHex   string `json:"last_100_block_sizes"`
}

// chainStateFromManifest reconstructs the rolling/scalar portion of a
// ChainState from m. Accounts and Names are left empty for the caller to
// populate from their buckets.
func chainStateFromManifest(m *Manifest) (*consensus.ChainState, error) {
	difficulty, err := parseHex32(m.DifficultyHex)
	if err != nil {
		return nil, fmt.Errorf("manifest: difficulty: %w", err)
	}
	prevHeaderBytes, err := hex.DecodeString(m.PreviousHeaderHex)
	if err != nil {
		return nil, fmt.Errorf("manifest: previous_header: %w", err)
	}
	prevHeader, err := consensus.DecodeHeader(prevHeaderBytes)
	if err != nil {
		return nil, fmt.Errorf("manifest: previous_header: %w", err)
	}
	timesBytes, err := hex.DecodeString(m.Last720TimesHex)
	if err != nil {
		return nil, fmt.Errorf("manifest: last_720_times: %w", err)
	}
	sizesBytes, err := hex.DecodeString(m.Last100SizesHex)
	if err != nil {
		return nil, fmt.Errorf("manifest: last_100_block_sizes: %w", err)
	}

	state := consensus.NewChainState(difficulty, prevHeader)
	state.Height = m.TipHeight
	if err := decodeU64Window(timesBytes, state.Last720Times[:]); err != nil {
		return nil, fmt.Errorf("manifest: last_720_times: %w", err)
	}
	if err := decodeU64Window(sizesBytes, state.Last100BlockSizes[:]); err != nil {
		return nil, fmt.Errorf("manifest: last_100_block_sizes: %w", err)
	}
	return state, nil
}

// manifestFromChainState captures the rolling/scalar portion of state into
// a Manifest, leaving the tip-hash/work fields for the caller to fill in.
func manifestFromChainState(chainIDHex string, state *consensus.ChainState) Manifest {
	return Manifest{
		SchemaVersion:     SchemaVersionV1,
		ChainIDHex:        chainIDHex,
		TipHeight:         state.Height,
		DifficultyHex:     hex.EncodeToString(state.Difficulty[:]),
		PreviousHeaderHex: hex.EncodeToString(consensus.EncodeHeader(state.PreviousHeader)),
		Last720TimesHex:   hex.EncodeToString(encodeU64Window(state.Last720Times[:])),
		Last100SizesHex:   hex.EncodeToString(encodeU64Window(state.Last100BlockSizes[:])),
	}
}

func encodeU64Window(window []uint64) []byte {
	out := make([]byte, len(window)*8)
	for i, v := range window {
		putUint64LE(out[i*8:i*8+8], v)
	}
	return out
}

func decodeU64Window(b []byte, window []uint64) error {
	if len(b) != len(window)*8 {
		return fmt.Errorf("window: expected %d bytes, got %d", len(window)*8, len(b))
	}
	for i := range window {
		window[i] = getUint64LE(b[i*8 : i*8+8])
	}
	return nil
}

func manifestPath(chainDir string) string {
	return filepath.Join(chainDir, "MANIFEST.json")
}

func readManifest(chainDir string) (*Manifest, error) {
	raw, err := os.ReadFile(manifestPath(chainDir))
	if err != nil {
		return nil, err
	}
	m := &Manifest{}
	if err := json.Unmarshal(raw, m); err != nil {
		return nil, fmt.Errorf("manifest json: %w", err)
	}
	return m, nil
}

// writeManifestAtomic commits MANIFEST.json crash-safely: the new content
// is written and fsynced under a temporary name, renamed over the old
// file, and the containing directory fsynced so the rename itself is
// durable.
func writeManifestAtomic(chainDir string, m *Manifest) error {
	if m == nil {
		return fmt.Errorf("manifest: nil")
	}
	body, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest json: %w", err)
	}
	body = append(body, '\n')

	dst := manifestPath(chainDir)
	tmp := dst + ".tmp"
	if err := writeFileSynced(tmp, body); err != nil {
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("manifest rename: %w", err)
	}
	return syncDir(chainDir)
}

func writeFileSynced(path string, body []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600) // #nosec G304 -- path is derived from the operator's datadir.
	if err != nil {
		return fmt.Errorf("manifest open tmp: %w", err)
	}
	if _, err := f.Write(body); err != nil {
		_ = f.Close()
		return fmt.Errorf("manifest write tmp: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("manifest fsync tmp: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("manifest close tmp: %w", err)
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir) // #nosec G304 -- dir is derived from the operator's datadir.
	if err != nil {
		return fmt.Errorf("manifest fsync dir open: %w", err)
	}
	if err := d.Sync(); err != nil {
		_ = d.Close()
		return fmt.Errorf("manifest fsync dir: %w", err)
	}
	return d.Close()
}
