package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// ChainDir is where a chain's manifest and key/value store live:
// <datadir>/chains/<chain_id_hex>.
func ChainDir(datadir, chainIDHex string) string {
	return filepath.Join(datadir, "chains", chainIDHex)
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}
