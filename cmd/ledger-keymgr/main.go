// Command ledger-keymgr manages passphrase-protected keystore files for
// offline signing keys (non-consensus tooling).
//
// Keystore format: the 32-byte secp256k1 scalar is wrapped with AES-256-KW
// under a key derived from an operator passphrase via scrypt.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/scrypt"

	"github.com/handlechain/ledgercore/consensus"
	"github.com/handlechain/ledgercore/crypto"
)

const (
	keystoreVersion = "LEDGERKSv1"
	scryptN         = 1 << 15
	scryptR         = 8
	scryptP         = 1
)

// KeyStoreV1 is the on-disk keystore format.
type KeyStoreV1 struct {
	Version      string `json:"version"`
	PubkeyHex    string `json:"pubkey_hex"`
	SaltHex      string `json:"salt_hex"`
	WrappedSKHex string `json:"wrapped_sk_hex"`
}

func deriveKEK(passphrase string, salt []byte) ([]byte, error) {
	return scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, 32)
}

func readPassphrase(envVar string) (string, error) {
	v := os.Getenv(envVar)
	if v == "" {
		return "", fmt.Errorf("environment variable %s is empty or unset", envVar)
	}
	return v, nil
}

func cmdGenerate(argv []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	out := fs.String("out", "", "output keystore json path")
	passEnv := fs.String("passphrase-env", "LEDGER_KEYMGR_PASSPHRASE", "environment variable holding the wrapping passphrase")
	if err := fs.Parse(argv); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("missing required flag: --out")
	}
	passphrase, err := readPassphrase(*passEnv)
	if err != nil {
		return err
	}

	kp, err := consensus.GenerateKeypair()
	if err != nil {
		return err
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	kek, err := deriveKEK(passphrase, salt)
	if err != nil {
		return err
	}

	sk := kp.Bytes()
	wrapped, err := crypto.AESKeyWrapRFC3394(kek, sk[:])
	if err != nil {
		return err
	}

	pub := kp.XOnlyPubKey()
	ks := KeyStoreV1{
		Version:      keystoreVersion,
		PubkeyHex:    hex.EncodeToString(pub[:]),
		SaltHex:      hex.EncodeToString(salt),
		WrappedSKHex: hex.EncodeToString(wrapped),
	}
	return writeKeystore(*out, ks)
}

func writeKeystore(path string, ks KeyStoreV1) error {
	b, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o600)
}

func readKeystore(path string) (*KeyStoreV1, error) {
	raw, err := os.ReadFile(path) // #nosec G304 -- operator-provided
	if err != nil {
		return nil, err
	}
	var ks KeyStoreV1
	if err := json.Unmarshal(raw, &ks); err != nil {
		return nil, err
	}
	if ks.Version != keystoreVersion {
		return nil, fmt.Errorf("unsupported keystore version: %q", ks.Version)
	}
	return &ks, nil
}

func unwrapKeystore(ks *KeyStoreV1, passphrase string) (*consensus.Keypair, error) {
	salt, err := hex.DecodeString(ks.SaltHex)
	if err != nil {
		return nil, fmt.Errorf("salt_hex: %w", err)
	}
	wrapped, err := hex.DecodeString(ks.WrappedSKHex)
	if err != nil {
		return nil, fmt.Errorf("wrapped_sk_hex: %w", err)
	}
	kek, err := deriveKEK(passphrase, salt)
	if err != nil {
		return nil, err
	}
	plain, err := crypto.AESKeyUnwrapRFC3394(kek, wrapped)
	if err != nil {
		return nil, err
	}
	var sk [32]byte
	copy(sk[:], plain)
	kp := consensus.KeypairFromBytes(sk)

	pub := kp.XOnlyPubKey()
	if hex.EncodeToString(pub[:]) != strings.ToLower(ks.PubkeyHex) {
		return nil, fmt.Errorf("keystore corrupt: unwrapped key does not match embedded pubkey")
	}
	return kp, nil
}

func cmdShowPubkey(argv []string) (string, error) {
	fs := flag.NewFlagSet("show-pubkey", flag.ExitOnError)
	in := fs.String("in", "", "input keystore json path")
	if err := fs.Parse(argv); err != nil {
		return "", err
	}
	if *in == "" {
		return "", fmt.Errorf("missing required flag: --in")
	}
	ks, err := readKeystore(*in)
	if err != nil {
		return "", err
	}
	return ks.PubkeyHex, nil
}

func cmdRewrap(argv []string) error {
	fs := flag.NewFlagSet("rewrap", flag.ExitOnError)
	in := fs.String("in", "", "input keystore json path")
	out := fs.String("out", "", "output keystore json path")
	oldEnv := fs.String("old-passphrase-env", "LEDGER_KEYMGR_OLD_PASSPHRASE", "environment variable holding the current passphrase")
	newEnv := fs.String("new-passphrase-env", "LEDGER_KEYMGR_NEW_PASSPHRASE", "environment variable holding the new passphrase")
	if err := fs.Parse(argv); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return fmt.Errorf("missing required flags: --in --out")
	}

	oldPass, err := readPassphrase(*oldEnv)
	if err != nil {
		return err
	}
	newPass, err := readPassphrase(*newEnv)
	if err != nil {
		return err
	}

	ks, err := readKeystore(*in)
	if err != nil {
		return err
	}
	kp, err := unwrapKeystore(ks, oldPass)
	if err != nil {
		return err
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	kek, err := deriveKEK(newPass, salt)
	if err != nil {
		return err
	}
	sk := kp.Bytes()
	wrapped, err := crypto.AESKeyWrapRFC3394(kek, sk[:])
	if err != nil {
		return err
	}

	ks.SaltHex = hex.EncodeToString(salt)
	ks.WrappedSKHex = hex.EncodeToString(wrapped)
	return writeKeystore(*out, *ks)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: ledger-keymgr <generate|show-pubkey|rewrap> [flags]")
		os.Exit(2)
	}
	sub, argv := os.Args[1], os.Args[2:]

	switch sub {
	case "generate":
		if err := cmdGenerate(argv); err != nil {
			fmt.Fprintln(os.Stderr, "generate error:", err)
			os.Exit(1)
		}
		fmt.Println("OK")
	case "show-pubkey":
		pub, err := cmdShowPubkey(argv)
		if err != nil {
			fmt.Fprintln(os.Stderr, "show-pubkey error:", err)
			os.Exit(1)
		}
		fmt.Println(pub)
	case "rewrap":
		if err := cmdRewrap(argv); err != nil {
			fmt.Fprintln(os.Stderr, "rewrap error:", err)
			os.Exit(1)
		}
		fmt.Println("OK")
	default:
		fmt.Fprintln(os.Stderr, "unknown subcommand:", sub)
		os.Exit(2)
	}
}
