// Command ledgerctl exposes the consensus package's validation and
// state-transition core over a JSON request/response pipe on stdin/stdout,
// one request per process invocation.
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/handlechain/ledgercore/consensus"
)

type Request struct {
	Op string `json:"op"`

	Header HeaderJSON     `json:"header,omitempty"`
	Block  BlockJSON      `json:"block,omitempty"`
	State  ChainStateJSON `json:"state,omitempty"`
	Undo   UndoJSON       `json:"undo,omitempty"`
	Txn    TxnJSON        `json:"txn,omitempty"`
	Rename RenameJSON     `json:"rename,omitempty"`

	PrivKeyHex string `json:"priv_key_hex,omitempty"`
	BlockSize  uint64 `json:"block_size,omitempty"`
	Median     uint64 `json:"median,omitempty"`
}

type Response struct {
	Ok  bool   `json:"ok"`
	Err string `json:"err,omitempty"`

	HeaderHash string          `json:"header_hash,omitempty"`
	MerkleRoot string          `json:"merkle_root,omitempty"`
	Coinbase   uint64          `json:"coinbase,omitempty"`
	State      *ChainStateJSON `json:"state,omitempty"`
	Undo       *UndoJSON       `json:"undo,omitempty"`
	Txn        *TxnJSON        `json:"txn,omitempty"`
	Rename     *RenameJSON     `json:"rename,omitempty"`
	PubkeyHex  string          `json:"pubkey_hex,omitempty"`
	PrivKeyHex string          `json:"priv_key_hex,omitempty"`
}

// errKind renders err for the response: a consensus ValidationError as
// "Kind: Msg" (Kind alone when Msg is empty), anything else (decode errors,
// etc) as its raw message.
func errKind(err error) string {
	if ve, ok := err.(*consensus.ValidationError); ok {
		return ve.Error()
	}
	return err.Error()
}

func errResp(err error) Response { return Response{Ok: false, Err: errKind(err)} }

// handleRequest dispatches one request and returns the response to encode.
// Kept separate from main so it can be exercised directly in tests.
func handleRequest(req Request) Response {
	switch req.Op {
	case "header_hash":
		header, err := req.Header.toDomain()
		if err != nil {
			return errResp(err)
		}
		h := consensus.HeaderHash(header)
		return Response{Ok: true, HeaderHash: hex.EncodeToString(h[:])}

	case "merkle_root":
		block, err := req.Block.toDomain()
		if err != nil {
			return errResp(err)
		}
		root := consensus.MerkleRoot(block.Txns, block.NameChanges)
		return Response{Ok: true, MerkleRoot: hex.EncodeToString(root[:])}

	case "calc_coinbase":
		return Response{Ok: true, Coinbase: consensus.CalcCoinbase(req.BlockSize, req.Median)}

	case "validate_block":
		block, state, err := req.blockAndState()
		if err != nil {
			return errResp(err)
		}
		if err := consensus.ValidateBlock(&block, state); err != nil {
			return errResp(err)
		}
		return Response{Ok: true}

	case "apply_block":
		block, state, err := req.blockAndState()
		if err != nil {
			return errResp(err)
		}
		if err := consensus.ValidateBlock(&block, state); err != nil {
			return errResp(err)
		}
		undo := consensus.ApplyBlock(&block, state)
		newState := chainStateFromDomain(state)
		undoJSON := undoFromDomain(undo)
		return Response{Ok: true, State: &newState, Undo: &undoJSON}

	case "revert_block":
		undo, err := req.Undo.toDomain()
		if err != nil {
			return errResp(err)
		}
		state, err := req.State.toDomain()
		if err != nil {
			return errResp(err)
		}
		consensus.RevertBlock(undo, state)
		newState := chainStateFromDomain(state)
		return Response{Ok: true, State: &newState}

	case "generate_keypair":
		kp, err := consensus.GenerateKeypair()
		if err != nil {
			return Response{Ok: false, Err: err.Error()}
		}
		pub := kp.XOnlyPubKey()
		sk := kp.Bytes()
		return Response{Ok: true, PubkeyHex: hex.EncodeToString(pub[:]), PrivKeyHex: hex.EncodeToString(sk[:])}

	case "finalize_txn":
		txn, err := req.Txn.toDomain()
		if err != nil {
			return errResp(err)
		}
		sk, err := decodeKey32(req.PrivKeyHex)
		if err != nil {
			return Response{Ok: false, Err: fmt.Sprintf("priv_key_hex: %v", err)}
		}
		kp := consensus.KeypairFromBytes(sk)
		if err := consensus.FinalizeTxn(&txn, kp); err != nil {
			return Response{Ok: false, Err: err.Error()}
		}
		out := txnFromDomain(&txn)
		return Response{Ok: true, Txn: &out}

	case "finalize_rename":
		op, err := req.Rename.toDomain()
		if err != nil {
			return errResp(err)
		}
		sk, err := decodeKey32(req.PrivKeyHex)
		if err != nil {
			return Response{Ok: false, Err: fmt.Sprintf("priv_key_hex: %v", err)}
		}
		kp := consensus.KeypairFromBytes(sk)
		if err := consensus.FinalizeRename(&op, kp); err != nil {
			return Response{Ok: false, Err: err.Error()}
		}
		out := renameFromDomain(&op)
		return Response{Ok: true, Rename: &out}

	default:
		return Response{Ok: false, Err: "unknown op"}
	}
}

func (req Request) blockAndState() (consensus.Block, *consensus.ChainState, error) {
	block, err := req.Block.toDomain()
	if err != nil {
		return consensus.Block{}, nil, err
	}
	state, err := req.State.toDomain()
	if err != nil {
		return consensus.Block{}, nil, err
	}
	return block, state, nil
}

func writeResp(w io.Writer, resp Response) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(resp)
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResp(os.Stdout, Response{Ok: false, Err: fmt.Sprintf("bad request: %v", err)})
		return
	}
	writeResp(os.Stdout, handleRequest(req))
}
