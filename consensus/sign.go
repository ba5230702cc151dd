package consensus

// FinalizeTxn fills t.Fee from the per-byte floor and signs t in place with
// kp, setting t.Signature to a Schnorr signature over
// EncodeTxnSigMessage(t). Callers build sender/receivers before calling
// this; the fee field is overwritten.
func FinalizeTxn(t *Txn, kp *Keypair) error {
	t.Fee = TxnFeeFloor(t)
	sig, err := kp.Sign(Hash(EncodeTxnSigMessage(t)))
	if err != nil {
		return err
	}
	t.Signature = sig
	return nil
}

// FinalizeRename fills op.Fee from the per-byte floor and signs op in place
// with kp, the same way FinalizeTxn does for transactions.
func FinalizeRename(op *RenameOp, kp *Keypair) error {
	op.Fee = RenameFeeFloor(op)
	sig, err := kp.Sign(Hash(EncodeRenameSigMessage(op)))
	if err != nil {
		return err
	}
	op.Sig = sig
	return nil
}
