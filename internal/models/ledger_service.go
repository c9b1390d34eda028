package models

import (
	"context"
	"encoding/json"
)

// TxWithSignature is one element of a submission batch: an opaque signed
// transaction payload plus an optional accompanying external signature.
type TxWithSignature struct {
	Tx        json.RawMessage `json:"tx"`
	Signature json.RawMessage `json:"signature,omitempty"`
}

// OperationState is the ledger's view of a submitted transaction.
type OperationState struct {
	Executed bool `json:"executed"`
	Verified bool `json:"verified"`
}

// HistoryClient reads an address's transaction history from the ledger
// node's REST interface.
type HistoryClient interface {
	GetTransactionsHistory(ctx context.Context, address Address, offset, limit uint32) ([]HistoryEntry, error)
}

// SubmissionClient submits transaction batches to the ledger node's
// JSON-RPC interface. SubmitTxsBatch sends the whole batch atomically and
// returns one hash per transaction in input order.
type SubmissionClient interface {
	SubmitTxsBatch(ctx context.Context, txs []TxWithSignature) ([]string, error)
	OperationState(ctx context.Context, txHash string) (*OperationState, error)
}
