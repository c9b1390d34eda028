package models

import (
	"encoding/json"
	"time"
)

// HistoryEntry is one raw decoded transaction from the ledger's account
// history endpoint. Tx is a polymorphic payload whose shape is selected
// by TxID. Entries are fetched fresh per query and never cached.
type HistoryEntry struct {
	TxID       string          `json:"txId"`
	Hash       *string         `json:"hash"`
	Tx         json.RawMessage `json:"tx"`
	Success    *bool           `json:"success"`
	FailReason *string         `json:"failReason"`
	Committed  bool            `json:"committed"`
	Verified   bool            `json:"verified"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Succeeded reports whether the transaction is known to have failed.
// Pending entries (Success unset) count as succeeded: the ledger may
// still execute them, and a renewal in flight must not read as unpaid.
func (e *HistoryEntry) Succeeded() bool {
	return e.Success == nil || *e.Success
}
