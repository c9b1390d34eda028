package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Transfer is a ledger transfer moving funds out of an account.
// The subscription flow uses it as the "burn" half of a tick: the
// subscription wallet sends the period's funds to the burn address.
type Transfer struct {
	From       Address         `json:"from"`
	To         Address         `json:"to"`
	Token      uint16          `json:"token"`
	Amount     int64           `json:"amount"`
	Fee        int64           `json:"fee"`
	Nonce      uint32          `json:"nonce"`
	ValidFrom  int64           `json:"validFrom"`
	ValidUntil int64           `json:"validUntil"`
	Signature  json.RawMessage `json:"signature,omitempty"`
}

// TransferFrom is a ledger transfer initiated by the recipient side:
// it pulls funds from the treasury account into the subscription wallet.
// ToNonce is the nonce of the recipient account at execution time.
type TransferFrom struct {
	From       Address         `json:"from"`
	To         Address         `json:"to"`
	Token      uint16          `json:"token"`
	Amount     int64           `json:"amount"`
	Fee        int64           `json:"fee"`
	Nonce      uint32          `json:"nonce"`
	ToNonce    uint32          `json:"toNonce"`
	ValidFrom  int64           `json:"validFrom"`
	ValidUntil int64           `json:"validUntil"`
	Signature  json.RawMessage `json:"signature,omitempty"`
}

// SubscriptionTick is one renewal period's payment proof: a pre-signed
// transfer into the subscription wallet paired with the pre-signed burn
// transfer out of it. The two halves belong together iff the burn nonce
// equals the transfer's recipient nonce plus one.
type SubscriptionTick struct {
	TransferToSub   TransferFrom    `json:"transferToSub"`
	BurnTx          Transfer        `json:"burnTx"`
	BurnTxSignature json.RawMessage `json:"burnTxSignature,omitempty"`
	// Consumed marks ticks already submitted to the ledger. Consumed
	// ticks stay in the record for audit and are never eligible again.
	Consumed bool `json:"consumed,omitempty"`
}

// ValidFrom returns the instant from which the ledger accepts this tick.
func (t *SubscriptionTick) ValidFrom() time.Time {
	return time.Unix(t.TransferToSub.ValidFrom, 0).UTC()
}

// ValidUntil returns the instant after which the ledger rejects this tick.
func (t *SubscriptionTick) ValidUntil() time.Time {
	return time.Unix(t.TransferToSub.ValidUntil, 0).UTC()
}

// WindowContains reports whether the tick's validity window covers the
// given instant, boundaries included.
func (t *SubscriptionTick) WindowContains(at time.Time) bool {
	return !at.Before(t.ValidFrom()) && !at.After(t.ValidUntil())
}

// History entry kinds and submission type tags.
const (
	TxKindTransfer     = "Transfer"
	TxKindTransferFrom = "TransferFrom"
)

type taggedTransferFrom struct {
	Type string `json:"type"`
	TransferFrom
}

type taggedTransfer struct {
	Type string `json:"type"`
	Transfer
}

// SubmissionBatch encodes the tick as the ordered (tx, signature) pairs
// expected by the ledger's submit_txs_batch call: the transfer-in first,
// then the burn with its external signature.
func (t *SubscriptionTick) SubmissionBatch() ([]TxWithSignature, error) {
	transferIn, err := json.Marshal(taggedTransferFrom{Type: TxKindTransferFrom, TransferFrom: t.TransferToSub})
	if err != nil {
		return nil, fmt.Errorf("failed to encode transfer-in: %w", err)
	}
	burn, err := json.Marshal(taggedTransfer{Type: TxKindTransfer, Transfer: t.BurnTx})
	if err != nil {
		return nil, fmt.Errorf("failed to encode burn: %w", err)
	}

	return []TxWithSignature{
		{Tx: transferIn},
		{Tx: burn, Signature: t.BurnTxSignature},
	}, nil
}

// TickList is a sequence of pre-signed ticks, persisted as a single
// JSON document. Order is append-only and stable.
type TickList []SubscriptionTick

func (l TickList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

func (l *TickList) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into TickList", value)
	}
}
