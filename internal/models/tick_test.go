package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tickWithWindow(validFrom, validUntil time.Time) SubscriptionTick {
	return SubscriptionTick{
		TransferToSub: TransferFrom{
			To:         MustParseAddress("0x2222222222222222222222222222222222222222"),
			Amount:     100,
			ToNonce:    7,
			ValidFrom:  validFrom.Unix(),
			ValidUntil: validUntil.Unix(),
		},
		BurnTx: Transfer{
			From:   MustParseAddress("0x2222222222222222222222222222222222222222"),
			To:     MustParseAddress("0x3333333333333333333333333333333333333333"),
			Amount: 100,
			Nonce:  8,
		},
		BurnTxSignature: json.RawMessage(`"0xsig"`),
	}
}

func TestWindowContainsBoundariesInclusive(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	until := from.Add(48 * time.Hour)
	tick := tickWithWindow(from, until)

	assert.False(t, tick.WindowContains(from.Add(-time.Second)))
	assert.True(t, tick.WindowContains(from))
	assert.True(t, tick.WindowContains(from.Add(24*time.Hour)))
	assert.True(t, tick.WindowContains(until))
	assert.False(t, tick.WindowContains(until.Add(time.Second)))
}

func TestSubmissionBatch(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	tick := tickWithWindow(from, from.Add(48*time.Hour))

	batch, err := tick.SubmissionBatch()
	require.NoError(t, err)
	require.Len(t, batch, 2)

	// Transfer-in first, with the type tag the ledger dispatches on.
	var transferIn map[string]interface{}
	require.NoError(t, json.Unmarshal(batch[0].Tx, &transferIn))
	assert.Equal(t, TxKindTransferFrom, transferIn["type"])
	assert.Equal(t, float64(7), transferIn["toNonce"])
	assert.Nil(t, batch[0].Signature)

	// Then the burn, carrying its external signature alongside.
	var burn map[string]interface{}
	require.NoError(t, json.Unmarshal(batch[1].Tx, &burn))
	assert.Equal(t, TxKindTransfer, burn["type"])
	assert.Equal(t, float64(8), burn["nonce"])
	assert.Equal(t, json.RawMessage(`"0xsig"`), batch[1].Signature)
}

func TestTickListSQLRoundTrip(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	list := TickList{tickWithWindow(from, from.Add(48*time.Hour))}
	list[0].Consumed = true

	value, err := list.Value()
	require.NoError(t, err)

	var scanned TickList
	require.NoError(t, scanned.Scan(value))
	require.Len(t, scanned, 1)
	assert.True(t, scanned[0].Consumed)
	assert.Equal(t, uint32(7), scanned[0].TransferToSub.ToNonce)

	assert.Error(t, scanned.Scan(42))
}

func TestHistoryEntrySucceeded(t *testing.T) {
	yes, no := true, false
	assert.True(t, (&HistoryEntry{Success: nil}).Succeeded())
	assert.True(t, (&HistoryEntry{Success: &yes}).Succeeded())
	assert.False(t, (&HistoryEntry{Success: &no}).Succeeded())
}
