package subscriptor

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/subvia/subscriptor/internal/models"
	"github.com/subvia/subscriptor/pkg/logger"
)

// Reconciler reconstructs the timestamp of the most recent confirmed
// tick from a subscription wallet's public transaction history. It is a
// pure read over a fresh ledger snapshot and keeps no state between
// calls.
type Reconciler struct {
	logger      *logger.Logger
	history     models.HistoryClient
	burnAddress models.Address
	price       int64
	pageLimit   uint32
}

// NewReconciler creates a new Reconciler instance.
func NewReconciler(history models.HistoryClient, burnAddress models.Address, price int64, pageLimit uint32, logger *logger.Logger) *Reconciler {
	return &Reconciler{
		logger:      logger,
		history:     history,
		burnAddress: burnAddress,
		price:       price,
		pageLimit:   pageLimit,
	}
}

type transferInCandidate struct {
	tx        models.TransferFrom
	createdAt time.Time
}

// LastConfirmedTick returns the creation time of the most recent
// transfer-in that has a matching burn, pairing the two legs by nonce
// adjacency. Failed transactions are never evidence of payment. A nil
// time with nil error means the wallet was never subscribed, or the
// renewal confirmation is still pending.
//
// Nonces are used over timestamp proximity deliberately: ledger
// timestamps are not strictly ordered under concurrent submission, while
// nonces on one account are strictly sequential and uniquely identify
// the burn that immediately followed a transfer.
func (r *Reconciler) LastConfirmedTick(ctx context.Context, wallet models.Address) (*time.Time, error) {
	entries, err := r.history.GetTransactionsHistory(ctx, wallet, 0, r.pageLimit)
	if err != nil {
		return nil, err
	}

	var transferIns []transferInCandidate
	burnNonces := make(map[uint32]struct{})

	for i := range entries {
		entry := &entries[i]
		if !entry.Succeeded() {
			continue
		}

		switch entry.TxID {
		case models.TxKindTransferFrom:
			var transferFrom models.TransferFrom
			if err := json.Unmarshal(entry.Tx, &transferFrom); err != nil {
				r.logger.Error("Undecodable TransferFrom in history ", "wallet ", wallet.Hex(), " payload ", string(entry.Tx))
				return nil, &models.MalformedResponseError{Endpoint: "account history", Payload: entry.Tx, Err: err}
			}
			if transferFrom.Amount == r.price {
				transferIns = append(transferIns, transferInCandidate{tx: transferFrom, createdAt: entry.CreatedAt})
			}
		case models.TxKindTransfer:
			var transfer models.Transfer
			if err := json.Unmarshal(entry.Tx, &transfer); err != nil {
				r.logger.Error("Undecodable Transfer in history ", "wallet ", wallet.Hex(), " payload ", string(entry.Tx))
				return nil, &models.MalformedResponseError{Endpoint: "account history", Payload: entry.Tx, Err: err}
			}
			// Only burns of exactly the subscription price count.
			if transfer.To == r.burnAddress && transfer.Amount == r.price {
				burnNonces[transfer.Nonce] = struct{}{}
			}
		}
	}

	// Most recent first; equally-recent candidates are ordered by
	// recipient nonce descending so the pick stays deterministic even
	// for backdated entries.
	sort.SliceStable(transferIns, func(i, j int) bool {
		if !transferIns[i].createdAt.Equal(transferIns[j].createdAt) {
			return transferIns[i].createdAt.After(transferIns[j].createdAt)
		}
		return transferIns[i].tx.ToNonce > transferIns[j].tx.ToNonce
	})

	for _, candidate := range transferIns {
		expectedBurnNonce := candidate.tx.ToNonce + 1
		if _, ok := burnNonces[expectedBurnNonce]; ok {
			createdAt := candidate.createdAt
			return &createdAt, nil
		}
	}

	return nil, nil
}
