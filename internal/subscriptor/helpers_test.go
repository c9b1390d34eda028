package subscriptor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/subvia/subscriptor/internal/config"
	"github.com/subvia/subscriptor/internal/models"
	"github.com/subvia/subscriptor/internal/repository"
	"github.com/subvia/subscriptor/pkg/logger"
)

var (
	testUser    = models.MustParseAddress("0x1111111111111111111111111111111111111111")
	testWallet  = models.MustParseAddress("0x2222222222222222222222222222222222222222")
	testBurn    = models.MustParseAddress("0x3333333333333333333333333333333333333333")
	testGenesis = models.MustParseAddress("0x4444444444444444444444444444444444444444")
	testToken   = models.MustParseAddress("0x5555555555555555555555555555555555555555")
)

const (
	testPrice     = int64(100)
	testCommunity = "test-dao"
)

func validTick(toNonce uint32, validFrom, validUntil time.Time) models.SubscriptionTick {
	return models.SubscriptionTick{
		TransferToSub: models.TransferFrom{
			From:       testGenesis,
			To:         testWallet,
			Amount:     testPrice,
			Nonce:      toNonce,
			ToNonce:    toNonce,
			ValidFrom:  validFrom.Unix(),
			ValidUntil: validUntil.Unix(),
			Signature:  json.RawMessage(`{"pubKey":"ab","signature":"cd"}`),
		},
		BurnTx: models.Transfer{
			From:       testWallet,
			To:         testBurn,
			Amount:     testPrice,
			Nonce:      toNonce + 1,
			ValidFrom:  validFrom.Unix(),
			ValidUntil: validUntil.Unix(),
			Signature:  json.RawMessage(`{"pubKey":"ab","signature":"ef"}`),
		},
		BurnTxSignature: json.RawMessage(`{"type":"EthereumSignature","signature":"0xdeadbeef"}`),
	}
}

func transferInEntry(t *testing.T, tx models.TransferFrom, createdAt time.Time, success *bool) models.HistoryEntry {
	t.Helper()
	raw, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("failed to encode transfer-in: %v", err)
	}
	return models.HistoryEntry{
		TxID:      models.TxKindTransferFrom,
		Tx:        raw,
		Success:   success,
		Committed: true,
		CreatedAt: createdAt,
	}
}

func burnEntry(t *testing.T, tx models.Transfer, createdAt time.Time, success *bool) models.HistoryEntry {
	t.Helper()
	raw, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("failed to encode burn: %v", err)
	}
	return models.HistoryEntry{
		TxID:      models.TxKindTransfer,
		Tx:        raw,
		Success:   success,
		Committed: true,
		CreatedAt: createdAt,
	}
}

// pairedHistory produces the two confirmed history entries one executed
// tick leaves behind on the subscription wallet.
func pairedHistory(t *testing.T, toNonce uint32, createdAt time.Time) []models.HistoryEntry {
	t.Helper()
	tick := validTick(toNonce, createdAt, createdAt.Add(24*time.Hour))
	return []models.HistoryEntry{
		transferInEntry(t, tick.TransferToSub, createdAt, boolPtr(true)),
		burnEntry(t, tick.BurnTx, createdAt.Add(time.Second), boolPtr(true)),
	}
}

func boolPtr(b bool) *bool { return &b }

type stubHistory struct {
	entries []models.HistoryEntry
	err     error
}

func (s *stubHistory) GetTransactionsHistory(ctx context.Context, address models.Address, offset, limit uint32) ([]models.HistoryEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.entries, nil
}

type stubSubmitter struct {
	batches [][]models.TxWithSignature
	hashes  []string
	err     error
}

func (s *stubSubmitter) SubmitTxsBatch(ctx context.Context, txs []models.TxWithSignature) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.batches = append(s.batches, txs)
	if s.hashes != nil {
		return s.hashes, nil
	}
	hashes := make([]string, len(txs))
	for i := range hashes {
		hashes[i] = "0xhash"
	}
	return hashes, nil
}

func (s *stubSubmitter) OperationState(ctx context.Context, txHash string) (*models.OperationState, error) {
	return &models.OperationState{Executed: true, Verified: true}, nil
}

type recordingNotificator struct {
	ch chan *models.Notification
}

func newRecordingNotificator() *recordingNotificator {
	return &recordingNotificator{ch: make(chan *models.Notification, 8)}
}

func (r *recordingNotificator) SendNotification(subscription *models.Subscription, notification *models.Notification) {
	r.ch <- notification
}

func (r *recordingNotificator) expectEvent(t *testing.T, event models.NotificationEvent) *models.Notification {
	t.Helper()
	select {
	case notification := <-r.ch:
		if notification.Event != event {
			t.Fatalf("expected %s notification, got %s", event, notification.Event)
		}
		return notification
	case <-time.After(2 * time.Second):
		t.Fatalf("no %s notification arrived", event)
		return nil
	}
}

func (r *recordingNotificator) expectSilence(t *testing.T) {
	t.Helper()
	select {
	case notification := <-r.ch:
		t.Fatalf("unexpected %s notification", notification.Event)
	case <-time.After(50 * time.Millisecond):
	}
}

func newTestEngine(t *testing.T, history models.HistoryClient, submitter models.SubmissionClient, notificator models.NotificationService) (*Subscriptor, *repository.MemoryDB) {
	t.Helper()

	cfg := &config.Config{
		BurnAddress:       testBurn,
		GenesisWallet:     testGenesis,
		SubscriptionPrice: testPrice,
		HistoryPageLimit:  40,
	}

	log := logger.NewNop()
	repo := repository.NewMemoryDB()
	if err := repo.DeclareCommunity(&models.Community{Name: testCommunity, TokenName: "TST", TokenAddress: testToken}); err != nil {
		t.Fatalf("failed to declare community: %v", err)
	}

	reconciler := NewReconciler(history, testBurn, testPrice, 40, log)
	return NewSubscriptor(repo, reconciler, submitter, notificator, log, cfg), repo
}
