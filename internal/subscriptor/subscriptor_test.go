package subscriptor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subvia/subscriptor/internal/config"
	"github.com/subvia/subscriptor/internal/models"
	"github.com/subvia/subscriptor/internal/repository"
	"github.com/subvia/subscriptor/pkg/logger"
)

var t0 = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func fixedNow(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func subscribe(t *testing.T, engine *Subscriptor, ticks ...models.SubscriptionTick) {
	t.Helper()
	err := engine.Subscribe(context.Background(), &models.Subscription{
		User:               testUser,
		CommunityName:      testCommunity,
		SubscriptionWallet: testWallet,
		PreSignedTicks:     ticks,
	})
	require.NoError(t, err)
}

func TestSubscribeUnknownCommunity(t *testing.T) {
	engine, _ := newTestEngine(t, &stubHistory{}, &stubSubmitter{}, nil)

	err := engine.Subscribe(context.Background(), &models.Subscription{
		User:               testUser,
		CommunityName:      "never-declared",
		SubscriptionWallet: testWallet,
		PreSignedTicks:     models.TickList{validTick(1, t0, t0.Add(24*time.Hour))},
	})
	assert.ErrorIs(t, err, models.ErrUnknownCommunity)
}

func TestSubscribeRejectsInvalidTickInBatch(t *testing.T) {
	engine, repo := newTestEngine(t, &stubHistory{}, &stubSubmitter{}, nil)

	good := validTick(1, t0, t0.Add(24*time.Hour))
	bad := validTick(3, t0, t0.Add(24*time.Hour))
	bad.BurnTx.Nonce = 99

	err := engine.Subscribe(context.Background(), &models.Subscription{
		User:               testUser,
		CommunityName:      testCommunity,
		SubscriptionWallet: testWallet,
		PreSignedTicks:     models.TickList{good, bad},
	})

	var validationErr *models.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, models.NonceMismatch, validationErr.Kind)

	// The whole batch is rejected, nothing is stored.
	stored, err := repo.GetSubscription(testUser, testCommunity)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestSubscribeValidatesAgainstWalletOnRecord(t *testing.T) {
	engine, _ := newTestEngine(t, &stubHistory{}, &stubSubmitter{}, nil)
	subscribe(t, engine, validTick(1, t0, t0.Add(24*time.Hour)))

	// A later request claiming a different wallet must not be able to
	// sneak ticks validated against the claimed wallet.
	otherWallet := models.MustParseAddress("0x9999999999999999999999999999999999999999")
	foreign := validTick(3, t0, t0.Add(24*time.Hour))
	foreign.TransferToSub.To = otherWallet
	foreign.BurnTx.From = otherWallet

	err := engine.Subscribe(context.Background(), &models.Subscription{
		User:               testUser,
		CommunityName:      testCommunity,
		SubscriptionWallet: otherWallet,
		PreSignedTicks:     models.TickList{foreign},
	})

	var validationErr *models.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, models.RecipientMismatch, validationErr.Kind)
}

func TestSubscribeAppendsAndClearsLapseMarker(t *testing.T) {
	engine, repo := newTestEngine(t, &stubHistory{}, &stubSubmitter{}, nil)
	subscribe(t, engine, validTick(1, t0, t0.Add(24*time.Hour)))

	require.NoError(t, repo.SetLapseNotified(testUser, testCommunity, t0.Unix()))

	subscribe(t, engine, validTick(3, t0.Add(31*24*time.Hour), t0.Add(32*24*time.Hour)))

	stored, err := repo.GetSubscription(testUser, testCommunity)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Len(t, stored.PreSignedTicks, 2)
	assert.Zero(t, stored.LapseNotifiedAt)
}

func TestCheckSubscriptionUnknownCommunity(t *testing.T) {
	engine, _ := newTestEngine(t, &stubHistory{}, &stubSubmitter{}, nil)

	_, err := engine.CheckSubscription(context.Background(), testUser, "never-declared")
	assert.ErrorIs(t, err, models.ErrUnknownCommunity)
}

func TestCheckSubscriptionNoRecord(t *testing.T) {
	engine, _ := newTestEngine(t, &stubHistory{}, &stubSubmitter{}, nil)

	status, err := engine.CheckSubscription(context.Background(), testUser, testCommunity)
	require.NoError(t, err)
	assert.False(t, status.Subscribed)
	assert.Nil(t, status.StartedAt)
	assert.Nil(t, status.ExpiresAt)
}

func TestStatusNoHistory(t *testing.T) {
	// A stored record with no confirmed tick on the ledger means the user
	// never actually paid.
	engine, _ := newTestEngine(t, &stubHistory{}, &stubSubmitter{}, nil)
	subscribe(t, engine, validTick(1, t0, t0.Add(24*time.Hour)))

	status, err := engine.CheckSubscription(context.Background(), testUser, testCommunity)
	require.NoError(t, err)
	assert.False(t, status.Subscribed)
}

func TestStatusActiveWithinPeriod(t *testing.T) {
	paidAt := t0
	engine, _ := newTestEngine(t, &stubHistory{entries: pairedHistory(t, 1, paidAt)}, &stubSubmitter{}, nil)
	engine.now = fixedNow(paidAt.Add(10 * 24 * time.Hour))

	tick := validTick(1, t0, t0.Add(24*time.Hour))
	subscribe(t, engine, tick)

	status, err := engine.CheckSubscription(context.Background(), testUser, testCommunity)
	require.NoError(t, err)
	assert.True(t, status.Subscribed)
	require.NotNil(t, status.StartedAt)
	require.NotNil(t, status.ExpiresAt)
	assert.True(t, status.StartedAt.Equal(tick.ValidFrom()))
	assert.True(t, status.ExpiresAt.Equal(tick.ValidFrom().Add(PeriodLength)))
}

func TestStatusPeriodBoundaryInclusive(t *testing.T) {
	// Exactly one period after the confirmed tick is still inside it; one
	// second later is not.
	paidAt := t0
	submitter := &stubSubmitter{}
	engine, _ := newTestEngine(t, &stubHistory{entries: pairedHistory(t, 1, paidAt)}, submitter, nil)
	subscribe(t, engine, validTick(1, t0, t0.Add(24*time.Hour)))

	engine.now = fixedNow(paidAt.Add(PeriodLength))
	status, err := engine.CheckSubscription(context.Background(), testUser, testCommunity)
	require.NoError(t, err)
	assert.True(t, status.Subscribed)
	assert.Empty(t, submitter.batches)

	engine.now = fixedNow(paidAt.Add(PeriodLength + time.Second))
	status, err = engine.CheckSubscription(context.Background(), testUser, testCommunity)
	require.NoError(t, err)
	// The only tick's window ended long ago, so nothing can renew.
	assert.False(t, status.Subscribed)
	assert.Empty(t, submitter.batches)
}

func TestStatusLapsedSubmitsEligibleTick(t *testing.T) {
	paidAt := t0
	now := paidAt.Add(PeriodLength + time.Hour)

	submitter := &stubSubmitter{}
	notificator := newRecordingNotificator()
	engine, repo := newTestEngine(t, &stubHistory{entries: pairedHistory(t, 1, paidAt)}, submitter, notificator)
	engine.now = fixedNow(now)

	consumedTick := validTick(1, t0, t0.Add(24*time.Hour))
	renewalTick := validTick(3, now.Add(-time.Hour), now.Add(24*time.Hour))
	subscribe(t, engine, consumedTick, renewalTick)

	status, err := engine.CheckSubscription(context.Background(), testUser, testCommunity)
	require.NoError(t, err)
	assert.True(t, status.Subscribed)

	// The renewal tick went out as one atomic two-transaction batch.
	require.Len(t, submitter.batches, 1)
	require.Len(t, submitter.batches[0], 2)
	assert.NotNil(t, submitter.batches[0][1].Signature)

	stored, err := repo.GetSubscription(testUser, testCommunity)
	require.NoError(t, err)
	assert.False(t, stored.PreSignedTicks[0].Consumed)
	assert.True(t, stored.PreSignedTicks[1].Consumed)

	notificator.expectEvent(t, models.EventRenewed)
}

func TestStatusOverlappingWindowsPicksEarliest(t *testing.T) {
	paidAt := t0.Add(-PeriodLength - time.Hour)
	now := t0.Add(36 * time.Hour)

	submitter := &stubSubmitter{}
	engine, repo := newTestEngine(t, &stubHistory{entries: pairedHistory(t, 1, paidAt)}, submitter, nil)
	engine.now = fixedNow(now)

	tickA := validTick(3, t0, t0.Add(2*24*time.Hour))
	tickB := validTick(5, t0.Add(24*time.Hour), t0.Add(3*24*time.Hour))
	subscribe(t, engine, tickA, tickB)

	_, err := engine.CheckSubscription(context.Background(), testUser, testCommunity)
	require.NoError(t, err)

	stored, err := repo.GetSubscription(testUser, testCommunity)
	require.NoError(t, err)
	assert.True(t, stored.PreSignedTicks[0].Consumed, "earlier window must win")
	assert.False(t, stored.PreSignedTicks[1].Consumed)
}

func TestStatusConsumedTickNeverResubmitted(t *testing.T) {
	// A consumed tick whose window still contains now is a renewal in
	// flight: report subscribed, submit nothing, no lapse notice.
	paidAt := t0.Add(-PeriodLength - time.Hour)
	now := t0.Add(time.Hour)

	submitter := &stubSubmitter{}
	notificator := newRecordingNotificator()
	engine, repo := newTestEngine(t, &stubHistory{entries: pairedHistory(t, 1, paidAt)}, submitter, notificator)
	engine.now = fixedNow(now)

	subscribe(t, engine, validTick(3, t0, t0.Add(24*time.Hour)))
	require.NoError(t, repo.MarkTickConsumed(testUser, testCommunity, 0))

	status, err := engine.CheckSubscription(context.Background(), testUser, testCommunity)
	require.NoError(t, err)
	assert.True(t, status.Subscribed)
	assert.Empty(t, submitter.batches)
	notificator.expectSilence(t)
}

func TestStatusRenewalInFlightStaysSubscribed(t *testing.T) {
	// After an auto-renewal the ledger history lags behind: repeated
	// checks against the unchanged history must keep reporting
	// subscribed off the consumed tick's window, without resubmitting
	// and without a lapse notice.
	paidAt := t0
	now := paidAt.Add(PeriodLength + time.Hour)

	submitter := &stubSubmitter{}
	notificator := newRecordingNotificator()
	engine, repo := newTestEngine(t, &stubHistory{entries: pairedHistory(t, 1, paidAt)}, submitter, notificator)
	engine.now = fixedNow(now)

	subscribe(t, engine,
		validTick(1, t0, t0.Add(24*time.Hour)),
		validTick(3, now.Add(-time.Hour), now.Add(24*time.Hour)))

	status, err := engine.CheckSubscription(context.Background(), testUser, testCommunity)
	require.NoError(t, err)
	assert.True(t, status.Subscribed)
	require.Len(t, submitter.batches, 1)
	notificator.expectEvent(t, models.EventRenewed)

	stored, err := repo.GetSubscription(testUser, testCommunity)
	require.NoError(t, err)
	require.True(t, stored.PreSignedTicks[1].Consumed)

	status, err = engine.CheckSubscription(context.Background(), testUser, testCommunity)
	require.NoError(t, err)
	assert.True(t, status.Subscribed, "renewal in flight must still read as subscribed")
	assert.Len(t, submitter.batches, 1, "in-flight renewal must not be resubmitted")
	notificator.expectSilence(t)
}

func TestStatusLapseNotifiedOnce(t *testing.T) {
	paidAt := t0.Add(-PeriodLength - time.Hour)

	notificator := newRecordingNotificator()
	engine, _ := newTestEngine(t, &stubHistory{entries: pairedHistory(t, 1, paidAt)}, &stubSubmitter{}, notificator)
	engine.now = fixedNow(t0.Add(48 * time.Hour))

	// The only tick's window is already over.
	subscribe(t, engine, validTick(3, t0, t0.Add(24*time.Hour)))

	_, err := engine.CheckSubscription(context.Background(), testUser, testCommunity)
	require.NoError(t, err)
	notificator.expectEvent(t, models.EventLapsed)

	_, err = engine.CheckSubscription(context.Background(), testUser, testCommunity)
	require.NoError(t, err)
	notificator.expectSilence(t)
}

func TestStatusSubmissionRejectedPropagates(t *testing.T) {
	paidAt := t0.Add(-PeriodLength - time.Hour)
	now := t0.Add(time.Hour)

	submitter := &stubSubmitter{err: &models.SubmissionRejectedError{Code: 103, Reason: "nonce mismatch"}}
	engine, repo := newTestEngine(t, &stubHistory{entries: pairedHistory(t, 1, paidAt)}, submitter, nil)
	engine.now = fixedNow(now)

	subscribe(t, engine, validTick(3, t0, t0.Add(24*time.Hour)))

	_, err := engine.CheckSubscription(context.Background(), testUser, testCommunity)
	var rejected *models.SubmissionRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, 103, rejected.Code)

	// A rejected submission must not consume the tick.
	stored, err := repo.GetSubscription(testUser, testCommunity)
	require.NoError(t, err)
	assert.False(t, stored.PreSignedTicks[0].Consumed)
}

func TestStatusLedgerUnavailablePropagates(t *testing.T) {
	engine, _ := newTestEngine(t, &stubHistory{err: models.ErrLedgerUnavailable}, &stubSubmitter{}, nil)
	subscribe(t, engine, validTick(1, t0, t0.Add(24*time.Hour)))

	_, err := engine.CheckSubscription(context.Background(), testUser, testCommunity)
	assert.ErrorIs(t, err, models.ErrLedgerUnavailable)
}

func TestGenesisWalletAddress(t *testing.T) {
	engine, _ := newTestEngine(t, &stubHistory{}, &stubSubmitter{}, nil)
	assert.Equal(t, testGenesis, engine.GenesisWalletAddress())
}

type flakyRepo struct {
	models.Repository
}

func (f *flakyRepo) GetSubscription(user models.Address, communityName string) (*models.Subscription, error) {
	return nil, errors.New("connection reset by peer")
}

func TestStatusRenewsOffStaleRecordWhenRereadFails(t *testing.T) {
	// A failed post-lock re-read is logged and the renewal proceeds on
	// the record in hand.
	paidAt := t0.Add(-PeriodLength - time.Hour)
	now := t0.Add(time.Hour)

	memdb := repository.NewMemoryDB()
	require.NoError(t, memdb.AddSubscription(&models.Subscription{
		User:               testUser,
		CommunityName:      testCommunity,
		SubscriptionWallet: testWallet,
		PreSignedTicks:     models.TickList{validTick(3, t0, t0.Add(24*time.Hour))},
	}))
	record, err := memdb.GetSubscription(testUser, testCommunity)
	require.NoError(t, err)

	cfg := &config.Config{
		BurnAddress:       testBurn,
		GenesisWallet:     testGenesis,
		SubscriptionPrice: testPrice,
		HistoryPageLimit:  40,
	}
	log := logger.NewNop()
	submitter := &stubSubmitter{}
	reconciler := NewReconciler(&stubHistory{entries: pairedHistory(t, 1, paidAt)}, testBurn, testPrice, 40, log)
	engine := NewSubscriptor(&flakyRepo{Repository: memdb}, reconciler, submitter, nil, log, cfg)
	engine.now = fixedNow(now)

	status, err := engine.Status(context.Background(), record)
	require.NoError(t, err)
	assert.True(t, status.Subscribed)
	require.Len(t, submitter.batches, 1)
}
