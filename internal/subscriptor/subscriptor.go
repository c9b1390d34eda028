package subscriptor

import (
	"context"
	"sync"
	"time"

	"github.com/subvia/subscriptor/internal/config"
	"github.com/subvia/subscriptor/internal/models"
	"github.com/subvia/subscriptor/pkg/logger"
)

// PeriodLength is how long one confirmed tick keeps a subscription
// active. Deliberately one day longer than the nominal 30-day period so
// irregular status-check cadence cannot open a gap between renewals.
const PeriodLength = 31 * 24 * time.Hour

// Subscriptor is the main struct for the application. It combines the
// reconciler's view of the ledger with the stored pre-signed ticks to
// decide subscription status, and auto-submits the next eligible tick
// when the current period has lapsed.
type Subscriptor struct {
	logger *logger.Logger
	config *config.Config

	repo        models.Repository
	reconciler  *Reconciler
	submitter   models.SubmissionClient
	notificator models.NotificationService

	// walletLocks serializes the lapsed-check/submit sequence per
	// subscription wallet. The ledger's duplicate-nonce rejection
	// remains the backstop for races across instances.
	walletLocks sync.Map

	now func() time.Time
}

// NewSubscriptor creates a new Subscriptor instance.
func NewSubscriptor(
	repo models.Repository,
	reconciler *Reconciler,
	submitter models.SubmissionClient,
	notificator models.NotificationService,
	logger *logger.Logger,
	config *config.Config,
) *Subscriptor {
	return &Subscriptor{
		logger:      logger,
		config:      config,
		repo:        repo,
		reconciler:  reconciler,
		submitter:   submitter,
		notificator: notificator,
		now:         time.Now,
	}
}

// DeclareCommunity registers a community in the catalogue.
func (s *Subscriptor) DeclareCommunity(community *models.Community) error {
	return s.repo.DeclareCommunity(community)
}

// GetCommunity looks a community up; (nil, nil) when unknown.
func (s *Subscriptor) GetCommunity(name string) (*models.Community, error) {
	return s.repo.GetCommunity(name)
}

// GenesisWalletAddress is the treasury address subscription transfers
// are pulled from.
func (s *Subscriptor) GenesisWalletAddress() models.Address {
	return s.config.GenesisWallet
}

// Subscribe validates every submitted tick and persists the batch. The
// whole batch is rejected on the first violation. For an existing
// subscription the ticks are validated against the wallet on record,
// not the one claimed in the request.
func (s *Subscriptor) Subscribe(ctx context.Context, subscription *models.Subscription) error {
	community, err := s.repo.GetCommunity(subscription.CommunityName)
	if err != nil {
		return err
	}
	if community == nil {
		return models.ErrUnknownCommunity
	}

	existing, err := s.repo.GetSubscription(subscription.User, subscription.CommunityName)
	if err != nil {
		return err
	}

	wallet := subscription.SubscriptionWallet
	if existing != nil {
		wallet = existing.SubscriptionWallet
	}

	for i := range subscription.PreSignedTicks {
		tick := &subscription.PreSignedTicks[i]
		if err := ValidateTick(tick, wallet, s.config.BurnAddress, s.config.SubscriptionPrice); err != nil {
			return err
		}
	}

	if existing != nil {
		s.logger.Info("Appending ticks to existing subscription ", "user ", subscription.User.Hex(), " community ", subscription.CommunityName, " ticks ", len(subscription.PreSignedTicks))
		if err := s.repo.AppendTicks(subscription.User, subscription.CommunityName, subscription.PreSignedTicks); err != nil {
			return err
		}
		// New ticks mean a previously reported lapse may be over.
		if existing.LapseNotifiedAt != 0 {
			if err := s.repo.SetLapseNotified(subscription.User, subscription.CommunityName, 0); err != nil {
				s.logger.Error("Failed to clear lapse marker ", "error ", err)
			}
		}
		return nil
	}

	subscription.CreatedAt = s.now().Unix()
	s.logger.Info("Registering new subscription ", "user ", subscription.User.Hex(), " community ", subscription.CommunityName, " wallet ", wallet.Hex())
	return s.repo.AddSubscription(subscription)
}

// CheckSubscription resolves the subscription record and computes its
// current status.
func (s *Subscriptor) CheckSubscription(ctx context.Context, user models.Address, communityName string) (*models.SubscriptionStatus, error) {
	community, err := s.repo.GetCommunity(communityName)
	if err != nil {
		return nil, err
	}
	if community == nil {
		return nil, models.ErrUnknownCommunity
	}

	subscription, err := s.repo.GetSubscription(user, communityName)
	if err != nil {
		return nil, err
	}
	if subscription == nil {
		return &models.SubscriptionStatus{Subscribed: false}, nil
	}

	return s.Status(ctx, subscription)
}

// Status runs the state machine over the subscription: NoHistory,
// Active, LapsedWithEligibleTick or LapsedNoEligibleTick. In the
// LapsedWithEligibleTick state the tick is submitted on the fly and the
// user is reported subscribed optimistically: the renewal is in flight
// but not yet ledger-confirmed.
func (s *Subscriptor) Status(ctx context.Context, subscription *models.Subscription) (*models.SubscriptionStatus, error) {
	lastTick, err := s.reconciler.LastConfirmedTick(ctx, subscription.SubscriptionWallet)
	if err != nil {
		return nil, err
	}
	if lastTick == nil {
		return &models.SubscriptionStatus{Subscribed: false}, nil
	}

	now := s.now()
	if !now.After(lastTick.Add(PeriodLength)) {
		startedAt, expiresAt := subscriptionPeriod(subscription)
		return &models.SubscriptionStatus{Subscribed: true, StartedAt: startedAt, ExpiresAt: expiresAt}, nil
	}

	// Period lapsed. Serialize the eligible-tick submission per wallet
	// so two concurrent checks cannot both race past this branch.
	lock := s.walletLock(subscription.SubscriptionWallet)
	lock.Lock()
	defer lock.Unlock()

	// Re-read the record: a check holding the lock before us may have
	// consumed the tick already.
	fresh, err := s.repo.GetSubscription(subscription.User, subscription.CommunityName)
	if err != nil {
		s.logger.Error("Failed to re-read subscription, using stale record ", "user ", subscription.User.Hex(), " community ", subscription.CommunityName, " error ", err)
	} else if fresh != nil {
		subscription = fresh
	}

	// A consumed tick whose window still contains now is a renewal in
	// flight: the batch went out but the ledger history does not show it
	// yet. Report subscribed without resubmitting, and without a lapse
	// notice.
	if renewalInFlight(subscription, now) {
		startedAt, expiresAt := subscriptionPeriod(subscription)
		return &models.SubscriptionStatus{Subscribed: true, StartedAt: startedAt, ExpiresAt: expiresAt}, nil
	}

	tick, index := nextEligibleTick(subscription, now)
	if tick == nil {
		s.notifyLapsed(subscription)
		return &models.SubscriptionStatus{Subscribed: false}, nil
	}

	batch, err := tick.SubmissionBatch()
	if err != nil {
		return nil, err
	}

	hashes, err := s.submitter.SubmitTxsBatch(ctx, batch)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Submitted renewal tick ", "wallet ", subscription.SubscriptionWallet.Hex(), " hashes ", hashes)

	if err := s.repo.MarkTickConsumed(subscription.User, subscription.CommunityName, index); err != nil {
		s.logger.Error("Failed to mark tick consumed ", "error ", err, " index ", index)
	}

	startedAt, expiresAt := subscriptionPeriod(subscription)
	if s.notificator != nil {
		notification := &models.Notification{
			CommunityName: subscription.CommunityName,
			Event:         models.EventRenewed,
			ExpiresAt:     expiresAt,
		}
		go s.notificator.SendNotification(subscription, notification)
	}

	return &models.SubscriptionStatus{Subscribed: true, StartedAt: startedAt, ExpiresAt: expiresAt}, nil
}

// notifyLapsed sends the lapse notice once per lapse: the marker is
// cleared when new ticks arrive.
func (s *Subscriptor) notifyLapsed(subscription *models.Subscription) {
	if s.notificator == nil || subscription.LapseNotifiedAt != 0 {
		return
	}
	if err := s.repo.SetLapseNotified(subscription.User, subscription.CommunityName, s.now().Unix()); err != nil {
		s.logger.Error("Failed to set lapse marker ", "error ", err)
		return
	}
	notification := &models.Notification{
		CommunityName: subscription.CommunityName,
		Event:         models.EventLapsed,
	}
	go s.notificator.SendNotification(subscription, notification)
}

func (s *Subscriptor) walletLock(wallet models.Address) *sync.Mutex {
	lock, _ := s.walletLocks.LoadOrStore(wallet, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// subscriptionPeriod derives the displayed period bounds from the full
// pre-signed schedule: it starts at the earliest tick validity and ends
// one period after the latest. Consumed ticks still count: the schedule
// reflects everything the user committed to.
func subscriptionPeriod(subscription *models.Subscription) (*time.Time, *time.Time) {
	if len(subscription.PreSignedTicks) == 0 {
		return nil, nil
	}

	var minFrom, maxFrom time.Time
	for i := range subscription.PreSignedTicks {
		validFrom := subscription.PreSignedTicks[i].ValidFrom()
		if i == 0 || validFrom.Before(minFrom) {
			minFrom = validFrom
		}
		if i == 0 || validFrom.After(maxFrom) {
			maxFrom = validFrom
		}
	}

	expiresAt := maxFrom.Add(PeriodLength)
	return &minFrom, &expiresAt
}

// renewalInFlight reports whether a consumed tick's validity window
// still contains now, meaning its submission has not surfaced in the
// wallet's history yet.
func renewalInFlight(subscription *models.Subscription, now time.Time) bool {
	for i := range subscription.PreSignedTicks {
		tick := &subscription.PreSignedTicks[i]
		if tick.Consumed && tick.WindowContains(now) {
			return true
		}
	}
	return false
}

// nextEligibleTick selects the unconsumed tick whose validity window
// contains now. When windows overlap the earliest validFrom wins, so the
// pick is deterministic.
func nextEligibleTick(subscription *models.Subscription, now time.Time) (*models.SubscriptionTick, int) {
	best := -1
	for i := range subscription.PreSignedTicks {
		tick := &subscription.PreSignedTicks[i]
		if tick.Consumed || !tick.WindowContains(now) {
			continue
		}
		if best == -1 || tick.ValidFrom().Before(subscription.PreSignedTicks[best].ValidFrom()) {
			best = i
		}
	}
	if best == -1 {
		return nil, -1
	}
	return &subscription.PreSignedTicks[best], best
}
