package subscriptor

import (
	"context"
	"errors"
	"time"

	"github.com/jpillora/backoff"

	"github.com/subvia/subscriptor/internal/models"
	"github.com/subvia/subscriptor/pkg/logger"
)

// Keeper periodically re-checks every stored subscription so renewals do
// not depend on status-query cadence: a lapsed subscription with an
// eligible pre-signed tick is renewed on the next round even if nobody
// asks about it.
type Keeper struct {
	logger   *logger.Logger
	repo     models.Repository
	engine   *Subscriptor
	interval time.Duration
}

// NewKeeper creates a new Keeper instance.
func NewKeeper(engine *Subscriptor, repo models.Repository, interval time.Duration, logger *logger.Logger) *Keeper {
	return &Keeper{
		logger:   logger,
		repo:     repo,
		engine:   engine,
		interval: interval,
	}
}

// Run blocks until the context is cancelled, sweeping all subscriptions
// every interval. Rounds that fail on ledger unavailability back off
// exponentially instead of hammering the node.
func (k *Keeper) Run(ctx context.Context) {
	retry := &backoff.Backoff{
		Min:    5 * time.Second,
		Max:    k.interval,
		Factor: 2,
		Jitter: true,
	}

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		if err := k.sweep(ctx); err != nil {
			wait := retry.Duration()
			k.logger.Error("Keeper sweep failed ", "error ", err, " retry_in ", wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		retry.Reset()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// sweep checks every subscription once. Per-subscription errors that are
// not transient are logged and skipped; ledger unavailability aborts the
// round so the backoff can kick in.
func (k *Keeper) sweep(ctx context.Context) error {
	subscriptions, err := k.repo.ListSubscriptions()
	if err != nil {
		return err
	}

	k.logger.Debug("Keeper sweeping subscriptions ", "count ", len(subscriptions))

	for _, subscription := range subscriptions {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		status, err := k.engine.Status(ctx, subscription)
		if err != nil {
			if errors.Is(err, models.ErrLedgerUnavailable) {
				return err
			}
			k.logger.Error("Keeper status check failed ", "user ", subscription.User.Hex(), " community ", subscription.CommunityName, " error ", err)
			continue
		}

		k.logger.Debug("Keeper checked subscription ", "user ", subscription.User.Hex(), " community ", subscription.CommunityName, " subscribed ", status.Subscribed)
	}

	return nil
}
