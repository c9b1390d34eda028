package models

import "context"

// SubscriptorI is the application facade consumed by the API server.
type SubscriptorI interface {
	// DeclareCommunity registers a community in the catalogue.
	DeclareCommunity(community *Community) error

	// GetCommunity looks a community up; (nil, nil) when unknown.
	GetCommunity(name string) (*Community, error)

	// Subscribe validates every submitted tick against the subscription
	// context and persists the batch. The whole batch is rejected on the
	// first violation.
	Subscribe(ctx context.Context, subscription *Subscription) error

	// CheckSubscription reports whether the user is currently subscribed
	// to the community, auto-submitting the next eligible pre-signed tick
	// when the current period has lapsed.
	CheckSubscription(ctx context.Context, user Address, communityName string) (*SubscriptionStatus, error)

	// GenesisWalletAddress is the treasury address subscription transfers
	// are pulled from.
	GenesisWalletAddress() Address
}

// APIServer is the HTTP front door.
type APIServer interface {
	Start()
	Shutdown() error
}
