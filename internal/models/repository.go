package models

// Repository is the persistence contract for communities and
// subscriptions. Lookups return (nil, nil) when the record does not
// exist. Tick order inside a subscription is stable: AppendTicks adds to
// the tail and MarkTickConsumed addresses ticks by that stored order.
type Repository interface {
	DeclareCommunity(community *Community) error
	GetCommunity(name string) (*Community, error)

	AddSubscription(subscription *Subscription) error
	GetSubscription(user Address, communityName string) (*Subscription, error)
	GetUserSubscriptions(user Address) ([]*Subscription, error)
	ListSubscriptions() ([]*Subscription, error)
	AppendTicks(user Address, communityName string, ticks []SubscriptionTick) error
	MarkTickConsumed(user Address, communityName string, index int) error
	SetLapseNotified(user Address, communityName string, at int64) error

	BindTelegramChatID(username, chatID string) error
}
