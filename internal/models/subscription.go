package models

import "time"

// Community represents a community declared with the service. Its token
// grants are managed by the Community Oracle; the service only needs the
// catalogue entry to accept subscriptions for it.
type Community struct {
	// Name is the unique community name.
	Name string `json:"name" gorm:"column:name;primaryKey"`
	// TokenName is the symbol of the community's token.
	TokenName string `json:"tokenName" gorm:"column:token_name"`
	// TokenAddress is the contract address of the community's token.
	TokenAddress Address `json:"tokenAddress" gorm:"column:token_address"`
}

// Subscription is one (user, community) recurring payment agreement.
// It owns the dedicated subscription wallet and the sequence of
// pre-signed ticks the user committed to. Records are never deleted:
// consumed ticks stay for audit.
type Subscription struct {
	ID int64 `json:"-" gorm:"column:id;primaryKey;autoIncrement"`
	// User is the subscriber's own ledger address.
	User Address `json:"user" gorm:"column:user_address;uniqueIndex:idx_user_community"`
	// CommunityName is the community this subscription pays for.
	CommunityName string `json:"communityName" gorm:"column:community_name;uniqueIndex:idx_user_community"`
	// SubscriptionWallet is the dedicated wallet the ticks flow through.
	SubscriptionWallet Address `json:"subscriptionWallet" gorm:"column:subscription_wallet;index"`
	// PreSignedTicks is the append-only schedule of future renewals.
	PreSignedTicks TickList `json:"preSignedTicks" gorm:"column:pre_signed_ticks;type:jsonb"`
	// Telegram is the optional telegram username for renewal notices.
	Telegram string `json:"telegram,omitempty" gorm:"column:telegram;index"`
	// TelegramChatID is filled once the user messages the bot.
	TelegramChatID string `json:"-" gorm:"column:telegram_chat_id"`
	// Email is the optional email address for renewal notices.
	Email string `json:"email,omitempty" gorm:"column:email"`
	// CreatedAt is the Unix timestamp of the first subscribe call.
	CreatedAt int64 `json:"createdAt" gorm:"column:created_at"`
	// LapseNotifiedAt records when the lapse notice was sent, so one
	// lapse produces one notice. Cleared when new ticks arrive.
	LapseNotifiedAt int64 `json:"-" gorm:"column:lapse_notified_at"`
}

// SubscriptionStatus is the externally reported view of a subscription.
// StartedAt and ExpiresAt are nil when the user was never subscribed.
type SubscriptionStatus struct {
	Subscribed bool       `json:"subscribed"`
	StartedAt  *time.Time `json:"startedAt"`
	ExpiresAt  *time.Time `json:"expiresAt"`
}
