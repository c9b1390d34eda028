package models

import (
	"fmt"
	"time"
)

// NotificationEvent is the subscription lifecycle event being announced.
type NotificationEvent string

const (
	EventRenewed NotificationEvent = "renewed"
	EventLapsed  NotificationEvent = "lapsed"
)

// Notification is a subscription lifecycle notice delivered to the
// subscriber over whichever contact channels they registered.
type Notification struct {
	CommunityName string            `json:"communityName"`
	Event         NotificationEvent `json:"event"`
	ExpiresAt     *time.Time        `json:"expiresAt,omitempty"`
}

func (n *Notification) String() string {
	switch n.Event {
	case EventRenewed:
		if n.ExpiresAt != nil {
			return fmt.Sprintf("Your subscription to %s was renewed and is paid until %s.",
				n.CommunityName, n.ExpiresAt.Format(time.RFC1123))
		}
		return fmt.Sprintf("Your subscription to %s was renewed.", n.CommunityName)
	case EventLapsed:
		return fmt.Sprintf("Your subscription to %s has lapsed: no eligible pre-signed renewal is left.", n.CommunityName)
	default:
		return fmt.Sprintf("Subscription to %s: %s", n.CommunityName, n.Event)
	}
}

type NotificationService interface {
	SendNotification(subscription *Subscription, notification *Notification)
}
