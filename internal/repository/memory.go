package repository

import (
	"fmt"
	"sync"

	"github.com/subvia/subscriptor/internal/models"
)

// MemoryDB keeps all data in process memory. It backs development mode
// and the package tests; production uses PostgresDB.
type MemoryDB struct {
	mu            sync.RWMutex
	communities   map[string]*models.Community
	subscriptions map[subscriptionKey]*models.Subscription
	nextID        int64
}

type subscriptionKey struct {
	user          models.Address
	communityName string
}

// NewMemoryDB creates an empty in-memory repository.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		communities:   make(map[string]*models.Community),
		subscriptions: make(map[subscriptionKey]*models.Subscription),
		nextID:        1,
	}
}

func (db *MemoryDB) DeclareCommunity(community *models.Community) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	clone := *community
	db.communities[community.Name] = &clone
	return nil
}

func (db *MemoryDB) GetCommunity(name string) (*models.Community, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	community, ok := db.communities[name]
	if !ok {
		return nil, nil
	}
	clone := *community
	return &clone, nil
}

func (db *MemoryDB) AddSubscription(subscription *models.Subscription) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	key := subscriptionKey{user: subscription.User, communityName: subscription.CommunityName}
	if _, exists := db.subscriptions[key]; exists {
		return fmt.Errorf("subscription already exists for %s / %s", subscription.User.Hex(), subscription.CommunityName)
	}

	clone := cloneSubscription(subscription)
	clone.ID = db.nextID
	db.nextID++
	db.subscriptions[key] = clone
	return nil
}

func (db *MemoryDB) GetSubscription(user models.Address, communityName string) (*models.Subscription, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	subscription, ok := db.subscriptions[subscriptionKey{user: user, communityName: communityName}]
	if !ok {
		return nil, nil
	}
	return cloneSubscription(subscription), nil
}

func (db *MemoryDB) GetUserSubscriptions(user models.Address) ([]*models.Subscription, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var result []*models.Subscription
	for key, subscription := range db.subscriptions {
		if key.user == user {
			result = append(result, cloneSubscription(subscription))
		}
	}
	return result, nil
}

func (db *MemoryDB) ListSubscriptions() ([]*models.Subscription, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	result := make([]*models.Subscription, 0, len(db.subscriptions))
	for _, subscription := range db.subscriptions {
		result = append(result, cloneSubscription(subscription))
	}
	return result, nil
}

func (db *MemoryDB) AppendTicks(user models.Address, communityName string, ticks []models.SubscriptionTick) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	subscription, ok := db.subscriptions[subscriptionKey{user: user, communityName: communityName}]
	if !ok {
		return fmt.Errorf("subscription not found for %s / %s", user.Hex(), communityName)
	}

	subscription.PreSignedTicks = append(subscription.PreSignedTicks, ticks...)
	return nil
}

func (db *MemoryDB) MarkTickConsumed(user models.Address, communityName string, index int) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	subscription, ok := db.subscriptions[subscriptionKey{user: user, communityName: communityName}]
	if !ok {
		return fmt.Errorf("subscription not found for %s / %s", user.Hex(), communityName)
	}

	if index < 0 || index >= len(subscription.PreSignedTicks) {
		return fmt.Errorf("tick index %d out of range (%d ticks)", index, len(subscription.PreSignedTicks))
	}

	subscription.PreSignedTicks[index].Consumed = true
	return nil
}

func (db *MemoryDB) SetLapseNotified(user models.Address, communityName string, at int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	subscription, ok := db.subscriptions[subscriptionKey{user: user, communityName: communityName}]
	if !ok {
		return fmt.Errorf("subscription not found for %s / %s", user.Hex(), communityName)
	}

	subscription.LapseNotifiedAt = at
	return nil
}

func (db *MemoryDB) BindTelegramChatID(username, chatID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, subscription := range db.subscriptions {
		if subscription.Telegram == username {
			subscription.TelegramChatID = chatID
		}
	}
	return nil
}

func cloneSubscription(subscription *models.Subscription) *models.Subscription {
	clone := *subscription
	clone.PreSignedTicks = append(models.TickList(nil), subscription.PreSignedTicks...)
	return &clone
}
