package repository

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/subvia/subscriptor/internal/models"
	"github.com/subvia/subscriptor/pkg/logger"
)

type PostgresDB struct {
	logger *logger.Logger

	Conn *gorm.DB
}

func NewPostgresDB(user, password, dbname, host string, port int, logger *logger.Logger) (models.Repository, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)

	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %s", err)
	}

	if err := db.AutoMigrate(&models.Community{}, &models.Subscription{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %s", err)
	}
	logger.Info("Successfully connected to PostgreSQL!")
	return &PostgresDB{Conn: db, logger: logger}, nil
}

func (db *PostgresDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %s", err)
	}
	return sqlDB.Close()
}

func (db *PostgresDB) DeclareCommunity(community *models.Community) error {
	if err := db.Conn.Save(community).Error; err != nil {
		return fmt.Errorf("failed to declare community: %s", err)
	}

	return nil
}

func (db *PostgresDB) GetCommunity(name string) (*models.Community, error) {
	var community models.Community
	if err := db.Conn.Where("name = ?", name).First(&community).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get community: %s", err)
	}

	return &community, nil
}

func (db *PostgresDB) AddSubscription(subscription *models.Subscription) error {
	if err := db.Conn.Create(subscription).Error; err != nil {
		return fmt.Errorf("failed to add subscription: %s", err)
	}

	return nil
}

func (db *PostgresDB) GetSubscription(user models.Address, communityName string) (*models.Subscription, error) {
	var subscription models.Subscription
	if err := db.Conn.Where("user_address = ? AND community_name = ?", user, communityName).First(&subscription).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscription: %s", err)
	}

	return &subscription, nil
}

func (db *PostgresDB) GetUserSubscriptions(user models.Address) ([]*models.Subscription, error) {
	var subscriptions []*models.Subscription
	if err := db.Conn.Where("user_address = ?", user).Find(&subscriptions).Error; err != nil {
		return nil, fmt.Errorf("failed to get user subscriptions: %s", err)
	}

	return subscriptions, nil
}

func (db *PostgresDB) ListSubscriptions() ([]*models.Subscription, error) {
	var subscriptions []*models.Subscription
	if err := db.Conn.Find(&subscriptions).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %s", err)
	}

	return subscriptions, nil
}

func (db *PostgresDB) AppendTicks(user models.Address, communityName string, ticks []models.SubscriptionTick) error {
	return db.Conn.Transaction(func(tx *gorm.DB) error {
		var subscription models.Subscription
		if err := tx.Where("user_address = ? AND community_name = ?", user, communityName).First(&subscription).Error; err != nil {
			return fmt.Errorf("failed to get subscription: %s", err)
		}

		subscription.PreSignedTicks = append(subscription.PreSignedTicks, ticks...)
		if err := tx.Save(&subscription).Error; err != nil {
			return fmt.Errorf("failed to append ticks: %s", err)
		}

		return nil
	})
}

func (db *PostgresDB) MarkTickConsumed(user models.Address, communityName string, index int) error {
	return db.Conn.Transaction(func(tx *gorm.DB) error {
		var subscription models.Subscription
		if err := tx.Where("user_address = ? AND community_name = ?", user, communityName).First(&subscription).Error; err != nil {
			return fmt.Errorf("failed to get subscription: %s", err)
		}

		if index < 0 || index >= len(subscription.PreSignedTicks) {
			return fmt.Errorf("tick index %d out of range (%d ticks)", index, len(subscription.PreSignedTicks))
		}

		subscription.PreSignedTicks[index].Consumed = true
		if err := tx.Save(&subscription).Error; err != nil {
			return fmt.Errorf("failed to mark tick consumed: %s", err)
		}

		return nil
	})
}

func (db *PostgresDB) SetLapseNotified(user models.Address, communityName string, at int64) error {
	if err := db.Conn.Model(&models.Subscription{}).
		Where("user_address = ? AND community_name = ?", user, communityName).
		Update("lapse_notified_at", at).Error; err != nil {
		return fmt.Errorf("failed to set lapse marker: %s", err)
	}

	return nil
}

func (db *PostgresDB) BindTelegramChatID(username, chatID string) error {
	if err := db.Conn.Model(&models.Subscription{}).
		Where("telegram = ?", username).
		Update("telegram_chat_id", chatID).Error; err != nil {
		return fmt.Errorf("failed to bind telegram chat ID: %s", err)
	}

	return nil
}
