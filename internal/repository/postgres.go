package repository

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/core-coin/liqnotify/internal/models"
	"github.com/core-coin/liqnotify/pkg/logger"
)

// subscriptionRecord is the row layout of the subscriptions table. ID keeps
// registry order stable.
type subscriptionRecord struct {
	ID           int64          `gorm:"column:id;primaryKey;autoIncrement"`
	TokenAddress string         `gorm:"column:token_address;uniqueIndex;not null"`
	Users        pq.StringArray `gorm:"column:users;type:text[];not null"`
	CreatedAt    int64          `gorm:"column:created_at;autoCreateTime"`
}

func (subscriptionRecord) TableName() string {
	return "subscriptions"
}

func (r subscriptionRecord) toModel() models.Subscription {
	users := make([]string, len(r.Users))
	copy(users, r.Users)
	return models.Subscription{TokenAddress: r.TokenAddress, Users: users}
}

// PostgresDB is the transactional registry backend. Each operation runs in
// its own transaction, so concurrent writers never lose updates.
type PostgresDB struct {
	logger *logger.Logger

	Conn *gorm.DB
}

func NewPostgresDB(user, password, dbname, host string, port int, logger *logger.Logger) (*PostgresDB, error) {
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
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.AutoMigrate(&subscriptionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %w", err)
	}
	logger.Info("Successfully connected to PostgreSQL!")
	return &PostgresDB{Conn: db, logger: logger}, nil
}

func (db *PostgresDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.Close()
}

func (db *PostgresDB) Load() ([]models.Subscription, error) {
	var records []subscriptionRecord
	if err := db.Conn.Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}

	subs := make([]models.Subscription, 0, len(records))
	for _, r := range records {
		subs = append(subs, r.toModel())
	}
	return subs, nil
}

func (db *PostgresDB) Save(subscriptions []models.Subscription) error {
	return db.Conn.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&subscriptionRecord{}).Error; err != nil {
			return fmt.Errorf("failed to clear subscriptions: %w", err)
		}
		if len(subscriptions) == 0 {
			return nil
		}

		records := make([]subscriptionRecord, 0, len(subscriptions))
		for _, sub := range subscriptions {
			users := pq.StringArray(sub.Users)
			if users == nil {
				users = pq.StringArray{}
			}
			records = append(records, subscriptionRecord{TokenAddress: sub.TokenAddress, Users: users})
		}
		if err := tx.Create(&records).Error; err != nil {
			return fmt.Errorf("failed to save subscriptions: %w", err)
		}
		return nil
	})
}

func (db *PostgresDB) Exists(token string) (bool, error) {
	var count int64
	if err := db.Conn.Model(&subscriptionRecord{}).Where("token_address = ?", token).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check if token exists: %w", err)
	}
	return count > 0, nil
}

func (db *PostgresDB) IsSubscribed(token, user string) (bool, error) {
	var count int64
	if err := db.Conn.Model(&subscriptionRecord{}).
		Where("token_address = ? AND ? = ANY(users)", token, user).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check subscription: %w", err)
	}
	return count > 0, nil
}

func (db *PostgresDB) SubscribersOf(token string) ([]string, bool, error) {
	var records []subscriptionRecord
	if err := db.Conn.Where("token_address = ?", token).Order("id").Limit(1).Find(&records).Error; err != nil {
		return nil, false, fmt.Errorf("failed to get subscribers: %w", err)
	}
	if len(records) == 0 {
		return nil, false, nil
	}
	return records[0].toModel().Users, true, nil
}

func (db *PostgresDB) AddSubscription(token, user string) error {
	record := subscriptionRecord{TokenAddress: token, Users: pq.StringArray{user}}
	if err := db.Conn.Create(&record).Error; err != nil {
		return fmt.Errorf("failed to add subscription: %w", err)
	}
	db.logger.Debug("Subscription added", "token", token, "user", user)
	return nil
}

func (db *PostgresDB) AddUser(token, user string) error {
	err := db.Conn.Model(&subscriptionRecord{}).
		Where("token_address = ?", token).
		Update("users", gorm.Expr("array_append(users, ?)", user)).Error
	if err != nil {
		return fmt.Errorf("failed to add user to subscription: %w", err)
	}
	return nil
}

func (db *PostgresDB) Remove(token string) error {
	if err := db.Conn.Where("token_address = ?", token).Delete(&subscriptionRecord{}).Error; err != nil {
		return fmt.Errorf("failed to remove subscription: %w", err)
	}
	return nil
}
