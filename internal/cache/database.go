package cache

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pawhaven/pawhaven/internal/models"
)

// DatabaseStore implements the claim Store interface using the primary SQL
// database. It is the fallback when Redis is not configured.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDatabaseStore constructs a database-backed Store.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	if db == nil {
		return nil
	}
	return &DatabaseStore{db: db, now: time.Now}
}

// TryClaim acquires the key inside a transaction holding a row-level lock so
// that two concurrent claimants cannot both succeed.
func (s *DatabaseStore) TryClaim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if s == nil {
		return false, errors.New("cache: database store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ttl = claimTTL(ttl)

	now := s.now()
	granted := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.CacheEntry
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&entry, "key = ?", key).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			granted = true
			entry = models.CacheEntry{
				Key:       key,
				Value:     []byte("1"),
				ExpiresAt: now.Add(ttl),
			}
			return tx.Create(&entry).Error
		}
		if err != nil {
			return err
		}

		if entry.ExpiresAt.After(now) {
			// Live claim held by an earlier caller.
			return nil
		}

		granted = true
		entry.ExpiresAt = now.Add(ttl)
		return tx.Save(&entry).Error
	})
	if err != nil {
		return false, err
	}

	return granted, nil
}

// Release removes claims from the store.
func (s *DatabaseStore) Release(ctx context.Context, keys ...string) error {
	if s == nil {
		return errors.New("cache: database store not initialised")
	}
	if len(keys) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	return s.db.WithContext(ctx).Where("key IN ?", keys).Delete(&models.CacheEntry{}).Error
}
