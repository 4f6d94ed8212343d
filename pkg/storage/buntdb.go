// Package storage provides the persistent store implementations for
// subscriber profiles and the cached top coin listing.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MohammedTeir/ArbitrageScanner/pkg/core"
	"github.com/tidwall/buntdb"
)

const (
	userKeyPrefix = "user:"
	topCoinsKey   = "top100coins"

	// UserIndexName orders profile iteration by creation time.
	UserIndexName = "users_created"
)

// BuntStorage implements core.UserStore and core.TopCoinStore on BuntDB,
// storing each document as JSON under a keyed namespace. Profile mutations
// run inside a single write transaction, which gives the single-document
// atomicity the scanner relies on; the top coin snapshot lives under one key
// so Replace is atomic for concurrent readers.
type BuntStorage struct {
	db *buntdb.DB
}

// BuntConfig holds configuration options for BuntDB.
type BuntConfig struct {
	SyncPolicy buntdb.SyncPolicy
}

// DefaultBuntConfig returns the default configuration for BuntDB.
func DefaultBuntConfig() BuntConfig {
	return BuntConfig{SyncPolicy: buntdb.EverySecond}
}

// NewFromMemory creates an in-memory store with default configuration.
func NewFromMemory() (*BuntStorage, error) {
	return NewBuntStorage(":memory:", DefaultBuntConfig())
}

// NewFromFile creates a file-backed store with default configuration.
func NewFromFile(file string) (*BuntStorage, error) {
	return NewBuntStorage(file, DefaultBuntConfig())
}

// NewBuntStorage creates a store instance with the specified configuration.
func NewBuntStorage(sourceFile string, config BuntConfig) (*BuntStorage, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	if err := db.SetConfig(buntdb.Config{
		SyncPolicy: config.SyncPolicy,
	}); err != nil {
		return nil, fmt.Errorf("failed to configure buntdb: %w", err)
	}

	if err := db.CreateIndex(UserIndexName, userKeyPrefix+"*", buntdb.IndexJSON("created_at")); err != nil {
		return nil, fmt.Errorf("failed to create user index: %w", err)
	}

	return &BuntStorage{db: db}, nil
}

func userKey(id int64) string {
	return fmt.Sprintf("%s%d", userKeyPrefix, id)
}

// Get implements core.UserStore.
func (b *BuntStorage) Get(_ context.Context, id int64) (*core.User, error) {
	var user core.User

	err := b.db.View(func(tx *buntdb.Tx) error {
		value, err := tx.Get(userKey(id))
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(value), &user)
	})

	if errors.Is(err, buntdb.ErrNotFound) {
		return nil, core.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", id, err)
	}

	user.Normalize()
	return &user, nil
}

// Upsert implements core.UserStore.
func (b *BuntStorage) Upsert(_ context.Context, user *core.User) error {
	user.Normalize()
	user.UpdatedAt = time.Now().UTC()

	return b.db.Update(func(tx *buntdb.Tx) error {
		content, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("failed to marshal user: %w", err)
		}

		if _, _, err := tx.Set(userKey(user.ID), string(content), nil); err != nil {
			return fmt.Errorf("failed to store user: %w", err)
		}

		return nil
	})
}

// Update implements core.UserStore. The read-mutate-write runs in one write
// transaction, so concurrent field updates to the same profile serialize.
func (b *BuntStorage) Update(_ context.Context, id int64, mutate func(*core.User)) error {
	err := b.db.Update(func(tx *buntdb.Tx) error {
		key := userKey(id)

		value, err := tx.Get(key)
		if err != nil {
			return err
		}

		var user core.User
		if err := json.Unmarshal([]byte(value), &user); err != nil {
			return fmt.Errorf("failed to unmarshal user: %w", err)
		}

		user.Normalize()
		mutate(&user)
		user.UpdatedAt = time.Now().UTC()

		content, err := json.Marshal(&user)
		if err != nil {
			return fmt.Errorf("failed to marshal user: %w", err)
		}

		_, _, err = tx.Set(key, string(content), nil)
		return err
	})

	if errors.Is(err, buntdb.ErrNotFound) {
		return core.ErrUserNotFound
	}
	return err
}

// AddToSet implements core.UserStore with set semantics: adding a value that
// is already present leaves the profile unchanged.
func (b *BuntStorage) AddToSet(ctx context.Context, id int64, field core.SetField, value string) (bool, error) {
	added := false
	err := b.Update(ctx, id, func(user *core.User) {
		target := user.Set(field)
		if target == nil {
			return
		}
		for _, entry := range *target {
			if strings.EqualFold(entry, value) {
				return
			}
		}
		*target = append(*target, value)
		added = true
	})
	return added, err
}

// PullFromSet implements core.UserStore. Removing an absent value is a no-op
// reported through the returned bool.
func (b *BuntStorage) PullFromSet(ctx context.Context, id int64, field core.SetField, value string) (bool, error) {
	removed := false
	err := b.Update(ctx, id, func(user *core.User) {
		target := user.Set(field)
		if target == nil {
			return
		}
		kept := (*target)[:0]
		for _, entry := range *target {
			if strings.EqualFold(entry, value) {
				removed = true
				continue
			}
			kept = append(kept, entry)
		}
		*target = kept
	})
	return removed, err
}

// All implements core.UserStore, returning profiles in creation order.
func (b *BuntStorage) All(_ context.Context) ([]*core.User, error) {
	users := make([]*core.User, 0)

	err := b.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend(UserIndexName, func(key, value string) bool {
			var user core.User
			if err := json.Unmarshal([]byte(value), &user); err != nil {
				// A corrupt document must not hide the rest.
				return true
			}
			user.Normalize()
			users = append(users, &user)
			return true
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

// Replace implements core.TopCoinStore. The snapshot is a single document,
// so readers observe either the previous or the new complete list.
func (b *BuntStorage) Replace(_ context.Context, coins []core.CoinInfo) error {
	content, err := json.Marshal(coins)
	if err != nil {
		return fmt.Errorf("failed to marshal top coins: %w", err)
	}

	return b.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(topCoinsKey, string(content), nil)
		return err
	})
}

// List implements core.TopCoinStore.
func (b *BuntStorage) List(_ context.Context) ([]core.CoinInfo, error) {
	var coins []core.CoinInfo

	err := b.db.View(func(tx *buntdb.Tx) error {
		value, err := tx.Get(topCoinsKey)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(value), &coins)
	})

	if errors.Is(err, buntdb.ErrNotFound) {
		return nil, core.ErrEmptyCache
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load top coins: %w", err)
	}

	return coins, nil
}

// Close closes the database.
func (b *BuntStorage) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
