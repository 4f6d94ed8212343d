package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MohammedTeir/ArbitrageScanner/pkg/core"
	"github.com/samber/lo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLStorage implements core.UserStore on a SQL database via GORM, for
// deployments that already run a relational store. The set-valued fields are
// serialized as JSON columns; set semantics are enforced in Go, matching the
// BuntDB backend.
type SQLStorage struct {
	db *gorm.DB
}

// NewFromSQLite creates a SQL-backed user store on a SQLite database file.
func NewFromSQLite(dbPath string, opts ...gorm.Option) (*SQLStorage, error) {
	return FromSQL(sqlite.Open(dbPath), opts...)
}

// FromSQL creates a SQL-backed user store. The caller picks the dialector,
// so the package stays driver agnostic.
func FromSQL(dialect gorm.Dialector, opts ...gorm.Option) (*SQLStorage, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&core.User{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLStorage{db: db}, nil
}

// Get implements core.UserStore.
func (s *SQLStorage) Get(ctx context.Context, id int64) (*core.User, error) {
	var user core.User

	result := s.db.WithContext(ctx).First(&user, id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, core.ErrUserNotFound
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", id, result.Error)
	}

	user.Normalize()
	return &user, nil
}

// Upsert implements core.UserStore.
func (s *SQLStorage) Upsert(ctx context.Context, user *core.User) error {
	user.Normalize()
	user.UpdatedAt = time.Now().UTC()

	if result := s.db.WithContext(ctx).Save(user); result.Error != nil {
		return fmt.Errorf("failed to store user: %w", result.Error)
	}
	return nil
}

// Update implements core.UserStore inside a database transaction.
func (s *SQLStorage) Update(ctx context.Context, id int64, mutate func(*core.User)) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user core.User

		result := tx.First(&user, id)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return core.ErrUserNotFound
		}
		if result.Error != nil {
			return fmt.Errorf("failed to load user %d: %w", id, result.Error)
		}

		user.Normalize()
		mutate(&user)
		user.UpdatedAt = time.Now().UTC()

		if result := tx.Save(&user); result.Error != nil {
			return fmt.Errorf("failed to update user: %w", result.Error)
		}
		return nil
	})
}

// AddToSet implements core.UserStore.
func (s *SQLStorage) AddToSet(ctx context.Context, id int64, field core.SetField, value string) (bool, error) {
	added := false
	err := s.Update(ctx, id, func(user *core.User) {
		target := user.Set(field)
		if target == nil {
			return
		}
		exists := lo.ContainsBy(*target, func(entry string) bool {
			return strings.EqualFold(entry, value)
		})
		if exists {
			return
		}
		*target = append(*target, value)
		added = true
	})
	return added, err
}

// PullFromSet implements core.UserStore.
func (s *SQLStorage) PullFromSet(ctx context.Context, id int64, field core.SetField, value string) (bool, error) {
	removed := false
	err := s.Update(ctx, id, func(user *core.User) {
		target := user.Set(field)
		if target == nil {
			return
		}
		kept := lo.Filter(*target, func(entry string, _ int) bool {
			return !strings.EqualFold(entry, value)
		})
		removed = len(kept) != len(*target)
		*target = kept
	})
	return removed, err
}

// All implements core.UserStore.
func (s *SQLStorage) All(ctx context.Context) ([]*core.User, error) {
	var users []*core.User

	result := s.db.WithContext(ctx).Order("created_at").Find(&users)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to fetch users: %w", result.Error)
	}

	for _, user := range users {
		user.Normalize()
	}

	return users, nil
}

// Close closes the database connection.
func (s *SQLStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}
