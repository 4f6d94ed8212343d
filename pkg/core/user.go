package core

import (
	"strings"
	"time"
)

// SetField names a set-valued profile field for AddToSet/PullFromSet.
type SetField string

const (
	FieldWatchlist SetField = "watchlist"
	FieldBlacklist SetField = "blacklist"
)

// User is one subscriber profile, keyed by the chat platform's user id.
// Watchlist and blacklist are sets of asset ids; both are always non-nil.
type User struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	Watchlist  []string  `json:"watchlist" gorm:"serializer:json"`
	Blacklist  []string  `json:"blacklist" gorm:"serializer:json"`
	MinProfit  float64   `json:"min_profit"` // fraction, 0.02 = 2%
	MinVolume  float64   `json:"min_volume"` // 24h volume floor, USD
	Target     string    `json:"target"`     // quote currency both legs must use
	UseTopList bool      `json:"use_top_list"`
	Paused     bool      `json:"paused"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ProfileDefaults are the process-wide values applied to new profiles and to
// profiles that never overrode a field.
type ProfileDefaults struct {
	MinProfit float64 // fraction
	MinVolume float64
	Target    string
}

// NewUser builds a profile with defaults for a first-contact user.
func NewUser(id int64, defaults ProfileDefaults) *User {
	now := time.Now().UTC()
	return &User{
		ID:        id,
		Watchlist: []string{},
		Blacklist: []string{},
		MinProfit: defaults.MinProfit,
		MinVolume: defaults.MinVolume,
		Target:    defaults.Target,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Normalize restores invariants on a profile loaded from storage:
// the set fields are never nil.
func (u *User) Normalize() {
	if u.Watchlist == nil {
		u.Watchlist = []string{}
	}
	if u.Blacklist == nil {
		u.Blacklist = []string{}
	}
}

// Blacklisted reports whether the asset id is excluded by this profile.
// The comparison is case-insensitive.
func (u *User) Blacklisted(assetID string) bool {
	for _, entry := range u.Blacklist {
		if strings.EqualFold(entry, assetID) {
			return true
		}
	}
	return false
}

// Set returns a pointer to the named set field, or nil for an unknown name.
func (u *User) Set(field SetField) *[]string {
	switch field {
	case FieldWatchlist:
		return &u.Watchlist
	case FieldBlacklist:
		return &u.Blacklist
	default:
		return nil
	}
}
