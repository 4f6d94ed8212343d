package notification

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/MohammedTeir/ArbitrageScanner/pkg/core"
	"github.com/MohammedTeir/ArbitrageScanner/pkg/logger"
)

// PendingAction identifies which profile mutation the next free-text message
// from a user should perform.
type PendingAction string

const (
	ActionNone            PendingAction = ""
	ActionSetTarget       PendingAction = "set_target"
	ActionWatchlistAdd    PendingAction = "watchlist_add"
	ActionWatchlistRemove PendingAction = "watchlist_remove"
	ActionBlacklistAdd    PendingAction = "blacklist_add"
	ActionBlacklistRemove PendingAction = "blacklist_remove"
	ActionSetMinProfit    PendingAction = "set_min_profit"
	ActionSetMinVolume    PendingAction = "set_min_volume"
)

// Prompt returns the question sent to the user when the action is armed.
func (a PendingAction) Prompt() string {
	switch a {
	case ActionSetTarget:
		return "Send the target currency symbol (1-5 characters, e.g. USDT)."
	case ActionWatchlistAdd:
		return "Send the coin id to add to your watchlist (e.g. bitcoin)."
	case ActionWatchlistRemove:
		return "Send the coin id to remove from your watchlist."
	case ActionBlacklistAdd:
		return "Send the coin id to blacklist."
	case ActionBlacklistRemove:
		return "Send the coin id to remove from your blacklist."
	case ActionSetMinProfit:
		return "Send the minimum profit in percent (e.g. 2.5)."
	case ActionSetMinVolume:
		return "Send the minimum 24h volume in USD (whole number)."
	default:
		return ""
	}
}

// SessionStore holds the single pending-input slot per user. Arming a new
// action always overrides a stale one; Take clears the slot unconditionally,
// so a user must press a button again after an invalid reply.
type SessionStore struct {
	mu      sync.Mutex
	pending map[int64]PendingAction
}

func NewSessionStore() *SessionStore {
	return &SessionStore{pending: make(map[int64]PendingAction)}
}

// Expect arms the pending-input slot for a user.
func (s *SessionStore) Expect(userID int64, action PendingAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[userID] = action
}

// Take returns the armed action and clears the slot.
func (s *SessionStore) Take(userID int64) PendingAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	action := s.pending[userID]
	delete(s.pending, userID)
	return action
}

// Dispatcher routes captured free-text replies into profile mutations.
type Dispatcher struct {
	users    core.UserStore
	sessions *SessionStore
	log      logger.Logger
}

func NewDispatcher(users core.UserStore, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		users:    users,
		sessions: NewSessionStore(),
		log:      log,
	}
}

// Expect arms the slot and returns the prompt to show the user.
func (d *Dispatcher) Expect(userID int64, action PendingAction) string {
	d.sessions.Expect(userID, action)
	return action.Prompt()
}

// HandleText consumes one inbound message. When the sender has an armed
// action the message is validated and applied, and the slot is released no
// matter the outcome. The returned reply is user-facing; handled is false
// when the sender was not mid-conversation.
func (d *Dispatcher) HandleText(ctx context.Context, userID int64, text string) (reply string, handled bool) {
	action := d.sessions.Take(userID)
	if action == ActionNone {
		return "", false
	}

	reply, err := d.apply(ctx, userID, action, text)
	if err != nil {
		d.log.WithError(err).
			WithFields(map[string]any{"user": userID, "action": string(action)}).
			Error("failed to apply profile mutation")
		return "Something went wrong, please try again.", true
	}

	return reply, true
}

func (d *Dispatcher) apply(ctx context.Context, userID int64, action PendingAction, text string) (string, error) {
	input := strings.TrimSpace(text)

	switch action {
	case ActionSetTarget:
		return d.setTarget(ctx, userID, input)
	case ActionWatchlistAdd:
		return d.addToSet(ctx, userID, core.FieldWatchlist, input, "watchlist")
	case ActionWatchlistRemove:
		return d.pullFromSet(ctx, userID, core.FieldWatchlist, input, "watchlist")
	case ActionBlacklistAdd:
		return d.addToSet(ctx, userID, core.FieldBlacklist, strings.ToLower(input), "blacklist")
	case ActionBlacklistRemove:
		return d.pullFromSet(ctx, userID, core.FieldBlacklist, strings.ToLower(input), "blacklist")
	case ActionSetMinProfit:
		return d.setMinProfit(ctx, userID, input)
	case ActionSetMinVolume:
		return d.setMinVolume(ctx, userID, input)
	default:
		return "", fmt.Errorf("unknown pending action %q", action)
	}
}

func (d *Dispatcher) setTarget(ctx context.Context, userID int64, input string) (string, error) {
	symbol := strings.ToUpper(input)
	if n := utf8.RuneCountInString(symbol); n < 1 || n > 5 {
		return "Invalid symbol: use 1-5 characters. Press the button again to retry.", nil
	}

	err := d.users.Update(ctx, userID, func(u *core.User) {
		u.Target = symbol
	})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("Target currency set to `%s`.", symbol), nil
}

func (d *Dispatcher) addToSet(ctx context.Context, userID int64, field core.SetField, value, label string) (string, error) {
	if value == "" {
		return "Empty coin id. Press the button again to retry.", nil
	}

	added, err := d.users.AddToSet(ctx, userID, field, value)
	if err != nil {
		return "", err
	}
	if !added {
		return fmt.Sprintf("`%s` is already on your %s.", value, label), nil
	}

	return fmt.Sprintf("Added `%s` to your %s.", value, label), nil
}

func (d *Dispatcher) pullFromSet(ctx context.Context, userID int64, field core.SetField, value, label string) (string, error) {
	if value == "" {
		return "Empty coin id. Press the button again to retry.", nil
	}

	removed, err := d.users.PullFromSet(ctx, userID, field, value)
	if err != nil {
		return "", err
	}
	if !removed {
		return fmt.Sprintf("`%s` is not on your %s.", value, label), nil
	}

	return fmt.Sprintf("Removed `%s` from your %s.", value, label), nil
}

func (d *Dispatcher) setMinProfit(ctx context.Context, userID int64, input string) (string, error) {
	percent, err := strconv.ParseFloat(input, 64)
	if err != nil || percent <= 0 {
		return "Invalid value: send a positive number of percent. Press the button again to retry.", nil
	}

	err = d.users.Update(ctx, userID, func(u *core.User) {
		u.MinProfit = percent / 100
	})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("Minimum profit set to `%.2f%%`.", percent), nil
}

func (d *Dispatcher) setMinVolume(ctx context.Context, userID int64, input string) (string, error) {
	volume, err := strconv.Atoi(input)
	if err != nil || volume <= 0 {
		return "Invalid value: send a positive whole number. Press the button again to retry.", nil
	}

	err = d.users.Update(ctx, userID, func(u *core.User) {
		u.MinVolume = float64(volume)
	})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("Minimum 24h volume set to `%d` USD.", volume), nil
}
