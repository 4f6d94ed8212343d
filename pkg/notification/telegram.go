// Package notification provides the chat transports of the scanner: the
// Telegram controller with its conversational settings flow, and an optional
// mail broadcaster.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MohammedTeir/ArbitrageScanner/pkg/core"
	"github.com/MohammedTeir/ArbitrageScanner/pkg/logger"
	tb "gopkg.in/tucnak/telebot.v2"
)

const (
	pollingTimeout = 10 * time.Second

	// noticeTTL is how long transient conversation notices stay before
	// the bot deletes them to keep chats tidy.
	noticeTTL = time.Minute
)

// Inline settings buttons. The Unique tag routes callbacks; labels are
// rebuilt per user so toggles reflect the profile state.
var (
	btnPause     = tb.InlineButton{Unique: "toggle_pause", Text: "⏸ Pause alerts"}
	btnTopList   = tb.InlineButton{Unique: "toggle_top", Text: "🏆 Top-100 mode"}
	btnWatchAdd  = tb.InlineButton{Unique: "watch_add", Text: "➕ Watch coin"}
	btnWatchDel  = tb.InlineButton{Unique: "watch_del", Text: "➖ Unwatch coin"}
	btnBlackAdd  = tb.InlineButton{Unique: "black_add", Text: "🚫 Blacklist coin"}
	btnBlackDel  = tb.InlineButton{Unique: "black_del", Text: "✅ Unblacklist coin"}
	btnMinProfit = tb.InlineButton{Unique: "set_profit", Text: "📈 Min profit"}
	btnMinVolume = tb.InlineButton{Unique: "set_volume", Text: "💧 Min volume"}
	btnTarget    = tb.InlineButton{Unique: "set_target", Text: "💱 Target currency"}
)

// Telegram implements core.NotifierWithStart and core.AlertSink on top of a
// Telegram bot. Configuration buttons arm the conversation dispatcher; the
// next free-text message from that user is routed into the armed mutation.
type Telegram struct {
	settings   core.TelegramSettings
	defaults   core.ProfileDefaults
	users      core.UserStore
	dispatcher *Dispatcher
	client     *tb.Bot
	log        logger.Logger
}

// TelegramOption is a function that configures a Telegram instance.
type TelegramOption func(*Telegram)

// NewTelegram creates and initializes the Telegram controller.
func NewTelegram(
	users core.UserStore,
	dispatcher *Dispatcher,
	settings core.TelegramSettings,
	defaults core.ProfileDefaults,
	log logger.Logger,
	options ...TelegramOption,
) (*Telegram, error) {
	if settings.Token == "" {
		return nil, errors.New("telegram token is required")
	}

	poller := &tb.LongPoller{Timeout: pollingTimeout}

	client, err := tb.NewBot(tb.Settings{
		ParseMode: tb.ModeMarkdown,
		Token:     settings.Token,
		Poller:    newUpdateFilter(poller, log),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	if err := setupCommands(client); err != nil {
		return nil, fmt.Errorf("failed to set commands: %w", err)
	}

	bot := &Telegram{
		settings:   settings,
		defaults:   defaults,
		users:      users,
		dispatcher: dispatcher,
		client:     client,
		log:        log,
	}

	for _, option := range options {
		option(bot)
	}

	registerHandlers(client, bot)

	return bot, nil
}

// newUpdateFilter drops updates carrying neither a message nor a callback.
func newUpdateFilter(poller *tb.LongPoller, log logger.Logger) *tb.MiddlewarePoller {
	return tb.NewMiddlewarePoller(poller, func(u *tb.Update) bool {
		if u.Message == nil && u.Callback == nil {
			log.Debug("dropping update without message or callback")
			return false
		}
		return true
	})
}

// setupCommands configures available bot commands.
func setupCommands(client *tb.Bot) error {
	return client.SetCommands([]tb.Command{
		{Text: "/start", Description: "Subscribe and show settings"},
		{Text: "/settings", Description: "Show your scanner settings"},
		{Text: "/help", Description: "Display help instructions"},
	})
}

// registerHandlers registers command, text and callback handlers.
func registerHandlers(client *tb.Bot, bot *Telegram) {
	client.Handle("/start", bot.StartHandle)
	client.Handle("/settings", bot.SettingsHandle)
	client.Handle("/help", bot.HelpHandle)
	client.Handle(tb.OnText, bot.TextHandle)

	client.Handle(&btnPause, bot.toggleHandler(func(u *core.User) { u.Paused = !u.Paused }))
	client.Handle(&btnTopList, bot.toggleHandler(func(u *core.User) { u.UseTopList = !u.UseTopList }))

	client.Handle(&btnWatchAdd, bot.promptHandler(ActionWatchlistAdd))
	client.Handle(&btnWatchDel, bot.promptHandler(ActionWatchlistRemove))
	client.Handle(&btnBlackAdd, bot.promptHandler(ActionBlacklistAdd))
	client.Handle(&btnBlackDel, bot.promptHandler(ActionBlacklistRemove))
	client.Handle(&btnMinProfit, bot.promptHandler(ActionSetMinProfit))
	client.Handle(&btnMinVolume, bot.promptHandler(ActionSetMinVolume))
	client.Handle(&btnTarget, bot.promptHandler(ActionSetTarget))
}

// Start begins the Telegram long-poll loop and notifies the admins.
func (t *Telegram) Start() {
	go t.client.Start()
	t.Notify("Arbitrage scanner online.")
}

// Command handlers
// ----------------

// StartHandle subscribes the sender, creating a default profile on first
// contact, and shows the settings panel.
func (t *Telegram) StartHandle(m *tb.Message) {
	user, err := t.ensureUser(m.Sender)
	if err != nil {
		t.log.WithError(err).Error("failed to ensure user profile")
		t.sendMessage(m.Sender, "Something went wrong, please try again.")
		return
	}

	t.sendMessage(m.Sender,
		"Welcome! I watch exchange listings for cross-market spreads and alert "+
			"you when one clears your thresholds.")
	t.sendSettings(m.Sender, user)
}

// SettingsHandle shows the settings panel.
func (t *Telegram) SettingsHandle(m *tb.Message) {
	user, err := t.ensureUser(m.Sender)
	if err != nil {
		t.log.WithError(err).Error("failed to ensure user profile")
		t.sendMessage(m.Sender, "Something went wrong, please try again.")
		return
	}

	t.sendSettings(m.Sender, user)
}

// HelpHandle displays available commands.
func (t *Telegram) HelpHandle(m *tb.Message) {
	commands, err := t.client.GetCommands()
	if err != nil {
		t.log.WithError(err).Error("failed to get commands")
		return
	}

	lines := make([]string, 0, len(commands))
	for _, command := range commands {
		lines = append(lines, fmt.Sprintf("%s - %s", command.Text, command.Description))
	}

	t.sendMessage(m.Sender, strings.Join(lines, "\n"))
}

// TextHandle routes free text through the conversation dispatcher. Messages
// from users who are not mid-conversation get a generic hint.
func (t *Telegram) TextHandle(m *tb.Message) {
	reply, handled := t.dispatcher.HandleText(context.Background(), m.Sender.ID, m.Text)
	if !handled {
		t.sendMessage(m.Sender, "Use /settings to configure the scanner.")
		return
	}

	notice := t.sendMessage(m.Sender, reply)
	t.scheduleDelete(notice, noticeTTL)
}

// Callback handlers
// -----------------

// promptHandler arms the pending-input slot for the pressed button and sends
// the matching prompt. Pressing another button simply re-arms the slot.
func (t *Telegram) promptHandler(action PendingAction) func(*tb.Callback) {
	return func(c *tb.Callback) {
		if _, err := t.ensureUser(c.Sender); err != nil {
			t.log.WithError(err).Error("failed to ensure user profile")
			t.respond(c, "Something went wrong")
			return
		}

		prompt := t.dispatcher.Expect(c.Sender.ID, action)
		t.sendMessage(c.Sender, prompt)
		t.respond(c, "")
	}
}

// toggleHandler applies a one-step toggle mutation and refreshes the
// settings panel in place.
func (t *Telegram) toggleHandler(mutate func(*core.User)) func(*tb.Callback) {
	return func(c *tb.Callback) {
		ctx := context.Background()

		if _, err := t.ensureUser(c.Sender); err != nil {
			t.log.WithError(err).Error("failed to ensure user profile")
			t.respond(c, "Something went wrong")
			return
		}

		if err := t.users.Update(ctx, c.Sender.ID, mutate); err != nil {
			t.log.WithError(err).Error("failed to toggle setting")
			t.respond(c, "Something went wrong")
			return
		}

		user, err := t.users.Get(ctx, c.Sender.ID)
		if err != nil {
			t.log.WithError(err).Error("failed to reload user profile")
			t.respond(c, "")
			return
		}

		if c.Message != nil {
			if _, err := t.client.Edit(c.Message, settingsText(user), settingsMarkup(user)); err != nil {
				t.log.WithError(err).Error("failed to edit settings message")
			}
		}
		t.respond(c, "Saved")
	}
}

// Alert and broadcast delivery
// ----------------------------

// SendAlert implements core.AlertSink.
func (t *Telegram) SendAlert(userID int64, alert core.Alert) error {
	_, err := t.client.Send(
		&tb.User{ID: userID},
		renderAlert(alert),
		&tb.SendOptions{ParseMode: tb.ModeMarkdown, DisableWebPagePreview: true},
	)
	if err != nil {
		return fmt.Errorf("failed to deliver alert to %d: %w", userID, err)
	}
	return nil
}

// Notify implements core.Notifier, broadcasting to the configured admins.
func (t *Telegram) Notify(text string) {
	for _, admin := range t.settings.Admins {
		if _, err := t.client.Send(&tb.User{ID: admin}, text); err != nil {
			t.log.WithError(err).Error("failed to send notification")
		}
	}
}

// OnError implements core.Notifier.
func (t *Telegram) OnError(err error) {
	var sb strings.Builder
	sb.WriteString("🛑 ERROR\n-----\n")
	sb.WriteString(err.Error())
	t.Notify(sb.String())
}

// Helper methods
// --------------

// ensureUser loads the sender's profile, creating one with defaults on
// first contact.
func (t *Telegram) ensureUser(sender *tb.User) (*core.User, error) {
	ctx := context.Background()

	user, err := t.users.Get(ctx, sender.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, core.ErrUserNotFound) {
		return nil, err
	}

	user = core.NewUser(sender.ID, t.defaults)
	if err := t.users.Upsert(ctx, user); err != nil {
		return nil, err
	}

	t.log.Infof("new subscriber %d", sender.ID)
	return user, nil
}

func (t *Telegram) sendSettings(to *tb.User, user *core.User) {
	t.sendMessage(to, settingsText(user), settingsMarkup(user))
}

func (t *Telegram) sendMessage(to *tb.User, text string, options ...any) *tb.Message {
	msg, err := t.client.Send(to, text, options...)
	if err != nil {
		t.log.WithError(err).Error("failed to send message")
		return nil
	}
	return msg
}

func (t *Telegram) respond(c *tb.Callback, text string) {
	if err := t.client.Respond(c, &tb.CallbackResponse{Text: text}); err != nil {
		t.log.WithError(err).Error("failed to answer callback")
	}
}

// scheduleDelete removes a message after the delay. Best effort: a failed
// delete is only logged.
func (t *Telegram) scheduleDelete(msg *tb.Message, delay time.Duration) {
	if msg == nil {
		return
	}
	time.AfterFunc(delay, func() {
		if err := t.client.Delete(msg); err != nil {
			t.log.WithError(err).Debug("failed to delete notice")
		}
	})
}

// Rendering
// ---------

// settingsMarkup builds the inline keyboard, with toggle labels reflecting
// the current profile state.
func settingsMarkup(user *core.User) *tb.ReplyMarkup {
	pause := btnPause
	if user.Paused {
		pause.Text = "▶️ Resume alerts"
	}

	top := btnTopList
	if user.UseTopList {
		top.Text = "📃 Watchlist mode"
	}

	return &tb.ReplyMarkup{
		InlineKeyboard: [][]tb.InlineButton{
			{pause, top},
			{btnWatchAdd, btnWatchDel},
			{btnBlackAdd, btnBlackDel},
			{btnMinProfit, btnMinVolume},
			{btnTarget},
		},
	}
}

func settingsText(user *core.User) string {
	var sb strings.Builder

	sb.WriteString("*Scanner settings*\n")
	fmt.Fprintf(&sb, "Status: `%s`\n", onOff(!user.Paused, "active", "paused"))
	fmt.Fprintf(&sb, "Coin set: `%s`\n", onOff(user.UseTopList, "top-100 by volume", "watchlist"))
	fmt.Fprintf(&sb, "Min profit: `%.2f%%`\n", user.MinProfit*100)
	fmt.Fprintf(&sb, "Min 24h volume: `%.0f` USD\n", user.MinVolume)
	fmt.Fprintf(&sb, "Target currency: `%s`\n", user.Target)
	fmt.Fprintf(&sb, "Watchlist: %s\n", formatSet(user.Watchlist))
	fmt.Fprintf(&sb, "Blacklist: %s", formatSet(user.Blacklist))

	return sb.String()
}

func renderAlert(alert core.Alert) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "*%s*\n", alert.Headline)
	fmt.Fprintf(&sb, "*Coin*: %s (`%s`)\n", alert.CoinName, alert.Pair)
	fmt.Fprintf(&sb, "*Buy*: %s at `%s`\n", marketLink(alert.Buy), alert.Buy.PriceLabel)
	fmt.Fprintf(&sb, "*Sell*: %s at `%s`\n", marketLink(alert.Sell), alert.Sell.PriceLabel)
	fmt.Fprintf(&sb, "*24h volume*: `%s`\n", alert.VolumeLabel)
	fmt.Fprintf(&sb, "*Profit*: `%s`", alert.ProfitLabel)

	if alert.TrustGlyph != "" {
		sb.WriteString(" " + alert.TrustGlyph)
	}

	return sb.String()
}

func marketLink(leg core.AlertLeg) string {
	if leg.URL == "" {
		return leg.Market
	}
	return fmt.Sprintf("[%s](%s)", leg.Market, leg.URL)
}

func onOff(condition bool, yes, no string) string {
	if condition {
		return yes
	}
	return no
}

func formatSet(values []string) string {
	if len(values) == 0 {
		return "_empty_"
	}
	return "`" + strings.Join(values, "`, `") + "`"
}
