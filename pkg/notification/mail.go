package notification

import (
	"fmt"
	"net/smtp"

	"github.com/MohammedTeir/ArbitrageScanner/pkg/core"
	log "github.com/sirupsen/logrus"
)

// Mail broadcasts scanner notifications over SMTP. It is an optional
// secondary channel; alert delivery to subscribers stays on Telegram.
type Mail struct {
	auth              smtp.Auth
	smtpServerPort    int
	smtpServerAddress string
	to                string
	from              string
}

// MailParams contains all parameters needed to initialize a Mail instance.
type MailParams struct {
	SMTPServerPort    int
	SMTPServerAddress string
	To                string
	From              string
	Password          string
}

// NewMail creates a new Mail instance with the provided parameters.
func NewMail(params MailParams) Mail {
	return Mail{
		from:              params.From,
		to:                params.To,
		smtpServerPort:    params.SMTPServerPort,
		smtpServerAddress: params.SMTPServerAddress,
		auth: smtp.PlainAuth(
			"",
			params.From,
			params.Password,
			params.SMTPServerAddress,
		),
	}
}

// Notify implements core.Notifier.
func (m Mail) Notify(text string) {
	serverAddress := fmt.Sprintf("%s:%d", m.smtpServerAddress, m.smtpServerPort)

	message := fmt.Sprintf(
		"To: \"Subscriber\" <%s>\nFrom: \"ArbitrageScanner\" <%s>\nSubject: Arbitrage alert\n\n%s",
		m.to,
		m.from,
		text,
	)

	err := smtp.SendMail(
		serverAddress,
		m.auth,
		m.from,
		[]string{m.to},
		[]byte(message),
	)
	if err != nil {
		log.WithError(err).Error("failed to send mail notification")
	}
}

// OnError implements core.Notifier.
func (m Mail) OnError(err error) {
	m.Notify(fmt.Sprintf("Scanner error:\n%s", err.Error()))
}

// SendAlert implements core.AlertSink. Mail has a single recipient, so the
// user id is ignored.
func (m Mail) SendAlert(_ int64, alert core.Alert) error {
	text := fmt.Sprintf(
		"%s\n%s (%s)\nBuy:  %s at %s\nSell: %s at %s\n24h volume: %s\nProfit: %s %s",
		alert.Headline,
		alert.CoinName, alert.Pair,
		alert.Buy.Market, alert.Buy.PriceLabel,
		alert.Sell.Market, alert.Sell.PriceLabel,
		alert.VolumeLabel,
		alert.ProfitLabel, alert.TrustGlyph,
	)
	m.Notify(text)
	return nil
}
