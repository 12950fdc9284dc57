package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strconv"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"

	"cardvault/internal/model"
)

// SMTPConfig holds the mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailNotifier sends notices over SMTP in the background.
type EmailNotifier struct {
	cfg  SMTPConfig
	log  logrus.FieldLogger
	send func(e *email.Email) error
}

// NewEmailNotifier creates an SMTP backed notifier.
func NewEmailNotifier(cfg SMTPConfig, log logrus.FieldLogger) *EmailNotifier {
	n := &EmailNotifier{cfg: cfg, log: log}
	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	n.send = func(e *email.Email) error { return e.Send(addr, auth) }
	return n
}

func (n *EmailNotifier) CardBlocked(_ context.Context, owner model.User, card model.Card) {
	n.dispatch(n.blockedMessage(owner, card))
}

func (n *EmailNotifier) CardExpired(_ context.Context, owner model.User, card model.Card) {
	n.dispatch(n.expiredMessage(owner, card))
}

func (n *EmailNotifier) blockedMessage(owner model.User, card model.Card) *email.Email {
	e := email.NewEmail()
	e.From = n.cfg.From
	e.To = []string{owner.Email}
	e.Subject = "Your card has been blocked"
	e.Text = []byte(fmt.Sprintf(
		"Dear %s,\n\nYour card %s has been blocked and can no longer be used for transfers.\n"+
			"Contact support if you did not request this.\n\nBest regards,\nCard Service",
		owner.Name, card.MaskedNumber,
	))
	return e
}

func (n *EmailNotifier) expiredMessage(owner model.User, card model.Card) *email.Email {
	e := email.NewEmail()
	e.From = n.cfg.From
	e.To = []string{owner.Email}
	e.Subject = "Your card has expired"
	e.Text = []byte(fmt.Sprintf(
		"Dear %s,\n\nYour card %s expired on %s and has been deactivated.\n\nBest regards,\nCard Service",
		owner.Name, card.MaskedNumber, card.ExpiryDate.Format("2006-01-02"),
	))
	return e
}

func (n *EmailNotifier) dispatch(e *email.Email) {
	go func() {
		if err := n.send(e); err != nil {
			n.log.WithError(err).WithField("to", e.To).Error("failed to send email")
			return
		}
		n.log.WithField("to", e.To).Infof("email sent: %s", e.Subject)
	}()
}
