package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardvault/internal/logging"
	"cardvault/internal/model"
)

func TestEmailNotifier_Messages(t *testing.T) {
	n := NewEmailNotifier(SMTPConfig{Host: "smtp.local", Port: 25, From: "bank@example.com"}, logging.Discard())
	owner := model.User{ID: uuid.New(), Name: "Anna", Email: "anna@example.com"}
	card := model.Card{
		ID:           uuid.New(),
		MaskedNumber: "**** **** **** 1234",
		ExpiryDate:   time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
	}

	blocked := n.blockedMessage(owner, card)
	assert.Equal(t, "bank@example.com", blocked.From)
	assert.Equal(t, []string{"anna@example.com"}, blocked.To)
	assert.Contains(t, string(blocked.Text), "**** **** **** 1234")

	expired := n.expiredMessage(owner, card)
	assert.Equal(t, "Your card has expired", expired.Subject)
	assert.Contains(t, string(expired.Text), "2026-04-01")
}

func TestEmailNotifier_DispatchSendsInBackground(t *testing.T) {
	n := NewEmailNotifier(SMTPConfig{From: "bank@example.com"}, logging.Discard())
	sent := make(chan *email.Email, 2)
	n.send = func(e *email.Email) error {
		sent <- e
		if e.Subject == "Your card has expired" {
			return errors.New("relay down")
		}
		return nil
	}

	owner := model.User{Email: "x@example.com"}
	n.CardBlocked(context.Background(), owner, model.Card{})
	n.CardExpired(context.Background(), owner, model.Card{})

	subjects := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case e := <-sent:
			subjects[e.Subject] = true
		case <-time.After(time.Second):
			require.FailNow(t, "email not dispatched")
		}
	}
	assert.True(t, subjects["Your card has been blocked"])
	assert.True(t, subjects["Your card has expired"])
}
