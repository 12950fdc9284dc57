// Package notify tells card owners about changes they did not initiate.
package notify

import (
	"context"

	"github.com/sirupsen/logrus"

	"cardvault/internal/model"
)

// Notifier delivers card lifecycle notices. Implementations must not block
// the caller for long and never fail the operation that triggered them.
type Notifier interface {
	CardBlocked(ctx context.Context, owner model.User, card model.Card)
	CardExpired(ctx context.Context, owner model.User, card model.Card)
}

// LogNotifier writes notices to the application log.
type LogNotifier struct {
	log logrus.FieldLogger
}

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier(log logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) CardBlocked(_ context.Context, owner model.User, card model.Card) {
	n.log.WithFields(logrus.Fields{"user_id": owner.ID, "card_id": card.ID}).Info("card blocked")
}

func (n *LogNotifier) CardExpired(_ context.Context, owner model.User, card model.Card) {
	n.log.WithFields(logrus.Fields{"user_id": owner.ID, "card_id": card.ID}).Info("card expired")
}

// Nop discards all notices.
type Nop struct{}

func (Nop) CardBlocked(context.Context, model.User, model.Card) {}
func (Nop) CardExpired(context.Context, model.User, model.Card) {}
