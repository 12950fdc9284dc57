package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"cardvault/internal/model"
	"cardvault/internal/repository"
)

const (
	auditBatchSize     = 10
	auditFlushInterval = time.Second
	auditBufferSize    = 100
)

// Auditor records card changes that bypass the transfer ledger.
type Auditor interface {
	Record(ctx context.Context, event model.CardEvent)
}

// AuditLog writes card events asynchronously in batches.
type AuditLog struct {
	repo   repository.CardEventRepository
	log    logrus.FieldLogger
	events chan model.CardEvent
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAuditLog creates an audit log and starts its writer.
func NewAuditLog(repo repository.CardEventRepository, log logrus.FieldLogger) *AuditLog {
	a := &AuditLog{
		repo:   repo,
		log:    log,
		events: make(chan model.CardEvent, auditBufferSize),
		done:   make(chan struct{}),
	}
	go a.worker()
	return a
}

// Record queues an event. When the buffer is full the event is written synchronously.
func (a *AuditLog) Record(ctx context.Context, event model.CardEvent) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.write(context.WithoutCancel(ctx), []model.CardEvent{event})
		return
	}

	select {
	case a.events <- event:
	default:
		a.write(context.WithoutCancel(ctx), []model.CardEvent{event})
	}
}

// Close flushes queued events and stops the writer.
func (a *AuditLog) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.events)
	a.mu.Unlock()
	<-a.done
}

func (a *AuditLog) worker() {
	defer close(a.done)
	ctx := context.Background()
	batch := make([]model.CardEvent, 0, auditBatchSize)
	ticker := time.NewTicker(auditFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-a.events:
			if !ok {
				a.write(ctx, batch)
				return
			}
			batch = append(batch, event)
			if len(batch) >= auditBatchSize {
				a.write(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				a.write(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

func (a *AuditLog) write(ctx context.Context, events []model.CardEvent) {
	if len(events) == 0 {
		return
	}
	if err := a.repo.CreateBatch(ctx, events); err != nil {
		a.log.WithError(err).WithField("count", len(events)).Error("failed to write card events")
	}
}

func cardEvent(kind model.CardEventKind, cardID, actorID uuid.UUID) model.CardEvent {
	event := model.CardEvent{CardID: cardID, Kind: kind}
	if actorID != uuid.Nil {
		id := actorID
		event.ActorID = &id
	}
	return event
}

func balanceEvent(cardID, actorID uuid.UUID, oldBalance, newBalance decimal.Decimal) model.CardEvent {
	event := cardEvent(model.CardEventBalanceSet, cardID, actorID)
	event.OldBalance = decimal.NewNullDecimal(oldBalance)
	event.NewBalance = decimal.NewNullDecimal(newBalance)
	return event
}

type nopAuditor struct{}

func (nopAuditor) Record(context.Context, model.CardEvent) {}
