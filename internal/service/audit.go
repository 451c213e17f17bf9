package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/events"
)

// AuditService logs lifecycle events for operators.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventTicketOpened, a.handleTicketOpened)
	a.dispatcher.Subscribe(events.EventTicketClaimed, a.handleTicketClaimed)
	a.dispatcher.Subscribe(events.EventTicketClosed, a.handleTicketClosed)
	a.dispatcher.Subscribe(events.EventRecoveryCompleted, a.handleRecoveryCompleted)
}

func (a *AuditService) handleTicketOpened(ctx context.Context, event events.Event) error {
	a.logger.Info("TicketOpened", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (a *AuditService) handleTicketClaimed(ctx context.Context, event events.Event) error {
	a.logger.Info("TicketClaimed", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (a *AuditService) handleTicketClosed(ctx context.Context, event events.Event) error {
	a.logger.Info("TicketClosed", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (a *AuditService) handleRecoveryCompleted(ctx context.Context, event events.Event) error {
	a.logger.Info("RecoveryCompleted", zap.Any("payload", event.Payload))
	return nil
}
