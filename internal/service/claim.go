package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/store"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util"
)

// ClaimArbiter serializes claim attempts per ticket and guarantees at most
// one active claimant. The store's SetClaimant is the single atomic decision
// point; everything after it is advisory rendering.
type ClaimArbiter struct {
	store         *store.TicketStore
	roles         platform.Roles
	messages      platform.Messages
	conversations platform.Conversations
	dispatcher    events.Dispatcher
	metrics       *observability.Metrics
	logger        *zap.Logger
}

// ArbiterDependencies bundles collaborators for the claim arbiter.
type ArbiterDependencies struct {
	Store         *store.TicketStore
	Roles         platform.Roles
	Messages      platform.Messages
	Conversations platform.Conversations
	Dispatcher    events.Dispatcher
	Metrics       *observability.Metrics
	Logger        *zap.Logger
}

// NewClaimArbiter constructs the arbiter.
func NewClaimArbiter(deps ArbiterDependencies) *ClaimArbiter {
	return &ClaimArbiter{
		store:         deps.Store,
		roles:         deps.Roles,
		messages:      deps.Messages,
		conversations: deps.Conversations,
		dispatcher:    deps.Dispatcher,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
	}
}

// Claim makes actorID the sole handler of a Pending ticket. The manager role
// check runs before the transition; a later claim against a Claimed ticket
// fails with AlreadyClaimed carrying the current handler. The visible marker
// update (summary field edit, 🟢 rename) happens only after the transition
// succeeds and is never rolled back on failure — the store is authoritative,
// the marker eventually consistent.
func (a *ClaimArbiter) Claim(ctx context.Context, ticketID, actorID string) (domain.Ticket, error) {
	isManager, err := a.roles.HasManagerRole(ctx, actorID)
	if err != nil {
		return domain.Ticket{}, apperrors.NewTransportFailure("role lookup", err)
	}
	if !isManager {
		return domain.Ticket{}, apperrors.NewUnauthorized("manager role required to claim a ticket")
	}

	ticket, err := a.store.SetClaimant(ticketID, actorID)
	if err != nil {
		return domain.Ticket{}, err
	}

	a.applyClaimMarker(ctx, ticketID, actorID)

	a.metrics.Inc(observability.CounterTicketsClaimed)
	if a.dispatcher != nil {
		_ = a.dispatcher.Publish(ctx, events.Event{
			Type:     events.EventTicketClaimed,
			TicketID: ticketID,
			ActorID:  actorID,
			Payload:  events.TicketClaimedPayload{ClaimantID: actorID},
		})
	}
	return ticket, nil
}

func (a *ClaimArbiter) applyClaimMarker(ctx context.Context, ticketID, actorID string) {
	msgs, err := a.messages.History(ctx, ticketID, summaryFetchLimit)
	if err != nil {
		a.logger.Warn("claim marker: history fetch failed",
			zap.String("ticket_id", ticketID), zap.Error(err))
	} else if summary := findSummaryMessage(msgs); summary == nil {
		a.logger.Warn("claim marker: summary message not found",
			zap.String("ticket_id", ticketID))
	} else {
		fields := make([]platform.EmbedField, len(summary.Fields))
		copy(fields, summary.Fields)
		for i, field := range fields {
			if field.Name == platform.FieldPending {
				fields[i] = platform.EmbedField{Name: platform.FieldHandledBy, Value: mention(actorID)}
			}
		}
		if err := a.messages.EditFields(ctx, ticketID, summary.ID, summary.Title, fields); err != nil {
			a.logger.Warn("claim marker: summary edit failed",
				zap.String("ticket_id", ticketID), zap.Error(err))
		}
	}

	info, err := a.conversations.Info(ctx, ticketID)
	if err != nil {
		a.logger.Warn("claim marker: conversation lookup failed",
			zap.String("ticket_id", ticketID), zap.Error(err))
		return
	}
	claimedName := platform.MarkerClaimed + "-" + strings.TrimPrefix(info.Name, platform.MarkerPending+"-")
	if err := a.conversations.Rename(ctx, ticketID, claimedName); err != nil {
		a.logger.Warn("claim marker: rename failed",
			zap.String("ticket_id", ticketID), zap.Error(err))
	}
}
