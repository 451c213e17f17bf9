package service

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/store"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util"
)

// summaryFetchLimit bounds the history fetch when looking for the summary
// message; it is always among the first messages of a ticket conversation.
const summaryFetchLimit = 10

var (
	mentionPattern   = regexp.MustCompile(`<@!?(\d+)>`)
	timestampPattern = regexp.MustCompile(`<t:(\d+):F>`)
)

// RecoveryScanner rebuilds the ticket store from the conversations that
// survive a restart. It runs once, before the gateway starts delivering
// events, so it never races a concurrent writer.
type RecoveryScanner struct {
	store         *store.TicketStore
	conversations platform.Conversations
	messages      platform.Messages
	dispatcher    events.Dispatcher
	metrics       *observability.Metrics
	logger        *zap.Logger
	parentID      string
	selfID        string
}

// ScannerDependencies bundles collaborators for the recovery scanner.
type ScannerDependencies struct {
	Store         *store.TicketStore
	Conversations platform.Conversations
	Messages      platform.Messages
	Dispatcher    events.Dispatcher
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	ParentID      string
	SelfID        string
}

// NewRecoveryScanner constructs the scanner.
func NewRecoveryScanner(deps ScannerDependencies) *RecoveryScanner {
	return &RecoveryScanner{
		store:         deps.Store,
		conversations: deps.Conversations,
		messages:      deps.Messages,
		dispatcher:    deps.Dispatcher,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		parentID:      deps.ParentID,
		selfID:        deps.SelfID,
	}
}

// Rebuild enumerates ticket conversations under the parent and repopulates
// the store from their summary messages. Conversations that fail to parse are
// logged and skipped; partial recovery is strictly better than none. Ids
// already present in the store are left untouched, so a re-run is a no-op.
func (r *RecoveryScanner) Rebuild(ctx context.Context) error {
	convs, err := r.conversations.ListUnder(ctx, r.parentID)
	if err != nil {
		return apperrors.NewTransportFailure("list conversations", err)
	}

	scanned, recovered, skipped := 0, 0, 0
	for _, conv := range convs {
		if !isTicketName(conv.Name) {
			continue
		}
		if r.store.Contains(conv.ID) {
			continue
		}
		scanned++
		r.metrics.Inc(observability.CounterRecoveryScanned)

		ticket, err := r.parseConversation(ctx, conv)
		if err != nil {
			skipped++
			r.metrics.Inc(observability.CounterRecoverySkipped)
			r.logger.Warn("recovery: skipping conversation",
				zap.String("conversation_id", conv.ID),
				zap.String("name", conv.Name),
				zap.Error(err))
			continue
		}
		if err := r.store.Create(ticket); err != nil {
			skipped++
			r.metrics.Inc(observability.CounterRecoverySkipped)
			r.logger.Warn("recovery: could not register ticket",
				zap.String("conversation_id", conv.ID),
				zap.Error(err))
			continue
		}
		recovered++
		r.metrics.Inc(observability.CounterRecoveryRecovered)
	}

	r.logger.Info("recovery scan complete",
		zap.Int("scanned", scanned),
		zap.Int("recovered", recovered),
		zap.Int("skipped", skipped))
	if r.dispatcher != nil {
		_ = r.dispatcher.Publish(ctx, events.Event{
			Type: events.EventRecoveryCompleted,
			Payload: events.RecoveryCompletedPayload{
				Scanned:   scanned,
				Recovered: recovered,
				Skipped:   skipped,
			},
		})
	}
	return nil
}

func (r *RecoveryScanner) parseConversation(ctx context.Context, conv platform.ConversationInfo) (domain.Ticket, error) {
	msgs, err := r.messages.History(ctx, conv.ID, summaryFetchLimit)
	if err != nil {
		return domain.Ticket{}, apperrors.NewTransportFailure("fetch history", err)
	}
	summary := r.findOwnSummary(msgs)
	if summary == nil {
		return domain.Ticket{}, apperrors.NewParseFailure(conv.ID, errors.New("no summary message"))
	}
	return ticketFromSummary(conv, *summary)
}

// findOwnSummary returns the newest bot-authored message carrying structured
// fields. When the scanner knows its own identity it insists on it, so a
// foreign bot's embeds cannot be mistaken for the summary.
func (r *RecoveryScanner) findOwnSummary(msgs []platform.Message) *platform.Message {
	for i := range msgs {
		msg := &msgs[i]
		if !msg.Bot || len(msg.Fields) == 0 {
			continue
		}
		if r.selfID != "" && msg.AuthorID != r.selfID {
			continue
		}
		return msg
	}
	return nil
}

// findSummaryMessage returns the newest bot-authored message with fields.
// History results arrive newest first.
func findSummaryMessage(msgs []platform.Message) *platform.Message {
	for i := range msgs {
		if msgs[i].Bot && len(msgs[i].Fields) > 0 {
			return &msgs[i]
		}
	}
	return nil
}

// ticketFromSummary reconstructs a Ticket from a conversation's summary
// message. The User field is mandatory; Handled by decides Pending vs
// Claimed; Category and the remaining fields are restored when present.
func ticketFromSummary(conv platform.ConversationInfo, summary platform.Message) (domain.Ticket, error) {
	ticket := domain.Ticket{
		ID:        conv.ID,
		CreatedAt: summary.Timestamp,
		Status:    domain.TicketStatusPending,
	}

	for _, field := range summary.Fields {
		switch field.Name {
		case platform.FieldUser:
			if id := extractMention(field.Value); id != "" {
				ticket.CreatorID = id
			}
		case platform.FieldHandledBy:
			if id := extractMention(field.Value); id != "" {
				claimant := id
				ticket.ClaimantID = &claimant
				ticket.Status = domain.TicketStatusClaimed
			}
		case platform.FieldCategory:
			ticket.Category = field.Value
		case platform.FieldCreatedOn:
			if ts := extractTimestamp(field.Value); !ts.IsZero() {
				ticket.CreatedAt = ts
			}
		case platform.FieldPending:
			// informational, nothing to restore
		default:
			ticket.Responses = append(ticket.Responses, domain.FieldValue{Name: field.Name, Value: field.Value})
		}
	}

	if ticket.CreatorID == "" {
		return domain.Ticket{}, apperrors.NewParseFailure(conv.ID, errors.New("summary has no parseable User field"))
	}
	ticket.CreatorName = creatorNameFromConversation(conv.Name, ticket.Category)
	return ticket, nil
}

func isTicketName(name string) bool {
	return strings.HasPrefix(name, platform.MarkerPending) || strings.HasPrefix(name, platform.MarkerClaimed)
}

// creatorNameFromConversation recovers the creator name embedded in the
// conversation name ({marker}-{creator}-{category}); best effort only, the
// close path falls back to a platform lookup when it comes back empty.
func creatorNameFromConversation(name, category string) string {
	base := name
	base = strings.TrimPrefix(base, platform.MarkerPending+"-")
	base = strings.TrimPrefix(base, platform.MarkerClaimed+"-")
	if category != "" {
		base = strings.TrimSuffix(base, "-"+category)
	}
	if base == name {
		return ""
	}
	return base
}

func extractMention(value string) string {
	match := mentionPattern.FindStringSubmatch(value)
	if match == nil {
		return ""
	}
	return match[1]
}

func extractTimestamp(value string) time.Time {
	match := timestampPattern.FindStringSubmatch(value)
	if match == nil {
		return time.Time{}
	}
	unix, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(unix, 0).UTC()
}
