package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/clock"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/forms"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/store"
	"github.com/spec-kit/ticket-bot/internal/transcript"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util"
)

const pendingNotice = "Please wait, a staff member will handle your ticket."

// TicketLifecycle orchestrates a ticket from submission to closure. State
// transitions go exclusively through the ticket store's atomic operations;
// everything the platform renders (summary message, markers) is derived from
// that state, never the other way around — except at startup, when the
// recovery scan rebuilds the store from the summary messages.
type TicketLifecycle struct {
	store         *store.TicketStore
	guard         store.CooldownGuard
	conversations platform.Conversations
	messages      platform.Messages
	users         platform.Users
	dispatcher    events.Dispatcher
	metrics       *observability.Metrics
	logger        *zap.Logger
	clk           clock.Clock

	parentID     string
	logChannelID string
	managerRole  string
	historyLimit int
	deleteGrace  time.Duration
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	Store         *store.TicketStore
	Guard         store.CooldownGuard
	Conversations platform.Conversations
	Messages      platform.Messages
	Users         platform.Users
	Dispatcher    events.Dispatcher
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	Clock         clock.Clock

	ParentID      string
	LogChannelID  string
	ManagerRoleID string
	HistoryLimit  int
	DeleteGrace   time.Duration
}

// NewTicketLifecycle constructs the service.
func NewTicketLifecycle(deps LifecycleDependencies) *TicketLifecycle {
	historyLimit := deps.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 100
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &TicketLifecycle{
		store:         deps.Store,
		guard:         deps.Guard,
		conversations: deps.Conversations,
		messages:      deps.Messages,
		users:         deps.Users,
		dispatcher:    deps.Dispatcher,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		clk:           clk,
		parentID:      deps.ParentID,
		logChannelID:  deps.LogChannelID,
		managerRole:   deps.ManagerRoleID,
		historyLimit:  historyLimit,
		deleteGrace:   deps.DeleteGrace,
	}
}

// Submit validates a ticket request, applies the cooldown, creates the
// restricted conversation and registers the Pending ticket. The summary
// message posted here is the durable record the recovery scan parses later.
func (s *TicketLifecycle) Submit(ctx context.Context, req domain.TicketRequest) (domain.Ticket, error) {
	if err := forms.Validate(req.Category, req.Responses); err != nil {
		return domain.Ticket{}, err
	}

	accepted, retryAfter, err := s.guard.TryAccept(ctx, req.SubmitterID)
	if err != nil {
		// The guard must not block ticket creation when its backend is down.
		s.logger.Warn("cooldown guard unavailable, accepting submission", zap.Error(err))
	} else if !accepted {
		return domain.Ticket{}, apperrors.NewThrottled(retryAfter)
	}

	name := fmt.Sprintf("%s-%s-%s", platform.MarkerPending, transcript.SanitizeName(req.SubmitterName), req.Category)
	conv, err := s.conversations.CreateRestricted(ctx, platform.CreateConversationInput{
		Name:          name,
		ParentID:      s.parentID,
		CreatorID:     req.SubmitterID,
		ManagerRoleID: s.managerRole,
	})
	if err != nil {
		return domain.Ticket{}, apperrors.NewTransportFailure("create conversation", err)
	}

	ticket := domain.Ticket{
		ID:          conv.ID,
		CreatorID:   req.SubmitterID,
		CreatorName: req.SubmitterName,
		Category:    req.Category,
		Responses:   req.Responses,
		CreatedAt:   s.clk.Now(),
		Status:      domain.TicketStatusPending,
	}
	if err := s.store.Create(ticket); err != nil {
		return domain.Ticket{}, err
	}

	title := fmt.Sprintf("🎟️ %s Ticket", capitalize(req.Category))
	content := mention(req.SubmitterID)
	if _, err := s.messages.SendFields(ctx, conv.ID, content, title, summaryFields(ticket)); err != nil {
		// The conversation exists and the ticket is registered; the summary
		// can still be replayed by a manager, so do not roll back.
		s.logger.Error("failed to post ticket summary",
			zap.String("ticket_id", conv.ID),
			zap.Error(err))
	}

	s.metrics.Inc(observability.CounterTicketsOpened)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketOpened,
		TicketID: ticket.ID,
		ActorID:  req.SubmitterID,
		Payload: events.TicketOpenedPayload{
			CreatorID: req.SubmitterID,
			Category:  req.Category,
		},
	})
	return ticket, nil
}

// Close transitions a ticket to Closed, exports its transcript to the audit
// log conversation and the creator's direct messages, and schedules the
// backing conversation for deletion after the grace delay. The two transcript
// deliveries are independent best-effort attempts.
func (s *TicketLifecycle) Close(ctx context.Context, ticketID string) (domain.Ticket, error) {
	ticket, err := s.store.Get(ticketID)
	if err != nil {
		return domain.Ticket{}, err
	}

	msgs, err := s.messages.History(ctx, ticketID, s.historyLimit)
	if err != nil {
		return domain.Ticket{}, apperrors.NewTransportFailure("fetch history", err)
	}

	creatorName := ticket.CreatorName
	if creatorName == "" {
		if name, err := s.users.Username(ctx, ticket.CreatorID); err == nil {
			creatorName = name
		} else {
			creatorName = ticket.CreatorID
		}
	}
	doc := transcript.Render(creatorName, s.clk.Now(), msgs)

	// The removal is the authoritative close; a concurrent second close loses
	// here and reports NotFound instead of re-exporting.
	closed, err := s.store.Close(ticketID)
	if err != nil {
		return domain.Ticket{}, err
	}

	s.deliverTranscript(ctx, closed, doc)
	s.scheduleDeletion(ticketID)

	s.metrics.Inc(observability.CounterTicketsClosed)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketClosed,
		TicketID: closed.ID,
		ActorID:  closed.CreatorID,
		Payload: events.TicketClosedPayload{
			CreatorID:      closed.CreatorID,
			ClaimantID:     closed.ClaimantID,
			FinalStatus:    domain.TicketStatusClosed,
			TranscriptName: doc.Filename,
		},
	})
	return closed, nil
}

// Export renders the transcript of a live ticket on demand, without closing it.
func (s *TicketLifecycle) Export(ctx context.Context, ticketID string) (transcript.Document, error) {
	ticket, err := s.store.Get(ticketID)
	if err != nil {
		return transcript.Document{}, err
	}
	msgs, err := s.messages.History(ctx, ticketID, s.historyLimit)
	if err != nil {
		return transcript.Document{}, apperrors.NewTransportFailure("fetch history", err)
	}
	creatorName := ticket.CreatorName
	if creatorName == "" {
		creatorName = ticket.CreatorID
	}
	return transcript.Render(creatorName, s.clk.Now(), msgs), nil
}

// Get returns the live ticket for a conversation id.
func (s *TicketLifecycle) Get(ticketID string) (domain.Ticket, error) {
	return s.store.Get(ticketID)
}

func (s *TicketLifecycle) deliverTranscript(ctx context.Context, ticket domain.Ticket, doc transcript.Document) {
	if s.logChannelID != "" {
		note := fmt.Sprintf("📥 Ticket transcript: %s", doc.Filename)
		if err := s.messages.SendFile(ctx, s.logChannelID, note, doc.Filename, doc.Body); err != nil {
			s.metrics.Inc(observability.CounterTranscriptFailed)
			s.logger.Error("failed to deliver transcript to log conversation",
				zap.String("ticket_id", ticket.ID),
				zap.Error(apperrors.NewTransportFailure("send transcript", err)))
		} else {
			s.metrics.Inc(observability.CounterTranscriptDelivered)
		}
	}

	dmNote := "📄 Here is the transcript of the ticket that was closed:"
	if err := s.messages.DirectFile(ctx, ticket.CreatorID, dmNote, doc.Filename, doc.Body); err != nil {
		s.metrics.Inc(observability.CounterTranscriptFailed)
		s.logger.Error("failed to deliver transcript to creator",
			zap.String("ticket_id", ticket.ID),
			zap.String("creator_id", ticket.CreatorID),
			zap.Error(apperrors.NewTransportFailure("send transcript dm", err)))
	} else {
		s.metrics.Inc(observability.CounterTranscriptDelivered)
	}
}

func (s *TicketLifecycle) scheduleDeletion(conversationID string) {
	if s.deleteGrace <= 0 {
		s.deleteConversation(conversationID)
		return
	}
	// Participants get a moment to read the closure notice. If the process
	// shuts down first the conversation is orphaned, which is acceptable.
	time.AfterFunc(s.deleteGrace, func() {
		s.deleteConversation(conversationID)
	})
}

func (s *TicketLifecycle) deleteConversation(conversationID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.conversations.Delete(ctx, conversationID); err != nil {
		s.logger.Error("failed to delete ticket conversation",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
	}
}

func (s *TicketLifecycle) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clk.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

// summaryFields builds the structured summary message for a ticket. Field
// layout is the durable schema: User and, once claimed, Handled by must stay
// parseable by the recovery scan.
func summaryFields(ticket domain.Ticket) []platform.EmbedField {
	fields := []platform.EmbedField{
		{Name: platform.FieldUser, Value: mention(ticket.CreatorID), Inline: true},
		{Name: platform.FieldCategory, Value: ticket.Category, Inline: true},
	}
	for _, response := range ticket.Responses {
		value := response.Value
		if value == "" {
			value = "N/A"
		}
		fields = append(fields, platform.EmbedField{Name: response.Name, Value: value})
	}
	fields = append(fields,
		platform.EmbedField{Name: platform.FieldCreatedOn, Value: fmt.Sprintf("<t:%d:F>", ticket.CreatedAt.Unix())},
		platform.EmbedField{Name: platform.FieldPending, Value: pendingNotice},
	)
	return fields
}

func mention(userID string) string {
	return fmt.Sprintf("<@%s>", userID)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
