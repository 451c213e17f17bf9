package events

import (
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketOpened      EventType = "ticket_opened"
	EventTicketClaimed     EventType = "ticket_claimed"
	EventTicketClosed      EventType = "ticket_closed"
	EventRecoveryCompleted EventType = "recovery_completed"
)

// Event represents a lifecycle event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	ActorID   string      `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketOpenedPayload payload.
type TicketOpenedPayload struct {
	CreatorID string `json:"creator_id"`
	Category  string `json:"category"`
}

// TicketClaimedPayload payload.
type TicketClaimedPayload struct {
	ClaimantID string `json:"claimant_id"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	CreatorID      string              `json:"creator_id"`
	ClaimantID     *string             `json:"claimant_id,omitempty"`
	FinalStatus    domain.TicketStatus `json:"final_status"`
	TranscriptName string              `json:"transcript_name"`
}

// RecoveryCompletedPayload payload.
type RecoveryCompletedPayload struct {
	Scanned   int `json:"scanned"`
	Recovered int `json:"recovered"`
	Skipped   int `json:"skipped"`
}
