package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusPending TicketStatus = "PENDING"
	TicketStatusClaimed TicketStatus = "CLAIMED"
	TicketStatusClosed  TicketStatus = "CLOSED"
)

// FieldValue is one answered form field, order-preserving.
type FieldValue struct {
	Name  string
	Value string
}

// Ticket is the aggregate for a support request. Its ID is the identifier of
// the backing conversation; the conversation's first structured message is the
// durable record the recovery scan parses after a restart.
type Ticket struct {
	ID          string
	CreatorID   string
	CreatorName string
	Category    string
	Responses   []FieldValue
	CreatedAt   time.Time
	Status      TicketStatus
	ClaimantID  *string
}

// TicketRequest is an ephemeral form submission, consumed into a Ticket.
type TicketRequest struct {
	SubmitterID   string
	SubmitterName string
	Category      string
	Responses     []FieldValue
}

// FieldSpec describes one form field of a category.
type FieldSpec struct {
	ID          string
	Label       string
	Required    bool
	MinLength   int
	MaxLength   int
	Multiline   bool
	Placeholder string
}
