package store

import (
	"sync"

	"github.com/spec-kit/ticket-bot/internal/domain"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util"
)

// TicketStore is the authoritative in-memory table of live tickets, keyed by
// conversation id. It is the only writer of ticket state; every mutation is
// atomic under a single mutex, so no two mutations on the same id can both
// observe the pre-mutation state. Durable state lives in the conversation
// history and is rebuilt by the recovery scan after a restart.
type TicketStore struct {
	mu      sync.Mutex
	tickets map[string]domain.Ticket
}

// NewTicketStore creates an empty store.
func NewTicketStore() *TicketStore {
	return &TicketStore{tickets: make(map[string]domain.Ticket)}
}

// Create registers a new ticket. Fails with DuplicateTicket if the id is
// already present.
func (s *TicketStore) Create(ticket domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tickets[ticket.ID]; exists {
		return apperrors.NewDuplicateTicket(ticket.ID)
	}
	s.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

// Get returns a copy of the ticket or NotFound.
func (s *TicketStore) Get(id string) (domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, exists := s.tickets[id]
	if !exists {
		return domain.Ticket{}, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
	}
	return cloneTicket(ticket), nil
}

// Contains reports whether the id is registered.
func (s *TicketStore) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.tickets[id]
	return exists
}

// Len returns the number of live tickets.
func (s *TicketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tickets)
}

// SetClaimant transitions a Pending ticket to Claimed. A ticket that is
// already Claimed fails with AlreadyClaimed carrying the current claimant;
// the first successful claim is never overwritten.
func (s *TicketStore) SetClaimant(id, claimantID string) (domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, exists := s.tickets[id]
	if !exists {
		return domain.Ticket{}, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
	}
	if ticket.Status != domain.TicketStatusPending {
		current := ""
		if ticket.ClaimantID != nil {
			current = *ticket.ClaimantID
		}
		return domain.Ticket{}, apperrors.NewAlreadyClaimed(current)
	}
	claimant := claimantID
	ticket.ClaimantID = &claimant
	ticket.Status = domain.TicketStatusClaimed
	s.tickets[id] = ticket
	return cloneTicket(ticket), nil
}

// Close transitions any non-Closed ticket to Closed and removes it from the
// store in the same critical section, returning the removed record so callers
// can capture creator and claimant. A second call fails with NotFound.
func (s *TicketStore) Close(id string) (domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, exists := s.tickets[id]
	if !exists {
		return domain.Ticket{}, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
	}
	delete(s.tickets, id)
	ticket.Status = domain.TicketStatusClosed
	return cloneTicket(ticket), nil
}

// cloneTicket copies the ticket so callers never alias store-owned slices or
// the claimant pointer.
func cloneTicket(t domain.Ticket) domain.Ticket {
	out := t
	if t.ClaimantID != nil {
		claimant := *t.ClaimantID
		out.ClaimantID = &claimant
	}
	if t.Responses != nil {
		out.Responses = make([]domain.FieldValue, len(t.Responses))
		copy(out.Responses, t.Responses)
	}
	return out
}
