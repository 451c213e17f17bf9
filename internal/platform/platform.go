// Package platform defines the narrow capability interfaces the ticket core
// consumes from the messaging platform. The core never depends on a concrete
// SDK type; the discord subpackage adapts the real gateway to these
// interfaces and tests substitute fakes.
package platform

import (
	"context"
	"time"
)

// Conversation name markers. A leading 🔴 marks an unclaimed ticket, 🟢 a
// claimed one; the recovery scan keys off these prefixes.
const (
	MarkerPending = "🔴"
	MarkerClaimed = "🟢"
)

// Durable field names of the ticket summary message. The recovery scan parses
// them after a restart, so they are part of the persistence contract.
const (
	FieldUser      = "User"
	FieldCategory  = "Category"
	FieldCreatedOn = "Created on"
	FieldPending   = "Pending"
	FieldHandledBy = "Handled by"
)

// EmbedField is one structured name/value pair of a message.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Message is a transport-neutral view of a conversation message.
type Message struct {
	ID         string
	AuthorID   string
	AuthorName string
	Bot        bool
	System     bool
	Timestamp  time.Time
	Body       string
	Title      string
	Fields     []EmbedField
}

// ConversationInfo identifies a conversation.
type ConversationInfo struct {
	ID       string
	Name     string
	ParentID string
}

// CreateConversationInput describes a private ticket conversation: visible to
// the creator and the manager role only.
type CreateConversationInput struct {
	Name          string
	ParentID      string
	CreatorID     string
	ManagerRoleID string
}

// Conversations exposes conversation-level platform capabilities.
type Conversations interface {
	CreateRestricted(ctx context.Context, in CreateConversationInput) (ConversationInfo, error)
	Info(ctx context.Context, conversationID string) (ConversationInfo, error)
	Rename(ctx context.Context, conversationID, name string) error
	Delete(ctx context.Context, conversationID string) error
	ListUnder(ctx context.Context, parentID string) ([]ConversationInfo, error)
}

// Messages exposes message-level platform capabilities.
type Messages interface {
	SendFields(ctx context.Context, conversationID, content, title string, fields []EmbedField) (messageID string, err error)
	EditFields(ctx context.Context, conversationID, messageID, title string, fields []EmbedField) error
	History(ctx context.Context, conversationID string, limit int) ([]Message, error)
	SendFile(ctx context.Context, conversationID, content, filename string, data []byte) error
	DirectFile(ctx context.Context, userID, content, filename string, data []byte) error
}

// Roles answers capability checks for acting users.
type Roles interface {
	HasManagerRole(ctx context.Context, actorID string) (bool, error)
}

// Users resolves user identities.
type Users interface {
	Username(ctx context.Context, userID string) (string, error)
}
