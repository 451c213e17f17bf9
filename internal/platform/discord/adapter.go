// Package discord adapts the discordgo SDK to the platform capability
// interfaces consumed by the ticket core.
package discord

import (
	"bytes"
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/platform"
)

const summaryColor = 0x2ecc71

// NewSession builds a configured discordgo session. The caller owns Open and
// Close.
func NewSession(cfg config.GatewayConfig) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages
	return session, nil
}

// Adapter implements platform.Conversations, platform.Messages,
// platform.Roles and platform.Users over a discordgo session.
type Adapter struct {
	session       *discordgo.Session
	guildID       string
	managerRoleID string
}

// NewAdapter wraps the session.
func NewAdapter(session *discordgo.Session, cfg config.GatewayConfig) *Adapter {
	return &Adapter{session: session, guildID: cfg.GuildID, managerRoleID: cfg.ManagerRoleID}
}

// SelfID returns the bot's own user id once the gateway is connected.
func (a *Adapter) SelfID() string {
	if a.session.State != nil && a.session.State.User != nil {
		return a.session.State.User.ID
	}
	return ""
}

// CreateRestricted creates a private text channel visible to the creator and
// the manager role only.
func (a *Adapter) CreateRestricted(ctx context.Context, in platform.CreateConversationInput) (platform.ConversationInfo, error) {
	memberPerms := int64(discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory)
	managerPerms := memberPerms | int64(discordgo.PermissionManageChannels)

	overwrites := []*discordgo.PermissionOverwrite{
		{
			ID:   a.guildID,
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: int64(discordgo.PermissionViewChannel),
		},
		{
			ID:    in.CreatorID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: memberPerms,
		},
	}
	if in.ManagerRoleID != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    in.ManagerRoleID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: managerPerms,
		})
	}

	channel, err := a.session.GuildChannelCreateComplex(a.guildID, discordgo.GuildChannelCreateData{
		Name:                 in.Name,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             in.ParentID,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return platform.ConversationInfo{}, err
	}
	return conversationInfo(channel), nil
}

// Info fetches conversation metadata.
func (a *Adapter) Info(ctx context.Context, conversationID string) (platform.ConversationInfo, error) {
	channel, err := a.session.Channel(conversationID, discordgo.WithContext(ctx))
	if err != nil {
		return platform.ConversationInfo{}, err
	}
	return conversationInfo(channel), nil
}

// Rename renames a conversation; used for the Pending/Claimed marker.
func (a *Adapter) Rename(ctx context.Context, conversationID, name string) error {
	_, err := a.session.ChannelEdit(conversationID, &discordgo.ChannelEdit{Name: name}, discordgo.WithContext(ctx))
	return err
}

// Delete removes a conversation.
func (a *Adapter) Delete(ctx context.Context, conversationID string) error {
	_, err := a.session.ChannelDelete(conversationID, discordgo.WithContext(ctx))
	return err
}

// ListUnder enumerates text conversations under the given parent category.
func (a *Adapter) ListUnder(ctx context.Context, parentID string) ([]platform.ConversationInfo, error) {
	channels, err := a.session.GuildChannels(a.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	out := make([]platform.ConversationInfo, 0, len(channels))
	for _, channel := range channels {
		if channel.Type != discordgo.ChannelTypeGuildText || channel.ParentID != parentID {
			continue
		}
		out = append(out, conversationInfo(channel))
	}
	return out, nil
}

// SendFields posts a structured message. It carries the close control, since
// the only structured message the core sends into a ticket conversation is
// the summary.
func (a *Adapter) SendFields(ctx context.Context, conversationID, content, title string, fields []platform.EmbedField) (string, error) {
	msg, err := a.session.ChannelMessageSendComplex(conversationID, &discordgo.MessageSend{
		Content: content,
		Embeds:  []*discordgo.MessageEmbed{embedFromFields(title, fields)},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						CustomID: closeButtonID,
						Label:    "🛑 Close the ticket",
						Style:    discordgo.DangerButton,
					},
				},
			},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

// EditFields replaces a message's structured fields.
func (a *Adapter) EditFields(ctx context.Context, conversationID, messageID, title string, fields []platform.EmbedField) error {
	embeds := []*discordgo.MessageEmbed{embedFromFields(title, fields)}
	edit := &discordgo.MessageEdit{Channel: conversationID, ID: messageID}
	edit.Embeds = &embeds
	_, err := a.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	return err
}

// History fetches the most recent messages, newest first.
func (a *Adapter) History(ctx context.Context, conversationID string, limit int) ([]platform.Message, error) {
	msgs, err := a.session.ChannelMessages(conversationID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	out := make([]platform.Message, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, messageFromDiscord(msg))
	}
	return out, nil
}

// SendFile delivers an attachment to a conversation.
func (a *Adapter) SendFile(ctx context.Context, conversationID, content, filename string, data []byte) error {
	_, err := a.session.ChannelMessageSendComplex(conversationID, &discordgo.MessageSend{
		Content: content,
		Files: []*discordgo.File{
			{Name: filename, Reader: bytes.NewReader(data)},
		},
	}, discordgo.WithContext(ctx))
	return err
}

// DirectFile delivers an attachment to a user's direct messages.
func (a *Adapter) DirectFile(ctx context.Context, userID, content, filename string, data []byte) error {
	dm, err := a.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	return a.SendFile(ctx, dm.ID, content, filename, data)
}

// HasManagerRole reports whether the guild member holds the manager role.
func (a *Adapter) HasManagerRole(ctx context.Context, actorID string) (bool, error) {
	if a.managerRoleID == "" {
		return false, nil
	}
	member, err := a.session.GuildMember(a.guildID, actorID, discordgo.WithContext(ctx))
	if err != nil {
		return false, err
	}
	for _, role := range member.Roles {
		if role == a.managerRoleID {
			return true, nil
		}
	}
	return false, nil
}

// Username resolves a user id to a display name.
func (a *Adapter) Username(ctx context.Context, userID string) (string, error) {
	user, err := a.session.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return user.Username, nil
}

func conversationInfo(channel *discordgo.Channel) platform.ConversationInfo {
	return platform.ConversationInfo{
		ID:       channel.ID,
		Name:     channel.Name,
		ParentID: channel.ParentID,
	}
}

func embedFromFields(title string, fields []platform.EmbedField) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{Title: title, Color: summaryColor}
	for _, field := range fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{
			Name:   field.Name,
			Value:  field.Value,
			Inline: field.Inline,
		})
	}
	return out
}

func messageFromDiscord(msg *discordgo.Message) platform.Message {
	out := platform.Message{
		ID:        msg.ID,
		Timestamp: msg.Timestamp,
		Body:      msg.Content,
		System:    msg.Type != discordgo.MessageTypeDefault && msg.Type != discordgo.MessageTypeReply,
	}
	if msg.Author != nil {
		out.AuthorID = msg.Author.ID
		out.AuthorName = msg.Author.Username
		out.Bot = msg.Author.Bot
	}
	if len(msg.Embeds) > 0 {
		embed := msg.Embeds[0]
		out.Title = embed.Title
		for _, field := range embed.Fields {
			out.Fields = append(out.Fields, platform.EmbedField{
				Name:   field.Name,
				Value:  field.Value,
				Inline: field.Inline,
			})
		}
	}
	return out
}
